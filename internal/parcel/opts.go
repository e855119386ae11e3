package parcel

import (
	"time"

	"twig/internal/config"
	"twig/internal/merge"
	"twig/internal/repository"
	"twig/internal/storage"
	"twig/internal/suggest"
	"twig/internal/workspace"

	"go.uber.org/zap"
)

// Options maps configuration onto repository options. A suggestion
// service is wired in only when merge.suggest_url is set.
func Options(cfg *config.Config, backend storage.Backend, ws workspace.WorkingSet, logger *zap.Logger) repository.Options {
	opts := repository.Options{
		Backend:        backend,
		WorkingSet:     ws,
		Logger:         logger,
		DefaultBranch:  cfg.Repository.DefaultBranch,
		BlobCacheSize:  cfg.Cache.Blobs,
		Policy:         merge.Policy(cfg.Merge.Policy),
		SuggestTimeout: time.Duration(cfg.Merge.SuggestTimeout),
	}
	if cfg.Merge.SuggestURL != "" {
		opts.Suggester = suggest.NewHTTP(cfg.Merge.SuggestURL)
	}
	return opts
}
