// Package archive exports commit snapshots as zstd compressed tarballs.
package archive

import (
	"archive/tar"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"twig/shared/utils"

	"github.com/klauspost/compress/zstd"
)

// ReadFunc returns the content stored under a blob hash.
type ReadFunc func(hash string) ([]byte, error)

type Options struct {
	// Prefix is prepended to every entry name, e.g. "project/".
	Prefix string
	// ModTime is stamped on every entry, normally the commit time.
	ModTime time.Time
	// Level is a zstd level from 1 (fastest) to 4 (best). 0 picks the
	// default.
	Level int
}

// Write streams snapshot to w as tar.zst, entries ordered by filename.
func Write(w io.Writer, snapshot map[string]string, read ReadFunc, opts Options) error {
	level := zstd.SpeedDefault
	if opts.Level > 0 {
		level = zstd.EncoderLevelFromZstd(opts.Level)
	}
	enc, err := zstd.NewWriter(w,
		zstd.WithEncoderLevel(level),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		return fmt.Errorf("creating encoder: %w", err)
	}

	tw := tar.NewWriter(enc)
	for _, name := range utils.SortedKeys(snapshot) {
		content, err := read(snapshot[name])
		if err != nil {
			enc.Close()
			return fmt.Errorf("reading %s: %w", name, err)
		}

		header := &tar.Header{
			Name:     path.Join(opts.Prefix, name),
			Mode:     0644,
			Size:     int64(len(content)),
			ModTime:  opts.ModTime,
			Typeflag: tar.TypeReg,
		}
		if err := tw.WriteHeader(header); err != nil {
			enc.Close()
			return fmt.Errorf("failed to write header for %s: %w", name, err)
		}
		if _, err := tw.Write(content); err != nil {
			enc.Close()
			return fmt.Errorf("failed to write file %s: %w", name, err)
		}
	}

	if err := tw.Close(); err != nil {
		enc.Close()
		return fmt.Errorf("finalizing tar: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalizing compression: %w", err)
	}
	return nil
}

// Read decodes a tar.zst produced by Write into filename -> content,
// stripping prefix from entry names.
func Read(r io.Reader, prefix string) (map[string][]byte, error) {
	dec, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("creating decoder: %w", err)
	}
	defer dec.Close()

	files := make(map[string][]byte)
	tr := tar.NewReader(dec)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading archive: %w", err)
		}
		if header.Typeflag != tar.TypeReg {
			continue
		}

		content, err := io.ReadAll(tr)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", header.Name, err)
		}
		name := header.Name
		if prefix != "" {
			name = strings.TrimPrefix(name, strings.TrimSuffix(prefix, "/")+"/")
		}
		files[name] = content
	}
	return files, nil
}
