package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"twig/internal/commit"
	"twig/internal/config"
	"twig/internal/logging"
	"twig/internal/merge"
	"twig/internal/parcel"
	"twig/internal/repository"
	"twig/internal/workspace"
	"twig/shared/utils"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "twig",
	Short: "Twig is a minimal version control system",
	Long: `Twig snapshots a directory into immutable commits, keeps named branches
of those commits and merges branches with a three-way, per-file merge.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	var initCmd = &cobra.Command{
		Use:   "init",
		Short: "Initialize a new Twig repository in the current directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("getting current directory: %w", err)
			}
			if parcel.IsInitialized(dir) {
				return fmt.Errorf("%s is already a Twig repository", dir)
			}

			p, err := openParcel(dir, true)
			if err != nil {
				return err
			}
			defer p.Close()

			fmt.Printf("Initialized empty Twig repository in %s (branch %s)\n",
				filepath.Join(p.Root, workspace.MetaDir), p.Repo.CurrentBranch())
			return nil
		},
	}

	var commitCmd = &cobra.Command{
		Use:   "commit",
		Short: "Record the working tree as a new commit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			message, _ := cmd.Flags().GetString("message")
			branchName, _ := cmd.Flags().GetString("branch")
			if message == "" {
				return fmt.Errorf("a commit message is required (-m)")
			}

			return withRepo(func(repo *repository.Repository) error {
				c, err := repo.Commit(branchName, message)
				if err != nil {
					return err
				}
				if branchName == "" {
					branchName = repo.CurrentBranch()
				}
				fmt.Printf("[%s %s] %s\n", branchName, color.YellowString(c.ID.String()), c.Message)
				fmt.Printf(" %d file(s)\n", len(c.Snapshot))
				return nil
			})
		},
	}
	commitCmd.Flags().StringP("message", "m", "", "commit message")
	commitCmd.Flags().StringP("branch", "b", "", "branch to commit onto (default: current)")

	var logCmd = &cobra.Command{
		Use:   "log [branch]",
		Short: "Show the commit history of a branch",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var branchName string
			if len(args) == 1 {
				branchName = args[0]
			}
			return withRepo(func(repo *repository.Repository) error {
				history, err := repo.History(branchName)
				if err != nil {
					return err
				}
				if len(history) == 0 {
					fmt.Println("No commits yet")
					return nil
				}
				for _, c := range history {
					printCommit(c)
				}
				return nil
			})
		},
	}

	var showCmd = &cobra.Command{
		Use:   "show <id>",
		Short: "Show a commit and the changes it introduced",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := commit.ParseID(args[0])
			if err != nil {
				return err
			}
			return withRepo(func(repo *repository.Repository) error {
				c, err := repo.Get(id)
				if err != nil {
					return err
				}
				printCommit(c)
				diffs, err := repo.DiffCommit(id)
				if err != nil {
					return err
				}
				printDiffs(diffs)
				return nil
			})
		},
	}

	var branchCmd = &cobra.Command{
		Use:   "branch",
		Short: "List branches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(func(repo *repository.Repository) error {
				current := repo.CurrentBranch()
				heads := repo.ListBranches()
				for _, name := range utils.SortedKeys(heads) {
					head := "-"
					if heads[name] != 0 {
						head = heads[name].String()
					}
					if name == current {
						fmt.Printf("* %s %s\n", color.GreenString(name), color.YellowString(head))
					} else {
						fmt.Printf("  %s %s\n", name, color.YellowString(head))
					}
				}
				return nil
			})
		},
	}

	var createBranchCmd = &cobra.Command{
		Use:   "create <name>",
		Short: "Create a branch at the head of another branch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, _ := cmd.Flags().GetString("from")
			return withRepo(func(repo *repository.Repository) error {
				b, err := repo.CreateBranch(args[0], from)
				if err != nil {
					return err
				}
				fmt.Printf("Created branch %s at %s\n", color.GreenString(b.Name), b.Head)
				return nil
			})
		},
	}
	createBranchCmd.Flags().String("from", "", "source branch (default: current)")

	var switchCmd = &cobra.Command{
		Use:   "switch <branch>",
		Short: "Switch branches and restore the working tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(func(repo *repository.Repository) error {
				if err := repo.SwitchBranch(args[0]); err != nil {
					return err
				}
				fmt.Printf("Switched to branch %s\n", color.GreenString(args[0]))
				return nil
			})
		},
	}

	var mergeCmd = &cobra.Command{
		Use:   "merge <source>",
		Short: "Merge a branch into the current branch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			into, _ := cmd.Flags().GetString("into")
			policy, _ := cmd.Flags().GetString("policy")
			advise, _ := cmd.Flags().GetBool("advise")

			return withRepo(func(repo *repository.Repository) error {
				result, err := repo.Merge(cmd.Context(), repository.MergeOptions{
					Source: args[0],
					Target: into,
					Policy: merge.Policy(policy),
					Advise: advise,
				})
				if err != nil {
					return err
				}
				printMerge(result)
				return nil
			})
		},
	}
	mergeCmd.Flags().String("into", "", "target branch (default: current)")
	mergeCmd.Flags().String("policy", "", "conflict policy: target, source or manual (default from config)")
	mergeCmd.Flags().Bool("advise", false, "ask the configured suggestion service about conflicts")

	var statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show working tree changes against the current head",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(func(repo *repository.Repository) error {
				changes, err := repo.Status()
				if err != nil {
					return err
				}
				fmt.Printf("On branch %s\n", color.GreenString(repo.CurrentBranch()))
				printStatus(changes)
				return nil
			})
		},
	}

	var diffCmd = &cobra.Command{
		Use:   "diff [id]",
		Short: "Show uncommitted changes, or the changes of a commit",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(func(repo *repository.Repository) error {
				if len(args) == 0 {
					diffs, err := repo.DiffWorking()
					if err != nil {
						return err
					}
					printDiffs(diffs)
					return nil
				}
				id, err := commit.ParseID(args[0])
				if err != nil {
					return err
				}
				diffs, err := repo.DiffCommit(id)
				if err != nil {
					return err
				}
				printDiffs(diffs)
				return nil
			})
		},
	}

	var archiveCmd = &cobra.Command{
		Use:   "archive <id>",
		Short: "Export a commit as a zstd compressed tarball",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output, _ := cmd.Flags().GetString("output")
			prefix, _ := cmd.Flags().GetString("prefix")
			id, err := commit.ParseID(args[0])
			if err != nil {
				return err
			}

			return withRepo(func(repo *repository.Repository) error {
				var w io.Writer = os.Stdout
				if output != "-" {
					file, err := os.Create(output)
					if err != nil {
						return fmt.Errorf("creating %s: %w", output, err)
					}
					defer file.Close()
					w = file
				}
				if err := repo.Archive(w, id, prefix); err != nil {
					return err
				}
				if output != "-" {
					fmt.Fprintf(os.Stderr, "Wrote commit %s to %s\n", id, output)
				}
				return nil
			})
		},
	}
	archiveCmd.Flags().StringP("output", "o", "-", "output file, - for stdout")
	archiveCmd.Flags().String("prefix", "", "directory prefix for archive entries")

	var watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Report working tree changes as they happen",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			debounce, _ := cmd.Flags().GetDuration("debounce")
			autoCommit, _ := cmd.Flags().GetBool("auto-commit")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			p, err := findParcel()
			if err != nil {
				return err
			}
			defer p.Close()

			watcher, err := workspace.NewWatcher(p.Tree, debounce, p.Logger)
			if err != nil {
				return err
			}
			return watch(ctx, p.Repo, watcher, autoCommit)
		},
	}
	watchCmd.Flags().Duration("debounce", 500*time.Millisecond, "quiet period before reporting")
	watchCmd.Flags().Bool("auto-commit", false, "commit after every batch of changes")

	branchCmd.AddCommand(createBranchCmd)
	rootCmd.AddCommand(
		initCmd,
		commitCmd,
		logCmd,
		showCmd,
		branchCmd,
		switchCmd,
		mergeCmd,
		statusCmd,
		diffCmd,
		archiveCmd,
		watchCmd,
	)
}

func watch(ctx context.Context, repo *repository.Repository, watcher *workspace.Watcher, autoCommit bool) error {
	changes := make(chan []string)
	errc := make(chan error, 1)
	go func() { errc <- watcher.Run(ctx, changes) }()

	fmt.Printf("Watching for changes on %s (Ctrl-C to stop)\n", color.GreenString(repo.CurrentBranch()))
	for {
		select {
		case names := <-changes:
			for _, name := range names {
				fmt.Printf("%s %s\n", color.CyanString(time.Now().Format("15:04:05")), name)
			}
			if !autoCommit {
				continue
			}
			changed, err := repo.Status()
			if err != nil {
				return err
			}
			if len(changed) == 0 {
				continue
			}
			c, err := repo.Commit("", "auto: "+strings.Join(names, ", "))
			if err != nil {
				return err
			}
			fmt.Printf("  committed %s\n", color.YellowString(c.ID.String()))

		case err := <-errc:
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

func loadConfig(root string) (*config.Config, error) {
	cfg, err := config.Load(filepath.Join(root, workspace.MetaDir, "config.json"))
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func newLogger() (*zap.Logger, error) {
	logger, err := logging.NewDevelopment(logLevel)
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	return logger.Logger, nil
}

func openParcel(root string, create bool) (*parcel.Parcel, error) {
	if !create && !parcel.IsInitialized(root) {
		return nil, fmt.Errorf("%s is not a Twig repository", root)
	}
	cfg, err := loadConfig(root)
	if err != nil {
		return nil, err
	}
	logger, err := newLogger()
	if err != nil {
		return nil, err
	}
	return parcel.Open(root, cfg, logger)
}

func findParcel() (*parcel.Parcel, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting current directory: %w", err)
	}
	root, err := workspace.FindRoot(cwd)
	if err != nil {
		return nil, fmt.Errorf("not a Twig repository (or any parent directory)")
	}
	return openParcel(root, false)
}

// withRepo opens the enclosing repository for the duration of fn.
func withRepo(fn func(repo *repository.Repository) error) error {
	p, err := findParcel()
	if err != nil {
		return err
	}
	defer p.Close()
	return fn(p.Repo)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
