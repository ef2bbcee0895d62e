package cli

import (
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/javanhut/gar/internal/cas"
	"github.com/javanhut/gar/internal/colors"
	"github.com/javanhut/gar/internal/gerr"
	"github.com/javanhut/gar/internal/ingest"
	"github.com/javanhut/gar/internal/repo"
	"github.com/javanhut/gar/internal/repoconfig"
	"github.com/javanhut/gar/internal/treeidx"
)

var modeFlag string

var addCmd = &cobra.Command{
	Use:   "add <path>",
	Short: "Ingest a directory tree into the repository",
	Args:  cobra.ExactArgs(1),
	RunE:  runAdd,
}

func init() {
	addCmd.Flags().StringVar(&modeFlag, "mode", "", "blob placement mode: copy, link, or move (defaults to the repository's configured mode)")
}

func runAdd(cmd *cobra.Command, args []string) error {
	root := args[0]

	r, err := repo.Open(repoFlag)
	if err != nil {
		if gerr.Kind(err) == gerr.KindNotFound {
			return withExit(3, fmt.Errorf("no gar repository found at %s", repoFlag))
		}
		return withExit(5, err)
	}

	cfg, err := repoconfig.Load(r.AbsPath())
	if err != nil {
		return withExit(1, err)
	}

	mode := cfg.ModeValue()
	if modeFlag != "" {
		parsed, err := parseMode(modeFlag)
		if err != nil {
			return withExit(1, err)
		}
		mode = parsed
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return withExit(1, err)
	}

	if verboseFlag {
		log.Printf("ingesting %s into %s (mode=%s)", absRoot, r.AbsPath(), mode)
	}

	started := time.Now().UTC()
	hash, stats, err := ingest.Ingest(r, root, mode)
	if err != nil {
		return withExit(5, err)
	}
	finished := time.Now().UTC()

	if verboseFlag {
		log.Printf("ingested %d file(s) and %d director(y/ies) in %s", stats.FileCount, stats.DirCount, finished.Sub(started))
	}

	if cfg.Ingest.PopulateTreeIndex {
		if ix, openErr := treeidx.Open(r.TreeIndex()); openErr == nil {
			rec := treeidx.Record{
				SourcePath: absRoot,
				Mode:       mode.String(),
				StartedAt:  started,
				FinishedAt: finished,
				FileCount:  stats.FileCount,
				DirCount:   stats.DirCount,
			}
			if putErr := ix.Put(hash, rec); putErr != nil {
				log.Print(colors.WarningText(fmt.Sprintf("warning: failed to record treeidx entry: %v", putErr)))
			}
			ix.Close()
		} else {
			log.Print(colors.WarningText(fmt.Sprintf("warning: failed to open treeidx: %v", openErr)))
		}
	}

	fmt.Fprintln(cmd.OutOrStdout(), colors.SuccessText(hash.Hex()))
	return nil
}

func parseMode(s string) (cas.Mode, error) {
	switch s {
	case "copy":
		return cas.Copy, nil
	case "link":
		return cas.Link, nil
	case "move":
		return cas.Move, nil
	default:
		return cas.Copy, fmt.Errorf("unrecognized --mode %q: want copy, link, or move", s)
	}
}
