// Package cli is the external collaborator shell: a thin cobra-based
// wrapper over internal/ingest, internal/repo, and internal/verify. It
// never alters the core contract; its only job is argument parsing, exit
// codes, and the one layer of user-facing logging.
package cli

import (
	"errors"
	"fmt"
	"os"

	serum "github.com/serum-errors/go-serum"
	"github.com/spf13/cobra"
)

// GarVersion is the CLI's own version string, independent of the on-disk
// format version (which never changes without a new hash function).
const GarVersion = "0.1.0"

var repoFlag string
var verboseFlag bool

var rootCmd = &cobra.Command{
	Use:           "gar",
	Short:         "Gar is a content-addressed store for filesystem trees",
	Long:          "Gar ingests a directory tree into a content-addressed blob and tree store, bit-compatible with a well-known tree-hashing convention.",
	SilenceUsage:  true,
	SilenceErrors: true,
	Run: func(cmd *cobra.Command, args []string) {
		if version {
			fmt.Printf("gar version %s\n", GarVersion)
			return
		}
		cmd.Help()
	},
}

var version bool

func init() {
	rootCmd.PersistentFlags().StringVar(&repoFlag, "repo", ".", "path to the gar repository")
	rootCmd.PersistentFlags().BoolVar(&verboseFlag, "verbose", false, "print extra status lines as the command runs")
	rootCmd.Flags().BoolVar(&version, "version", false, "print the gar version")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(verifyCmd)
}

// Execute runs the root command and translates any exitError it returns
// into the process's exit code; any other error is an argument error
// (exit code 1). Both paths print serum.ToJSONString(err), the same
// structured rendering the sibling gittreehash tool uses on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			fmt.Fprintln(os.Stderr, serum.ToJSONString(ee.err))
			os.Exit(ee.code)
		}
		fmt.Fprintln(os.Stderr, serum.ToJSONString(err))
		os.Exit(1)
	}
}

// exitError pins a specific process exit code to an error, so a single
// RunE return value can drive both the printed message and the exit code
// without cobra's own default handling collapsing everything to 1.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func withExit(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: code, err: err}
}
