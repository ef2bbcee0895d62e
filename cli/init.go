package cli

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/javanhut/gar/internal/colors"
	"github.com/javanhut/gar/internal/gerr"
	"github.com/javanhut/gar/internal/repo"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new gar repository",
	Long:  "Creates blobcas/, treecas/, and treeidx/ under --repo. Fails if a repository already exists there.",
	Args:  cobra.NoArgs,
	RunE:  runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	if verboseFlag {
		log.Printf("checking for an existing gar repository at %s", repoFlag)
	}
	if _, err := repo.Open(repoFlag); err == nil {
		return withExit(4, fmt.Errorf("a gar repository already exists at %s", repoFlag))
	} else if gerr.Kind(err) != gerr.KindNotFound {
		return withExit(1, err)
	}

	r, err := repo.Create(repoFlag)
	if err != nil {
		return withExit(1, err)
	}

	log.Print(colors.SuccessText(fmt.Sprintf("initialized gar repository at %s", r.AbsPath())))
	return nil
}
