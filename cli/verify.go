package cli

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/javanhut/gar/internal/colors"
	"github.com/javanhut/gar/internal/gerr"
	"github.com/javanhut/gar/internal/hashid"
	"github.com/javanhut/gar/internal/repo"
	"github.com/javanhut/gar/internal/verify"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <hash>",
	Short: "Recompute and confirm a committed tree's hash and hardlink structure",
	Long:  "A read-only consistency check: re-walks treecas/<hash>, recomputes every blob and tree hash from the bytes on disk, and confirms each file is still a hardlink to its blob CAS entry.",
	Args:  cobra.ExactArgs(1),
	RunE:  runVerify,
}

func runVerify(cmd *cobra.Command, args []string) error {
	hash, err := hashid.ParseHex(args[0])
	if err != nil {
		return withExit(1, fmt.Errorf("not a valid tree hash: %w", err))
	}

	r, err := repo.Open(repoFlag)
	if err != nil {
		if gerr.Kind(err) == gerr.KindNotFound {
			return withExit(3, fmt.Errorf("no gar repository found at %s", repoFlag))
		}
		return withExit(5, err)
	}

	if verboseFlag {
		log.Printf("re-walking treecas/%s under %s", hash.Hex(), r.AbsPath())
	}
	if err := verify.Verify(r, hash); err != nil {
		return withExit(5, err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), colors.SuccessText(fmt.Sprintf("%s verified", hash.Hex())))
	return nil
}
