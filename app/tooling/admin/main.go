// This program performs administrative tasks against exported ledger
// snapshots.
package main

import (
	"fmt"
	"os"

	"github.com/ardanlabs/hashledger/app/tooling/admin/commands"
	"github.com/ardanlabs/hashledger/foundation/blockchain/signature"
	"github.com/ardanlabs/hashledger/foundation/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {

	// Construct the application logger.
	log, err := logger.New("ADMIN")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	// Perform the startup and shutdown sequence.
	if err := run(log); err != nil {
		log.Errorw("startup", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {
	var hashStrategy string

	rootCmd := &cobra.Command{
		Use:           "admin",
		Short:         "Administrative tasks for ledger snapshots",
		Version:       build,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&hashStrategy, "hash", "sha256", "Hash strategy used by the ledger.")

	hasher := func() (signature.Hasher, error) {
		return signature.HasherByName(hashStrategy)
	}

	ev := func(v string, args ...any) {
		log.Infow(fmt.Sprintf(v, args...))
	}

	validateCmd := &cobra.Command{
		Use:   "validate <snapshot>",
		Short: "Validate every block of an exported snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := hasher()
			if err != nil {
				return err
			}

			v, err := commands.Validate(args[0], h, ev)
			if err != nil {
				return fmt.Errorf("validating snapshot: %w", err)
			}

			commands.PrintValidation(v)
			return nil
		},
	}

	printCmd := &cobra.Command{
		Use:   "print <snapshot>",
		Short: "Print the blocks and balances of an exported snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := hasher()
			if err != nil {
				return err
			}

			if err := commands.Print(args[0], h); err != nil {
				return fmt.Errorf("printing snapshot: %w", err)
			}

			return nil
		},
	}

	var (
		tamperBlock  uint64
		tamperAmount int64
	)
	tamperCmd := &cobra.Command{
		Use:   "tamper <snapshot>",
		Short: "Alter a copy of a block in memory and show where validation fails",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := hasher()
			if err != nil {
				return err
			}

			v, err := commands.Tamper(args[0], h, tamperBlock, tamperAmount, ev)
			if err != nil {
				return fmt.Errorf("tampering snapshot: %w", err)
			}

			commands.PrintValidation(v)
			return nil
		},
	}
	tamperCmd.Flags().Uint64Var(&tamperBlock, "block", 1, "Number of the block to alter.")
	tamperCmd.Flags().Int64Var(&tamperAmount, "amount", 999999, "Amount to write into the block's first transaction.")

	var proofIndex int
	merkleCmd := &cobra.Command{
		Use:   "merkle <data>...",
		Short: "Build a merkle tree over transactions carrying the given data",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := hasher()
			if err != nil {
				return err
			}

			if err := commands.Merkle(args, proofIndex, h); err != nil {
				return fmt.Errorf("building merkle tree: %w", err)
			}

			return nil
		},
	}
	merkleCmd.Flags().IntVar(&proofIndex, "index", 0, "Index of the transaction to prove.")

	rootCmd.AddCommand(validateCmd, printCmd, tamperCmd, merkleCmd)

	return rootCmd.Execute()
}
