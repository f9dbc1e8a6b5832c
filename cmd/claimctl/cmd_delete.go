package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var deleteFlags struct {
	yes bool
}

var deleteCmd = &cobra.Command{
	Use:   "delete <claim-id>",
	Short: "Remove a claim from the store",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

func init() {
	deleteCmd.Flags().BoolVar(&deleteFlags.yes, "yes", false, "Skip the confirmation prompt")
}

func runDelete(cmd *cobra.Command, args []string) error {
	claimID := args[0]

	if !deleteFlags.yes {
		fmt.Fprintf(cmd.OutOrStdout(), "Delete claim %s? [y/N] ", claimID)
		var answer string
		fmt.Fscanln(cmd.InOrStdin(), &answer)
		if answer != "y" && answer != "Y" {
			fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
			return nil
		}
	}

	ctx := cmd.Context()
	st, closeFn, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	deleted, err := st.Delete(ctx, claimID)
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("no claim with id %q", claimID)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Claim %s deleted\n", claimID)
	return nil
}
