package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusFlags struct {
	notes string
}

// claimStatuses are the workflow states a claim can be moved to. The server
// sets draft and submitted itself.
var claimStatuses = map[string]bool{
	"submitted":    true,
	"under_review": true,
	"approved":     true,
	"rejected":     true,
	"closed":       true,
}

var statusCmd = &cobra.Command{
	Use:   "status <claim-id> <status>",
	Short: "Move a claim to a new workflow status",
	Long: "Move a claim to a new workflow status. Valid statuses:\n" +
		"submitted, under_review, approved, rejected, closed.",
	Args: cobra.ExactArgs(2),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusFlags.notes, "notes", "", "Reviewer notes to attach to the claim")
}

func runStatus(cmd *cobra.Command, args []string) error {
	claimID, status := args[0], args[1]
	if !claimStatuses[status] {
		return fmt.Errorf("unknown status %q", status)
	}

	ctx := cmd.Context()
	st, closeFn, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	updated, err := st.UpdateStatus(ctx, claimID, status, statusFlags.notes)
	if err != nil {
		return err
	}
	if !updated {
		return fmt.Errorf("no claim with id %q", claimID)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Claim %s is now %s\n", claimID, status)
	return nil
}
