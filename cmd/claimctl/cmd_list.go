package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ganalabs/claimvoice/internal/store"
)

var listFlags struct {
	status string
	source string
	limit  int
	offset int
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded claims, newest first",
	RunE:  runList,
}

func init() {
	f := listCmd.Flags()
	f.StringVar(&listFlags.status, "status", "", "Filter by claim status (e.g. submitted, approved)")
	f.StringVar(&listFlags.source, "source", "", "Filter by intake source (e.g. voice)")
	f.IntVar(&listFlags.limit, "limit", 0, "Maximum number of claims to return")
	f.IntVar(&listFlags.offset, "offset", 0, "Number of claims to skip")
}

func runList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	st, closeFn, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	claims, err := st.List(ctx, store.ListFilter{
		Status: listFlags.status,
		Source: listFlags.source,
		Limit:  listFlags.limit,
		Offset: listFlags.offset,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(claims) == 0 {
		fmt.Fprintln(out, "No claims found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CLAIM ID\tCREATED\tSTATUS\tSOURCE\tCLAIMANT\tDAMAGE")
	for _, sc := range claims {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			sc.ClaimID,
			sc.CreatedAt.Format("2006-01-02 15:04"),
			sc.Status,
			sc.Source,
			sc.Claimant.Name,
			sc.Incident.DamageType,
		)
	}
	return w.Flush()
}
