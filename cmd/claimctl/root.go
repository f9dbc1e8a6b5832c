// Command claimctl is the operator CLI for the ClaimVoice claim store.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/spf13/cobra"

	"github.com/ganalabs/claimvoice/internal/store"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	dsn string
}

var rootCmd = &cobra.Command{
	Use:   "claimctl",
	Short: "Inspect and manage claims recorded by the ClaimVoice intake server",
	Long: "Claimctl reads and updates the PostgreSQL claim store used by the\n" +
		"ClaimVoice server: list recorded claims, show one in full, move it\n" +
		"through the review workflow, or remove it.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootFlags.dsn, "dsn", os.Getenv("DATABASE_URL"),
		"PostgreSQL connection string (defaults to $DATABASE_URL)")

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openStore connects to the claim store. The returned close function must be
// called when the command is done.
func openStore(ctx context.Context) (*store.Store, func(), error) {
	if rootFlags.dsn == "" {
		return nil, nil, fmt.Errorf("no connection string: pass --dsn or set DATABASE_URL")
	}
	conn, err := pgx.Connect(ctx, rootFlags.dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("connect: %w", err)
	}
	closeFn := func() { _ = conn.Close(context.Background()) }
	return store.New(conn), closeFn, nil
}
