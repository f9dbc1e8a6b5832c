package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ganalabs/claimvoice/internal/store"
)

var showFlags struct {
	asJSON bool
}

var showCmd = &cobra.Command{
	Use:   "show <claim-id>",
	Short: "Show one claim in full",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func init() {
	showCmd.Flags().BoolVar(&showFlags.asJSON, "json", false, "Print the raw claim record as JSON")
}

func runShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	st, closeFn, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	sc, err := st.Get(ctx, args[0])
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("no claim with id %q", args[0])
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if showFlags.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(sc)
	}

	fmt.Fprintf(out, "Claim:     %s\n", sc.ClaimID)
	fmt.Fprintf(out, "Status:    %s\n", sc.Status)
	fmt.Fprintf(out, "Source:    %s\n", sc.Source)
	fmt.Fprintf(out, "Created:   %s\n", sc.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(out, "Updated:   %s\n", sc.UpdatedAt.Format("2006-01-02 15:04:05 MST"))
	if sc.CallSID != "" {
		fmt.Fprintf(out, "Call SID:  %s\n", sc.CallSID)
	}
	if sc.Notes != "" {
		fmt.Fprintf(out, "Notes:     %s\n", sc.Notes)
	}

	fmt.Fprintf(out, "\nClaimant:\n")
	printField(out, "Name", sc.Claimant.Name)
	printField(out, "Policy", sc.Claimant.PolicyNumber)
	printField(out, "Phone", sc.Claimant.ContactPhone)
	printField(out, "Email", sc.Claimant.ContactEmail)

	fmt.Fprintf(out, "\nIncident:\n")
	printField(out, "Date", sc.Incident.Date)
	printField(out, "Location", sc.Incident.Location)
	printField(out, "Damage type", string(sc.Incident.DamageType))
	printField(out, "Description", sc.Incident.Description)

	fmt.Fprintf(out, "\nProperty damage:\n")
	printField(out, "Property type", string(sc.PropertyDamage.PropertyType))
	printField(out, "Room", sc.PropertyDamage.RoomLocation)
	printField(out, "Severity", string(sc.PropertyDamage.Severity))
	if cost := sc.PropertyDamage.EstimatedRepairCost; cost != nil {
		fmt.Fprintf(out, "  Est. repair cost : $%.2f\n", *cost)
	}

	fmt.Fprintf(out, "\nEvidence:\n")
	fmt.Fprintf(out, "  Damage photos    : %d\n", sc.Evidence.DamagePhotoCount)
	fmt.Fprintf(out, "  Repair estimate  : %t\n", sc.Evidence.HasRepairEstimate)
	fmt.Fprintf(out, "  Incident report  : %t\n", sc.Evidence.HasIncidentReport)

	if len(sc.RoutingResult) > 0 {
		fmt.Fprintf(out, "\nRouting result:\n")
		printRawJSON(out, sc.RoutingResult)
	}
	if len(sc.FraudResult) > 0 {
		fmt.Fprintf(out, "\nFraud result:\n")
		printRawJSON(out, sc.FraudResult)
	}
	if len(sc.Transcript) > 0 {
		fmt.Fprintf(out, "\nTranscript: %d turns (use --json to see them)\n", len(sc.Transcript))
	}
	return nil
}

func printField(out io.Writer, label, value string) {
	if value == "" || value == "unknown" {
		return
	}
	fmt.Fprintf(out, "  %-16s : %s\n", label, value)
}

func printRawJSON(out io.Writer, raw json.RawMessage) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		fmt.Fprintf(out, "  %s\n", string(raw))
		return
	}
	for k, v := range m {
		fmt.Fprintf(out, "  %-16s : %v\n", k, v)
	}
}
