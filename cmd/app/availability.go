package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"slotbook/internal/availability"

	"github.com/spf13/cobra"
)

func newAvailabilityCmd() *cobra.Command {
	var (
		projectID  int64
		locationID int64
		date       string
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "availability",
		Short: "Print the bookable slots of a project for one date",
		RunE: func(cmd *cobra.Command, args []string) error {
			if projectID <= 0 {
				return fmt.Errorf("--project is required")
			}
			if date == "" {
				return fmt.Errorf("--date is required")
			}

			d, err := openDeps(cmd.Context())
			if err != nil {
				return err
			}
			defer d.Close()

			var loc *int64
			if cmd.Flags().Changed("location") {
				loc = &locationID
			}

			result, err := d.availability.ComputeAvailability(cmd.Context(), projectID, loc, date, time.Now())
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}
			printAvailability(cmd.OutOrStdout(), result)
			return nil
		},
	}

	cmd.Flags().Int64Var(&projectID, "project", 0, "project id")
	cmd.Flags().Int64Var(&locationID, "location", 0, "location id (defaults to the first active location)")
	cmd.Flags().StringVar(&date, "date", "", "date as YYYY-MM-DD")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func printAvailability(w io.Writer, r *availability.Result) {
	fmt.Fprintf(w, "Availability for %s\n", r.Date)
	if r.Message != "" {
		fmt.Fprintln(w, r.Message)
	}
	if len(r.Slots) == 0 {
		fmt.Fprintln(w, "no slots")
		return
	}
	for _, s := range r.Slots {
		if s.SpotsLeft != nil {
			fmt.Fprintf(w, "  %s-%s  %d left\n", s.Start, s.End, *s.SpotsLeft)
			continue
		}
		fmt.Fprintf(w, "  %s-%s\n", s.Start, s.End)
	}
}
