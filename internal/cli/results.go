package cli

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/me/gosweep/pkg/model"
	"github.com/spf13/cobra"
)

func newResultsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "results <sweep_id>",
		Short: "Summarize the completed results of a sweep",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]

			resp, err := client.Get("/api/v1/sweeps/" + id + "/results")
			if err != nil {
				return fmt.Errorf("get results: %w", err)
			}

			var results []*model.SimulationResults
			if err := json.Unmarshal(resp.Data, &results); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}

			if len(results) == 0 {
				fmt.Println("No completed results yet.")
				return nil
			}

			fmt.Printf("%d completed run(s)\n", len(results))
			for i, r := range results {
				vars := r.Variables()
				sort.Strings(vars)
				fmt.Printf("  run %d: %d samples, variables: %s\n",
					i, r.Len(), strings.Join(vars, ", "))
			}
			fmt.Printf("\nUse 'sweepctl export %s --run N' to download a run.\n", id)
			return nil
		},
	}
}
