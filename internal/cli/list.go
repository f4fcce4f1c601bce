package cli

import (
	"encoding/json"
	"fmt"

	"github.com/me/gosweep/pkg/model"
	"github.com/spf13/cobra"
)

func newListCmd() *cobra.Command {
	var phase string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sweeps",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/v1/sweeps/"
			if phase != "" {
				path += "?phase=" + phase
			}
			resp, err := client.Get(path)
			if err != nil {
				return fmt.Errorf("list sweeps: %w", err)
			}

			var sweeps []*model.Sweep
			if err := json.Unmarshal(resp.Data, &sweeps); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}

			if len(sweeps) == 0 {
				fmt.Println("No sweeps found.")
				return nil
			}

			fmt.Printf("%-14s  %-10s  %-20s  %6s  %s\n", "ID", "PHASE", "NAME", "RUNS", "CREATED")
			fmt.Printf("%-14s  %-10s  %-20s  %6s  %s\n", "----", "-----", "----", "----", "-------")
			for _, sw := range sweeps {
				fmt.Printf("%-14s  %-10s  %-20s  %6d  %s\n",
					sw.ID, sw.Phase, sw.Name, sw.TotalRuns, sw.CreatedAt.Format("2006-01-02 15:04:05"))
			}

			if resp.Pagination != nil && resp.Pagination.HasMore {
				fmt.Printf("\n(%d of %d shown)\n", len(sweeps), resp.Pagination.Total)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&phase, "phase", "", "Filter by phase (PENDING, RUNNING, COMPLETED, FAILED)")
	return cmd
}
