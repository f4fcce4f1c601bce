package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/me/gosweep/internal/scheduler"
	"github.com/me/gosweep/pkg/model"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <sweep_id>",
		Short: "Check the status of a sweep",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]

			sweep, status, err := fetchSweep(id)
			if err != nil {
				return err
			}

			fmt.Printf("Sweep: %s\n", sweep.ID)
			fmt.Printf("  Name:     %s\n", sweep.Name)
			fmt.Printf("  Model:    %s\n", sweep.ModelPath)

			if status != nil {
				fmt.Printf("  Phase:    %s\n", status.Phase)
				s := status.Summary
				fmt.Printf("  Runs:     %d total", s.Total)
				if s.Completed > 0 {
					fmt.Printf(", %d completed", s.Completed)
				}
				if s.Running > 0 {
					fmt.Printf(", %d running", s.Running)
				}
				if s.Queued > 0 {
					fmt.Printf(", %d queued", s.Queued)
				}
				if s.Failed > 0 {
					fmt.Printf(", %d failed", s.Failed)
				}
				fmt.Println()
				fmt.Printf("  Progress: %.0f%%\n", status.Percentage)
				if status.ETA != nil {
					fmt.Printf("  ETA:      %s\n", status.ETA.Format(time.RFC3339))
				}
			} else {
				fmt.Printf("  Phase:    %s\n", sweep.Phase)
			}

			fmt.Printf("  Created:  %s\n", sweep.CreatedAt.Format(time.RFC3339))
			if sweep.CompletedAt != nil {
				fmt.Printf("  Finished: %s\n", sweep.CompletedAt.Format(time.RFC3339))
			}
			return nil
		},
	}
}

// fetchSweep retrieves one sweep plus its live status, when still live.
func fetchSweep(id string) (*model.Sweep, *scheduler.Status, error) {
	resp, err := client.Get("/api/v1/sweeps/" + id)
	if err != nil {
		return nil, nil, fmt.Errorf("get sweep: %w", err)
	}

	var data struct {
		Sweep  *model.Sweep      `json:"sweep"`
		Status *scheduler.Status `json:"status"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return nil, nil, fmt.Errorf("parse response: %w", err)
	}
	if data.Sweep == nil {
		return nil, nil, fmt.Errorf("response missing sweep")
	}
	return data.Sweep, data.Status, nil
}
