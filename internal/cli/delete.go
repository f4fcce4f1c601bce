package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <sweep_id>",
		Short: "Stop a sweep and destroy its run environments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]

			resp, err := client.Delete("/api/v1/sweeps/" + id)
			if err != nil {
				return fmt.Errorf("delete sweep: %w", err)
			}

			var data struct {
				ID            string   `json:"id"`
				EnvsDestroyed []string `json:"envs_destroyed"`
			}
			if err := json.Unmarshal(resp.Data, &data); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}

			fmt.Printf("Sweep %s deleted (%d environments destroyed)\n", data.ID, len(data.EnvsDestroyed))
			return nil
		},
	}
}
