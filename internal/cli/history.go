package cli

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/me/gosweep/pkg/model"
	"github.com/spf13/cobra"
)

func newHistoryCmd() *cobra.Command {
	var modelPath string
	var tags []string
	var since string
	var until string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Query persisted result history",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			if modelPath != "" {
				q.Set("model", modelPath)
			}
			if len(tags) > 0 {
				q.Set("tags", strings.Join(tags, ","))
			}
			if since != "" {
				q.Set("since", since)
			}
			if until != "" {
				q.Set("until", until)
			}

			path := "/api/v1/history"
			if len(q) > 0 {
				path += "?" + q.Encode()
			}
			resp, err := client.Get(path)
			if err != nil {
				return fmt.Errorf("query history: %w", err)
			}

			var entries []*model.HistoryEntry
			if err := json.Unmarshal(resp.Data, &entries); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}

			if len(entries) == 0 {
				fmt.Println("No history entries found.")
				return nil
			}

			for _, e := range entries {
				params, _ := json.Marshal(e.Parameters)
				fmt.Printf("%s  %-14s  %-20s  %s\n",
					e.CreatedAt.Format("2006-01-02 15:04:05"), e.SweepID, e.ModelPath, string(params))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&modelPath, "model", "", "Filter by model path")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "Filter by tag (repeatable; all must match)")
	cmd.Flags().StringVar(&since, "since", "", "Only entries at or after this RFC3339 time")
	cmd.Flags().StringVar(&until, "until", "", "Only entries at or before this RFC3339 time")
	return cmd
}
