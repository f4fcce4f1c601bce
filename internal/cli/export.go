package cli

import (
	"fmt"
	"net/url"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

func newExportCmd() *cobra.Command {
	var run int
	var format string
	var output string
	var delimiter string
	var pretty bool
	var maxRows int

	cmd := &cobra.Command{
		Use:   "export <sweep_id>",
		Short: "Download a run's results as CSV, JSON, or HTML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]

			q := url.Values{}
			q.Set("run", strconv.Itoa(run))
			q.Set("format", format)
			if delimiter != "" {
				q.Set("delimiter", delimiter)
			}
			if pretty {
				q.Set("pretty", "true")
			}
			if maxRows > 0 {
				q.Set("max_rows", strconv.Itoa(maxRows))
			}

			body, _, err := client.GetRaw("/api/v1/sweeps/" + id + "/export?" + q.Encode())
			if err != nil {
				return fmt.Errorf("export: %w", err)
			}

			if output == "" || output == "-" {
				_, err = os.Stdout.Write(body)
				return err
			}
			if err := os.WriteFile(output, body, 0o644); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			fmt.Printf("Wrote %d bytes to %s\n", len(body), output)
			return nil
		},
	}

	cmd.Flags().IntVar(&run, "run", 0, "Run index within the sweep")
	cmd.Flags().StringVarP(&format, "format", "f", "csv", "Output format (csv, json, html)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default: stdout)")
	cmd.Flags().StringVar(&delimiter, "delimiter", "", "CSV delimiter (default comma)")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "Indent JSON output")
	cmd.Flags().IntVar(&maxRows, "max-rows", 0, "Cap HTML table rows")
	return cmd
}
