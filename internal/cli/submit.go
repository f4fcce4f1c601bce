package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/me/gosweep/internal/config"
	"github.com/me/gosweep/pkg/model"
	"github.com/spf13/cobra"
)

func newSubmitCmd() *cobra.Command {
	var watch bool
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "submit <sweep.yaml>",
		Short: "Submit a parameter sweep for execution",
		Long:  "Load a sweep definition, attach the model artifact, and submit to the gosweep daemon.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sweepPath := args[0]

			def, err := config.LoadSweep(sweepPath)
			if err != nil {
				return fmt.Errorf("load sweep: %w", err)
			}
			logger.Debug("sweep loaded", "name", def.Name, "total_runs", def.TotalRuns())

			// The model path is relative to the sweep file, not to the
			// daemon's filesystem, so ship the artifact inline.
			modelPath := def.ModelPath
			if !filepath.IsAbs(modelPath) {
				modelPath = filepath.Join(filepath.Dir(sweepPath), modelPath)
			}
			modelData, err := os.ReadFile(modelPath)
			if err != nil {
				return fmt.Errorf("read model: %w", err)
			}

			req := map[string]any{
				"name":         def.Name,
				"model":        def.ModelPath,
				"model_data":   string(modelData),
				"parameters":   def.Parameters,
				"replicates":   def.Replicates,
				"max_parallel": def.MaxParallel,
				"tags":         def.Tags,
			}
			resp, err := client.Post("/api/v1/sweeps/", req)
			if err != nil {
				return fmt.Errorf("create sweep: %w", err)
			}

			var data struct {
				Sweep model.Sweep `json:"sweep"`
			}
			if err := json.Unmarshal(resp.Data, &data); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}

			fmt.Printf("Sweep created: %s (%d runs, max %d in parallel)\n",
				data.Sweep.ID, data.Sweep.TotalRuns, data.Sweep.MaxParallel)

			if !watch {
				return nil
			}
			return watchSweep(data.Sweep.ID, interval)
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Poll status until the sweep finishes")
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "Watch poll interval")
	return cmd
}

// watchSweep polls the sweep until it reaches a terminal phase.
func watchSweep(id string, interval time.Duration) error {
	for {
		sweep, status, err := fetchSweep(id)
		if err != nil {
			return err
		}

		phase := sweep.Phase
		if status != nil {
			phase = status.Phase
			fmt.Printf("  %s: %d/%d done (%.0f%%)\n",
				phase, status.Summary.Completed+status.Summary.Failed,
				status.Summary.Total, status.Percentage)
		} else {
			fmt.Printf("  %s\n", phase)
		}

		if phase.IsTerminal() {
			if phase != model.BatchPhaseCompleted {
				return fmt.Errorf("sweep %s ended in phase %s", id, phase)
			}
			return nil
		}
		time.Sleep(interval)
	}
}
