package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tracklab/ingest/internal/app"
	"github.com/tracklab/ingest/internal/ingest"
)

func newRunCmd() *cobra.Command {
	var (
		maxSizeMB        int
		timeoutSeconds   int
		qualityThreshold float64
		filename         string
	)

	cmd := &cobra.Command{
		Use:   "run <url>",
		Short: "Ingest a single URL and print the result as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			a, err := app.New(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("initialize services: %w", err)
			}
			defer a.Close()

			req := ingest.SourceRequest{
				URL:              args[0],
				Filename:         filename,
				QualityThreshold: qualityThreshold,
			}
			if maxSizeMB > 0 {
				req.MaxBytes = int64(maxSizeMB) * 1024 * 1024
			}
			if timeoutSeconds > 0 {
				req.Timeout = time.Duration(timeoutSeconds) * time.Second
			}

			result, err := a.Pipeline.Run(cmd.Context(), req)
			if err != nil {
				var ie *ingest.Error
				if errors.As(err, &ie) {
					return fmt.Errorf("%s: %w", ie.Kind, err)
				}
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}

	cmd.Flags().IntVar(&maxSizeMB, "max-size-mb", 0, "byte budget override in MB")
	cmd.Flags().IntVar(&timeoutSeconds, "timeout-seconds", 0, "wall-clock budget override")
	cmd.Flags().Float64Var(&qualityThreshold, "quality-threshold", 0, "minimum acceptable quality score")
	cmd.Flags().StringVar(&filename, "filename", "", "filename hint used for metadata fallback")

	return cmd
}
