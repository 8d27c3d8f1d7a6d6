package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/teemow/inboxintake/internal/classifier"
	"github.com/teemow/inboxintake/internal/instrumentation"
)

func newClassifyCmd() *cobra.Command {
	var prompt string

	cmd := &cobra.Command{
		Use:   "classify FILE",
		Short: "Classify a local image or PDF",
		Long: `Send a local image or PDF to Gemini and print the classification as JSON.

The file type is taken from the file name extension.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}

			c, err := buildClassifier(cmd.Context(), cfg, &instrumentation.Metrics{})
			if err != nil {
				return err
			}

			res := c.Classify(cmd.Context(), classifier.NewRequest(content, filepath.Base(args[0]), prompt))
			if err := printJSON(cmd, res); err != nil {
				return err
			}
			if res.Failed() {
				return fmt.Errorf("classification failed: %s", res.ErrorMessage)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&prompt, "prompt", "", "Custom instructions replacing the default prompt")
	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
