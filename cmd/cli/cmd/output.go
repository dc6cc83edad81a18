package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Output formats accepted by -o.
const (
	outputText = "text"
	outputJSON = "json"
	outputYAML = "yaml"
)

// printStructured writes v as JSON or YAML. It reports false for the text
// format so the caller renders its own view.
func printStructured(cmd *cobra.Command, format string, v any) (bool, error) {
	switch format {
	case outputJSON:
		out, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return true, fmt.Errorf("failed to encode json: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return true, nil
	case outputYAML:
		out, err := yaml.Marshal(v)
		if err != nil {
			return true, fmt.Errorf("failed to encode yaml: %w", err)
		}
		fmt.Fprint(cmd.OutOrStdout(), string(out))
		return true, nil
	case outputText, "":
		return false, nil
	default:
		return true, fmt.Errorf("unknown output format %q (text, json, yaml)", format)
	}
}
