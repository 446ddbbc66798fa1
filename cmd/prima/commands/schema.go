package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the record schema sent to the model",
	Long: `Print the JSON Schema used for structured output and the field
description embedded in every prompt.

Examples:
  prima schema
  prima schema --json
  prima schema -s custom_schema.yaml`,
	Args: cobra.NoArgs,
	RunE: runSchema,
}

func init() {
	rootCmd.AddCommand(schemaCmd)

	schemaCmd.Flags().StringP("schema", "s", "", "custom record schema file (JSON or YAML)")
	schemaCmd.Flags().Bool("json", false, "print only the JSON Schema")
}

func runSchema(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("schema")
	jsonOnly, _ := cmd.Flags().GetBool("json")

	s, err := loadSchema(path)
	if err != nil {
		return fmt.Errorf("failed to load schema: %w", err)
	}

	js, err := s.ToJSONSchema()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(js, "", "  ")
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOnly {
		_, err = fmt.Fprintln(out, string(data))
		return err
	}
	_, err = fmt.Fprintf(out, "# JSON Schema (%s)\n\n%s\n\n# Prompt description\n\n%s\n", s.Name, data, s.ToPromptDescription())
	return err
}
