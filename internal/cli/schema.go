package cli

import (
	"encoding/json"
	"fmt"

	"github.com/goliatone/go-wizard"
	"github.com/goliatone/go-wizard/pkg/completion"
	"github.com/goliatone/go-wizard/schema/openapi"
	"github.com/spf13/cobra"
)

func schemaCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Inspect the completion schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "paths",
		Short: "List every required field path and whether it is filled",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			evaluation := a.engine.Evaluate(a.store.State())
			for _, path := range a.engine.Schema().Paths() {
				marker := emptyColor.Sprint("✗")
				if evaluation.Field(path) {
					marker = doneColor.Sprint("✓")
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", marker, path)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Print the built-in schema as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := cmd.OutOrStdout().Write(completion.DefaultSchemaYAML())
			return err
		},
	})

	var title string
	openapiCmd := &cobra.Command{
		Use:   "openapi",
		Short: "Print an OpenAPI description of the session document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := openapi.Generate(a.engine.Schema(), openapi.WithInfo(title, "", ""))
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(doc)
		},
	}
	openapiCmd.Flags().StringVar(&title, "title", "", "document title")
	cmd.AddCommand(openapiCmd)
	return cmd
}

func resetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Discard the session and start over",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.store.Dispatch(wizard.ResetWizard{}); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "session reset")
			return nil
		},
	}
}
