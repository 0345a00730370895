package cli

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-wizard"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func fieldCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "field",
		Short: "Edit session data",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set <subject|reconciliation> <key> <value>",
		Short: "Set a dotted key in the subject or reconciliation data",
		Long: `Set a dotted key, for example:

  wizard field set subject address.street "12 Elm St"
  wizard field set subject site.inFloodArea true
  wizard field set reconciliation finalValue 450000

Values are parsed as YAML scalars, so numbers and booleans keep their type.
The value null removes the key.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := parseValue(args[2])
			if err != nil {
				return err
			}
			values := map[string]any{args[1]: value}
			var act wizard.Action
			switch strings.ToLower(args[0]) {
			case "subject":
				act = wizard.UpdateSubjectData{Values: values}
			case "reconciliation":
				act = wizard.UpdateReconciliationData{Values: values}
			default:
				return fmt.Errorf("unknown tree %q (want subject or reconciliation)", args[0])
			}
			return a.store.Dispatch(act)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "template <name>",
		Short: "Choose the report template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.store.Dispatch(wizard.SetTemplate{Template: args[0]})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "property-type <type> [subtype]",
		Short: "Set the property type and optional subtype",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			act := wizard.SetPropertyType{PropertyType: args[0]}
			if len(args) == 2 {
				act.PropertySubtype = args[1]
			}
			return a.store.Dispatch(act)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "owner <name> [ownership-type] [percentage]",
		Short: "Add an owner",
		Args:  cobra.RangeArgs(1, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			var kind string
			var pct float64
			if len(args) > 1 {
				kind = args[1]
			}
			if len(args) > 2 {
				if _, err := fmt.Sscanf(args[2], "%g", &pct); err != nil {
					return fmt.Errorf("percentage %q: %w", args[2], err)
				}
			}
			return a.store.Dispatch(wizard.AddOwner{Owner: wizard.NewOwner(args[0], kind, pct)})
		},
	})
	return cmd
}

// parseValue reads a command line value as a YAML scalar.
func parseValue(raw string) (any, error) {
	var value any
	if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
		return nil, fmt.Errorf("value %q: %w", raw, err)
	}
	if value == nil && strings.TrimSpace(raw) != "null" && strings.TrimSpace(raw) != "~" {
		// empty input
		return raw, nil
	}
	return value, nil
}
