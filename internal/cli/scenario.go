package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-wizard"
	"github.com/spf13/cobra"
)

func scenarioCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scenario",
		Short: "Manage valuation scenarios",
	}

	var required bool
	add := &cobra.Command{
		Use:   "add <name> [approach...]",
		Short: "Add a scenario with its approaches (sales, income, cost)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scenario := wizard.NewScenario(args[0], args[1:]...)
			scenario.IsRequired = required
			if err := a.store.Dispatch(wizard.AddScenario{Scenario: scenario}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added scenario %s %s\n", scenario.Name, idColor.Sprint(scenario.ID))
			return nil
		},
	}
	add.Flags().BoolVar(&required, "required", false, "count this scenario toward overall completion")
	cmd.AddCommand(add)

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List scenarios and their approach values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			s := a.store.State()
			for _, scenario := range s.Scenarios {
				marker := " "
				if scenario.ID == s.ActiveScenarioID {
					marker = "*"
				}
				fmt.Fprintf(w, "%s %s %s\n", marker, scenario.Name, dimColor.Sprintf("(%s)", scenario.ID))
				for _, approach := range scenario.Approaches {
					conclusion := s.ApproachValues[scenario.ID][approach]
					switch {
					case conclusion.HasValue():
						fmt.Fprintf(w, "    %-8s %s\n", approach, doneColor.Sprintf("%.2f", *conclusion.Value))
					case conclusion.Value != nil:
						fmt.Fprintf(w, "    %-8s %s\n", approach, partColor.Sprintf("%.2f (draft)", *conclusion.Value))
					default:
						fmt.Fprintf(w, "    %-8s %s\n", approach, dimColor.Sprint("-"))
					}
				}
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "activate <id|name>",
		Short: "Make a scenario the active one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := findScenarioID(a.store.State(), args[0])
			if err != nil {
				return err
			}
			return a.store.Dispatch(wizard.SetActiveScenario{ID: id})
		},
	})

	var (
		scenarioRef string
		draft       bool
	)
	conclude := &cobra.Command{
		Use:   "conclude <approach> <value>",
		Short: "Record an approach value for the active scenario",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := a.store.State()
			id := s.ActiveScenarioID
			if scenarioRef != "" {
				var err error
				if id, err = findScenarioID(s, scenarioRef); err != nil {
					return err
				}
			}
			value, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("value %q: %w", args[1], err)
			}
			return a.store.Dispatch(wizard.SetApproachMap{
				ScenarioID: id,
				Approach:   args[0],
				Value:      &value,
				Concluded:  !draft,
				At:         time.Now().UTC(),
			})
		},
	}
	conclude.Flags().StringVar(&scenarioRef, "scenario", "", "scenario id or name (defaults to the active one)")
	conclude.Flags().BoolVar(&draft, "draft", false, "record the value without concluding it")
	cmd.AddCommand(conclude)
	return cmd
}

func findScenarioID(s wizard.State, ref string) (string, error) {
	if scenario, ok := wizard.FindScenario(s, ref); ok {
		return scenario.ID, nil
	}
	for _, scenario := range s.Scenarios {
		if strings.EqualFold(scenario.Name, ref) {
			return scenario.ID, nil
		}
	}
	return "", fmt.Errorf("no scenario %q", ref)
}
