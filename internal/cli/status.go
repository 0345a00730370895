package cli

import (
	"fmt"

	"github.com/goliatone/go-wizard"
	"github.com/spf13/cobra"
)

func statusCmd(a *app) *cobra.Command {
	var tabs bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show completion per section, the active scenario and staged photos",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			s := a.store.State()
			evaluation := a.engine.Evaluate(s)

			fmt.Fprintf(w, "Session %s  (v%d)\n", idColor.Sprint(a.session), s.Version)
			fmt.Fprintf(w, "Overall  %s\n\n", bar(evaluation.Overall()))

			for _, section := range evaluation.Report() {
				label := section.Label
				if label == "" {
					label = section.ID
				}
				marker := " "
				if _, done := s.SectionCompletedAt[section.ID]; done {
					marker = doneColor.Sprint("✓")
				}
				if !section.Tracked {
					fmt.Fprintf(w, "%s %-22s %s\n", marker, label, dimColor.Sprint("not tracked"))
					continue
				}
				fmt.Fprintf(w, "%s %-22s %s\n", marker, label, bar(section.Percent))
				if !tabs {
					continue
				}
				for _, tab := range section.Tabs {
					if !tab.Applicable {
						fmt.Fprintf(w, "    %-20s %s\n", tab.Label, dimColor.Sprint("n/a"))
						continue
					}
					fmt.Fprintf(w, "    %-20s %s\n", tab.Label, bar(tab.Percent))
				}
			}

			fmt.Fprintln(w)
			if scenario, ok := wizard.ActiveScenario(s); ok {
				state := "open"
				if wizard.IsScenarioComplete(s, scenario.ID) {
					state = doneColor.Sprint("concluded")
				}
				fmt.Fprintf(w, "Active scenario: %s %s [%s]\n", scenario.Name, dimColor.Sprintf("(%s)", scenario.ID), state)
			}
			if staged := len(s.StagingPhotos); staged > 0 {
				fmt.Fprintf(w, "Staged photos: %d, used slots: %v\n", staged, wizard.UsedSlots(s))
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&tabs, "tabs", "t", false, "break sections down by tab")
	return cmd
}
