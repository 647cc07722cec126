package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/Orbit/backend/internal/domain/automation"
)

// NewTemplatesCommand creates the templates command group.
func NewTemplatesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "Inspect workflow templates",
	}

	var dir string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List built-in templates and those found in --dir",
		RunE: func(cmd *cobra.Command, args []string) error {
			templates, err := automation.BuiltinTemplates()
			if err != nil {
				return fmt.Errorf("failed to load built-in templates: %w", err)
			}
			if dir != "" {
				extra, err := automation.LoadTemplateDir(dir)
				if err != nil {
					return err
				}
				templates = append(templates, extra...)
			}
			printTemplates(cmd, templates)
			return nil
		},
	}
	listCmd.Flags().StringVar(&dir, "dir", "", "additional templates directory")

	validateCmd := &cobra.Command{
		Use:   "validate DIR",
		Short: "Parse every template below DIR and report failures",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			templates, err := automation.LoadTemplateDir(args[0])
			fmt.Fprintf(cmd.OutOrStdout(), "%d valid template(s)\n", len(templates))
			if err != nil {
				return fmt.Errorf("invalid templates:\n%w", err)
			}
			return nil
		},
	}

	cmd.AddCommand(listCmd, validateCmd)
	return cmd
}

func printTemplates(cmd *cobra.Command, templates []automation.Template) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tCATEGORY\tACTIONS")
	for _, t := range templates {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", t.ID(), t.Input.Name, t.Input.Category, len(t.Input.Actions))
	}
	_ = w.Flush()
}
