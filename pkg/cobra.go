package taskmk

import (
	"fmt"
	"sort"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/taskmk/taskmk/pkg/cli/version"
)

type CobraAdapter struct {
	app *Application
}

func NewCobraAdapter(app *Application) *CobraAdapter {
	return &CobraAdapter{
		app: app,
	}
}

// GenerateCommands produces the root command plus one subcommand per
// registered task, so `taskmk <task>` runs that task.
func (p *CobraAdapter) GenerateCommands() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           p.app.Name,
		Short:         "declarative task-graph runner",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	names := p.app.TaskRegistry.TaskNames()
	for _, name := range names {
		task, err := p.app.TaskRegistry.Lookup(name)
		if err != nil {
			// Names come straight out of the registry.
			panic(err)
		}

		taskName := task.Name

		cmd := &cobra.Command{
			Use: taskName,
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := p.app.UpdateLoggingConfiguration(); err != nil {
					return err
				}
				return p.app.RunTask(taskName)
			},
		}
		if task.Description != "" {
			cmd.Short = task.Description
			cmd.Long = task.Description
		}

		log.WithFields(log.Fields{"task": taskName}).Debug("generated command")

		rootCmd.AddCommand(cmd)
	}

	rootCmd.AddCommand(p.ListCmd())
	rootCmd.AddCommand(VersionCmd())

	return rootCmd
}

// ListCmd prints every registered task with its description, aliases
// marked as such.
func (p *CobraAdapter) ListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all tasks defined in the task file",
		RunE: func(cmd *cobra.Command, args []string) error {
			tasks := p.app.Tasks()
			names := make([]string, 0, len(tasks))
			for name := range tasks {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				task := tasks[name]
				line := name
				if task.IsAlias() {
					line = fmt.Sprintf("%s (alias of %v)", name, task.AliasFor)
				}
				if task.Description != "" {
					line = fmt.Sprintf("%s - %s", line, task.Description)
				}
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		},
	}
}

func VersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of this build",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.Get().Version)
		},
	}
}
