package cmd

import (
	"github.com/spf13/cobra"
)

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "sd",
		Short:         "schoolday (sd): timetable, homework, grades and messages from the terminal",
		Long:          "sd keeps a local copy of your school timetable, homework, grades and messages. Data is refreshed only when it is stale, so repeated commands stay fast and work offline.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	app, err := wireApp()
	if err != nil {
		rootCmd.RunE = func(_ *cobra.Command, _ []string) error {
			return err
		}
		return rootCmd
	}

	flags := rootCmd.PersistentFlags()
	flags.BoolVar(&app.flags.offline, "offline", false, "Never contact the backend; use cached data only")
	flags.BoolVar(&app.flags.verbose, "verbose", false, "Log debug output to stderr")
	flags.BoolVar(&app.flags.force, "force", false, "Ignore cached freshness and refetch")

	rootCmd.PersistentPreRunE = func(_ *cobra.Command, _ []string) error {
		return app.setupLogger()
	}

	rootCmd.AddCommand(
		newVersionCmd(),
		newProfileCmd(app),
		newAuthCmd(app),
		newWeekCmd(app),
		newHomeworkCmd(app),
		newGradesCmd(app),
		newMessagesCmd(app),
		newSyncCmd(app),
		newCallsCmd(app),
		newDeltaCmd(app),
	)

	return rootCmd
}
