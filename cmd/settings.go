package cmd

import (
	"github.com/spf13/cobra"

	"github.com/caedis/mtg-installer/internal/logging"
	"github.com/caedis/mtg-installer/internal/settings"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change saved settings",
	Long: `Saved settings provide defaults for the command line flags. They are
stored in settings.toml next to custom-components.yml.`,
	Args: usageArgs(cobra.NoArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		logging.Infof("Settings file: %s\n\n", settings.Path())
		logging.Infof("%s", saved.Describe())
		return nil
	},
}

var settingsGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print one setting",
	Args:  usageArgs(cobra.ExactArgs(1)),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := saved.Get(args[0])
		if err != nil {
			return wrapUsageError(err)
		}
		logging.Infoln(v)
		return nil
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> [value]",
	Short: "Change one setting",
	Long:  "Change one setting. Omitting the value clears a path or list setting.",
	Args:  usageArgs(cobra.RangeArgs(1, 2)),
	RunE: func(cmd *cobra.Command, args []string) error {
		value := ""
		if len(args) == 2 {
			value = args[1]
		}
		if err := saved.Set(args[0], value); err != nil {
			return wrapUsageError(err)
		}
		if err := saved.Save(); err != nil {
			return err
		}
		logging.Infof("%s saved to %s\n", args[0], settings.Path())
		return nil
	},
}

func init() {
	settingsCmd.AddCommand(settingsGetCmd, settingsSetCmd)
	rootCmd.AddCommand(settingsCmd)
}
