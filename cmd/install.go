package cmd

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/caedis/mtg-installer/internal/installer"
	"github.com/caedis/mtg-installer/internal/logging"
)

var installCmd = &cobra.Command{
	Use:   "install <components>",
	Short: "Install components into the game",
	Long: `Install one or more components, restoring the vanilla backup first.
Components are separated by ';' or ',' and take an optional version key
after '@', for example "ETGMod@0.3.0;MyMod". Without a version the newest
one is installed.`,
	Args: usageArgs(cobra.MinimumNArgs(1)),
	RunE: func(cmd *cobra.Command, args []string) error {
		reqs, err := installer.ParseRequests(strings.Join(args, ";"))
		if err != nil {
			return wrapUsageError(err)
		}
		return newFrontend().Install(context.Background(), reqs, executable)
	},
}

var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Restore the game from the vanilla backup",
	Args:  usageArgs(cobra.NoArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		return newFrontend().Uninstall(context.Background(), executable)
	},
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the components installed in the game",
	Args:  usageArgs(cobra.NoArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		installed, err := newFrontend().PatchInfo(context.Background(), executable)
		if err != nil {
			return err
		}
		if len(installed) == 0 {
			logging.Infoln("No components installed.")
			return nil
		}
		logging.Infoln("Installed components:")
		for _, c := range installed {
			logging.Infof("  %s\n", c)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(installCmd, uninstallCmd, infoCmd)
}
