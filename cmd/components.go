package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/caedis/mtg-installer/internal/autodetect"
	"github.com/caedis/mtg-installer/internal/logging"
)

var errTooManyComponents = errors.New("expected a single component")

var componentsCmd = &cobra.Command{
	Use:   "components",
	Short: "List available components",
	Args:  usageArgs(cobra.NoArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog, err := newFrontend().Catalog(context.Background())
		if err != nil {
			return err
		}
		comps := catalog.Components()
		if len(comps) == 0 {
			logging.Infoln("No components available.")
			return nil
		}
		for _, c := range comps {
			logging.Infof("%s by %s\n", c.Name, c.Author)
			if c.Description != "" {
				logging.Infof("  %s\n", c.Description)
			}
		}
		return nil
	},
}

var componentCmd = &cobra.Command{
	Use:   "component <name>",
	Short: "Show a component and its versions",
	Args:  usageArgs(cobra.ExactArgs(1)),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		catalog, err := newFrontend().Catalog(ctx)
		if err != nil {
			return err
		}
		comp := catalog.Component(args[0])
		if comp == nil {
			return fmt.Errorf("component %s doesn't exist in the list of components", args[0])
		}
		versions, err := catalog.Versions(ctx, comp)
		if err != nil {
			return err
		}

		logging.Infof("%s by %s\n", comp.Name, comp.Author)
		if comp.Description != "" {
			logging.Infof("%s\n", comp.Description)
		}
		logging.Infoln("Versions:")
		for i := range versions {
			logging.Infof("  %s\n", versions[i].String())
			if versions[i].SupportedGungeon != "" {
				logging.Debugf("Verbose:     supports game version %s\n", versions[i].SupportedGungeon)
			}
		}
		return nil
	},
}

var autodetectCmd = &cobra.Command{
	Use:   "autodetect",
	Short: "Print the detected game executable",
	Args:  usageArgs(cobra.NoArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := autodetect.NewFinder().ExePath(context.Background())
		if path == "" {
			return errors.New("couldn't find a game installation")
		}
		logging.Infoln(path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(componentsCmd, componentCmd, autodetectCmd)
}
