package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/caedis/mtg-installer/internal/installer"
	"github.com/caedis/mtg-installer/internal/logging"
)

var (
	downloadForce bool
	downloadDir   string
)

var downloadCmd = &cobra.Command{
	Use:   "download <component>[@version]",
	Short: "Download and extract a component version",
	Long: `Download a component version and extract it into a folder named after
the version. The folder is kept so its contents can be inspected.`,
	Args: usageArgs(cobra.ExactArgs(1)),
	RunE: func(cmd *cobra.Command, args []string) error {
		reqs, err := installer.ParseRequests(args[0])
		if err != nil {
			return wrapUsageError(err)
		}
		if len(reqs) != 1 {
			return wrapUsageError(errTooManyComponents)
		}

		build, err := newFrontend().Download(context.Background(), reqs[0], downloadDir, downloadForce)
		if err != nil {
			return err
		}
		logging.Infof("Extracted to %s\n", build.ExtractedPath)
		return nil
	},
}

func init() {
	downloadCmd.Flags().BoolVarP(&downloadForce, "force", "f", false, "Replace an existing download folder")
	downloadCmd.Flags().StringVarP(&downloadDir, "dir", "d", ".", "Directory to download into")
	rootCmd.AddCommand(downloadCmd)
}
