package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/caedis/mtg-installer/internal/installer"
	"github.com/caedis/mtg-installer/internal/logging"
	"github.com/caedis/mtg-installer/internal/patchengine"
	"github.com/caedis/mtg-installer/internal/settings"
)

var (
	executable        string
	forceHTTP         bool
	offline           bool
	skipVersionChecks bool
	forceBackup       bool
	leavePatchDLLs    bool
	customComponents  []string
	verbose           bool
	logFile           string

	// saved is loaded before every command.
	saved *settings.Settings
)

var rootCmd = &cobra.Command{
	Use:           "mtg-installer",
	Short:         "Installer for Enter the Gungeon mod components",
	Long:          "Download Mod the Gungeon components and install them into an Enter the Gungeon installation, with a vanilla backup to restore from.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logging.SetVerbose(verbose)
		if err := logging.SetOutputFile(logFile); err != nil {
			return fmt.Errorf("opening log file %q: %w", logFile, err)
		}

		s, err := settings.Load()
		if err != nil {
			return err
		}
		saved = s

		// Saved settings apply to flags not explicitly set by the user.
		flags := cmd.Flags()
		if !flags.Changed("executable") {
			executable = s.ExecutablePath
		}
		if !flags.Changed("force-http") {
			forceHTTP = s.ForceHTTP
		}
		if !flags.Changed("offline") {
			offline = s.Offline
		}
		if !flags.Changed("skip-version-checks") {
			skipVersionChecks = s.SkipVersionChecks
		}
		if !flags.Changed("force-backup") {
			forceBackup = s.ForceBackup
		}
		if !flags.Changed("leave-patch-dlls") {
			leavePatchDLLs = s.LeavePatchDLLs
		}
		logging.Debugf("Verbose: settings loaded from %s\n", settings.Path())
		return nil
	},
}

func Execute() {
	err := rootCmd.Execute()
	closeErr := logging.Close()
	if closeErr != nil {
		fmt.Fprintf(os.Stderr, "Error closing log file: %v\n", closeErr)
		if err == nil {
			os.Exit(1)
		}
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if isUsageError(err) {
			if cmd, _, findErr := rootCmd.Find(os.Args[1:]); findErr == nil && cmd != nil {
				_ = cmd.Usage()
			} else {
				_ = rootCmd.Usage()
			}
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return wrapUsageError(err)
	})

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&executable, "executable", "e", "", "Path to the game executable (default: saved setting, then autodetect)")
	flags.BoolVar(&forceHTTP, "force-http", false, "Download over HTTP instead of HTTPS")
	flags.BoolVar(&offline, "offline", false, "Skip the official component list")
	flags.BoolVar(&skipVersionChecks, "skip-version-checks", false, "Install components even if they target another game version")
	flags.BoolVar(&forceBackup, "force-backup", false, "Take a fresh backup instead of restoring the old one")
	flags.BoolVar(&leavePatchDLLs, "leave-patch-dlls", false, "Keep patch assemblies in the managed directory after patching")
	flags.StringSliceVarP(&customComponents, "custom-components", "c", nil, "Extra component list files to merge")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	flags.StringVar(&logFile, "log-file", "", "Write command output to a log file")
}

// newFrontend builds an installer from the flags and saved settings.
func newFrontend() *installer.Frontend {
	opts := installer.Options{
		SkipVersionChecks: skipVersionChecks,
		ForceBackup:       forceBackup,
		ForceHTTP:         forceHTTP,
		LeavePatchDLLs:    leavePatchDLLs,
		Offline:           offline,
		ExecutablePath:    executable,
		Progress:          true,

		DefaultComponentFile: settings.CustomComponentsPath(),
	}
	if saved != nil {
		opts.CustomComponentFiles = append(opts.CustomComponentFiles, saved.CustomComponentFiles...)
		if len(saved.PatchEngine) > 0 {
			opts.PatchEngine = &patchengine.Process{Command: saved.PatchEngine}
		}
	}
	opts.CustomComponentFiles = append(opts.CustomComponentFiles, customComponents...)
	return installer.New(opts)
}

type usageError struct {
	err error
}

func (e *usageError) Error() string {
	return e.err.Error()
}

func (e *usageError) Unwrap() error {
	return e.err
}

func wrapUsageError(err error) error {
	if err == nil {
		return nil
	}
	return &usageError{err: err}
}

func usageArgs(validate cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if validate == nil {
			return nil
		}
		if err := validate(cmd, args); err != nil {
			return wrapUsageError(err)
		}
		return nil
	}
}

func isUsageError(err error) bool {
	var ue *usageError
	if errors.As(err, &ue) {
		return true
	}

	msg := err.Error()
	return strings.HasPrefix(msg, "unknown command ")
}
