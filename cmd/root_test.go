package cmd

import (
	"errors"
	"io"
	"testing"

	"github.com/spf13/cobra"

	"github.com/caedis/mtg-installer/internal/logging"
	"github.com/caedis/mtg-installer/internal/settings"
)

func TestUsageArgsWrapsValidationErrors(t *testing.T) {
	wrapped := usageArgs(cobra.ExactArgs(1))
	cmd := &cobra.Command{Use: "test"}

	if err := wrapped(cmd, []string{"ok"}); err != nil {
		t.Fatalf("usageArgs returned unexpected error for valid args: %v", err)
	}

	err := wrapped(cmd, nil)
	if err == nil {
		t.Fatalf("usageArgs should return an error for invalid args")
	}
	if !isUsageError(err) {
		t.Fatalf("usageArgs error should be marked as usage error: %v", err)
	}
}

func TestIsUsageError(t *testing.T) {
	if !isUsageError(wrapUsageError(errors.New("bad args"))) {
		t.Fatalf("wrapped usage error not detected")
	}
	if !isUsageError(errors.New(`unknown command "foo" for "mtg-installer"`)) {
		t.Fatalf("unknown command error should be treated as usage error")
	}
	if isUsageError(errors.New("runtime failure")) {
		t.Fatalf("runtime failure should not be treated as usage error")
	}
}

func TestSettingsSetAppliesToFlags(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(settings.EnvConfigDir, dir)
	logging.SetOutput(io.Discard)

	rootCmd.SetArgs([]string{"settings", "set", "offline", "true"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("settings set failed: %v", err)
	}

	s, err := settings.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !s.Offline {
		t.Fatalf("offline was not saved")
	}

	offline = false
	rootCmd.SetArgs([]string{"settings", "get", "offline"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("settings get failed: %v", err)
	}
	if !offline {
		t.Fatalf("saved offline setting should apply to the --offline flag")
	}

	rootCmd.SetArgs([]string{"settings", "set", "no-such-key", "1"})
	if err := rootCmd.Execute(); !isUsageError(err) {
		t.Fatalf("unknown key should be a usage error, got %v", err)
	}
}
