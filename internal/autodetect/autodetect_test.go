package autodetect

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/caedis/mtg-installer/internal/plugins"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o755); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
}

func noSteam(context.Context) string { return "" }

func TestExeName(t *testing.T) {
	tests := []struct {
		platform plugins.Platform
		arch     plugins.Arch
		want     string
	}{
		{plugins.Linux, plugins.Arch32, "EtG.x86"},
		{plugins.Linux, plugins.Arch64, "EtG.x86_64"},
		{plugins.Windows, plugins.Arch32, "EtG.exe"},
		{plugins.Mac, plugins.Arch64, "EtG_OSX"},
		{plugins.Unknown, plugins.Arch64, ""},
	}
	for _, tt := range tests {
		if got := ExeName(tt.platform, tt.arch); got != tt.want {
			t.Fatalf("ExeName(%v, %v)=%q want %q", tt.platform, tt.arch, got, tt.want)
		}
	}
}

func TestExePathDefaultSteamLibrary(t *testing.T) {
	t.Parallel()

	home := t.TempDir()
	exe := filepath.Join(home, ".local", "share", "Steam", "steamapps", "common", "Enter the Gungeon", "EtG.x86_64")
	touch(t, exe)

	f := &Finder{Platform: plugins.Linux, Arch: plugins.Arch64, Home: home, SteamExe: noSteam}
	if got := f.ExePath(context.Background()); got != exe {
		t.Fatalf("ExePath()=%q want %q", got, exe)
	}
}

func TestExePathRunningSteam(t *testing.T) {
	t.Parallel()

	root := filepath.Join(t.TempDir(), "custom", "Steam")
	exe := filepath.Join(root, "SteamApps", "common", "Enter the Gungeon", "EtG.x86_64")
	touch(t, exe)

	f := &Finder{
		Platform: plugins.Linux,
		Arch:     plugins.Arch64,
		Home:     t.TempDir(),
		SteamExe: func(context.Context) string {
			return filepath.Join(root, "ubuntu12_32", "steam")
		},
	}
	if got := f.ExePath(context.Background()); got != exe {
		t.Fatalf("ExePath()=%q want %q", got, exe)
	}
}

func TestExePathGOG(t *testing.T) {
	t.Parallel()

	home := t.TempDir()
	exe := filepath.Join(home, "GOG Games", "Enter the Gungeon", "EtG.x86")
	touch(t, exe)

	f := &Finder{Platform: plugins.Linux, Arch: plugins.Arch32, Home: home, SteamExe: noSteam}
	if got := f.ExePath(context.Background()); got != exe {
		t.Fatalf("ExePath()=%q want %q", got, exe)
	}
}

func TestExePathNothingFound(t *testing.T) {
	t.Parallel()

	f := &Finder{Platform: plugins.Linux, Arch: plugins.Arch64, Home: t.TempDir(), SteamExe: noSteam}
	if got := f.ExePath(context.Background()); got != "" {
		t.Fatalf("ExePath()=%q want empty", got)
	}
}

func TestSteamDirMac(t *testing.T) {
	t.Parallel()

	home := t.TempDir()
	steam := filepath.Join(home, "Library", "Application Support", "Steam")
	if err := os.MkdirAll(filepath.Join(steam, "SteamApps"), 0o755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}

	f := &Finder{Platform: plugins.Mac, Home: home, SteamExe: noSteam}
	want := filepath.Join(steam, "SteamApps", "common", "Enter the Gungeon", "EtG_OSX.app", "Contents", "MacOS")
	if got := f.SteamDir(context.Background()); got != want {
		t.Fatalf("SteamDir()=%q want %q", got, want)
	}
}

func TestSteamRootFromCefHelper(t *testing.T) {
	t.Parallel()

	f := &Finder{Platform: plugins.Linux}
	got := f.steamRootFromExe(filepath.Join("/home/u/.steam", "ubuntu12_64", "steamwebhelper_cef", "steamwebhelper"))
	if got != "/home/u/.steam" {
		t.Fatalf("steamRootFromExe=%q", got)
	}
}
