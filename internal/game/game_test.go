package game

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/caedis/mtg-installer/internal/plugins"
)

func writeVersion(t *testing.T, inst *Installation, content string) {
	t.Helper()
	if err := os.MkdirAll(inst.StreamingAssetsDir, 0o755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(inst.StreamingAssetsDir, "version.txt"), []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
}

func TestNewLayout(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		exe         string
		platform    plugins.Platform
		wantManaged string
	}{
		{
			name:        "linux",
			exe:         filepath.Join("games", "EtG", "EtG.x86_64"),
			platform:    plugins.Linux,
			wantManaged: filepath.Join("games", "EtG", "EtG_Data", "Managed"),
		},
		{
			name:        "windows",
			exe:         filepath.Join("games", "EtG", "EtG.exe"),
			platform:    plugins.Windows,
			wantManaged: filepath.Join("games", "EtG", "EtG_Data", "Managed"),
		},
		{
			name:        "mac",
			exe:         filepath.Join("EtG_OSX.app", "Contents", "MacOS", "EtG_OSX"),
			platform:    plugins.Mac,
			wantManaged: filepath.Join("EtG_OSX.app", "Contents", "Resources", "Data", "Managed"),
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			inst, err := New(tt.exe, tt.platform)
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}
			if inst.ManagedDir != tt.wantManaged {
				t.Fatalf("ManagedDir=%q want %q", inst.ManagedDir, tt.wantManaged)
			}
			if inst.PatchedExePath() != filepath.Join(filepath.Dir(tt.exe), "EtG.patched") {
				t.Fatalf("unexpected patched exe path %q", inst.PatchedExePath())
			}
		})
	}
}

func TestNewUnknownPlatform(t *testing.T) {
	t.Parallel()
	if _, err := New("EtG.exe", plugins.Unknown); err == nil {
		t.Fatalf("expected error for unknown platform")
	}
}

func TestOpenRequiresManagedDir(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	exe := filepath.Join(root, "EtG.x86_64")
	if err := os.WriteFile(exe, []byte("exe"), 0o755); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	if _, err := Open(exe, plugins.Linux); err == nil {
		t.Fatalf("expected error without managed dir")
	}

	if err := os.MkdirAll(filepath.Join(root, "EtG_Data", "Managed"), 0o755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	if _, err := Open(exe, plugins.Linux); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
}

func TestVersion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		content  string
		want     string
		wantName string
	}{
		{name: "single line", content: "2.1.9\n", want: "2.1.9", wantName: "2.1.9"},
		{name: "name and version", content: "Advanced Gungeons & Draguns\r\n2.1.9\r\n", want: "2.1.9", wantName: "Advanced Gungeons & Draguns"},
		{name: "empty", content: "", want: CorruptedVersion, wantName: CorruptedVersion},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			inst, err := New(filepath.Join(t.TempDir(), "EtG.x86_64"), plugins.Linux)
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}
			writeVersion(t, inst, tt.content)

			got, err := inst.Version()
			if err != nil {
				t.Fatalf("Version failed: %v", err)
			}
			if got != tt.want {
				t.Fatalf("Version()=%q want %q", got, tt.want)
			}
			name, err := inst.VersionName()
			if err != nil {
				t.Fatalf("VersionName failed: %v", err)
			}
			if name != tt.wantName {
				t.Fatalf("VersionName()=%q want %q", name, tt.wantName)
			}
		})
	}
}

func TestHasLegacyMod(t *testing.T) {
	t.Parallel()

	inst, err := New(filepath.Join(t.TempDir(), "EtG.exe"), plugins.Windows)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if inst.HasLegacyMod() {
		t.Fatalf("unexpected legacy mod")
	}
	if err := os.MkdirAll(filepath.Join(inst.ManagedDir, "ModBackup"), 0o755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	if !inst.HasLegacyMod() {
		t.Fatalf("expected legacy mod to be detected")
	}
}
