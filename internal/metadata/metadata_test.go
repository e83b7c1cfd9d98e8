package metadata

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const componentsYAML = `
- name: ETGMod
  author: ETGMod Team
  description: Backend for mods
  versions:
    - key: "0.3.0"
      name: ETGMod Reloaded
      url: https://example.invalid/etgmod-0.3.0.zip
      release_date: 2018-05-01
      supported_gungeon: "2.1.9"
      requires_exe_patch: true
    - key: "0.3.1"
      name: ETGMod Reloaded Beta
      url: https://example.invalid/etgmod-0.3.1.zip
      beta: true
- name: Remote
  versions_url: https://example.invalid/remote.yml
`

func TestParseComponents(t *testing.T) {
	t.Parallel()

	comps, err := ParseComponents([]byte(componentsYAML))
	require.NoError(t, err)
	require.Len(t, comps, 2)

	etgmod := comps[0]
	assert.Equal(t, "ETGMod", etgmod.Name)
	require.Len(t, etgmod.Versions, 2)
	assert.Equal(t, "2.1.9", etgmod.Versions[0].SupportedGungeon)
	assert.True(t, etgmod.Versions[0].RequiresExePatch)
	assert.True(t, etgmod.Versions[1].Beta)
	assert.Equal(t, "[0.3.1 β] ETGMod Reloaded Beta (N/A)", etgmod.Versions[1].String())

	remote := comps[1]
	assert.Equal(t, "(Unknown)", remote.Author)
	assert.Equal(t, "(Missing)", remote.Description)
	assert.Equal(t, "https://example.invalid/remote.yml", remote.VersionsURL)
	assert.Empty(t, remote.Versions)
}

func TestParseComponentsRejectsMissingName(t *testing.T) {
	t.Parallel()

	_, err := ParseComponents([]byte("- author: nobody\n"))
	require.Error(t, err)
}

func TestMergeVersions(t *testing.T) {
	t.Parallel()

	c := Component{Name: "ETGMod", Versions: []Version{
		{Key: "a", URL: "old-a"},
		{Key: "b", URL: "old-b"},
	}}
	c.MergeVersions([]Version{{Key: "b", Path: "local-b"}, {Key: "c", Path: "local-c"}})

	require.Len(t, c.Versions, 3)
	// A redefined key moves to the end.
	assert.Equal(t, []string{"a", "b", "c"}, keys(c.Versions))
	assert.Equal(t, "old-a", c.FindVersion("a").Source())
	assert.Equal(t, "local-b", c.FindVersion("b").Source())
	assert.True(t, c.FindVersion("b").Local())
	assert.Equal(t, "local-c", c.FindVersion("c").Source())
	assert.Nil(t, c.FindVersion("missing"))
}

func keys(versions []Version) []string {
	out := make([]string, 0, len(versions))
	for _, v := range versions {
		out = append(out, v.Key)
	}
	return out
}

func TestMergeVersionsMovesRedefinedFirst(t *testing.T) {
	t.Parallel()

	c := Component{Name: "ETGMod", Versions: []Version{
		{Key: "a", URL: "old-a"},
		{Key: "b", URL: "old-b"},
	}}
	c.MergeVersions([]Version{{Key: "a", Path: "local-a"}})

	assert.Equal(t, []string{"b", "a"}, keys(c.Versions))
	assert.Equal(t, "local-a", c.Versions[1].Source())
}

func TestVersionDirName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		version string
		wantErr bool
	}{
		{name: "plain", version: "ETGMod 0.3.0"},
		{name: "empty", version: "", wantErr: true},
		{name: "parent", version: "..", wantErr: true},
		{name: "escaping", version: "../x", wantErr: true},
		{name: "nested", version: "a/b", wantErr: true},
		{name: "absolute", version: "/tmp/x", wantErr: true},
		{name: "current", version: ".", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := (&Version{Key: "k", Name: tt.version}).DirName()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.version, got)
		})
	}
}

func TestVersionValidate(t *testing.T) {
	t.Parallel()

	assert.Error(t, (&Version{Key: "x"}).Validate())
	assert.Error(t, (&Version{Key: "x", URL: "u", Path: "p"}).Validate())
	assert.NoError(t, (&Version{Key: "x", URL: "u"}).Validate())
	assert.NoError(t, (&Version{Key: "x", Path: "p"}).Validate())
}

func TestParseGame(t *testing.T) {
	t.Parallel()

	meta, err := ParseGame([]byte(`
latest_version: "2.1.9"
executables: [EtG.exe, EtG.x86, EtG.x86_64, EtG_OSX]
managed_files: [Assembly-CSharp.dll, UnityEngine.dll]
viable_patch_targets: [Assembly-CSharp, UnityEngine]
exe_orig_subsitutions:
  - from: Assembly-CSharp.dll
    to: Assembly-CSharp.Mod
`))
	require.NoError(t, err)
	assert.Equal(t, "2.1.9", meta.LatestVersion)
	assert.Equal(t, []string{"Assembly-CSharp", "UnityEngine"}, meta.ViablePatchTargets)

	subs := meta.ByteSubstitutions()
	require.Len(t, subs, 1)
	assert.Equal(t, []byte("Assembly-CSharp.dll"), subs[0].From)
	assert.Equal(t, []byte("Assembly-CSharp.Mod"), subs[0].To)
}

func TestLoadComponentMetadata(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "metadata.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: Better Mod
install_in_subdir: [Resources]
install_in_managed: [Resources, extra.txt]
ordered_targets: [UnityEngine, Assembly-CSharp]
relink_map:
  Assembly-CSharp:
    ModBase: ModBase.dll
`), 0o644))

	meta, err := LoadComponentMetadata(path)
	require.NoError(t, err)
	assert.Equal(t, "Better Mod", meta.Name)
	assert.True(t, meta.InSubdir("Resources"))
	assert.True(t, meta.InManaged("extra.txt"))
	assert.False(t, meta.InSubdir("extra.txt"))
	assert.Equal(t, []string{"UnityEngine", "Assembly-CSharp"}, meta.OrderedTargets)
	assert.Equal(t, "ModBase.dll", meta.RelinkMap["Assembly-CSharp"]["ModBase"])

	var missing *ComponentMetadata
	assert.False(t, missing.InSubdir("Resources"))
	assert.False(t, missing.InManaged("Resources"))
}
