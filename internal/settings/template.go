package settings

import (
	"fmt"
	"os"
	"path/filepath"
)

const customComponentsTemplate = `# Custom components, merged into the official list.
# A component with the name of an official one adds to (or, for an
# existing key, replaces) its versions.
#
# - name: MyMod
#   author: Me
#   description: Something cool
#   versions:
#     - key: dev
#       name: MyMod (local build)
#       path: /path/to/MyMod.zip
#       supported_gungeon: "2.1.9"
`

func writeTemplate(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating settings directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(customComponentsTemplate), 0o644); err != nil {
		return fmt.Errorf("writing custom components template: %w", err)
	}
	return nil
}
