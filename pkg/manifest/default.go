package manifest

import (
	_ "embed"
	"fmt"
)

//go:embed default_manifest.yaml
var defaultManifestYAML []byte

// Default returns the built-in pipeline, used when no manifest is found
// next to the target.
func Default() (*Manifest, error) {
	m, err := parse(defaultManifestYAML)
	if err != nil {
		return nil, fmt.Errorf("built-in default manifest: %w", err)
	}
	return m, nil
}
