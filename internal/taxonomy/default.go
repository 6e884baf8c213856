package taxonomy

import (
	_ "embed"
)

//go:embed default.yaml
var defaultYAML []byte

// Default returns the built-in taxonomy, used when no taxonomy file is configured.
func Default() *Taxonomy {
	t, err := Parse(defaultYAML)
	if err != nil {
		panic("taxonomy: invalid built-in taxonomy: " + err.Error())
	}
	return t
}
