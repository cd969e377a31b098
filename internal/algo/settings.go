// Package algo implements the built-in trading algorithms. Each
// algorithm is a sim.Algorithm factory that decodes and validates its
// free-form settings map into a typed struct before producing a
// strategy instance.
package algo

import (
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/jabernat/EasyMoney/internal/domain"
	"github.com/jabernat/EasyMoney/internal/sim"
)

// decodeSettings decodes a settings map into out, rejecting unknown
// keys so typos surface at configuration time instead of silently
// using defaults.
func decodeSettings(settings sim.Settings, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(map[string]any(settings)); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	return nil
}
