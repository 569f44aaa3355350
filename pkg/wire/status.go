package wire

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Status is the typed view of a PeriodicStatus payload.
type Status struct {
	Location string `mapstructure:"location"`
	Activity string `mapstructure:"activity"`
	Health   int    `mapstructure:"health"`
	Tick     uint64 `mapstructure:"tick"`
}

// Payload converts s into the free-form map carried by PeriodicStatus.
func (s Status) Payload() map[string]any {
	return map[string]any{
		"location": s.Location,
		"activity": s.Activity,
		"health":   s.Health,
		"tick":     s.Tick,
	}
}

// DecodeStatus decodes a PeriodicStatus payload. Numbers arrive as float64 after a
// JSON hop, so weak typing is enabled. Unknown keys are ignored.
func DecodeStatus(payload map[string]any) (Status, error) {
	var s Status
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &s,
	})
	if err != nil {
		return Status{}, err
	}
	if err := dec.Decode(payload); err != nil {
		return Status{}, fmt.Errorf("failed to decode status payload: %w", err)
	}
	return s, nil
}
