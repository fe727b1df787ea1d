package prefabs

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

var ErrInvalidSpec = errors.New("prefabs: invalid spec")

func LoadSpec[T any](filename string) (T, error) {
	var zero T
	data, err := Load(filename)
	if err != nil {
		return zero, fmt.Errorf("prefabs: load %s: %w", filename, err)
	}

	var spec T
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return zero, fmt.Errorf("prefabs: unmarshal %s: %w", filename, err)
	}

	return spec, nil
}

// BankSpec lists the events a runtime can instantiate.
type BankSpec struct {
	Name   string      `yaml:"name"`
	Events []EventSpec `yaml:"events"`
}

type EventSpec struct {
	Name string `yaml:"name"`
	File string `yaml:"file"`
	Loop bool   `yaml:"loop"`
	// Gain scales the clip before instance and group volumes. Zero means 1.
	Gain float64 `yaml:"gain"`
}

func LoadBankSpec(filename string) (BankSpec, error) {
	spec, err := LoadSpec[BankSpec](filename)
	if err != nil {
		return BankSpec{}, err
	}
	if err := spec.Validate(); err != nil {
		return BankSpec{}, fmt.Errorf("prefabs: %s: %w", filename, err)
	}
	return spec, nil
}

func (b BankSpec) Validate() error {
	seen := make(map[string]struct{}, len(b.Events))
	for i, ev := range b.Events {
		name := strings.TrimSpace(ev.Name)
		if name == "" {
			return fmt.Errorf("%w: event %d has no name", ErrInvalidSpec, i)
		}
		if strings.TrimSpace(ev.File) == "" {
			return fmt.Errorf("%w: event %q has no file", ErrInvalidSpec, name)
		}
		if ev.Gain < 0 {
			return fmt.Errorf("%w: event %q has negative gain", ErrInvalidSpec, name)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("%w: duplicate event %q", ErrInvalidSpec, name)
		}
		seen[name] = struct{}{}
	}
	return nil
}

// Event looks up an event by name.
func (b BankSpec) Event(name string) (EventSpec, bool) {
	for _, ev := range b.Events {
		if ev.Name == name {
			return ev, true
		}
	}
	return EventSpec{}, false
}
