package prefabs

import (
	"fmt"
	"strings"

	"github.com/milk9111/xmod/sound"
	"gopkg.in/yaml.v3"
)

// SceneSpec is a list of entities, each a named bag of component specs.
type SceneSpec struct {
	Name         string            `yaml:"name"`
	Bank         string            `yaml:"bank"`
	GlobalVolume *float64          `yaml:"global_volume"`
	Script       string            `yaml:"script"`
	Entities     []EntityBuildSpec `yaml:"entities"`
}

type EntityBuildSpec struct {
	Name       string         `yaml:"name"`
	Components map[string]any `yaml:"components"`
}

func LoadSceneSpec(filename string) (SceneSpec, error) {
	spec, err := LoadSpec[SceneSpec](filename)
	if err != nil {
		return SceneSpec{}, err
	}
	if err := spec.Validate(); err != nil {
		return SceneSpec{}, fmt.Errorf("prefabs: %s: %w", filename, err)
	}
	return spec, nil
}

func (s SceneSpec) Validate() error {
	names := make(map[string]struct{}, len(s.Entities))
	for i, ent := range s.Entities {
		name := strings.TrimSpace(ent.Name)
		if name == "" {
			return fmt.Errorf("%w: entity %d has no name", ErrInvalidSpec, i)
		}
		if _, dup := names[name]; dup {
			return fmt.Errorf("%w: duplicate entity %q", ErrInvalidSpec, name)
		}
		names[name] = struct{}{}
	}
	for _, ent := range s.Entities {
		raw, ok := ent.Components["sound_player"]
		if !ok {
			continue
		}
		sp, err := DecodeComponentSpec[SoundPlayerComponentSpec](raw)
		if err != nil {
			return fmt.Errorf("%w: entity %q sound_player: %v", ErrInvalidSpec, ent.Name, err)
		}
		if sp.Sound == nil {
			continue
		}
		if strings.TrimSpace(sp.Sound.Event) == "" {
			return fmt.Errorf("%w: entity %q sound has no event", ErrInvalidSpec, ent.Name)
		}
		if f := strings.TrimSpace(sp.Sound.Follow); f != "" {
			if _, ok := names[f]; !ok {
				return fmt.Errorf("%w: entity %q follows unknown entity %q", ErrInvalidSpec, ent.Name, f)
			}
		}
	}
	return nil
}

func DecodeComponentSpec[T any](raw any) (T, error) {
	var zero T
	if raw == nil {
		return zero, nil
	}
	b, err := yaml.Marshal(raw)
	if err != nil {
		return zero, err
	}
	var out T
	if err := yaml.Unmarshal(b, &out); err != nil {
		return zero, err
	}
	return out, nil
}

type TransformComponentSpec struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

type ListenerComponentSpec struct{}

type SoundComponentSpec struct {
	Event    string   `yaml:"event"`
	Follow   string   `yaml:"follow"`
	PlayOnce bool     `yaml:"play_once"`
	Volume   *float64 `yaml:"volume"`
}

type SoundPlayerComponentSpec struct {
	PlayOnStart      bool                `yaml:"play_on_start"`
	ChannelGroupName *string             `yaml:"channel_group"`
	Sound            *SoundComponentSpec `yaml:"sound"`
}

// ChannelGroup returns the configured group, defaulting to the master group.
// An explicit empty string disables grouping.
func (s SoundPlayerComponentSpec) ChannelGroup() string {
	if s.ChannelGroupName == nil {
		return sound.DefaultChannelGroup
	}
	return strings.TrimSpace(*s.ChannelGroupName)
}
