package entity

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/milk9111/xmod/ecs"
	"github.com/milk9111/xmod/ecs/component"
	"github.com/milk9111/xmod/prefabs"
	"github.com/milk9111/xmod/sound"
)

type entityPrefabSpec = prefabs.EntityBuildSpec

type buildContext struct {
	SceneName string
	Registry  *sound.Registry
	Entities  map[string]ecs.Entity
}

type componentBuildFn func(w *ecs.World, e ecs.Entity, raw any, ctx *buildContext) error

var componentRegistry = map[string]componentBuildFn{
	"transform":    addTransform,
	"listener":     addListener,
	"sound_player": addSoundPlayer,
}

// Components are built one kind at a time across the whole scene, so a sound
// player can follow any entity's transform regardless of declaration order.
var componentBuildOrder = []string{
	"transform",
	"listener",
	"sound_player",
}

// Scene is the set of entities built from one scene prefab.
type Scene struct {
	Name     string
	Entities map[string]ecs.Entity
	Script   ecs.Entity
}

func (s *Scene) Entity(name string) (ecs.Entity, bool) {
	if s == nil {
		return 0, false
	}
	e, ok := s.Entities[name]
	return e, ok
}

// LoadScene loads a scene prefab and builds it.
func LoadScene(w *ecs.World, reg *sound.Registry, prefabPath string) (*Scene, error) {
	spec, err := prefabs.LoadSceneSpec(prefabPath)
	if err != nil {
		return nil, fmt.Errorf("build scene: load %q: %w", prefabPath, err)
	}
	return BuildScene(w, reg, spec)
}

// BuildScene creates every entity the scene describes. On error nothing from
// the scene is left in the world.
func BuildScene(w *ecs.World, reg *sound.Registry, spec prefabs.SceneSpec) (*Scene, error) {
	if w == nil {
		return nil, fmt.Errorf("build scene: world is nil")
	}
	if reg == nil {
		return nil, fmt.Errorf("build scene: %w", sound.ErrNilRegistry)
	}
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("build scene %q: %w", spec.Name, err)
	}

	scene := &Scene{Name: spec.Name, Entities: make(map[string]ecs.Entity, len(spec.Entities))}
	ctx := &buildContext{SceneName: spec.Name, Registry: reg, Entities: scene.Entities}

	fail := func(err error) (*Scene, error) {
		DestroyScene(w, scene)
		return nil, err
	}

	for _, ent := range spec.Entities {
		name := strings.TrimSpace(ent.Name)
		e := ecs.CreateEntity(w)
		scene.Entities[name] = e
		if err := ecs.Add(w, e, component.NameComponent.Kind(), &component.Name{Value: name}); err != nil {
			return fail(fmt.Errorf("build scene %q: %q: %w", spec.Name, name, err))
		}
		if err := checkComponents(ent); err != nil {
			return fail(fmt.Errorf("build scene %q: %w", spec.Name, err))
		}
	}

	for _, compName := range componentBuildOrder {
		builder := componentRegistry[compName]
		for _, ent := range spec.Entities {
			raw, ok := ent.Components[compName]
			if !ok {
				continue
			}
			name := strings.TrimSpace(ent.Name)
			if err := builder(w, scene.Entities[name], raw, ctx); err != nil {
				return fail(fmt.Errorf("build scene %q: %q: add %q: %w", spec.Name, name, compName, err))
			}
		}
	}

	if spec.Script != "" {
		e := ecs.CreateEntity(w)
		scene.Script = e
		if err := ecs.Add(w, e, component.SoundScriptComponent.Kind(), &component.SoundScript{Path: spec.Script}); err != nil {
			return fail(fmt.Errorf("build scene %q: script: %w", spec.Name, err))
		}
	}

	if spec.GlobalVolume != nil {
		reg.SetGlobalVolumeMultiplier(*spec.GlobalVolume)
	}

	return scene, nil
}

// DestroyScene stops the scene's sounds and removes its entities.
func DestroyScene(w *ecs.World, scene *Scene) error {
	if w == nil || scene == nil {
		return nil
	}
	var errs []error
	for _, e := range scene.Entities {
		if player, ok := ecs.Get(w, e, component.SoundPlayerComponent.Kind()); ok && player.Sound != nil {
			if err := player.Sound.Stop(sound.StopImmediate); err != nil {
				errs = append(errs, err)
			}
		}
		ecs.DestroyEntity(w, e)
	}
	if scene.Script.Valid() {
		ecs.DestroyEntity(w, scene.Script)
	}
	return errors.Join(errs...)
}

func checkComponents(spec entityPrefabSpec) error {
	var unknown []string
	for name := range spec.Components {
		if _, ok := componentRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	return fmt.Errorf("%q: no builder for component(s) %s", spec.Name, strings.Join(unknown, ", "))
}

type transformSpec = prefabs.TransformComponentSpec

func addTransform(w *ecs.World, e ecs.Entity, raw any, _ *buildContext) error {
	spec, err := prefabs.DecodeComponentSpec[transformSpec](raw)
	if err != nil {
		return fmt.Errorf("decode transform spec: %w", err)
	}
	return ecs.Add(w, e, component.TransformComponent.Kind(), &component.Transform{X: spec.X, Y: spec.Y})
}

func addListener(w *ecs.World, e ecs.Entity, _ any, _ *buildContext) error {
	return ecs.Add(w, e, component.ListenerTagComponent.Kind(), &component.ListenerTag{})
}

type soundPlayerSpec = prefabs.SoundPlayerComponentSpec

func addSoundPlayer(w *ecs.World, e ecs.Entity, raw any, ctx *buildContext) error {
	spec, err := prefabs.DecodeComponentSpec[soundPlayerSpec](raw)
	if err != nil {
		return fmt.Errorf("decode sound player spec: %w", err)
	}

	player := &component.SoundPlayer{
		PlayOnStart:      spec.PlayOnStart,
		ChannelGroupName: spec.ChannelGroup(),
	}

	if spec.Sound != nil {
		cfg := sound.Config{
			Definition: sound.Definition{Event: strings.TrimSpace(spec.Sound.Event)},
			PlayOnce:   spec.Sound.PlayOnce,
			Volume:     spec.Sound.Volume,
		}
		if follow := strings.TrimSpace(spec.Sound.Follow); follow != "" {
			target, ok := ctx.Entities[follow]
			if !ok {
				return fmt.Errorf("follow target %q not in scene", follow)
			}
			t, ok := ecs.Get(w, target, component.TransformComponent.Kind())
			if !ok {
				return fmt.Errorf("follow target %q has no transform", follow)
			}
			cfg.Follow = t
		}
		snd, err := ctx.Registry.NewSound(cfg)
		if err != nil {
			return err
		}
		player.Sound = snd
	}

	return ecs.Add(w, e, component.SoundPlayerComponent.Kind(), player)
}
