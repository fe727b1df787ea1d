package system

import (
	"errors"
	"log"
	"strings"

	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"
	"github.com/milk9111/xmod/ecs"
	"github.com/milk9111/xmod/ecs/component"
	"github.com/milk9111/xmod/prefabs"
	"github.com/milk9111/xmod/sound"
)

var errNoScriptSource = errors.New("sound: script has no source")

type soundScriptRuntime struct {
	scriptPath string
	compiled   *tengo.Compiled
}

// SoundScriptSystem runs every SoundScript once per frame. Scripts address
// sound players by entity name through the functions registered in
// soundScriptFunctions.
type SoundScriptSystem struct {
	reg    *sound.Registry
	logger *log.Logger

	scriptCache map[ecs.Entity]*soundScriptRuntime
	players     map[string]*component.SoundPlayer
}

func NewSoundScriptSystem(reg *sound.Registry, logger *log.Logger) *SoundScriptSystem {
	if logger == nil {
		logger = log.Default()
	}
	return &SoundScriptSystem{
		reg:         reg,
		logger:      logger,
		scriptCache: map[ecs.Entity]*soundScriptRuntime{},
		players:     map[string]*component.SoundPlayer{},
	}
}

// Invalidate drops compiled scripts and re-enables failed ones so the next
// frame recompiles them from disk.
func (s *SoundScriptSystem) Invalidate(w *ecs.World) {
	clear(s.scriptCache)
	ecs.ForEach(w, component.SoundScriptComponent.Kind(), func(_ ecs.Entity, script *component.SoundScript) {
		script.Disabled = false
	})
}

func (s *SoundScriptSystem) Update(w *ecs.World) {
	if w == nil {
		return
	}

	clear(s.players)
	ecs.ForEach2(w, component.NameComponent.Kind(), component.SoundPlayerComponent.Kind(), func(_ ecs.Entity, name *component.Name, player *component.SoundPlayer) {
		s.players[name.Value] = player
	})

	for ent := range s.scriptCache {
		if !ecs.Has(w, ent, component.SoundScriptComponent.Kind()) {
			delete(s.scriptCache, ent)
		}
	}

	ecs.ForEach(w, component.SoundScriptComponent.Kind(), func(ent ecs.Entity, script *component.SoundScript) {
		if script.Disabled {
			return
		}
		rt, err := s.runtimeFor(ent, script)
		if err != nil {
			s.logger.Printf("sound: script %s entity=%s compile error: %v", script.Path, ent, err)
			script.Disabled = true
			return
		}
		if err := rt.compiled.Set("frame", script.Frame); err != nil {
			s.logger.Printf("sound: script %s entity=%s set frame: %v", script.Path, ent, err)
			return
		}
		if err := rt.compiled.Run(); err != nil {
			s.logger.Printf("sound: script %s entity=%s runtime error: %v", script.Path, ent, err)
			script.Disabled = true
			return
		}
		script.Frame++
	})
}

func (s *SoundScriptSystem) runtimeFor(ent ecs.Entity, spec *component.SoundScript) (*soundScriptRuntime, error) {
	if rt, ok := s.scriptCache[ent]; ok && rt != nil && rt.scriptPath == spec.Path {
		return rt, nil
	}

	src := spec.Source
	if len(src) == 0 {
		if spec.Path == "" {
			return nil, errNoScriptSource
		}
		data, err := prefabs.LoadScript(spec.Path)
		if err != nil {
			return nil, err
		}
		src = data
	}

	script := tengo.NewScript(src)
	_ = script.Add("frame", 0)
	for name, fn := range s.soundScriptFunctions() {
		if err := script.Add(name, fn); err != nil {
			return nil, err
		}
	}
	script.SetImports(stdlib.GetModuleMap(stdlib.AllModuleNames()...))

	compiled, err := script.Compile()
	if err != nil {
		return nil, err
	}

	rt := &soundScriptRuntime{scriptPath: spec.Path, compiled: compiled}
	s.scriptCache[ent] = rt
	return rt, nil
}

func (s *SoundScriptSystem) soundByName(args []tengo.Object) *sound.Sound {
	if len(args) == 0 {
		return nil
	}
	player := s.players[objectAsString(args[0])]
	if player == nil {
		return nil
	}
	return player.Sound
}

func (s *SoundScriptSystem) soundScriptFunctions() map[string]*tengo.UserFunction {
	values := map[string]*tengo.UserFunction{}

	values["play"] = &tengo.UserFunction{Name: "play", Value: func(args ...tengo.Object) (tengo.Object, error) {
		snd := s.soundByName(args)
		if snd == nil {
			return tengo.FalseValue, nil
		}
		group := s.players[objectAsString(args[0])].ChannelGroupName
		if len(args) > 1 {
			group = objectAsString(args[1])
		}
		inst, err := snd.Play(group)
		if err != nil {
			s.logger.Printf("sound: script play %s: %v", objectAsString(args[0]), err)
			return tengo.FalseValue, nil
		}
		if inst == nil {
			// play-once sound that already played
			return tengo.FalseValue, nil
		}
		return tengo.TrueValue, nil
	}}

	values["stop"] = &tengo.UserFunction{Name: "stop", Value: func(args ...tengo.Object) (tengo.Object, error) {
		snd := s.soundByName(args)
		if snd == nil {
			return tengo.FalseValue, nil
		}
		mode := sound.StopImmediate
		if len(args) > 1 && !args[1].IsFalsy() {
			mode = sound.StopFadeOut
		}
		if err := snd.Stop(mode); err != nil {
			s.logger.Printf("sound: script stop %s: %v", objectAsString(args[0]), err)
			return tengo.FalseValue, nil
		}
		return tengo.TrueValue, nil
	}}

	values["set_volume"] = &tengo.UserFunction{Name: "set_volume", Value: func(args ...tengo.Object) (tengo.Object, error) {
		if len(args) != 2 {
			return nil, tengo.ErrWrongNumArguments
		}
		snd := s.soundByName(args)
		if snd == nil {
			return tengo.FalseValue, nil
		}
		v, ok := tengo.ToFloat64(args[1])
		if !ok {
			return nil, tengo.ErrInvalidArgumentType{Name: "volume", Expected: "float", Found: args[1].TypeName()}
		}
		if err := snd.SetVolume(v); err != nil {
			s.logger.Printf("sound: script set_volume %s: %v", objectAsString(args[0]), err)
			return tengo.FalseValue, nil
		}
		return tengo.TrueValue, nil
	}}

	values["volume"] = &tengo.UserFunction{Name: "volume", Value: func(args ...tengo.Object) (tengo.Object, error) {
		snd := s.soundByName(args)
		if snd == nil {
			return &tengo.Float{Value: 0}, nil
		}
		return &tengo.Float{Value: snd.Volume()}, nil
	}}

	values["set_global_volume"] = &tengo.UserFunction{Name: "set_global_volume", Value: func(args ...tengo.Object) (tengo.Object, error) {
		if len(args) != 1 {
			return nil, tengo.ErrWrongNumArguments
		}
		m, ok := tengo.ToFloat64(args[0])
		if !ok {
			return nil, tengo.ErrInvalidArgumentType{Name: "multiplier", Expected: "float", Found: args[0].TypeName()}
		}
		if s.reg == nil {
			return tengo.FalseValue, nil
		}
		s.reg.SetGlobalVolumeMultiplier(m)
		return tengo.TrueValue, nil
	}}

	values["global_volume"] = &tengo.UserFunction{Name: "global_volume", Value: func(args ...tengo.Object) (tengo.Object, error) {
		if s.reg == nil {
			return &tengo.Float{Value: 1}, nil
		}
		return &tengo.Float{Value: s.reg.GlobalVolumeMultiplier()}, nil
	}}

	values["is_playing"] = &tengo.UserFunction{Name: "is_playing", Value: func(args ...tengo.Object) (tengo.Object, error) {
		if snd := s.soundByName(args); snd != nil && snd.Playing() {
			return tengo.TrueValue, nil
		}
		return tengo.FalseValue, nil
	}}

	values["played_once"] = &tengo.UserFunction{Name: "played_once", Value: func(args ...tengo.Object) (tengo.Object, error) {
		if snd := s.soundByName(args); snd != nil && snd.PlayedOnce() {
			return tengo.TrueValue, nil
		}
		return tengo.FalseValue, nil
	}}

	return values
}

func objectAsString(obj tengo.Object) string {
	switch v := obj.(type) {
	case *tengo.String:
		return v.Value
	default:
		return strings.Trim(v.String(), "\"")
	}
}
