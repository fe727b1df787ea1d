package system

import (
	"github.com/milk9111/xmod/ecs"
	"github.com/milk9111/xmod/ecs/component"
	"github.com/milk9111/xmod/sound"
)

// SoundRegistrySystem moves the listener, samples anchor positions for the
// runtime and retires sounds whose instances stopped since the last frame.
type SoundRegistrySystem struct {
	reg *sound.Registry
}

func NewSoundRegistrySystem(reg *sound.Registry) *SoundRegistrySystem {
	return &SoundRegistrySystem{reg: reg}
}

func (s *SoundRegistrySystem) Update(w *ecs.World) {
	if s == nil || s.reg == nil {
		return
	}
	if lr, ok := s.reg.Runtime().(sound.ListenerRuntime); ok && w != nil {
		if ent, ok := ecs.First(w, component.ListenerTagComponent.Kind()); ok {
			if t, ok := ecs.Get(w, ent, component.TransformComponent.Kind()); ok {
				lr.SetListener(t.Position())
			}
		}
	}
	if ar, ok := s.reg.Runtime().(sound.AnchorRuntime); ok {
		ar.SampleAnchors()
	}
	s.reg.Update()
}
