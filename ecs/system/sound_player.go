package system

import (
	"log"

	"github.com/milk9111/xmod/ecs"
	"github.com/milk9111/xmod/ecs/component"
)

// SoundPlayerSystem starts sound players the first frame their entity is seen.
type SoundPlayerSystem struct {
	logger *log.Logger
}

func NewSoundPlayerSystem(logger *log.Logger) *SoundPlayerSystem {
	if logger == nil {
		logger = log.Default()
	}
	return &SoundPlayerSystem{logger: logger}
}

func (s *SoundPlayerSystem) Update(w *ecs.World) {
	if w == nil {
		return
	}
	ecs.ForEach(w, component.SoundPlayerComponent.Kind(), func(ent ecs.Entity, player *component.SoundPlayer) {
		if player.Started {
			return
		}
		player.Started = true

		if player.Sound == nil {
			s.logger.Printf("sound: no sound assigned to %s", entityName(w, ent))
			return
		}
		if !player.PlayOnStart {
			return
		}
		if _, err := player.Sound.Play(player.ChannelGroupName); err != nil {
			s.logger.Printf("sound: %s play on start: %v", entityName(w, ent), err)
		}
	})
}

func entityName(w *ecs.World, ent ecs.Entity) string {
	if name, ok := ecs.Get(w, ent, component.NameComponent.Kind()); ok && name.Value != "" {
		return name.Value
	}
	return "entity " + ent.String()
}
