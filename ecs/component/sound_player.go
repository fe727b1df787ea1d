package component

import "github.com/milk9111/xmod/sound"

// SoundPlayer plays its sound once when the entity first becomes active.
type SoundPlayer struct {
	PlayOnStart      bool
	ChannelGroupName string
	Sound            *sound.Sound

	// Started is set by the sound player system the first frame it sees the
	// entity.
	Started bool
}

var SoundPlayerComponent = NewComponent[SoundPlayer]()
