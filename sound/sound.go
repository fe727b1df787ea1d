package sound

import (
	"errors"
	"fmt"
)

const defaultVolume = 1.0

// Config is the authored description of a sound.
type Config struct {
	Definition Definition
	Follow     Anchor
	PlayOnce   bool
	// Volume defaults to 1 when nil. Any value is passed through unclamped.
	Volume *float64
}

func (c Config) Validate() error {
	if !c.Definition.Valid() {
		return fmt.Errorf("%w: empty event name", ErrInvalidDefinition)
	}
	return nil
}

// Sound binds a definition to at most one live instance.
//
// Sound methods must be called from the goroutine that calls Registry.Update.
type Sound struct {
	reg *Registry

	def      Definition
	follow   Anchor
	playOnce bool
	volume   float64

	playing    bool
	playedOnce bool
	instance   Instance
}

// NewSound validates cfg and creates an idle sound owned by r.
func (r *Registry) NewSound(cfg Config) (*Sound, error) {
	if r == nil {
		return nil, ErrNilRegistry
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	volume := defaultVolume
	if cfg.Volume != nil {
		volume = *cfg.Volume
	}
	return &Sound{
		reg:      r,
		def:      cfg.Definition,
		follow:   cfg.Follow,
		playOnce: cfg.PlayOnce,
		volume:   volume,
	}, nil
}

func (s *Sound) Definition() Definition { return s.def }
func (s *Sound) FollowTarget() Anchor   { return s.follow }
func (s *Sound) PlayOnce() bool         { return s.playOnce }
func (s *Sound) Playing() bool          { return s.playing }
func (s *Sound) PlayedOnce() bool       { return s.playedOnce }

// Instance returns the live instance, or nil when the sound is not playing.
func (s *Sound) Instance() Instance { return s.instance }

func (s *Sound) Volume() float64 { return s.volume }

// SetVolume stores v and applies v times the global multiplier to the live
// instance, if any.
func (s *Sound) SetVolume(v float64) error {
	s.volume = v
	if s.instance == nil {
		return nil
	}
	if err := s.instance.SetVolume(v * s.reg.GlobalVolumeMultiplier()); err != nil {
		return fmt.Errorf("sound: set volume %q: %w", s.def.Event, err)
	}
	return nil
}

// PlayDefault plays the sound in DefaultChannelGroup.
func (s *Sound) PlayDefault() (Instance, error) {
	return s.Play(DefaultChannelGroup)
}

// Play starts a new instance, optionally merged into the named channel group.
// A play-once sound that already played returns a nil instance and no error.
// A sound that is still playing has its previous instance stopped first.
func (s *Sound) Play(channelGroupName string) (Instance, error) {
	if s.playOnce && s.playedOnce {
		return nil, nil
	}
	// Set before any runtime call; a failed attempt still counts as the one play.
	s.playedOnce = true
	if !s.def.Valid() {
		return nil, fmt.Errorf("sound: play: %w", ErrInvalidDefinition)
	}
	if s.reg == nil || s.reg.runtime == nil {
		return nil, fmt.Errorf("sound: play %q: %w", s.def.Event, ErrDeviceUnavailable)
	}
	if s.playing {
		if err := s.Stop(StopImmediate); err != nil {
			return nil, err
		}
	}

	inst, err := s.reg.runtime.CreateInstance(s.def)
	if err != nil {
		return nil, fmt.Errorf("sound: create instance %q: %w", s.def.Event, err)
	}
	if err := s.prepare(inst, channelGroupName); err != nil {
		if relErr := inst.Release(); relErr != nil {
			err = errors.Join(err, relErr)
		}
		return nil, fmt.Errorf("sound: play %q: %w", s.def.Event, err)
	}

	s.instance = inst
	s.playing = true
	s.reg.add(s)
	return inst, nil
}

func (s *Sound) prepare(inst Instance, channelGroupName string) error {
	if err := inst.SetVolume(s.volume * s.reg.GlobalVolumeMultiplier()); err != nil {
		return err
	}
	if channelGroupName != "" {
		if err := s.reg.attachToChannelGroup(inst, channelGroupName); err != nil {
			return err
		}
	}
	if s.follow != nil {
		inst.AttachTo(s.follow)
	}
	inst.SetStoppedCallback(s.reg.onInstanceStopped)
	return inst.Start()
}

// Stop stops and releases the live instance. It is a no-op when the sound is
// not playing. An instance that is no longer valid is not touched, but the
// sound still leaves the active set.
func (s *Sound) Stop(mode StopMode) error {
	if !s.playing {
		return nil
	}
	if s.instance == nil || !s.instance.Valid() {
		s.instance = nil
		s.playing = false
		s.reg.remove(s)
		return nil
	}
	inst := s.instance
	s.instance = nil
	s.playing = false
	s.reg.remove(s)

	var errs []error
	if err := inst.Stop(mode); err != nil {
		errs = append(errs, err)
	}
	if err := inst.Release(); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("sound: stop %q: %w", s.def.Event, err)
	}
	return nil
}

// retire releases an instance that stopped on its own.
func (s *Sound) retire() {
	inst := s.instance
	s.instance = nil
	s.playing = false
	if inst == nil || !inst.Valid() {
		return
	}
	if err := inst.Release(); err != nil {
		s.reg.logger.Printf("sound: release %q: %v", s.def.Event, err)
	}
}
