package backend

import (
	"errors"
	"fmt"
	"sync"

	"github.com/jakecoffman/cp"
	"github.com/milk9111/xmod/common"
	"github.com/milk9111/xmod/prefabs"
	"github.com/milk9111/xmod/sound"
)

var ErrReleased = errors.New("backend: instance released")

type instanceState int

const (
	stateCreated instanceState = iota
	statePlaying
	stateFading
	stateStopped
)

// Instance is one playing occurrence of a bank event.
type Instance struct {
	rt    *Runtime
	id    sound.InstanceID
	event prefabs.EventSpec
	voice voice
	group *ChannelGroup

	mu        sync.Mutex
	volume    float64
	fadeGain  float64
	anchor    sound.Anchor
	anchorPos cp.Vector
	state     instanceState
	notified  bool
	released  bool
	closed    bool
	callback  func(sound.InstanceID)
	lastApply float64
}

func newInstance(rt *Runtime, ev prefabs.EventSpec, v voice) *Instance {
	id := sound.NewInstanceID()
	return &Instance{
		rt:       rt,
		id:       id,
		event:    ev,
		voice:    v,
		group:    newChannelGroup(fmt.Sprintf("instance:%s:%s", ev.Name, id.String()[:8])),
		volume:   1,
		fadeGain: 1,
	}
}

func (i *Instance) ID() sound.InstanceID { return i.id }

func (i *Instance) SetVolume(v float64) error {
	i.mu.Lock()
	if i.released {
		i.mu.Unlock()
		return ErrReleased
	}
	i.volume = v
	i.mu.Unlock()
	i.apply(i.rt.Listener())
	return nil
}

func (i *Instance) Volume() float64 {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.volume
}

func (i *Instance) Start() error {
	listener := i.rt.Listener()
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.released {
		return ErrReleased
	}
	if i.state == statePlaying {
		return nil
	}
	i.state = statePlaying
	i.fadeGain = 1
	i.notified = false
	i.voice.SetVolume(i.effectiveLocked(listener))
	i.voice.Play()
	return nil
}

// Stop pauses the voice now or starts a fade. The stopped callback is
// delivered by the monitor goroutine.
func (i *Instance) Stop(mode sound.StopMode) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.state != statePlaying && i.state != stateFading {
		return nil
	}
	if mode == sound.StopFadeOut && i.rt.fade > 0 {
		i.state = stateFading
		return nil
	}
	i.voice.Pause()
	i.state = stateStopped
	return nil
}

// Release frees the voice. A fading instance keeps its voice until the fade
// completes.
func (i *Instance) Release() error {
	i.mu.Lock()
	if i.released {
		i.mu.Unlock()
		return nil
	}
	i.released = true
	fading := i.state == stateFading
	i.mu.Unlock()

	if fading {
		return nil
	}
	i.rt.forget(i.id)
	return i.closeVoice()
}

func (i *Instance) Valid() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return !i.released
}

func (i *Instance) ChannelGroup() (sound.ChannelGroup, error) {
	return i.group, nil
}

// AttachTo must be called from the update goroutine; it samples the anchor's
// position immediately.
func (i *Instance) AttachTo(anchor sound.Anchor) {
	var pos cp.Vector
	if anchor != nil {
		pos = anchor.Position()
	}
	i.mu.Lock()
	i.anchor = anchor
	i.anchorPos = pos
	i.mu.Unlock()
}

// sampleAnchor copies the anchor position for the monitor goroutine.
func (i *Instance) sampleAnchor() {
	i.mu.Lock()
	anchor := i.anchor
	i.mu.Unlock()
	if anchor == nil {
		return
	}
	pos := anchor.Position()
	i.mu.Lock()
	if i.anchor == anchor {
		i.anchorPos = pos
	}
	i.mu.Unlock()
}

func (i *Instance) SetStoppedCallback(fn func(sound.InstanceID)) {
	i.mu.Lock()
	i.callback = fn
	i.mu.Unlock()
}

// AppliedVolume is the last volume handed to the voice after group, gain,
// fade and distance scaling.
func (i *Instance) AppliedVolume() float64 {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.lastApply
}

func (i *Instance) apply(listener cp.Vector) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return
	}
	i.voice.SetVolume(i.effectiveLocked(listener))
}

func (i *Instance) effectiveLocked(listener cp.Vector) float64 {
	gain := i.event.Gain
	if gain == 0 {
		gain = 1
	}
	v := i.volume * gain * i.fadeGain * i.group.chainVolume() * spatialGain(i.anchor != nil, i.anchorPos, listener, i.rt.maxDistance)
	i.lastApply = common.Clamp01(v)
	return i.lastApply
}

// advance runs one monitor tick for the instance.
func (i *Instance) advance(listener cp.Vector, fadeStep float64) {
	i.mu.Lock()
	switch i.state {
	case statePlaying:
		if !i.voice.IsPlaying() {
			i.state = stateStopped
		}
	case stateFading:
		i.fadeGain -= fadeStep
		if i.fadeGain <= 0 {
			i.fadeGain = 0
			i.voice.Pause()
			i.state = stateStopped
		}
	}
	if !i.closed {
		i.voice.SetVolume(i.effectiveLocked(listener))
	}

	var fn func(sound.InstanceID)
	if i.state == stateStopped && !i.notified {
		i.notified = true
		fn = i.callback
	}
	finishRelease := i.state == stateStopped && i.released && !i.closed
	i.mu.Unlock()

	if finishRelease {
		i.rt.forget(i.id)
		if err := i.closeVoice(); err != nil {
			i.rt.logger.Printf("backend: close %q: %v", i.event.Name, err)
		}
	}
	if fn != nil {
		fn(i.id)
	}
}

func (i *Instance) closeVoice() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return nil
	}
	i.closed = true
	i.voice.Pause()
	return i.voice.Close()
}
