// Package sound binds event definitions to live playback instances and keeps
// track of which sounds are currently audible.
package sound

import (
	"errors"
	"fmt"
	"log"
	"slices"
	"sort"
	"sync"
)

const defaultGlobalVolume = 1.0

// Registry tracks active sounds, the global volume multiplier and the named
// channel groups shared between instances.
//
// Play, Stop, volume changes and Update belong to the update goroutine. The
// runtime's stop callbacks only enqueue ids, which Update drains.
type Registry struct {
	runtime Runtime
	logger  *log.Logger

	mu            sync.Mutex
	active        []*Sound
	globalVolume  float64
	channelGroups map[string]ChannelGroup

	stopped stoppedQueue
}

type RegistryOption func(*Registry)

// WithLogger routes registry diagnostics to l.
func WithLogger(l *log.Logger) RegistryOption {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithGlobalVolume sets the initial global volume multiplier.
func WithGlobalVolume(m float64) RegistryOption {
	return func(r *Registry) {
		r.globalVolume = m
	}
}

func NewRegistry(rt Runtime, opts ...RegistryOption) *Registry {
	r := &Registry{
		runtime:       rt,
		logger:        log.Default(),
		globalVolume:  defaultGlobalVolume,
		channelGroups: make(map[string]ChannelGroup),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Runtime returns the audio runtime backing this registry.
func (r *Registry) Runtime() Runtime {
	if r == nil {
		return nil
	}
	return r.runtime
}

func (r *Registry) GlobalVolumeMultiplier() float64 {
	if r == nil {
		return defaultGlobalVolume
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.globalVolume
}

// SetGlobalVolumeMultiplier stores m and pushes volume*m to every active sound.
// Sounds that are not playing pick the value up on their next Play.
func (r *Registry) SetGlobalVolumeMultiplier(m float64) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.globalVolume = m
	for _, s := range r.active {
		if s.instance == nil {
			continue
		}
		if err := s.instance.SetVolume(s.volume * m); err != nil {
			r.logger.Printf("sound: broadcast volume to %q: %v", s.def.Event, err)
		}
	}
}

// Active returns a snapshot of the sounds currently playing.
func (r *Registry) Active() []*Sound {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.active)
}

func (r *Registry) IsActive(s *Sound) bool {
	if r == nil || s == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Contains(r.active, s)
}

// ChannelGroup returns the named group if some sound has already created it.
func (r *Registry) ChannelGroup(name string) (ChannelGroup, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.channelGroups[name]
	return g, ok
}

// ChannelGroupNames returns the registered group names in sorted order.
func (r *Registry) ChannelGroupNames() []string {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.channelGroups))
	for name := range r.channelGroups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PendingStops reports how many stop notifications are waiting for Update.
func (r *Registry) PendingStops() int {
	if r == nil {
		return 0
	}
	return r.stopped.len()
}

// Update drains stop notifications delivered by the runtime and retires the
// sounds whose instance stopped. Call it once per frame.
func (r *Registry) Update() {
	if r == nil {
		return
	}
	for _, id := range r.stopped.drain() {
		for _, s := range r.takeByInstance(id) {
			s.retire()
		}
	}
}

// Close stops and releases every active sound. Channel groups are forgotten.
func (r *Registry) Close() error {
	if r == nil {
		return nil
	}
	var errs []error
	for _, s := range r.Active() {
		if err := s.Stop(StopImmediate); err != nil {
			errs = append(errs, err)
		}
	}
	r.stopped.drain()

	r.mu.Lock()
	leftover := r.active
	r.active = nil
	r.channelGroups = make(map[string]ChannelGroup)
	r.mu.Unlock()

	for _, s := range leftover {
		s.retire()
	}
	return errors.Join(errs...)
}

func (r *Registry) onInstanceStopped(id InstanceID) {
	r.stopped.push(id)
}

func (r *Registry) add(s *Sound) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if slices.Contains(r.active, s) {
		return
	}
	r.active = append(r.active, s)
}

func (r *Registry) remove(s *Sound) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = slices.DeleteFunc(r.active, func(a *Sound) bool { return a == s })
}

// takeByInstance removes and returns every active sound holding instance id.
func (r *Registry) takeByInstance(id InstanceID) []*Sound {
	r.mu.Lock()
	defer r.mu.Unlock()
	var taken []*Sound
	r.active = slices.DeleteFunc(r.active, func(s *Sound) bool {
		if s.instance != nil && s.instance.ID() == id {
			taken = append(taken, s)
			return true
		}
		return false
	})
	return taken
}

// attachToChannelGroup merges the instance's own group into the named group,
// creating and registering the named group on first use.
func (r *Registry) attachToChannelGroup(inst Instance, name string) error {
	instGroup, err := inst.ChannelGroup()
	if err != nil {
		return fmt.Errorf("sound: channel group of instance: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	group, ok := r.channelGroups[name]
	if !ok {
		group, err = r.runtime.CreateChannelGroup(name)
		if err != nil {
			return fmt.Errorf("sound: create channel group %q: %w", name, err)
		}
		r.channelGroups[name] = group
	}
	if err := group.AddGroup(instGroup); err != nil {
		return fmt.Errorf("sound: add to channel group %q: %w", name, err)
	}
	return nil
}
