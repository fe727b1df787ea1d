// Package soundtest provides an in-memory sound.Runtime for tests.
package soundtest

import (
	"errors"
	"fmt"
	"sync"

	"github.com/milk9111/xmod/sound"
)

var ErrReleased = errors.New("soundtest: instance released")

// Runtime records every instance and channel group it creates.
type Runtime struct {
	mu        sync.Mutex
	instances []*Instance
	groups    []*Group

	// Known limits the events CreateInstance accepts. Nil accepts everything.
	Known map[string]bool
	// FailCreate, when set, is returned by CreateInstance.
	FailCreate error
	// FailStart, when set, is returned by Instance.Start.
	FailStart error
	// StopFiresCallback makes Instance.Stop deliver the stopped callback
	// synchronously, the way some engines do.
	StopFiresCallback bool
}

func NewRuntime() *Runtime {
	return &Runtime{}
}

func (r *Runtime) CreateInstance(def sound.Definition) (sound.Instance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailCreate != nil {
		return nil, r.FailCreate
	}
	if r.Known != nil && !r.Known[def.Event] {
		return nil, fmt.Errorf("soundtest: event %q: %w", def.Event, sound.ErrInvalidDefinition)
	}
	inst := &Instance{
		rt:    r,
		id:    sound.NewInstanceID(),
		def:   def,
		group: &Group{name: "instance:" + def.Event, volume: 1},
	}
	r.instances = append(r.instances, inst)
	return inst, nil
}

func (r *Runtime) CreateChannelGroup(name string) (sound.ChannelGroup, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g := &Group{name: name, volume: 1}
	r.groups = append(r.groups, g)
	return g, nil
}

// Instances returns every instance created so far, in creation order.
func (r *Runtime) Instances() []*Instance {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Instance(nil), r.instances...)
}

// Groups returns every named group created so far.
func (r *Runtime) Groups() []*Group {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Group(nil), r.groups...)
}

// Finish simulates the engine ending playback on its own goroutine and waits
// for the callback to return.
func (r *Runtime) Finish(inst *Instance) {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		inst.fireStopped()
	}()
	wg.Wait()
}

// Instance is a recorded playback instance.
type Instance struct {
	rt  *Runtime
	id  sound.InstanceID
	def sound.Definition

	mu       sync.Mutex
	volume   float64
	started  bool
	stopped  bool
	stopMode sound.StopMode
	released int
	anchor   sound.Anchor
	group    *Group
	callback func(sound.InstanceID)
}

func (i *Instance) ID() sound.InstanceID         { return i.id }
func (i *Instance) Definition() sound.Definition { return i.def }

func (i *Instance) SetVolume(v float64) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.released > 0 {
		return ErrReleased
	}
	i.volume = v
	return nil
}

func (i *Instance) Volume() float64 {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.volume
}

func (i *Instance) Start() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.rt.FailStart != nil {
		return i.rt.FailStart
	}
	i.started = true
	return nil
}

func (i *Instance) Stop(mode sound.StopMode) error {
	i.mu.Lock()
	i.stopped = true
	i.stopMode = mode
	fire := i.rt.StopFiresCallback
	i.mu.Unlock()
	if fire {
		i.fireStopped()
	}
	return nil
}

func (i *Instance) Release() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.released++
	return nil
}

func (i *Instance) Valid() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.released == 0
}

func (i *Instance) ChannelGroup() (sound.ChannelGroup, error) {
	return i.group, nil
}

func (i *Instance) AttachTo(anchor sound.Anchor) {
	i.mu.Lock()
	i.anchor = anchor
	i.mu.Unlock()
}

func (i *Instance) SetStoppedCallback(fn func(sound.InstanceID)) {
	i.mu.Lock()
	i.callback = fn
	i.mu.Unlock()
}

func (i *Instance) Started() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.started
}

func (i *Instance) Stopped() (bool, sound.StopMode) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.stopped, i.stopMode
}

// ReleaseCount reports how many times Release was called.
func (i *Instance) ReleaseCount() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.released
}

func (i *Instance) Anchor() sound.Anchor {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.anchor
}

func (i *Instance) Group() *Group { return i.group }

func (i *Instance) fireStopped() {
	i.mu.Lock()
	fn := i.callback
	i.stopped = true
	i.mu.Unlock()
	if fn != nil {
		fn(i.id)
	}
}

// Group is a recorded channel group.
type Group struct {
	mu       sync.Mutex
	name     string
	volume   float64
	parent   *Group
	children []*Group
}

func (g *Group) Name() string { return g.name }

func (g *Group) AddGroup(child sound.ChannelGroup) error {
	c, ok := child.(*Group)
	if !ok {
		return fmt.Errorf("soundtest: foreign channel group %T", child)
	}
	g.mu.Lock()
	g.children = append(g.children, c)
	g.mu.Unlock()
	c.mu.Lock()
	c.parent = g
	c.mu.Unlock()
	return nil
}

func (g *Group) SetVolume(v float64) error {
	g.mu.Lock()
	g.volume = v
	g.mu.Unlock()
	return nil
}

func (g *Group) Volume() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.volume
}

func (g *Group) Children() []*Group {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]*Group(nil), g.children...)
}

func (g *Group) Parent() *Group {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.parent
}
