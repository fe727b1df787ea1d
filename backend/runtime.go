// Package backend implements sound.Runtime on top of Ebitengine's audio
// package.
package backend

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/jakecoffman/cp"
	"github.com/milk9111/xmod/assets"
	"github.com/milk9111/xmod/common"
	"github.com/milk9111/xmod/prefabs"
	"github.com/milk9111/xmod/sound"
)

const (
	defaultSampleRate   = 44100
	defaultMaxInstances = 64
	defaultTick         = 10 * time.Millisecond
	defaultFade         = 300 * time.Millisecond
	defaultMaxDistance  = 800.0
)

// voice is the part of *audio.Player an instance drives.
type voice interface {
	Play()
	Pause()
	IsPlaying() bool
	SetVolume(v float64)
	Close() error
}

type Option func(*Runtime)

// WithContext uses ctx instead of the process-wide audio context.
func WithContext(ctx *audio.Context) Option {
	return func(r *Runtime) { r.ctx = ctx }
}

// WithClipLoader replaces assets.LoadAudio as the source of clip bytes.
func WithClipLoader(load func(path string) ([]byte, error)) Option {
	return func(r *Runtime) {
		if load != nil {
			r.load = load
		}
	}
}

func WithMaxInstances(n int) Option {
	return func(r *Runtime) { r.maxInstances = n }
}

func WithFadeDuration(d time.Duration) Option {
	return func(r *Runtime) { r.fade = d }
}

// WithMaxDistance sets the listener distance at which anchored instances
// become silent. Zero disables attenuation.
func WithMaxDistance(d float64) Option {
	return func(r *Runtime) { r.maxDistance = d }
}

func WithTick(d time.Duration) Option {
	return func(r *Runtime) {
		if d > 0 {
			r.tick = d
		}
	}
}

func WithLogger(l *log.Logger) Option {
	return func(r *Runtime) {
		if l != nil {
			r.logger = l
		}
	}
}

// Runtime plays bank events through an audio context. A monitor goroutine
// advances fades, follows anchors and reports stopped instances.
type Runtime struct {
	ctx          *audio.Context
	load         func(string) ([]byte, error)
	clips        *clipCache
	logger       *log.Logger
	maxInstances int
	fade         time.Duration
	tick         time.Duration
	maxDistance  float64
	newVoice     func(ev prefabs.EventSpec, pcm []byte) (voice, error)

	mu        sync.Mutex
	events    map[string]prefabs.EventSpec
	instances map[sound.InstanceID]*Instance
	listener  cp.Vector
	closed    bool

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func newRuntime(bank prefabs.BankSpec, opts ...Option) *Runtime {
	r := &Runtime{
		load:         assets.LoadAudio,
		logger:       log.Default(),
		maxInstances: defaultMaxInstances,
		fade:         defaultFade,
		tick:         defaultTick,
		maxDistance:  defaultMaxDistance,
		instances:    make(map[sound.InstanceID]*Instance),
		stopCh:       make(chan struct{}),
	}
	r.setBank(bank)
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	r.newVoice = r.contextVoice
	return r
}

// NewRuntime validates bank and starts the monitor goroutine. Close stops it.
func NewRuntime(bank prefabs.BankSpec, opts ...Option) (*Runtime, error) {
	if err := bank.Validate(); err != nil {
		return nil, fmt.Errorf("backend: %w", err)
	}
	r := newRuntime(bank, opts...)
	if r.ctx == nil {
		r.ctx = audio.CurrentContext()
	}
	if r.ctx == nil {
		r.ctx = audio.NewContext(defaultSampleRate)
	}
	r.clips = newClipCache(r.load, r.ctx.SampleRate())

	r.wg.Add(1)
	go r.monitor()
	return r, nil
}

func (r *Runtime) setBank(bank prefabs.BankSpec) {
	events := make(map[string]prefabs.EventSpec, len(bank.Events))
	for _, ev := range bank.Events {
		events[ev.Name] = ev
	}
	r.mu.Lock()
	r.events = events
	r.mu.Unlock()
}

// ReloadBank swaps in a new bank. Live instances keep playing the clip they
// were created with.
func (r *Runtime) ReloadBank(bank prefabs.BankSpec) error {
	if err := bank.Validate(); err != nil {
		return fmt.Errorf("backend: reload bank: %w", err)
	}
	r.setBank(bank)
	if r.clips != nil {
		r.clips.flush()
	}
	return nil
}

// ForgetClip drops the decoded copy of path, typically after it changed on disk.
func (r *Runtime) ForgetClip(path string) {
	if r.clips != nil {
		r.clips.forget(path)
	}
}

func (r *Runtime) CreateInstance(def sound.Definition) (sound.Instance, error) {
	r.mu.Lock()
	ev, ok := r.events[def.Event]
	closed := r.closed
	live := len(r.instances)
	r.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("backend: unknown event %q: %w", def.Event, sound.ErrInvalidDefinition)
	}
	if closed {
		return nil, fmt.Errorf("backend: create %q: %w", def.Event, sound.ErrDeviceUnavailable)
	}
	if r.maxInstances > 0 && live >= r.maxInstances {
		return nil, fmt.Errorf("backend: create %q: %d live instances: %w", def.Event, live, sound.ErrResourceExhausted)
	}

	var pcm []byte
	if r.clips != nil {
		var err error
		if pcm, err = r.clips.pcm(ev.File); err != nil {
			return nil, err
		}
	}
	v, err := r.newVoice(ev, pcm)
	if err != nil {
		return nil, err
	}

	inst := newInstance(r, ev, v)
	r.mu.Lock()
	r.instances[inst.id] = inst
	r.mu.Unlock()
	return inst, nil
}

func (r *Runtime) CreateChannelGroup(name string) (sound.ChannelGroup, error) {
	return newChannelGroup(name), nil
}

// SetListener moves the point anchored instances are attenuated against.
func (r *Runtime) SetListener(pos cp.Vector) {
	r.mu.Lock()
	r.listener = pos
	r.mu.Unlock()
}

// SampleAnchors copies every live instance's anchor position. The monitor
// goroutine attenuates against these copies and never calls Position itself.
func (r *Runtime) SampleAnchors() {
	r.mu.Lock()
	insts := make([]*Instance, 0, len(r.instances))
	for _, inst := range r.instances {
		insts = append(insts, inst)
	}
	r.mu.Unlock()

	for _, inst := range insts {
		inst.sampleAnchor()
	}
}

func (r *Runtime) Listener() cp.Vector {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listener
}

// Live reports the number of instances that have not been released.
func (r *Runtime) Live() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.instances)
}

// Close stops the monitor and closes every remaining player.
func (r *Runtime) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	insts := make([]*Instance, 0, len(r.instances))
	for _, inst := range r.instances {
		insts = append(insts, inst)
	}
	r.instances = make(map[sound.InstanceID]*Instance)
	r.mu.Unlock()

	close(r.stopCh)
	r.wg.Wait()

	var errs []error
	for _, inst := range insts {
		if err := inst.closeVoice(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Runtime) contextVoice(ev prefabs.EventSpec, pcm []byte) (voice, error) {
	if r.ctx == nil {
		return nil, fmt.Errorf("backend: create %q: %w", ev.Name, sound.ErrDeviceUnavailable)
	}
	if !ev.Loop {
		return r.ctx.NewPlayerFromBytes(pcm), nil
	}
	loop := audio.NewInfiniteLoop(bytes.NewReader(pcm), int64(len(pcm)))
	p, err := r.ctx.NewPlayer(loop)
	if err != nil {
		return nil, fmt.Errorf("backend: player for %q: %v: %w", ev.Name, err, sound.ErrResourceExhausted)
	}
	return p, nil
}

func (r *Runtime) forget(id sound.InstanceID) {
	r.mu.Lock()
	delete(r.instances, id)
	r.mu.Unlock()
}

func (r *Runtime) monitor() {
	defer r.wg.Done()
	ticker := time.NewTicker(r.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.step()
		case <-r.stopCh:
			return
		}
	}
}

// step advances every live instance by one tick and delivers stop callbacks.
func (r *Runtime) step() {
	r.mu.Lock()
	listener := r.listener
	insts := make([]*Instance, 0, len(r.instances))
	for _, inst := range r.instances {
		insts = append(insts, inst)
	}
	r.mu.Unlock()

	fadeStep := 1.0
	if r.fade > 0 {
		fadeStep = float64(r.tick) / float64(r.fade)
	}
	for _, inst := range insts {
		inst.advance(listener, fadeStep)
	}
}

// spatialGain attenuates linearly with distance, reaching zero at maxDist.
func spatialGain(anchored bool, pos, listener cp.Vector, maxDist float64) float64 {
	if !anchored || maxDist <= 0 {
		return 1
	}
	dist := pos.Distance(listener)
	if dist >= maxDist {
		return 0
	}
	return common.Lerp(1, 0, dist/maxDist)
}
