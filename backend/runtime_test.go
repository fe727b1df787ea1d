package backend

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jakecoffman/cp"
	"github.com/milk9111/xmod/assets"
	"github.com/milk9111/xmod/prefabs"
	"github.com/milk9111/xmod/sound"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeVoice struct {
	mu      sync.Mutex
	playing bool
	volume  float64
	closed  bool
}

func (v *fakeVoice) Play()  { v.mu.Lock(); v.playing = true; v.mu.Unlock() }
func (v *fakeVoice) Pause() { v.mu.Lock(); v.playing = false; v.mu.Unlock() }

func (v *fakeVoice) IsPlaying() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.playing
}

func (v *fakeVoice) SetVolume(f float64) { v.mu.Lock(); v.volume = f; v.mu.Unlock() }

func (v *fakeVoice) Close() error {
	v.mu.Lock()
	v.closed = true
	v.mu.Unlock()
	return nil
}

func (v *fakeVoice) Volume() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.volume
}

func (v *fakeVoice) Closed() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.closed
}

type point cp.Vector

func (p point) Position() cp.Vector { return cp.Vector(p) }

var testBank = prefabs.BankSpec{Events: []prefabs.EventSpec{
	{Name: "theme", File: "sounds/theme.wav", Loop: true},
	{Name: "quiet", File: "sounds/chime.wav", Gain: 0.5},
}}

// newTestRuntime returns a runtime without a device or monitor goroutine;
// tests drive ticks with step.
func newTestRuntime(t *testing.T, opts ...Option) (*Runtime, *[]*fakeVoice) {
	t.Helper()
	rt := newRuntime(testBank, opts...)
	voices := &[]*fakeVoice{}
	rt.newVoice = func(prefabs.EventSpec, []byte) (voice, error) {
		v := &fakeVoice{}
		*voices = append(*voices, v)
		return v, nil
	}
	return rt, voices
}

func create(t *testing.T, rt *Runtime, event string) *Instance {
	t.Helper()
	inst, err := rt.CreateInstance(sound.Definition{Event: event})
	require.NoError(t, err)
	return inst.(*Instance)
}

func TestCreateInstanceErrors(t *testing.T) {
	rt, _ := newTestRuntime(t, WithMaxInstances(1))

	_, err := rt.CreateInstance(sound.Definition{Event: "missing"})
	require.ErrorIs(t, err, sound.ErrInvalidDefinition)

	create(t, rt, "theme")
	_, err = rt.CreateInstance(sound.Definition{Event: "theme"})
	require.ErrorIs(t, err, sound.ErrResourceExhausted)

	require.NoError(t, rt.Close())
	_, err = rt.CreateInstance(sound.Definition{Event: "quiet"})
	require.ErrorIs(t, err, sound.ErrDeviceUnavailable)
}

func TestContextVoiceWithoutContext(t *testing.T) {
	rt := newRuntime(testBank)
	_, err := rt.contextVoice(testBank.Events[0], nil)
	require.ErrorIs(t, err, sound.ErrDeviceUnavailable)
}

func TestEffectiveVolume(t *testing.T) {
	rt, voices := newTestRuntime(t, WithMaxDistance(100))
	inst := create(t, rt, "quiet")

	require.NoError(t, inst.SetVolume(0.8))
	require.NoError(t, inst.Start())
	v := (*voices)[0]
	assert.InDelta(t, 0.4, v.Volume(), 1e-9, "bank gain applies")
	assert.Equal(t, 0.8, inst.Volume(), "instance volume is reported unscaled")

	named := newChannelGroup("sfx")
	require.NoError(t, named.SetVolume(0.5))
	require.NoError(t, named.AddGroup(inst.group))
	require.NoError(t, inst.SetVolume(0.8))
	assert.InDelta(t, 0.2, v.Volume(), 1e-9, "group chain applies")

	inst.AttachTo(point{X: 50})
	rt.step()
	assert.InDelta(t, 0.1, v.Volume(), 1e-9, "half way to max distance halves the gain")

	rt.SetListener(cp.Vector{X: 50})
	rt.step()
	assert.InDelta(t, 0.2, v.Volume(), 1e-9)
	assert.InDelta(t, 0.2, inst.AppliedVolume(), 1e-9)

	require.NoError(t, inst.SetVolume(10))
	assert.Equal(t, 1.0, v.Volume(), "device volume is clamped")
}

type movingAnchor struct {
	pos   cp.Vector
	reads int
}

func (a *movingAnchor) Position() cp.Vector {
	a.reads++
	return a.pos
}

func TestMonitorUsesSampledAnchorPosition(t *testing.T) {
	rt, voices := newTestRuntime(t, WithMaxDistance(100))
	inst := create(t, rt, "quiet")
	require.NoError(t, inst.Start())
	v := (*voices)[0]

	anchor := &movingAnchor{pos: cp.Vector{X: 50}}
	inst.AttachTo(anchor)
	require.Equal(t, 1, anchor.reads)

	anchor.pos = cp.Vector{X: 100}
	rt.step()
	assert.Equal(t, 1, anchor.reads, "monitor must not read the anchor")
	assert.InDelta(t, 0.25, v.Volume(), 1e-9, "attenuates against the last sample")

	rt.SampleAnchors()
	assert.Equal(t, 2, anchor.reads)
	rt.step()
	assert.InDelta(t, 0, v.Volume(), 1e-9)
}

func TestNaturalEndDeliversCallbackOnce(t *testing.T) {
	rt, voices := newTestRuntime(t)
	inst := create(t, rt, "theme")

	var got []sound.InstanceID
	inst.SetStoppedCallback(func(id sound.InstanceID) { got = append(got, id) })
	require.NoError(t, inst.Start())

	rt.step()
	assert.Empty(t, got)

	(*voices)[0].Pause()
	rt.step()
	rt.step()
	assert.Equal(t, []sound.InstanceID{inst.ID()}, got)

	require.NoError(t, inst.Release())
	assert.True(t, (*voices)[0].Closed())
	assert.Equal(t, 0, rt.Live())
	assert.False(t, inst.Valid())
	require.NoError(t, inst.Release(), "second release is a no-op")
	require.ErrorIs(t, inst.SetVolume(1), ErrReleased)
}

func TestFadeOutStopThenRelease(t *testing.T) {
	rt, voices := newTestRuntime(t, WithTick(10*time.Millisecond), WithFadeDuration(40*time.Millisecond))
	inst := create(t, rt, "theme")
	stopped := 0
	inst.SetStoppedCallback(func(sound.InstanceID) { stopped++ })
	require.NoError(t, inst.Start())

	require.NoError(t, inst.Stop(sound.StopFadeOut))
	require.NoError(t, inst.Release())
	v := (*voices)[0]
	assert.False(t, v.Closed(), "voice stays open while fading")
	assert.Equal(t, 1, rt.Live())

	rt.step()
	assert.InDelta(t, 0.75, v.Volume(), 1e-9)
	for i := 0; i < 3; i++ {
		rt.step()
	}
	assert.Equal(t, 1, stopped)
	assert.True(t, v.Closed())
	assert.False(t, v.IsPlaying())
	assert.Equal(t, 0, rt.Live())
}

func TestImmediateStop(t *testing.T) {
	rt, voices := newTestRuntime(t)
	inst := create(t, rt, "theme")
	stopped := 0
	inst.SetStoppedCallback(func(sound.InstanceID) { stopped++ })
	require.NoError(t, inst.Start())

	require.NoError(t, inst.Stop(sound.StopImmediate))
	assert.False(t, (*voices)[0].IsPlaying())
	rt.step()
	assert.Equal(t, 1, stopped)
	require.NoError(t, inst.Stop(sound.StopImmediate))
}

func TestChannelGroupCycle(t *testing.T) {
	a := newChannelGroup("a")
	b := newChannelGroup("b")
	require.NoError(t, a.AddGroup(b))
	require.ErrorIs(t, b.AddGroup(a), ErrGroupCycle)
	require.ErrorIs(t, a.AddGroup(a), ErrGroupCycle)
	assert.Same(t, a, b.Parent())

	require.NoError(t, a.SetVolume(0.5))
	require.NoError(t, b.SetVolume(0.5))
	assert.InDelta(t, 0.25, b.chainVolume(), 1e-9)
}

func TestClipCacheDecodesOnce(t *testing.T) {
	calls := 0
	c := newClipCache(func(path string) ([]byte, error) {
		calls++
		return assets.LoadAudio(path)
	}, defaultSampleRate)

	first, err := c.pcm("sounds/chime.wav")
	require.NoError(t, err)
	require.NotEmpty(t, first)
	assert.Zero(t, len(first)%4, "16-bit stereo frames")

	_, err = c.pcm("sounds/chime.wav")
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	c.forget("sounds/chime.wav")
	_, err = c.pcm("sounds/chime.wav")
	require.NoError(t, err)
	assert.Equal(t, 2, calls)

	_, err = c.pcm("sounds/missing.wav")
	require.ErrorIs(t, err, sound.ErrInvalidDefinition)

	bad := newClipCache(func(string) ([]byte, error) { return []byte("not a wav"), nil }, defaultSampleRate)
	_, err = bad.pcm("broken.wav")
	require.ErrorIs(t, err, sound.ErrInvalidDefinition)

	failing := newClipCache(func(string) ([]byte, error) { return nil, errors.New("boom") }, defaultSampleRate)
	_, err = failing.pcm("x.wav")
	require.ErrorIs(t, err, sound.ErrInvalidDefinition)
}

func TestReloadBank(t *testing.T) {
	rt, _ := newTestRuntime(t)
	require.Error(t, rt.ReloadBank(prefabs.BankSpec{Events: []prefabs.EventSpec{{Name: "x"}}}))

	require.NoError(t, rt.ReloadBank(prefabs.BankSpec{Events: []prefabs.EventSpec{{Name: "fresh", File: "sounds/hum.wav"}}}))
	_, err := rt.CreateInstance(sound.Definition{Event: "theme"})
	require.ErrorIs(t, err, sound.ErrInvalidDefinition)
	create(t, rt, "fresh")
}

func TestRegistryOverBackend(t *testing.T) {
	rt, voices := newTestRuntime(t)
	reg := sound.NewRegistry(rt)
	vol := 0.5
	s, err := reg.NewSound(sound.Config{Definition: sound.Definition{Event: "theme"}, Volume: &vol})
	require.NoError(t, err)

	_, err = s.Play("music")
	require.NoError(t, err)
	v := (*voices)[0]
	assert.InDelta(t, 0.5, v.Volume(), 1e-9)

	g, ok := reg.ChannelGroup("music")
	require.True(t, ok)
	require.NoError(t, g.SetVolume(0.5))
	rt.step()
	assert.InDelta(t, 0.25, v.Volume(), 1e-9)

	v.Pause()
	rt.step()
	reg.Update()
	assert.False(t, s.Playing())
	assert.True(t, v.Closed())
	assert.Equal(t, 0, rt.Live())
}
