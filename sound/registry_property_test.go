package sound_test

import (
	"math"
	"testing"

	"github.com/milk9111/xmod/sound"
	"github.com/milk9111/xmod/sound/soundtest"
	"pgregory.net/rapid"
)

// Random sequences of play/stop/finish/volume operations must keep the
// registry's active set and every live instance's volume consistent.
func TestRegistryInvariantsProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		rt := soundtest.NewRuntime()
		reg := sound.NewRegistry(rt)

		n := rapid.IntRange(1, 5).Draw(t, "sounds")
		sounds := make([]*sound.Sound, 0, n)
		for i := 0; i < n; i++ {
			vol := rapid.Float64Range(-1, 2).Draw(t, "volume")
			s, err := reg.NewSound(sound.Config{
				Definition: sound.Definition{Event: "ev"},
				PlayOnce:   rapid.Bool().Draw(t, "playOnce"),
				Volume:     &vol,
			})
			if err != nil {
				t.Fatalf("new sound: %v", err)
			}
			sounds = append(sounds, s)
		}

		steps := rapid.IntRange(1, 40).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			s := sounds[rapid.IntRange(0, n-1).Draw(t, "target")]
			switch rapid.IntRange(0, 4).Draw(t, "op") {
			case 0:
				before := len(rt.Instances())
				wasPlaying := s.Playing()
				prev := s.Instance()
				blocked := s.PlayOnce() && s.PlayedOnce()
				inst, err := s.Play(rapid.SampledFrom([]string{"", "music", "sfx"}).Draw(t, "group"))
				if err != nil {
					t.Fatalf("play: %v", err)
				}
				if blocked {
					if inst != nil || len(rt.Instances()) != before || s.Playing() != wasPlaying || s.Instance() != prev {
						t.Fatalf("play-once sound changed state on replay")
					}
				}
			case 1:
				if err := s.Stop(sound.StopImmediate); err != nil {
					t.Fatalf("stop: %v", err)
				}
				if s.Playing() || reg.IsActive(s) {
					t.Fatalf("stopped sound still active")
				}
			case 2:
				if inst, ok := s.Instance().(*soundtest.Instance); ok {
					rt.Finish(inst)
					reg.Update()
					if reg.IsActive(s) {
						t.Fatalf("finished sound still active")
					}
				}
			case 3:
				if err := s.SetVolume(rapid.Float64Range(-1, 2).Draw(t, "setVolume")); err != nil {
					t.Fatalf("set volume: %v", err)
				}
			case 4:
				reg.SetGlobalVolumeMultiplier(rapid.Float64Range(0, 2).Draw(t, "global"))
			}

			m := reg.GlobalVolumeMultiplier()
			for _, s := range sounds {
				if s.Playing() != reg.IsActive(s) {
					t.Fatalf("playing=%v but active=%v", s.Playing(), reg.IsActive(s))
				}
				if !s.Playing() {
					continue
				}
				inst := s.Instance()
				if inst == nil || !inst.Valid() {
					t.Fatalf("playing sound without a valid instance")
				}
				if math.Abs(inst.Volume()-s.Volume()*m) > 1e-9 {
					t.Fatalf("applied volume %v, want %v", inst.Volume(), s.Volume()*m)
				}
			}
		}

		for _, inst := range rt.Instances() {
			if inst.ReleaseCount() > 1 {
				t.Fatalf("instance released %d times", inst.ReleaseCount())
			}
		}
	})
}
