package main

import (
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/milk9111/xmod/assets"
	"github.com/milk9111/xmod/backend"
	"github.com/milk9111/xmod/ecs"
	"github.com/milk9111/xmod/ecs/entity"
	"github.com/milk9111/xmod/ecs/system"
	"github.com/milk9111/xmod/prefabs"
	"github.com/milk9111/xmod/sound"
)

const (
	baseWidth  = 1280
	baseHeight = 720

	volumeStep = 0.1
)

type Game struct {
	frames int
	debug  bool

	sceneName string
	bankName  string

	world     *ecs.World
	scheduler *ecs.Scheduler
	scripts   *system.SoundScriptSystem

	runtime  *backend.Runtime
	registry *sound.Registry
	scene    *entity.Scene
	watcher  *prefabs.Watcher

	// restoreVolume holds the multiplier to go back to when unmuting.
	restoreVolume float64
}

func NewGame(sceneName string, debug, watch bool) (*Game, error) {
	spec, err := prefabs.LoadSceneSpec(sceneName)
	if err != nil {
		return nil, err
	}
	bank, err := prefabs.LoadBankSpec(spec.Bank)
	if err != nil {
		return nil, err
	}

	rt, err := backend.NewRuntime(bank)
	if err != nil {
		return nil, err
	}
	reg := sound.NewRegistry(rt)

	w := ecs.NewWorld()
	scene, err := entity.BuildScene(w, reg, spec)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}

	scripts := system.NewSoundScriptSystem(reg, nil)
	g := &Game{
		debug:     debug,
		sceneName: sceneName,
		bankName:  spec.Bank,
		world:     w,
		scripts:   scripts,
		scheduler: ecs.NewScheduler(
			system.NewSoundPlayerSystem(nil),
			scripts,
			system.NewSoundRegistrySystem(reg),
		),
		runtime:  rt,
		registry: reg,
		scene:    scene,
	}

	if watch {
		watcher, err := prefabs.NewWatcher(prefabs.Dir, filepath.Join(prefabs.Dir, "scripts"), filepath.Join(assets.Dir, "sounds"))
		if err != nil {
			log.Printf("watch: disabled: %v", err)
		} else {
			g.watcher = watcher
		}
	}

	return g, nil
}

func (g *Game) Update() error {
	if ebiten.IsWindowBeingClosed() {
		return ebiten.Termination
	}
	g.frames++

	g.handleInput()
	g.pollChanges()
	g.scheduler.Update(g.world)

	return nil
}

func (g *Game) handleInput() {
	m := g.registry.GlobalVolumeMultiplier()
	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeyUp):
		g.registry.SetGlobalVolumeMultiplier(m + volumeStep)
	case inpututil.IsKeyJustPressed(ebiten.KeyDown):
		g.registry.SetGlobalVolumeMultiplier(max(0, m-volumeStep))
	case inpututil.IsKeyJustPressed(ebiten.KeyM):
		if m > 0 {
			g.restoreVolume = m
			g.registry.SetGlobalVolumeMultiplier(0)
		} else {
			g.registry.SetGlobalVolumeMultiplier(max(g.restoreVolume, volumeStep))
		}
	case inpututil.IsKeyJustPressed(ebiten.KeyS):
		for _, s := range g.registry.Active() {
			if err := s.Stop(sound.StopFadeOut); err != nil {
				log.Printf("sound: stop %s: %v", s.Definition(), err)
			}
		}
	case inpututil.IsKeyJustPressed(ebiten.KeyR):
		g.reloadScene()
	}
}

func (g *Game) pollChanges() {
	if g.watcher == nil {
		return
	}
	for {
		select {
		case change, ok := <-g.watcher.Events:
			if !ok {
				g.watcher = nil
				return
			}
			g.applyChange(change)
		case err, ok := <-g.watcher.Errors:
			if !ok {
				g.watcher = nil
				return
			}
			log.Printf("watch: %v", err)
		default:
			return
		}
	}
}

func (g *Game) applyChange(change prefabs.Change) {
	switch change.Kind {
	case prefabs.ChangeSpec:
		if filepath.Base(change.Path) == filepath.Base(g.bankName) {
			bank, err := prefabs.LoadBankSpec(g.bankName)
			if err != nil {
				log.Printf("watch: bank %s: %v", g.bankName, err)
				return
			}
			if err := g.runtime.ReloadBank(bank); err != nil {
				log.Printf("watch: bank %s: %v", g.bankName, err)
				return
			}
			log.Printf("watch: reloaded bank %s", g.bankName)
			return
		}
		g.reloadScene()
	case prefabs.ChangeScript:
		g.scripts.Invalidate(g.world)
		log.Printf("watch: reloaded script %s", change.Path)
	case prefabs.ChangeClip:
		rel, err := filepath.Rel(assets.Dir, change.Path)
		if err != nil {
			rel = change.Path
		}
		g.runtime.ForgetClip(filepath.ToSlash(rel))
		log.Printf("watch: clip %s changed", rel)
	}
}

// reloadScene replaces the scene's entities with a fresh build from disk. The
// old scene stays when the new one fails to load.
func (g *Game) reloadScene() {
	spec, err := prefabs.LoadSceneSpec(g.sceneName)
	if err != nil {
		log.Printf("scene: reload %s: %v", g.sceneName, err)
		return
	}
	if err := entity.DestroyScene(g.world, g.scene); err != nil {
		log.Printf("scene: teardown %s: %v", g.sceneName, err)
	}
	scene, err := entity.BuildScene(g.world, g.registry, spec)
	if err != nil {
		log.Printf("scene: rebuild %s: %v", g.sceneName, err)
		g.scene = nil
		return
	}
	g.scene = scene
	g.scripts.Invalidate(g.world)
	log.Printf("scene: reloaded %s", g.sceneName)
}

func (g *Game) Draw(screen *ebiten.Image) {
	var b strings.Builder
	fmt.Fprintf(&b, "Frames: %d    FPS: %.2f\n", g.frames, ebiten.ActualFPS())
	fmt.Fprintf(&b, "Scene: %s    Global volume: %.2f\n", g.sceneName, g.registry.GlobalVolumeMultiplier())
	fmt.Fprintf(&b, "Active sounds: %d    Live instances: %d\n", len(g.registry.Active()), g.runtime.Live())
	fmt.Fprintf(&b, "Channel groups: %s\n", strings.Join(g.registry.ChannelGroupNames(), ", "))
	b.WriteString("Up/Down volume  M mute  S stop all  R reload scene\n")

	if g.debug {
		if mod, ok := prefabs.ModTime(g.sceneName); ok {
			fmt.Fprintf(&b, "Scene on disk, modified %s\n", mod.Format(time.Kitchen))
		} else {
			b.WriteString("Scene embedded\n")
		}
		names := make([]string, 0)
		for _, s := range g.registry.Active() {
			names = append(names, fmt.Sprintf("%s vol=%.2f once=%t", s.Definition(), s.Volume(), s.PlayOnce()))
		}
		sort.Strings(names)
		for _, n := range names {
			b.WriteString("  " + n + "\n")
		}
	}

	ebitenutil.DebugPrint(screen, b.String())
}

func (g *Game) Close() error {
	var errs []error
	if g.watcher != nil {
		errs = append(errs, g.watcher.Close())
	}
	errs = append(errs, entity.DestroyScene(g.world, g.scene))
	errs = append(errs, g.registry.Close())
	errs = append(errs, g.runtime.Close())
	return errors.Join(errs...)
}

func (g *Game) LayoutF(outsideWidth, outsideHeight float64) (float64, float64) {
	return baseWidth, baseHeight
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	panic("shouldn't use Layout")
}
