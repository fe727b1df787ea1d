package backend

import (
	"errors"
	"fmt"
	"sync"

	"github.com/milk9111/xmod/sound"
)

var ErrGroupCycle = errors.New("backend: channel group cycle")

// ChannelGroup scales the volume of every instance merged into it, directly
// or through nested groups.
type ChannelGroup struct {
	name string

	mu     sync.Mutex
	volume float64
	parent *ChannelGroup
}

func newChannelGroup(name string) *ChannelGroup {
	return &ChannelGroup{name: name, volume: 1}
}

func (g *ChannelGroup) Name() string { return g.name }

func (g *ChannelGroup) SetVolume(v float64) error {
	g.mu.Lock()
	g.volume = v
	g.mu.Unlock()
	return nil
}

func (g *ChannelGroup) Volume() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.volume
}

func (g *ChannelGroup) Parent() *ChannelGroup {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.parent
}

// AddGroup reparents child under g.
func (g *ChannelGroup) AddGroup(child sound.ChannelGroup) error {
	c, ok := child.(*ChannelGroup)
	if !ok || c == nil {
		return fmt.Errorf("backend: add group: foreign channel group %T", child)
	}
	for p := g; p != nil; p = p.Parent() {
		if p == c {
			return fmt.Errorf("backend: add %q to %q: %w", c.name, g.name, ErrGroupCycle)
		}
	}
	c.mu.Lock()
	c.parent = g
	c.mu.Unlock()
	return nil
}

// chainVolume multiplies the volumes from g up to the root group.
func (g *ChannelGroup) chainVolume() float64 {
	v := 1.0
	for p := g; p != nil; p = p.Parent() {
		v *= p.Volume()
	}
	return v
}
