package sound

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jakecoffman/cp"
)

// DefaultChannelGroup is the group sounds join when no other name is configured.
const DefaultChannelGroup = "master_channel_group"

var (
	ErrInvalidDefinition = errors.New("sound: invalid definition")
	ErrDeviceUnavailable = errors.New("sound: audio device unavailable")
	ErrResourceExhausted = errors.New("sound: audio resources exhausted")
	ErrNilRegistry       = errors.New("sound: registry is nil")
)

// Definition references an externally authored audio event by name.
type Definition struct {
	Event string
}

// Valid reports whether the definition names an event.
func (d Definition) Valid() bool {
	return strings.TrimSpace(d.Event) != ""
}

func (d Definition) String() string {
	return d.Event
}

// StopMode selects how a playing instance is stopped.
type StopMode int

const (
	StopImmediate StopMode = iota
	StopFadeOut
)

func (m StopMode) String() string {
	switch m {
	case StopImmediate:
		return "immediate"
	case StopFadeOut:
		return "fade_out"
	default:
		return "unknown"
	}
}

// InstanceID identifies one native playback instance.
type InstanceID uuid.UUID

func NewInstanceID() InstanceID {
	return InstanceID(uuid.New())
}

func (id InstanceID) String() string {
	return uuid.UUID(id).String()
}

// Anchor is a spatial position a playing instance follows. Position is only
// called from the goroutine that runs Registry.Update; runtimes that need the
// position elsewhere sample it through AnchorRuntime.
type Anchor interface {
	Position() cp.Vector
}

// Runtime is the audio engine that owns decoding, mixing and device output.
type Runtime interface {
	CreateInstance(def Definition) (Instance, error)
	CreateChannelGroup(name string) (ChannelGroup, error)
}

// Instance is a single live occurrence of an event.
//
// The stopped callback is invoked from a goroutine owned by the runtime when
// the instance stops for any reason.
type Instance interface {
	ID() InstanceID
	SetVolume(v float64) error
	Volume() float64
	Start() error
	Stop(mode StopMode) error
	Release() error
	Valid() bool
	ChannelGroup() (ChannelGroup, error)
	AttachTo(anchor Anchor)
	SetStoppedCallback(fn func(InstanceID))
}

// ChannelGroup is a sub-mix that other groups can be merged into.
type ChannelGroup interface {
	Name() string
	AddGroup(child ChannelGroup) error
	SetVolume(v float64) error
	Volume() float64
}

// ListenerRuntime is implemented by runtimes that attenuate by distance from a listener.
type ListenerRuntime interface {
	SetListener(pos cp.Vector)
}

// AnchorRuntime is implemented by runtimes that read anchor positions off the
// update goroutine. SampleAnchors is called once per frame from it.
type AnchorRuntime interface {
	SampleAnchors()
}
