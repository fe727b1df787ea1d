package component

import "github.com/jakecoffman/cp"

type Transform struct {
	X float64
	Y float64
}

// Position makes a transform usable as a sound anchor; instances attached to
// it follow the entity as it moves.
func (t *Transform) Position() cp.Vector {
	if t == nil {
		return cp.Vector{}
	}
	return cp.Vector{X: t.X, Y: t.Y}
}

var TransformComponent = NewComponent[Transform]()
