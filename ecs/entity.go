package ecs

import "fmt"

// Entity packs a slot index and the slot's generation, so a handle to a
// destroyed entity never aliases the next entity that reuses the slot.
type Entity uint64

const entityIDBits = 32

func makeEntity(id uint32, gen uint32) Entity {
	return Entity(uint64(gen)<<entityIDBits | uint64(id))
}

func (e Entity) id() uint32 {
	return uint32(e)
}

func (e Entity) generation() uint32 {
	return uint32(uint64(e) >> entityIDBits)
}

func (e Entity) String() string {
	return fmt.Sprintf("%d:%d", e.id(), e.generation())
}

func (e Entity) Valid() bool {
	return e.id() > 0
}
