package ecs

import "github.com/milk9111/xmod/ecs/component"

// ForEach calls fn for every entity with the component. fn may add or remove
// components; iteration runs over a snapshot of the ids.
func ForEach[T any](w *World, kind component.ComponentKind[T], fn func(Entity, *T)) {
	if w == nil || fn == nil {
		return
	}
	store := w.store(kind.ID(), false)
	if store.len() == 0 {
		return
	}
	ids := append([]uint32(nil), store.denseIDs...)
	for _, id := range ids {
		v, ok := store.get(id).(*T)
		if !ok {
			continue
		}
		fn(w.entityFor(id), v)
	}
}

// ForEach2 calls fn for every entity carrying both components.
func ForEach2[A, B any](w *World, ka component.ComponentKind[A], kb component.ComponentKind[B], fn func(Entity, *A, *B)) {
	if w == nil || fn == nil {
		return
	}
	sb := w.store(kb.ID(), false)
	if sb.len() == 0 {
		return
	}
	ForEach(w, ka, func(e Entity, a *A) {
		b, ok := sb.get(e.id()).(*B)
		if !ok {
			return
		}
		fn(e, a, b)
	})
}

// First returns the first entity with the component, if any.
func First[T any](w *World, kind component.ComponentKind[T]) (Entity, bool) {
	if w == nil {
		return 0, false
	}
	store := w.store(kind.ID(), false)
	if store.len() == 0 {
		return 0, false
	}
	return w.entityFor(store.denseIDs[0]), true
}
