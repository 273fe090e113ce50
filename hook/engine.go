// Copyright (c) 2016 - 2020 Sqreen. All Rights Reserved.
// Please refer to our terms for more information:
// https://www.sqreen.io/terms.html

package hook

import (
	"fmt"
	"sync"

	"github.com/JonasGessner/instancehook/internal/ihlib/ihassert"
	"github.com/JonasGessner/instancehook/internal/ihlib/iherrors"
	"github.com/JonasGessner/instancehook/object"
)

// engine is the process-wide registry state. One coarse-grained lock
// serializes every installation, removal, scope registration and
// destructor-triggered cleanup, across all objects. Method invocation does
// not take it.
var engine = struct {
	mu sync.Mutex
	// One subtype per hooked object, created by the first hook and disposed
	// with the last one.
	shadowTypeOf map[*object.Instance]*object.Type
	// Hook chains per object and method, ordered oldest to newest. The last
	// element is the active one, wired into the object's subtype.
	hooksOf map[*object.Instance]map[object.MethodID][]*Hook
	// Hooks registered for the duration of a unit of work, per token and
	// object.
	scopeOf map[interface{}]map[*object.Instance]*Hook
}{
	shadowTypeOf: make(map[*object.Instance]*object.Type),
	hooksOf:      make(map[*object.Instance]map[object.MethodID][]*Hook),
	scopeOf:      make(map[interface{}]map[*object.Instance]*Hook),
}

// Error keys for log rate limiting.
type (
	brokenChainLogKey    struct{}
	scopeCollisionLogKey struct{}
	shadowCreationLogKey struct{}
)

func shadowTypeName(original *object.Type, key *object.Instance) string {
	return fmt.Sprintf("%s(instance %p)", original.Name(), key)
}

// installLocked performs the installation steps of the given record. The
// engine lock must be held. On error, no state change is visible.
func installLocked(h *Hook) error {
	obj := h.target
	actual := object.TypeOf(obj)
	if actual == nil {
		return iherrors.New("hook: object has no runtime type")
	}
	if actual.Lookup(h.method) == nil {
		return iherrors.Errorf("hook: type `%s` has no method `%s`", actual.Name(), h.method)
	}

	key := object.Key(obj)
	shadow, fresh := engine.shadowTypeOf[key], false
	if shadow == nil {
		parent := object.EffectiveType(obj)
		s, err := object.NewType(shadowTypeName(actual, key), parent)
		if err != nil {
			err = iherrors.WithKey(iherrors.Wrapf(err, "hook: could not create the subtype of `%s`", actual.Name()), shadowCreationLogKey{})
			logger().Error(err)
			return err
		}
		// Hide the subtype from type queries.
		s.SetIdentity(func() *object.Type { return actual })
		// Destroying the object removes its outstanding hooks before the
		// type's own destructor runs. Installed once per subtype; every
		// later hook on this object reuses it.
		parentDtor := parent.Destructor()
		s.SetDestructor(func(o object.Object) {
			removeAllOnDestroy(o)
			if parentDtor != nil {
				parentDtor(o)
			}
		})
		engine.shadowTypeOf[key] = s
		shadow, fresh = s, true
	}

	// The currently active implementation: the newest hook's replacement, or
	// the type's own implementation when this is the first hook.
	h.original = object.EffectiveType(obj).Lookup(h.method)
	if err := shadow.Define(h.method, h.replacement); err != nil {
		if fresh {
			object.DisposeType(shadow)
			delete(engine.shadowTypeOf, key)
		}
		return err
	}

	methods := engine.hooksOf[key]
	if methods == nil {
		methods = make(map[object.MethodID][]*Hook)
		engine.hooksOf[key] = methods
	}
	methods[h.method] = append(methods[h.method], h)

	object.SetEffectiveType(obj, shadow)
	return nil
}

// removeLocked uninstalls the given record. The engine lock must be held.
// No-op when the record is already removed, so concurrent double-removal is
// harmless.
func removeLocked(h *Hook) {
	if !h.valid {
		return
	}
	h.valid = false

	if h.target == nil {
		return
	}
	key := object.Key(h.target)

	methods := engine.hooksOf[key]
	var chain []*Hook
	if methods != nil {
		chain = methods[h.method]
	}

	idx := -1
	for i, r := range chain {
		if r == h {
			idx = i
			break
		}
	}

	switch {
	case idx < 0:
		// Registry corruption: the record should be in its chain. Report and
		// keep going, removal is best effort.
		logger().Error(iherrors.WithKey(
			iherrors.Errorf("hook: record of method `%s` not found in its chain", h.method),
			brokenChainLogKey{}))

	case idx == len(chain)-1:
		// Newest record: restore the implementation it replaced.
		if shadow := engine.shadowTypeOf[key]; shadow != nil {
			if h.original != nil {
				ihassert.NoError(shadow.Define(h.method, h.original))
			} else {
				shadow.Remove(h.method)
			}
		}
		fallthrough

	default:
		if idx < len(chain)-1 {
			// Middle of the chain: the next-newer record restores what this
			// one would have restored.
			next := chain[idx+1]
			if sameImpl(next.original, h.replacement) {
				next.original = h.original
			}
		}
		chain = append(chain[:idx], chain[idx+1:]...)
		if len(chain) == 0 {
			delete(methods, h.method)
		} else {
			methods[h.method] = chain
		}
	}

	if methods != nil && len(methods) == 0 {
		delete(engine.hooksOf, key)
	}

	// Last hook on the object: revert its type and dispose the subtype.
	if _, remaining := engine.hooksOf[key]; !remaining {
		if shadow := engine.shadowTypeOf[key]; shadow != nil {
			object.SetEffectiveType(h.target, shadow.Parent())
			object.DisposeType(shadow)
			delete(engine.shadowTypeOf, key)
		}
	}
}

// removeAllOnDestroy is the destructor override cleanup: it removes every
// still-valid hook of the object being destroyed and clears their target
// references. It runs inline on the destroying goroutine and takes the
// engine lock, so destruction cannot overlap any install or removal.
func removeAllOnDestroy(o object.Object) {
	engine.mu.Lock()
	defer engine.mu.Unlock()

	key := object.Key(o)
	var records []*Hook
	for _, chain := range engine.hooksOf[key] {
		// Newest first, matching explicit removal order.
		for i := len(chain) - 1; i >= 0; i-- {
			records = append(records, chain[i])
		}
	}
	for _, h := range records {
		removeLocked(h)
		h.target = nil
	}
}

// Reset removes every live hook and clears the process-wide registries,
// including every token scope registration. Outstanding hook handles become
// invalid but remain safe to release. Meant for embedders wanting a clean
// engine shutdown, and for tests.
func Reset() {
	engine.mu.Lock()
	defer engine.mu.Unlock()

	var records []*Hook
	for _, methods := range engine.hooksOf {
		for _, chain := range methods {
			for i := len(chain) - 1; i >= 0; i-- {
				records = append(records, chain[i])
			}
		}
	}
	for _, h := range records {
		removeLocked(h)
	}
	engine.scopeOf = make(map[interface{}]map[*object.Instance]*Hook)
}

// CountFor returns the number of live hooks installed on the object.
func CountFor(obj object.Object) int {
	if obj == nil {
		return 0
	}
	engine.mu.Lock()
	defer engine.mu.Unlock()
	n := 0
	for _, chain := range engine.hooksOf[object.Key(obj)] {
		n += len(chain)
	}
	return n
}
