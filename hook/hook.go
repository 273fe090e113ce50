// Copyright (c) 2016 - 2020 Sqreen. All Rights Reserved.
// Please refer to our terms for more information:
// https://www.sqreen.io/terms.html

// Package hook allows to intercept at run time the method calls of one
// specific object instance, leaving every other instance of the same type
// untouched and without altering the type's definition. Interception is
// implemented with per-object subtypes of package object: the first hook on
// an object synthesizes a subtype of its runtime type, re-points the object's
// dispatch at it and hosts the method overrides there. The subtype overrides
// the type-identity accessor so that type queries keep answering the original
// type, and overrides the destructor so that destroying the object removes
// its outstanding hooks.
//
// Hooks installed on the same (object, method) pair chain up: the newest hook
// receives the call and can call through to the implementation it replaced
// via Original(). Hooks are reference counted and can be removed in any
// order; removing a hook from the middle of a chain preserves the
// restoration order of the remaining ones.
//
// Main requirements
//
// - Installation and removal are serialized under a single engine lock,
//   across every object and every goroutine.
// - Method invocation is deliberately not serialized with removal: a call
//   racing with a removal observes either the hooked or the original
//   implementation. Dispatch reads are atomic so the race is benign.
// - Replacement implementations are plain function values called through
//   type assertions; reflection is only used by the FromFunc convenience
//   wrapper.
// - Installation failures are returned as errors and logged, never thrown.
package hook

import (
	"reflect"
	"sync/atomic"
	"unsafe"

	"github.com/JonasGessner/instancehook/internal/ihlib/iherrors"
	"github.com/JonasGessner/instancehook/object"
)

// Hook is an installed interception of one method of one object. The zero
// value is not usable; hooks are obtained from New or NewFromFunc with one
// reference owned by the caller.
type Hook struct {
	// Hooked object. Non-owning; nil once the object has been destroyed.
	target object.Object
	// Intercepted method.
	method object.MethodID
	// Implementation installed by this hook.
	replacement object.Impl
	// Implementation this hook restores on removal: the next-older hook's
	// replacement, or the type's pre-hook implementation at the chain tail.
	original object.Impl
	// Reference count, atomic. Starts at 1.
	refs int32
	// True while installed. Guarded by the engine lock; set false exactly
	// once on removal.
	valid bool
}

// ReflectedImpl is a generic method implementation for NewFromFunc. It
// receives every call argument, receiver included, and returns the call's
// result values.
type ReflectedImpl = func(args []reflect.Value) (results []reflect.Value)

// New installs `replacement` as the implementation of `method` for the single
// object `obj` and returns the hook record with one reference owned by the
// caller. The replacement must be a function value of the method's signature.
// It becomes the newest link of the (object, method) chain: calls dispatch to
// it, and it can call through to the implementation it replaced with
// Original().
//
// New fails without any state change when an argument is nil or invalid, when
// the object's type does not define the method, when the object is already
// destroyed, or when the per-object subtype cannot be created.
func New(obj object.Object, method object.MethodID, replacement object.Impl) (*Hook, error) {
	if obj == nil {
		return nil, iherrors.New("hook: nil object")
	}
	if method == "" {
		return nil, iherrors.New("hook: empty method identifier")
	}
	if replacement == nil {
		return nil, iherrors.Errorf("hook: nil replacement for method `%s`", method)
	}
	if reflect.TypeOf(replacement).Kind() != reflect.Func {
		return nil, iherrors.Errorf("hook: replacement of method `%s` is not a function but `%T`", method, replacement)
	}
	if object.Destroyed(obj) {
		return nil, iherrors.Errorf("hook: object is already destroyed")
	}
	if settings().disabled {
		return nil, iherrors.New("hook: the engine is disabled by the configuration")
	}

	h := &Hook{
		target:      obj,
		method:      method,
		replacement: replacement,
		refs:        1,
	}

	engine.mu.Lock()
	defer engine.mu.Unlock()
	if err := installLocked(h); err != nil {
		return nil, err
	}
	h.valid = true
	return h, nil
}

// NewFromFunc is the convenience counterpart of New for call sites that do
// not know the method's concrete function type: `fn` is wrapped with
// `reflect.MakeFunc` into an implementation of the hooked method's signature
// and installed with New. The wrapped call is significantly slower than a
// typed replacement.
func NewFromFunc(obj object.Object, method object.MethodID, fn ReflectedImpl) (*Hook, error) {
	if fn == nil {
		return nil, iherrors.Errorf("hook: nil callable for method `%s`", method)
	}
	if obj == nil {
		return nil, iherrors.New("hook: nil object")
	}
	actual := object.TypeOf(obj)
	if actual == nil {
		return nil, iherrors.New("hook: object has no runtime type")
	}
	base := actual.Lookup(method)
	if base == nil {
		return nil, iherrors.Errorf("hook: type `%s` has no method `%s`", actual.Name(), method)
	}

	impl := reflect.MakeFunc(reflect.TypeOf(base), fn).Interface()
	return New(obj, method, impl)
}

// Retain increments the hook's reference count and returns it. No-op on nil.
func (h *Hook) Retain() *Hook {
	if h == nil {
		return nil
	}
	atomic.AddInt32(&h.refs, 1)
	return h
}

// Release drops one reference. When the count first reaches zero the hook is
// removed if still installed, and its record is left to the garbage
// collector. Every New and Retain must be paired with exactly one Release.
func (h *Hook) Release() {
	if h == nil {
		return
	}
	if atomic.AddInt32(&h.refs, -1) != 0 {
		return
	}
	engine.mu.Lock()
	removeLocked(h)
	engine.mu.Unlock()
}

// Remove uninstalls the hook and drops the caller's reference. This is the
// conventional way to tear down a hook obtained from New. Removing an
// already-removed hook only drops the reference.
func (h *Hook) Remove() {
	if h == nil {
		return
	}
	engine.mu.Lock()
	removeLocked(h)
	engine.mu.Unlock()
	h.Release()
}

// IsValid returns true while the hook is installed. It becomes false on
// removal, including the automatic removal triggered by the destruction of
// the hooked object.
func (h *Hook) IsValid() bool {
	if h == nil {
		return false
	}
	engine.mu.Lock()
	defer engine.mu.Unlock()
	return h.valid
}

// Original returns the implementation this hook replaced, so that the
// replacement can call through to the behavior it overrode. The returned
// value has the method's function type. Nil when the hook is nil.
func (h *Hook) Original() object.Impl {
	if h == nil {
		return nil
	}
	engine.mu.Lock()
	defer engine.mu.Unlock()
	return h.original
}

// Target returns the hooked object, nil once it has been destroyed.
func (h *Hook) Target() object.Object {
	if h == nil {
		return nil
	}
	engine.mu.Lock()
	defer engine.mu.Unlock()
	return h.target
}

// Method returns the intercepted method identifier.
func (h *Hook) Method() object.MethodID {
	if h == nil {
		return ""
	}
	return h.method
}

// sameImpl compares two implementation values by identity, ie. whether both
// interface values carry the same function value. Func values are not
// comparable with == and reflect.Value.Pointer is not unique across closures,
// so the interface data words are compared instead.
func sameImpl(a, b object.Impl) bool {
	return a != nil && b != nil && ifaceDataWord(a) == ifaceDataWord(b)
}

func ifaceDataWord(v interface{}) uintptr {
	return (*[2]uintptr)(unsafe.Pointer(&v))[1]
}
