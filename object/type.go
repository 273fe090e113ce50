// Copyright (c) 2016 - 2020 Sqreen. All Rights Reserved.
// Please refer to our terms for more information:
// https://www.sqreen.io/terms.html

// Package object implements the method-dispatch runtime the hook engine
// relies on. A runtime type is an explicit method table: a named map of
// method identifiers to function values, chained to an optional parent table.
// Objects embed an Instance which carries their effective type pointer, so a
// single object can be re-pointed at a subtype without affecting any other
// instance of the same type.
//
// Method implementations are stored as plain `interface{}` function values
// whose first parameter is the receiver. Call sites that know the concrete
// signature should use Resolve and a type assertion, which is a regular
// pointer-to-function call. Call is the reflect-based fallback for generic
// call sites and is much slower.
package object

import (
	"reflect"
	"sync"

	"github.com/JonasGessner/instancehook/internal/ihlib/iherrors"
)

// MethodID identifies a method on a type.
type MethodID string

// Impl is a method implementation: a function value whose first parameter is
// the receiver.
type Impl interface{}

// DestructorImpl is a destructor implementation, run by Destroy.
type DestructorImpl func(Object)

// Type is a runtime type descriptor: a named method table with an optional
// parent table consulted when a method is not defined locally.
type Type struct {
	name   string
	parent *Type

	mu       sync.RWMutex
	methods  map[MethodID]Impl
	dtor     DestructorImpl
	identity func() *Type
}

// typeNames is the process-wide registry of live type names. It guarantees at
// most one live Type per name, which the hook engine relies on to detect
// shadow-type name collisions.
var typeNames = struct {
	sync.Mutex
	m map[string]*Type
}{m: make(map[string]*Type)}

// NewType registers and returns a new type named `name` whose parent method
// table is `parent` (nil for a root type). It fails when the name is empty or
// already registered.
func NewType(name string, parent *Type) (*Type, error) {
	if name == "" {
		return nil, iherrors.New("object: empty type name")
	}

	typeNames.Lock()
	defer typeNames.Unlock()
	if existing := typeNames.m[name]; existing != nil {
		return nil, iherrors.Errorf("object: a type named `%s` already exists", name)
	}

	t := &Type{
		name:    name,
		parent:  parent,
		methods: make(map[MethodID]Impl),
	}
	typeNames.m[name] = t
	return t, nil
}

// DisposeType unregisters the type name so that it can be reused. The type
// value itself is left to the garbage collector once the last object pointing
// at it is gone.
func DisposeType(t *Type) {
	if t == nil {
		return
	}
	typeNames.Lock()
	defer typeNames.Unlock()
	if typeNames.m[t.name] == t {
		delete(typeNames.m, t.name)
	}
}

// LookupType returns the live type registered under `name`, nil when none.
func LookupType(name string) *Type {
	typeNames.Lock()
	defer typeNames.Unlock()
	return typeNames.m[name]
}

func (t *Type) Name() string { return t.name }

func (t *Type) Parent() *Type { return t.parent }

// Define adds or replaces the local implementation of method `m`. The
// implementation must be a non-nil function value.
func (t *Type) Define(m MethodID, impl Impl) error {
	if m == "" {
		return iherrors.New("object: empty method identifier")
	}
	if impl == nil {
		return iherrors.Errorf("object: nil implementation for method `%s`", m)
	}
	if reflect.TypeOf(impl).Kind() != reflect.Func {
		return iherrors.Errorf("object: implementation of method `%s` is not a function but `%T`", m, impl)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.methods[m] = impl
	return nil
}

// Remove drops the local implementation of method `m`, uncovering the
// parent's implementation if any.
func (t *Type) Remove(m MethodID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.methods, m)
}

// Lookup returns the implementation of method `m`, walking the parent chain.
// It returns nil when no type in the chain defines it.
func (t *Type) Lookup(m MethodID) Impl {
	for typ := t; typ != nil; typ = typ.parent {
		if impl := typ.LookupLocal(m); impl != nil {
			return impl
		}
	}
	return nil
}

// LookupLocal returns the implementation of method `m` defined by this type
// only, ignoring parents.
func (t *Type) LookupLocal(m MethodID) Impl {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.methods[m]
}

// SetDestructor sets the local destructor implementation.
func (t *Type) SetDestructor(d DestructorImpl) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dtor = d
}

// Destructor returns the newest destructor override in the parent chain, nil
// when no type in the chain defines one.
func (t *Type) Destructor() DestructorImpl {
	for typ := t; typ != nil; typ = typ.parent {
		typ.mu.RLock()
		d := typ.dtor
		typ.mu.RUnlock()
		if d != nil {
			return d
		}
	}
	return nil
}

// SetIdentity overrides the type-identity accessor: TypeOf answers with the
// accessor's return value instead of the dispatch pointer. Subtypes use it to
// stay invisible to type queries.
func (t *Type) SetIdentity(fn func() *Type) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.identity = fn
}

func (t *Type) identityType() *Type {
	t.mu.RLock()
	fn := t.identity
	t.mu.RUnlock()
	if fn != nil {
		return fn()
	}
	return t
}
