// Copyright (c) 2016 - 2020 Sqreen. All Rights Reserved.
// Please refer to our terms for more information:
// https://www.sqreen.io/terms.html

package object

import (
	"sync/atomic"
	"unsafe"

	"github.com/JonasGessner/instancehook/internal/ihlib/iherrors"
)

// Instance is the embeddable per-object dispatch state: the effective type
// pointer consulted at invocation time and the destroyed flag. Embedding it
// makes a struct pointer satisfy the Object interface.
//
// The effective type pointer is accessed atomically so that method dispatch
// never needs to take a lock.
type Instance struct {
	typ       unsafe.Pointer // *Type
	destroyed uint32
}

// Object is satisfied by any struct pointer embedding an Instance.
type Object interface {
	objectState() *Instance
}

func (i *Instance) objectState() *Instance { return i }

// NewInstance returns the dispatch state of a new object of type `t`.
func NewInstance(t *Type) Instance {
	return Instance{typ: unsafe.Pointer(t)}
}

// EffectiveType returns the object's raw dispatch pointer, including any
// installed subtype. Most callers want TypeOf instead.
func EffectiveType(o Object) *Type {
	return (*Type)(atomic.LoadPointer(&o.objectState().typ))
}

// SetEffectiveType atomically re-points the object's dispatch at type `t`,
// leaving every other instance untouched.
func SetEffectiveType(o Object, t *Type) {
	atomic.StorePointer(&o.objectState().typ, unsafe.Pointer(t))
}

// TypeOf returns the object's type as answered by its effective type's
// identity accessor. Types whose identity accessor has been overridden (eg.
// per-object subtypes) report their parent here.
func TypeOf(o Object) *Type {
	t := EffectiveType(o)
	if t == nil {
		return nil
	}
	return t.identityType()
}

// Key returns the object's identity, unique per live object and valid as a
// map key.
func Key(o Object) *Instance {
	return o.objectState()
}

// Destroyed returns true once Destroy has been called on the object.
func Destroyed(o Object) bool {
	return atomic.LoadUint32(&o.objectState().destroyed) != 0
}

// Destroy runs the object's destructor chain exactly once. A second call is
// an error and runs nothing.
func Destroy(o Object) error {
	st := o.objectState()
	if !atomic.CompareAndSwapUint32(&st.destroyed, 0, 1) {
		return iherrors.New("object: already destroyed")
	}
	if t := EffectiveType(o); t != nil {
		if d := t.Destructor(); d != nil {
			d(o)
		}
	}
	return nil
}
