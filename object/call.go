// Copyright (c) 2016 - 2020 Sqreen. All Rights Reserved.
// Please refer to our terms for more information:
// https://www.sqreen.io/terms.html

package object

import (
	"reflect"

	"github.com/JonasGessner/instancehook/internal/ihlib/iherrors"
	"github.com/JonasGessner/instancehook/internal/ihlib/ihsafe"
)

// Resolve returns the implementation the object currently dispatches method
// `m` to, nil when the method is not defined. The caller is expected to
// type-assert the returned value to the method's concrete function type:
//
//	impl := object.Resolve(g, "Greet").(func(*Greeter, string) string)
//	return impl(g, name)
//
// Resolve is the thin trampoline a hookable method body should go through.
// It takes no engine lock: it reads the effective type pointer atomically and
// the method tables under their read lock.
func Resolve(o Object, m MethodID) Impl {
	t := EffectiveType(o)
	if t == nil {
		return nil
	}
	return t.Lookup(m)
}

// Call invokes method `m` on the object through reflection. It is the generic
// counterpart of Resolve for call sites that do not know the method's
// concrete signature, and is significantly slower.
func Call(o Object, m MethodID, args ...interface{}) ([]interface{}, error) {
	impl := Resolve(o, m)
	if impl == nil {
		return nil, iherrors.Errorf("object: no implementation of method `%s`", m)
	}

	fn := reflect.ValueOf(impl)
	fnType := fn.Type()
	if got, want := len(args)+1, fnType.NumIn(); got != want {
		return nil, iherrors.Errorf("object: method `%s` takes %d arguments but got %d", m, want-1, got-1)
	}

	in := make([]reflect.Value, 0, len(args)+1)
	recv := reflect.ValueOf(o)
	if !recv.Type().AssignableTo(fnType.In(0)) {
		return nil, iherrors.Errorf("object: receiver type `%s` is not assignable to `%s` of method `%s`", recv.Type(), fnType.In(0), m)
	}
	in = append(in, recv)
	for i, arg := range args {
		paramType := fnType.In(i + 1)
		if arg == nil {
			in = append(in, reflect.Zero(paramType))
			continue
		}
		argValue := reflect.ValueOf(arg)
		if !argValue.Type().AssignableTo(paramType) {
			return nil, iherrors.Errorf("object: argument %d of method `%s` has type `%s` instead of `%s`", i, m, argValue.Type(), paramType)
		}
		in = append(in, argValue)
	}

	var results []interface{}
	err := ihsafe.Call(func() error {
		out := fn.Call(in)
		results = make([]interface{}, len(out))
		for i, v := range out {
			results[i] = v.Interface()
		}
		return nil
	})
	if err != nil {
		return nil, iherrors.Wrapf(err, "object: call of method `%s`", m)
	}
	return results, nil
}
