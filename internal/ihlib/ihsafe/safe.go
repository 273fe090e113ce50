// Copyright (c) 2016 - 2020 Sqreen. All Rights Reserved.
// Please refer to our terms for more information:
// https://www.sqreen.io/terms.html

package ihsafe

import (
	"fmt"
	"reflect"
	"runtime"

	"github.com/JonasGessner/instancehook/internal/ihlib/iherrors"
	"github.com/pkg/errors"
)

// PanicError is an error type wrapping a recovered panic value that happened
// during a function call.
type PanicError struct {
	// The function that was given to `Call()`.
	In func() error
	// The recovered panic value while executing `In()`.
	Err error
}

func NewPanicError(in func() error, err error) *PanicError {
	return &PanicError{
		In:  in,
		Err: errors.WithStack(err),
	}
}

func (e *PanicError) Unwrap() error {
	return errors.Cause(e.Err)
}

func (e *PanicError) Cause() error {
	return e.Err
}

func (e *PanicError) inName() string {
	return runtime.FuncForPC(reflect.ValueOf(e.In).Pointer()).Name()
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic while executing %s: %v", e.inName(), e.Err)
}

// Call calls function `f` and recovers from any panic occurring while it
// executes, returning it in a `PanicError` object type.
func Call(f func() error) (err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}

		switch actual := r.(type) {
		case error:
			err = actual
		case string:
			err = iherrors.New(actual)
		default:
			err = iherrors.New(fmt.Sprint(r))
		}

		err = NewPanicError(f, err)
	}()
	return f()
}
