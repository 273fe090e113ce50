// Copyright (c) 2016 - 2020 Sqreen. All Rights Reserved.
// Please refer to our terms for more information:
// https://www.sqreen.io/terms.html

package iherrors

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/xerrors"
)

type Causer interface {
	Cause() error
}

type StackTracer interface {
	StackTrace() errors.StackTrace
}

type Timestamper interface {
	Timestamp() time.Time
}

type withTimestamp struct {
	error
	timestamp time.Time
}

// WithTimestamp annotates the given error `err` with a timestamp. The returned
// error value implements interface Timestamper.
func WithTimestamp(err error) error {
	return withTimestamp{
		error:     err,
		timestamp: time.Now(),
	}
}

func (e withTimestamp) Timestamp() time.Time {
	return e.timestamp
}

func (e withTimestamp) Unwrap() error {
	return e.error
}

func (e withTimestamp) Cause() error {
	return e.Unwrap()
}

func (e withTimestamp) Format(f fmt.State, c rune) {
	if formatter, ok := e.error.(fmt.Formatter); ok {
		formatter.Format(f, c)
	} else {
		_, _ = fmt.Fprintf(f, "%v", e.error)
	}
}

type KeyType interface{}

type Keyer interface {
	Key() KeyType
}

type withKey struct {
	error
	key KeyType
}

// WithKey associates the given key with the error. This key can be used for
// error indexing in advanced error management cases such as error sampling.
func WithKey(err error, key KeyType) error {
	return withKey{
		error: err,
		key:   key,
	}
}

func (e withKey) Key() KeyType {
	return e.key
}

func (e withKey) Unwrap() error {
	return e.error
}

func (e withKey) Cause() error {
	return e.Unwrap()
}

// New returns a new error annotated with a timestamp, a message and a stack
// trace.
func New(message string) error {
	return WithTimestamp(errors.New(message))
}

// Errorf returns a new errors whose message is formatted by `fmt.Sprintf`. The
// returned error is annotated with a timestamp, a message and a stack trace.
func Errorf(format string, args ...interface{}) error {
	return New(fmt.Sprintf(format, args...))
}

// Wrap annotates the given error `err` with a timestamp, a message and a stack
// trace.
func Wrap(err error, message string) error {
	return WithTimestamp(errors.Wrap(err, message))
}

// Wrapf annotates the given error `err` with a timestamp, a message and a stack
// trace. The message is formatted by `fmt.Sprintf`.
func Wrapf(err error, format string, args ...interface{}) error {
	return Wrap(err, fmt.Sprintf(format, args...))
}

// StackTrace returns the deepest StackTrace attached to any of
// the errors in the chain of Causes. If the error does not implement
// Cause, the original error will be returned. If the error is nil,
// nil will be returned without further investigation.
func StackTrace(err error) errors.StackTrace {
	var topStackInfo errors.StackTrace
loop:
	for {
		stackErr, ok := err.(StackTracer)
		if ok {
			topStackInfo = stackErr.StackTrace()
		}
		switch actual := err.(type) {
		case Causer:
			err = actual.Cause()
		case xerrors.Wrapper:
			err = actual.Unwrap()
		default:
			break loop
		}
	}
	return topStackInfo
}

// Timestamp returns the error timestamp created with the function
// `WithTimestamp()` and the `ok` return value set to true. Otherwise, the
// default time's zero value is returned and `ok` is false.
func Timestamp(err error) (t time.Time, ok bool) {
	for {
		switch actual := err.(type) {
		case Timestamper:
			return actual.Timestamp(), true
		case Causer:
			err = actual.Cause()
		case xerrors.Wrapper:
			err = actual.Unwrap()
		default:
			return time.Time{}, false
		}
	}
}

// Key returns the deepest key attached to the error if any.
func Key(err error) (k KeyType, exists bool) {
	for {
		if keyer, ok := err.(Keyer); ok {
			k = keyer.Key()
			exists = true
		}

		switch actual := err.(type) {
		case Causer:
			err = actual.Cause()
		case xerrors.Wrapper:
			err = actual.Unwrap()
		default:
			return k, exists
		}
	}
}

// ErrorCollection allows to collect several errors into a single error value.
type ErrorCollection []error

func (c ErrorCollection) Error() string {
	var s strings.Builder
	s.WriteString("multiple errors occurred:")
	for i, e := range c {
		s.WriteString(fmt.Sprintf(" (error %d) %s;", i+1, e.Error()))
	}
	return strings.TrimSuffix(s.String(), ";")
}

func (c *ErrorCollection) Add(e error) {
	*c = append(*c, e)
}

func (c ErrorCollection) ToError() error {
	switch len(c) {
	case 0:
		return nil
	case 1:
		return c[0]
	default:
		return c
	}
}
