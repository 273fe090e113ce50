// Copyright (c) 2016 - 2020 Sqreen. All Rights Reserved.
// Please refer to our terms for more information:
// https://www.sqreen.io/terms.html

package iherrors_test

import (
	"errors"
	"testing"

	"github.com/JonasGessner/instancehook/internal/ihlib/iherrors"
	"github.com/stretchr/testify/require"
)

func TestWithKey(t *testing.T) {
	// Checking the Go assumption that the type is correctly taken into account
	type t1 struct{}
	type t2 struct{}
	require.NotEqual(t, t1{}, t2{})

	err := errors.New("an error")
	key := t1{}
	err = iherrors.WithKey(err, key)
	err = iherrors.Wrap(err, "an error occurred")
	got, ok := iherrors.Key(err)
	require.True(t, ok)
	require.Equal(t, key, got)

	_, ok = iherrors.Key(errors.New("no key"))
	require.False(t, ok)
}

func TestTimestamp(t *testing.T) {
	t.Run("new errors are timestamped", func(t *testing.T) {
		err := iherrors.New("an error")
		ts, ok := iherrors.Timestamp(err)
		require.True(t, ok)
		require.False(t, ts.IsZero())
	})

	t.Run("wrapping keeps the timestamp reachable", func(t *testing.T) {
		err := iherrors.Wrap(errors.New("an error"), "an error occurred")
		err = iherrors.Wrapf(err, "while doing `%s`", "something")
		ts, ok := iherrors.Timestamp(err)
		require.True(t, ok)
		require.False(t, ts.IsZero())
	})

	t.Run("foreign errors have no timestamp", func(t *testing.T) {
		_, ok := iherrors.Timestamp(errors.New("an error"))
		require.False(t, ok)
	})
}

func TestStackTrace(t *testing.T) {
	err := iherrors.Errorf("error %d", 33)
	require.NotNil(t, iherrors.StackTrace(err))
	require.Nil(t, iherrors.StackTrace(errors.New("no stack")))
}

func TestErrorCollection(t *testing.T) {
	var errs iherrors.ErrorCollection
	require.NoError(t, errs.ToError())

	e1 := errors.New("error 1")
	errs.Add(e1)
	require.Equal(t, e1, errs.ToError())

	errs.Add(errors.New("error 2"))
	err := errs.ToError()
	require.Error(t, err)
	require.Contains(t, err.Error(), "error 1")
	require.Contains(t, err.Error(), "error 2")
}
