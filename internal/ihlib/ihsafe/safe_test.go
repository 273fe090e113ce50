// Copyright (c) 2016 - 2020 Sqreen. All Rights Reserved.
// Please refer to our terms for more information:
// https://www.sqreen.io/terms.html

package ihsafe_test

import (
	"testing"

	"github.com/JonasGessner/instancehook/internal/ihlib/ihsafe"
	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"
)

func TestCall(t *testing.T) {
	t.Run("without error", func(t *testing.T) {
		err := ihsafe.Call(func() error {
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("with a regular error", func(t *testing.T) {
		err := ihsafe.Call(func() error {
			return xerrors.New("oops")
		})
		require.Error(t, err)
		require.Equal(t, "oops", err.Error())
	})

	t.Run("with a panic string error", func(t *testing.T) {
		err := ihsafe.Call(func() error {
			panic("oops")
		})
		require.Error(t, err)
		var panicErr *ihsafe.PanicError
		require.True(t, xerrors.As(err, &panicErr))
		require.Equal(t, "oops", panicErr.Err.Error())
	})

	t.Run("with a panic error", func(t *testing.T) {
		origErr := xerrors.New("oops")
		err := ihsafe.Call(func() error {
			panic(origErr)
		})
		require.Error(t, err)
		var panicErr *ihsafe.PanicError
		require.True(t, xerrors.As(err, &panicErr))
		require.Equal(t, origErr, panicErr.Unwrap())
	})

	t.Run("with a panic value", func(t *testing.T) {
		err := ihsafe.Call(func() error {
			panic(33)
		})
		require.Error(t, err)
		var panicErr *ihsafe.PanicError
		require.True(t, xerrors.As(err, &panicErr))
		require.Contains(t, panicErr.Error(), "33")
	})
}
