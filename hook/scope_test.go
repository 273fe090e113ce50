// Copyright (c) 2016 - 2020 Sqreen. All Rights Reserved.
// Please refer to our terms for more information:
// https://www.sqreen.io/terms.html

package hook_test

import (
	"bytes"
	"testing"

	"github.com/JonasGessner/instancehook/hook"
	"github.com/JonasGessner/instancehook/internal/plog"
	"github.com/JonasGessner/instancehook/object"
	"github.com/stretchr/testify/require"
)

func TestPerformScoped(t *testing.T) {
	t.Run("hook active during work only", func(t *testing.T) {
		c, _ := newCounter(t)
		token := "token"

		require.Equal(t, 1, c.Add(1))

		ran := false
		hook.PerformScoped(c, methodAdd, func(c *Counter, delta int) int {
			return -delta
		}, func() {
			ran = true
			require.Equal(t, -5, c.Add(5))
		}, token)

		require.True(t, ran)
		// Pre-scope behavior before and after.
		require.Equal(t, 2, c.Add(1))
		require.Nil(t, hook.HookForToken(token, c))
		require.Equal(t, 0, hook.CountFor(c))
	})

	t.Run("work runs without a replacement", func(t *testing.T) {
		c, _ := newCounter(t)
		ran := false
		hook.PerformScoped(c, methodAdd, nil, func() {
			ran = true
			require.Equal(t, 1, c.Add(1))
		}, "token")
		require.True(t, ran)
	})

	t.Run("work runs when the installation fails", func(t *testing.T) {
		c, _ := newCounter(t)
		ran := false
		hook.PerformScoped(c, "Oops", func(c *Counter) {}, func() {
			ran = true
		}, "token")
		require.True(t, ran)
		require.Equal(t, 0, hook.CountFor(c))
	})

	t.Run("nil work", func(t *testing.T) {
		c, _ := newCounter(t)
		hook.PerformScoped(c, methodAdd, func(c *Counter, delta int) int { return 0 }, nil, "token")
		require.Equal(t, 0, hook.CountFor(c))
	})

	t.Run("cleanup on panicking work", func(t *testing.T) {
		c, _ := newCounter(t)
		token := "token"
		require.Panics(t, func() {
			hook.PerformScoped(c, methodAdd, func(c *Counter, delta int) int {
				return -delta
			}, func() {
				panic("oops")
			}, token)
		})
		require.Nil(t, hook.HookForToken(token, c))
		require.Equal(t, 0, hook.CountFor(c))
		require.Equal(t, 1, c.Add(1))
	})
}

func TestHookForToken(t *testing.T) {
	c, _ := newCounter(t)
	token := struct{ name string }{"scope"}

	require.Nil(t, hook.HookForToken(nil, c))
	require.Nil(t, hook.HookForToken(token, nil))
	require.Nil(t, hook.HookForToken(token, c))

	hook.PerformScoped(c, methodAdd, func(c *Counter, delta int) int {
		return -delta
	}, func() {
		h := hook.HookForToken(token, c)
		require.True(t, h.IsValid())
		require.Same(t, c, h.Target())
		require.Equal(t, methodAdd, h.Method())
		// Unrelated token
		require.Nil(t, hook.HookForToken("other", c))
	}, token)

	require.Nil(t, hook.HookForToken(token, c))
}

func TestTokenCollision(t *testing.T) {
	c, _ := newCounter(t)
	token := "token"

	var output bytes.Buffer
	hook.SetLogger(plog.NewLogger(plog.Error, &output, nil))
	defer hook.SetLogger(nil)

	var outer, inner *hook.Hook
	hook.PerformScoped(c, methodAdd, func(c *Counter, delta int) int {
		return 100 + delta
	}, func() {
		outer = hook.HookForToken(token, c)
		require.True(t, outer.IsValid())

		// Overlapping scope on the same (token, object) pair: detected and
		// logged, the first registration stays in place.
		hook.PerformScoped(c, methodAdd, func(c *Counter, delta int) int {
			return 1000 + delta
		}, func() {
			require.Equal(t, 1000+1, c.Add(1))
			inner = hook.HookForToken(token, c)
			require.Same(t, outer, inner)
		}, token)

		// The inner scope removed its own hook only.
		require.True(t, outer.IsValid())
		require.Equal(t, 100+1, c.Add(1))
	}, token)

	require.Contains(t, output.String(), "already registered")
	require.False(t, outer.IsValid())
	require.Equal(t, 0, hook.CountFor(c))
}

func TestScopesOnDistinctObjects(t *testing.T) {
	typ := newCounterType(t)
	c1 := &Counter{Instance: object.NewInstance(typ)}
	c2 := &Counter{Instance: object.NewInstance(typ)}
	token := "token"

	hook.PerformScoped(c1, methodAdd, func(c *Counter, delta int) int {
		return -delta
	}, func() {
		hook.PerformScoped(c2, methodAdd, func(c *Counter, delta int) int {
			return -10 * delta
		}, func() {
			require.Equal(t, -1, c1.Add(1))
			require.Equal(t, -10, c2.Add(1))
			require.NotSame(t, hook.HookForToken(token, c1), hook.HookForToken(token, c2))
		}, token)
	}, token)

	require.Nil(t, hook.HookForToken(token, c1))
	require.Nil(t, hook.HookForToken(token, c2))
}
