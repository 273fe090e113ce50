// Copyright (c) 2016 - 2020 Sqreen. All Rights Reserved.
// Please refer to our terms for more information:
// https://www.sqreen.io/terms.html

package hook

import (
	"github.com/JonasGessner/instancehook/internal/ihlib/iherrors"
	"github.com/JonasGessner/instancehook/object"
)

// PerformScoped runs `work` with `replacement` hooked on (obj, method) for
// the dynamic extent of the call, keyed by the caller-supplied `token`. The
// hook is installed best effort: `work` runs regardless of whether the
// installation succeeded, so callers needing the hook must not use this
// helper. The hook is removed when `work` returns, even when it panics.
//
// The installed hook is registered under (token, obj) so that overlapping
// scopes on the same pair are detectable: a second registration logs a
// collision and leaves the first one in place. Both scopes still remove
// their own hook when their work returns; only the token lookup keeps
// answering the first one. The token must be a comparable value.
func PerformScoped(obj object.Object, method object.MethodID, replacement object.Impl, work func(), token interface{}) {
	if replacement == nil || work == nil || token == nil {
		if work != nil {
			work()
		}
		return
	}

	h, err := New(obj, method, replacement)
	if err != nil {
		logger().Debugf("hook: scoped hook of method `%s` not installed: %v", method, err)
		work()
		return
	}

	key := object.Key(obj)

	engine.mu.Lock()
	objects := engine.scopeOf[token]
	if objects == nil {
		objects = make(map[*object.Instance]*Hook)
		engine.scopeOf[token] = objects
	}
	registered := false
	if _, exists := objects[key]; exists {
		logger().Error(iherrors.WithKey(
			iherrors.Errorf("hook: a scoped hook is already registered for token `%v` and object %p", token, key),
			scopeCollisionLogKey{}))
	} else {
		objects[key] = h
		registered = true
	}
	engine.mu.Unlock()

	defer func() {
		engine.mu.Lock()
		if registered {
			if objects := engine.scopeOf[token]; objects != nil && objects[key] == h {
				delete(objects, key)
				if len(objects) == 0 {
					delete(engine.scopeOf, token)
				}
			}
		}
		engine.mu.Unlock()
		h.Remove()
	}()

	work()
}

// HookForToken returns the hook registered by an ongoing PerformScoped call
// with the given token and object, nil when there is none. The returned hook
// is not retained: callers keeping it across the scope's end must Retain it.
func HookForToken(token interface{}, obj object.Object) *Hook {
	if token == nil || obj == nil {
		return nil
	}
	engine.mu.Lock()
	defer engine.mu.Unlock()
	if objects := engine.scopeOf[token]; objects != nil {
		return objects[object.Key(obj)]
	}
	return nil
}
