package appfault

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recoverAs[T any](t *testing.T, fn func()) T {
	t.Helper()

	var caught T
	func() {
		defer func() {
			r := recover()
			require.NotNil(t, r, "expected a panic")
			typed, ok := r.(T)
			require.True(t, ok, "panic value has wrong type: %T", r)
			caught = typed
		}()
		fn()
	}()

	return caught
}

func TestTriggerReferenceError(t *testing.T) {
	err := recoverAs[*ReferenceError](t, func() {
		TriggerReferenceError("undefinedFunction")
	})
	assert.Equal(t, "undefinedFunction is not defined", err.Error())
}

func TestTriggerTypeError(t *testing.T) {
	err := recoverAs[*TypeError](t, func() {
		TriggerTypeError("null.foo", "function")
	})
	assert.Equal(t, "null.foo is not a function", err.Error())
}

func TestTriggerRuntimeError(t *testing.T) {
	err := recoverAs[*RuntimeError](t, func() {
		TriggerRuntimeError("simulated crash")
	})
	assert.Equal(t, "simulated crash", err.Error())
}

func TestFailingStore(t *testing.T) {
	inner := NewMemStore()
	require.NoError(t, inner.Set("session", "abc"))

	store := NewFailingStore(inner)

	t.Run("reads fail after FailReads", func(t *testing.T) {
		store.FailReads(nil)

		_, err := store.Get("session")
		assert.ErrorIs(t, err, ErrStorageUnavailable)

		// Writes keep working.
		assert.NoError(t, store.Set("other", "x"))
	})

	t.Run("writes fail after FailWrites", func(t *testing.T) {
		store.Restore()
		custom := errors.New("quota exceeded")
		store.FailWrites(custom)

		assert.ErrorIs(t, store.Set("session", "zzz"), custom)
		assert.ErrorIs(t, store.Delete("session"), custom)

		v, err := store.Get("session")
		require.NoError(t, err)
		assert.Equal(t, "abc", v, "failed writes must not mutate state")
	})

	t.Run("no automatic cleanup", func(t *testing.T) {
		store.FailReads(nil)

		// Still failing until the caller restores; there is no timer.
		_, err := store.Get("session")
		assert.Error(t, err)

		store.Restore()

		v, err := store.Get("session")
		require.NoError(t, err)
		assert.Equal(t, "abc", v)
	})
}

func TestCapabilities(t *testing.T) {
	caps := NewCapabilities()

	assert.True(t, caps.Enabled("notifications"))

	caps.Disable("notifications")
	caps.Disable("serviceWorker")
	assert.False(t, caps.Enabled("notifications"))
	assert.False(t, caps.Enabled("serviceWorker"))
	assert.True(t, caps.Enabled("geolocation"))

	caps.Enable("notifications")
	assert.True(t, caps.Enabled("notifications"))

	caps.Disable("notifications")
	caps.Reset()
	assert.True(t, caps.Enabled("notifications"))
	assert.True(t, caps.Enabled("serviceWorker"))
}
