package appfault

import (
	"errors"
	"sync"
)

// ErrStorageUnavailable is the default error injected by a
// FailingStore when no explicit error was configured.
var ErrStorageUnavailable = errors.New("appfault: storage unavailable")

// KVStore is the storage surface the simulator can break.
type KVStore interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}

// MemStore is an in-memory KVStore for tests.
type MemStore struct {
	mu   sync.Mutex
	data map[string]string
}

var ErrKeyNotFound = errors.New("appfault: key not found")

func NewMemStore() *MemStore {
	return &MemStore{data: make(map[string]string)}
}

func (m *MemStore) Get(key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.data[key]
	if !ok {
		return "", ErrKeyNotFound
	}
	return v, nil
}

func (m *MemStore) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *MemStore) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// FailingStore wraps a KVStore and makes reads and/or writes fail on
// demand. Restore undoes both; there is no automatic expiry.
type FailingStore struct {
	inner KVStore

	mu       sync.Mutex
	readErr  error
	writeErr error
}

func NewFailingStore(inner KVStore) *FailingStore {
	return &FailingStore{inner: inner}
}

// FailReads makes Get return err (ErrStorageUnavailable when nil).
func (f *FailingStore) FailReads(err error) {
	if err == nil {
		err = ErrStorageUnavailable
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readErr = err
}

// FailWrites makes Set and Delete return err (ErrStorageUnavailable
// when nil).
func (f *FailingStore) FailWrites(err error) {
	if err == nil {
		err = ErrStorageUnavailable
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeErr = err
}

// Restore clears both injected failures.
func (f *FailingStore) Restore() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readErr = nil
	f.writeErr = nil
}

func (f *FailingStore) Get(key string) (string, error) {
	f.mu.Lock()
	err := f.readErr
	f.mu.Unlock()

	if err != nil {
		return "", err
	}
	return f.inner.Get(key)
}

func (f *FailingStore) Set(key, value string) error {
	f.mu.Lock()
	err := f.writeErr
	f.mu.Unlock()

	if err != nil {
		return err
	}
	return f.inner.Set(key, value)
}

func (f *FailingStore) Delete(key string) error {
	f.mu.Lock()
	err := f.writeErr
	f.mu.Unlock()

	if err != nil {
		return err
	}
	return f.inner.Delete(key)
}
