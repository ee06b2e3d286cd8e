// Package appfault triggers in-process faults that are not tied to
// networking: runtime panics, failing storage, disabled capabilities.
// Triggers are synchronous and never clean themselves up; the test
// owns restoration between cases.
package appfault

import (
	"fmt"
	"sync"
)

// ReferenceError models dereferencing a binding that does not exist.
type ReferenceError struct {
	Name string
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("%s is not defined", e.Name)
}

// TypeError models calling an operation on a value of the wrong type.
type TypeError struct {
	Op   string
	Type string
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("%s is not a %s", e.Op, e.Type)
}

// RuntimeError is a generic injected runtime failure.
type RuntimeError struct {
	Message string
}

func (e *RuntimeError) Error() string {
	return e.Message
}

// TriggerReferenceError panics with a ReferenceError for name.
func TriggerReferenceError(name string) {
	panic(&ReferenceError{Name: name})
}

// TriggerTypeError panics with a TypeError.
func TriggerTypeError(op, typ string) {
	panic(&TypeError{Op: op, Type: typ})
}

// TriggerRuntimeError panics with a RuntimeError carrying msg.
func TriggerRuntimeError(msg string) {
	panic(&RuntimeError{Message: msg})
}

// Capabilities tracks optional platform features a test can switch
// off, such as a notification or registration API. Every capability is
// enabled until explicitly disabled; Reset restores all of them.
type Capabilities struct {
	mu       sync.Mutex
	disabled map[string]bool
}

func NewCapabilities() *Capabilities {
	return &Capabilities{disabled: make(map[string]bool)}
}

func (c *Capabilities) Disable(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disabled[name] = true
}

func (c *Capabilities) Enable(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.disabled, name)
}

func (c *Capabilities) Enabled(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.disabled[name]
}

func (c *Capabilities) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disabled = make(map[string]bool)
}
