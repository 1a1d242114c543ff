// Package adapter defines the back-end adapter contract: the four
// asynchronous submit operations every storage driver — and every
// write-back cache wrapping one — exposes upward, plus the
// publish/subscribe completion surface callers attach to. Modeled as
// pub/sub rather than direct callback ownership: a downstream component
// never holds a reference to its subscribers, only a set of handler
// closures it can fire and later detach.
package adapter

import (
	"sync"

	"syncdal/internal/dal/types"
)

// AdapterID identifies an adapter slot within a Dispatch Queue. Assigned
// when the adapter is attached and stable thereafter.
type AdapterID uint32

// SuccessHandler receives the record (nil for DELETE) of a successful
// completion.
type SuccessHandler func(adapterID AdapterID, req types.RequestID, rec types.Record)

// FailureHandler receives the object-ID (zero if unknown) and a refined
// reason for a failed completion.
type FailureHandler func(adapterID AdapterID, req types.RequestID, objID types.ObjectID, reason types.FailureReason)

// Subscription is returned by AttachOnSuccess/AttachOnFailure; Unsubscribe
// detaches the handler. Safe to call more than once.
type Subscription struct {
	unsub func()
}

func (s Subscription) Unsubscribe() {
	if s.unsub != nil {
		s.unsub()
	}
}

// Info is the opaque introspection snapshot returned by Adapter.Info.
type Info struct {
	Kind      types.Kind
	AdapterID AdapterID
	Connected bool
	Detail    map[string]any
}

// Adapter is the polymorphic storage driver contract. A Write-Back Cache
// implements this same interface so a Dispatch Queue can treat a cached
// or uncached adapter identically.
type Adapter interface {
	SubmitRead(req types.RequestID, tag types.ConstraintTag, value any) bool
	SubmitInsert(req types.RequestID, rec types.Record) bool
	SubmitUpdate(req types.RequestID, rec types.Record) bool
	SubmitDelete(req types.RequestID, id types.ObjectID) bool

	AttachOnSuccess(h SuccessHandler) Subscription
	AttachOnFailure(h FailureHandler) Subscription

	Connect() bool
	Disconnect() bool
	Build() bool
	Clear() bool
	Info() Info
	Kind() types.Kind

	SetID(AdapterID)
	ID() AdapterID
}

// CompletionBus is a small embeddable pub/sub helper implementing the
// success/failure completion surface every Adapter exposes. Real adapters
// and the Write-Back Cache both embed one rather than reimplementing
// subscriber bookkeeping.
type CompletionBus struct {
	mu      sync.Mutex
	nextSub uint64
	success map[uint64]SuccessHandler
	failure map[uint64]FailureHandler
}

// NewCompletionBus returns a ready-to-use completion surface.
func NewCompletionBus() *CompletionBus {
	return &CompletionBus{
		success: make(map[uint64]SuccessHandler),
		failure: make(map[uint64]FailureHandler),
	}
}

func (b *CompletionBus) AttachOnSuccess(h SuccessHandler) Subscription {
	b.mu.Lock()
	id := b.nextSub
	b.nextSub++
	b.success[id] = h
	b.mu.Unlock()
	return Subscription{unsub: func() {
		b.mu.Lock()
		delete(b.success, id)
		b.mu.Unlock()
	}}
}

func (b *CompletionBus) AttachOnFailure(h FailureHandler) Subscription {
	b.mu.Lock()
	id := b.nextSub
	b.nextSub++
	b.failure[id] = h
	b.mu.Unlock()
	return Subscription{unsub: func() {
		b.mu.Lock()
		delete(b.failure, id)
		b.mu.Unlock()
	}}
}

// EmitSuccess fires every attached success handler. Handlers are snapshotted
// under the bus lock and invoked outside it so a handler may itself attach
// or detach without deadlocking.
func (b *CompletionBus) EmitSuccess(adapterID AdapterID, req types.RequestID, rec types.Record) {
	b.mu.Lock()
	handlers := make([]SuccessHandler, 0, len(b.success))
	for _, h := range b.success {
		handlers = append(handlers, h)
	}
	b.mu.Unlock()
	for _, h := range handlers {
		h(adapterID, req, rec)
	}
}

// EmitFailure fires every attached failure handler.
func (b *CompletionBus) EmitFailure(adapterID AdapterID, req types.RequestID, objID types.ObjectID, reason types.FailureReason) {
	b.mu.Lock()
	handlers := make([]FailureHandler, 0, len(b.failure))
	for _, h := range b.failure {
		handlers = append(handlers, h)
	}
	b.mu.Unlock()
	for _, h := range handlers {
		h(adapterID, req, objID, reason)
	}
}
