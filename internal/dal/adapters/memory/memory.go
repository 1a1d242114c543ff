// Package memory implements an in-memory reference back-end adapter. It
// is the adapter every cache/queue/manager test in this repository is
// built against, and the fallback adapter in local/dev deployments.
package memory

import (
	"sync"

	"syncdal/internal/dal/adapter"
	"syncdal/internal/dal/types"
)

// Adapter is a goroutine-safe, in-memory Back-end Adapter. Completions are
// delivered asynchronously on their own goroutine, same as a real network
// adapter, so callers cannot rely on submit-then-immediately-synchronous
// ordering.
type Adapter struct {
	*adapter.CompletionBus

	kind types.Kind
	id   adapter.AdapterID

	mu        sync.Mutex
	objects   map[types.ObjectID]types.Record
	connected bool

	// Hooks let tests force a submission to be rejected or to never
	// complete, exercising the adapter-rejected and timeout paths.
	RejectNext    bool
	NeverComplete bool
}

func New(kind types.Kind) *Adapter {
	return &Adapter{
		CompletionBus: adapter.NewCompletionBus(),
		kind:          kind,
		objects:       make(map[types.ObjectID]types.Record),
		connected:     true,
	}
}

func (a *Adapter) Kind() types.Kind           { return a.kind }
func (a *Adapter) SetID(id adapter.AdapterID) { a.id = id }
func (a *Adapter) ID() adapter.AdapterID      { return a.id }

func (a *Adapter) Connect() bool    { a.mu.Lock(); a.connected = true; a.mu.Unlock(); return true }
func (a *Adapter) Disconnect() bool { a.mu.Lock(); a.connected = false; a.mu.Unlock(); return true }
func (a *Adapter) Build() bool      { return true }

func (a *Adapter) Clear() bool {
	a.mu.Lock()
	a.objects = make(map[types.ObjectID]types.Record)
	a.mu.Unlock()
	return true
}

func (a *Adapter) Info() adapter.Info {
	a.mu.Lock()
	defer a.mu.Unlock()
	return adapter.Info{
		Kind:      a.kind,
		AdapterID: a.id,
		Connected: a.connected,
		Detail:    map[string]any{"object_count": len(a.objects)},
	}
}

func (a *Adapter) takeReject() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.RejectNext {
		a.RejectNext = false
		return true
	}
	return false
}

func (a *Adapter) neverComplete() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.NeverComplete
}

func (a *Adapter) SubmitRead(req types.RequestID, tag types.ConstraintTag, value any) bool {
	if a.takeReject() {
		return false
	}
	go func() {
		if a.neverComplete() {
			return
		}
		a.mu.Lock()
		defer a.mu.Unlock()
		switch tag {
		case types.ByID:
			id, _ := value.(types.ObjectID)
			rec, ok := a.objects[id]
			if !ok {
				a.EmitFailure(a.id, req, id, types.ReasonNotFound)
				return
			}
			a.EmitSuccess(a.id, req, rec.Clone())
		case types.ByOwner, types.ByName, types.All:
			var items []types.Record
			for _, rec := range a.objects {
				items = append(items, rec.Clone())
			}
			a.EmitSuccess(a.id, req, &types.Batch{Items: items})
		default:
			a.EmitFailure(a.id, req, types.ZeroObjectID, types.ReasonNotFound)
		}
	}()
	return true
}

func (a *Adapter) SubmitInsert(req types.RequestID, rec types.Record) bool {
	if a.takeReject() {
		return false
	}
	go func() {
		if a.neverComplete() {
			return
		}
		a.mu.Lock()
		defer a.mu.Unlock()
		id := rec.ObjectID()
		if _, exists := a.objects[id]; exists {
			a.EmitFailure(a.id, req, id, types.ReasonAlreadyExists)
			return
		}
		a.objects[id] = rec.Clone()
		a.EmitSuccess(a.id, req, nil)
	}()
	return true
}

func (a *Adapter) SubmitUpdate(req types.RequestID, rec types.Record) bool {
	if a.takeReject() {
		return false
	}
	go func() {
		if a.neverComplete() {
			return
		}
		a.mu.Lock()
		defer a.mu.Unlock()
		id := rec.ObjectID()
		if _, exists := a.objects[id]; !exists {
			a.EmitFailure(a.id, req, id, types.ReasonNotFound)
			return
		}
		a.objects[id] = rec.Clone()
		a.EmitSuccess(a.id, req, nil)
	}()
	return true
}

func (a *Adapter) SubmitDelete(req types.RequestID, id types.ObjectID) bool {
	if a.takeReject() {
		return false
	}
	go func() {
		if a.neverComplete() {
			return
		}
		a.mu.Lock()
		defer a.mu.Unlock()
		if _, exists := a.objects[id]; !exists {
			a.EmitFailure(a.id, req, id, types.ReasonNotFound)
			return
		}
		delete(a.objects, id)
		a.EmitSuccess(a.id, req, nil)
	}()
	return true
}

var _ adapter.Adapter = (*Adapter)(nil)
