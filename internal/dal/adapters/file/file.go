// Package file implements the debug file-store adapter: one line-delimited
// JSON file per entity kind, loaded whole on Connect and rewritten whole on
// every mutation. It exists for local inspection of what the write-back
// cache actually committed, not for production durability.
package file

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"syncdal/internal/dal/adapter"
	"syncdal/internal/dal/records"
	"syncdal/internal/dal/types"
	"syncdal/internal/infrastructure/concurrency"
)

// Adapter is the line-delimited-JSON file adapter for one entity kind.
type Adapter struct {
	*adapter.CompletionBus

	kind types.Kind
	id   adapter.AdapterID
	path string
	pool *concurrency.WorkerPool
	log  *zap.Logger

	mu        sync.Mutex
	objects   map[types.ObjectID]records.Wire
	connected bool
}

// New builds an adapter for kind storing its records at dir/<kind>.jsonl.
func New(kind types.Kind, dir string, pool *concurrency.WorkerPool, log *zap.Logger) *Adapter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Adapter{
		CompletionBus: adapter.NewCompletionBus(),
		kind:          kind,
		path:          filepath.Join(dir, string(kind)+".jsonl"),
		pool:          pool,
		log:           log.Named("file").With(zap.String("kind", string(kind))),
		objects:       make(map[types.ObjectID]records.Wire),
	}
}

func (a *Adapter) Kind() types.Kind           { return a.kind }
func (a *Adapter) SetID(id adapter.AdapterID) { a.id = id }
func (a *Adapter) ID() adapter.AdapterID      { return a.id }

// Connect loads the backing file into memory. A missing file is an empty
// store, not an error.
func (a *Adapter) Connect() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.objects = make(map[types.ObjectID]records.Wire)
	f, err := os.Open(a.path)
	if err != nil {
		if os.IsNotExist(err) {
			a.connected = true
			return true
		}
		a.log.Error("open failed", zap.String("path", a.path), zap.Error(err))
		return false
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var w records.Wire
		if err := json.Unmarshal(line, &w); err != nil {
			a.log.Warn("skipping unparsable line", zap.Error(err))
			continue
		}
		id, err := types.ParseObjectID(w.ObjectID)
		if err != nil {
			continue
		}
		a.objects[id] = w
	}
	if err := scanner.Err(); err != nil {
		a.log.Error("scan failed", zap.String("path", a.path), zap.Error(err))
		return false
	}
	a.connected = true
	return true
}

func (a *Adapter) Disconnect() bool {
	a.mu.Lock()
	a.connected = false
	a.mu.Unlock()
	return true
}

// Build creates the backing directory.
func (a *Adapter) Build() bool {
	return os.MkdirAll(filepath.Dir(a.path), 0o755) == nil
}

// Clear drops the in-memory store and truncates the file.
func (a *Adapter) Clear() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.objects = make(map[types.ObjectID]records.Wire)
	return a.flushLocked() == nil
}

func (a *Adapter) Info() adapter.Info {
	a.mu.Lock()
	defer a.mu.Unlock()
	return adapter.Info{
		Kind:      a.kind,
		AdapterID: a.id,
		Connected: a.connected,
		Detail: map[string]any{
			"driver":       "file",
			"path":         a.path,
			"object_count": len(a.objects),
		},
	}
}

// flushLocked rewrites the backing file from the in-memory store, via a
// temp-file rename so a crash never leaves a half-written store. Called
// with a.mu held.
func (a *Adapter) flushLocked() error {
	if err := os.MkdirAll(filepath.Dir(a.path), 0o755); err != nil {
		return err
	}
	tmp := a.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(f)
	enc := json.NewEncoder(bw)
	for _, w := range a.objects {
		if err := enc.Encode(w); err != nil {
			f.Close()
			os.Remove(tmp)
			return err
		}
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, a.path)
}

func (a *Adapter) run(req types.RequestID, objID types.ObjectID, work func() error) bool {
	a.mu.Lock()
	connected := a.connected
	a.mu.Unlock()
	if !connected {
		return false
	}
	return a.pool.Submit(concurrency.Task{
		ID:      fmt.Sprintf("%s-%d", a.kind, req),
		Execute: func(ctx context.Context) error { return work() },
		Callback: func(_ string, err error) {
			if err != nil {
				a.log.Error("file store operation failed", zap.Error(err))
				a.EmitFailure(a.id, req, objID, types.ReasonAdapterFailed)
			}
		},
	})
}

func (a *Adapter) SubmitInsert(req types.RequestID, rec types.Record) bool {
	objID := rec.ObjectID()
	stored := rec.Clone()
	return a.run(req, objID, func() error {
		w, err := records.ToWire(stored)
		if err != nil {
			return err
		}
		a.mu.Lock()
		defer a.mu.Unlock()
		if _, exists := a.objects[objID]; exists {
			a.EmitFailure(a.id, req, objID, types.ReasonAlreadyExists)
			return nil
		}
		a.objects[objID] = w
		if err := a.flushLocked(); err != nil {
			delete(a.objects, objID)
			return err
		}
		a.EmitSuccess(a.id, req, nil)
		return nil
	})
}

func (a *Adapter) SubmitUpdate(req types.RequestID, rec types.Record) bool {
	objID := rec.ObjectID()
	stored := rec.Clone()
	return a.run(req, objID, func() error {
		w, err := records.ToWire(stored)
		if err != nil {
			return err
		}
		a.mu.Lock()
		defer a.mu.Unlock()
		prev, exists := a.objects[objID]
		if !exists {
			a.EmitFailure(a.id, req, objID, types.ReasonNotFound)
			return nil
		}
		a.objects[objID] = w
		if err := a.flushLocked(); err != nil {
			a.objects[objID] = prev
			return err
		}
		a.EmitSuccess(a.id, req, nil)
		return nil
	})
}

func (a *Adapter) SubmitDelete(req types.RequestID, objID types.ObjectID) bool {
	return a.run(req, objID, func() error {
		a.mu.Lock()
		defer a.mu.Unlock()
		prev, exists := a.objects[objID]
		if !exists {
			a.EmitFailure(a.id, req, objID, types.ReasonNotFound)
			return nil
		}
		delete(a.objects, objID)
		if err := a.flushLocked(); err != nil {
			a.objects[objID] = prev
			return err
		}
		a.EmitSuccess(a.id, req, nil)
		return nil
	})
}

func (a *Adapter) SubmitRead(req types.RequestID, tag types.ConstraintTag, value any) bool {
	return a.run(req, types.ZeroObjectID, func() error {
		a.mu.Lock()
		defer a.mu.Unlock()
		switch tag {
		case types.ByID:
			id, ok := value.(types.ObjectID)
			if !ok {
				a.EmitFailure(a.id, req, types.ZeroObjectID, types.ReasonNotFound)
				return nil
			}
			w, exists := a.objects[id]
			if !exists {
				a.EmitFailure(a.id, req, id, types.ReasonNotFound)
				return nil
			}
			rec, err := records.FromWire(w)
			if err != nil {
				return err
			}
			a.EmitSuccess(a.id, req, rec)
		case types.ByOwner:
			owner, ok := value.(types.ObjectID)
			if !ok {
				a.EmitFailure(a.id, req, types.ZeroObjectID, types.ReasonNotFound)
				return nil
			}
			a.emitMatchesLocked(req, func(w records.Wire) bool { return w.Owner == owner.String() })
		case types.ByName:
			name, ok := value.(string)
			if !ok {
				a.EmitFailure(a.id, req, types.ZeroObjectID, types.ReasonNotFound)
				return nil
			}
			a.emitMatchesLocked(req, func(w records.Wire) bool { return w.Name == name })
		case types.All:
			a.emitMatchesLocked(req, func(records.Wire) bool { return true })
		default:
			a.EmitFailure(a.id, req, types.ZeroObjectID, types.ReasonNotFound)
		}
		return nil
	})
}

// emitMatchesLocked emits every stored record matching the predicate as a
// batch. Called with a.mu held.
func (a *Adapter) emitMatchesLocked(req types.RequestID, match func(records.Wire) bool) {
	batch := &types.Batch{}
	for _, w := range a.objects {
		if !match(w) {
			continue
		}
		rec, err := records.FromWire(w)
		if err != nil {
			continue
		}
		batch.Items = append(batch.Items, rec)
	}
	a.EmitSuccess(a.id, req, batch)
}

var _ adapter.Adapter = (*Adapter)(nil)
