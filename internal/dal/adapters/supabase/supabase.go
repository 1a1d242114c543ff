// Package supabase implements a Back-end Adapter over Supabase's PostgREST
// surface: one table holding the flat record wire form, keyed by object_id,
// partitioned by the kind column. It is the second independent driver a
// Dispatch Queue replicates against alongside DynamoDB.
package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/supabase-community/supabase-go"
	"go.uber.org/zap"

	"syncdal/internal/dal/adapter"
	"syncdal/internal/dal/records"
	"syncdal/internal/dal/types"
	"syncdal/internal/infrastructure/concurrency"
)

// uniqueViolation is the Postgres SQLSTATE PostgREST surfaces when an
// insert collides with the primary key.
const uniqueViolation = "23505"

// Adapter is the Supabase-backed adapter for one entity kind.
type Adapter struct {
	*adapter.CompletionBus

	kind   types.Kind
	id     adapter.AdapterID
	client *supabase.Client
	table  string
	pool   *concurrency.WorkerPool
	log    *zap.Logger

	connected bool
}

// New builds an adapter for kind against table using client, running its
// submissions on pool.
func New(kind types.Kind, client *supabase.Client, table string, pool *concurrency.WorkerPool, log *zap.Logger) *Adapter {
	if log == nil {
		log = zap.NewNop()
	}
	if table == "" {
		table = "records"
	}
	return &Adapter{
		CompletionBus: adapter.NewCompletionBus(),
		kind:          kind,
		client:        client,
		table:         table,
		pool:          pool,
		log:           log.Named("supabase").With(zap.String("kind", string(kind))),
		connected:     true,
	}
}

func (a *Adapter) Kind() types.Kind           { return a.kind }
func (a *Adapter) SetID(id adapter.AdapterID) { a.id = id }
func (a *Adapter) ID() adapter.AdapterID      { return a.id }
func (a *Adapter) Connect() bool              { a.connected = true; return true }
func (a *Adapter) Disconnect() bool           { a.connected = false; return true }

// Build is a no-op: the table is provisioned by migration, not the adapter.
func (a *Adapter) Build() bool { return true }

// Clear deletes every row of this adapter's kind.
func (a *Adapter) Clear() bool {
	_, _, err := a.client.From(a.table).
		Delete("", "exact").
		Eq("kind", string(a.kind)).
		Execute()
	if err != nil {
		a.log.Error("clear failed", zap.Error(err))
		return false
	}
	return true
}

func (a *Adapter) Info() adapter.Info {
	return adapter.Info{
		Kind:      a.kind,
		AdapterID: a.id,
		Connected: a.connected,
		Detail: map[string]any{
			"driver": "supabase",
			"table":  a.table,
		},
	}
}

func (a *Adapter) run(req types.RequestID, objID types.ObjectID, work func() error) bool {
	if !a.connected {
		return false
	}
	return a.pool.Submit(concurrency.Task{
		ID:      fmt.Sprintf("%s-%d", a.kind, req),
		Execute: func(ctx context.Context) error { return work() },
		Callback: func(_ string, err error) {
			if err != nil {
				a.log.Error("supabase call failed", zap.Error(err))
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
		_, _, err = a.client.From(a.table).
			Insert(w, false, "", "minimal", "").
			Execute()
		if err != nil {
			if strings.Contains(err.Error(), uniqueViolation) {
				a.EmitFailure(a.id, req, objID, types.ReasonAlreadyExists)
				return nil
			}
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
		_, count, err := a.client.From(a.table).
			Update(w, "minimal", "exact").
			Eq("object_id", objID.String()).
			Eq("kind", string(a.kind)).
			Execute()
		if err != nil {
			return err
		}
		if count == 0 {
			a.EmitFailure(a.id, req, objID, types.ReasonNotFound)
			return nil
		}
		a.EmitSuccess(a.id, req, nil)
		return nil
	})
}

func (a *Adapter) SubmitDelete(req types.RequestID, objID types.ObjectID) bool {
	return a.run(req, objID, func() error {
		_, count, err := a.client.From(a.table).
			Delete("minimal", "exact").
			Eq("object_id", objID.String()).
			Eq("kind", string(a.kind)).
			Execute()
		if err != nil {
			return err
		}
		if count == 0 {
			a.EmitFailure(a.id, req, objID, types.ReasonNotFound)
			return nil
		}
		a.EmitSuccess(a.id, req, nil)
		return nil
	})
}

func (a *Adapter) SubmitRead(req types.RequestID, tag types.ConstraintTag, value any) bool {
	return a.run(req, types.ZeroObjectID, func() error {
		query := a.client.From(a.table).
			Select("*", "", false).
			Eq("kind", string(a.kind))
		single := false
		switch tag {
		case types.ByID:
			id, ok := value.(types.ObjectID)
			if !ok {
				a.EmitFailure(a.id, req, types.ZeroObjectID, types.ReasonNotFound)
				return nil
			}
			query = query.Eq("object_id", id.String())
			single = true
		case types.ByOwner:
			owner, ok := value.(types.ObjectID)
			if !ok {
				a.EmitFailure(a.id, req, types.ZeroObjectID, types.ReasonNotFound)
				return nil
			}
			query = query.Eq("owner", owner.String())
		case types.ByName:
			name, ok := value.(string)
			if !ok {
				a.EmitFailure(a.id, req, types.ZeroObjectID, types.ReasonNotFound)
				return nil
			}
			query = query.Eq("name", name)
		case types.All:
		default:
			a.EmitFailure(a.id, req, types.ZeroObjectID, types.ReasonNotFound)
			return nil
		}

		raw, _, err := query.Execute()
		if err != nil {
			return err
		}
		var rows []records.Wire
		if err := json.Unmarshal(raw, &rows); err != nil {
			return err
		}

		if single {
			if len(rows) == 0 {
				id, _ := value.(types.ObjectID)
				a.EmitFailure(a.id, req, id, types.ReasonNotFound)
				return nil
			}
			rec, err := records.FromWire(rows[0])
			if err != nil {
				return err
			}
			a.EmitSuccess(a.id, req, rec)
			return nil
		}

		batch := &types.Batch{}
		for _, w := range rows {
			rec, err := records.FromWire(w)
			if err != nil {
				a.log.Warn("skipping unparsable row", zap.String("object_id", w.ObjectID), zap.Error(err))
				continue
			}
			batch.Items = append(batch.Items, rec)
		}
		a.EmitSuccess(a.id, req, batch)
		return nil
	})
}

var _ adapter.Adapter = (*Adapter)(nil)
