// Package queue implements the dispatch queue: the owner of
// one entity kind's ordered adapter list, the router that fans each intake
// out per the configured replication mode, the per-adapter failure
// counters and the failure-remediation actions that reorder or prune that
// list, and the aggregator that turns N adapter completions into exactly
// one caller-visible outcome.
package queue

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"syncdal/internal/dal/adapter"
	"syncdal/internal/dal/types"
	"syncdal/internal/observability"
)

// ReplicationMode is the enumerated policy deciding which adapters a
// given intake is routed to.
type ReplicationMode int

const (
	ModePrimaryReadPrimaryWrite ReplicationMode = iota
	ModePrimaryReadAllWrite
	ModeAllReadAllWrite
)

// FailureAction is the enumerated remediation applied when an adapter's
// consecutive-failure counter crosses its threshold.
type FailureAction int

const (
	ActionIgnore FailureAction = iota
	ActionDrop
	ActionDropUnlessLast
	ActionPushToBack
	// ActionReconnect trips the adapter's circuit breaker open and runs a
	// disconnect/connect cycle on a separate goroutine; while the breaker is
	// open (its fixed 5s timeout, however long the reconnect takes) new
	// routing to the adapter fails fast instead of queuing behind a dead
	// connection; already-dispatched
	// in-flight requests are unaffected and still complete normally. No
	// ordering is guaranteed between pre- and post-reconnect submissions.
	ActionReconnect
)

// Params are the Dispatch Queue's enumerated configuration knobs.
type Params struct {
	Mode             ReplicationMode
	MaxReadFailures  int
	MaxWriteFailures int
	FailureAction    FailureAction
}

// DefaultParams returns a single-primary, push-to-back-on-failure policy.
func DefaultParams() Params {
	return Params{
		Mode:             ModePrimaryReadPrimaryWrite,
		MaxReadFailures:  3,
		MaxWriteFailures: 3,
		FailureAction:    ActionPushToBack,
	}
}

var errReconnecting = errors.New("adapter reconnecting")

type adapterSlot struct {
	ad adapter.Adapter
	id adapter.AdapterID
	cb *gobreaker.CircuitBreaker

	consecReadFail  int
	consecWriteFail int
	totalReadFail   int
	totalWriteFail  int
	totalReads      int
	totalWrites     int

	successSub adapter.Subscription
	failureSub adapter.Subscription
}

type queuedRequest struct {
	req    types.IntakeID
	intake types.Intake
}

// pendingEntry tracks, for one in-flight caller request, which adapter IDs
// still owe a completion and whether a caller-visible outcome has already
// been emitted for it.
type pendingEntry struct {
	owing   map[adapter.AdapterID]struct{}
	isWrite bool
	emitted bool
}

// AdapterSlotInfo is the per-adapter introspection snapshot.
type AdapterSlotInfo struct {
	AdapterID                adapter.AdapterID
	ConsecutiveReadFailures  int
	ConsecutiveWriteFailures int
	TotalReadFailures        int
	TotalWriteFailures       int
	TotalReads               int
	TotalWrites              int
}

// QueueInfo is the Dispatch Queue introspection snapshot.
type QueueInfo struct {
	Kind            types.Kind
	Mode            ReplicationMode
	PendingRequests int
	Adapters        []AdapterSlotInfo
}

// DispatchQueue owns the ordered adapter list for one entity kind.
type DispatchQueue struct {
	*adapter.CompletionBus

	kind    types.Kind
	params  Params
	log     *zap.Logger
	metrics *observability.Collector

	mu            sync.Mutex
	cond          *sync.Cond
	adapters      []*adapterSlot
	nextAdapterID adapter.AdapterID
	intakeQueue   []queuedRequest
	pending       map[types.IntakeID]*pendingEntry
	intakeGen     types.IntakeIDGen
	stopping      bool

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func New(kind types.Kind, params Params, log *zap.Logger, metrics *observability.Collector) *DispatchQueue {
	if log == nil {
		log = zap.NewNop()
	}
	q := &DispatchQueue{
		CompletionBus: adapter.NewCompletionBus(),
		kind:          kind,
		params:        params,
		log:           log.Named("queue").With(zap.String("kind", string(kind))),
		metrics:       metrics,
		pending:       make(map[types.IntakeID]*pendingEntry),
		stopCh:        make(chan struct{}),
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *DispatchQueue) SetParams(p Params) {
	q.mu.Lock()
	q.params = p
	q.mu.Unlock()
}

func (q *DispatchQueue) GetParams() Params {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.params
}

// Start launches the router worker.
func (q *DispatchQueue) Start() {
	q.wg.Add(1)
	go q.worker()
}

// Stop drains the intake queue (any queued-but-unrouted intakes fail with
// ReasonShutdown) and stops the router worker.
func (q *DispatchQueue) Stop() {
	q.mu.Lock()
	q.stopping = true
	leftover := q.intakeQueue
	q.intakeQueue = nil
	q.cond.Broadcast()
	q.mu.Unlock()
	close(q.stopCh)
	q.wg.Wait()
	for _, qr := range leftover {
		q.EmitFailure(0, qr.req, qr.intake.ObjectID, types.ReasonShutdown)
	}
	q.mu.Lock()
	for _, s := range q.adapters {
		s.successSub.Unsubscribe()
		s.failureSub.Unsubscribe()
	}
	q.mu.Unlock()
}

// AttachAdapter adds ad to the tail of the adapter list, subscribing to its
// completion surface, and assigns it a stable AdapterID.
func (q *DispatchQueue) AttachAdapter(ad adapter.Adapter) adapter.AdapterID {
	q.mu.Lock()
	q.nextAdapterID++
	id := q.nextAdapterID
	ad.SetID(id)
	slot := &adapterSlot{
		ad: ad,
		id: id,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        fmt.Sprintf("%s-adapter-%d", q.kind, id),
			MaxRequests: 1,
			Timeout:     5 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 1
			},
		}),
	}
	slot.successSub = ad.AttachOnSuccess(func(aid adapter.AdapterID, req types.RequestID, rec types.Record) {
		q.onAdapterSuccess(aid, req, rec)
	})
	slot.failureSub = ad.AttachOnFailure(func(aid adapter.AdapterID, req types.RequestID, objID types.ObjectID, reason types.FailureReason) {
		q.onAdapterFailure(aid, req, objID, reason)
	})
	q.adapters = append(q.adapters, slot)
	q.cond.Broadcast()
	q.mu.Unlock()
	return id
}

// DetachAdapter removes the adapter with the given ID, if present.
func (q *DispatchQueue) DetachAdapter(id adapter.AdapterID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, s := range q.adapters {
		if s.id == id {
			s.successSub.Unsubscribe()
			s.failureSub.Unsubscribe()
			q.adapters = append(q.adapters[:i:i], q.adapters[i+1:]...)
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------
// Submission
// ---------------------------------------------------------------------

func (q *DispatchQueue) SubmitRead(tag types.ConstraintTag, value any) (types.IntakeID, bool) {
	return q.submit(types.Intake{Op: types.IntakeRead, ConstraintTag: tag, ConstraintValue: value})
}

func (q *DispatchQueue) SubmitInsert(rec types.Record) (types.IntakeID, bool) {
	return q.submit(types.Intake{Op: types.IntakeInsert, Record: rec, ObjectID: rec.ObjectID()})
}

func (q *DispatchQueue) SubmitUpdate(rec types.Record) (types.IntakeID, bool) {
	return q.submit(types.Intake{Op: types.IntakeUpdate, Record: rec, ObjectID: rec.ObjectID()})
}

func (q *DispatchQueue) SubmitDelete(id types.ObjectID) (types.IntakeID, bool) {
	return q.submit(types.Intake{Op: types.IntakeDelete, ObjectID: id})
}

func (q *DispatchQueue) submit(intake types.Intake) (types.IntakeID, bool) {
	q.mu.Lock()
	if q.stopping {
		q.mu.Unlock()
		return 0, false
	}
	req := q.intakeGen.Next()
	q.intakeQueue = append(q.intakeQueue, queuedRequest{req: req, intake: intake})
	q.cond.Broadcast()
	q.mu.Unlock()
	return req, true
}

// ---------------------------------------------------------------------
// Router worker
// ---------------------------------------------------------------------

func (q *DispatchQueue) worker() {
	defer q.wg.Done()
	for {
		q.mu.Lock()
		// Block while there is nothing to route OR nowhere to route it: a
		// request submitted during a transient no-adapter window (every
		// adapter dropped by failure handling, say) waits for the next
		// AttachAdapter instead of failing spuriously.
		for (len(q.intakeQueue) == 0 || len(q.adapters) == 0) && !q.stopping {
			q.cond.Wait()
		}
		if q.stopping {
			q.mu.Unlock()
			return
		}
		qr := q.intakeQueue[0]
		q.intakeQueue = q.intakeQueue[1:]
		targets := q.targetsLocked(qr.intake.Op)
		q.mu.Unlock()
		q.route(qr, targets)
	}
}

func (q *DispatchQueue) targetsLocked(op types.IntakeOp) []*adapterSlot {
	if len(q.adapters) == 0 {
		return nil
	}
	isRead := op == types.IntakeRead
	switch q.params.Mode {
	case ModePrimaryReadAllWrite:
		if isRead {
			return []*adapterSlot{q.adapters[0]}
		}
		return append([]*adapterSlot(nil), q.adapters...)
	case ModeAllReadAllWrite:
		return append([]*adapterSlot(nil), q.adapters...)
	default: // ModePrimaryReadPrimaryWrite
		return []*adapterSlot{q.adapters[0]}
	}
}

func (q *DispatchQueue) route(qr queuedRequest, targets []*adapterSlot) {
	if len(targets) == 0 {
		// Unreachable from the worker (it blocks until an adapter exists);
		// kept so a future caller cannot route into nothing silently.
		q.EmitFailure(0, qr.req, qr.intake.ObjectID, types.ReasonAdapterRejected)
		return
	}
	isWrite := qr.intake.Op != types.IntakeRead
	owing := make(map[adapter.AdapterID]struct{}, len(targets))
	for _, t := range targets {
		if q.submitTo(t, qr) {
			owing[t.id] = struct{}{}
		} else {
			q.mu.Lock()
			q.recordResult(t, isWrite, false)
			q.mu.Unlock()
		}
	}
	if q.metrics != nil {
		q.metrics.RequestsDispatched.WithLabelValues(string(q.kind), opLabel(qr.intake.Op)).Add(float64(len(owing)))
	}
	if len(owing) == 0 {
		q.EmitFailure(0, qr.req, qr.intake.ObjectID, types.ReasonAdapterRejected)
		return
	}
	q.mu.Lock()
	q.pending[qr.req] = &pendingEntry{owing: owing, isWrite: isWrite}
	q.mu.Unlock()
}

func (q *DispatchQueue) submitTo(t *adapterSlot, qr queuedRequest) bool {
	if t.cb != nil {
		if _, err := t.cb.Execute(func() (any, error) { return nil, nil }); err != nil {
			return false
		}
	}
	switch qr.intake.Op {
	case types.IntakeRead:
		return t.ad.SubmitRead(qr.req, qr.intake.ConstraintTag, qr.intake.ConstraintValue)
	case types.IntakeInsert:
		return t.ad.SubmitInsert(qr.req, qr.intake.Record)
	case types.IntakeUpdate:
		return t.ad.SubmitUpdate(qr.req, qr.intake.Record)
	case types.IntakeDelete:
		return t.ad.SubmitDelete(qr.req, qr.intake.ObjectID)
	default:
		return false
	}
}

func opLabel(op types.IntakeOp) string {
	switch op {
	case types.IntakeRead:
		return "read"
	case types.IntakeInsert:
		return "insert"
	case types.IntakeUpdate:
		return "update"
	case types.IntakeDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// ---------------------------------------------------------------------
// Completion handling and aggregation
// ---------------------------------------------------------------------

func (q *DispatchQueue) onAdapterSuccess(aid adapter.AdapterID, req types.RequestID, rec types.Record) {
	q.complete(aid, req, true, rec, types.ZeroObjectID, types.ReasonUnspecified)
}

func (q *DispatchQueue) onAdapterFailure(aid adapter.AdapterID, req types.RequestID, objID types.ObjectID, reason types.FailureReason) {
	q.complete(aid, req, false, nil, objID, reason)
}

func (q *DispatchQueue) complete(aid adapter.AdapterID, req types.RequestID, ok bool, rec types.Record, objID types.ObjectID, reason types.FailureReason) {
	q.mu.Lock()
	pe, exists := q.pending[req]
	if !exists {
		q.mu.Unlock()
		q.log.Warn("dropped completion with no pending entry", zap.Uint64("req", uint64(req)))
		return
	}
	if slot := q.slotByIDLocked(aid); slot != nil {
		q.recordResult(slot, pe.isWrite, ok)
	}
	delete(pe.owing, aid)

	emit := false
	outcome := types.Outcome{}
	if !pe.emitted {
		if ok {
			pe.emitted = true
			emit = true
			outcome = types.Success(rec)
		} else if len(pe.owing) == 0 {
			pe.emitted = true
			emit = true
			outcome = types.Failure(objID, reason)
		}
	}
	if len(pe.owing) == 0 {
		delete(q.pending, req)
	}
	q.mu.Unlock()

	if !emit {
		return
	}
	if q.metrics != nil {
		label := "failure"
		if outcome.Success {
			label = "success"
		}
		q.metrics.RequestsCompleted.WithLabelValues(string(q.kind), label).Inc()
	}
	if outcome.Success {
		q.EmitSuccess(0, req, outcome.Record)
	} else {
		q.EmitFailure(0, req, outcome.ObjectID, outcome.Reason)
	}
}

// recordResult updates read/write failure counters for slot and applies
// the configured failure action if a threshold is crossed. Called with
// q.mu held.
func (q *DispatchQueue) recordResult(slot *adapterSlot, isWrite, ok bool) {
	crossed := false
	if isWrite {
		slot.totalWrites++
		if ok {
			slot.consecWriteFail = 0
		} else {
			slot.consecWriteFail++
			slot.totalWriteFail++
			crossed = slot.consecWriteFail >= q.params.MaxWriteFailures
		}
	} else {
		slot.totalReads++
		if ok {
			slot.consecReadFail = 0
		} else {
			slot.consecReadFail++
			slot.totalReadFail++
			crossed = slot.consecReadFail >= q.params.MaxReadFailures
		}
	}
	if q.metrics != nil {
		if !ok {
			q.metrics.AdapterFailures.WithLabelValues(string(q.kind), fmt.Sprint(slot.id), opLabelForWrite(isWrite)).Inc()
		}
		q.metrics.AdapterConsecutive.WithLabelValues(string(q.kind), fmt.Sprint(slot.id)).Set(float64(maxInt(slot.consecReadFail, slot.consecWriteFail)))
	}
	if crossed {
		q.applyFailureAction(slot)
	}
}

func opLabelForWrite(isWrite bool) string {
	if isWrite {
		return "write"
	}
	return "read"
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// applyFailureAction is called with q.mu held.
func (q *DispatchQueue) applyFailureAction(slot *adapterSlot) {
	switch q.params.FailureAction {
	case ActionIgnore:
	case ActionDrop:
		q.removeSlotLocked(slot.id)
	case ActionDropUnlessLast:
		if len(q.adapters) > 1 {
			q.removeSlotLocked(slot.id)
		}
	case ActionPushToBack:
		q.pushToBackLocked(slot.id)
	case ActionReconnect:
		cb, ad := slot.cb, slot.ad
		kind, id, metrics := q.kind, slot.id, q.metrics
		go func() {
			if metrics != nil {
				metrics.BreakerState.WithLabelValues(string(kind), fmt.Sprint(id)).Set(2)
			}
			if cb != nil {
				cb.Execute(func() (any, error) { return nil, errReconnecting })
			}
			ad.Disconnect()
			ad.Connect()
			if metrics != nil {
				metrics.BreakerState.WithLabelValues(string(kind), fmt.Sprint(id)).Set(0)
			}
		}()
	}
}

func (q *DispatchQueue) removeSlotLocked(id adapter.AdapterID) {
	for i, s := range q.adapters {
		if s.id == id {
			q.adapters = append(q.adapters[:i:i], q.adapters[i+1:]...)
			return
		}
	}
}

func (q *DispatchQueue) pushToBackLocked(id adapter.AdapterID) {
	idx := -1
	for i, s := range q.adapters {
		if s.id == id {
			idx = i
			break
		}
	}
	if idx == -1 || idx == len(q.adapters)-1 {
		return
	}
	s := q.adapters[idx]
	q.adapters = append(q.adapters[:idx], q.adapters[idx+1:]...)
	q.adapters = append(q.adapters, s)
}

func (q *DispatchQueue) slotByIDLocked(id adapter.AdapterID) *adapterSlot {
	for _, s := range q.adapters {
		if s.id == id {
			return s
		}
	}
	return nil
}

// ---------------------------------------------------------------------
// Introspection
// ---------------------------------------------------------------------

func (q *DispatchQueue) QueueInfo() QueueInfo {
	q.mu.Lock()
	defer q.mu.Unlock()
	info := QueueInfo{
		Kind:            q.kind,
		Mode:            q.params.Mode,
		PendingRequests: len(q.pending),
	}
	for _, s := range q.adapters {
		info.Adapters = append(info.Adapters, AdapterSlotInfo{
			AdapterID:                s.id,
			ConsecutiveReadFailures:  s.consecReadFail,
			ConsecutiveWriteFailures: s.consecWriteFail,
			TotalReadFailures:        s.totalReadFail,
			TotalWriteFailures:       s.totalWriteFail,
			TotalReads:               s.totalReads,
			TotalWrites:              s.totalWrites,
		})
	}
	return info
}

func (q *DispatchQueue) AdaptersInfo() []adapter.Info {
	q.mu.Lock()
	slots := append([]*adapterSlot(nil), q.adapters...)
	q.mu.Unlock()
	infos := make([]adapter.Info, 0, len(slots))
	for _, s := range slots {
		infos = append(infos, s.ad.Info())
	}
	return infos
}

// PrimaryID returns the AdapterID currently at the head of the list, and
// whether the queue has any adapter at all.
func (q *DispatchQueue) PrimaryID() (adapter.AdapterID, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.adapters) == 0 {
		return 0, false
	}
	return q.adapters[0].id, true
}
