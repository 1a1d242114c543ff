// Package cache implements the write-back cache: an
// in-memory object map sitting in front of a single downstream Back-end
// Adapter, coalescing pending mutations, serving reads from cache where
// possible, committing in batches on a timer/high-water/forced schedule,
// and evicting under memory pressure. A Write-Back Cache implements
// adapter.Adapter itself, so a Dispatch Queue (or a test) cannot tell a
// cached adapter from an uncached one.
package cache

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"syncdal/internal/dal/adapter"
	"syncdal/internal/dal/types"
	"syncdal/internal/observability"
)

// Params are the write-back cache's configuration knobs. New parameters
// require extending this struct, never a dynamic map.
type Params struct {
	MaxCommitInterval time.Duration
	MaxCommitUpdates  int
	MinCommitUpdates  int
	MaxCacheSize      int
	AlwaysEvict       bool
	ClearObjectAge    bool
}

// DefaultParams returns conservative defaults suitable for local/dev use.
func DefaultParams() Params {
	return Params{
		MaxCommitInterval: 5 * time.Second,
		MaxCommitUpdates:  100,
		MinCommitUpdates:  1,
		MaxCacheSize:      10000,
		AlwaysEvict:       false,
		ClearObjectAge:    true,
	}
}

// pendingMutation is the sum type the pending-mutation table holds: at
// most one of {INSERT, UPDATE, DELETE} per object.
type pendingMutation struct {
	op     types.Op
	record types.Record
}

type intakeKind int

const (
	opRead intakeKind = iota
	opInsert
	opUpdate
	opDelete
	// opCacheObject and opSendSuccess/opSendFailure are internal-only
	// intakes the cache posts to itself; no caller ever submits one.
	opCacheObject
	opSendSuccess
	opSendFailure
)

type queuedIntake struct {
	kind   intakeKind
	req    types.RequestID
	tag    types.ConstraintTag
	value  any
	record types.Record
	objID  types.ObjectID
	reason types.FailureReason
}

// CacheInfo is the cache's introspection snapshot.
type CacheInfo struct {
	Kind             types.Kind
	CachedObjects    int
	PendingMutations int
	GlobalAge        uint64
	CommitDisabled   bool
}

// WriteBackCache wraps exactly one downstream adapter.Adapter.
type WriteBackCache struct {
	*adapter.CompletionBus

	kind       types.Kind
	id         adapter.AdapterID
	downstream adapter.Adapter
	params     atomic.Pointer[Params]
	log        *zap.Logger
	metrics    *observability.Collector

	downSuccessSub adapter.Subscription
	downFailureSub adapter.Subscription

	// cache-state mutex: protects the object/age/pending-mutation tables
	// and the global age counter.
	stateMu   sync.Mutex
	objects   map[types.ObjectID]types.Record
	ages      map[types.ObjectID]uint64
	pending   map[types.ObjectID]pendingMutation
	globalAge uint64

	// pending-commit mutex: protects the commit-ID -> object-ID map used
	// to recognize a downstream completion as belonging to an internal
	// commit rather than a caller-visible request.
	commitMu       sync.Mutex
	pendingCommits map[types.CommitID]types.ObjectID
	commitGen      types.CommitIDGen

	// request-queue mutex: protects the pending-cache-request queue and
	// the pending-downstream-request set.
	reqMu             sync.Mutex
	reqCond           *sync.Cond
	intakeQueue       []queuedIntake
	pendingDownstream map[types.RequestID]types.ObjectID
	stopping          bool

	forced         int32
	commitDisabled int32
	wakeCommit     chan struct{}
	stopCh         chan struct{}
	wg             sync.WaitGroup
}

// New constructs a Write-Back Cache around downstream. Call Start to
// subscribe to the downstream completion surface and launch the request
// and commit workers.
func New(kind types.Kind, downstream adapter.Adapter, params Params, log *zap.Logger, metrics *observability.Collector) *WriteBackCache {
	if log == nil {
		log = zap.NewNop()
	}
	c := &WriteBackCache{
		CompletionBus:     adapter.NewCompletionBus(),
		kind:              kind,
		downstream:        downstream,
		log:               log.Named("cache").With(zap.String("kind", string(kind))),
		metrics:           metrics,
		objects:           make(map[types.ObjectID]types.Record),
		ages:              make(map[types.ObjectID]uint64),
		pending:           make(map[types.ObjectID]pendingMutation),
		pendingCommits:    make(map[types.CommitID]types.ObjectID),
		pendingDownstream: make(map[types.RequestID]types.ObjectID),
		wakeCommit:        make(chan struct{}, 1),
		stopCh:            make(chan struct{}),
	}
	c.reqCond = sync.NewCond(&c.reqMu)
	c.params.Store(&params)
	return c
}

// GetParams returns the cache's current configuration.
func (c *WriteBackCache) GetParams() Params { return c.getParams() }

// SetParams replaces the cache's configuration, taking effect from the
// next request/commit cycle onward.
func (c *WriteBackCache) SetParams(p Params) { c.params.Store(&p) }

func (c *WriteBackCache) getParams() Params { return *c.params.Load() }

// Start subscribes to the downstream completion surface and launches the
// request and commit workers.
func (c *WriteBackCache) Start() {
	c.downSuccessSub = c.downstream.AttachOnSuccess(c.onDownstreamSuccess)
	c.downFailureSub = c.downstream.AttachOnFailure(c.onDownstreamFailure)
	c.wg.Add(2)
	go c.requestWorker()
	go c.commitWorker()
}

// Stop requests a final forced commit, waits for both workers to drain
// and detaches from the downstream completion surface.
func (c *WriteBackCache) Stop() {
	c.reqMu.Lock()
	c.stopping = true
	c.reqCond.Broadcast()
	c.reqMu.Unlock()
	close(c.stopCh)
	c.wg.Wait()
	c.downSuccessSub.Unsubscribe()
	c.downFailureSub.Unsubscribe()
}

// ---------------------------------------------------------------------
// adapter.Adapter implementation
// ---------------------------------------------------------------------

func (c *WriteBackCache) Kind() types.Kind           { return c.kind }
func (c *WriteBackCache) SetID(id adapter.AdapterID) { c.id = id }
func (c *WriteBackCache) ID() adapter.AdapterID      { return c.id }
func (c *WriteBackCache) Connect() bool              { return c.downstream.Connect() }
func (c *WriteBackCache) Disconnect() bool           { return c.downstream.Disconnect() }
func (c *WriteBackCache) Build() bool                { return c.downstream.Build() }

func (c *WriteBackCache) Clear() bool {
	c.stateMu.Lock()
	c.objects = make(map[types.ObjectID]types.Record)
	c.ages = make(map[types.ObjectID]uint64)
	c.pending = make(map[types.ObjectID]pendingMutation)
	c.stateMu.Unlock()
	return c.downstream.Clear()
}

func (c *WriteBackCache) Info() adapter.Info {
	info := c.CacheInfo()
	return adapter.Info{
		Kind:      c.kind,
		AdapterID: c.id,
		Connected: true,
		Detail: map[string]any{
			"cached_objects":    info.CachedObjects,
			"pending_mutations": info.PendingMutations,
			"global_age":        info.GlobalAge,
			"commit_disabled":   info.CommitDisabled,
		},
	}
}

// CacheInfo returns the introspection snapshot used by the Manager
// Facade's GetCachesInfo and by Info.
func (c *WriteBackCache) CacheInfo() CacheInfo {
	c.stateMu.Lock()
	n, p, age := len(c.objects), len(c.pending), c.globalAge
	c.stateMu.Unlock()
	return CacheInfo{
		Kind:             c.kind,
		CachedObjects:    n,
		PendingMutations: p,
		GlobalAge:        age,
		CommitDisabled:   c.isCommitDisabled(),
	}
}

func (c *WriteBackCache) SubmitRead(req types.RequestID, tag types.ConstraintTag, value any) bool {
	return c.enqueue(queuedIntake{kind: opRead, req: req, tag: tag, value: value})
}

func (c *WriteBackCache) SubmitInsert(req types.RequestID, rec types.Record) bool {
	return c.enqueue(queuedIntake{kind: opInsert, req: req, record: rec, objID: rec.ObjectID()})
}

func (c *WriteBackCache) SubmitUpdate(req types.RequestID, rec types.Record) bool {
	return c.enqueue(queuedIntake{kind: opUpdate, req: req, record: rec, objID: rec.ObjectID()})
}

func (c *WriteBackCache) SubmitDelete(req types.RequestID, id types.ObjectID) bool {
	return c.enqueue(queuedIntake{kind: opDelete, req: req, objID: id})
}

func (c *WriteBackCache) enqueue(qi queuedIntake) bool {
	c.reqMu.Lock()
	if c.stopping {
		c.reqMu.Unlock()
		return false
	}
	c.intakeQueue = append(c.intakeQueue, qi)
	c.reqCond.Signal()
	c.reqMu.Unlock()
	return true
}

// ---------------------------------------------------------------------
// Forced commit / rollback / disable
// ---------------------------------------------------------------------

// Commit forces an immediate commit cycle. Rejected while commits are
// disabled.
func (c *WriteBackCache) Commit() bool {
	if c.isCommitDisabled() {
		return false
	}
	atomic.StoreInt32(&c.forced, 1)
	c.signalCommit()
	return true
}

// Rollback atomically drops every object with a pending mutation. It
// never touches the downstream. Records already handed to callers are
// independent copies, so dropping the cached originals is always safe.
func (c *WriteBackCache) Rollback() bool {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	for id := range c.pending {
		delete(c.objects, id)
		if c.getParams().ClearObjectAge {
			delete(c.ages, id)
		}
	}
	c.pending = make(map[types.ObjectID]pendingMutation)
	return true
}

func (c *WriteBackCache) DisableCommit() { atomic.StoreInt32(&c.commitDisabled, 1) }
func (c *WriteBackCache) EnableCommit()  { atomic.StoreInt32(&c.commitDisabled, 0) }
func (c *WriteBackCache) isCommitDisabled() bool {
	return atomic.LoadInt32(&c.commitDisabled) == 1
}

func (c *WriteBackCache) signalCommit() {
	select {
	case c.wakeCommit <- struct{}{}:
	default:
	}
}

// ---------------------------------------------------------------------
// Request worker
// ---------------------------------------------------------------------

func (c *WriteBackCache) requestWorker() {
	defer c.wg.Done()
	for {
		c.reqMu.Lock()
		for len(c.intakeQueue) == 0 && !c.stopping {
			c.reqCond.Wait()
		}
		if len(c.intakeQueue) == 0 && c.stopping {
			c.reqMu.Unlock()
			return
		}
		qi := c.intakeQueue[0]
		c.intakeQueue = c.intakeQueue[1:]
		c.reqMu.Unlock()
		c.process(qi)
	}
}

func (c *WriteBackCache) process(qi queuedIntake) {
	switch qi.kind {
	case opRead:
		c.processRead(qi)
	case opInsert, opUpdate:
		c.processWrite(qi)
	case opDelete:
		c.processDelete(qi)
	case opCacheObject:
		c.processCacheObject(qi)
	case opSendSuccess:
		c.emitSuccess(qi.req, qi.record)
	case opSendFailure:
		c.emitFailure(qi.req, qi.objID, qi.reason)
	}
}

func (c *WriteBackCache) processRead(qi queuedIntake) {
	objID, resolvable := resolveIdentity(qi.tag, qi.value)
	if resolvable {
		c.stateMu.Lock()
		if mut, pend := c.pending[objID]; pend && mut.op == types.OpDelete {
			c.stateMu.Unlock()
			c.countHit()
			c.emitFailure(qi.req, objID, types.ReasonNotFound)
			return
		}
		if rec, ok := c.objects[objID]; ok {
			c.ages[objID] = c.globalAge
			out := rec.Clone()
			c.stateMu.Unlock()
			c.countHit()
			c.emitSuccess(qi.req, out)
			return
		}
		c.stateMu.Unlock()
	}
	c.countMiss()
	c.reqMu.Lock()
	c.pendingDownstream[qi.req] = objID
	c.reqMu.Unlock()
	if !c.downstream.SubmitRead(qi.req, qi.tag, qi.value) {
		c.reqMu.Lock()
		delete(c.pendingDownstream, qi.req)
		c.reqMu.Unlock()
		c.emitFailure(qi.req, objID, types.ReasonAdapterRejected)
	}
}

func resolveIdentity(tag types.ConstraintTag, value any) (types.ObjectID, bool) {
	if tag != types.ByID {
		return types.ZeroObjectID, false
	}
	id, ok := value.(types.ObjectID)
	return id, ok
}

func (c *WriteBackCache) processWrite(qi queuedIntake) {
	id := qi.objID
	c.stateMu.Lock()
	if mut, pend := c.pending[id]; pend {
		if mut.op == types.OpDelete {
			c.stateMu.Unlock()
			c.emitFailure(qi.req, id, types.ReasonConflictPendingDelete)
			return
		}
		// An INSERT or UPDATE is already pending: coalesce, discard the
		// new request, respond success without touching the table.
		c.stateMu.Unlock()
		c.emitSuccess(qi.req, nil)
		return
	}
	if qi.kind == opInsert {
		if _, exists := c.objects[id]; exists {
			c.stateMu.Unlock()
			c.emitFailure(qi.req, id, types.ReasonAlreadyExists)
			return
		}
	}
	c.objects[id] = qi.record
	op := types.OpInsert
	if qi.kind == opUpdate {
		op = types.OpUpdate
	}
	c.pending[id] = pendingMutation{op: op, record: qi.record}
	c.ages[id] = c.globalAge
	pendingCount := len(c.pending)
	c.stateMu.Unlock()
	c.emitSuccess(qi.req, nil)
	if pendingCount >= c.getParams().MaxCommitUpdates {
		c.signalCommit()
	}
}

func (c *WriteBackCache) processDelete(qi queuedIntake) {
	id := qi.objID
	c.stateMu.Lock()
	mut, pend := c.pending[id]
	_, inCache := c.objects[id]
	var outcome func()
	switch {
	case !pend && !inCache:
		outcome = func() { c.emitFailure(qi.req, id, types.ReasonNotFound) }
	case !pend:
		c.pending[id] = pendingMutation{op: types.OpDelete}
		outcome = func() { c.emitSuccess(qi.req, nil) }
	case mut.op == types.OpInsert:
		delete(c.objects, id)
		delete(c.pending, id)
		if c.getParams().ClearObjectAge {
			delete(c.ages, id)
		}
		outcome = func() { c.emitSuccess(qi.req, nil) }
	case mut.op == types.OpUpdate:
		c.pending[id] = pendingMutation{op: types.OpDelete}
		outcome = func() { c.emitSuccess(qi.req, nil) }
	default: // mut.op == types.OpDelete
		outcome = func() { c.emitFailure(qi.req, id, types.ReasonNotFound) }
	}
	pendingCount := len(c.pending)
	c.stateMu.Unlock()
	outcome()
	if pendingCount >= c.getParams().MaxCommitUpdates {
		c.signalCommit()
	}
}

func (c *WriteBackCache) processCacheObject(qi queuedIntake) {
	if qi.record == nil {
		return
	}
	if batch, ok := types.AsBatch(qi.record); ok {
		for _, item := range batch.Items {
			c.cacheObjectItem(item)
		}
		return
	}
	c.cacheObjectItem(qi.record)
}

// cacheObjectItem installs a copy of rec if its object-ID is absent and
// bumps its age to the global age, unless it already carries a higher one:
// a cached copy is never demoted by a stale read. The cache keeps its own
// clone so the record handed to the caller is never aliased by the object
// table.
func (c *WriteBackCache) cacheObjectItem(rec types.Record) {
	id := rec.ObjectID()
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	if _, exists := c.objects[id]; !exists {
		c.objects[id] = rec.Clone()
	}
	if age, ok := c.ages[id]; !ok || c.globalAge > age {
		c.ages[id] = c.globalAge
	}
}

func (c *WriteBackCache) emitSuccess(req types.RequestID, rec types.Record) {
	if req == 0 {
		return
	}
	c.EmitSuccess(c.id, req, rec)
}

func (c *WriteBackCache) emitFailure(req types.RequestID, objID types.ObjectID, reason types.FailureReason) {
	if req == 0 {
		return
	}
	c.EmitFailure(c.id, req, objID, reason)
}

func (c *WriteBackCache) countHit() {
	if c.metrics != nil {
		c.metrics.CacheHits.WithLabelValues(string(c.kind)).Inc()
	}
}

func (c *WriteBackCache) countMiss() {
	if c.metrics != nil {
		c.metrics.CacheMisses.WithLabelValues(string(c.kind)).Inc()
	}
}

// ---------------------------------------------------------------------
// Commit worker
// ---------------------------------------------------------------------

func (c *WriteBackCache) commitWorker() {
	defer c.wg.Done()
	timer := time.NewTimer(c.getParams().MaxCommitInterval)
	defer timer.Stop()
	for {
		select {
		case <-timer.C:
		case <-c.wakeCommit:
		case <-c.stopCh:
			c.runCommit()
			return
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		c.maybeCommit()
		timer.Reset(c.getParams().MaxCommitInterval)
	}
}

func (c *WriteBackCache) maybeCommit() {
	forced := atomic.SwapInt32(&c.forced, 0) == 1
	if c.isCommitDisabled() {
		return
	}
	c.stateMu.Lock()
	n := len(c.pending)
	c.stateMu.Unlock()
	if forced || n >= c.getParams().MinCommitUpdates {
		c.runCommit()
	}
}

// runCommit snapshots and clears the pending-mutation table, submits one
// downstream request per entry, and evicts if the cache is at or over its
// size bound.
func (c *WriteBackCache) runCommit() {
	c.stateMu.Lock()
	if len(c.pending) == 0 {
		c.stateMu.Unlock()
		return
	}
	snapshot := make(map[types.ObjectID]pendingMutation, len(c.pending))
	for id, m := range c.pending {
		snapshot[id] = m
	}
	c.pending = make(map[types.ObjectID]pendingMutation)
	c.stateMu.Unlock()

	start := time.Now()
	for id, m := range snapshot {
		c.commitOne(id, m)
	}
	c.stateMu.Lock()
	c.globalAge++
	size := len(c.objects)
	c.stateMu.Unlock()

	if c.metrics != nil {
		c.metrics.CommitDuration.WithLabelValues(string(c.kind)).Observe(time.Since(start).Seconds())
		c.metrics.CommitBatchSize.WithLabelValues(string(c.kind)).Observe(float64(len(snapshot)))
		c.metrics.CacheSize.WithLabelValues(string(c.kind)).Set(float64(size))
	}

	if size >= c.getParams().MaxCacheSize || c.getParams().AlwaysEvict {
		c.evict()
	}
}

func (c *WriteBackCache) commitOne(id types.ObjectID, m pendingMutation) {
	commitID := c.commitGen.Next()
	c.commitMu.Lock()
	c.pendingCommits[commitID] = id
	c.commitMu.Unlock()

	var accepted bool
	switch m.op {
	case types.OpInsert:
		accepted = c.downstream.SubmitInsert(commitID, m.record)
	case types.OpUpdate:
		accepted = c.downstream.SubmitUpdate(commitID, m.record)
	case types.OpDelete:
		accepted = c.downstream.SubmitDelete(commitID, id)
	}
	if !accepted {
		c.commitMu.Lock()
		delete(c.pendingCommits, commitID)
		c.commitMu.Unlock()
		c.stateMu.Lock()
		if _, stillPending := c.pending[id]; !stillPending {
			c.pending[id] = m
		}
		c.stateMu.Unlock()
		return
	}
	if m.op == types.OpDelete {
		c.stateMu.Lock()
		delete(c.objects, id)
		if c.getParams().ClearObjectAge {
			delete(c.ages, id)
		}
		c.stateMu.Unlock()
	}
}

// ---------------------------------------------------------------------
// Eviction
// ---------------------------------------------------------------------

// evict considers every object with a clear Modified flag and no pending
// mutation. Callers only ever hold independent copies, so no outside
// reference can pin a cached record. It drops every evictable object
// strictly older than the global age; if none qualifies it drops the
// single least-recently-used evictable instead. Ages are bumped to the
// global age on use, so a lower age is older.
func (c *WriteBackCache) evict() {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()

	var candidates []types.ObjectID
	for id, rec := range c.objects {
		if rec.Modified() {
			continue
		}
		if _, pend := c.pending[id]; pend {
			continue
		}
		candidates = append(candidates, id)
	}
	if len(candidates) == 0 {
		return
	}

	dropped := false
	for _, id := range candidates {
		if c.ages[id] < c.globalAge {
			c.removeObjectLocked(id)
			dropped = true
			if c.metrics != nil {
				c.metrics.CacheEvictions.WithLabelValues(string(c.kind)).Inc()
			}
		}
	}
	if dropped {
		return
	}

	lru := candidates[0]
	for _, id := range candidates[1:] {
		if c.ages[id] < c.ages[lru] {
			lru = id
		}
	}
	c.removeObjectLocked(lru)
	if c.metrics != nil {
		c.metrics.CacheEvictions.WithLabelValues(string(c.kind)).Inc()
	}
}

func (c *WriteBackCache) removeObjectLocked(id types.ObjectID) {
	delete(c.objects, id)
	if c.getParams().ClearObjectAge {
		delete(c.ages, id)
	}
}

// ---------------------------------------------------------------------
// Downstream completion routing
// ---------------------------------------------------------------------

func (c *WriteBackCache) onDownstreamSuccess(_ adapter.AdapterID, req types.RequestID, rec types.Record) {
	c.commitMu.Lock()
	objID, isCommit := c.pendingCommits[req]
	if isCommit {
		delete(c.pendingCommits, req)
	}
	c.commitMu.Unlock()
	if isCommit {
		c.stateMu.Lock()
		if r, ok := c.objects[objID]; ok {
			r.SetModified(false)
		}
		c.stateMu.Unlock()
		return
	}

	c.reqMu.Lock()
	_, isDownstream := c.pendingDownstream[req]
	if isDownstream {
		delete(c.pendingDownstream, req)
	}
	c.reqMu.Unlock()
	if isDownstream {
		if rec != nil {
			c.enqueue(queuedIntake{kind: opCacheObject, record: rec})
		}
		c.emitSuccess(req, rec)
		return
	}

	c.log.Warn("dropped unmatched downstream success completion", zap.Uint64("req", uint64(req)))
}

func (c *WriteBackCache) onDownstreamFailure(_ adapter.AdapterID, req types.RequestID, objID types.ObjectID, reason types.FailureReason) {
	c.commitMu.Lock()
	_, isCommit := c.pendingCommits[req]
	if isCommit {
		delete(c.pendingCommits, req)
	}
	c.commitMu.Unlock()
	if isCommit {
		c.log.Error("commit failed", zap.String("object_id", objID.String()), zap.String("reason", string(reason)))
		return
	}

	c.reqMu.Lock()
	_, isDownstream := c.pendingDownstream[req]
	if isDownstream {
		delete(c.pendingDownstream, req)
	}
	c.reqMu.Unlock()
	if isDownstream {
		c.emitFailure(req, objID, types.ReasonAdapterFailed)
		return
	}

	c.log.Warn("dropped unmatched downstream failure completion", zap.Uint64("req", uint64(req)))
}

var _ adapter.Adapter = (*WriteBackCache)(nil)
