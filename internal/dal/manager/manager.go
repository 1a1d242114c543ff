// Package manager implements the manager facade: one Dispatch Queue per
// entity kind, a shared call timeout, and the synchronous wrapper contract
// that turns an asynchronous intake/completion round trip into a single
// blocking call bounded by that timeout. Hooks are attached to the
// Dispatch Queue's completion surface *before* submission, with the real
// request-ID filled into a capture slot the submitter publishes
// afterward, so a completion that races the capture slot is buffered
// rather than lost.
package manager

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"syncdal/internal/dal/adapter"
	"syncdal/internal/dal/cache"
	"syncdal/internal/dal/queue"
	"syncdal/internal/dal/types"
	"syncdal/internal/observability"
)

// Manager is the Manager Facade: one Dispatch Queue per entity kind, plus
// the cache instances attached to each, behind a single configuration
// mutex and a shared call timeout.
type Manager struct {
	log     *zap.Logger
	metrics *observability.Collector

	// configuration mutex: guards callTimeout, the default param structs,
	// and the caches index. It is never held across a blocking wait.
	mu                 sync.Mutex
	callTimeout        time.Duration
	defaultCacheParams cache.Params
	defaultQueueParams queue.Params

	queues map[types.Kind]*queue.DispatchQueue
	caches map[types.Kind]map[adapter.AdapterID]*cache.WriteBackCache

	callerGen types.CallerIDGen
}

// New constructs a Manager Facade with one Dispatch Queue per entity
// kind (every kind except the internal batch kind), started and ready to
// accept AttachAdapter calls.
func New(log *zap.Logger, metrics *observability.Collector) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	m := &Manager{
		log:                log.Named("manager"),
		metrics:            metrics,
		callTimeout:        5 * time.Second,
		defaultCacheParams: cache.DefaultParams(),
		defaultQueueParams: queue.DefaultParams(),
		queues:             make(map[types.Kind]*queue.DispatchQueue),
		caches:             make(map[types.Kind]map[adapter.AdapterID]*cache.WriteBackCache),
	}
	for _, k := range types.AllKinds() {
		q := queue.New(k, m.defaultQueueParams, log, metrics)
		q.Start()
		m.queues[k] = q
		m.caches[k] = make(map[adapter.AdapterID]*cache.WriteBackCache)
	}
	return m
}

// Stop drains and stops every Dispatch Queue and Write-Back Cache.
func (m *Manager) Stop() {
	m.mu.Lock()
	queues := make([]*queue.DispatchQueue, 0, len(m.queues))
	for _, q := range m.queues {
		queues = append(queues, q)
	}
	var caches []*cache.WriteBackCache
	for _, byAdapter := range m.caches {
		for _, c := range byAdapter {
			caches = append(caches, c)
		}
	}
	m.mu.Unlock()
	for _, c := range caches {
		c.Stop()
	}
	for _, q := range queues {
		q.Stop()
	}
}

func (m *Manager) queueFor(kind types.Kind) (*queue.DispatchQueue, bool) {
	m.mu.Lock()
	q, ok := m.queues[kind]
	m.mu.Unlock()
	return q, ok
}

// ---------------------------------------------------------------------
// Adapter attach/detach
// ---------------------------------------------------------------------

// AttachAdapter adds ad to kind's Dispatch Queue, optionally wrapping it in
// a Write-Back Cache using the Manager's default cache parameters.
func (m *Manager) AttachAdapter(kind types.Kind, ad adapter.Adapter, withCache bool) (adapter.AdapterID, error) {
	m.mu.Lock()
	params := m.defaultCacheParams
	m.mu.Unlock()
	return m.attach(kind, ad, withCache, params)
}

// AttachAdapterWithCacheParams always wraps ad in a Write-Back Cache,
// configured with params rather than the Manager's defaults.
func (m *Manager) AttachAdapterWithCacheParams(kind types.Kind, ad adapter.Adapter, params cache.Params) (adapter.AdapterID, error) {
	return m.attach(kind, ad, true, params)
}

func (m *Manager) attach(kind types.Kind, ad adapter.Adapter, withCache bool, params cache.Params) (adapter.AdapterID, error) {
	q, ok := m.queueFor(kind)
	if !ok {
		return 0, fmt.Errorf("dal: unknown entity kind %q", kind)
	}
	var toAttach adapter.Adapter = ad
	var wbc *cache.WriteBackCache
	if withCache {
		wbc = cache.New(kind, ad, params, m.log, m.metrics)
		wbc.Start()
		toAttach = wbc
	}
	id := q.AttachAdapter(toAttach)
	if wbc != nil {
		m.mu.Lock()
		m.caches[kind][id] = wbc
		m.mu.Unlock()
	}
	return id, nil
}

// DetachAdapter removes the adapter/cache pair identified by id from
// kind's Dispatch Queue, stopping its cache (if any).
func (m *Manager) DetachAdapter(kind types.Kind, id adapter.AdapterID) bool {
	q, ok := m.queueFor(kind)
	if !ok {
		return false
	}
	removed := q.DetachAdapter(id)
	if !removed {
		return false
	}
	m.mu.Lock()
	c, hadCache := m.caches[kind][id]
	delete(m.caches[kind], id)
	m.mu.Unlock()
	if hadCache {
		c.Stop()
	}
	return true
}

// ---------------------------------------------------------------------
// Configuration and introspection
// ---------------------------------------------------------------------

func (m *Manager) SetCallTimeout(d time.Duration) {
	m.mu.Lock()
	m.callTimeout = d
	m.mu.Unlock()
}

func (m *Manager) GetCallTimeout() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callTimeout
}

func (m *Manager) SetDefaultCacheParams(p cache.Params) {
	m.mu.Lock()
	m.defaultCacheParams = p
	m.mu.Unlock()
}

func (m *Manager) GetDefaultCacheParams() cache.Params {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.defaultCacheParams
}

func (m *Manager) SetQueueParams(kind types.Kind, p queue.Params) bool {
	q, ok := m.queueFor(kind)
	if !ok {
		return false
	}
	q.SetParams(p)
	return true
}

func (m *Manager) GetQueueParams(kind types.Kind) (queue.Params, bool) {
	q, ok := m.queueFor(kind)
	if !ok {
		return queue.Params{}, false
	}
	return q.GetParams(), true
}

func (m *Manager) SetCacheParams(kind types.Kind, adapterID adapter.AdapterID, p cache.Params) bool {
	m.mu.Lock()
	c, ok := m.caches[kind][adapterID]
	m.mu.Unlock()
	if !ok {
		return false
	}
	c.SetParams(p)
	return true
}

func (m *Manager) GetCacheParams(kind types.Kind, adapterID adapter.AdapterID) (cache.Params, bool) {
	m.mu.Lock()
	c, ok := m.caches[kind][adapterID]
	m.mu.Unlock()
	if !ok {
		return cache.Params{}, false
	}
	return c.GetParams(), true
}

func (m *Manager) GetQueueInfo(kind types.Kind) (queue.QueueInfo, bool) {
	q, ok := m.queueFor(kind)
	if !ok {
		return queue.QueueInfo{}, false
	}
	return q.QueueInfo(), true
}

func (m *Manager) GetCachesInfo(kind types.Kind) []cache.CacheInfo {
	m.mu.Lock()
	byAdapter := m.caches[kind]
	caches := make([]*cache.WriteBackCache, 0, len(byAdapter))
	for _, c := range byAdapter {
		caches = append(caches, c)
	}
	m.mu.Unlock()
	infos := make([]cache.CacheInfo, 0, len(caches))
	for _, c := range caches {
		infos = append(infos, c.CacheInfo())
	}
	return infos
}

func (m *Manager) GetAdaptersInfo(kind types.Kind) []adapter.Info {
	q, ok := m.queueFor(kind)
	if !ok {
		return nil
	}
	return q.AdaptersInfo()
}

// OnCompletion attaches external observers (audit publishers, notifiers) to
// kind's caller-visible completion surface. The returned subscriptions
// detach them.
func (m *Manager) OnCompletion(kind types.Kind, onSuccess adapter.SuccessHandler, onFailure adapter.FailureHandler) (adapter.Subscription, adapter.Subscription, bool) {
	q, ok := m.queueFor(kind)
	if !ok {
		return adapter.Subscription{}, adapter.Subscription{}, false
	}
	return q.AttachOnSuccess(onSuccess), q.AttachOnFailure(onFailure), true
}

// ---------------------------------------------------------------------
// Synchronous wrapper contract
// ---------------------------------------------------------------------

type earlyCompletion struct {
	req     types.RequestID
	outcome types.Outcome
}

// call implements the five-step synchronous wrapper contract shared by
// every Insert/Update/Delete/Read* method below.
func (m *Manager) call(kind types.Kind, op string, submit func(q *queue.DispatchQueue) (types.IntakeID, bool)) types.Outcome {
	q, ok := m.queueFor(kind)
	if !ok {
		return types.Failure(types.ZeroObjectID, types.ReasonShutdown)
	}
	start := time.Now()
	_ = m.callerGen.Next() // caller-ID space is bookkeeping only; the completion filter matches on the queue-assigned intake ID captured below

	var bufMu sync.Mutex
	var expectedSet bool
	var expected types.IntakeID
	var earlyBuf []earlyCompletion

	var fired int32
	done := make(chan types.Outcome, 1)
	fireOnce := func(o types.Outcome) {
		if atomic.CompareAndSwapInt32(&fired, 0, 1) {
			done <- o
		}
	}

	// record reports whether req is known to be this call's own request.
	// Until the capture slot is filled, a completion's req cannot yet be
	// judged — it is buffered and re-checked once submit() returns.
	record := func(req types.RequestID, outcome types.Outcome) {
		bufMu.Lock()
		if !expectedSet {
			earlyBuf = append(earlyBuf, earlyCompletion{req: req, outcome: outcome})
			bufMu.Unlock()
			return
		}
		match := req == expected
		bufMu.Unlock()
		if match {
			fireOnce(outcome)
		}
	}

	successSub := q.AttachOnSuccess(func(_ adapter.AdapterID, req types.RequestID, rec types.Record) {
		record(req, types.Success(rec))
	})
	failureSub := q.AttachOnFailure(func(_ adapter.AdapterID, req types.RequestID, objID types.ObjectID, reason types.FailureReason) {
		record(req, types.Failure(objID, reason))
	})
	defer successSub.Unsubscribe()
	defer failureSub.Unsubscribe()

	reqID, accepted := submit(q)
	if !accepted {
		return types.Failure(types.ZeroObjectID, types.ReasonShutdown)
	}

	bufMu.Lock()
	expectedSet = true
	expected = reqID
	var matched *types.Outcome
	for _, e := range earlyBuf {
		if e.req == reqID {
			o := e.outcome
			matched = &o
			break
		}
	}
	earlyBuf = nil
	bufMu.Unlock()
	if matched != nil {
		fireOnce(*matched)
	}

	timeout := m.GetCallTimeout()
	var outcome types.Outcome
	select {
	case outcome = <-done:
	case <-time.After(timeout):
		atomic.StoreInt32(&fired, 1)
		outcome = types.Failure(types.ZeroObjectID, types.ReasonTimeout)
		if m.metrics != nil {
			m.metrics.ManagerCallTimeouts.WithLabelValues(string(kind), op).Inc()
		}
	}
	if m.metrics != nil {
		m.metrics.ManagerCallDuration.WithLabelValues(string(kind), op).Observe(time.Since(start).Seconds())
	}
	return outcome
}

// Insert submits an INSERT intake and blocks for its completion.
func (m *Manager) Insert(kind types.Kind, rec types.Record) types.Outcome {
	return m.call(kind, "insert", func(q *queue.DispatchQueue) (types.IntakeID, bool) {
		return q.SubmitInsert(rec)
	})
}

// Update submits an UPDATE intake and blocks for its completion.
func (m *Manager) Update(kind types.Kind, rec types.Record) types.Outcome {
	return m.call(kind, "update", func(q *queue.DispatchQueue) (types.IntakeID, bool) {
		return q.SubmitUpdate(rec)
	})
}

// Delete submits a DELETE intake and blocks for its completion.
func (m *Manager) Delete(kind types.Kind, id types.ObjectID) types.Outcome {
	return m.call(kind, "delete", func(q *queue.DispatchQueue) (types.IntakeID, bool) {
		return q.SubmitDelete(id)
	})
}

// ReadByID submits a READ(by-id) intake and blocks for its completion.
func (m *Manager) ReadByID(kind types.Kind, id types.ObjectID) types.Outcome {
	return m.call(kind, "read_by_id", func(q *queue.DispatchQueue) (types.IntakeID, bool) {
		return q.SubmitRead(types.ByID, id)
	})
}

// ReadByOwner submits a READ(by-owner) intake, typically returning a batch.
func (m *Manager) ReadByOwner(kind types.Kind, ownerID types.ObjectID) types.Outcome {
	return m.call(kind, "read_by_owner", func(q *queue.DispatchQueue) (types.IntakeID, bool) {
		return q.SubmitRead(types.ByOwner, ownerID)
	})
}

// ReadByName submits a READ(by-name) intake.
func (m *Manager) ReadByName(kind types.Kind, name string) types.Outcome {
	return m.call(kind, "read_by_name", func(q *queue.DispatchQueue) (types.IntakeID, bool) {
		return q.SubmitRead(types.ByName, name)
	})
}

// ReadAll submits a READ(all) intake, returning the batch of kind's records
// that the serving adapter reports. A Write-Back Cache forwards this read
// downstream, so records whose INSERT is not yet committed are not included.
func (m *Manager) ReadAll(kind types.Kind) types.Outcome {
	return m.call(kind, "read_all", func(q *queue.DispatchQueue) (types.IntakeID, bool) {
		return q.SubmitRead(types.All, nil)
	})
}
