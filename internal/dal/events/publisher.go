// Package events publishes one EventBridge event per caller-visible
// request completion on the kinds it is attached to — an audit trail
// external to the storage-access core. Completions are buffered and
// flushed in PutEvents batches of at most ten entries, the EventBridge
// API's per-call limit.
package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	ebtypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"go.uber.org/zap"

	"syncdal/internal/dal/adapter"
	"syncdal/internal/dal/manager"
	"syncdal/internal/dal/types"
)

const (
	putEventsBatchLimit = 10
	flushInterval       = time.Second
)

// CompletionEvent is the JSON detail payload of one published completion.
type CompletionEvent struct {
	Kind      string    `json:"kind"`
	RequestID uint64    `json:"request_id"`
	Success   bool      `json:"success"`
	ObjectID  string    `json:"object_id,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// DetailType returns the EventBridge detail-type for the event.
func (e CompletionEvent) DetailType() string {
	if e.Success {
		return "dal.request.succeeded"
	}
	return "dal.request.failed"
}

// Publisher taps entity kinds' completion surfaces and forwards each
// completion to an EventBridge bus.
type Publisher struct {
	client  *awseventbridge.Client
	busName string
	source  string
	log     *zap.Logger

	mu      sync.Mutex
	pending []CompletionEvent
	subs    []adapter.Subscription

	wake   chan struct{}
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewPublisher builds a publisher against busName; Start launches the
// flush loop.
func NewPublisher(client *awseventbridge.Client, busName, source string, log *zap.Logger) *Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	if source == "" {
		source = "syncdal.dal"
	}
	return &Publisher{
		client:  client,
		busName: busName,
		source:  source,
		log:     log.Named("events"),
		wake:    make(chan struct{}, 1),
		stopCh:  make(chan struct{}),
	}
}

// Attach subscribes the publisher to kind's completion surface on m.
func (p *Publisher) Attach(m *manager.Manager, kind types.Kind) bool {
	okSub, failSub, ok := m.OnCompletion(kind,
		func(_ adapter.AdapterID, req types.RequestID, rec types.Record) {
			objID := ""
			if rec != nil && !rec.ObjectID().IsZero() {
				objID = rec.ObjectID().String()
			}
			p.record(CompletionEvent{
				Kind:      string(kind),
				RequestID: uint64(req),
				Success:   true,
				ObjectID:  objID,
				Timestamp: time.Now().UTC(),
			})
		},
		func(_ adapter.AdapterID, req types.RequestID, objID types.ObjectID, reason types.FailureReason) {
			id := ""
			if !objID.IsZero() {
				id = objID.String()
			}
			p.record(CompletionEvent{
				Kind:      string(kind),
				RequestID: uint64(req),
				Success:   false,
				ObjectID:  id,
				Reason:    string(reason),
				Timestamp: time.Now().UTC(),
			})
		},
	)
	if !ok {
		return false
	}
	p.mu.Lock()
	p.subs = append(p.subs, okSub, failSub)
	p.mu.Unlock()
	return true
}

func (p *Publisher) record(e CompletionEvent) {
	p.mu.Lock()
	p.pending = append(p.pending, e)
	n := len(p.pending)
	p.mu.Unlock()
	if n >= putEventsBatchLimit {
		select {
		case p.wake <- struct{}{}:
		default:
		}
	}
}

// Start launches the flush loop.
func (p *Publisher) Start() {
	p.wg.Add(1)
	go p.flushLoop()
}

// Stop flushes whatever is pending, stops the loop and detaches every
// completion subscription.
func (p *Publisher) Stop() {
	close(p.stopCh)
	p.wg.Wait()
	p.mu.Lock()
	subs := p.subs
	p.subs = nil
	p.mu.Unlock()
	for _, s := range subs {
		s.Unsubscribe()
	}
}

func (p *Publisher) flushLoop() {
	defer p.wg.Done()
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
		case <-p.wake:
		case <-p.stopCh:
			p.flush()
			return
		}
		p.flush()
	}
}

func (p *Publisher) flush() {
	p.mu.Lock()
	batch := p.pending
	p.pending = nil
	p.mu.Unlock()
	if len(batch) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for i := 0; i < len(batch); i += putEventsBatchLimit {
		end := i + putEventsBatchLimit
		if end > len(batch) {
			end = len(batch)
		}
		p.put(ctx, batch[i:end])
	}
}

func (p *Publisher) put(ctx context.Context, batch []CompletionEvent) {
	entries := make([]ebtypes.PutEventsRequestEntry, 0, len(batch))
	for _, e := range batch {
		detail, err := json.Marshal(e)
		if err != nil {
			p.log.Error("failed to marshal completion event", zap.Error(err))
			continue
		}
		entries = append(entries, ebtypes.PutEventsRequestEntry{
			EventBusName: aws.String(p.busName),
			Source:       aws.String(p.source),
			DetailType:   aws.String(e.DetailType()),
			Detail:       aws.String(string(detail)),
			Time:         aws.Time(e.Timestamp),
		})
	}
	if len(entries) == 0 {
		return
	}

	out, err := p.client.PutEvents(ctx, &awseventbridge.PutEventsInput{Entries: entries})
	if err != nil {
		p.log.Error("failed to publish completion events", zap.Error(err), zap.Int("count", len(entries)))
		return
	}
	if out.FailedEntryCount > 0 {
		for _, entry := range out.Entries {
			if entry.ErrorCode != nil {
				p.log.Error("completion event rejected",
					zap.String("error_code", aws.ToString(entry.ErrorCode)),
					zap.String("error_message", aws.ToString(entry.ErrorMessage)),
				)
			}
		}
	}
}
