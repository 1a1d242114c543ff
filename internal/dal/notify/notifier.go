// Package notify fans request completions out to connected WebSocket
// clients through the API Gateway Management API, so sync-job progress and
// schedule changes reach every open session without polling. Connections
// are added with Register and removed with Unregister or when the gateway
// reports them gone.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	awsapigw "github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi"
	apigwtypes "github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi/types"
	"go.uber.org/zap"

	"syncdal/internal/dal/adapter"
	"syncdal/internal/dal/manager"
	"syncdal/internal/dal/types"
	"syncdal/internal/infrastructure/concurrency"
)

// Message is the JSON payload pushed to every connection.
type Message struct {
	Kind      string `json:"kind"`
	RequestID uint64 `json:"request_id"`
	Success   bool   `json:"success"`
	ObjectID  string `json:"object_id,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// Notifier broadcasts completion messages to registered connections.
type Notifier struct {
	client *awsapigw.Client
	pool   *concurrency.WorkerPool
	log    *zap.Logger

	mu          sync.Mutex
	connections map[string]struct{}
	subs        []adapter.Subscription
}

// NewNotifier builds a notifier over client, fanning deliveries out on pool.
func NewNotifier(client *awsapigw.Client, pool *concurrency.WorkerPool, log *zap.Logger) *Notifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Notifier{
		client:      client,
		pool:        pool,
		log:         log.Named("notify"),
		connections: make(map[string]struct{}),
	}
}

// Register adds a live WebSocket connection.
func (n *Notifier) Register(connectionID string) {
	n.mu.Lock()
	n.connections[connectionID] = struct{}{}
	n.mu.Unlock()
}

// Unregister drops a connection.
func (n *Notifier) Unregister(connectionID string) {
	n.mu.Lock()
	delete(n.connections, connectionID)
	n.mu.Unlock()
}

// ConnectionCount returns the number of registered connections.
func (n *Notifier) ConnectionCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.connections)
}

// Attach subscribes the notifier to kind's completion surface on m.
func (n *Notifier) Attach(m *manager.Manager, kind types.Kind) bool {
	okSub, failSub, ok := m.OnCompletion(kind,
		func(_ adapter.AdapterID, req types.RequestID, rec types.Record) {
			objID := ""
			if rec != nil && !rec.ObjectID().IsZero() {
				objID = rec.ObjectID().String()
			}
			n.Broadcast(Message{Kind: string(kind), RequestID: uint64(req), Success: true, ObjectID: objID})
		},
		func(_ adapter.AdapterID, req types.RequestID, objID types.ObjectID, reason types.FailureReason) {
			id := ""
			if !objID.IsZero() {
				id = objID.String()
			}
			n.Broadcast(Message{Kind: string(kind), RequestID: uint64(req), Success: false, ObjectID: id, Reason: string(reason)})
		},
	)
	if !ok {
		return false
	}
	n.mu.Lock()
	n.subs = append(n.subs, okSub, failSub)
	n.mu.Unlock()
	return true
}

// Detach unsubscribes every completion subscription.
func (n *Notifier) Detach() {
	n.mu.Lock()
	subs := n.subs
	n.subs = nil
	n.mu.Unlock()
	for _, s := range subs {
		s.Unsubscribe()
	}
}

// Broadcast pushes msg to every registered connection. Each delivery runs
// as its own pool task so one slow client never delays the rest; a
// connection the gateway reports gone is dropped from the registry.
func (n *Notifier) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		n.log.Error("failed to marshal notification", zap.Error(err))
		return
	}

	n.mu.Lock()
	targets := make([]string, 0, len(n.connections))
	for id := range n.connections {
		targets = append(targets, id)
	}
	n.mu.Unlock()

	for _, connID := range targets {
		connID := connID
		n.pool.Submit(concurrency.Task{
			ID: fmt.Sprintf("notify-%s-%d", connID, msg.RequestID),
			Execute: func(ctx context.Context) error {
				ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
				defer cancel()
				_, err := n.client.PostToConnection(ctx, &awsapigw.PostToConnectionInput{
					ConnectionId: &connID,
					Data:         data,
				})
				return err
			},
			Callback: func(_ string, err error) {
				if err == nil {
					return
				}
				var gone *apigwtypes.GoneException
				if errors.As(err, &gone) {
					n.Unregister(connID)
					n.log.Debug("dropped stale connection", zap.String("connection_id", connID))
					return
				}
				n.log.Warn("notification delivery failed",
					zap.String("connection_id", connID), zap.Error(err))
			},
		})
	}
}
