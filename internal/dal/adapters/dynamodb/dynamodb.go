// Package dynamodb implements a persistent Back-end Adapter over a
// single-table DynamoDB design: PK = KIND#<kind>, SK = OBJ#<object-id>,
// with a GSI keyed on the record's owner for by-owner reads. Existence
// semantics (insert-must-not-exist, update/delete-must-exist) are enforced
// with conditional expressions so two replicas of the adapter agree without
// a read-before-write.
package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"

	"syncdal/internal/dal/adapter"
	"syncdal/internal/dal/records"
	"syncdal/internal/dal/types"
	"syncdal/internal/infrastructure/concurrency"
)

const requestTimeout = 10 * time.Second

// item is the stored row: the flat record wire form plus the table keys.
type item struct {
	PK string `dynamodbav:"pk"`
	SK string `dynamodbav:"sk"`
	records.Wire
}

func pkFor(kind types.Kind) string   { return "KIND#" + string(kind) }
func skFor(id types.ObjectID) string { return "OBJ#" + id.String() }

// Adapter is the DynamoDB-backed adapter for one entity kind. Submissions
// return immediately; the storage round trip runs on the shared worker pool
// and the result arrives through the completion surface.
type Adapter struct {
	*adapter.CompletionBus

	kind      types.Kind
	id        adapter.AdapterID
	client    *awsdynamodb.Client
	tableName string
	indexName string
	pool      *concurrency.WorkerPool
	log       *zap.Logger

	connected bool
}

// New builds an adapter for kind against table/index using client, running
// its submissions on pool.
func New(kind types.Kind, client *awsdynamodb.Client, tableName, indexName string, pool *concurrency.WorkerPool, log *zap.Logger) *Adapter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Adapter{
		CompletionBus: adapter.NewCompletionBus(),
		kind:          kind,
		client:        client,
		tableName:     tableName,
		indexName:     indexName,
		pool:          pool,
		log:           log.Named("dynamodb").With(zap.String("kind", string(kind))),
		connected:     true,
	}
}

func (a *Adapter) Kind() types.Kind           { return a.kind }
func (a *Adapter) SetID(id adapter.AdapterID) { a.id = id }
func (a *Adapter) ID() adapter.AdapterID      { return a.id }
func (a *Adapter) Connect() bool              { a.connected = true; return true }
func (a *Adapter) Disconnect() bool           { a.connected = false; return true }

// Build is a no-op: table provisioning is an infrastructure concern (CDK /
// Terraform), not the adapter's.
func (a *Adapter) Build() bool { return true }

// Clear deletes every row of this adapter's kind.
func (a *Adapter) Clear() bool {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	keyCond := expression.Key("pk").Equal(expression.Value(pkFor(a.kind)))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return false
	}
	var start map[string]ddbtypes.AttributeValue
	for {
		out, err := a.client.Query(ctx, &awsdynamodb.QueryInput{
			TableName:                 aws.String(a.tableName),
			KeyConditionExpression:    expr.KeyCondition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ProjectionExpression:      aws.String("pk, sk"),
			ExclusiveStartKey:         start,
		})
		if err != nil {
			a.log.Error("clear query failed", zap.Error(err))
			return false
		}
		for _, it := range out.Items {
			if _, err := a.client.DeleteItem(ctx, &awsdynamodb.DeleteItemInput{
				TableName: aws.String(a.tableName),
				Key:       map[string]ddbtypes.AttributeValue{"pk": it["pk"], "sk": it["sk"]},
			}); err != nil {
				a.log.Error("clear delete failed", zap.Error(err))
				return false
			}
		}
		if out.LastEvaluatedKey == nil {
			return true
		}
		start = out.LastEvaluatedKey
	}
}

func (a *Adapter) Info() adapter.Info {
	return adapter.Info{
		Kind:      a.kind,
		AdapterID: a.id,
		Connected: a.connected,
		Detail: map[string]any{
			"driver": "dynamodb",
			"table":  a.tableName,
			"index":  a.indexName,
		},
	}
}

func (a *Adapter) dispatch(req types.RequestID, objID types.ObjectID, work func(ctx context.Context) error) bool {
	if !a.connected {
		return false
	}
	return a.pool.Submit(concurrency.Task{
		ID: fmt.Sprintf("%s-%d", a.kind, req),
		Execute: func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, requestTimeout)
			defer cancel()
			return work(ctx)
		},
		Callback: func(_ string, err error) {
			if err != nil {
				a.EmitFailure(a.id, req, objID, a.classify(err))
			}
		},
	})
}

// classify logs a DynamoDB error with its service code and maps it to the
// completion taxonomy. Existence-precondition failures are refined to
// already-exists/not-found on the submit paths before this runs.
func (a *Adapter) classify(err error) types.FailureReason {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		a.log.Error("dynamodb call failed", zap.String("code", apiErr.ErrorCode()), zap.Error(err))
	} else {
		a.log.Error("dynamodb call failed", zap.Error(err))
	}
	return types.ReasonAdapterFailed
}

func isConditionalCheckFailed(err error) bool {
	var ccf *ddbtypes.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

func (a *Adapter) SubmitInsert(req types.RequestID, rec types.Record) bool {
	objID := rec.ObjectID()
	stored := rec.Clone()
	return a.dispatch(req, objID, func(ctx context.Context) error {
		w, err := records.ToWire(stored)
		if err != nil {
			return err
		}
		av, err := attributevalue.MarshalMap(item{PK: pkFor(a.kind), SK: skFor(objID), Wire: w})
		if err != nil {
			return err
		}
		cond := expression.AttributeNotExists(expression.Name("pk"))
		expr, err := expression.NewBuilder().WithCondition(cond).Build()
		if err != nil {
			return err
		}
		_, err = a.client.PutItem(ctx, &awsdynamodb.PutItemInput{
			TableName:                aws.String(a.tableName),
			Item:                     av,
			ConditionExpression:      expr.Condition(),
			ExpressionAttributeNames: expr.Names(),
		})
		if err != nil {
			if isConditionalCheckFailed(err) {
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
	return a.dispatch(req, objID, func(ctx context.Context) error {
		w, err := records.ToWire(stored)
		if err != nil {
			return err
		}
		av, err := attributevalue.MarshalMap(item{PK: pkFor(a.kind), SK: skFor(objID), Wire: w})
		if err != nil {
			return err
		}
		cond := expression.AttributeExists(expression.Name("pk"))
		expr, err := expression.NewBuilder().WithCondition(cond).Build()
		if err != nil {
			return err
		}
		_, err = a.client.PutItem(ctx, &awsdynamodb.PutItemInput{
			TableName:                aws.String(a.tableName),
			Item:                     av,
			ConditionExpression:      expr.Condition(),
			ExpressionAttributeNames: expr.Names(),
		})
		if err != nil {
			if isConditionalCheckFailed(err) {
				a.EmitFailure(a.id, req, objID, types.ReasonNotFound)
				return nil
			}
			return err
		}
		a.EmitSuccess(a.id, req, nil)
		return nil
	})
}

func (a *Adapter) SubmitDelete(req types.RequestID, objID types.ObjectID) bool {
	return a.dispatch(req, objID, func(ctx context.Context) error {
		cond := expression.AttributeExists(expression.Name("pk"))
		expr, err := expression.NewBuilder().WithCondition(cond).Build()
		if err != nil {
			return err
		}
		_, err = a.client.DeleteItem(ctx, &awsdynamodb.DeleteItemInput{
			TableName: aws.String(a.tableName),
			Key: map[string]ddbtypes.AttributeValue{
				"pk": &ddbtypes.AttributeValueMemberS{Value: pkFor(a.kind)},
				"sk": &ddbtypes.AttributeValueMemberS{Value: skFor(objID)},
			},
			ConditionExpression:      expr.Condition(),
			ExpressionAttributeNames: expr.Names(),
		})
		if err != nil {
			if isConditionalCheckFailed(err) {
				a.EmitFailure(a.id, req, objID, types.ReasonNotFound)
				return nil
			}
			return err
		}
		a.EmitSuccess(a.id, req, nil)
		return nil
	})
}

func (a *Adapter) SubmitRead(req types.RequestID, tag types.ConstraintTag, value any) bool {
	return a.dispatch(req, types.ZeroObjectID, func(ctx context.Context) error {
		switch tag {
		case types.ByID:
			id, ok := value.(types.ObjectID)
			if !ok {
				a.EmitFailure(a.id, req, types.ZeroObjectID, types.ReasonNotFound)
				return nil
			}
			return a.readByID(ctx, req, id)
		case types.ByOwner:
			owner, ok := value.(types.ObjectID)
			if !ok {
				a.EmitFailure(a.id, req, types.ZeroObjectID, types.ReasonNotFound)
				return nil
			}
			return a.queryByOwner(ctx, req, owner)
		case types.ByName:
			name, ok := value.(string)
			if !ok {
				a.EmitFailure(a.id, req, types.ZeroObjectID, types.ReasonNotFound)
				return nil
			}
			return a.queryBatch(ctx, req, expression.Name("name").Equal(expression.Value(name)))
		case types.All:
			return a.queryBatch(ctx, req, expression.ConditionBuilder{})
		default:
			a.EmitFailure(a.id, req, types.ZeroObjectID, types.ReasonNotFound)
			return nil
		}
	})
}

func (a *Adapter) readByID(ctx context.Context, req types.RequestID, id types.ObjectID) error {
	out, err := a.client.GetItem(ctx, &awsdynamodb.GetItemInput{
		TableName: aws.String(a.tableName),
		Key: map[string]ddbtypes.AttributeValue{
			"pk": &ddbtypes.AttributeValueMemberS{Value: pkFor(a.kind)},
			"sk": &ddbtypes.AttributeValueMemberS{Value: skFor(id)},
		},
	})
	if err != nil {
		return err
	}
	if out.Item == nil {
		a.EmitFailure(a.id, req, id, types.ReasonNotFound)
		return nil
	}
	var it item
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return err
	}
	rec, err := records.FromWire(it.Wire)
	if err != nil {
		return err
	}
	a.EmitSuccess(a.id, req, rec)
	return nil
}

// queryByOwner queries the owner GSI, filtered down to this kind, and
// emits the matches as a batch record.
func (a *Adapter) queryByOwner(ctx context.Context, req types.RequestID, owner types.ObjectID) error {
	keyCond := expression.Key("owner").Equal(expression.Value(owner.String()))
	filter := expression.Name("kind").Equal(expression.Value(string(a.kind)))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).WithFilter(filter).Build()
	if err != nil {
		return err
	}

	batch := &types.Batch{}
	var start map[string]ddbtypes.AttributeValue
	for {
		out, err := a.client.Query(ctx, &awsdynamodb.QueryInput{
			TableName:                 aws.String(a.tableName),
			IndexName:                 aws.String(a.indexName),
			KeyConditionExpression:    expr.KeyCondition(),
			FilterExpression:          expr.Filter(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ExclusiveStartKey:         start,
		})
		if err != nil {
			return err
		}
		var items []item
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
			return err
		}
		for _, it := range items {
			rec, err := records.FromWire(it.Wire)
			if err != nil {
				a.log.Warn("skipping unparsable row", zap.String("sk", it.SK), zap.Error(err))
				continue
			}
			batch.Items = append(batch.Items, rec)
		}
		if out.LastEvaluatedKey == nil {
			break
		}
		start = out.LastEvaluatedKey
	}
	a.EmitSuccess(a.id, req, batch)
	return nil
}

// queryBatch queries this kind's partition, applying filter when provided,
// and emits the matches as a batch record.
func (a *Adapter) queryBatch(ctx context.Context, req types.RequestID, filter expression.ConditionBuilder) error {
	keyCond := expression.Key("pk").Equal(expression.Value(pkFor(a.kind)))
	builder := expression.NewBuilder().WithKeyCondition(keyCond)
	if filter.IsSet() {
		builder = builder.WithFilter(filter)
	}
	expr, err := builder.Build()
	if err != nil {
		return err
	}

	batch := &types.Batch{}
	var start map[string]ddbtypes.AttributeValue
	for {
		out, err := a.client.Query(ctx, &awsdynamodb.QueryInput{
			TableName:                 aws.String(a.tableName),
			KeyConditionExpression:    expr.KeyCondition(),
			FilterExpression:          expr.Filter(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ExclusiveStartKey:         start,
		})
		if err != nil {
			return err
		}
		var items []item
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
			return err
		}
		for _, it := range items {
			rec, err := records.FromWire(it.Wire)
			if err != nil {
				a.log.Warn("skipping unparsable row", zap.String("sk", it.SK), zap.Error(err))
				continue
			}
			batch.Items = append(batch.Items, rec)
		}
		if out.LastEvaluatedKey == nil {
			break
		}
		start = out.LastEvaluatedKey
	}
	a.EmitSuccess(a.id, req, batch)
	return nil
}

var _ adapter.Adapter = (*Adapter)(nil)
