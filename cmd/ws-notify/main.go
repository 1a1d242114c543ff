// Command ws-notify is the Lambda behind the WebSocket fan-out: it
// consumes the completion events the service publishes to EventBridge and
// pushes each one to every connection registered in the connections table,
// cleaning up connections the gateway reports gone.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsapigw "github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi"
	apigwtypes "github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi/types"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

var (
	ddbClient   *awsdynamodb.Client
	apigwClient *awsapigw.Client

	connectionsTable string
)

func init() {
	connectionsTable = os.Getenv("CONNECTIONS_TABLE_NAME")
	endpoint := os.Getenv("WEBSOCKET_API_ENDPOINT")
	if connectionsTable == "" || endpoint == "" {
		log.Fatal("CONNECTIONS_TABLE_NAME and WEBSOCKET_API_ENDPOINT are required")
	}

	cfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		log.Fatalf("failed to load aws config: %v", err)
	}
	ddbClient = awsdynamodb.NewFromConfig(cfg)
	apigwClient = awsapigw.NewFromConfig(cfg, func(o *awsapigw.Options) {
		o.BaseEndpoint = aws.String(endpoint)
	})
}

func handler(ctx context.Context, event events.EventBridgeEvent) error {
	// The EventBridge detail is forwarded verbatim; clients parse it.
	var detail json.RawMessage
	if err := json.Unmarshal(event.Detail, &detail); err != nil {
		log.Printf("dropping event with unparsable detail: %v", err)
		return nil
	}

	out, err := ddbClient.Scan(ctx, &awsdynamodb.ScanInput{
		TableName:            aws.String(connectionsTable),
		ProjectionExpression: aws.String("connection_id"),
	})
	if err != nil {
		return err
	}

	for _, item := range out.Items {
		attr, ok := item["connection_id"].(*ddbtypes.AttributeValueMemberS)
		if !ok {
			continue
		}
		connID := attr.Value
		_, err := apigwClient.PostToConnection(ctx, &awsapigw.PostToConnectionInput{
			ConnectionId: aws.String(connID),
			Data:         detail,
		})
		if err == nil {
			continue
		}
		var gone *apigwtypes.GoneException
		if errors.As(err, &gone) {
			// Stale connection: remove it so the next event skips it.
			if _, delErr := ddbClient.DeleteItem(ctx, &awsdynamodb.DeleteItemInput{
				TableName: aws.String(connectionsTable),
				Key: map[string]ddbtypes.AttributeValue{
					"connection_id": &ddbtypes.AttributeValueMemberS{Value: connID},
				},
			}); delErr != nil {
				log.Printf("failed to delete stale connection %s: %v", connID, delErr)
			}
			continue
		}
		// One failed delivery never stops the rest.
		log.Printf("failed to deliver to %s: %v", connID, err)
	}
	return nil
}

func main() {
	lambda.Start(handler)
}
