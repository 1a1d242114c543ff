// Command lambda runs the introspection/config API behind API Gateway: the
// chi router is wrapped by the Lambda proxy adapter, and the dependency
// container is built once at cold start and reused across invocations.
package main

import (
	"context"
	"log"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	chiadapter "github.com/awslabs/aws-lambda-go-api-proxy/chi"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"syncdal/internal/config"
	"syncdal/internal/di"
)

var (
	chiLambda *chiadapter.ChiLambdaV2
	container *di.Container

	coldStart     = true
	coldStartTime time.Time
)

func init() {
	coldStartTime = time.Now()
	log.Println("lambda cold start initiated")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	container, err = di.InitializeContainer(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to initialize container: %v", err)
	}

	chiRouter, ok := container.Handler.(*chi.Mux)
	if !ok {
		log.Fatal("handler is not a chi.Mux")
	}
	chiLambda = chiadapter.NewV2(chiRouter)
}

func handler(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	if coldStart {
		container.Logger.Info("cold start complete",
			zap.Duration("duration", time.Since(coldStartTime)),
		)
		coldStart = false
	}
	return chiLambda.ProxyWithContextV2(ctx, req)
}

func main() {
	lambda.Start(handler)
}
