// Package main implements the WebSocket message broadcasting Lambda.
// It consumes message.appended events from EventBridge and pushes each
// message to the connections following its case.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi"
	"go.uber.org/zap"

	domainevents "github.com/Skozial17/supportchat/domain/events"
	"github.com/Skozial17/supportchat/infrastructure/config"
	"github.com/Skozial17/supportchat/infrastructure/di"
	"github.com/Skozial17/supportchat/infrastructure/realtime"
)

var (
	container   *di.Container
	broadcaster *realtime.Broadcaster
)

func init() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	cfg.IsLambda = true
	if cfg.WebSocketEndpoint == "" {
		log.Fatal("WEBSOCKET_ENDPOINT is required")
	}

	container, err = di.InitializeContainer(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}

	client := apigatewaymanagementapi.NewFromConfig(container.AWS, func(o *apigatewaymanagementapi.Options) {
		o.BaseEndpoint = aws.String(managementEndpoint(cfg.WebSocketEndpoint))
	})
	broadcaster = realtime.NewBroadcaster(client, container.Storage.Connections, container.Logger)

	log.Println("WebSocket send-message handler initialized")
}

// managementEndpoint turns a wss:// or bare domain/stage endpoint into the
// https URL the management API expects.
func managementEndpoint(endpoint string) string {
	endpoint = strings.TrimPrefix(endpoint, "wss://")
	if !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + endpoint
	}
	return strings.TrimSuffix(endpoint, "/")
}

func handler(ctx context.Context, event events.CloudWatchEvent) error {
	if event.DetailType != domainevents.TypeMessageAppended {
		container.Logger.Debug("Ignoring event", zap.String("detailType", event.DetailType))
		return nil
	}

	var msg domainevents.MessageAppended
	if err := json.Unmarshal(event.Detail, &msg); err != nil {
		// Malformed events would fail forever on retry.
		container.Logger.Error("Failed to decode message event",
			zap.String("eventID", event.ID),
			zap.Error(err),
		)
		return nil
	}

	if err := broadcaster.BroadcastMessage(ctx, msg); err != nil {
		return fmt.Errorf("broadcast for case %s: %w", msg.CaseID, err)
	}
	return nil
}

func main() {
	lambda.Start(handler)
}
