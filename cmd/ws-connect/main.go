// Package main implements the WebSocket $connect and $disconnect Lambda handler.
// A connection follows exactly one case the caller participates in.
package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/Skozial17/supportchat/application/ports"
	"github.com/Skozial17/supportchat/application/queries"
	"github.com/Skozial17/supportchat/infrastructure/config"
	"github.com/Skozial17/supportchat/infrastructure/di"
	"github.com/Skozial17/supportchat/infrastructure/identity"
	"github.com/Skozial17/supportchat/pkg/auth"
	pkgerrors "github.com/Skozial17/supportchat/pkg/errors"
)

var container *di.Container

func init() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	cfg.IsLambda = true

	container, err = di.InitializeContainer(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}

	log.Println("WebSocket connect handler initialized")
}

func handler(ctx context.Context, request events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	switch request.RequestContext.RouteKey {
	case "$disconnect":
		return disconnect(ctx, request)
	default:
		return connect(ctx, request)
	}
}

func connect(ctx context.Context, request events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	logger := container.Logger.With(zap.String("connectionID", request.RequestContext.ConnectionID))

	token := request.QueryStringParameters["token"]
	if token == "" {
		token = strings.TrimPrefix(headerValue(request.Headers, "Authorization"), "Bearer ")
	}
	if token == "" {
		return respond(http.StatusUnauthorized, "missing authentication token"), nil
	}

	claims, err := container.Tokens.ValidateToken(token)
	if err != nil {
		logger.Info("WebSocket authentication failed", zap.Error(err))
		return respond(http.StatusUnauthorized, "invalid token"), nil
	}

	caseID := request.QueryStringParameters["caseId"]
	if caseID == "" {
		return respond(http.StatusBadRequest, "caseId is required"), nil
	}

	userCtx := auth.SetUserInContext(ctx, auth.NewUserContext(claims))
	actor, err := identity.NewContextProvider().CurrentUser(userCtx)
	if err != nil {
		return respond(http.StatusForbidden, "unknown role"), nil
	}

	// Non-participants get the same not-found as a missing case.
	if _, err := container.QueryBus.Ask(ctx, queries.GetCaseQuery{CaseID: caseID, Actor: actor}); err != nil {
		status := pkgerrors.StatusFor(err)
		logger.Info("WebSocket case check failed",
			zap.String("caseID", caseID),
			zap.String("userID", actor.UserID),
			zap.Error(err),
		)
		return respond(status, http.StatusText(status)), nil
	}

	conn := ports.Connection{
		ConnectionID: request.RequestContext.ConnectionID,
		UserID:       actor.UserID,
		Role:         actor.Role,
		CaseID:       caseID,
		ConnectedAt:  time.Now().UTC(),
	}
	if err := container.Storage.Connections.Save(ctx, conn); err != nil {
		logger.Error("Failed to store connection", zap.Error(err))
		return respond(http.StatusInternalServerError, "internal server error"), nil
	}

	logger.Info("WebSocket connected",
		zap.String("caseID", caseID),
		zap.String("userID", actor.UserID),
	)

	body, _ := json.Marshal(map[string]interface{}{
		"type":         "connected",
		"connectionId": conn.ConnectionID,
		"caseId":       caseID,
		"timestamp":    conn.ConnectedAt.Unix(),
	})
	return events.APIGatewayProxyResponse{StatusCode: http.StatusOK, Body: string(body)}, nil
}

func disconnect(ctx context.Context, request events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	connectionID := request.RequestContext.ConnectionID
	if err := container.Storage.Connections.Delete(ctx, connectionID); err != nil {
		container.Logger.Warn("Failed to remove connection",
			zap.String("connectionID", connectionID),
			zap.Error(err),
		)
	}
	return events.APIGatewayProxyResponse{StatusCode: http.StatusOK}, nil
}

func headerValue(headers map[string]string, name string) string {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

func respond(status int, message string) events.APIGatewayProxyResponse {
	body, _ := json.Marshal(map[string]string{"error": message})
	return events.APIGatewayProxyResponse{StatusCode: status, Body: string(body)}
}

func main() {
	lambda.Start(handler)
}
