package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi"
	apigwtypes "github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi/types"
	"go.uber.org/zap"

	"github.com/Skozial17/supportchat/application/ports"
	"github.com/Skozial17/supportchat/domain/core/entities"
	"github.com/Skozial17/supportchat/domain/core/valueobjects"
	"github.com/Skozial17/supportchat/domain/events"
)

// ConnectionAPI is the part of the API Gateway management client used to push.
type ConnectionAPI interface {
	PostToConnection(ctx context.Context, params *apigatewaymanagementapi.PostToConnectionInput, optFns ...func(*apigatewaymanagementapi.Options)) (*apigatewaymanagementapi.PostToConnectionOutput, error)
}

// Broadcaster pushes appended messages to API Gateway WebSocket connections
// registered for the case. Gone connections are removed.
type Broadcaster struct {
	client      ConnectionAPI
	connections ports.ConnectionRepository
	logger      *zap.Logger
}

// NewBroadcaster creates a broadcaster over the API Gateway management API
func NewBroadcaster(client ConnectionAPI, connections ports.ConnectionRepository, logger *zap.Logger) *Broadcaster {
	return &Broadcaster{client: client, connections: connections, logger: logger}
}

// BroadcastMessage sends the appended message to every follower of its case.
func (b *Broadcaster) BroadcastMessage(ctx context.Context, evt events.MessageAppended) error {
	sender := evt.Sender
	msg, err := entities.ReconstructMessage(evt.MessageID, evt.Text, sender, evt.SenderID, evt.GetTimestamp(), "")
	if err != nil {
		return fmt.Errorf("invalid message event: %w", err)
	}
	data, err := json.Marshal(Frame{Type: "message", Timestamp: time.Now().Unix(), Data: msg})
	if err != nil {
		return fmt.Errorf("failed to marshal frame: %w", err)
	}

	conns, err := b.connections.ListByCase(ctx, evt.CaseID.String())
	if err != nil {
		return err
	}

	sent, failed := 0, 0
	for _, conn := range conns {
		if !canFollow(conn, evt) {
			continue
		}
		if err := b.post(ctx, conn.ConnectionID, data); err != nil {
			b.logger.Warn("Failed to push message",
				zap.String("connectionID", conn.ConnectionID),
				zap.Error(err),
			)
			failed++
			continue
		}
		sent++
	}

	b.logger.Debug("Broadcast complete",
		zap.String("caseID", evt.CaseID.String()),
		zap.Int("sent", sent),
		zap.Int("failed", failed),
	)
	if failed > 0 && sent == 0 {
		return errors.New("all message pushes failed")
	}
	return nil
}

// canFollow keeps a driver's connection from following someone else's case
// if a stale registration points there.
func canFollow(conn ports.Connection, evt events.MessageAppended) bool {
	return conn.UserID == "" || conn.UserID == evt.DriverID || conn.Role == valueobjects.RoleAdmin
}

func (b *Broadcaster) post(ctx context.Context, connectionID string, data []byte) error {
	_, err := b.client.PostToConnection(ctx, &apigatewaymanagementapi.PostToConnectionInput{
		ConnectionId: aws.String(connectionID),
		Data:         data,
	})
	if err == nil {
		return nil
	}
	var gone *apigwtypes.GoneException
	if errors.As(err, &gone) {
		b.logger.Info("Removing stale connection", zap.String("connectionID", connectionID))
		if delErr := b.connections.Delete(ctx, connectionID); delErr != nil {
			b.logger.Warn("Failed to remove stale connection", zap.Error(delErr))
		}
		return nil
	}
	return err
}
