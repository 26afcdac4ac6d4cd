package services

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/Skozial17/supportchat/application/ports"
	"github.com/Skozial17/supportchat/domain/core/entities"
)

// TranscriptSync follows a case's message feed and hands each message on
// exactly once, however often the store redelivers it.
type TranscriptSync struct {
	gateway ports.PersistenceGateway
	logger  *zap.Logger
}

// NewTranscriptSync creates a transcript follower
func NewTranscriptSync(gateway ports.PersistenceGateway, logger *zap.Logger) *TranscriptSync {
	return &TranscriptSync{gateway: gateway, logger: logger}
}

// Follow subscribes to caseID and calls emit for every message not already in
// seed or previously emitted. It returns when ctx is done, the stream ends or
// emit fails.
func (s *TranscriptSync) Follow(ctx context.Context, caseID string, seed []*entities.Message, emit func(*entities.Message) error) error {
	stream, err := s.gateway.Subscribe(ctx, caseID)
	if err != nil {
		return err
	}
	defer stream.Close()

	transcript := entities.NewTranscript(seed...)
	duplicates := 0
	defer func() {
		if duplicates > 0 {
			s.logger.Debug("Dropped redelivered messages",
				zap.String("caseID", caseID),
				zap.Int("count", duplicates),
			)
		}
	}()

	for {
		msg, err := stream.Next(ctx)
		if err != nil {
			if errors.Is(err, ports.ErrStreamClosed) {
				return nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return err
		}
		if !transcript.Merge(msg) {
			duplicates++
			continue
		}
		if err := emit(msg); err != nil {
			return err
		}
	}
}
