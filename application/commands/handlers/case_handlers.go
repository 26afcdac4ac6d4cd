package handlers

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Skozial17/supportchat/application/commands"
	"github.com/Skozial17/supportchat/application/commands/bus"
	"github.com/Skozial17/supportchat/application/ports"
	"github.com/Skozial17/supportchat/application/services"
	"github.com/Skozial17/supportchat/domain/config"
	"github.com/Skozial17/supportchat/domain/core/aggregates"
	"github.com/Skozial17/supportchat/domain/core/valueobjects"
	"github.com/Skozial17/supportchat/domain/events"
	pkgerrors "github.com/Skozial17/supportchat/pkg/errors"
)

// CaseCommandHandler executes every command that mutates a case session.
// Writers of one case are serialized through the Locker.
type CaseCommandHandler struct {
	gateway    ports.PersistenceGateway
	cases      ports.CaseRepository
	flows      ports.FlowCatalog
	locker     ports.Locker
	eventStore ports.EventStore
	publisher  ports.EventPublisher
	cache      ports.Cache
	observer   ports.EventObserver
	limits     *config.DomainConfig
	logger     *zap.Logger
	now        func() time.Time
}

// NewCaseCommandHandler creates the case command handler. cache and observer may be nil.
func NewCaseCommandHandler(
	gateway ports.PersistenceGateway,
	cases ports.CaseRepository,
	flows ports.FlowCatalog,
	locker ports.Locker,
	eventStore ports.EventStore,
	publisher ports.EventPublisher,
	cache ports.Cache,
	observer ports.EventObserver,
	limits *config.DomainConfig,
	logger *zap.Logger,
) *CaseCommandHandler {
	if limits == nil {
		limits = config.DefaultDomainConfig()
	}
	return &CaseCommandHandler{
		gateway:    gateway,
		cases:      cases,
		flows:      flows,
		locker:     locker,
		eventStore: eventStore,
		publisher:  publisher,
		cache:      cache,
		observer:   observer,
		limits:     limits,
		logger:     logger,
		now:        time.Now,
	}
}

// Register binds every case command on the bus.
func (h *CaseCommandHandler) Register(b *bus.CommandBus) error {
	registrations := []struct {
		cmd bus.Command
		fn  bus.CommandHandlerFunc
	}{
		{commands.StartCaseCommand{}, func(ctx context.Context, c bus.Command) error {
			return h.HandleStart(ctx, c.(commands.StartCaseCommand))
		}},
		{commands.AdvanceCaseCommand{}, func(ctx context.Context, c bus.Command) error {
			return h.HandleAdvance(ctx, c.(commands.AdvanceCaseCommand))
		}},
		{commands.PostMessageCommand{}, func(ctx context.Context, c bus.Command) error {
			return h.HandlePostMessage(ctx, c.(commands.PostMessageCommand))
		}},
		{commands.CloseCaseCommand{}, func(ctx context.Context, c bus.Command) error {
			return h.HandleClose(ctx, c.(commands.CloseCaseCommand))
		}},
		{commands.ReopenCaseCommand{}, func(ctx context.Context, c bus.Command) error {
			return h.HandleReopen(ctx, c.(commands.ReopenCaseCommand))
		}},
		{commands.SetPriorityCommand{}, func(ctx context.Context, c bus.Command) error {
			return h.HandleSetPriority(ctx, c.(commands.SetPriorityCommand))
		}},
	}
	for _, r := range registrations {
		if err := b.Register(r.cmd, r.fn); err != nil {
			return err
		}
	}
	return nil
}

// HandleStart opens a session at the start step of the requested flow.
func (h *CaseCommandHandler) HandleStart(ctx context.Context, cmd commands.StartCaseCommand) error {
	caseID, err := valueobjects.NewCaseIDFromString(cmd.CaseID)
	if err != nil {
		return pkgerrors.NewValidationError(err.Error())
	}
	flow := cmd.Flow
	if flow == "" {
		flow = h.flows.DefaultFlow()
	}
	graph, err := h.flows.Graph(flow)
	if err != nil {
		return err
	}

	session, err := aggregates.StartCaseSession(caseID, graph, cmd.Actor, h.gateway,
		aggregates.WithSessionClock(h.now))
	if err != nil {
		return err
	}
	if err := h.commit(ctx, session); err != nil {
		return err
	}

	h.logger.Info("Case started",
		zap.String("caseID", caseID.String()),
		zap.String("driverID", cmd.Actor.UserID),
		zap.String("flow", flow),
	)
	return nil
}

// HandleAdvance applies one option or input. When finalization fails after
// the messages were stored, the session is still saved so the next advance
// retries finalization.
func (h *CaseCommandHandler) HandleAdvance(ctx context.Context, cmd commands.AdvanceCaseCommand) error {
	var action aggregates.Action
	if cmd.Input != nil {
		if len(*cmd.Input) > h.limits.MaxMessageLength {
			return pkgerrors.NewMessageTooLongError(h.limits.MaxMessageLength)
		}
		action = aggregates.SubmitText(*cmd.Input)
	} else {
		action = aggregates.ChooseOption(cmd.Option)
	}

	return h.withSession(ctx, cmd.CaseID, cmd.Actor, func(session *aggregates.CaseSession) error {
		if cmd.Actor.UserID != session.Driver().UserID {
			return pkgerrors.NewForbiddenError("advance another driver's case")
		}
		before := session.Version()
		produced, err := session.Advance(ctx, action)
		if err != nil && session.Version() == before {
			return err
		}
		if commitErr := h.commit(ctx, session); commitErr != nil {
			return commitErr
		}
		h.logger.Debug("Case advanced",
			zap.String("caseID", cmd.CaseID),
			zap.String("cursor", session.Cursor()),
			zap.Int("messages", len(produced)),
			zap.Bool("finalized", session.IsFinalized()),
		)
		return err
	})
}

// HandlePostMessage appends a direct message from the driver or an admin.
func (h *CaseCommandHandler) HandlePostMessage(ctx context.Context, cmd commands.PostMessageCommand) error {
	if len(cmd.Text) > h.limits.MaxMessageLength {
		return pkgerrors.NewMessageTooLongError(h.limits.MaxMessageLength)
	}
	return h.withSession(ctx, cmd.CaseID, cmd.Actor, func(session *aggregates.CaseSession) error {
		if _, err := session.PostMessage(ctx, cmd.Actor, cmd.Text, cmd.Attachment); err != nil {
			return err
		}
		return h.commit(ctx, session)
	})
}

// HandleClose closes the case with an optional reason.
func (h *CaseCommandHandler) HandleClose(ctx context.Context, cmd commands.CloseCaseCommand) error {
	return h.withSession(ctx, cmd.CaseID, cmd.Actor, func(session *aggregates.CaseSession) error {
		if err := session.Close(ctx, cmd.Reason, cmd.Actor); err != nil {
			return err
		}
		return h.commit(ctx, session)
	})
}

// HandleReopen reopens a closed case.
func (h *CaseCommandHandler) HandleReopen(ctx context.Context, cmd commands.ReopenCaseCommand) error {
	return h.withSession(ctx, cmd.CaseID, cmd.Actor, func(session *aggregates.CaseSession) error {
		if err := session.Reopen(ctx, cmd.Actor); err != nil {
			return err
		}
		return h.commit(ctx, session)
	})
}

// HandleSetPriority changes the case priority.
func (h *CaseCommandHandler) HandleSetPriority(ctx context.Context, cmd commands.SetPriorityCommand) error {
	priority, err := valueobjects.ParsePriority(cmd.Priority)
	if err != nil {
		return pkgerrors.NewValidationError(err.Error())
	}
	return h.withSession(ctx, cmd.CaseID, cmd.Actor, func(session *aggregates.CaseSession) error {
		session.SetPriority(priority)
		return h.commit(ctx, session)
	})
}

// withSession locks the case, rehydrates it and checks the actor takes part in it.
func (h *CaseCommandHandler) withSession(ctx context.Context, caseID string, actor valueobjects.Identity, fn func(*aggregates.CaseSession) error) error {
	if h.locker != nil {
		lock, err := h.locker.Acquire(ctx, "CASE#"+caseID, uuid.New().String(), h.limits.CaseLockTTL, h.limits.CaseLockWait)
		if err != nil {
			return err
		}
		defer func() {
			if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
				h.logger.Warn("Failed to release case lock", zap.String("caseID", caseID), zap.Error(err))
			}
		}()
	}

	session, err := services.LoadSession(ctx, h.cases, h.flows, h.gateway, caseID, aggregates.WithSessionClock(h.now))
	if err != nil {
		return err
	}
	if !session.IsParticipant(actor) {
		return pkgerrors.NewForbiddenError("access this case")
	}
	return fn(session)
}

// commit saves the snapshot, then records and publishes the session's events.
// Event publication is best effort once the snapshot is stored.
func (h *CaseCommandHandler) commit(ctx context.Context, session *aggregates.CaseSession) error {
	if err := h.cases.Save(ctx, session.Snapshot()); err != nil {
		return err
	}
	pending := session.GetUncommittedEvents()
	session.MarkEventsAsCommitted()

	if h.cache != nil {
		if err := h.cache.DeletePrefix(ctx, ports.CaseCacheKeyPrefix(session.ID().String())); err != nil {
			h.logger.Warn("Failed to invalidate case cache", zap.String("caseID", session.ID().String()), zap.Error(err))
		}
	}
	h.dispatch(ctx, session.ID().String(), pending)
	return nil
}

func (h *CaseCommandHandler) dispatch(ctx context.Context, aggregateID string, pending []events.DomainEvent) {
	dispatchEvents(ctx, h.eventStore, h.publisher, h.observer, h.logger, aggregateID, pending)
}

func dispatchEvents(ctx context.Context, store ports.EventStore, publisher ports.EventPublisher, observer ports.EventObserver, logger *zap.Logger, aggregateID string, pending []events.DomainEvent) {
	if len(pending) == 0 {
		return
	}
	if store != nil {
		if err := store.SaveEvents(ctx, pending); err != nil {
			logger.Error("Failed to save events",
				zap.String("aggregateID", aggregateID),
				zap.Int("count", len(pending)),
				zap.Error(err),
			)
		}
	}
	if publisher != nil {
		if err := publisher.PublishBatch(ctx, pending); err != nil {
			logger.Error("Failed to publish events",
				zap.String("aggregateID", aggregateID),
				zap.Int("count", len(pending)),
				zap.Error(err),
			)
		}
	}
	if observer != nil {
		observer.ObserveEvents(pending)
	}
}
