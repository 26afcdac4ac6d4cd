package handlers

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Skozial17/supportchat/application/commands"
	"github.com/Skozial17/supportchat/application/commands/bus"
	"github.com/Skozial17/supportchat/application/ports"
	"github.com/Skozial17/supportchat/domain/core/entities"
	pkgerrors "github.com/Skozial17/supportchat/pkg/errors"
)

// DriverCommandHandler handles driver signup and its admin review.
type DriverCommandHandler struct {
	drivers    ports.DriverRepository
	eventStore ports.EventStore
	publisher  ports.EventPublisher
	logger     *zap.Logger
	now        func() time.Time
}

// NewDriverCommandHandler creates the driver command handler
func NewDriverCommandHandler(
	drivers ports.DriverRepository,
	eventStore ports.EventStore,
	publisher ports.EventPublisher,
	logger *zap.Logger,
) *DriverCommandHandler {
	return &DriverCommandHandler{
		drivers:    drivers,
		eventStore: eventStore,
		publisher:  publisher,
		logger:     logger,
		now:        time.Now,
	}
}

// Register binds the driver commands on the bus.
func (h *DriverCommandHandler) Register(b *bus.CommandBus) error {
	if err := b.Register(commands.RegisterDriverCommand{}, bus.CommandHandlerFunc(func(ctx context.Context, c bus.Command) error {
		return h.HandleRegister(ctx, c.(commands.RegisterDriverCommand))
	})); err != nil {
		return err
	}
	if err := b.Register(commands.ApproveDriverCommand{}, bus.CommandHandlerFunc(func(ctx context.Context, c bus.Command) error {
		return h.HandleApprove(ctx, c.(commands.ApproveDriverCommand))
	})); err != nil {
		return err
	}
	return b.Register(commands.RejectDriverCommand{}, bus.CommandHandlerFunc(func(ctx context.Context, c bus.Command) error {
		return h.HandleReject(ctx, c.(commands.RejectDriverCommand))
	}))
}

// HandleRegister stores a pending registration. An email can register once.
func (h *DriverCommandHandler) HandleRegister(ctx context.Context, cmd commands.RegisterDriverCommand) error {
	existing, err := h.drivers.GetByEmail(ctx, cmd.Email)
	if err != nil && !pkgerrors.IsNotFound(err) {
		return err
	}
	if existing != nil {
		return pkgerrors.ErrDriverAlreadyRegistered
	}

	driver, err := entities.NewDriverRegistration(cmd.DriverID, cmd.Name, cmd.Email, cmd.Phone, cmd.Company, h.now())
	if err != nil {
		return err
	}
	if err := h.drivers.Save(ctx, driver); err != nil {
		return err
	}
	h.flush(ctx, driver)

	h.logger.Info("Driver registered",
		zap.String("driverID", driver.ID()),
		zap.String("company", driver.Company()),
	)
	return nil
}

// HandleApprove activates a pending registration.
func (h *DriverCommandHandler) HandleApprove(ctx context.Context, cmd commands.ApproveDriverCommand) error {
	driver, err := h.drivers.GetByID(ctx, cmd.DriverID)
	if err != nil {
		return err
	}
	if err := driver.Approve(cmd.Actor.UserID, h.now()); err != nil {
		return err
	}
	if err := h.drivers.Save(ctx, driver); err != nil {
		return err
	}
	h.flush(ctx, driver)
	return nil
}

// HandleReject declines a pending registration.
func (h *DriverCommandHandler) HandleReject(ctx context.Context, cmd commands.RejectDriverCommand) error {
	driver, err := h.drivers.GetByID(ctx, cmd.DriverID)
	if err != nil {
		return err
	}
	if err := driver.Reject(cmd.Actor.UserID, cmd.Reason, h.now()); err != nil {
		return err
	}
	if err := h.drivers.Save(ctx, driver); err != nil {
		return err
	}
	h.flush(ctx, driver)
	return nil
}

func (h *DriverCommandHandler) flush(ctx context.Context, driver *entities.Driver) {
	pending := driver.GetUncommittedEvents()
	driver.MarkEventsAsCommitted()
	dispatchEvents(ctx, h.eventStore, h.publisher, nil, h.logger, driver.ID(), pending)
}
