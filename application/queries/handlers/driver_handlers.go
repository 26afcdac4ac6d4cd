package handlers

import (
	"context"

	"github.com/Skozial17/supportchat/application/ports"
	"github.com/Skozial17/supportchat/application/queries"
	"github.com/Skozial17/supportchat/application/queries/bus"
	"github.com/Skozial17/supportchat/domain/config"
	"github.com/Skozial17/supportchat/domain/core/entities"
	pkgerrors "github.com/Skozial17/supportchat/pkg/errors"
)

// DriverQueryHandler serves driver registration reads
type DriverQueryHandler struct {
	drivers ports.DriverRepository
	limits  *config.DomainConfig
}

// NewDriverQueryHandler creates a driver query handler
func NewDriverQueryHandler(drivers ports.DriverRepository, limits *config.DomainConfig) *DriverQueryHandler {
	if limits == nil {
		limits = config.DefaultDomainConfig()
	}
	return &DriverQueryHandler{drivers: drivers, limits: limits}
}

// Register binds the driver queries on the bus
func (h *DriverQueryHandler) Register(b *bus.QueryBus) error {
	if err := b.Register(queries.ListPendingDriversQuery{}, bus.QueryHandlerFunc(func(ctx context.Context, q bus.Query) (interface{}, error) {
		return h.HandleListPending(ctx, q.(queries.ListPendingDriversQuery))
	})); err != nil {
		return err
	}
	return b.Register(queries.GetDriverStatusQuery{}, bus.QueryHandlerFunc(func(ctx context.Context, q bus.Query) (interface{}, error) {
		return h.HandleGetStatus(ctx, q.(queries.GetDriverStatusQuery))
	}))
}

func (h *DriverQueryHandler) HandleListPending(ctx context.Context, q queries.ListPendingDriversQuery) (*queries.DriverListResult, error) {
	limit := q.Limit
	if limit == 0 || limit > h.limits.MaxPageSize {
		limit = h.limits.MaxPageSize
	}
	drivers, err := h.drivers.ListByStatus(ctx, entities.DriverStatusPending, limit)
	if err != nil {
		return nil, err
	}
	result := &queries.DriverListResult{Drivers: make([]queries.DriverView, 0, len(drivers))}
	for _, d := range drivers {
		result.Drivers = append(result.Drivers, queries.DriverView{
			ID:         d.ID(),
			Name:       d.Name(),
			Email:      d.Email(),
			Phone:      d.Phone(),
			Company:    d.Company(),
			Status:     string(d.Status()),
			CreatedAt:  d.CreatedAt(),
			ReviewedAt: d.ReviewedAt(),
		})
	}
	return result, nil
}

// HandleGetStatus looks the registration up by id, then by email. A missing
// registration is reported as unknown rather than as an error.
func (h *DriverQueryHandler) HandleGetStatus(ctx context.Context, q queries.GetDriverStatusQuery) (*queries.DriverStatusResult, error) {
	var (
		driver *entities.Driver
		err    error
	)
	if q.DriverID != "" {
		driver, err = h.drivers.GetByID(ctx, q.DriverID)
	}
	if driver == nil && q.Email != "" && (err == nil || pkgerrors.IsNotFound(err)) {
		driver, err = h.drivers.GetByEmail(ctx, q.Email)
	}
	if err != nil && !pkgerrors.IsNotFound(err) {
		return nil, err
	}
	if driver == nil {
		return &queries.DriverStatusResult{Status: "unknown"}, nil
	}
	return &queries.DriverStatusResult{Status: driver.PublicStatus()}, nil
}
