// Package service coordinates the stores, the assignment policy and
// notification dispatch behind the bots, the admin API and the CLI.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/m3rciful/pestbot/core/logger"
	"github.com/m3rciful/pestbot/internal/domain"
	"github.com/m3rciful/pestbot/internal/intake"
)

// OrderStore is the persistence used by Orders.
type OrderStore interface {
	CreateClient(ctx context.Context, c *domain.Client) error
	CreateAssignedOrder(ctx context.Context, o *domain.Order) (domain.Technician, error)
	Accept(ctx context.Context, code string, technicianID int64) error
	Decline(ctx context.Context, code string, technicianID int64) error
	SavePricing(ctx context.Context, code string, technicianID int64, p domain.Pricing) error
	Complete(ctx context.Context, code string, technicianID int64, finalPrice float64) error
	OrderByCode(ctx context.Context, code string) (domain.OrderView, error)
	ListOrders(ctx context.Context, f domain.OrderFilter) ([]domain.OrderView, error)
	Stats(ctx context.Context) ([]domain.TechnicianStats, error)
}

// Notifier delivers order events to the parties involved.
type Notifier interface {
	OrderAssigned(ctx context.Context, tech domain.Technician, order domain.OrderView) error
	StatusChanged(ctx context.Context, order domain.OrderView) error
	OrderDeclined(ctx context.Context, order domain.OrderView) error
}

// Orders runs the order lifecycle.
type Orders struct {
	store  OrderStore
	notify Notifier
}

// NewOrders builds the order service. notify may be nil.
func NewOrders(store OrderStore, notify Notifier) *Orders {
	return &Orders{store: store, notify: notify}
}

// SubmitResult reports what Submit persisted. ClientID is set as soon as the
// client record exists, even when the order write failed afterwards.
type SubmitResult struct {
	ClientID   int64
	Order      domain.OrderView
	Technician domain.Technician
	Notified   bool
}

// Submit persists a completed intake form: the client first, then the order
// assigned to the least-loaded technician, then notifies that technician.
// A non-zero sub.ClientID is reused instead of creating another client.
func (s *Orders) Submit(ctx context.Context, sub intake.Submission, chatID int64) (SubmitResult, error) {
	start := time.Now()
	res := SubmitResult{ClientID: sub.ClientID}

	client := domain.Client{ID: sub.ClientID, Name: sub.Name, Phone: sub.Phone, Address: sub.Address}
	if chatID != 0 {
		client.ChatID = &chatID
	}
	if res.ClientID == 0 {
		if err := s.store.CreateClient(ctx, &client); err != nil {
			logger.SVCIntake.ErrorContext(ctx, "client write failed",
				slog.String("event", "intake.client"),
				slog.String("status", "fail"),
				slog.String("err", err.Error()),
			)
			return res, err
		}
		res.ClientID = client.ID
	}

	order := domain.Order{
		ClientID:       res.ClientID,
		ObjectType:     sub.ObjectType,
		InsectQuantity: sub.InsectQuantity,
		HasExperience:  sub.HasExperience,
	}
	tech, err := s.store.CreateAssignedOrder(ctx, &order)
	if err != nil {
		level := slog.LevelError
		if errors.Is(err, domain.ErrNoTechnicianAvailable) {
			level = slog.LevelWarn
		}
		logger.SVCIntake.Log(ctx, level, "order write failed",
			slog.String("event", "intake.order"),
			slog.String("status", "fail"),
			slog.Int64("client_id", res.ClientID),
			slog.String("err", err.Error()),
		)
		return res, err
	}

	res.Technician = tech
	res.Order = domain.OrderView{
		Order:          order,
		ClientName:     client.Name,
		ClientPhone:    client.Phone,
		ClientAddress:  client.Address,
		ClientChatID:   client.ChatID,
		TechnicianName: &tech.Name,
	}
	logger.SVCIntake.InfoContext(ctx, "order created",
		slog.String("event", "intake.order"),
		slog.String("status", "ok"),
		slog.String("order", order.Code),
		slog.Int64("client_id", res.ClientID),
		slog.Int64("technician_id", tech.ID),
		slog.Duration("duration", time.Since(start)),
	)

	if s.notify != nil {
		if err := s.notify.OrderAssigned(ctx, tech, res.Order); err != nil {
			logger.SVCIntake.WarnContext(ctx, "technician not notified",
				slog.String("event", "notify.fail"),
				slog.String("order", order.Code),
				slog.Int64("technician_id", tech.ID),
				slog.String("err", err.Error()),
			)
		} else {
			res.Notified = true
		}
	}
	return res, nil
}

// Accept moves the order to in_progress and tells the client.
func (s *Orders) Accept(ctx context.Context, code string, technicianID int64) (domain.OrderView, error) {
	if err := s.store.Accept(ctx, code, technicianID); err != nil {
		s.logTransition(ctx, "accept", code, technicianID, err)
		return domain.OrderView{}, err
	}
	s.logTransition(ctx, "accept", code, technicianID, nil)
	return s.reload(ctx, code, s.statusChanged)
}

// Decline marks the order declined. It is not reassigned.
func (s *Orders) Decline(ctx context.Context, code string, technicianID int64) (domain.OrderView, error) {
	if err := s.store.Decline(ctx, code, technicianID); err != nil {
		s.logTransition(ctx, "decline", code, technicianID, err)
		return domain.OrderView{}, err
	}
	s.logTransition(ctx, "decline", code, technicianID, nil)
	return s.reload(ctx, code, func(ctx context.Context, v domain.OrderView) error {
		return s.notify.OrderDeclined(ctx, v)
	})
}

// SavePricing stores the technician's report on an accepted order.
func (s *Orders) SavePricing(ctx context.Context, code string, technicianID int64, p domain.Pricing) error {
	err := s.store.SavePricing(ctx, code, technicianID, p)
	s.logTransition(ctx, "pricing", code, technicianID, err)
	return err
}

// Complete closes an order in progress with its final price and tells the
// client. technicianID 0 is used by administrators.
func (s *Orders) Complete(ctx context.Context, code string, technicianID int64, finalPrice float64) (domain.OrderView, error) {
	if finalPrice <= 0 {
		return domain.OrderView{}, &domain.ValidationError{Field: "final_price", Reason: "must be positive"}
	}
	if err := s.store.Complete(ctx, code, technicianID, finalPrice); err != nil {
		s.logTransition(ctx, "complete", code, technicianID, err)
		return domain.OrderView{}, err
	}
	s.logTransition(ctx, "complete", code, technicianID, nil)
	return s.reload(ctx, code, s.statusChanged)
}

// Order returns a single order.
func (s *Orders) Order(ctx context.Context, code string) (domain.OrderView, error) {
	return s.store.OrderByCode(ctx, code)
}

// List returns orders matching f.
func (s *Orders) List(ctx context.Context, f domain.OrderFilter) ([]domain.OrderView, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, &domain.ValidationError{Field: "status", Reason: "unknown status " + string(f.Status)}
	}
	return s.store.ListOrders(ctx, f)
}

// Stats returns per-technician order counts.
func (s *Orders) Stats(ctx context.Context) ([]domain.TechnicianStats, error) {
	return s.store.Stats(ctx)
}

func (s *Orders) statusChanged(ctx context.Context, v domain.OrderView) error {
	return s.notify.StatusChanged(ctx, v)
}

// reload fetches the updated order and hands it to send. A failed send is
// logged only: the transition is already committed.
func (s *Orders) reload(ctx context.Context, code string, send func(context.Context, domain.OrderView) error) (domain.OrderView, error) {
	v, err := s.store.OrderByCode(ctx, code)
	if err != nil {
		return domain.OrderView{}, err
	}
	if s.notify == nil {
		return v, nil
	}
	if err := send(ctx, v); err != nil && !errors.Is(err, domain.ErrEndpointUnbound) {
		logger.SVCOrders.WarnContext(ctx, "status notification failed",
			slog.String("event", "notify.fail"),
			slog.String("order", code),
			slog.String("err", err.Error()),
		)
	}
	return v, nil
}

func (s *Orders) logTransition(ctx context.Context, op, code string, technicianID int64, err error) {
	if err != nil {
		logger.SVCOrders.WarnContext(ctx, "order transition rejected",
			slog.String("event", "order."+op),
			slog.String("status", "fail"),
			slog.String("order", code),
			slog.Int64("technician_id", technicianID),
			slog.String("err", err.Error()),
		)
		return
	}
	logger.SVCOrders.InfoContext(ctx, "order transition",
		slog.String("event", "order."+op),
		slog.String("status", "ok"),
		slog.String("order", code),
		slog.Int64("technician_id", technicianID),
	)
}
