package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/m3rciful/pestbot/core/logger"
	"github.com/m3rciful/pestbot/internal/domain"
)

const minCredentialLength = 6

// TechnicianStore is the persistence used by Technicians.
type TechnicianStore interface {
	CreateTechnician(ctx context.Context, t *domain.Technician) error
	TechnicianByCredential(ctx context.Context, credential string) (domain.Technician, error)
	TechnicianByChat(ctx context.Context, chatID int64) (domain.Technician, error)
	BindEndpoint(ctx context.Context, technicianID, chatID int64) error
	ListTechnicians(ctx context.Context) ([]domain.Technician, error)
	CurrentLoad(ctx context.Context, technicianID int64) (int, error)
}

// Technicians is the technician directory.
type Technicians struct {
	store TechnicianStore
}

// NewTechnicians builds the directory service.
func NewTechnicians(store TechnicianStore) *Technicians {
	return &Technicians{store: store}
}

// Register adds a technician. An empty credential is generated.
func (s *Technicians) Register(ctx context.Context, name, contact, credential string) (domain.Technician, error) {
	t := domain.Technician{
		Name:       strings.TrimSpace(name),
		Contact:    strings.TrimSpace(contact),
		Credential: strings.TrimSpace(credential),
	}
	if t.Name == "" {
		return domain.Technician{}, &domain.ValidationError{Field: "name", Reason: "empty"}
	}
	if t.Contact == "" {
		return domain.Technician{}, &domain.ValidationError{Field: "contact", Reason: "empty"}
	}
	if t.Credential == "" {
		t.Credential = strings.ReplaceAll(uuid.NewString(), "-", "")
	} else if utf8.RuneCountInString(t.Credential) < minCredentialLength || strings.ContainsAny(t.Credential, " \t\n") {
		return domain.Technician{}, &domain.ValidationError{Field: "credential", Reason: "at least 6 characters without spaces"}
	}

	if err := s.store.CreateTechnician(ctx, &t); err != nil {
		logger.SVCTechnicians.WarnContext(ctx, "technician not registered",
			slog.String("event", "technician.register"),
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return domain.Technician{}, err
	}
	logger.SVCTechnicians.InfoContext(ctx, "technician registered",
		slog.String("event", "technician.register"),
		slog.String("status", "ok"),
		slog.Int64("technician_id", t.ID),
	)
	return t, nil
}

// LookupByCredential resolves a technician from its credential.
func (s *Technicians) LookupByCredential(ctx context.Context, credential string) (domain.Technician, error) {
	return s.store.TechnicianByCredential(ctx, strings.TrimSpace(credential))
}

// ByChat resolves the technician bound to chatID.
func (s *Technicians) ByChat(ctx context.Context, chatID int64) (domain.Technician, error) {
	return s.store.TechnicianByChat(ctx, chatID)
}

// BindEndpoint resolves credential and binds chatID to that technician,
// replacing any earlier binding.
func (s *Technicians) BindEndpoint(ctx context.Context, credential string, chatID int64) (domain.Technician, error) {
	t, err := s.LookupByCredential(ctx, credential)
	if err != nil {
		return domain.Technician{}, err
	}
	if err := s.store.BindEndpoint(ctx, t.ID, chatID); err != nil {
		return domain.Technician{}, err
	}
	t.ChatID = &chatID
	logger.SVCTechnicians.InfoContext(ctx, "technician endpoint bound",
		slog.String("event", "technician.bind"),
		slog.String("status", "ok"),
		slog.Int64("technician_id", t.ID),
		slog.Int64("chat_id", chatID),
	)
	return t, nil
}

// CurrentLoad returns the number of active orders of a technician.
func (s *Technicians) CurrentLoad(ctx context.Context, technicianID int64) (int, error) {
	return s.store.CurrentLoad(ctx, technicianID)
}

// List returns all technicians in registration order.
func (s *Technicians) List(ctx context.Context) ([]domain.Technician, error) {
	return s.store.ListTechnicians(ctx)
}

// SeedTechnician describes a technician created at startup.
type SeedTechnician struct {
	Name       string
	Contact    string
	Credential string
}

// Seed registers every technician whose credential is unknown. It returns the
// number of technicians created.
func (s *Technicians) Seed(ctx context.Context, seeds []SeedTechnician) (int, error) {
	created := 0
	for _, seed := range seeds {
		if _, err := s.store.TechnicianByCredential(ctx, seed.Credential); err == nil {
			continue
		} else if !errors.Is(err, domain.ErrNotFound) {
			return created, err
		}
		if _, err := s.Register(ctx, seed.Name, seed.Contact, seed.Credential); err != nil {
			if errors.Is(err, domain.ErrDuplicateContact) {
				logger.SEED.WarnContext(ctx, "seed skipped",
					slog.String("event", "seed.technician"),
					slog.String("status", "skip"),
					slog.String("cause", "contact taken"),
				)
				continue
			}
			return created, err
		}
		created++
	}
	return created, nil
}
