package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/pestbot/internal/domain"
)

const technicianColumns = `id, name, contact, credential, chat_id, created_at`

// CreateTechnician inserts t and sets its ID and CreatedAt.
func (s *Store) CreateTechnician(ctx context.Context, t *domain.Technician) error {
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		var n int
		if err := tx.GetContext(ctx, &n, tx.Rebind(`SELECT COUNT(*) FROM technicians WHERE credential = ?`), t.Credential); err != nil {
			return err
		}
		if n > 0 {
			return domain.ErrDuplicateCredential
		}
		if err := tx.GetContext(ctx, &n, tx.Rebind(`SELECT COUNT(*) FROM technicians WHERE contact = ?`), t.Contact); err != nil {
			return err
		}
		if n > 0 {
			return domain.ErrDuplicateContact
		}

		t.CreatedAt = s.now()
		id, err := insertID(ctx, tx, tx.Rebind(
			`INSERT INTO technicians (name, contact, credential, chat_id, created_at)
			 VALUES (?, ?, ?, ?, ?) RETURNING id`),
			t.Name, t.Contact, t.Credential, t.ChatID, t.CreatedAt)
		if err != nil {
			if col, ok := uniqueViolation(err); ok {
				if strings.Contains(col, "credential") {
					return domain.ErrDuplicateCredential
				}
				return domain.ErrDuplicateContact
			}
			return err
		}
		t.ID = id
		return nil
	})
	return domain.WriteFailure("create technician", err)
}

// TechnicianByID returns the technician with id.
func (s *Store) TechnicianByID(ctx context.Context, id int64) (domain.Technician, error) {
	return s.technicianWhere(ctx, "id = ?", id)
}

// TechnicianByCredential resolves a technician from the token presented at session start.
func (s *Store) TechnicianByCredential(ctx context.Context, credential string) (domain.Technician, error) {
	return s.technicianWhere(ctx, "credential = ?", credential)
}

// TechnicianByChat resolves the technician bound to chatID.
func (s *Store) TechnicianByChat(ctx context.Context, chatID int64) (domain.Technician, error) {
	return s.technicianWhere(ctx, "chat_id = ?", chatID)
}

func (s *Store) technicianWhere(ctx context.Context, cond string, arg any) (domain.Technician, error) {
	var t domain.Technician
	q := s.db.Rebind(`SELECT ` + technicianColumns + ` FROM technicians WHERE ` + cond)
	if err := s.db.GetContext(ctx, &t, q, arg); err != nil {
		return domain.Technician{}, notFound(err)
	}
	return t, nil
}

// BindEndpoint records chatID as the technician's endpoint. A chat belongs to
// at most one technician, so a previous holder is unbound.
func (s *Store) BindEndpoint(ctx context.Context, technicianID, chatID int64) error {
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, tx.Rebind(
			`UPDATE technicians SET chat_id = NULL WHERE chat_id = ? AND id <> ?`), chatID, technicianID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, tx.Rebind(
			`UPDATE technicians SET chat_id = ? WHERE id = ?`), chatID, technicianID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
	return domain.WriteFailure("bind endpoint", err)
}

// ListTechnicians returns every technician in registration order.
func (s *Store) ListTechnicians(ctx context.Context) ([]domain.Technician, error) {
	var out []domain.Technician
	if err := s.db.SelectContext(ctx, &out, `SELECT `+technicianColumns+` FROM technicians ORDER BY id`); err != nil {
		return nil, fmt.Errorf("list technicians: %w", err)
	}
	return out, nil
}

// CurrentLoad counts the technician's orders that are new or in progress.
func (s *Store) CurrentLoad(ctx context.Context, technicianID int64) (int, error) {
	q, args, err := sqlx.In(
		`SELECT COUNT(*) FROM orders WHERE technician_id = ? AND status IN (?)`,
		technicianID, domain.ActiveStatuses)
	if err != nil {
		return 0, err
	}
	var n int
	if err := s.db.GetContext(ctx, &n, s.db.Rebind(q), args...); err != nil {
		return 0, fmt.Errorf("current load: %w", err)
	}
	return n, nil
}

type loadRow struct {
	TechnicianID int64 `db:"technician_id"`
	Active       int   `db:"active"`
}

func loads(ctx context.Context, q sqlx.ExtContext) (map[int64]int, error) {
	query, args, err := sqlx.In(
		`SELECT technician_id, COUNT(*) AS active FROM orders
		 WHERE technician_id IS NOT NULL AND status IN (?)
		 GROUP BY technician_id`, domain.ActiveStatuses)
	if err != nil {
		return nil, err
	}
	var rows []loadRow
	if err := sqlx.SelectContext(ctx, q, &rows, q.Rebind(query), args...); err != nil {
		return nil, err
	}
	out := make(map[int64]int, len(rows))
	for _, r := range rows {
		out[r.TechnicianID] = r.Active
	}
	return out, nil
}

// Loads returns the current load of every technician that has one.
func (s *Store) Loads(ctx context.Context) (map[int64]int, error) {
	m, err := loads(ctx, s.db)
	if err != nil {
		return nil, fmt.Errorf("loads: %w", err)
	}
	return m, nil
}
