package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/pestbot/internal/assign"
	"github.com/m3rciful/pestbot/internal/domain"
)

const orderViewQuery = `
SELECT o.id, o.code, o.client_id, o.technician_id, o.status, o.object_type,
       o.insect_quantity, o.has_experience, o.poison_type, o.insect_type, o.area,
       o.estimated_price, o.final_price, o.created_at, o.updated_at,
       c.name AS client_name, c.phone AS client_phone, c.address AS client_address,
       c.chat_id AS client_chat_id, t.name AS technician_name
FROM orders o
JOIN clients c ON c.id = o.client_id
LEFT JOIN technicians t ON t.id = o.technician_id`

// CreateClient inserts c and sets its ID and CreatedAt.
func (s *Store) CreateClient(ctx context.Context, c *domain.Client) error {
	c.CreatedAt = s.now()
	id, err := insertID(ctx, s.db, s.db.Rebind(
		`INSERT INTO clients (name, phone, address, chat_id, created_at)
		 VALUES (?, ?, ?, ?, ?) RETURNING id`),
		c.Name, c.Phone, c.Address, c.ChatID, c.CreatedAt)
	if err != nil {
		return domain.WriteFailure("create client", err)
	}
	c.ID = id
	return nil
}

// ClientByID returns the client with id.
func (s *Store) ClientByID(ctx context.Context, id int64) (domain.Client, error) {
	var c domain.Client
	q := s.db.Rebind(`SELECT id, name, phone, address, chat_id, created_at FROM clients WHERE id = ?`)
	if err := s.db.GetContext(ctx, &c, q, id); err != nil {
		return domain.Client{}, notFound(err)
	}
	return c, nil
}

// CreateAssignedOrder picks the least-loaded technician and inserts o assigned
// to them. Load read and insert share one transaction and one lock, so two
// concurrent submissions never observe the same load snapshot.
func (s *Store) CreateAssignedOrder(ctx context.Context, o *domain.Order) (domain.Technician, error) {
	s.assignMu.Lock()
	defer s.assignMu.Unlock()

	var tech domain.Technician
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		if s.isPostgres() {
			if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, assignLockKey); err != nil {
				return err
			}
		}

		var roster []int64
		if err := tx.SelectContext(ctx, &roster, `SELECT id FROM technicians ORDER BY id`); err != nil {
			return err
		}
		current, err := loads(ctx, tx)
		if err != nil {
			return err
		}
		techID, err := assign.Select(roster, current)
		if err != nil {
			return err
		}

		code, err := s.uniqueCode(ctx, tx)
		if err != nil {
			return err
		}
		now := s.now()
		o.Code = code
		o.TechnicianID = &techID
		o.Status = domain.StatusNew
		o.CreatedAt, o.UpdatedAt = now, now

		id, err := insertID(ctx, tx, tx.Rebind(
			`INSERT INTO orders (code, client_id, technician_id, status, object_type,
			   insect_quantity, has_experience, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`),
			o.Code, o.ClientID, techID, o.Status, o.ObjectType,
			o.InsectQuantity, o.HasExperience, o.CreatedAt, o.UpdatedAt)
		if err != nil {
			return err
		}
		o.ID = id

		return tx.GetContext(ctx, &tech, tx.Rebind(
			`SELECT `+technicianColumns+` FROM technicians WHERE id = ?`), techID)
	})
	if err != nil {
		return domain.Technician{}, domain.WriteFailure("create order", err)
	}
	return tech, nil
}

// uniqueCode draws order codes until one is unused. A failed INSERT would
// abort the PostgreSQL transaction, so collisions are checked up front.
func (s *Store) uniqueCode(ctx context.Context, tx *sqlx.Tx) (string, error) {
	q := tx.Rebind(`SELECT COUNT(*) FROM orders WHERE code = ?`)
	for i := 0; i < codeAttempts; i++ {
		code := s.newCode()
		var n int
		if err := tx.GetContext(ctx, &n, q, code); err != nil {
			return "", err
		}
		if n == 0 {
			return code, nil
		}
	}
	return "", fmt.Errorf("no free order code after %d attempts", codeAttempts)
}

// Accept moves a new order of technicianID to in_progress.
func (s *Store) Accept(ctx context.Context, code string, technicianID int64) error {
	return s.transition(ctx, "accept order", code, technicianID,
		domain.StatusNew, domain.StatusInProgress, nil)
}

// Decline moves a new order of technicianID to declined.
func (s *Store) Decline(ctx context.Context, code string, technicianID int64) error {
	return s.transition(ctx, "decline order", code, technicianID,
		domain.StatusNew, domain.StatusDeclined, nil)
}

// SavePricing stores the technician's classification and estimate on an order in progress.
func (s *Store) SavePricing(ctx context.Context, code string, technicianID int64, p domain.Pricing) error {
	return s.transition(ctx, "save pricing", code, technicianID,
		domain.StatusInProgress, domain.StatusInProgress, map[string]any{
			"poison_type":     p.PoisonType,
			"insect_type":     p.InsectType,
			"area":            p.Area,
			"estimated_price": p.EstimatedPrice,
		})
}

// Complete closes an order in progress with its final price. technicianID 0
// skips the ownership check.
func (s *Store) Complete(ctx context.Context, code string, technicianID int64, finalPrice float64) error {
	return s.transition(ctx, "complete order", code, technicianID,
		domain.StatusInProgress, domain.StatusDone, map[string]any{"final_price": finalPrice})
}

var settableColumns = []string{"poison_type", "insect_type", "area", "estimated_price", "final_price"}

func (s *Store) transition(ctx context.Context, op, code string, technicianID int64, from, to domain.OrderStatus, set map[string]any) error {
	sets := []string{"status = ?", "updated_at = ?"}
	args := []any{to, s.now()}
	for _, col := range settableColumns {
		if v, ok := set[col]; ok {
			sets = append(sets, col+" = ?")
			args = append(args, v)
		}
	}
	where := "code = ? AND status = ?"
	args = append(args, code, from)
	if technicianID != 0 {
		where += " AND technician_id = ?"
		args = append(args, technicianID)
	}

	res, err := s.db.ExecContext(ctx, s.db.Rebind(
		`UPDATE orders SET `+strings.Join(sets, ", ")+` WHERE `+where), args...)
	if err != nil {
		return domain.WriteFailure(op, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	var owner struct {
		TechnicianID *int64 `db:"technician_id"`
	}
	if err := s.db.GetContext(ctx, &owner, s.db.Rebind(`SELECT technician_id FROM orders WHERE code = ?`), code); err != nil {
		return notFound(err)
	}
	if technicianID != 0 && (owner.TechnicianID == nil || *owner.TechnicianID != technicianID) {
		return domain.ErrNotFound
	}
	return domain.ErrInvalidTransition
}

// OrderByCode returns the order with code joined with its client and technician.
func (s *Store) OrderByCode(ctx context.Context, code string) (domain.OrderView, error) {
	var v domain.OrderView
	if err := s.db.GetContext(ctx, &v, s.db.Rebind(orderViewQuery+` WHERE o.code = ?`), code); err != nil {
		return domain.OrderView{}, notFound(err)
	}
	return v, nil
}

// ListOrders returns orders matching f, newest first.
func (s *Store) ListOrders(ctx context.Context, f domain.OrderFilter) ([]domain.OrderView, error) {
	var conds []string
	var args []any
	if f.TechnicianID != 0 {
		conds = append(conds, "o.technician_id = ?")
		args = append(args, f.TechnicianID)
	}
	if f.Status != "" {
		conds = append(conds, "o.status = ?")
		args = append(args, f.Status)
	}
	q := orderViewQuery
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY o.created_at DESC, o.id DESC"

	out := []domain.OrderView{}
	if err := s.db.SelectContext(ctx, &out, s.db.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return out, nil
}

// Stats aggregates order counts per technician, including technicians without orders.
func (s *Store) Stats(ctx context.Context) ([]domain.TechnicianStats, error) {
	q := s.db.Rebind(`
SELECT t.id AS technician_id, t.name AS name,
       COUNT(o.id) AS total,
       COALESCE(SUM(CASE WHEN o.status = ? THEN 1 ELSE 0 END), 0) AS done,
       COALESCE(SUM(CASE WHEN o.status = ? THEN 1 ELSE 0 END), 0) AS in_progress
FROM technicians t
LEFT JOIN orders o ON o.technician_id = t.id
GROUP BY t.id, t.name
ORDER BY t.id`)
	out := []domain.TechnicianStats{}
	if err := s.db.SelectContext(ctx, &out, q, domain.StatusDone, domain.StatusInProgress); err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	return out, nil
}
