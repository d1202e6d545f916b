// Package domain holds the records shared by the intake, assignment and
// order lifecycle packages.
package domain

import "time"

// OrderStatus is the lifecycle status of an Order.
type OrderStatus string

const (
	StatusNew        OrderStatus = "new"
	StatusInProgress OrderStatus = "in_progress"
	StatusDeclined   OrderStatus = "declined"
	StatusDone       OrderStatus = "done"
)

// Valid reports whether s is one of the known statuses.
func (s OrderStatus) Valid() bool {
	switch s {
	case StatusNew, StatusInProgress, StatusDeclined, StatusDone:
		return true
	}
	return false
}

// Active reports whether an order in this status counts towards a technician's load.
func (s OrderStatus) Active() bool {
	return s == StatusNew || s == StatusInProgress
}

// ActiveStatuses lists statuses that contribute to technician load.
var ActiveStatuses = []OrderStatus{StatusNew, StatusInProgress}

// Client is the party who submitted an order. Immutable once created.
type Client struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Phone     string    `db:"phone" json:"phone"`
	Address   string    `db:"address" json:"address"`
	ChatID    *int64    `db:"chat_id" json:"-"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Technician is a registered field worker.
type Technician struct {
	ID         int64     `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	Contact    string    `db:"contact" json:"contact"`
	Credential string    `db:"credential" json:"-"`
	ChatID     *int64    `db:"chat_id" json:"chat_id,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Bound reports whether the technician has a resolved messaging endpoint.
func (t Technician) Bound() bool {
	return t.ChatID != nil && *t.ChatID != 0
}

// Order is a single pest-control service request.
type Order struct {
	ID             int64       `db:"id" json:"-"`
	Code           string      `db:"code" json:"code"`
	ClientID       int64       `db:"client_id" json:"client_id"`
	TechnicianID   *int64      `db:"technician_id" json:"technician_id,omitempty"`
	Status         OrderStatus `db:"status" json:"status"`
	ObjectType     string      `db:"object_type" json:"object_type"`
	InsectQuantity string      `db:"insect_quantity" json:"insect_quantity"`
	HasExperience  bool        `db:"has_experience" json:"has_experience"`
	PoisonType     *string     `db:"poison_type" json:"poison_type,omitempty"`
	InsectType     *string     `db:"insect_type" json:"insect_type,omitempty"`
	Area           *float64    `db:"area" json:"area,omitempty"`
	EstimatedPrice *float64    `db:"estimated_price" json:"estimated_price,omitempty"`
	FinalPrice     *float64    `db:"final_price" json:"final_price,omitempty"`
	CreatedAt      time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time   `db:"updated_at" json:"updated_at"`
}

// OrderView joins an order with the client it belongs to, for admin listings.
type OrderView struct {
	Order
	ClientName     string  `db:"client_name" json:"client_name"`
	ClientPhone    string  `db:"client_phone" json:"client_phone"`
	ClientAddress  string  `db:"client_address" json:"client_address"`
	ClientChatID   *int64  `db:"client_chat_id" json:"-"`
	TechnicianName *string `db:"technician_name" json:"technician_name,omitempty"`
}

// Pricing holds the fields a technician supplies after accepting an order.
type Pricing struct {
	PoisonType     string
	InsectType     string
	Area           float64
	EstimatedPrice float64
}

// TechnicianStats aggregates order counts for a single technician.
type TechnicianStats struct {
	TechnicianID int64  `db:"technician_id" json:"technician_id"`
	Name         string `db:"name" json:"name"`
	Total        int    `db:"total" json:"total"`
	Done         int    `db:"done" json:"done"`
	InProgress   int    `db:"in_progress" json:"in_progress"`
}

// OrderFilter narrows order queries. Zero values mean "all".
type OrderFilter struct {
	TechnicianID int64
	Status       OrderStatus
}

// Option is one value of a constrained choice offered to a party.
type Option struct {
	Value string
	Label string
}

// OptionLabel returns the label for value in opts, or value itself.
func OptionLabel(opts []Option, value string) string {
	for _, o := range opts {
		if o.Value == value {
			return o.Label
		}
	}
	return value
}

// HasOption reports whether value is one of opts.
func HasOption(opts []Option, value string) bool {
	for _, o := range opts {
		if o.Value == value {
			return true
		}
	}
	return false
}
