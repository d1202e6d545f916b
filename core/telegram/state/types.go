package state

import (
	"context"
	"strconv"
)

// Role separates conversations one chat holds with different bots.
type Role string

const (
	RoleClient     Role = "client"
	RoleTechnician Role = "technician"
)

// Key identifies a conversation.
type Key struct {
	Chat int64
	Role Role
}

func (k Key) String() string {
	return string(k.Role) + ":" + strconv.FormatInt(k.Chat, 10)
}

// Store holds at most one value per Key. Put refreshes the idle deadline.
type Store[T any] interface {
	Get(ctx context.Context, key Key) (T, bool, error)
	Put(ctx context.Context, key Key, value T) error
	Delete(ctx context.Context, key Key) error
}
