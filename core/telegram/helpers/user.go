package helpers

import (
	"context"
	"errors"

	tele "gopkg.in/telebot.v4"
)

// ErrNoChat is returned when an update carries no chat to resolve.
var ErrNoChat = errors.New("telegram: update has no chat")

// ChatResolver maps a Telegram chat to a domain record.
type ChatResolver[T any] interface {
	ByChat(ctx context.Context, chatID int64) (T, error)
}

// CurrentUser resolves the chat of the current update through r.
func CurrentUser[T any](c tele.Context, r ChatResolver[T]) (T, error) {
	var zero T
	chat := c.Chat()
	if chat == nil || r == nil {
		return zero, ErrNoChat
	}
	return r.ByChat(BuildContext(c), chat.ID)
}
