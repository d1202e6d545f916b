// Package notify delivers order events to technicians, clients and the
// administrator over Telegram.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/pestbot/core/logger"
	"github.com/m3rciful/pestbot/core/telegram/format"
	"github.com/m3rciful/pestbot/core/telegram/keyboard"
	"github.com/m3rciful/pestbot/core/telegram/sender"
	"github.com/m3rciful/pestbot/internal/domain"
	"github.com/m3rciful/pestbot/internal/intake"
)

// Callback uniques of the buttons attached to a new-order message.
const (
	UniqueAccept  = "order_accept"
	UniqueDecline = "order_decline"
)

// Sender is the subset of *tele.Bot used to deliver messages.
type Sender interface {
	Send(to tele.Recipient, what any, opts ...any) (*tele.Message, error)
}

// Notifier sends order events. Technicians are reached through the
// technician bot, clients and the administrator through the client bot.
type Notifier struct {
	technicians Sender
	clients     Sender
	adminChat   int64
	disp        *sender.Dispatcher
}

// New builds a Notifier. disp may be nil for synchronous delivery.
func New(technicians, clients Sender, adminChat int64, disp *sender.Dispatcher) *Notifier {
	return &Notifier{technicians: technicians, clients: clients, adminChat: adminChat, disp: disp}
}

// OrderAssigned offers a new order to its technician with accept/decline buttons.
func (n *Notifier) OrderAssigned(ctx context.Context, tech domain.Technician, o domain.OrderView) error {
	if !tech.Bound() {
		logger.Notify.WarnContext(ctx, "technician endpoint unbound",
			slog.String("event", "notify.assigned"),
			slog.String("status", "skip"),
			slog.String("order", o.Code),
			slog.Int64("technician_id", tech.ID),
		)
		return domain.ErrEndpointUnbound
	}
	markup := keyboard.Row(
		keyboard.Button{Label: "✅ Accept", Unique: UniqueAccept, Payload: o.Code},
		keyboard.Button{Label: "❌ Decline", Unique: UniqueDecline, Payload: o.Code},
	)
	return n.send(ctx, n.technicians, "notify.assigned", *tech.ChatID, o.Code, AssignedText(o), markup)
}

// StatusChanged tells the client that the order moved on.
func (n *Notifier) StatusChanged(ctx context.Context, o domain.OrderView) error {
	if o.ClientChatID == nil || *o.ClientChatID == 0 {
		return domain.ErrEndpointUnbound
	}
	text := StatusText(o)
	if text == "" {
		return nil
	}
	return n.send(ctx, n.clients, "notify.status", *o.ClientChatID, o.Code, text, nil)
}

// OrderDeclined tells the administrator that an order needs manual handling.
func (n *Notifier) OrderDeclined(ctx context.Context, o domain.OrderView) error {
	if n.adminChat == 0 {
		return domain.ErrEndpointUnbound
	}
	text := fmt.Sprintf("⚠️ Order *%s* was declined by %s and is not reassigned\\.",
		format.V2(o.Code), format.V2(format.StrOr(o.TechnicianName, "technician")))
	return n.send(ctx, n.clients, "notify.declined", n.adminChat, o.Code, text, nil)
}

func (n *Notifier) send(ctx context.Context, via Sender, event string, chatID int64, code, text string, markup *tele.ReplyMarkup) error {
	if via == nil {
		return domain.ErrEndpointUnbound
	}
	opts := &tele.SendOptions{ParseMode: tele.ModeMarkdownV2, ReplyMarkup: markup}
	run := func() error {
		_, err := via.Send(tele.ChatID(chatID), text, opts)
		return err
	}

	attrs := []any{
		slog.String("event", event),
		slog.String("order", code),
		slog.Int64("chat_id", chatID),
	}
	if n.disp != nil {
		err := n.disp.Enqueue(ctx, chatID, event, run)
		if err == nil {
			logger.Notify.DebugContext(ctx, "notification queued", append(attrs, slog.String("status", "ok"))...)
			return nil
		}
		if !errors.Is(err, sender.ErrQueueFull) && !errors.Is(err, sender.ErrQueueClosed) {
			return err
		}
		logger.Notify.WarnContext(ctx, "queue unavailable, sending inline", append(attrs, slog.String("err", err.Error()))...)
	}
	if err := run(); err != nil {
		logger.Notify.ErrorContext(ctx, "notification failed", append(attrs, slog.String("status", "fail"), slog.String("err", err.Error()))...)
		return err
	}
	logger.Notify.InfoContext(ctx, "notification sent", append(attrs, slog.String("status", "ok"))...)
	return nil
}

// AssignedText renders the new-order message for a technician.
func AssignedText(o domain.OrderView) string {
	experience := "No"
	if o.HasExperience {
		experience = "Yes"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "🆕 *New order %s*\n\n", format.V2(o.Code))
	fmt.Fprintf(&b, "👤 Client: %s\n", format.V2(o.ClientName))
	fmt.Fprintf(&b, "📞 Phone: %s\n", format.V2(o.ClientPhone))
	fmt.Fprintf(&b, "🏠 Address: %s\n", format.V2(o.ClientAddress))
	fmt.Fprintf(&b, "🏢 Object: %s\n", format.V2(domain.OptionLabel(intake.ObjectTypes, o.ObjectType)))
	fmt.Fprintf(&b, "🐜 Quantity: %s\n", format.V2(domain.OptionLabel(intake.QuantityBrackets, o.InsectQuantity)))
	fmt.Fprintf(&b, "🧪 Treated before: %s", experience)
	return b.String()
}

// StatusText renders the client message for a status, or "" when the client
// is not told about it.
func StatusText(o domain.OrderView) string {
	code := format.V2(o.Code)
	switch o.Status {
	case domain.StatusInProgress:
		return fmt.Sprintf("👷 Your order *%s* was accepted by %s\\. The technician will contact you soon\\.",
			code, format.V2(format.StrOr(o.TechnicianName, "a technician")))
	case domain.StatusDone:
		return fmt.Sprintf("✅ Your order *%s* is done\\. Final price: %s\\.",
			code, format.V2(format.NumberOr(o.FinalPrice, "n/a")))
	}
	return ""
}
