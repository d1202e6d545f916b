// Package techbot serves the Telegram bot technicians use to take orders.
package techbot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/pestbot/core/logger"
	tg "github.com/m3rciful/pestbot/core/telegram"
	"github.com/m3rciful/pestbot/core/telegram/callbacks"
	"github.com/m3rciful/pestbot/core/telegram/format"
	tghelpers "github.com/m3rciful/pestbot/core/telegram/helpers"
	"github.com/m3rciful/pestbot/core/telegram/keyboard"
	"github.com/m3rciful/pestbot/core/telegram/router"
	"github.com/m3rciful/pestbot/core/telegram/state"
	"github.com/m3rciful/pestbot/internal/domain"
	"github.com/m3rciful/pestbot/internal/lifecycle"
	"github.com/m3rciful/pestbot/internal/notify"
)

// Callback uniques of the pricing buttons.
const (
	UniqueChoice = "pricing_choice"
	UniqueCancel = "pricing_cancel"
)

// Orders is the part of the order service the technician bot needs.
type Orders interface {
	Accept(ctx context.Context, code string, technicianID int64) (domain.OrderView, error)
	Decline(ctx context.Context, code string, technicianID int64) (domain.OrderView, error)
	SavePricing(ctx context.Context, code string, technicianID int64, p domain.Pricing) error
	Order(ctx context.Context, code string) (domain.OrderView, error)
	List(ctx context.Context, f domain.OrderFilter) ([]domain.OrderView, error)
}

// Technicians resolves and binds technician identities.
type Technicians interface {
	BindEndpoint(ctx context.Context, credential string, chatID int64) (domain.Technician, error)
	ByChat(ctx context.Context, chatID int64) (domain.Technician, error)
}

// Bot holds the technician bot handlers.
type Bot struct {
	orders   Orders
	techs    Technicians
	sessions state.Store[*lifecycle.Dialogue]
	locks    state.Locks
}

// New builds the technician bot.
func New(orders Orders, techs Technicians, sessions state.Store[*lifecycle.Dialogue]) *Bot {
	return &Bot{orders: orders, techs: techs, sessions: sessions}
}

// Wire registers the technician bot commands and callbacks and builds its routes.
func (b *Bot) Wire() (*tg.Registry, []tg.Route, error) {
	reg := tg.NewRegistry()
	err := errors.Join(
		reg.Command("/start", tg.Command{Handler: b.start, Description: "Sign in with your access code"}),
		reg.Command("/orders", tg.Command{Handler: b.list, Description: "Your active orders"}),
		reg.Command("/price", tg.Command{Handler: b.price, Description: "Resume pricing an accepted order"}),
		reg.Command("/cancel", tg.Command{Handler: b.cancel, Description: "Drop the current pricing dialogue", Aliases: []string{"stop"}}),
		reg.Callback(notify.UniqueAccept, b.decide(lifecycle.DecisionAccept)),
		reg.Callback(notify.UniqueDecline, b.decide(lifecycle.DecisionDecline)),
		reg.Callback(UniqueChoice, b.choice),
		reg.Callback(UniqueCancel, b.cancel),
	)
	if err != nil {
		return nil, nil, err
	}
	return reg, router.Routes(reg, b, router.Options{Idle: b.idle}), nil
}

func sessionKey(c tele.Context) state.Key {
	var chat int64
	if ch := c.Chat(); ch != nil {
		chat = ch.ID
	}
	return state.Key{Chat: chat, Role: state.RoleTechnician}
}

// Active reports whether the chat has a pricing dialogue open.
func (b *Bot) Active(c tele.Context) bool {
	_, ok, err := b.sessions.Get(tghelpers.BuildContext(c), sessionKey(c))
	if err != nil {
		b.sessionFailed(c, "session.get", err)
		return false
	}
	return ok
}

// Handle feeds free text into the open pricing dialogue.
func (b *Bot) Handle(c tele.Context) error {
	defer b.locks.Lock(sessionKey(c))()
	return b.apply(c, lifecycle.Input{Value: c.Text()})
}

func (b *Bot) start(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	chat := c.Chat()
	if chat == nil {
		return nil
	}
	credential := ""
	if msg := c.Message(); msg != nil {
		credential = strings.TrimSpace(msg.Payload)
	}
	if credential == "" {
		if tech, err := b.techs.ByChat(ctx, chat.ID); err == nil {
			return tghelpers.SendText(c, fmt.Sprintf("You are signed in as %s. New orders will arrive here.", tech.Name))
		}
		return tghelpers.SendText(c, "Send /start followed by the access code you got from the administrator.")
	}

	tech, err := b.techs.BindEndpoint(ctx, credential, chat.ID)
	switch {
	case errors.Is(err, domain.ErrNotFound) || domain.IsValidation(err):
		return tghelpers.SendText(c, "Unknown access code.")
	case err != nil:
		return tghelpers.SendText(c, "⚠️ Could not sign you in, try again later.")
	}
	return tghelpers.SendText(c, fmt.Sprintf("✅ Signed in as %s. New orders will arrive here.", tech.Name))
}

func (b *Bot) idle(c tele.Context) error {
	return tghelpers.SendText(c, "Orders arrive here with Accept and Decline buttons. /orders lists your active ones.")
}

// technician resolves the sender or tells them to sign in.
func (b *Bot) technician(c tele.Context) (domain.Technician, bool) {
	tech, err := tghelpers.CurrentUser[domain.Technician](c, b.techs)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			logger.SVCTechnicians.ErrorContext(tghelpers.BuildContext(c), "technician lookup failed",
				slog.String("event", "technician.by_chat"),
				slog.String("status", "fail"),
				slog.String("err", err.Error()),
			)
		}
		_ = tghelpers.SendText(c, "Sign in first: send /start followed by your access code.")
		return domain.Technician{}, false
	}
	return tech, true
}

// decide handles the accept and decline buttons of a new-order message.
func (b *Bot) decide(decision string) tele.HandlerFunc {
	return func(c tele.Context) error {
		code, err := callbacks.Payload(c)
		if err != nil {
			return nil
		}
		tech, ok := b.technician(c)
		if !ok {
			return nil
		}
		ctx := tghelpers.Annotate(c, logger.Meta{Order: code, TechnicianID: tech.ID})
		key := sessionKey(c)
		defer b.locks.Lock(key)()

		current, open, err := b.sessions.Get(ctx, key)
		if err != nil {
			b.sessionFailed(c, "session.get", err)
			return tghelpers.SendText(c, "⚠️ Something went wrong, please try again.")
		}
		if decision == lifecycle.DecisionAccept && open && current.OrderCode != code {
			// A dialogue parked at Complete still holds an unsaved pricing write.
			if current.Step == lifecycle.Complete {
				return tghelpers.SendText(c, fmt.Sprintf("The details of order %s are not saved yet. Send any message to retry, or /cancel it.", current.OrderCode))
			}
			return tghelpers.SendText(c, fmt.Sprintf("Finish pricing order %s first, or /cancel it.", current.OrderCode))
		}

		d := lifecycle.Start(code)
		res := d.Apply(lifecycle.Input{Choice: true, Value: decision})
		if res.Err != nil {
			return nil
		}

		switch res.Event {
		case lifecycle.EventAccepted:
			if _, err := b.orders.Accept(ctx, code, tech.ID); err != nil {
				return tghelpers.SendText(c, transitionFailedText(code, err))
			}
			if err := b.sessions.Put(ctx, key, d); err != nil {
				b.sessionFailed(c, "session.put", err)
				return tghelpers.SendText(c, fmt.Sprintf("Order %s accepted. Send /price %s to enter the details.", code, code))
			}
			if err := tghelpers.SendText(c, fmt.Sprintf("👍 Order %s accepted.", code)); err != nil {
				return err
			}
			return b.prompt(c, d.Step)

		case lifecycle.EventDeclined:
			if _, err := b.orders.Decline(ctx, code, tech.ID); err != nil {
				return tghelpers.SendText(c, transitionFailedText(code, err))
			}
			if open && current.OrderCode == code {
				_ = b.sessions.Delete(ctx, key)
			}
			return tghelpers.SendText(c, fmt.Sprintf("Order %s declined.", code))
		}
		return nil
	}
}

// price reopens the pricing dialogue of an accepted order: /price CODE.
func (b *Bot) price(c tele.Context) error {
	tech, ok := b.technician(c)
	if !ok {
		return nil
	}
	code := ""
	if msg := c.Message(); msg != nil {
		code = strings.ToUpper(strings.TrimSpace(msg.Payload))
	}
	if code == "" {
		return tghelpers.SendText(c, "Usage: /price ORDER_CODE")
	}
	ctx := tghelpers.Annotate(c, logger.Meta{Order: code, TechnicianID: tech.ID})
	o, err := b.orders.Order(ctx, code)
	if err != nil || o.TechnicianID == nil || *o.TechnicianID != tech.ID {
		return tghelpers.SendText(c, fmt.Sprintf("Order %s not found.", code))
	}
	if o.Status != domain.StatusInProgress {
		return tghelpers.SendText(c, fmt.Sprintf("Order %s is %s, only accepted orders can be priced.", code, o.Status))
	}
	defer b.locks.Lock(sessionKey(c))()
	d := lifecycle.Accepted(code)
	if err := b.sessions.Put(ctx, sessionKey(c), d); err != nil {
		b.sessionFailed(c, "session.put", err)
		return tghelpers.SendText(c, "⚠️ Something went wrong, please try again.")
	}
	return b.prompt(c, d.Step)
}

func (b *Bot) cancel(c tele.Context) error {
	defer b.locks.Lock(sessionKey(c))()
	ctx := tghelpers.BuildContext(c)
	d, ok, err := b.sessions.Get(ctx, sessionKey(c))
	if err != nil {
		b.sessionFailed(c, "session.get", err)
	}
	if !ok {
		return tghelpers.SendText(c, "Nothing to cancel.")
	}
	if err := b.sessions.Delete(ctx, sessionKey(c)); err != nil {
		b.sessionFailed(c, "session.delete", err)
		return tghelpers.SendText(c, "⚠️ Something went wrong, please try again.")
	}
	return tghelpers.SendText(c, fmt.Sprintf("Pricing dropped. Order %s stays accepted, /price %s resumes it.", d.OrderCode, d.OrderCode))
}

func (b *Bot) choice(c tele.Context) error {
	payload, err := callbacks.Payload(c)
	if err != nil {
		return nil
	}
	step, value, _ := strings.Cut(payload, ":")
	defer b.locks.Lock(sessionKey(c))()
	d, ok, err := b.sessions.Get(tghelpers.BuildContext(c), sessionKey(c))
	if err != nil {
		b.sessionFailed(c, "session.get", err)
		return nil
	}
	if !ok || lifecycle.Step(step) != d.Step {
		return tghelpers.SendText(c, "That question was already answered.")
	}
	return b.apply(c, lifecycle.Input{Choice: true, Value: value})
}

// apply runs with the conversation lock held.
func (b *Bot) apply(c tele.Context, in lifecycle.Input) error {
	ctx := tghelpers.BuildContext(c)
	key := sessionKey(c)
	d, ok, err := b.sessions.Get(ctx, key)
	if err != nil {
		b.sessionFailed(c, "session.get", err)
		return tghelpers.SendText(c, "⚠️ Something went wrong, please try again.")
	}
	if !ok {
		return b.idle(c)
	}
	ctx = tghelpers.Annotate(c, logger.Meta{Order: d.OrderCode})

	res := d.Apply(in)
	if res.Err != nil {
		if err := tghelpers.SendText(c, rejectText(d.Step)); err != nil {
			return err
		}
		return b.prompt(c, d.Step)
	}
	if res.Event == lifecycle.EventPriced {
		return b.savePricing(ctx, c, key, d, *res.Pricing)
	}
	if err := b.sessions.Put(ctx, key, d); err != nil {
		b.sessionFailed(c, "session.put", err)
		return tghelpers.SendText(c, "⚠️ Something went wrong, please try again.")
	}
	return b.prompt(c, d.Step)
}

// savePricing writes the collected fields. On failure the dialogue stays at
// Complete so the next message retries the write.
func (b *Bot) savePricing(ctx context.Context, c tele.Context, key state.Key, d *lifecycle.Dialogue, p domain.Pricing) error {
	tech, ok := b.technician(c)
	if !ok {
		return nil
	}
	if err := b.orders.SavePricing(ctx, d.OrderCode, tech.ID, p); err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) || errors.Is(err, domain.ErrNotFound) {
			_ = b.sessions.Delete(ctx, key)
			return tghelpers.SendText(c, transitionFailedText(d.OrderCode, err))
		}
		if perr := b.sessions.Put(ctx, key, d); perr != nil {
			b.sessionFailed(c, "session.put", perr)
		}
		return tghelpers.SendText(c, "⚠️ Could not save the details. Send any message to try again.")
	}
	if err := b.sessions.Delete(ctx, key); err != nil {
		b.sessionFailed(c, "session.delete", err)
	}
	return tghelpers.SendMDV2(c, PricingText(d.OrderCode, p))
}

func (b *Bot) list(c tele.Context) error {
	tech, ok := b.technician(c)
	if !ok {
		return nil
	}
	orders, err := b.orders.List(tghelpers.BuildContext(c), domain.OrderFilter{TechnicianID: tech.ID})
	if err != nil {
		return tghelpers.SendText(c, "Could not load your orders, try again later.")
	}
	return tghelpers.SendMDV2(c, OrdersText(orders))
}

func (b *Bot) prompt(c tele.Context, step lifecycle.Step) error {
	var text string
	switch step {
	case lifecycle.AwaitingPoisonType:
		text = "🧪 Which poison will you use?"
	case lifecycle.AwaitingInsectType:
		text = "🐜 Which insects are you treating?"
	case lifecycle.AwaitingArea:
		return tghelpers.SendText(c, "📐 Treated area in square metres?")
	case lifecycle.AwaitingEstimate:
		return tghelpers.SendText(c, "💰 Estimated price?")
	default:
		return tghelpers.SendText(c, "Send any message to save the details.")
	}
	opts := lifecycle.OptionsFor(step)
	btns := make([]keyboard.Button, 0, len(opts))
	for _, o := range opts {
		btns = append(btns, keyboard.Button{Label: o.Label, Unique: UniqueChoice, Payload: string(step) + ":" + o.Value})
	}
	markup := keyboard.WithCancel(keyboard.Grid(2, btns...), UniqueCancel)
	return tghelpers.SendText(c, text, &tele.SendOptions{ReplyMarkup: markup})
}

func (b *Bot) sessionFailed(c tele.Context, event string, err error) {
	logger.Session.ErrorContext(tghelpers.BuildContext(c), "session store failed",
		slog.String("event", event),
		slog.String("status", "fail"),
		slog.String("role", string(state.RoleTechnician)),
		slog.String("err", err.Error()),
	)
}

func rejectText(step lifecycle.Step) string {
	switch step {
	case lifecycle.AwaitingPoisonType, lifecycle.AwaitingInsectType:
		return "Please pick one of the buttons."
	case lifecycle.AwaitingArea, lifecycle.AwaitingEstimate:
		return "Please send a positive number, for example 42 or 12.5."
	}
	return "Please try again."
}

func transitionFailedText(code string, err error) string {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return fmt.Sprintf("Order %s not found.", code)
	case errors.Is(err, domain.ErrInvalidTransition):
		return fmt.Sprintf("Order %s was already handled.", code)
	}
	return "⚠️ Could not update the order, try again later."
}

// PricingText summarises saved pricing details in MarkdownV2.
func PricingText(code string, p domain.Pricing) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "✅ *Order %s saved*\n\n", format.V2(code))
	fmt.Fprintf(&sb, "🧪 Poison: %s\n", format.V2(domain.OptionLabel(lifecycle.PoisonTypes, p.PoisonType)))
	fmt.Fprintf(&sb, "🐜 Insects: %s\n", format.V2(domain.OptionLabel(lifecycle.InsectTypes, p.InsectType)))
	fmt.Fprintf(&sb, "📐 Area: %s m²\n", format.V2(format.Number(p.Area)))
	fmt.Fprintf(&sb, "💰 Estimate: %s", format.V2(format.Number(p.EstimatedPrice)))
	return sb.String()
}

// OrdersText lists active orders in MarkdownV2.
func OrdersText(orders []domain.OrderView) string {
	var sb strings.Builder
	for _, o := range orders {
		if !o.Status.Active() {
			continue
		}
		fmt.Fprintf(&sb, "\n*%s* · %s\n%s, %s\n",
			format.V2(o.Code), format.V2(string(o.Status)), format.V2(o.ClientAddress), format.V2(o.ClientPhone))
	}
	if sb.Len() == 0 {
		return "No active orders\\."
	}
	return "📋 *Active orders*\n" + sb.String()
}
