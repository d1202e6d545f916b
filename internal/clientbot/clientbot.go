// Package clientbot serves the Telegram bot clients use to file requests.
package clientbot

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
	"github.com/m3rciful/pestbot/internal/intake"
	"github.com/m3rciful/pestbot/internal/service"
)

// Callback uniques of the intake buttons.
const (
	UniqueChoice = "intake_choice"
	UniqueCancel = "intake_cancel"
)

// Orders is the part of the order service the client bot needs.
type Orders interface {
	Submit(ctx context.Context, sub intake.Submission, chatID int64) (service.SubmitResult, error)
	Stats(ctx context.Context) ([]domain.TechnicianStats, error)
}

// Bot holds the client bot handlers.
type Bot struct {
	orders   Orders
	sessions state.Store[*intake.Form]
	locks    state.Locks
	adminID  int64
}

// New builds the client bot. adminID gates /report; zero disables it.
func New(orders Orders, sessions state.Store[*intake.Form], adminID int64) *Bot {
	return &Bot{orders: orders, sessions: sessions, adminID: adminID}
}

// Wire registers the client bot commands and callbacks and builds its routes.
func (b *Bot) Wire() (*tg.Registry, []tg.Route, error) {
	reg := tg.NewRegistry()
	err := errors.Join(
		reg.Command("/start", tg.Command{Handler: b.start, Description: "File a pest-control request"}),
		reg.Command("/cancel", tg.Command{Handler: b.cancel, Description: "Drop the current request", Aliases: []string{"stop"}}),
		reg.Command("/report", tg.Command{Handler: b.report, Description: "Orders per technician", AdminOnly: true}),
		reg.Callback(UniqueChoice, b.choice),
		reg.Callback(UniqueCancel, b.cancel),
	)
	if err != nil {
		return nil, nil, err
	}
	reg.OnUnknownCallback(func(c tele.Context) error {
		return tghelpers.SendText(c, "This button is no longer active. Send /start to begin.")
	})
	routes := router.Routes(reg, b, router.Options{
		AdminID: b.adminID,
		OnAdminReject: func(c tele.Context) error {
			return tghelpers.SendText(c, "This command is for the administrator only.")
		},
		Idle: b.idle,
	})
	return reg, routes, nil
}

func sessionKey(c tele.Context) state.Key {
	var chat int64
	if ch := c.Chat(); ch != nil {
		chat = ch.ID
	}
	return state.Key{Chat: chat, Role: state.RoleClient}
}

// Active reports whether the chat has an intake form open.
func (b *Bot) Active(c tele.Context) bool {
	ctx := tghelpers.BuildContext(c)
	_, ok, err := b.sessions.Get(ctx, sessionKey(c))
	if err != nil {
		logger.Session.ErrorContext(ctx, "session read failed",
			slog.String("event", "session.get"),
			slog.String("status", "fail"),
			slog.String("role", string(state.RoleClient)),
			slog.String("err", err.Error()),
		)
		return false
	}
	return ok
}

// Handle feeds a text message or a shared contact into the open form.
func (b *Bot) Handle(c tele.Context) error {
	defer b.locks.Lock(sessionKey(c))()
	if msg := c.Message(); msg != nil && msg.Contact != nil {
		return b.apply(c, intake.Contact(msg.Contact.PhoneNumber))
	}
	return b.apply(c, intake.Text(c.Text()))
}

func (b *Bot) start(c tele.Context) error {
	defer b.locks.Lock(sessionKey(c))()
	ctx := tghelpers.BuildContext(c)
	form := intake.New()
	if err := b.sessions.Put(ctx, sessionKey(c), form); err != nil {
		return b.storeFailed(c, err)
	}
	if err := tghelpers.SendText(c, "👋 Hi! Let's file a pest-control request. You can /cancel at any time."); err != nil {
		return err
	}
	return b.prompt(c, form.Step)
}

func (b *Bot) cancel(c tele.Context) error {
	defer b.locks.Lock(sessionKey(c))()
	ctx := tghelpers.BuildContext(c)
	if err := b.sessions.Delete(ctx, sessionKey(c)); err != nil {
		return b.storeFailed(c, err)
	}
	return tghelpers.SendText(c, "Request dropped. Send /start to begin again.", &tele.SendOptions{ReplyMarkup: keyboard.Hide()})
}

func (b *Bot) idle(c tele.Context) error {
	return tghelpers.SendText(c, "Send /start to file a pest-control request.")
}

// choice handles an option button. The payload is "<step>:<value>" so presses
// on an already answered question are recognised as stale.
func (b *Bot) choice(c tele.Context) error {
	payload, err := callbacks.Payload(c)
	if err != nil {
		return nil
	}
	step, value, _ := strings.Cut(payload, ":")

	defer b.locks.Lock(sessionKey(c))()
	ctx := tghelpers.BuildContext(c)
	form, ok, err := b.sessions.Get(ctx, sessionKey(c))
	if err != nil {
		return b.storeFailed(c, err)
	}
	if !ok {
		return b.idle(c)
	}
	if intake.Step(step) != form.Step {
		return tghelpers.SendText(c, "That question was already answered.")
	}
	return b.apply(c, intake.Choice(value))
}

// apply runs with the conversation lock held.
func (b *Bot) apply(c tele.Context, in intake.Input) error {
	ctx := tghelpers.BuildContext(c)
	key := sessionKey(c)
	form, ok, err := b.sessions.Get(ctx, key)
	if err != nil {
		return b.storeFailed(c, err)
	}
	if !ok {
		return b.idle(c)
	}

	res := form.Apply(in)
	if res.Err != nil {
		logger.SVCIntake.DebugContext(ctx, "input rejected",
			slog.String("event", "intake.reprompt"),
			slog.String("step", string(form.Step)),
			slog.String("err", res.Err.Error()),
		)
		if err := tghelpers.SendText(c, rejectText(form.Step, in)); err != nil {
			return err
		}
		return b.prompt(c, form.Step)
	}
	if res.Submission != nil {
		return b.submit(ctx, c, key, form, *res.Submission)
	}
	if err := b.sessions.Put(ctx, key, form); err != nil {
		return b.storeFailed(c, err)
	}
	return b.prompt(c, form.Step)
}

// submit persists a completed form. On failure the form stays in the session
// at Complete, so the next message retries the write with the same answers.
func (b *Bot) submit(ctx context.Context, c tele.Context, key state.Key, form *intake.Form, sub intake.Submission) error {
	res, err := b.orders.Submit(ctx, sub, key.Chat)
	if err != nil {
		form.ClientID = res.ClientID
		if perr := b.sessions.Put(ctx, key, form); perr != nil {
			return b.storeFailed(c, perr)
		}
		msg := "⚠️ We could not save your request. Send any message to try again, your answers are kept."
		if errors.Is(err, domain.ErrNoTechnicianAvailable) {
			msg = "⏳ No technician is available right now. Send any message later to try again, your answers are kept."
		}
		return tghelpers.SendText(c, msg)
	}

	ctx = tghelpers.Annotate(c, logger.Meta{Order: res.Order.Code})
	if err := b.sessions.Delete(ctx, key); err != nil {
		logger.Session.WarnContext(ctx, "session delete failed",
			slog.String("event", "session.delete"),
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
	}
	return tghelpers.SendText(c, ConfirmationText(sub, res.Order.Code),
		&tele.SendOptions{ParseMode: tele.ModeMarkdownV2, ReplyMarkup: keyboard.Hide()})
}

func (b *Bot) report(c tele.Context) error {
	stats, err := b.orders.Stats(tghelpers.BuildContext(c))
	if err != nil {
		return tghelpers.SendText(c, "Could not load the report, try again later.")
	}
	return tghelpers.SendMDV2(c, ReportText(stats))
}

func (b *Bot) storeFailed(c tele.Context, err error) error {
	logger.Session.ErrorContext(tghelpers.BuildContext(c), "session write failed",
		slog.String("event", "session.put"),
		slog.String("status", "fail"),
		slog.String("role", string(state.RoleClient)),
		slog.String("err", err.Error()),
	)
	return tghelpers.SendText(c, "⚠️ Something went wrong, please try again.")
}

func (b *Bot) prompt(c tele.Context, step intake.Step) error {
	text, markup := promptFor(step)
	if markup == nil {
		return tghelpers.SendText(c, text)
	}
	return tghelpers.SendText(c, text, &tele.SendOptions{ReplyMarkup: markup})
}

func promptFor(step intake.Step) (string, *tele.ReplyMarkup) {
	switch step {
	case intake.AwaitingName:
		return "What is your name?", nil
	case intake.AwaitingObjectType:
		return "What kind of premises need treatment?", choiceMarkup(step)
	case intake.AwaitingInsectQuantityBracket:
		return "Roughly how many insects have you seen?", choiceMarkup(step)
	case intake.AwaitingExperienceFlag:
		return "Have the premises been treated before?", choiceMarkup(step)
	case intake.AwaitingPhone:
		return "📞 Share your phone number with the button below or type it.", keyboard.AskContact("📱 Share phone number")
	case intake.AwaitingAddress:
		return "🏠 What is the address?", keyboard.Hide()
	}
	return "Send any message to submit your request.", nil
}

func choiceMarkup(step intake.Step) *tele.ReplyMarkup {
	opts := intake.OptionsFor(step)
	btns := make([]keyboard.Button, 0, len(opts))
	for _, o := range opts {
		btns = append(btns, keyboard.Button{Label: o.Label, Unique: UniqueChoice, Payload: string(step) + ":" + o.Value})
	}
	return keyboard.WithCancel(keyboard.Grid(2, btns...), UniqueCancel)
}

func rejectText(step intake.Step, in intake.Input) string {
	switch step {
	case intake.AwaitingName:
		return "Please send your name as a text message."
	case intake.AwaitingObjectType, intake.AwaitingInsectQuantityBracket, intake.AwaitingExperienceFlag:
		return "Please pick one of the buttons."
	case intake.AwaitingPhone:
		if in.Kind == intake.InputChoice {
			return "Please send your phone number."
		}
		return "The phone number must contain 10 to 15 digits."
	case intake.AwaitingAddress:
		return "The address must be at least 5 characters long."
	}
	return "Please try again."
}

// ConfirmationText echoes the submitted contact details in MarkdownV2.
func ConfirmationText(sub intake.Submission, code string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "✅ *Request %s received*\n\n", format.V2(code))
	fmt.Fprintf(&sb, "👤 Name: %s\n", format.V2(sub.Name))
	fmt.Fprintf(&sb, "📞 Phone: %s\n", format.V2(sub.Phone))
	fmt.Fprintf(&sb, "🏠 Address: %s\n\n", format.V2(sub.Address))
	sb.WriteString("A technician will contact you soon\\.")
	return sb.String()
}

// ReportText renders per-technician order counts in MarkdownV2.
func ReportText(stats []domain.TechnicianStats) string {
	if len(stats) == 0 {
		return "No technicians registered\\."
	}
	var sb strings.Builder
	sb.WriteString("📊 *Orders per technician*\n")
	for _, s := range stats {
		fmt.Fprintf(&sb, "\n%s: total %d, done %d, in progress %d",
			format.V2(s.Name), s.Total, s.Done, s.InProgress)
	}
	return sb.String()
}
