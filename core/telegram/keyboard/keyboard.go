// Package keyboard builds the inline and reply markups used by both bots.
package keyboard

import tele "gopkg.in/telebot.v4"

// CancelLabel is the text of the cancel button appended by WithCancel.
const CancelLabel = "❌ Cancel"

// Button is one inline button; Unique routes the press, Payload rides along.
type Button struct {
	Label   string
	Unique  string
	Payload string
}

// Row lays buttons out side by side on a single row.
func Row(btns ...Button) *tele.ReplyMarkup {
	return Grid(len(btns), btns...)
}

// Grid wraps btns into rows of at most perRow buttons.
func Grid(perRow int, btns ...Button) *tele.ReplyMarkup {
	if perRow < 1 {
		perRow = 1
	}
	m := &tele.ReplyMarkup{}
	var row []tele.InlineButton
	for _, b := range btns {
		row = append(row, *m.Data(b.Label, b.Unique, b.Payload).Inline())
		if len(row) == perRow {
			m.InlineKeyboard = append(m.InlineKeyboard, row)
			row = nil
		}
	}
	if len(row) > 0 {
		m.InlineKeyboard = append(m.InlineKeyboard, row)
	}
	return m
}

// WithCancel appends a full-width cancel row routed to unique.
func WithCancel(m *tele.ReplyMarkup, unique string) *tele.ReplyMarkup {
	btn := m.Data(CancelLabel, unique, "cancel")
	m.InlineKeyboard = append(m.InlineKeyboard, []tele.InlineButton{*btn.Inline()})
	return m
}

// Hide removes any reply keyboard shown to the user.
func Hide() *tele.ReplyMarkup {
	return &tele.ReplyMarkup{RemoveKeyboard: true}
}

// AskContact shows a one-time keyboard with a share-phone button.
func AskContact(label string) *tele.ReplyMarkup {
	m := &tele.ReplyMarkup{ResizeKeyboard: true, OneTimeKeyboard: true}
	m.Reply(m.Row(m.Contact(label)))
	return m
}
