// Package callbacks reads inline button presses. Buttons carry their id
// (telebot's Unique) and a payload, encoded as "\f<unique>|<payload>".
package callbacks

import (
	"errors"
	"strings"

	tele "gopkg.in/telebot.v4"
)

// ErrNoPayload is returned when a button press carries no payload.
var ErrNoPayload = errors.New("callbacks: empty payload")

// Split returns the button id and payload of cb. telebot decodes them
// itself only when a dedicated endpoint matched; otherwise Data is raw.
func Split(cb *tele.Callback) (unique, payload string) {
	if cb == nil {
		return "", ""
	}
	if cb.Unique != "" {
		return cb.Unique, cb.Data
	}
	unique, payload, _ = strings.Cut(strings.TrimPrefix(cb.Data, "\f"), "|")
	return strings.TrimSpace(unique), payload
}

// Unique returns the id of the pressed button.
func Unique(c tele.Context) string {
	unique, _ := Split(c.Callback())
	return unique
}

// Payload returns the trimmed payload of the pressed button.
func Payload(c tele.Context) (string, error) {
	_, payload := Split(c.Callback())
	if payload = strings.TrimSpace(payload); payload == "" {
		return "", ErrNoPayload
	}
	return payload, nil
}
