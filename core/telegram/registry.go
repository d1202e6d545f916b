package telegram

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	tele "gopkg.in/telebot.v4"
)

// ErrDuplicate is returned when a command, alias or callback is registered twice.
var ErrDuplicate = errors.New("telegram: already registered")

// Command is a slash command of a bot.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	// AdminOnly commands are rejected for everyone but the administrator
	// and never appear in the menu.
	AdminOnly bool
	Hidden    bool
	// Aliases are extra names without the leading slash.
	Aliases []string
}

// Registry collects the commands and callback handlers of one bot. It is
// filled before the bot starts and only read afterwards.
type Registry struct {
	commands  map[string]Command
	aliases   map[string]string
	callbacks map[string]tele.HandlerFunc
	unknown   tele.HandlerFunc
}

// NewRegistry returns an empty registry whose unknown-callback handler
// answers with a short notice.
func NewRegistry() *Registry {
	return &Registry{
		commands:  map[string]Command{},
		aliases:   map[string]string{},
		callbacks: map[string]tele.HandlerFunc{},
		unknown: func(c tele.Context) error {
			return c.Respond(&tele.CallbackResponse{Text: "This button is no longer active"})
		},
	}
}

// Command registers cmd under name, which must start with a slash.
func (r *Registry) Command(name string, cmd Command) error {
	switch {
	case !strings.HasPrefix(name, "/") || len(name) < 2:
		return fmt.Errorf("telegram: command %q must start with a slash", name)
	case cmd.Handler == nil || cmd.Description == "":
		return fmt.Errorf("telegram: command %s needs a handler and a description", name)
	}
	if _, _, taken := r.Lookup(name); taken {
		return fmt.Errorf("%w: command %s", ErrDuplicate, name)
	}
	for _, alias := range cmd.Aliases {
		if _, _, taken := r.Lookup(alias); taken {
			return fmt.Errorf("%w: alias %s", ErrDuplicate, alias)
		}
	}
	r.commands[name] = cmd
	for _, alias := range cmd.Aliases {
		r.aliases["/"+strings.TrimPrefix(alias, "/")] = name
	}
	return nil
}

// Callback registers h for inline buttons whose unique id is unique.
func (r *Registry) Callback(unique string, h tele.HandlerFunc) error {
	if unique == "" || h == nil {
		return fmt.Errorf("telegram: callback %q needs a handler", unique)
	}
	if _, ok := r.callbacks[unique]; ok {
		return fmt.Errorf("%w: callback %s", ErrDuplicate, unique)
	}
	r.callbacks[unique] = h
	return nil
}

// OnUnknownCallback replaces the handler for buttons nobody registered.
func (r *Registry) OnUnknownCallback(h tele.HandlerFunc) {
	if h != nil {
		r.unknown = h
	}
}

// Lookup resolves the first word of text, such as "/stop@pestbot now", to
// a registered command and its canonical name.
func (r *Registry) Lookup(text string) (string, Command, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", Command{}, false
	}
	name, _, _ := strings.Cut(fields[0], "@")
	name = "/" + strings.TrimPrefix(name, "/")
	if canonical, ok := r.aliases[name]; ok {
		name = canonical
	}
	cmd, ok := r.commands[name]
	return name, cmd, ok
}

// CallbackHandler returns the handler for unique, falling back to the
// unknown-callback handler.
func (r *Registry) CallbackHandler(unique string) (tele.HandlerFunc, bool) {
	if h, ok := r.callbacks[unique]; ok {
		return h, true
	}
	return r.unknown, false
}

// Names returns the canonical command names in order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Menu returns the commands shown in the Telegram command menu.
func (r *Registry) Menu() []tele.Command {
	var menu []tele.Command
	for _, name := range r.Names() {
		if cmd := r.commands[name]; !cmd.Hidden && !cmd.AdminOnly {
			menu = append(menu, tele.Command{Text: name, Description: cmd.Description})
		}
	}
	return menu
}
