package telegram

import (
	"errors"
	"testing"

	tele "gopkg.in/telebot.v4"
)

func noop(tele.Context) error { return nil }

func TestRegistryCommands(t *testing.T) {
	reg := NewRegistry()
	for name, cmd := range map[string]Command{
		"/start":  {Handler: noop, Description: "Start"},
		"/report": {Handler: noop, Description: "Report", AdminOnly: true},
		"/cancel": {Handler: noop, Description: "Cancel", Aliases: []string{"stop"}},
	} {
		if err := reg.Command(name, cmd); err != nil {
			t.Fatalf("Command(%s): %v", name, err)
		}
	}
	if err := reg.Command("noslash", Command{Handler: noop, Description: "x"}); err == nil {
		t.Fatal("expected a name without slash to fail")
	}
	if err := reg.Command("/start", Command{Handler: noop, Description: "dup"}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("duplicate err = %v", err)
	}
	if err := reg.Command("/halt", Command{Handler: noop, Description: "x", Aliases: []string{"stop"}}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("duplicate alias err = %v", err)
	}

	menu := reg.Menu()
	if len(menu) != 2 || menu[0].Text != "/cancel" || menu[1].Text != "/start" {
		t.Fatalf("menu = %+v", menu)
	}
	tests := []struct {
		text string
		want string
		ok   bool
	}{
		{"/stop", "/cancel", true},
		{"/stop@pest_bot please", "/cancel", true},
		{"start", "/start", true},
		{"/missing", "/missing", false},
		{"   ", "", false},
	}
	for _, tt := range tests {
		name, _, ok := reg.Lookup(tt.text)
		if name != tt.want || ok != tt.ok {
			t.Fatalf("Lookup(%q) = %q, %v", tt.text, name, ok)
		}
	}
}

func TestRegistryCallbacks(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Callback("order_accept", noop); err != nil {
		t.Fatalf("Callback: %v", err)
	}
	if err := reg.Callback("order_accept", noop); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("duplicate err = %v", err)
	}
	if err := reg.Callback("", noop); err == nil {
		t.Fatal("expected empty unique to fail")
	}
	if _, ok := reg.CallbackHandler("order_accept"); !ok {
		t.Fatal("callback not found")
	}

	var unknown int
	reg.OnUnknownCallback(func(tele.Context) error { unknown++; return nil })
	h, ok := reg.CallbackHandler("gone")
	if ok || h == nil {
		t.Fatalf("unknown callback = %v, %v", h, ok)
	}
	_ = h(nil)
	if unknown != 1 {
		t.Fatalf("unknown handler calls = %d", unknown)
	}
}
