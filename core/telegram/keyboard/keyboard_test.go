package keyboard

import "testing"

func TestGrid(t *testing.T) {
	tests := []struct {
		name   string
		perRow int
		want   []int
	}{
		{"pairs", 2, []int{2, 1}},
		{"single column", 0, []int{1, 1, 1}},
		{"one row", 5, []int{3}},
	}
	btns := []Button{
		{Label: "A", Unique: "pick", Payload: "a"},
		{Label: "B", Unique: "pick", Payload: "b"},
		{Label: "C", Unique: "pick", Payload: "c"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Grid(tt.perRow, btns...)
			if len(m.InlineKeyboard) != len(tt.want) {
				t.Fatalf("rows = %d, want %d", len(m.InlineKeyboard), len(tt.want))
			}
			for i, n := range tt.want {
				if len(m.InlineKeyboard[i]) != n {
					t.Fatalf("row %d has %d buttons, want %d", i, len(m.InlineKeyboard[i]), n)
				}
			}
			last := m.InlineKeyboard[len(m.InlineKeyboard)-1]
			if got := last[len(last)-1]; got.Unique != "pick" || got.Data != "c" {
				t.Fatalf("last button = %+v", got)
			}
		})
	}
}

func TestWithCancel(t *testing.T) {
	m := WithCancel(Row(Button{Label: "A", Unique: "pick", Payload: "a"}), "flow_cancel")
	if len(m.InlineKeyboard) != 2 {
		t.Fatalf("rows = %d, want 2", len(m.InlineKeyboard))
	}
	if got := m.InlineKeyboard[1][0]; got.Unique != "flow_cancel" || got.Data != "cancel" || got.Text != CancelLabel {
		t.Fatalf("cancel button = %+v", got)
	}
}

func TestAskContact(t *testing.T) {
	m := AskContact("Share phone")
	if len(m.ReplyKeyboard) != 1 || !m.ReplyKeyboard[0][0].Contact {
		t.Fatalf("expected a single contact button, got %+v", m.ReplyKeyboard)
	}
	if !m.OneTimeKeyboard {
		t.Fatal("contact keyboard should be one-time")
	}
	if !Hide().RemoveKeyboard {
		t.Fatal("Hide must remove the keyboard")
	}
}
