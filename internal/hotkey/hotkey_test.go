package hotkey

import (
	"errors"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"Shift+Ctrl+Z", "ctrl+shift+z", false},
		{"ctrl+shift+z", "ctrl+shift+z", false},
		{"cmd+enter", "meta+enter", false},
		{"Esc", "escape", false},
		{"alt+.", "alt+.", false},
		{"ctrl++", "ctrl++", false},
		{"]", "]", false},
		{"", "", true},
		{"z+ctrl", "", true},
		{"ctrl+", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Normalize(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Normalize(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
			if tt.wantErr && !errors.Is(err, ErrBadCombo) {
				t.Errorf("Normalize(%q) error = %v, want ErrBadCombo", tt.in, err)
			}
		})
	}
}

func TestKeymap_Overrides(t *testing.T) {
	k, err := New(map[string]string{Submit: "Shift+Enter, ctrl+s"})
	if err != nil {
		t.Fatal(err)
	}
	keys := k.Keys(Submit)
	if len(keys) != 2 || keys[0] != "shift+enter" || keys[1] != "ctrl+s" {
		t.Errorf("Keys(Submit) = %v", keys)
	}
	if got := k.Keys(Undo); len(got) != 1 || got[0] != "ctrl+z" {
		t.Errorf("default Undo keys = %v", got)
	}

	if _, err := New(map[string]string{"region:explode": "x"}); !errors.Is(err, ErrUnknownAction) {
		t.Errorf("unknown override error = %v", err)
	}
	if _, err := New(map[string]string{Skip: " , "}); !errors.Is(err, ErrBadCombo) {
		t.Errorf("empty override error = %v", err)
	}
}

func TestKeymap_Dispatch(t *testing.T) {
	k, err := New(nil)
	if err != nil {
		t.Fatal(err)
	}
	var calls []string
	if err := k.Bind(Delete, func() { calls = append(calls, Delete) }); err != nil {
		t.Fatal(err)
	}
	if err := k.Bind("nope", func() {}); !errors.Is(err, ErrUnknownAction) {
		t.Errorf("Bind(nope) error = %v", err)
	}

	if !k.Dispatch("Backspace") || !k.Dispatch("delete") {
		t.Error("both alternatives should reach the handler")
	}
	if len(calls) != 2 {
		t.Errorf("calls = %v", calls)
	}
	if k.Dispatch("ctrl+z") {
		t.Error("undo has no handler yet")
	}

	k.Unbind(Delete)
	if k.Bound(Delete) || k.Dispatch("backspace") {
		t.Error("Unbind() left the handler")
	}
}
