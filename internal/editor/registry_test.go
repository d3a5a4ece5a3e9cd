package editor

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/ironsheep/easy-token-mcp/internal/entity"
)

func TestSessionID(t *testing.T) {
	tests := []struct {
		name   string
		target entity.Target
		want   string
	}{
		{"actor", entity.Target{Actor: entity.Actor{ID: "a1"}}, "easy-token-editor-a1"},
		{"unlinked token", entity.Target{
			Actor: entity.Actor{ID: "a1"},
			Token: &entity.TokenRef{SceneID: "s1", TokenID: "t2"},
		}, "easy-token-editor-a1-t2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SessionID(tt.target); got != tt.want {
				t.Errorf("SessionID: got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRegistry_OpenFocusesExisting(t *testing.T) {
	f := newFixture(t)
	first := f.open(t, "a1")

	again, focused, err := f.registry.Open(context.Background(), "a1")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if !focused || again != first {
		t.Error("second Open should focus the existing session")
	}

	// A linked token edits its actor.
	linked, focused, err := f.registry.Open(context.Background(), "Scene.s1.Token.t1")
	if err != nil {
		t.Fatalf("Open linked token failed: %v", err)
	}
	if !focused || linked != first {
		t.Error("linked token should focus the actor session")
	}

	token := f.open(t, "Scene.s1.Token.t2")
	if token == first {
		t.Error("unlinked token should get its own session")
	}

	want := []string{"easy-token-editor-a1", "easy-token-editor-a1-t2"}
	if got := f.registry.IDs(); !reflect.DeepEqual(got, want) {
		t.Errorf("IDs: got %v, want %v", got, want)
	}
}

func TestRegistry_OpenUnknown(t *testing.T) {
	f := newFixture(t)

	tests := []string{"missing", "Scene.s1.Token.nope", "Scene.s1"}
	for _, ref := range tests {
		t.Run(ref, func(t *testing.T) {
			if _, _, err := f.registry.Open(context.Background(), ref); err == nil {
				t.Errorf("Open(%q) should fail", ref)
			}
		})
	}
	if len(f.registry.IDs()) != 0 {
		t.Error("failed opens must not register sessions")
	}
}

func TestRegistry_CloseAndReopen(t *testing.T) {
	f := newFixture(t)
	s := f.open(t, "a1")

	if err := f.registry.Close(s.ID()); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !s.Closed() {
		t.Error("session should be closed")
	}
	if _, err := f.registry.Get(s.ID()); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Get after Close: got %v, want ErrSessionNotFound", err)
	}
	if err := f.registry.Close(s.ID()); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("second Close: got %v, want ErrSessionNotFound", err)
	}

	reopened := f.open(t, "a1")
	if reopened == s {
		t.Error("reopen should create a fresh session")
	}
}

func TestRegistry_CloseAll(t *testing.T) {
	f := newFixture(t)
	a := f.open(t, "a1")
	b := f.open(t, "a2")

	f.registry.CloseAll()

	if !a.Closed() || !b.Closed() {
		t.Error("every session should be closed")
	}
	if ids := f.registry.IDs(); len(ids) != 0 {
		t.Errorf("IDs after CloseAll: got %v", ids)
	}
}

type recordingHost struct {
	buttons []HeaderButton
}

func (h *recordingHost) AddSheetHeaderButton(b HeaderButton) {
	h.buttons = append(h.buttons, b)
}

func TestRegistry_InstallOnce(t *testing.T) {
	f := newFixture(t)
	host := &recordingHost{}

	f.registry.Install(host)
	f.registry.Install(host)

	if len(host.buttons) != 1 {
		t.Fatalf("buttons: got %d, want 1", len(host.buttons))
	}
	b := host.buttons[0]
	if b.Label != "Easy-Token" || b.Icon != "fas fa-image" || b.Class != "lvk-easy-token" {
		t.Errorf("button: got %+v", b)
	}

	s, focused, err := b.OnClick(context.Background(), "a1")
	if err != nil || focused {
		t.Fatalf("OnClick: got focused=%v err=%v", focused, err)
	}
	if _, focused, _ := b.OnClick(context.Background(), "a1"); !focused {
		t.Error("second click should focus the open editor")
	}
	if s.ID() != "easy-token-editor-a1" {
		t.Errorf("session id: got %q", s.ID())
	}
}
