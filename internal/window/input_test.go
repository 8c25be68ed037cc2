package window

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/veandco/go-sdl2/sdl"
)

func TestKeyAction(t *testing.T) {
	tests := []struct {
		key  sdl.Keycode
		want Action
	}{
		{sdl.K_ESCAPE, ActionQuit},
		{sdl.K_RIGHT, ActionNextModel},
		{sdl.K_LEFT, ActionPreviousModel},
		{sdl.K_i, ActionNextImage},
		{sdl.K_r, ActionToggleAutoRotate},
		{sdl.K_t, ActionToggleBlend},
		{sdl.K_l, ActionReset},
		{sdl.K_c, ActionToggleSkybox},
		{sdl.K_f, ActionToggleFullscreen},
		{sdl.K_w, ActionNone},
		{sdl.K_z, ActionNone},
	}
	for _, tt := range tests {
		if got := KeyAction(tt.key); got != tt.want {
			t.Errorf("KeyAction(%v) = %v, want %v", tt.key, got, tt.want)
		}
	}
}

func TestMoveDirection(t *testing.T) {
	state := make([]uint8, sdl.NUM_SCANCODES)

	if got := MoveDirection(state); got != (mgl32.Vec3{}) {
		t.Errorf("no keys held: %v, want zero", got)
	}

	state[sdl.SCANCODE_W] = 1
	state[sdl.SCANCODE_A] = 1
	if got, want := MoveDirection(state), (mgl32.Vec3{1, 0, 1}); got != want {
		t.Errorf("W+A: %v, want %v", got, want)
	}

	state[sdl.SCANCODE_S] = 1
	state[sdl.SCANCODE_SPACE] = 1
	if got, want := MoveDirection(state), (mgl32.Vec3{1, -1, 0}); got != want {
		t.Errorf("W+A+S+Space: %v, want %v", got, want)
	}

	if got := MoveDirection(nil); got != (mgl32.Vec3{}) {
		t.Errorf("nil state: %v, want zero", got)
	}
}
