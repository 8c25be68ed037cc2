package window

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/veandco/go-sdl2/sdl"
)

// Action is a discrete command bound to a key press.
type Action int

const (
	ActionNone Action = iota
	ActionQuit
	ActionNextModel
	ActionPreviousModel
	ActionNextImage
	ActionToggleAutoRotate
	ActionToggleBlend
	ActionReset
	ActionToggleSkybox
	ActionToggleFullscreen
)

var keyActions = map[sdl.Keycode]Action{
	sdl.K_ESCAPE: ActionQuit,
	sdl.K_RIGHT:  ActionNextModel,
	sdl.K_LEFT:   ActionPreviousModel,
	sdl.K_i:      ActionNextImage,
	sdl.K_r:      ActionToggleAutoRotate,
	sdl.K_t:      ActionToggleBlend,
	sdl.K_l:      ActionReset,
	sdl.K_c:      ActionToggleSkybox,
	sdl.K_f:      ActionToggleFullscreen,
}

// KeyAction maps a pressed key to its action.
func KeyAction(key sdl.Keycode) Action {
	return keyActions[key]
}

// moveKeys are held down rather than pressed; each contributes a direction
// in view space.
var moveKeys = []struct {
	scancode sdl.Scancode
	dir      mgl32.Vec3
}{
	{sdl.SCANCODE_W, mgl32.Vec3{0, 0, 1}},
	{sdl.SCANCODE_S, mgl32.Vec3{0, 0, -1}},
	{sdl.SCANCODE_A, mgl32.Vec3{1, 0, 0}},
	{sdl.SCANCODE_D, mgl32.Vec3{-1, 0, 0}},
	{sdl.SCANCODE_SPACE, mgl32.Vec3{0, -1, 0}},
	{sdl.SCANCODE_LSHIFT, mgl32.Vec3{0, 1, 0}},
}

// MoveDirection sums the directions of the movement keys held in state, as
// returned by sdl.GetKeyboardState.
func MoveDirection(state []uint8) mgl32.Vec3 {
	var dir mgl32.Vec3
	for _, k := range moveKeys {
		if int(k.scancode) < len(state) && state[k.scancode] != 0 {
			dir = dir.Add(k.dir)
		}
	}
	return dir
}
