package render

type swapchainState int

const (
	swapchainValid swapchainState = iota
	swapchainDirty
	swapchainRecreating
)

func (s swapchainState) String() string {
	switch s {
	case swapchainValid:
		return "valid"
	case swapchainDirty:
		return "dirty"
	case swapchainRecreating:
		return "recreating"
	}
	return "unknown"
}

// frameAction is what the next frame has to do before, or instead of,
// drawing.
type frameAction int

const (
	frameDraw frameAction = iota
	frameRecreate
	frameSkip
)

// swapchainStatus tracks whether the swapchain still matches the surface.
// A resize or a stale acquire/present marks it dirty; the next frame with a
// drawable area rebuilds it. A zero area (minimized window) stays dirty and
// skips frame work until the window comes back.
type swapchainStatus struct {
	state swapchainState
}

func (s *swapchainStatus) markDirty() {
	s.state = swapchainDirty
}

func (s *swapchainStatus) dirty() bool {
	return s.state != swapchainValid
}

func (s *swapchainStatus) next(width, height int) frameAction {
	if s.state == swapchainValid {
		return frameDraw
	}

	if width <= 0 || height <= 0 {
		s.state = swapchainDirty
		return frameSkip
	}

	s.state = swapchainRecreating
	return frameRecreate
}

// recreated is called once a rebuild finished. A failed rebuild leaves the
// swapchain dirty so the next frame tries again.
func (s *swapchainStatus) recreated(err error) {
	if err != nil {
		s.state = swapchainDirty
		return
	}
	s.state = swapchainValid
}
