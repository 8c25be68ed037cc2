package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/loov/hrtime"
	"github.com/veandco/go-sdl2/sdl"

	"github.com/vkngwrapper/scop/internal/asset"
	"github.com/vkngwrapper/scop/internal/render"
	"github.com/vkngwrapper/scop/internal/window"
)

const (
	title  = "scop"
	width  = 800
	height = 600
)

const usage = `Left-Click: rotate model with mouse
Mouse-Wheel: zoom
WASD: move around
Space, Left-Shift: move up and down
<- ->: switch models
I: switch texture image
R: toggle rotation
T: toggle between vertex colors and texture
L: reset camera and model
C: toggle skybox
F: toggle fullscreen
`

type options struct {
	modelDir   string
	imageDir   string
	skyboxDir  string
	shaderDir  string
	cachePath  string
	validation bool
	noMailbox  bool
	logLevel   slog.Level
}

// defaultCachePath is empty when the platform has no cache directory.
func defaultCachePath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "scop", "pipelines.bin")
}

func parseOptions() options {
	var opts options
	flag.StringVar(&opts.modelDir, "models", "assets/models", "directory of .obj models")
	flag.StringVar(&opts.imageDir, "images", "assets/images", "directory of texture images")
	flag.StringVar(&opts.skyboxDir, "skybox", "assets/cubemap", "directory holding the six cubemap faces")
	flag.StringVar(&opts.shaderDir, "shaders", "shaders", "directory of compiled SPIR-V shaders")
	flag.StringVar(&opts.cachePath, "pipeline-cache", defaultCachePath(), "pipeline cache file, empty disables it")
	flag.BoolVar(&opts.validation, "validation", false, "enable the Khronos validation layer")
	flag.BoolVar(&opts.noMailbox, "vsync", false, "always present with FIFO")
	flag.TextVar(&opts.logLevel, "log-level", slog.LevelInfo, "log level: debug, info, warn or error")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage of %s:\n", os.Args[0])
		flag.PrintDefaults()
		fmt.Fprintf(flag.CommandLine.Output(), "\nControls:\n%s", usage)
	}
	flag.Parse()
	return opts
}

type app struct {
	opts   options
	logger *slog.Logger

	window *window.Window
	core   *render.Core

	models *asset.Carousel
	images *asset.Carousel

	autoRotate bool
	dragging   bool
	dragX      int
	dragY      int
	wheel      float32

	lastFrame time.Duration
	fpsStart  time.Duration
	fpsFrames int

	// err is a render failure raised by a key action; it ends the loop.
	err error
}

func (a *app) Run() error {
	defer a.cleanup()

	err := a.init()
	if err != nil {
		return err
	}

	return a.mainLoop()
}

func (a *app) init() error {
	shaders, err := render.LoadShaders(a.opts.shaderDir)
	if err != nil {
		return err
	}

	modelPath, err := a.models.Next(0, asset.IsModel)
	if err != nil {
		return errors.Wrap(err, "failed to find a model")
	}
	mesh, err := asset.LoadOBJ(modelPath)
	if err != nil {
		return err
	}

	imagePath, err := a.images.Next(0, asset.IsImage)
	if err != nil {
		return errors.Wrap(err, "failed to find an image")
	}

	a.window, err = window.Open(window.Options{Title: title, Width: width, Height: height})
	if err != nil {
		return err
	}

	cfg := render.DefaultConfig()
	cfg.EnableValidation = a.opts.validation
	cfg.PreferMailbox = !a.opts.noMailbox
	cfg.PipelineCachePath = a.opts.cachePath
	cfg.SkyboxDir = a.opts.skyboxDir

	w, h := a.window.DrawableSize()
	a.core, err = render.New(cfg, a.window, w, h, imagePath, mesh, shaders)
	if err != nil {
		return err
	}

	a.logger.Info("loaded", "model", modelPath, "image", imagePath)
	return nil
}

func (a *app) mainLoop() error {
	a.lastFrame = hrtime.Now()
	a.fpsStart = a.lastFrame

	for {
		for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
			if !a.handleEvent(event) {
				return a.core.WaitIdle()
			}
			if a.err != nil {
				return a.err
			}
		}

		now := hrtime.Now()
		dt := float32((now - a.lastFrame).Seconds())
		a.lastFrame = now

		a.update(dt)

		err := a.core.Frame(a.window.DrawableSize())
		if err != nil {
			return err
		}

		a.countFrame(now)
	}
}

// handleEvent applies one SDL event and reports whether the loop should go on.
func (a *app) handleEvent(event sdl.Event) bool {
	switch e := event.(type) {
	case *sdl.QuitEvent:
		return false
	case *sdl.WindowEvent:
		switch e.Event {
		case sdl.WINDOWEVENT_RESIZED, sdl.WINDOWEVENT_SIZE_CHANGED, sdl.WINDOWEVENT_RESTORED:
			a.core.Resized()
		}
	case *sdl.KeyboardEvent:
		if e.Type != sdl.KEYDOWN || e.Repeat != 0 {
			return true
		}
		return a.handleAction(window.KeyAction(e.Keysym.Sym))
	case *sdl.MouseButtonEvent:
		if e.Button == sdl.BUTTON_LEFT {
			a.dragging = e.State == sdl.PRESSED
		}
	case *sdl.MouseMotionEvent:
		if a.dragging {
			a.dragX += int(e.XRel)
			a.dragY += int(e.YRel)
		}
	case *sdl.MouseWheelEvent:
		a.wheel += float32(e.Y)
	}
	return true
}

func (a *app) handleAction(action window.Action) bool {
	switch action {
	case window.ActionQuit:
		return false
	case window.ActionNextModel:
		a.loadModel(1)
	case window.ActionPreviousModel:
		a.loadModel(-1)
	case window.ActionNextImage:
		a.loadImage()
	case window.ActionToggleAutoRotate:
		a.autoRotate = !a.autoRotate
	case window.ActionToggleBlend:
		a.core.Transforms().ToggleBlend()
	case window.ActionReset:
		a.core.ResetTransforms()
	case window.ActionToggleSkybox:
		if err := a.core.SetSkyboxVisible(!a.core.SkyboxVisible()); err != nil {
			a.report("failed to toggle skybox", err)
		}
	case window.ActionToggleFullscreen:
		if err := a.window.ToggleFullscreen(); err != nil {
			a.logger.Warn("failed to toggle fullscreen", "error", err)
		}
		a.core.Resized()
	}
	return true
}

func (a *app) loadModel(offset int) {
	path, err := a.models.Next(offset, asset.IsModel)
	if err != nil {
		a.logger.Warn("failed to find a model", "error", err)
		return
	}

	mesh, err := asset.LoadOBJ(path)
	if err != nil {
		a.logger.Warn("failed to load model", "path", path, "error", err)
		return
	}

	if err := a.core.LoadNewModel(mesh); err != nil {
		a.report("failed to upload model", err, "path", path)
		return
	}
	a.logger.Info("model loaded", "path", path, "vertices", len(mesh.Vertices), "indices", len(mesh.Indices))
}

func (a *app) loadImage() {
	path, err := a.images.Next(1, asset.IsImage)
	if err != nil {
		a.logger.Warn("failed to find an image", "error", err)
		return
	}

	if err := a.core.LoadNewTexture(path); err != nil {
		a.report("failed to load image", err, "path", path)
		return
	}
	a.logger.Info("image loaded", "path", path)
}

// report keeps asset errors as warnings and stops the loop on render
// failures, after which the core cannot draw.
func (a *app) report(msg string, err error, args ...any) {
	if errors.Is(err, render.ErrFatal) {
		a.err = errors.Wrap(err, msg)
		return
	}
	a.logger.Warn(msg, append(args, "error", err)...)
}

// update folds the input gathered since the last frame into the transforms.
func (a *app) update(dt float32) {
	t := a.core.Transforms()

	move := window.MoveDirection(sdl.GetKeyboardState())
	t.Translate(move.Mul(dt))

	extent := a.core.Extent()
	t.RotateByDrag(a.dragX, a.dragY, int(extent.Width), int(extent.Height))
	a.dragX, a.dragY = 0, 0

	if a.autoRotate {
		t.AutoRotate(dt)
	}

	t.Zoom(a.wheel)
	a.wheel = 0

	t.Advance(dt)
}

func (a *app) countFrame(now time.Duration) {
	a.fpsFrames++
	elapsed := now - a.fpsStart
	if elapsed < time.Second {
		return
	}

	fps := float64(a.fpsFrames) / elapsed.Seconds()
	a.logger.Info("frame rate", "fps", fmt.Sprintf("%.1f", fps))
	a.window.SetTitle(fmt.Sprintf("%s - %.0f fps", title, fps))
	a.fpsStart = now
	a.fpsFrames = 0
}

func (a *app) cleanup() {
	if a.core != nil {
		a.core.Destroy()
	}
	a.window.Destroy()
}

func main() {
	runtime.LockOSThread()

	opts := parseOptions()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: opts.logLevel}))
	render.SetLogger(logger)

	a := &app{
		opts:       opts,
		logger:     logger,
		models:     asset.NewCarousel(opts.modelDir),
		images:     asset.NewCarousel(opts.imageDir),
		autoRotate: true,
	}

	err := a.Run()
	if err != nil {
		log.Fatalf("%+v\n", err)
	}
}
