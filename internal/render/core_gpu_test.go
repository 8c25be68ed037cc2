package render

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/vkngwrapper/core/v3/core1_0"

	"github.com/vkngwrapper/scop/internal/asset"
	"github.com/vkngwrapper/scop/internal/window"
)

func writeSolidPNG(t *testing.T, path string, w, h int, c color.RGBA) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func newTestCore(t *testing.T) (*Core, *window.Window, string) {
	t.Helper()
	requireGPU(t)

	shaders, err := LoadShaders(filepath.Join("..", "..", "shaders"))
	if err != nil {
		t.Skipf("compiled shaders not available, run go generate ./shaders: %v", err)
	}

	dir := t.TempDir()
	skyboxDir := filepath.Join(dir, "cubemap")
	if err := os.Mkdir(skyboxDir, 0o755); err != nil {
		t.Fatal(err)
	}
	for i, name := range asset.CubemapFaceNames {
		writeSolidPNG(t, filepath.Join(skyboxDir, name), 32, 32, color.RGBA{uint8(i * 40), 0, 0, 255})
	}
	texturePath := filepath.Join(dir, "texture.png")
	writeSolidPNG(t, texturePath, 64, 64, color.RGBA{0, 128, 255, 255})

	win, err := window.Open(window.Options{Title: "scop test", Width: 320, Height: 240, Hidden: true})
	if err != nil {
		t.Skipf("no window system: %v", err)
	}
	t.Cleanup(win.Destroy)

	cfg := DefaultConfig()
	cfg.SkyboxDir = skyboxDir
	cfg.PipelineCachePath = filepath.Join(dir, "pipelines.bin")

	w, h := win.DrawableSize()
	c, err := New(cfg, win, w, h, texturePath, asset.SkyboxCube(), shaders)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(c.Destroy)

	return c, win, dir
}

func checkPerImageCounts(t *testing.T, c *Core, when string) {
	t.Helper()
	images := c.swapchain.ImageCount()
	if c.descriptors.Count() != images || c.recorder.Count() != images || len(c.descriptors.uniforms) != images {
		t.Errorf("%s: %d images, %d descriptor sets, %d command buffers, %d uniform buffers",
			when, images, c.descriptors.Count(), c.recorder.Count(), len(c.descriptors.uniforms))
	}
}

func TestGPUCoreLifecycle(t *testing.T) {
	c, win, dir := newTestCore(t)
	w, h := win.DrawableSize()

	for i := 0; i < 5; i++ {
		if err := c.Frame(w, h); err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
	}

	checkPerImageCounts(t, c, "after creation")

	// Minimized: skipped, still dirty.
	c.Resized()
	if err := c.Frame(0, 0); err != nil {
		t.Fatalf("zero-area frame: %v", err)
	}
	if !c.status.dirty() {
		t.Error("zero-area frame cleared the dirty flag")
	}
	if err := c.Frame(w, h); err != nil {
		t.Fatalf("frame after restore: %v", err)
	}
	if c.model.Geometry() == nil || c.skybox.Geometry() == nil {
		t.Error("geometry was not reattached after recreation")
	}
	checkPerImageCounts(t, c, "after recreation")

	if err := c.RecreateSwapchain(w, h); err != nil {
		t.Fatalf("RecreateSwapchain() error = %v", err)
	}
	checkPerImageCounts(t, c, "after explicit recreation")
	if stale, err := c.DrawFrame(); err != nil {
		t.Fatalf("DrawFrame() after recreation: %v", err)
	} else if stale {
		t.Log("swapchain reported stale right after recreation")
	}

	if err := c.SetSkyboxVisible(false); err != nil {
		t.Fatalf("SetSkyboxVisible(false): %v", err)
	}
	if err := c.Frame(w, h); err != nil {
		t.Fatal(err)
	}

	oldTexture := c.modelTexture
	err := c.LoadNewTexture(filepath.Join(dir, "missing.png"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("LoadNewTexture(missing) error = %v, want ErrNotExist", err)
	}
	if c.modelTexture != oldTexture {
		t.Error("failed texture load replaced the current texture")
	}

	if err := c.LoadNewTexture(filepath.Join(dir, "cubemap", "top.png")); err != nil {
		t.Fatalf("LoadNewTexture: %v", err)
	}

	cube := asset.SkyboxCube()
	if err := c.LoadNewModel(cube); err != nil {
		t.Fatalf("LoadNewModel: %v", err)
	}
	if c.model.Geometry().IndexCount != len(cube.Indices) {
		t.Error("model geometry not replaced")
	}

	c.Transforms().Rotate(30, 10)
	c.ResetTransforms()
	if c.Transforms().Model != mgl32.Ident4() {
		t.Error("ResetTransforms did not restore the identity model matrix")
	}

	if err := c.Frame(w, h); err != nil {
		t.Fatal(err)
	}
	if err := c.WaitIdle(); err != nil {
		t.Fatal(err)
	}
	if c.Extent() == (core1_0.Extent2D{}) {
		t.Error("Extent() is zero with a live swapchain")
	}

	c.Destroy()
	if _, err := os.Stat(filepath.Join(dir, "pipelines.bin")); err != nil {
		t.Errorf("pipeline cache not saved on Destroy: %v", err)
	}
}
