package render

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
)

func TestDrawFrameWithoutSwapchainIsStale(t *testing.T) {
	c := &Core{}

	stale, err := c.DrawFrame()
	if err != nil {
		t.Fatalf("DrawFrame() error = %v", err)
	}
	if !stale {
		t.Error("DrawFrame() without a swapchain should report stale")
	}
	if !c.status.dirty() {
		t.Error("swapchain status not dirty")
	}
}

func TestDrawFrameWithIncompleteCommandBuffers(t *testing.T) {
	tests := []struct {
		name     string
		recorder *CommandRecorder
	}{
		{"no buffers", &CommandRecorder{}},
		{"fewer buffers than images", &CommandRecorder{buffers: make([]core1_0.CommandBuffer, 2)}},
		{"no recorder", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Core{
				swapchain: &Swapchain{Images: make([]core1_0.Image, 3)},
				recorder:  tt.recorder,
			}

			stale, err := c.DrawFrame()
			if err != nil {
				t.Fatalf("DrawFrame() error = %v", err)
			}
			if !stale || !c.status.dirty() {
				t.Errorf("stale = %v, dirty = %v, want both true", stale, c.status.dirty())
			}
		})
	}
}

func TestRecordFailureIsFatal(t *testing.T) {
	c := &Core{
		swapchain:   &Swapchain{Framebuffers: make([]core1_0.Framebuffer, 2)},
		descriptors: &DescriptorManager{},
		recorder:    &CommandRecorder{},
		model:       &Pipeline{Name: "model"},
	}

	err := c.record()
	if err == nil {
		t.Fatal("record() with 0 descriptor sets for 2 framebuffers should fail")
	}
	if !errors.Is(err, ErrFatal) {
		t.Errorf("record() error = %v, want ErrFatal", err)
	}
	if !c.status.dirty() {
		t.Error("failed recording did not mark the swapchain dirty")
	}
	if c.recorder.Count() != 0 {
		t.Errorf("%d command buffers left after a failed recording", c.recorder.Count())
	}
}

func TestSetSkyboxVisibleChangesDrawOrder(t *testing.T) {
	model := &Pipeline{Name: "model"}
	skybox := &Pipeline{Name: "skybox"}
	c := &Core{
		device:        &DeviceContext{},
		model:         model,
		skybox:        skybox,
		skyboxVisible: true,
	}

	steps := []struct {
		visible bool
		want    []*Pipeline
	}{
		{false, []*Pipeline{model}},
		{false, []*Pipeline{model}},
		{true, []*Pipeline{skybox, model}},
	}
	for i, step := range steps {
		if err := c.SetSkyboxVisible(step.visible); err != nil {
			t.Fatalf("step %d: SetSkyboxVisible(%v) error = %v", i, step.visible, err)
		}
		if c.SkyboxVisible() != step.visible {
			t.Errorf("step %d: SkyboxVisible() = %v", i, c.SkyboxVisible())
		}

		got := c.pipelines()
		if len(got) != len(step.want) {
			t.Fatalf("step %d: pipelines = %v, want %v", i, names(got), names(step.want))
		}
		for j := range got {
			if got[j] != step.want[j] {
				t.Errorf("step %d: pipelines = %v, want %v", i, names(got), names(step.want))
			}
		}
	}
}

func TestDestroySwapchainResourcesParksGeometry(t *testing.T) {
	modelGeometry := &Geometry{IndexCount: 36}
	skyboxGeometry := &Geometry{IndexCount: 36}
	c := &Core{
		device:      &DeviceContext{},
		swapchain:   &Swapchain{},
		model:       &Pipeline{Name: "model", geometry: modelGeometry},
		skybox:      &Pipeline{Name: "skybox", geometry: skyboxGeometry},
		recorder:    &CommandRecorder{},
		descriptors: &DescriptorManager{},
	}

	c.destroySwapchainResources()

	if c.swapchain != nil || c.model != nil || c.skybox != nil {
		t.Error("swapchain or pipelines survived teardown")
	}
	if c.parked.model != modelGeometry || c.parked.skybox != skyboxGeometry {
		t.Error("geometry was not parked")
	}
	if c.recorder.Count() != 0 || c.descriptors.Count() != 0 {
		t.Error("per-image resources survived teardown")
	}

	// A second teardown, as after a failed rebuild, keeps the parked geometry.
	c.destroySwapchainResources()
	if c.parked.model != modelGeometry || c.parked.skybox != skyboxGeometry {
		t.Error("second teardown dropped the parked geometry")
	}
}
