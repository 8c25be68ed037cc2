package render

import "github.com/vkngwrapper/core/v3/core1_0"

// Config carries the settings fixed for the lifetime of a device context.
type Config struct {
	ApplicationName string

	// EnableValidation turns on the Khronos validation layer and routes its
	// messages to Logger.
	EnableValidation bool
	// PreferMailbox picks the mailbox present mode when the surface offers it.
	// FIFO is used otherwise.
	PreferMailbox bool
	// MaxSamples caps the MSAA sample count.
	MaxSamples core1_0.SampleCountFlags

	// PipelineCachePath is read on startup and written on Destroy. Empty
	// disables the on-disk cache.
	PipelineCachePath string
	// SkyboxDir holds the six cubemap faces, see asset.CubemapFaceNames.
	SkyboxDir string
}

func DefaultConfig() Config {
	return Config{
		ApplicationName: "scop",
		PreferMailbox:   true,
		MaxSamples:      core1_0.Samples8,
		SkyboxDir:       "assets/cubemap",
	}
}
