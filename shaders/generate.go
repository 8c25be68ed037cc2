// Package shaders holds the GLSL sources of the model and skybox pipelines.
// The render core loads the compiled .spv files from this directory.
package shaders

//go:generate glslc model.vert -o model.vert.spv
//go:generate glslc model.frag -o model.frag.spv
//go:generate glslc skybox.vert -o skybox.vert.spv
//go:generate glslc skybox.frag -o skybox.frag.spv
