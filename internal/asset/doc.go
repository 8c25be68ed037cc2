// Package asset turns files on disk into the plain data the render core
// consumes: RGBA8 images, cubemap face sets, and indexed meshes.
package asset
