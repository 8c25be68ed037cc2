package asset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
)

func touch(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatalf("WriteFile(%s) error = %v", name, err)
		}
	}
}

func TestCarousel_Wraps(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "c.obj", "a.obj", "b.obj", "skip.txt")

	c := NewCarousel(dir)
	steps := []struct {
		offset int
		want   string
	}{
		{0, "a.obj"},
		{1, "b.obj"},
		{1, "c.obj"},
		{1, "a.obj"},
		{-1, "c.obj"},
		{-1, "b.obj"},
		{0, "b.obj"},
	}

	for i, step := range steps {
		got, err := c.Next(step.offset, IsModel)
		if err != nil {
			t.Fatalf("step %d: Next() error = %v", i, err)
		}
		if filepath.Base(got) != step.want {
			t.Errorf("step %d: Next(%d) = %s, want %s", i, step.offset, filepath.Base(got), step.want)
		}
	}
}

func TestCarousel_CurrentRemoved(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "a.png", "b.png", "c.png")

	c := NewCarousel(dir)
	if _, err := c.Next(1, IsImage); err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if err := os.Remove(filepath.Join(dir, "b.png")); err != nil {
		t.Fatal(err)
	}

	got, err := c.Next(1, IsImage)
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if filepath.Base(got) != "c.png" {
		t.Errorf("Next(1) after removal = %s, want c.png", filepath.Base(got))
	}
}

func TestCarousel_Empty(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "readme.md")

	_, err := NewCarousel(dir).Next(0, IsImage)
	if !errors.Is(err, ErrEmptyCarousel) {
		t.Fatalf("Next() error = %v, want ErrEmptyCarousel", err)
	}
}
