package asset

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/cockroachdb/errors"
)

// ErrEmptyCarousel is returned when a directory holds no acceptable file.
var ErrEmptyCarousel = errors.New("no matching file in directory")

// Carousel cycles through the files of a directory in name order.
type Carousel struct {
	dir     string
	current string
}

func NewCarousel(dir string) *Carousel {
	return &Carousel{dir: dir}
}

func (c *Carousel) Dir() string {
	return c.dir
}

// Next moves offset entries away from the current file, wrapping around, and
// returns the new path. An offset of zero returns the current file, or the
// first one if nothing was picked yet. The listing is re-read on every call
// so files added while the viewer runs show up.
func (c *Carousel) Next(offset int, accept func(path string) bool) (string, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return "", errors.Wrapf(err, "failed to read directory %s", c.dir)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if accept != nil && !accept(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}

	if len(names) == 0 {
		return "", errors.Wrapf(ErrEmptyCarousel, "%s", c.dir)
	}
	sort.Strings(names)

	idx := 0
	if c.current != "" {
		idx = sort.SearchStrings(names, c.current)
		found := idx < len(names) && names[idx] == c.current
		if !found && offset > 0 {
			// The current file disappeared, idx already points past it.
			offset--
		}
	}

	idx = ((idx+offset)%len(names) + len(names)) % len(names)
	c.current = names[idx]

	return filepath.Join(c.dir, c.current), nil
}
