// Package output names batch outputs and hands batches to the external
// renderer that produces the EPUB files.
package output

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// Identity is the output file name and display title of one batch.
type Identity struct {
	Filename string
	Title    string
}

// Candidate returns the identity for attempt n of a batch name; n < 2 is the
// unsuffixed base name.
func Candidate(name string, n int) Identity {
	if n < 2 {
		return Identity{
			Filename: fmt.Sprintf("readwise-%s.epub", name),
			Title:    name,
		}
	}
	return Identity{
		Filename: fmt.Sprintf("readwise-%s-%d.epub", name, n),
		Title:    fmt.Sprintf("%s Pt. %d", name, n),
	}
}

// Namer hands out identities that collide neither with files already in the
// output directory nor with identities claimed earlier in the same run. It
// assumes a single writer process per directory.
type Namer struct {
	dir     string
	mu      sync.Mutex
	claimed map[string]bool
}

// NewNamer creates a namer for the output directory.
func NewNamer(dir string) *Namer {
	return &Namer{
		dir:     dir,
		claimed: make(map[string]bool),
	}
}

// Dir returns the output directory.
func (n *Namer) Dir() string {
	return n.dir
}

// Name claims the first free identity for a batch name.
func (n *Namer) Name(name string) (Identity, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for attempt := 1; ; attempt++ {
		id := Candidate(name, attempt)
		if n.claimed[id.Filename] {
			continue
		}

		exists, err := n.exists(id.Filename)
		if err != nil {
			return Identity{}, fmt.Errorf("check %s: %w", id.Filename, err)
		}
		if exists {
			continue
		}

		n.claimed[id.Filename] = true
		return id, nil
	}
}

func (n *Namer) exists(filename string) (bool, error) {
	_, err := os.Stat(filepath.Join(n.dir, filename))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}
