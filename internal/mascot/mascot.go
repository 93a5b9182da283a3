// Package mascot renders the ASCII-art cat shown next to the live stats.
package mascot

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
)

const DefaultCow = "datakitten"

// Mascot shells out to cowsay when it is installed and caches each
// (cow, text) rendering for the life of the process.
type Mascot struct {
	cowDir string

	mu    sync.Mutex
	cache map[uint64]string
}

func New(cowDir string) *Mascot {
	return &Mascot{
		cowDir: strings.TrimSpace(cowDir),
		cache:  make(map[uint64]string),
	}
}

// CustomCow returns the path of <cowDir>/<name>.cow if it exists.
func (m *Mascot) CustomCow(name string) (string, bool) {
	if m.cowDir == "" || name == "" {
		return "", false
	}
	p := filepath.Join(m.cowDir, name+".cow")
	if info, err := os.Stat(p); err != nil || info.IsDir() {
		return "", false
	}
	return p, true
}

// Art renders text spoken by cow. Without cowsay, or when it fails, the
// result is "<cow> text\n".
func (m *Mascot) Art(text, cow string) string {
	if cow == "" {
		cow = DefaultCow
	}
	key := cacheKey(cow, text)

	m.mu.Lock()
	if art, ok := m.cache[key]; ok {
		m.mu.Unlock()
		return art
	}
	m.mu.Unlock()

	art := m.render(text, cow)

	m.mu.Lock()
	m.cache[key] = art
	m.mu.Unlock()
	return art
}

func (m *Mascot) render(text, cow string) string {
	path, err := exec.LookPath("cowsay")
	if err == nil {
		args := []string{}
		if cowfile, ok := m.CustomCow(cow); ok {
			args = append(args, "-f", cowfile)
		}
		args = append(args, text)
		if out, err := exec.Command(path, args...).CombinedOutput(); err == nil {
			return string(out)
		}
	}
	return Fallback(text, cow)
}

func Fallback(text, cow string) string {
	return "<" + cow + "> " + text + "\n"
}

func cacheKey(cow, text string) uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(cow)
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(text)
	return d.Sum64()
}
