// Package promptfile loads the system prompt template an agent's role name
// maps to, from a directory of one-file-per-role text templates.
package promptfile

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Loader reads prompt files from a base directory and caches them by role
// name, since a tier's agent is rebuilt from the same prompt file across
// every invocation and retry.
type Loader struct {
	dir string

	mu    sync.RWMutex
	cache map[string]string
}

// New returns a Loader rooted at dir. dir does not need to exist yet; a
// missing role file produces an error only when that role is requested.
func New(dir string) *Loader {
	return &Loader{dir: dir, cache: make(map[string]string)}
}

// Load returns the system prompt text for role, reading "<dir>/<role>.txt"
// on first use and caching the result.
func (l *Loader) Load(role string) (string, error) {
	l.mu.RLock()
	if text, ok := l.cache[role]; ok {
		l.mu.RUnlock()
		return text, nil
	}
	l.mu.RUnlock()

	path := filepath.Join(l.dir, role+".txt")
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("promptfile: loading role %q: %w", role, err)
	}
	text := string(data)

	l.mu.Lock()
	l.cache[role] = text
	l.mu.Unlock()
	return text, nil
}

// Static is a Loader alternative for tests and embedded defaults: a fixed
// in-memory role -> prompt-text map.
type Static struct {
	Prompts map[string]string
}

// Load implements the same lookup contract as Loader.Load.
func (s Static) Load(role string) (string, error) {
	text, ok := s.Prompts[role]
	if !ok {
		return "", fmt.Errorf("promptfile: no static prompt registered for role %q", role)
	}
	return text, nil
}
