// Package credential stores the upstream API key for the client-only variant
// and classifies keys for the relay.
//
// Keys live in a small JSON file holding named entries, read on startup and
// written when the user submits the setup form. The file is private to the
// current user.
package credential

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// EntryName is the entry under which the upstream API key is stored.
const EntryName = "groqApiKey"

// Placeholder is the sample key shipped in example env files.
const Placeholder = "gsk_placeholder_key_here"

// Prefix is the format every upstream key starts with.
const Prefix = "gsk_"

// ErrEmptyKey is returned by [FileStore.Set] for a blank value.
var ErrEmptyKey = errors.New("credential: empty key")

// Usable reports whether key is present and not the placeholder. The relay
// refuses to call upstream with an unusable key.
func Usable(key string) bool {
	return key != "" && key != Placeholder
}

// Configured reports whether key is usable and has the upstream's expected
// prefix.
func Configured(key string) bool {
	return Usable(key) && strings.HasPrefix(key, Prefix)
}

// Store reads and writes named secrets.
type Store interface {
	// Get returns the value stored under name, or "" when nothing is stored.
	Get(name string) (string, error)

	// Set replaces the value stored under name.
	Set(name, value string) error
}

// FileStore persists entries as one JSON object in a local file.
// Thread-safe for concurrent use.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a FileStore backed by path. The file and its parent
// directory are created on the first Set.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// DefaultPath returns $XDG_CONFIG_HOME/voicebot/credentials.json (or the
// platform equivalent).
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("credential: config dir: %w", err)
	}
	return filepath.Join(dir, "voicebot", "credentials.json"), nil
}

// Path returns the backing file path.
func (fs *FileStore) Path() string { return fs.path }

// Get implements [Store].
func (fs *FileStore) Get(name string) (string, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	entries, err := fs.load()
	if err != nil {
		return "", err
	}
	return entries[name], nil
}

// Set implements [Store]. Surrounding whitespace is trimmed; a blank value
// returns [ErrEmptyKey] and leaves the file untouched.
func (fs *FileStore) Set(name, value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return ErrEmptyKey
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	entries, err := fs.load()
	if err != nil {
		return err
	}
	entries[name] = value

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("credential: marshal: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(fs.path), 0o700); err != nil {
		return fmt.Errorf("credential: create dir: %w", err)
	}

	tmp := fs.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("credential: write: %w", err)
	}
	if err := os.Rename(tmp, fs.path); err != nil {
		return fmt.Errorf("credential: replace: %w", err)
	}
	return nil
}

// load reads the entry map. A missing file is an empty map. Callers hold mu.
func (fs *FileStore) load() (map[string]string, error) {
	entries := make(map[string]string)
	data, err := os.ReadFile(fs.path)
	if errors.Is(err, os.ErrNotExist) {
		return entries, nil
	}
	if err != nil {
		return nil, fmt.Errorf("credential: read: %w", err)
	}
	if len(data) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("credential: decode %q: %w", fs.path, err)
	}
	if entries == nil {
		// A literal null decodes to a nil map.
		entries = make(map[string]string)
	}
	return entries, nil
}

var _ Store = (*FileStore)(nil)
