package credentials

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// bindTimeLayout matches the bind_time strings written by earlier versions.
const bindTimeLayout = "2006-01-02 15:04:05"

type fileRecord struct {
	BotToken string `yaml:"bot_token"`
	BotKey   string `yaml:"bot_key"`
	BindTime string `yaml:"bind_time"`
}

type fileData struct {
	Users map[string]fileRecord `yaml:"users"`
}

// FileStore keeps all bindings in one YAML file. The whole set is held in
// memory; every mutation rewrites the file through a temp file and rename.
// A JSON file from the older plugin ({"users": {...}}) loads unchanged.
type FileStore struct {
	path string
	now  func() time.Time

	mu    sync.RWMutex
	users map[string]fileRecord
}

// OpenFile loads the store at path. A missing file is an empty store; a file
// that cannot be parsed is an error rather than being silently replaced.
func OpenFile(path string) (*FileStore, error) {
	s := &FileStore{
		path:  path,
		now:   time.Now,
		users: make(map[string]fileRecord),
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Info("credential file not found; starting empty", "path", path)
			return s, nil
		}
		return nil, fmt.Errorf("read credential file: %w", err)
	}

	var data fileData
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parse credential file %s: %w", path, err)
	}
	for k, v := range data.Users {
		s.users[k] = v
	}
	slog.Info("credential file loaded", "path", path, "bindings", len(s.users))
	return s, nil
}

// Path returns the backing file path.
func (s *FileStore) Path() string { return s.path }

// IsBound reports whether userID has a binding.
func (s *FileStore) IsBound(userID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.users[userID]
	return ok
}

// Key returns the service key for userID.
func (s *FileStore) Key(userID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.users[userID]
	if !ok || rec.BotKey == "" {
		return "", false
	}
	return rec.BotKey, true
}

// Bind records a new binding. The existence check and the write happen under
// one lock, so of two concurrent binds for the same user exactly one wins.
func (s *FileStore) Bind(userID, botToken, serviceKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[userID]; ok {
		return ErrAlreadyBound
	}

	next := s.copyUsers()
	next[userID] = fileRecord{
		BotToken: botToken,
		BotKey:   serviceKey,
		BindTime: s.now().Format(bindTimeLayout),
	}
	if err := s.persist(next); err != nil {
		return err
	}
	s.users = next
	return nil
}

// Unbind removes the binding for userID.
func (s *FileStore) Unbind(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[userID]; !ok {
		return ErrNotBound
	}

	next := s.copyUsers()
	delete(next, userID)
	if err := s.persist(next); err != nil {
		return err
	}
	s.users = next
	return nil
}

// List returns all bindings sorted by user ID.
func (s *FileStore) List() []Binding {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Binding, 0, len(s.users))
	for id, rec := range s.users {
		b := Binding{UserID: id, BotToken: rec.BotToken, ServiceKey: rec.BotKey}
		if t, err := time.ParseInLocation(bindTimeLayout, rec.BindTime, time.Local); err == nil {
			b.BoundAt = t
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// copyUsers must be called with mu held.
func (s *FileStore) copyUsers() map[string]fileRecord {
	next := make(map[string]fileRecord, len(s.users)+1)
	for k, v := range s.users {
		next[k] = v
	}
	return next
}

// persist writes users to a sibling temp file, syncs it and renames it over
// the store file. The in-memory map is only replaced after this succeeds.
func (s *FileStore) persist(users map[string]fileRecord) error {
	raw, err := yaml.Marshal(fileData{Users: users})
	if err != nil {
		return fmt.Errorf("encode credential file: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create credential dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp credential file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp credential file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp credential file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp credential file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return fmt.Errorf("chmod temp credential file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace credential file: %w", err)
	}
	return nil
}

var _ Store = (*FileStore)(nil)
