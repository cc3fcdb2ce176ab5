package printer

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// Store is the key-value contract used to remember paired devices.
type Store interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
}

// HandleKey is the store key holding a role's device handle.
func HandleKey(role string) string {
	return "printer." + role + ".device"
}

// LoadHandle reads a device handle saved by SaveHandle.
func LoadHandle(s Store, key string) (DeviceHandle, bool, error) {
	raw, ok, err := s.Get(key)
	if err != nil || !ok {
		return DeviceHandle{}, false, err
	}
	var h DeviceHandle
	if err := yaml.Unmarshal([]byte(raw), &h); err != nil {
		return DeviceHandle{}, false, fmt.Errorf("decode device handle %s: %w", key, err)
	}
	if h.IsZero() {
		return DeviceHandle{}, false, nil
	}
	return h, true, nil
}

// SaveHandle persists h under key.
func SaveHandle(s Store, key string, h DeviceHandle) error {
	raw, err := yaml.Marshal(h)
	if err != nil {
		return err
	}
	return s.Set(key, string(raw))
}

// MemoryStore keeps values for the life of the process.
type MemoryStore struct {
	mu     sync.Mutex
	values map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (m *MemoryStore) Get(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryStore) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

// FileStore keeps values in a YAML file, rewritten on every Set.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) load() (map[string]string, error) {
	values := make(map[string]string)
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return values, nil
	}
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("parse %s: %w", f.path, err)
	}
	return values, nil
}

func (f *FileStore) Get(key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	values, err := f.load()
	if err != nil {
		return "", false, err
	}
	v, ok := values[key]
	return v, ok, nil
}

func (f *FileStore) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	values, err := f.load()
	if err != nil {
		return err
	}
	values[key] = value

	data, err := yaml.Marshal(values)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}
