package push

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/adrg/xdg"

	"github.com/csw/ablypush"
)

// LocalDevice is the identity of this device as known to the service.
type LocalDevice struct {
	ID          ablypush.DeviceID
	Token       ablypush.DeviceToken
	UpdateToken ablypush.UpdateToken
}

func (d LocalDevice) registered() bool {
	return d.ID != "" && d.UpdateToken != ""
}

// DeviceStore persists the local device between runs.
type DeviceStore interface {
	Load() (LocalDevice, error)
	Save(LocalDevice) error
}

type MemoryStore struct {
	mu     sync.Mutex
	device LocalDevice
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load() (LocalDevice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.device, nil
}

func (s *MemoryStore) Save(d LocalDevice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.device = d
	return nil
}

// FileStore keeps the device as a JSON object keyed by DeviceIDKey,
// DeviceUpdateTokenKey and DeviceTokenKey.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// DefaultFileStore stores the device under the XDG data directory.
func DefaultFileStore(app string) (*FileStore, error) {
	path, err := xdg.DataFile(filepath.Join(app, "device.json"))
	if err != nil {
		return nil, fmt.Errorf("locating device store: %w", err)
	}
	return NewFileStore(path), nil
}

func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Load() (LocalDevice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return LocalDevice{}, nil
	}
	if err != nil {
		return LocalDevice{}, err
	}
	var rec map[string]string
	if err := json.Unmarshal(raw, &rec); err != nil {
		return LocalDevice{}, fmt.Errorf("parsing %s: %w", s.path, err)
	}
	d := LocalDevice{
		ID:          ablypush.DeviceID(rec[ablypush.DeviceIDKey]),
		UpdateToken: ablypush.UpdateToken(rec[ablypush.DeviceUpdateTokenKey]),
	}
	if tok := rec[ablypush.DeviceTokenKey]; tok != "" {
		if d.Token, err = ablypush.ParseDeviceToken(tok); err != nil {
			return LocalDevice{}, err
		}
	}
	return d, nil
}

func (s *FileStore) Save(d LocalDevice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := map[string]string{}
	if d.ID != "" {
		rec[ablypush.DeviceIDKey] = string(d.ID)
	}
	if d.UpdateToken != "" {
		rec[ablypush.DeviceUpdateTokenKey] = string(d.UpdateToken)
	}
	if len(d.Token) > 0 {
		rec[ablypush.DeviceTokenKey] = d.Token.String()
	}
	enc, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, enc, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
