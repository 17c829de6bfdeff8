package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// SessionStore persists the auth slice between runs.
type SessionStore interface {
	Load() (*AuthState, error)
	Save(state AuthState) error
}

// FileSessionStore 将登录状态保存为 JSON 文件
type FileSessionStore struct {
	Path string
}

// DefaultSessionPath returns $XDG_CONFIG_HOME/codecommunity/session.json or its platform equivalent.
func DefaultSessionPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "codecommunity", "session.json"), nil
}

// Load 文件不存在时返回 nil, nil
func (f *FileSessionStore) Load() (*AuthState, error) {
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var state AuthState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parse session %s: %w", f.Path, err)
	}
	return &state, nil
}

// Save writes through a temp file so a crash never leaves a truncated session.
func (f *FileSessionStore) Save(state AuthState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o700); err != nil {
		return err
	}
	tmp := f.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, f.Path)
}
