package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Preferences stores the values changed with "set" so the next session
// starts from them.
type Preferences struct {
	BaseURL       string        `json:"base_url,omitempty"`
	Timeout       time.Duration `json:"timeout,omitempty"`
	DefaultTimeMs int64         `json:"default_timeout_ms,omitempty"`
}

func Load(path string) (Preferences, error) {
	var prefs Preferences
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return prefs, nil
		}
		return prefs, fmt.Errorf("read cli state failed: %w", err)
	}
	if len(data) == 0 {
		return prefs, nil
	}
	if err := json.Unmarshal(data, &prefs); err != nil {
		return prefs, fmt.Errorf("parse cli state failed: %w", err)
	}
	return prefs, nil
}

func Save(path string, prefs Preferences) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create cli state dir failed: %w", err)
	}
	data, err := json.MarshalIndent(prefs, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cli state failed: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write cli state failed: %w", err)
	}
	return nil
}

func Clear(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove cli state failed: %w", err)
	}
	return nil
}
