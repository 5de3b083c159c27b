package patch

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/natefinch/atomic"
	"github.com/tailscale/hujson"
)

const StatusFile = "status.json"

// Status is the batch ledger persisted between runs.
type Status struct {
	Complete map[string]bool   `json:"complete"`
	Failed   map[string]string `json:"failed"`
}

func NewStatus() *Status {
	return &Status{
		Complete: map[string]bool{},
		Failed:   map[string]string{},
	}
}

// LoadStatus reads path, or returns an empty ledger when it does not exist.
func LoadStatus(path string) (*Status, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return NewStatus(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read status file: %w", err)
	}

	data, err = hujson.Standardize(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse status file %s: %w", path, err)
	}
	s := NewStatus()
	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("failed to decode status file %s: %w", path, err)
	}
	if s.Complete == nil {
		s.Complete = map[string]bool{}
	}
	if s.Failed == nil {
		s.Failed = map[string]string{}
	}
	return s, nil
}

// Save writes the ledger as indented JSON, replacing path atomically.
func (s *Status) Save(path string) error {
	data, err := json.MarshalIndent(s, "", "    ")
	if err != nil {
		return err
	}
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write status file: %w", err)
	}
	return nil
}
