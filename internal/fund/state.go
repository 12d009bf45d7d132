package fund

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"ETFSentinel/internal/model"
)

// LoadState reads the budget state from a JSON file. Returns a zero state if the file doesn't exist.
func LoadState(filePath string) (*model.BudgetState, error) {
	if filePath == "" {
		return &model.BudgetState{}, nil
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return &model.BudgetState{}, nil
		}
		return nil, fmt.Errorf("read state file: %w", err)
	}
	var state model.BudgetState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode state file: %w", err)
	}
	return &state, nil
}

// SaveState writes the budget state to a JSON file. The file is replaced
// atomically so a crash mid-write leaves the previous state readable.
func SaveState(filePath string, state *model.BudgetState) error {
	state.UpdatedAt = time.Now()
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	tmp := filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	return os.Rename(tmp, filePath)
}
