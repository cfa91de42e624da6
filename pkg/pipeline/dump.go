package pipeline

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/Sternrassler/readwise-epub/pkg/readwise"
)

// WriteDump writes every fetched item as indented JSON to path.
func WriteDump(path string, items []readwise.Item) error {
	if items == nil {
		items = []readwise.Item{}
	}

	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal dump: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write dump: %w", err)
	}

	return nil
}

// LoadDump reads items back from a dump written by WriteDump.
func LoadDump(path string) ([]readwise.Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dump: %w", err)
	}

	var items []readwise.Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode dump: %w", err)
	}

	for i := range items {
		if err := items[i].Validate(); err != nil {
			return nil, fmt.Errorf("dump item %d: %w", i, err)
		}
	}

	return items, nil
}
