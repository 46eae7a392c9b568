package testdata

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"contract-hooks/internal/types"
)

// Loader handles loading recorded transactions from files
type Loader struct {
	dir string
}

// NewLoader creates a new transaction loader rooted at dir
func NewLoader(dir string) *Loader {
	return &Loader{dir: dir}
}

// LoadTransactions reads a JSON array of transactions. Relative names are resolved
// against the loader directory.
func (l *Loader) LoadTransactions(filename string) ([]types.Transaction, error) {
	path := filename
	if !filepath.IsAbs(path) {
		path = filepath.Join(l.dir, filename)
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read transactions: %w", err)
	}

	var transactions []types.Transaction
	if err := json.Unmarshal(file, &transactions); err != nil {
		return nil, fmt.Errorf("failed to parse transactions: %w", err)
	}

	for i := range transactions {
		if transactions[i].Request.Headers == nil {
			transactions[i].Request.Headers = make(map[string]string)
		}
	}
	return transactions, nil
}
