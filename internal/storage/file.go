package storage

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/igwedaniel/dripper/internal/types"
)

// FileLedger appends "address:privateKey" lines to a plaintext file
type FileLedger struct {
	path string
	mu   sync.Mutex
}

func NewFileLedger(path string) *FileLedger {
	return &FileLedger{path: path}
}

func (l *FileLedger) Path() string {
	return l.path
}

func (l *FileLedger) Append(ctx context.Context, cred types.WalletCredential) error {
	if err := ctx.Err(); err != nil {
		return &PersistenceError{Target: l.path, Err: err}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	file, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return &PersistenceError{Target: l.path, Err: err}
	}

	if _, err := fmt.Fprintln(file, cred.LedgerLine()); err != nil {
		file.Close()
		return &PersistenceError{Target: l.path, Err: err}
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return &PersistenceError{Target: l.path, Err: err}
	}
	if err := file.Close(); err != nil {
		return &PersistenceError{Target: l.path, Err: err}
	}
	return nil
}

func (l *FileLedger) Close() error {
	return nil
}
