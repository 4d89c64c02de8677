// Package localstore keeps the console client's provider session on local disk:
// the token set in a 0600 credentials file and provider-domain cookies in a jar.
package localstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	domainauth "github.com/target/opsconsole/internal/domain/auth"
	"github.com/target/opsconsole/internal/ports"
)

const (
	credentialsFile = "credentials.json"
	cookiesFile     = "cookies.json"
	dirPerm         = 0o700
	filePerm        = 0o600
)

// FileStore persists the provider token set as JSON.
type FileStore struct {
	path string
	mu   sync.Mutex
}

var _ ports.TokenStore = (*FileStore)(nil)

// NewFileStore returns a store writing to dir/credentials.json, creating dir if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("credentials directory is required")
	}
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, fmt.Errorf("create credentials dir: %w", err)
	}
	return &FileStore{path: filepath.Join(dir, credentialsFile)}, nil
}

// Path returns the credentials file location.
func (s *FileStore) Path() string { return s.path }

// Load reads the persisted token set. A missing or empty file means no session.
func (s *FileStore) Load(_ context.Context) (domainauth.Token, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return domainauth.Token{}, false, nil
	}
	if err != nil {
		return domainauth.Token{}, false, fmt.Errorf("read credentials: %w", err)
	}
	if len(data) == 0 {
		return domainauth.Token{}, false, nil
	}

	var tok domainauth.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return domainauth.Token{}, false, fmt.Errorf("decode credentials: %w", err)
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return domainauth.Token{}, false, nil
	}
	return tok, true, nil
}

// Save replaces the persisted token set.
func (s *FileStore) Save(_ context.Context, tok domainauth.Token) error {
	if tok.AccessToken == "" {
		return errors.New("access token cannot be empty")
	}
	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return writeFileAtomic(s.path, data)
}

// Delete removes the credentials file. Deleting a missing file is not an error.
func (s *FileStore) Delete(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return removeIfExists(s.path)
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := tmp.Chmod(filePerm); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	return nil
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", filepath.Base(path), err)
	}
	return nil
}
