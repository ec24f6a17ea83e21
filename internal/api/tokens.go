package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	"go.uber.org/zap"
)

// TokenStore caches the bearer tokens between requests.
type TokenStore interface {
	AccessToken() string
	RefreshToken() string
	SetAccessToken(token string) error
}

// Tokens is the persisted token pair.
type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// MemoryTokenStore keeps tokens for the life of the process.
type MemoryTokenStore struct {
	mu     sync.RWMutex
	tokens Tokens
}

func NewMemoryTokenStore(t Tokens) *MemoryTokenStore {
	return &MemoryTokenStore{tokens: t}
}

func (s *MemoryTokenStore) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens.AccessToken
}

func (s *MemoryTokenStore) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens.RefreshToken
}

func (s *MemoryTokenStore) SetAccessToken(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens.AccessToken = token
	return nil
}

// FileTokenStore persists tokens as JSON. A sibling lock file keeps two
// processes from interleaving a refresh write with a read.
type FileTokenStore struct {
	path   string
	lock   *flock.Flock
	mu     sync.Mutex
	logger *zap.Logger
}

func NewFileTokenStore(path string) *FileTokenStore {
	return &FileTokenStore{
		path:   path,
		lock:   flock.New(path + ".lock"),
		logger: zap.NewNop(),
	}
}

// WithLogger sets where unreadable token files are reported.
func (s *FileTokenStore) WithLogger(l *zap.Logger) *FileTokenStore {
	if l != nil {
		s.logger = l
	}
	return s
}

// Path returns the token file location.
func (s *FileTokenStore) Path() string {
	return s.path
}

// Load reads the token file. A missing file yields empty tokens.
func (s *FileTokenStore) Load() (Tokens, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureDir(); err != nil {
		return Tokens{}, err
	}
	if err := s.lock.RLock(); err != nil {
		return Tokens{}, fmt.Errorf("lock token file: %w", err)
	}
	defer s.lock.Unlock()

	return s.read()
}

// Save replaces both tokens.
func (s *FileTokenStore) Save(t Tokens) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureDir(); err != nil {
		return err
	}
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("lock token file: %w", err)
	}
	defer s.lock.Unlock()

	return s.write(t)
}

// AccessToken returns the cached access token. An unreadable file is
// logged and treated as no token.
func (s *FileTokenStore) AccessToken() string {
	return s.loadLogged().AccessToken
}

func (s *FileTokenStore) RefreshToken() string {
	return s.loadLogged().RefreshToken
}

func (s *FileTokenStore) loadLogged() Tokens {
	t, err := s.Load()
	if err != nil {
		s.logger.Warn("token file unreadable", zap.String("path", s.path), zap.Error(err))
		return Tokens{}
	}
	return t
}

func (s *FileTokenStore) SetAccessToken(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureDir(); err != nil {
		return err
	}
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("lock token file: %w", err)
	}
	defer s.lock.Unlock()

	t, err := s.read()
	if err != nil {
		return err
	}
	t.AccessToken = token
	return s.write(t)
}

func (s *FileTokenStore) ensureDir() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}
	return nil
}

func (s *FileTokenStore) read() (Tokens, error) {
	var t Tokens
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return t, nil
	}
	if err != nil {
		return t, fmt.Errorf("read token file: %w", err)
	}
	if len(data) == 0 {
		return t, nil
	}
	if err := json.Unmarshal(data, &t); err != nil {
		return t, fmt.Errorf("decode token file: %w", err)
	}
	return t, nil
}

func (s *FileTokenStore) write(t Tokens) error {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("encode tokens: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	return nil
}
