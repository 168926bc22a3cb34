package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gorilla/securecookie"
)

const (
	sessionName = "flux_session"
	hashKeyLen  = 64
	blockKeyLen = 32
)

// SessionStore keeps the signed-in session in a file, signed and encrypted
// with keys kept in a sibling ".key" file.
type SessionStore struct {
	path  string
	codec *securecookie.SecureCookie
}

func OpenSessionStore(path string) (*SessionStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	hashKey, blockKey, err := loadKeys(path + ".key")
	if err != nil {
		return nil, err
	}

	codec := securecookie.New(hashKey, blockKey)
	codec.SetSerializer(securecookie.JSONEncoder{})
	// The file is rewritten on refresh; expiry is the token's business.
	codec.MaxAge(0)
	codec.MaxLength(0)

	return &SessionStore{path: path, codec: codec}, nil
}

func loadKeys(path string) (hashKey, blockKey []byte, err error) {
	b, err := os.ReadFile(path)
	if err == nil && len(b) == hashKeyLen+blockKeyLen {
		return b[:hashKeyLen], b[hashKeyLen:], nil
	}
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, nil, fmt.Errorf("read session keys: %w", err)
	}

	hashKey = securecookie.GenerateRandomKey(hashKeyLen)
	blockKey = securecookie.GenerateRandomKey(blockKeyLen)
	if hashKey == nil || blockKey == nil {
		return nil, nil, fmt.Errorf("failed to generate session keys")
	}
	if err := os.WriteFile(path, append(append([]byte(nil), hashKey...), blockKey...), 0600); err != nil {
		return nil, nil, fmt.Errorf("write session keys: %w", err)
	}
	return hashKey, blockKey, nil
}

// Load returns ErrNoSession when nothing is stored or the file can no longer
// be decoded (for example after the keys were regenerated).
func (s *SessionStore) Load() (*Session, error) {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}

	var sess Session
	if err := s.codec.Decode(sessionName, string(b), &sess); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoSession, err)
	}
	return &sess, nil
}

func (s *SessionStore) Save(sess *Session) error {
	val, err := s.codec.Encode(sessionName, sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	return os.WriteFile(s.path, []byte(val), 0600)
}

func (s *SessionStore) Delete() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
