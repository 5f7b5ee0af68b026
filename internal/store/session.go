package store

import (
	"errors"
	"os"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/peterbourgon/diskv/v3"

	"expensectl/internal/model"
)

const sessionKey = "current"

var ErrNoSession = errors.New("no saved session; run `expensectl session set`")

// Session is the saved login: which server, the bearer token, and who it
// belongs to.
type Session struct {
	Server   string         `json:"server"`
	Token    string         `json:"token"`
	Identity model.Identity `json:"identity"`
}

// SessionStore persists the session as a single diskv key with 0600 files.
type SessionStore struct {
	d *diskv.Diskv
}

func (s Store) Sessions() *SessionStore {
	return &SessionStore{d: diskv.New(diskv.Options{
		BasePath:     s.sessionDir(),
		Transform:    func(string) []string { return []string{} },
		CacheSizeMax: 64 * 1024,
		FilePerm:     0o600,
		PathPerm:     0o700,
	})}
}

func (ss *SessionStore) Load() (*Session, error) {
	b, err := ss.d.Read(sessionKey)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoSession
		}
		return nil, err
	}
	var sess Session
	if err := json.Unmarshal(b, &sess); err != nil {
		return nil, err
	}
	if strings.TrimSpace(sess.Token) == "" {
		return nil, ErrNoSession
	}
	return &sess, nil
}

func (ss *SessionStore) Save(sess Session) error {
	if strings.TrimSpace(sess.Token) == "" {
		return errors.New("session token is empty")
	}
	if sess.Identity.Role == "" {
		sess.Identity.Role = model.RoleEmployee
	}
	b, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return ss.d.Write(sessionKey, b)
}

// Clear removes the saved session. Clearing an absent session is not an error.
func (ss *SessionStore) Clear() error {
	if !ss.d.Has(sessionKey) {
		return nil
	}
	return ss.d.Erase(sessionKey)
}
