// Package session persists the signed-in user and the device identifier.
package session

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mind-engage/mindengage-quizdesk/internal/sheets"
)

const (
	KeySession  = "lms_session"
	KeyDeviceID = "lms_device_id"
)

type Session struct {
	User         sheets.User `json:"user"`
	SessionToken string      `json:"sessionToken"`
	DeviceID     string      `json:"deviceId"`
	LoginTime    string      `json:"loginTime"`
}

func (s Session) Identity() sheets.Identity {
	return sheets.Identity{Email: s.User.Email, Token: s.SessionToken}
}

type Store struct {
	kv   KV
	seal *sealer
	log  logrus.FieldLogger
	mu   sync.Mutex // serializes DeviceID creation
}

func NewStore(kv KV, secret string, log logrus.FieldLogger) (*Store, error) {
	s, err := newSealer(secret)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Store{kv: kv, seal: s, log: log}, nil
}

// Load returns nil when nothing is stored or the stored value cannot be read.
func (s *Store) Load(ctx context.Context) (*Session, error) {
	v, ok, err := s.kv.Get(ctx, KeySession)
	if err != nil || !ok {
		return nil, err
	}
	plain, err := s.seal.open(v)
	if err != nil {
		s.log.WithError(err).Warn("discarding unreadable stored session")
		return nil, nil
	}
	var sess Session
	if err := json.Unmarshal(plain, &sess); err != nil || sess.SessionToken == "" {
		s.log.Warn("discarding corrupt stored session")
		return nil, nil
	}
	return &sess, nil
}

func (s *Store) Save(ctx context.Context, sess Session) error {
	b, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	sealed, err := s.seal.seal(b)
	if err != nil {
		return err
	}
	return s.kv.Put(ctx, KeySession, sealed)
}

func (s *Store) Clear(ctx context.Context) error {
	return s.kv.Delete(ctx, KeySession)
}

// DeviceID returns the stored device identifier, creating it on first use.
func (s *Store) DeviceID(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok, err := s.kv.Get(ctx, KeyDeviceID)
	if err != nil {
		return "", err
	}
	if ok && v != "" {
		return v, nil
	}
	id := "device_" + uuid.NewString()
	if err := s.kv.Put(ctx, KeyDeviceID, id); err != nil {
		return "", err
	}
	return id, nil
}
