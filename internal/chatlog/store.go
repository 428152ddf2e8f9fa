package chatlog

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/suPer8Hu/healthchat/internal/store/kv"
	"go.uber.org/zap"
)

const keyPrefix = "chat_"

// Key returns the storage key for a user's log.
func Key(userID string) string {
	return keyPrefix + userID
}

// StoreError is a persistence failure on save or clear.
type StoreError struct {
	Op     string
	UserID string
	Err    error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("chatlog: %s %s: %v", e.Op, e.UserID, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Reporter receives load failures that were swallowed.
type Reporter interface {
	ReportLoadFailure(userID string, err error)
}

type zapReporter struct {
	logger *zap.Logger
}

func NewZapReporter(logger *zap.Logger) Reporter {
	return zapReporter{logger: logger}
}

func (r zapReporter) ReportLoadFailure(userID string, err error) {
	r.logger.Warn("chat log unreadable, starting empty",
		zap.String("user_id", userID),
		zap.Error(err),
	)
}

// Store persists whole logs through a kv.KV.
type Store struct {
	kv       kv.KV
	reporter Reporter
}

func NewStore(backend kv.KV, reporter Reporter) *Store {
	if reporter == nil {
		reporter = NewZapReporter(zap.NewNop())
	}
	return &Store{kv: backend, reporter: reporter}
}

// Load never fails. A missing, unreadable or undecodable log comes back empty.
func (s *Store) Load(ctx context.Context, userID string) Log {
	raw, ok, err := s.kv.Get(ctx, Key(userID))
	if err != nil {
		s.reporter.ReportLoadFailure(userID, err)
		return Log{}
	}
	if !ok || raw == "" {
		return Log{}
	}
	var log Log
	if err := json.Unmarshal([]byte(raw), &log); err != nil {
		s.reporter.ReportLoadFailure(userID, err)
		return Log{}
	}
	if log == nil {
		return Log{}
	}
	return log
}

// Save replaces the stored log with log.
func (s *Store) Save(ctx context.Context, userID string, log Log) error {
	if log == nil {
		log = Log{}
	}
	b, err := json.Marshal(log)
	if err != nil {
		return &StoreError{Op: "save", UserID: userID, Err: err}
	}
	if err := s.kv.Set(ctx, Key(userID), string(b)); err != nil {
		return &StoreError{Op: "save", UserID: userID, Err: err}
	}
	return nil
}

func (s *Store) Clear(ctx context.Context, userID string) error {
	if err := s.kv.Delete(ctx, Key(userID)); err != nil {
		return &StoreError{Op: "clear", UserID: userID, Err: err}
	}
	return nil
}
