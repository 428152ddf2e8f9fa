// Package session drives one user's chat: it loads the persisted log, runs
// turns against the gateway and keeps the in-memory and persisted logs in
// step.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/suPer8Hu/healthchat/internal/auth"
	"github.com/suPer8Hu/healthchat/internal/chatlog"
	"go.uber.org/zap"
	"golang.org/x/text/message"
)

type State int

const (
	Idle State = iota
	Loading
	Ready
	Sending
	Error
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Sending:
		return "sending"
	case Error:
		return "error"
	}
	return "unknown"
}

var (
	// ErrBusy is returned for input that arrives while a reply is pending.
	// The input is dropped, not queued.
	ErrBusy = errors.New("session: reply pending")
	// ErrNotReady is returned before Mount has finished.
	ErrNotReady = errors.New("session: not ready")
	// ErrEmptyReply ends a turn whose reply was blank. Only the user
	// message is kept.
	ErrEmptyReply = errors.New("session: empty reply")
)

// ValidationError rejects input locally; nothing is sent or stored.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "session: " + e.Reason }

// Store is the persisted layer of the log.
type Store interface {
	Load(ctx context.Context, userID string) chatlog.Log
	Save(ctx context.Context, userID string, log chatlog.Log) error
	Clear(ctx context.Context, userID string) error
}

// Replier produces the assistant's next message.
type Replier interface {
	Reply(ctx context.Context, userID string, log chatlog.Log) (string, error)
}

// Confirmer asks the user to approve a destructive action.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) bool
}

type ConfirmFunc func(ctx context.Context, prompt string) bool

func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) bool { return f(ctx, prompt) }

type Options struct {
	Language string
	Logger   *zap.Logger
	Now      func() time.Time
}

// Controller is safe for concurrent readers; turns are serialized by the
// Sending state rather than by holding the lock across the gateway call.
type Controller struct {
	store   Store
	replier Replier
	printer *message.Printer
	logger  *zap.Logger
	now     func() time.Time

	mu     sync.Mutex
	userID string
	state  State
	log    chatlog.Log
	notice *Notice

	unsubscribe func()
	watchDone   chan struct{}
}

func NewController(sess auth.Session, store Store, replier Replier, opts Options) *Controller {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Controller{
		store:   store,
		replier: replier,
		printer: NewPrinter(opts.Language),
		logger:  opts.Logger,
		now:     opts.Now,
		userID:  sess.UserID,
		state:   Idle,
		log:     chatlog.Log{},
	}
}

// Mount loads the persisted log. Load never fails; an unreadable log starts
// empty.
func (c *Controller) Mount(ctx context.Context) {
	c.mu.Lock()
	if c.state != Idle {
		c.mu.Unlock()
		return
	}
	c.state = Loading
	userID := c.userID
	c.mu.Unlock()

	loaded := c.store.Load(ctx, userID)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Loading || c.userID != userID {
		// signed out while loading
		return
	}
	c.log = loaded.Clone()
	c.state = Ready
	c.logger.Debug("chat session ready", zap.String("user_id", userID), zap.Int("messages", len(c.log)))
}

// Submit runs one turn. The user message is visible through Log before the
// gateway is called. Resubmitting from Error acknowledges the previous
// failure.
func (c *Controller) Submit(ctx context.Context, text string) error {
	c.mu.Lock()
	switch c.state {
	case Ready, Error:
	case Sending:
		c.mu.Unlock()
		return ErrBusy
	default:
		c.mu.Unlock()
		return ErrNotReady
	}
	if strings.TrimSpace(text) == "" {
		n := localize(c.printer, NoticeEmptyMessage)
		c.notice = &n
		c.mu.Unlock()
		return &ValidationError{Reason: "empty message"}
	}

	userMsg, err := chatlog.NewMessage(chatlog.SenderUser, text, c.now())
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.notice = nil
	c.log = append(c.log, userMsg)
	c.state = Sending
	userID := c.userID
	snapshot := c.log.Clone()
	c.mu.Unlock()

	if err := c.store.Save(ctx, userID, snapshot); err != nil {
		c.logger.Warn("save before send failed", zap.String("user_id", userID), zap.Error(err))
		c.finish(userID, Ready, NoticeSaveFailed)
		return err
	}

	reply, err := c.replier.Reply(ctx, userID, snapshot)
	if err != nil {
		c.logger.Warn("reply failed", zap.String("user_id", userID), zap.Error(err))
		c.finish(userID, Error, NoticeSendFailed)
		return err
	}
	if strings.TrimSpace(reply) == "" {
		c.logger.Warn("empty reply", zap.String("user_id", userID))
		c.finish(userID, Ready, NoticeEmptyReply)
		return ErrEmptyReply
	}

	aiMsg, err := chatlog.NewMessage(chatlog.SenderAssistant, reply, c.now())
	if err != nil {
		c.finish(userID, Error, NoticeSendFailed)
		return err
	}

	c.mu.Lock()
	if c.userID != userID || c.state != Sending {
		c.mu.Unlock()
		return nil
	}
	c.log = append(c.log, aiMsg)
	snapshot = c.log.Clone()
	c.mu.Unlock()

	if err := c.store.Save(ctx, userID, snapshot); err != nil {
		c.logger.Warn("save after reply failed", zap.String("user_id", userID), zap.Error(err))
		c.finish(userID, Ready, NoticeSaveFailed)
		return err
	}
	c.finish(userID, Ready, "")
	return nil
}

func (c *Controller) finish(userID string, next State, kind NoticeKind) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.userID != userID || c.state != Sending {
		return
	}
	c.state = next
	if kind != "" {
		n := localize(c.printer, kind)
		c.notice = &n
	}
}

// Acknowledge dismisses the current notice and leaves Error.
func (c *Controller) Acknowledge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notice = nil
	if c.state == Error {
		c.state = Ready
	}
}

// Delete clears the persisted and in-memory log once the user confirms.
// It reports whether the log was deleted.
func (c *Controller) Delete(ctx context.Context, confirm Confirmer) (bool, error) {
	c.mu.Lock()
	switch c.state {
	case Ready, Error:
	case Sending:
		c.mu.Unlock()
		return false, ErrBusy
	default:
		c.mu.Unlock()
		return false, ErrNotReady
	}
	userID := c.userID
	c.mu.Unlock()

	if confirm == nil || !confirm.Confirm(ctx, "Delete all chat history?") {
		return false, nil
	}

	if err := c.store.Clear(ctx, userID); err != nil {
		c.logger.Warn("clear failed", zap.String("user_id", userID), zap.Error(err))
		c.mu.Lock()
		n := localize(c.printer, NoticeClearFailed)
		c.notice = &n
		c.mu.Unlock()
		return false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.userID == userID {
		c.log = chatlog.Log{}
		c.notice = nil
		c.state = Ready
	}
	return true, nil
}

// Log returns a copy of the in-memory log.
func (c *Controller) Log() chatlog.Log {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.log.Clone()
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Notice returns the pending notice, or nil.
func (c *Controller) Notice() *Notice {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.notice == nil {
		return nil
	}
	n := *c.notice
	return &n
}

func (c *Controller) UserID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}
