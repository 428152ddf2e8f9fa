package session

import (
	"context"

	"github.com/suPer8Hu/healthchat/internal/auth"
	"github.com/suPer8Hu/healthchat/internal/chatlog"
	"go.uber.org/zap"
)

// Watch subscribes to auth-state changes for the life of the controller.
// Signing out the bound user drops the in-memory log and returns to Idle;
// signing in as someone else rebinds and remounts. Close releases the
// subscription.
func (c *Controller) Watch(ctx context.Context, sub auth.Subscriber) {
	c.mu.Lock()
	if c.unsubscribe != nil {
		c.mu.Unlock()
		return
	}
	events, cancel := sub.Subscribe()
	done := make(chan struct{})
	c.unsubscribe = cancel
	c.watchDone = done
	c.mu.Unlock()

	go func() {
		defer close(done)
		for ev := range events {
			c.handleAuthEvent(ctx, ev)
		}
	}()
}

func (c *Controller) handleAuthEvent(ctx context.Context, ev auth.Event) {
	c.mu.Lock()
	switch ev.Kind {
	case auth.SignedOut:
		if ev.UserID != c.userID {
			c.mu.Unlock()
			return
		}
		c.logger.Info("signed out, dropping chat session", zap.String("user_id", ev.UserID))
		c.resetLocked()
		c.mu.Unlock()
	case auth.SignedIn:
		if ev.UserID == c.userID && c.state != Idle {
			c.mu.Unlock()
			return
		}
		c.userID = ev.UserID
		c.resetLocked()
		c.mu.Unlock()
		c.Mount(ctx)
	default:
		c.mu.Unlock()
	}
}

func (c *Controller) resetLocked() {
	c.state = Idle
	c.log = chatlog.Log{}
	c.notice = nil
}

// Close ends the auth subscription and waits for the watcher to exit.
func (c *Controller) Close() {
	c.mu.Lock()
	cancel, done := c.unsubscribe, c.watchDone
	c.unsubscribe, c.watchDone = nil, nil
	c.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}
