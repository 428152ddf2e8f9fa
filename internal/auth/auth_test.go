package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWT_RoundTrip(t *testing.T) {
	tok, err := SignJWT("firebase-uid-1", "s3cret", time.Hour)
	require.NoError(t, err)

	uid, err := ParseJWT(tok, "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "firebase-uid-1", uid)
}

func TestJWT_Rejects(t *testing.T) {
	tok, err := SignJWT("u1", "s3cret", time.Hour)
	require.NoError(t, err)

	_, err = ParseJWT(tok, "other")
	assert.True(t, errors.Is(err, ErrInvalidToken))

	expired, err := SignJWT("u1", "s3cret", -time.Minute)
	require.NoError(t, err)
	_, err = ParseJWT(expired, "s3cret")
	assert.True(t, errors.Is(err, ErrInvalidToken))

	_, err = SignJWT("", "s3cret", time.Hour)
	assert.Error(t, err)
}

func TestBroker_SubscribePublishCancel(t *testing.T) {
	b := NewBroker()
	events, cancel := b.Subscribe()
	assert.Equal(t, 1, b.Subscribers())

	b.Publish(Event{Kind: SignedOut, UserID: "u1"})
	ev := <-events
	assert.Equal(t, SignedOut, ev.Kind)
	assert.Equal(t, "u1", ev.UserID)

	cancel()
	cancel()
	assert.Equal(t, 0, b.Subscribers())
	_, open := <-events
	assert.False(t, open)

	// publishing with no subscribers is a no-op
	b.Publish(Event{Kind: SignedIn, UserID: "u2"})
}
