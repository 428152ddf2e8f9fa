// Package chatlog holds the per-user conversation log and its persistence.
package chatlog

import (
	"time"

	"github.com/suPer8Hu/healthchat/internal/common"
)

type Sender string

// Wire values match logs written by the mobile client.
const (
	SenderUser      Sender = "User"
	SenderAssistant Sender = "AI"
)

// TimestampLayout is ISO-8601 in UTC with millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

type Message struct {
	ID        string `json:"id"`
	Sender    Sender `json:"sender"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

// NewMessage stamps a message with a ULID and the given time.
func NewMessage(sender Sender, text string, at time.Time) (Message, error) {
	id, err := common.NewULIDAt(at)
	if err != nil {
		return Message{}, err
	}
	return Message{
		ID:        id,
		Sender:    sender,
		Text:      text,
		Timestamp: at.UTC().Format(TimestampLayout),
	}, nil
}

// Log is ordered oldest first.
type Log []Message

// Clone returns a copy that shares no backing array with l.
func (l Log) Clone() Log {
	if l == nil {
		return Log{}
	}
	out := make(Log, len(l))
	copy(out, l)
	return out
}
