package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/healthchat/internal/auth"
	"github.com/suPer8Hu/healthchat/internal/chatlog"
	"github.com/suPer8Hu/healthchat/internal/store/kv"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeReplier struct {
	reply  string
	err    error
	calls  int
	seen   chatlog.Log
	during func()
}

func (f *fakeReplier) Reply(_ context.Context, _ string, log chatlog.Log) (string, error) {
	f.calls++
	f.seen = log.Clone()
	if f.during != nil {
		f.during()
	}
	return f.reply, f.err
}

func newTestController(t *testing.T, rep Replier) (*Controller, *chatlog.Store, *kv.Memory) {
	t.Helper()
	mem := kv.NewMemory()
	store := chatlog.NewStore(mem, nil)
	c := NewController(auth.Session{UserID: "u1"}, store, rep, Options{Language: "en"})
	c.Mount(context.Background())
	require.Equal(t, Ready, c.State())
	return c, store, mem
}

func senders(log chatlog.Log) []chatlog.Sender {
	out := make([]chatlog.Sender, len(log))
	for i, m := range log {
		out[i] = m.Sender
	}
	return out
}

func TestSubmit_HelloScenario(t *testing.T) {
	rep := &fakeReplier{reply: "hi there"}
	c, store, _ := newTestController(t, rep)

	require.NoError(t, c.Submit(context.Background(), "hello"))

	log := c.Log()
	require.Len(t, log, 2)
	assert.Equal(t, chatlog.SenderUser, log[0].Sender)
	assert.Equal(t, "hello", log[0].Text)
	assert.Equal(t, chatlog.SenderAssistant, log[1].Sender)
	assert.Equal(t, "hi there", log[1].Text)
	assert.Equal(t, Ready, c.State())
	assert.Nil(t, c.Notice())

	// in-memory and persisted layers converge after the turn
	if diff := cmp.Diff(log, store.Load(context.Background(), "u1")); diff != "" {
		t.Fatalf("persisted log differs (-mem +store):\n%s", diff)
	}
}

func TestSubmit_OptimisticAppendBeforeNetwork(t *testing.T) {
	rep := &fakeReplier{reply: "ok"}
	c, store, _ := newTestController(t, rep)
	require.NoError(t, c.Submit(context.Background(), "first"))

	for _, text := range []string{"x", "  padded  ", "مرحبا"} {
		before := len(c.Log())
		rep.during = func() {
			assert.Equal(t, Sending, c.State())
			inMem := c.Log()
			require.Len(t, inMem, before+1)
			assert.Equal(t, chatlog.SenderUser, inMem[before].Sender)
			assert.Equal(t, text, inMem[before].Text)
			assert.Len(t, store.Load(context.Background(), "u1"), before+1, "user message persisted before the call")
		}
		require.NoError(t, c.Submit(context.Background(), text))
		assert.Len(t, rep.seen, before+1, "gateway sees the updated log")
	}
}

func TestSubmit_WhitespaceRejected(t *testing.T) {
	rep := &fakeReplier{reply: "unused"}
	c, store, _ := newTestController(t, rep)

	err := c.Submit(context.Background(), "   ")

	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Empty(t, c.Log())
	assert.Empty(t, store.Load(context.Background(), "u1"))
	assert.Zero(t, rep.calls)
	assert.Equal(t, Ready, c.State())
	require.NotNil(t, c.Notice())
	assert.Equal(t, NoticeEmptyMessage, c.Notice().Kind)
	assert.Equal(t, "Message cannot be empty!", c.Notice().Text)
}

func TestSubmit_GatewayFailure(t *testing.T) {
	rep := &fakeReplier{err: errors.New("502 from upstream")}
	c, store, _ := newTestController(t, rep)

	err := c.Submit(context.Background(), "hello")
	require.Error(t, err)

	assert.NotEqual(t, Sending, c.State())
	assert.Equal(t, Error, c.State())
	assert.Equal(t, []chatlog.Sender{chatlog.SenderUser}, senders(c.Log()))
	assert.Equal(t, []chatlog.Sender{chatlog.SenderUser}, senders(store.Load(context.Background(), "u1")))
	require.NotNil(t, c.Notice())
	assert.Equal(t, NoticeSendFailed, c.Notice().Kind)
	assert.Equal(t, 1, rep.calls, "no automatic retry")

	c.Acknowledge()
	assert.Equal(t, Ready, c.State())
	assert.Nil(t, c.Notice())

	// manual retry by resubmitting
	rep.err, rep.reply = nil, "better now"
	require.NoError(t, c.Submit(context.Background(), "hello"))
	assert.Equal(t,
		[]chatlog.Sender{chatlog.SenderUser, chatlog.SenderUser, chatlog.SenderAssistant},
		senders(c.Log()))
}

func TestSubmit_BlankReplyKeepsOnlyUserMessage(t *testing.T) {
	rep := &fakeReplier{reply: "  \n"}
	c, store, _ := newTestController(t, rep)

	err := c.Submit(context.Background(), "hello")
	require.ErrorIs(t, err, ErrEmptyReply)

	assert.Equal(t, []chatlog.Sender{chatlog.SenderUser}, senders(c.Log()))
	assert.Equal(t, []chatlog.Sender{chatlog.SenderUser}, senders(store.Load(context.Background(), "u1")))
	assert.Equal(t, Ready, c.State())
	require.NotNil(t, c.Notice())
	assert.Equal(t, NoticeEmptyReply, c.Notice().Kind)

	rep.reply = "hi"
	require.NoError(t, c.Submit(context.Background(), "hello again"))
	assert.Nil(t, c.Notice())
	assert.Len(t, c.Log(), 3)
}

func TestSubmit_FromErrorAcknowledges(t *testing.T) {
	rep := &fakeReplier{err: errors.New("timeout")}
	c, _, _ := newTestController(t, rep)
	require.Error(t, c.Submit(context.Background(), "a"))
	require.Equal(t, Error, c.State())

	rep.err, rep.reply = nil, "ok"
	require.NoError(t, c.Submit(context.Background(), "b"))
	assert.Equal(t, Ready, c.State())
	assert.Nil(t, c.Notice())
}

func TestSubmit_WhileSendingIsIgnored(t *testing.T) {
	rep := &fakeReplier{reply: "ok"}
	c, _, _ := newTestController(t, rep)

	var inner error
	rep.during = func() {
		inner = c.Submit(context.Background(), "second")
	}
	require.NoError(t, c.Submit(context.Background(), "first"))

	assert.ErrorIs(t, inner, ErrBusy)
	assert.Equal(t, 1, rep.calls)
	assert.Len(t, c.Log(), 2)
}

func TestSubmit_SaveFailureAbortsTurn(t *testing.T) {
	rep := &fakeReplier{reply: "unused"}
	c, _, mem := newTestController(t, rep)
	mem.FailWrites = true

	err := c.Submit(context.Background(), "hello")

	var se *chatlog.StoreError
	require.True(t, errors.As(err, &se))
	assert.Zero(t, rep.calls, "no network call after a failed save")
	assert.Equal(t, Ready, c.State())
	assert.Len(t, c.Log(), 1, "in-memory state preserved")
	require.NotNil(t, c.Notice())
	assert.Equal(t, NoticeSaveFailed, c.Notice().Kind)
}

func TestSubmit_BeforeMount(t *testing.T) {
	c := NewController(auth.Session{UserID: "u1"}, chatlog.NewStore(kv.NewMemory(), nil), &fakeReplier{}, Options{})
	assert.ErrorIs(t, c.Submit(context.Background(), "hi"), ErrNotReady)
}

func TestMount_LoadsPersistedLog(t *testing.T) {
	mem := kv.NewMemory()
	store := chatlog.NewStore(mem, nil)
	prior, err := chatlog.NewMessage(chatlog.SenderUser, "earlier", time.Now())
	require.NoError(t, err)
	require.NoError(t, store.Save(context.Background(), "u1", chatlog.Log{prior}))

	c := NewController(auth.Session{UserID: "u1"}, store, &fakeReplier{}, Options{})
	assert.Equal(t, Idle, c.State())
	c.Mount(context.Background())

	assert.Equal(t, Ready, c.State())
	assert.Equal(t, chatlog.Log{prior}, c.Log())
}

func TestDelete(t *testing.T) {
	rep := &fakeReplier{reply: "hi"}
	c, store, _ := newTestController(t, rep)
	require.NoError(t, c.Submit(context.Background(), "hello"))

	deleted, err := c.Delete(context.Background(), ConfirmFunc(func(context.Context, string) bool { return false }))
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.Len(t, c.Log(), 2, "declined confirmation keeps the log")

	deleted, err = c.Delete(context.Background(), ConfirmFunc(func(context.Context, string) bool { return true }))
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.Empty(t, c.Log())
	assert.Empty(t, store.Load(context.Background(), "u1"))
	assert.Equal(t, Ready, c.State())
}

func TestDelete_StoreFailure(t *testing.T) {
	c, _, mem := newTestController(t, &fakeReplier{reply: "hi"})
	require.NoError(t, c.Submit(context.Background(), "hello"))
	mem.FailWrites = true

	deleted, err := c.Delete(context.Background(), ConfirmFunc(func(context.Context, string) bool { return true }))

	require.Error(t, err)
	assert.False(t, deleted)
	assert.Len(t, c.Log(), 2)
	require.NotNil(t, c.Notice())
	assert.Equal(t, NoticeClearFailed, c.Notice().Kind)
}

func TestNotices_Arabic(t *testing.T) {
	c := NewController(auth.Session{UserID: "u1"}, chatlog.NewStore(kv.NewMemory(), nil), &fakeReplier{}, Options{Language: "ar-EG"})
	c.Mount(context.Background())

	_ = c.Submit(context.Background(), "")

	require.NotNil(t, c.Notice())
	assert.Equal(t, "لا يمكن أن تكون الرسالة فارغة!", c.Notice().Text)
}

func TestNoticeCatalog_Complete(t *testing.T) {
	_, err := buildCatalog(noticeTexts)
	require.NoError(t, err)

	kinds := []NoticeKind{NoticeEmptyMessage, NoticeSaveFailed, NoticeSendFailed, NoticeClearFailed, NoticeEmptyReply}
	en, ar := NewPrinter("en"), NewPrinter("ar")
	for _, k := range kinds {
		enText, arText := localize(en, k).Text, localize(ar, k).Text
		assert.NotEqual(t, string(k), enText, "english text for %s", k)
		assert.NotEqual(t, string(k), arText, "arabic text for %s", k)
		assert.NotEqual(t, enText, arText, "%s is not translated", k)
	}
}

func TestWatch_SignOutResetsAndCloseReleases(t *testing.T) {
	broker := auth.NewBroker()
	c, store, _ := newTestController(t, &fakeReplier{reply: "hi"})
	require.NoError(t, c.Submit(context.Background(), "hello"))

	c.Watch(context.Background(), broker)
	assert.Equal(t, 1, broker.Subscribers())

	broker.Publish(auth.Event{Kind: auth.SignedOut, UserID: "someone-else"})
	broker.Publish(auth.Event{Kind: auth.SignedOut, UserID: "u1"})
	require.Eventually(t, func() bool { return c.State() == Idle }, time.Second, 5*time.Millisecond)
	assert.Empty(t, c.Log())
	assert.Len(t, store.Load(context.Background(), "u1"), 2, "sign-out keeps the persisted log")

	broker.Publish(auth.Event{Kind: auth.SignedIn, UserID: "u1"})
	require.Eventually(t, func() bool { return c.State() == Ready }, time.Second, 5*time.Millisecond)
	assert.Len(t, c.Log(), 2)

	c.Close()
	c.Close()
	assert.Equal(t, 0, broker.Subscribers())
}

func TestWatch_SignInAsOtherUserRebinds(t *testing.T) {
	broker := auth.NewBroker()
	c, store, _ := newTestController(t, &fakeReplier{reply: "hi"})
	defer c.Close()
	other, err := chatlog.NewMessage(chatlog.SenderUser, "u2 history", time.Now())
	require.NoError(t, err)
	require.NoError(t, store.Save(context.Background(), "u2", chatlog.Log{other}))

	c.Watch(context.Background(), broker)
	broker.Publish(auth.Event{Kind: auth.SignedIn, UserID: "u2"})

	require.Eventually(t, func() bool { return c.UserID() == "u2" && c.State() == Ready }, time.Second, 5*time.Millisecond)
	assert.Equal(t, chatlog.Log{other}, c.Log())
}
