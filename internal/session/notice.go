package session

import (
	"errors"
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// NoticeKind identifies a user-visible message.
type NoticeKind string

const (
	NoticeEmptyMessage NoticeKind = "empty_message"
	NoticeSaveFailed   NoticeKind = "save_failed"
	NoticeSendFailed   NoticeKind = "send_failed"
	NoticeClearFailed  NoticeKind = "clear_failed"
	NoticeEmptyReply   NoticeKind = "empty_reply"
)

// Notice is shown to the user until acknowledged or replaced.
type Notice struct {
	Kind NoticeKind
	Text string
}

type noticeText struct {
	tag  language.Tag
	kind NoticeKind
	text string
}

var noticeTexts = []noticeText{
	{language.English, NoticeEmptyMessage, "Message cannot be empty!"},
	{language.English, NoticeSaveFailed, "Error: failed to save chat history."},
	{language.English, NoticeSendFailed, "Error: failed to send the message. Please try again."},
	{language.English, NoticeClearFailed, "Error: failed to delete chat history."},
	{language.English, NoticeEmptyReply, "The assistant sent an empty reply. Please try again."},
	{language.Arabic, NoticeEmptyMessage, "لا يمكن أن تكون الرسالة فارغة!"},
	{language.Arabic, NoticeSaveFailed, "خطأ، فشل في حفظ تاريخ الدردشة."},
	{language.Arabic, NoticeSendFailed, "خطأ، فشل في إرسال الرسالة. يرجى المحاولة مرة أخرى."},
	{language.Arabic, NoticeClearFailed, "خطأ، فشل في حذف تاريخ الدردشة."},
	{language.Arabic, NoticeEmptyReply, "أرسل المساعد ردا فارغا. يرجى المحاولة مرة أخرى."},
}

func buildCatalog(texts []noticeText) (*catalog.Builder, error) {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	var errs []error
	for _, m := range texts {
		if err := b.SetString(m.tag, string(m.kind), m.text); err != nil {
			errs = append(errs, fmt.Errorf("%s/%s: %w", m.tag, m.kind, err))
		}
	}
	return b, errors.Join(errs...)
}

// the table is static, so a bad entry is a programming error
var notices = func() *catalog.Builder {
	b, err := buildCatalog(noticeTexts)
	if err != nil {
		panic("session: notice catalog: " + err.Error())
	}
	return b
}()

var supported = language.NewMatcher([]language.Tag{language.English, language.Arabic})

// NewPrinter returns a printer for the closest supported language to lang
// ("ar", "en-GB", ...). Unknown languages fall back to English.
func NewPrinter(lang string) *message.Printer {
	tag, _ := language.MatchStrings(supported, lang)
	base, _ := tag.Base()
	return message.NewPrinter(language.Make(base.String()), message.Catalog(notices))
}

func localize(p *message.Printer, kind NoticeKind) Notice {
	return Notice{Kind: kind, Text: p.Sprintf(message.Key(string(kind), string(kind)))}
}
