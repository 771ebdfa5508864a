package mail

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"
	"time"

	_ "github.com/emersion/go-message/charset"
	gomail "github.com/emersion/go-message/mail"
)

// Message is the part of an inbound mail the ingest pipeline needs.
type Message struct {
	ID   string
	Date time.Time
	Text string
}

// ParseMessage reads an RFC 5322 message and returns its Message-Id, Date
// and the first text/plain part. A single-part message without a content
// type counts as plain text.
func ParseMessage(r io.Reader) (Message, error) {
	mr, err := gomail.CreateReader(r)
	if err != nil {
		return Message{}, fmt.Errorf("read message: %w", err)
	}
	defer mr.Close()

	var msg Message
	if id, err := mr.Header.MessageID(); err == nil {
		msg.ID = id
	}
	if d, err := mr.Header.Date(); err == nil {
		msg.Date = d
	}

	for {
		p, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return msg, fmt.Errorf("read part: %w", err)
		}
		h, ok := p.Header.(*gomail.InlineHeader)
		if !ok {
			continue
		}
		ct, _, err := h.ContentType()
		if err != nil && !errors.Is(err, mime.ErrInvalidMediaParameter) {
			ct = ""
		}
		if ct != "" && ct != "text/plain" {
			continue
		}
		b, err := io.ReadAll(p.Body)
		if err != nil {
			return msg, fmt.Errorf("read text part: %w", err)
		}
		msg.Text = strings.ReplaceAll(string(b), "\r\n", "\n")
		return msg, nil
	}
	return msg, errors.New("message has no text/plain part")
}
