package message

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
)

// Address is a decoded email address with its optional display name.
type Address struct {
	Name    string
	Address string
}

// Domain returns the lowercased domain part of the address, or "" if the
// address has no @.
func (a Address) Domain() string {
	parts := strings.Split(a.Address, "@")
	if len(parts) != 2 {
		return ""
	}
	return strings.ToLower(parts[1])
}

// Message is a decoded email: headers plus the first text/plain and
// text/html bodies found in the MIME tree.
type Message struct {
	Subject    string
	From       Address
	Recipients []Address // To then Cc, in header order
	Date       time.Time
	Body       string
	HTMLBody   string
}

// Decode parses raw RFC 5322 message bytes. Header decoding failures for
// individual fields are tolerated; an unreadable message structure is not.
func Decode(raw []byte) (*Message, error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to read message: %w", err)
	}

	msg := &Message{}

	if subject, err := mr.Header.Subject(); err == nil {
		msg.Subject = subject
	}
	if date, err := mr.Header.Date(); err == nil {
		msg.Date = date
	}
	if from, err := mr.Header.AddressList("From"); err == nil && len(from) > 0 {
		msg.From = Address{Name: from[0].Name, Address: from[0].Address}
	}
	for _, field := range []string{"To", "Cc"} {
		if addrs, err := mr.Header.AddressList(field); err == nil {
			for _, a := range addrs {
				msg.Recipients = append(msg.Recipients, Address{Name: a.Name, Address: a.Address})
			}
		}
	}

	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		switch h := p.Header.(type) {
		case *mail.InlineHeader:
			ct, _, _ := h.ContentType()
			body, _ := io.ReadAll(p.Body)

			if strings.HasPrefix(ct, "text/plain") && msg.Body == "" {
				msg.Body = string(body)
			} else if strings.HasPrefix(ct, "text/html") && msg.HTMLBody == "" {
				msg.HTMLBody = string(body)
			}
		}
	}

	return msg, nil
}
