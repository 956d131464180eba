// Package inbox pulls raw messages from an IMAP mailbox so they can flow
// through the same batch pipeline as on-disk files.
package inbox

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"

	"github.com/hanqizheng/mailfacts/internal/config"
	"github.com/hanqizheng/mailfacts/internal/parse"
)

// Monitor handles the IMAP connection.
type Monitor struct {
	config config.InboxConfig
	client *client.Client
}

func NewMonitor(cfg config.InboxConfig) *Monitor {
	return &Monitor{config: cfg}
}

// Connect establishes the IMAP connection and logs in.
func (m *Monitor) Connect(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", m.config.Server, m.config.Port)

	log.Printf("Connecting to IMAP server %s...", addr)

	c, err := client.DialTLS(addr, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to IMAP server: %w", err)
	}

	if err := c.Login(m.config.Email, m.config.Password); err != nil {
		c.Logout()
		return fmt.Errorf("failed to login: %w", err)
	}

	m.client = c
	log.Printf("Login successful as %s", m.config.Email)
	return nil
}

func (m *Monitor) Disconnect() error {
	if m.client != nil {
		return m.client.Logout()
	}
	return nil
}

// FetchRecentMessages fetches raw messages from the configured folder,
// newer than the configured number of days, as SourceMessages. Messages
// whose body section cannot be read are skipped with a warning.
func (m *Monitor) FetchRecentMessages(ctx context.Context) ([]parse.SourceMessage, error) {
	if m.client == nil {
		return nil, fmt.Errorf("not connected to IMAP server")
	}

	mbox, err := m.client.Select(m.config.Folder, true)
	if err != nil {
		return nil, fmt.Errorf("failed to select mailbox %s: %w", m.config.Folder, err)
	}

	log.Printf("Mailbox %s has %d messages", m.config.Folder, mbox.Messages)
	if mbox.Messages == 0 {
		return nil, nil
	}

	since := time.Now().AddDate(0, 0, -m.config.Days)
	criteria := imap.NewSearchCriteria()
	criteria.Since = since

	uids, err := m.client.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("failed to search emails: %w", err)
	}

	log.Printf("Found %d emails since %s", len(uids), since.Format("2006-01-02"))
	if len(uids) == 0 {
		return nil, nil
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uids...)

	// Peek keeps messages unread; the whole raw body is fetched so the
	// message decoder sees exactly what a .eml file would contain.
	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchUid, section.FetchItem()}

	messages := make(chan *imap.Message, len(uids))
	done := make(chan error, 1)
	go func() {
		done <- m.client.UidFetch(seqSet, items, messages)
	}()

	var sources []parse.SourceMessage
	for msg := range messages {
		r := msg.GetBody(section)
		if r == nil {
			log.Printf("Warning: message %d has no body section", msg.Uid)
			continue
		}
		raw, err := io.ReadAll(r)
		if err != nil {
			log.Printf("Warning: failed to read message %d: %v", msg.Uid, err)
			continue
		}
		sources = append(sources, parse.SourceMessage{
			Filename:   fmt.Sprintf("imap-%d.eml", msg.Uid),
			RawContent: raw,
			SizeBytes:  int64(len(raw)),
		})
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}

	return sources, nil
}
