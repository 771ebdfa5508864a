// Package mail fetches station transmissions from an IMAP mailbox.
package mail

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"

	"github.com/MrCodingRobot/EmergencyStations/internal/telemetry"
)

const (
	inbox       = "INBOX"
	dialTimeout = 30 * time.Second
)

type IMAPConfig struct {
	Addr     string
	Username string
	Password string
	// AllMailFolder holds every message including archived ones.
	AllMailFolder string
	// TLSConfig is nil outside tests.
	TLSConfig *tls.Config
}

// IMAPFetcher opens one session per call. Calls are serialized because
// mail providers cap concurrent sessions per account.
type IMAPFetcher struct {
	cfg    IMAPConfig
	logger *slog.Logger
	mu     sync.Mutex
}

func NewIMAPFetcher(cfg IMAPConfig, logger *slog.Logger) *IMAPFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &IMAPFetcher{cfg: cfg, logger: logger}
}

// FetchNew returns every INBOX message sent from address, oldest first.
// Handles are INBOX UIDs suitable for Delete.
func (f *IMAPFetcher) FetchNew(ctx context.Context, address string) ([]telemetry.RawTransmission, error) {
	return f.fetch(ctx, inbox, address, 0)
}

// FetchLast returns the newest n messages sent from address across all
// folders, oldest first.
func (f *IMAPFetcher) FetchLast(ctx context.Context, address string, n int) ([]telemetry.RawTransmission, error) {
	if n <= 0 {
		return nil, nil
	}
	return f.fetch(ctx, f.cfg.AllMailFolder, address, n)
}

// Delete flags the given INBOX UIDs as deleted and expunges them.
func (f *IMAPFetcher) Delete(ctx context.Context, handles []string) error {
	if len(handles) == 0 {
		return nil
	}
	seqset := new(imap.SeqSet)
	for _, h := range handles {
		uid, err := strconv.ParseUint(h, 10, 32)
		if err != nil {
			return fmt.Errorf("invalid message handle %q: %w", h, err)
		}
		seqset.AddNum(uint32(uid))
	}

	return f.session(ctx, inbox, false, func(c *client.Client) error {
		flags := []interface{}{imap.DeletedFlag}
		if err := c.UidStore(seqset, imap.FormatFlagsOp(imap.AddFlags, true), flags, nil); err != nil {
			return fmt.Errorf("flag deleted: %w", err)
		}
		if err := c.Expunge(nil); err != nil {
			return fmt.Errorf("expunge: %w", err)
		}
		f.logger.Info("deleted processed mail", "count", len(handles))
		return nil
	})
}

func (f *IMAPFetcher) fetch(ctx context.Context, folder, address string, last int) ([]telemetry.RawTransmission, error) {
	var out []telemetry.RawTransmission
	err := f.session(ctx, folder, true, func(c *client.Client) error {
		criteria := imap.NewSearchCriteria()
		criteria.Header.Add("From", address)
		uids, err := c.UidSearch(criteria)
		if err != nil {
			return fmt.Errorf("search %s: %w", folder, err)
		}
		slices.Sort(uids)
		if last > 0 && len(uids) > last {
			uids = uids[len(uids)-last:]
		}
		if len(uids) == 0 {
			return nil
		}

		seqset := new(imap.SeqSet)
		seqset.AddNum(uids...)
		section := &imap.BodySectionName{Peek: true}
		items := []imap.FetchItem{imap.FetchUid, section.FetchItem()}

		messages := make(chan *imap.Message, len(uids))
		done := make(chan error, 1)
		go func() { done <- c.UidFetch(seqset, items, messages) }()

		for m := range messages {
			body := m.GetBody(section)
			if body == nil {
				f.logger.Warn("mail without body", "folder", folder, "uid", m.Uid)
				continue
			}
			parsed, err := ParseMessage(body)
			if err != nil {
				f.logger.Warn("unreadable mail", "folder", folder, "uid", m.Uid, "error", err)
				continue
			}
			id := parsed.ID
			if id == "" {
				id = folder + "/" + strconv.FormatUint(uint64(m.Uid), 10)
			}
			out = append(out, telemetry.RawTransmission{
				ID:         id,
				Handle:     strconv.FormatUint(uint64(m.Uid), 10),
				Body:       parsed.Text,
				ReceivedAt: parsed.Date,
			})
		}
		if err := <-done; err != nil {
			return fmt.Errorf("fetch %s: %w", folder, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(out, func(a, b telemetry.RawTransmission) int {
		return a.ReceivedAt.Compare(b.ReceivedAt)
	})
	return out, nil
}

func (f *IMAPFetcher) session(ctx context.Context, folder string, readOnly bool, fn func(*client.Client) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	dialer := &net.Dialer{Timeout: dialTimeout}
	c, err := client.DialWithDialerTLS(dialer, f.cfg.Addr, f.cfg.TLSConfig)
	if err != nil {
		return fmt.Errorf("imap dial %s: %w", f.cfg.Addr, err)
	}
	c.Timeout = dialTimeout
	defer func() {
		if err := c.Logout(); err != nil && !errors.Is(err, client.ErrAlreadyLoggedOut) {
			f.logger.Debug("imap logout", "error", err)
		}
	}()

	if err := c.Login(f.cfg.Username, f.cfg.Password); err != nil {
		return fmt.Errorf("imap login: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := c.Select(folder, readOnly); err != nil {
		return fmt.Errorf("select %s: %w", folder, err)
	}
	return fn(c)
}
