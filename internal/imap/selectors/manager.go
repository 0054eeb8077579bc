package selectors

import (
	"bytes"
	"context"
	"io"
	"strings"
	"unicode"

	"github.com/aaronromeo/sortpat/internal/mailerr"
	"github.com/aaronromeo/sortpat/internal/model"
	"github.com/emersion/go-imap/v2"
	giimapclient "github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message/mail"
	"github.com/pkg/errors"
)

type ClientSelectors interface {
	SelectFolder(ctx context.Context, folder string) (*imap.SelectData, error)
	FetchHeaders(ctx context.Context, uids []uint32) ([]model.Descriptor, error)
	FetchBody(ctx context.Context, uid uint32) (string, error)
}

// Interface to initialize the manager
type ClientProvider interface {
	Do(ctx context.Context, op string, fn func(*giimapclient.Client) error) error
	MarkSelected(folder string)
}

type IMAPSelectorManager struct {
	provider ClientProvider
}

func New(provider ClientProvider) *IMAPSelectorManager {
	return &IMAPSelectorManager{provider: provider}
}

// SelectFolder selects a folder read-write. A missing or unselectable folder
// is reported as mailerr.FolderError.
func (c *IMAPSelectorManager) SelectFolder(ctx context.Context, folder string) (*imap.SelectData, error) {
	folder = strings.TrimSpace(folder)
	if folder == "" {
		return nil, mailerr.NewFolder(folder, errors.New("folder is required"))
	}

	var data *imap.SelectData
	err := c.provider.Do(ctx, "select", func(client *giimapclient.Client) error {
		var err error
		data, err = client.Select(folder, nil).Wait()
		return err
	})
	if err != nil {
		return nil, mailerr.NewFolder(folder, err)
	}
	c.provider.MarkSelected(folder)
	return data, nil
}

// FetchHeaders returns one descriptor per UID the server still knows about.
// Descriptors keep whatever the envelope provides; a missing subject or sender
// is left empty for the caller to treat as malformed.
func (c *IMAPSelectorManager) FetchHeaders(ctx context.Context, uids []uint32) ([]model.Descriptor, error) {
	if len(uids) == 0 {
		return []model.Descriptor{}, nil
	}

	var uidSet imap.UIDSet
	for _, uid := range uids {
		uidSet.AddNum(imap.UID(uid))
	}
	fetchOptions := &imap.FetchOptions{
		UID:          true,
		Envelope:     true,
		Flags:        true,
		InternalDate: true,
	}

	rows := make([]model.Descriptor, 0, len(uids))
	err := c.provider.Do(ctx, "fetch headers", func(client *giimapclient.Client) error {
		fetchCmd := client.Fetch(uidSet, fetchOptions)
		for {
			msg := fetchCmd.Next()
			if msg == nil {
				break
			}
			rows = append(rows, readDescriptor(msg))
		}
		return fetchCmd.Close()
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func readDescriptor(msg *giimapclient.FetchMessageData) model.Descriptor {
	var d model.Descriptor
	var envelope *imap.Envelope
	for {
		item := msg.Next()
		if item == nil {
			break
		}
		switch data := item.(type) {
		case giimapclient.FetchItemDataUID:
			d.UID = uint32(data.UID)
		case giimapclient.FetchItemDataEnvelope:
			envelope = data.Envelope
		case giimapclient.FetchItemDataFlags:
			for _, flag := range data.Flags {
				d.Keywords = append(d.Keywords, string(flag))
			}
		case giimapclient.FetchItemDataInternalDate:
			d.Received = data.Time
		}
	}
	if envelope != nil {
		d.Subject = Sanitize(envelope.Subject)
		d.Sender = formatSender(envelope.From)
		if d.Received.IsZero() {
			d.Received = envelope.Date
		}
	}
	return d
}

func formatSender(from []imap.Address) string {
	for _, addr := range from {
		email := addr.Addr()
		if email == "" {
			continue
		}
		name := Sanitize(addr.Name)
		if name == "" {
			return email
		}
		return name + " <" + email + ">"
	}
	return ""
}

// FetchBody returns the text/plain content of a message without setting
// \Seen. Messages without a text/plain part fall back to the raw body.
func (c *IMAPSelectorManager) FetchBody(ctx context.Context, uid uint32) (string, error) {
	section := &imap.FetchItemBodySection{Peek: true}
	fetchOptions := &imap.FetchOptions{
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{section},
	}

	var raw []byte
	err := c.provider.Do(ctx, "fetch body", func(client *giimapclient.Client) error {
		msgs, err := client.Fetch(imap.UIDSetNum(imap.UID(uid)), fetchOptions).Collect()
		if err != nil {
			return err
		}
		if len(msgs) == 0 {
			return mailerr.NewMalformed(uid, "message not found")
		}
		raw = msgs[0].FindBodySection(section)
		return nil
	})
	if err != nil {
		return "", err
	}
	return extractText(raw), nil
}

func extractText(raw []byte) string {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return string(raw)
	}
	defer mr.Close()

	var html string
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}
		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, _ := h.ContentType()
		body, readErr := io.ReadAll(part.Body)
		if readErr != nil {
			continue
		}
		switch {
		case strings.HasPrefix(contentType, "text/plain"):
			return string(body)
		case strings.HasPrefix(contentType, "text/html") && html == "":
			html = string(body)
		}
	}
	return html
}

// Sanitize drops non-printable characters and trims surrounding space.
func Sanitize(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if unicode.IsPrint(r) || r == ' ' {
			return r
		}
		if unicode.IsSpace(r) {
			return ' '
		}
		return -1
	}, s))
}
