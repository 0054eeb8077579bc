package actions

import (
	"context"
	"strings"
	"sync"

	"github.com/aaronromeo/sortpat/internal/mailerr"
	"github.com/emersion/go-imap/v2"
	giimapclient "github.com/emersion/go-imap/v2/imapclient"
	"github.com/pkg/errors"
)

const DefaultArchiveFlag = "$Archived"

type LabelMode string

const (
	// LabelModeKeyword stores the label as an IMAP keyword.
	LabelModeKeyword LabelMode = "keyword"
	// LabelModeFolder stores the keyword and also copies the message into a
	// mailbox named after the label.
	LabelModeFolder LabelMode = "folder"
)

type Actions interface {
	StoreLabel(ctx context.Context, uid uint32, label string) error
	SetArchiveFlag(ctx context.Context, uid uint32) error
	Expunge(ctx context.Context) (int, error)
}

// Labeling controls how labels and archival are written to the server.
type Labeling struct {
	Mode        LabelMode
	ArchiveFlag string
}

// Interface to initialize the manager
type ClientProvider interface {
	Do(ctx context.Context, op string, fn func(*giimapclient.Client) error) error
}

type IMAPActionManager struct {
	provider ClientProvider
	labeling Labeling

	mu        sync.Mutex
	mailboxes map[string]bool
}

func New(provider ClientProvider, labeling Labeling) *IMAPActionManager {
	if labeling.Mode == "" {
		labeling.Mode = LabelModeKeyword
	}
	if strings.TrimSpace(labeling.ArchiveFlag) == "" {
		labeling.ArchiveFlag = DefaultArchiveFlag
	}
	return &IMAPActionManager{
		provider:  provider,
		labeling:  labeling,
		mailboxes: map[string]bool{},
	}
}

// StoreLabel adds label to the message. Any failure is a mailerr.StoreError.
func (c *IMAPActionManager) StoreLabel(ctx context.Context, uid uint32, label string) error {
	if strings.TrimSpace(label) == "" {
		return mailerr.NewStore(uid, "store label", errors.New("label is required"))
	}
	if err := c.addFlag(ctx, uid, imap.Flag(label)); err != nil {
		return mailerr.NewStore(uid, "store label", err)
	}
	if c.labeling.Mode != LabelModeFolder {
		return nil
	}

	if err := c.ensureMailbox(ctx, label); err != nil {
		return mailerr.NewStore(uid, "create label folder", err)
	}
	err := c.provider.Do(ctx, "copy", func(client *giimapclient.Client) error {
		_, err := client.Copy(imap.UIDSetNum(imap.UID(uid)), label).Wait()
		return err
	})
	if err != nil {
		return mailerr.NewStore(uid, "copy to label folder", err)
	}
	return nil
}

// SetArchiveFlag marks the message as archived.
func (c *IMAPActionManager) SetArchiveFlag(ctx context.Context, uid uint32) error {
	if err := c.addFlag(ctx, uid, imap.Flag(c.labeling.ArchiveFlag)); err != nil {
		return mailerr.NewStore(uid, "archive", err)
	}
	return nil
}

// Expunge permanently removes messages marked \Deleted in the selected folder
// and returns how many were removed.
func (c *IMAPActionManager) Expunge(ctx context.Context) (int, error) {
	var expunged []uint32
	err := c.provider.Do(ctx, "expunge", func(client *giimapclient.Client) error {
		var err error
		expunged, err = client.Expunge().Collect()
		return err
	})
	if err != nil {
		return 0, mailerr.NewProtocol("expunge", err)
	}
	return len(expunged), nil
}

func (c *IMAPActionManager) addFlag(ctx context.Context, uid uint32, flag imap.Flag) error {
	store := imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{flag},
	}
	return c.provider.Do(ctx, "store", func(client *giimapclient.Client) error {
		return client.Store(imap.UIDSetNum(imap.UID(uid)), &store, nil).Close()
	})
}

func (c *IMAPActionManager) ensureMailbox(ctx context.Context, name string) error {
	c.mu.Lock()
	known := c.mailboxes[name]
	c.mu.Unlock()
	if known {
		return nil
	}

	err := c.provider.Do(ctx, "ensure mailbox", func(client *giimapclient.Client) error {
		existing, err := client.List("", name, nil).Collect()
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return nil
		}
		return client.Create(name, nil).Wait()
	})
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.mailboxes[name] = true
	c.mu.Unlock()
	return nil
}
