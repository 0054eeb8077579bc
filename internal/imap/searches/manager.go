package searches

import (
	"context"
	"sort"

	"github.com/aaronromeo/sortpat/internal/mailerr"
	"github.com/aaronromeo/sortpat/internal/scan"
	"github.com/emersion/go-imap/v2"
	giimapclient "github.com/emersion/go-imap/v2/imapclient"
)

type ServerSearcher interface {
	Search(ctx context.Context, expr scan.Expr) ([]uint32, error)
	CountUnseen(ctx context.Context) (int, error)
}

// Interface to initialize the manager
type ClientProvider interface {
	Do(ctx context.Context, op string, fn func(*giimapclient.Client) error) error
}

type IMAPSearchManager struct {
	provider ClientProvider
}

func New(provider ClientProvider) *IMAPSearchManager {
	return &IMAPSearchManager{provider: provider}
}

// Search runs UID SEARCH in the selected folder and returns matching UIDs in
// ascending (server) order. Failures are reported as mailerr.ProtocolError.
func (m *IMAPSearchManager) Search(ctx context.Context, expr scan.Expr) ([]uint32, error) {
	uids, err := m.search(ctx, "search", expr.Criteria())
	if err != nil {
		return nil, mailerr.NewProtocol("search "+expr.String(), err)
	}
	return uids, nil
}

// CountUnseen returns the number of messages without \Seen in the selected
// folder.
func (m *IMAPSearchManager) CountUnseen(ctx context.Context) (int, error) {
	uids, err := m.search(ctx, "search unseen", &imap.SearchCriteria{
		NotFlag: []imap.Flag{imap.FlagSeen},
	})
	if err != nil {
		return 0, mailerr.NewProtocol("search UNSEEN", err)
	}
	return len(uids), nil
}

func (m *IMAPSearchManager) search(ctx context.Context, op string, criteria *imap.SearchCriteria) ([]uint32, error) {
	var data *imap.SearchData
	err := m.provider.Do(ctx, op, func(client *giimapclient.Client) error {
		var err error
		data, err = client.UIDSearch(criteria, nil).Wait()
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	all := data.AllUIDs()
	uids := make([]uint32, 0, len(all))
	for _, uid := range all {
		uids = append(uids, uint32(uid))
	}
	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })
	return uids, nil
}
