package imap

import (
	"github.com/aaronromeo/sortpat/internal/imap/actions"
	"github.com/aaronromeo/sortpat/internal/imap/searches"
	"github.com/aaronromeo/sortpat/internal/imap/selectors"
	"github.com/aaronromeo/sortpat/internal/imap/sessionmanager"
)

// Client is one mailbox session: a connection plus the search, fetch and
// store operations that run over it.
type Client struct {
	*sessionmanager.IMAPConnector
	*searches.IMAPSearchManager
	*actions.IMAPActionManager
	*selectors.IMAPSelectorManager
}

func New(labeling actions.Labeling, opts ...sessionmanager.Option) *Client {
	session := sessionmanager.NewServerConnector(opts...)
	return &Client{
		session,
		searches.New(session),
		actions.New(session, labeling),
		selectors.New(session),
	}
}
