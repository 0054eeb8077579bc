package imap

import (
	"context"

	"github.com/aaronromeo/sortpat/internal/imap/actions"
	"github.com/aaronromeo/sortpat/internal/imap/searches"
	"github.com/aaronromeo/sortpat/internal/imap/selectors"
	"github.com/aaronromeo/sortpat/internal/imap/sessionmanager"
)

//go:generate mockgen -destination=mock/session.go -package=mock github.com/aaronromeo/sortpat/internal/imap Session

// Session is everything a classification run needs from a mailbox
// connection.
type Session interface {
	sessionmanager.ServerConnector
	searches.ServerSearcher
	selectors.ClientSelectors
	actions.Actions

	Healthy() bool
	Ping(ctx context.Context) error
}

var _ Session = (*Client)(nil)
