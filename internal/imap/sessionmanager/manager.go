package sessionmanager

import (
	"context"
	"crypto/tls"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aaronromeo/sortpat/internal/mailerr"
	giimapclient "github.com/emersion/go-imap/v2/imapclient"
	"github.com/pkg/errors"
)

const DefaultCommandTimeout = 30 * time.Second

var ErrNotConnected = errors.New("IMAP client is not connected")

var errSessionLost = errors.New("IMAP connection lost")

type State int

const (
	Disconnected State = iota
	Connected
	Authenticated
)

func (s State) String() string {
	switch s {
	case Connected:
		return "connected"
	case Authenticated:
		return "authenticated"
	default:
		return "disconnected"
	}
}

type Option func(*IMAPConnector)

// ServerConnector owns the connection lifecycle.
type ServerConnector interface {
	Connect(ctx context.Context) error
	Close() error
	State() State
}

// IMAPConnector holds one IMAP connection and runs every command through a
// single-slot gate so that commands never interleave on the wire.
type IMAPConnector struct {
	Addr           string
	Username       string
	Password       string
	TLSConfig      *tls.Config
	CommandTimeout time.Duration

	mu       sync.Mutex
	client   *giimapclient.Client
	state    State
	selected string
	gate     *gate

	// lost is set when a timed-out command forced the connection closed.
	// The next Do reconnects and reselects lostFolder.
	lost       atomic.Bool
	lostFolder string
	restoreMu  sync.Mutex
}

// gate admits one command at a time. A gate is replaced, never reused, once
// its connection is abandoned.
type gate struct {
	slot      chan struct{}
	abandoned chan struct{}
}

func newGate() *gate {
	return &gate{slot: make(chan struct{}, 1), abandoned: make(chan struct{})}
}

func WithAddr(a string) Option {
	return func(c *IMAPConnector) {
		c.Addr = a
	}
}

func WithCreds(username string, password string) Option {
	return func(c *IMAPConnector) {
		c.Username = username
		c.Password = password
	}
}

func WithTLSConfig(config *tls.Config) Option {
	return func(c *IMAPConnector) {
		c.TLSConfig = config
	}
}

func WithCommandTimeout(d time.Duration) Option {
	return func(c *IMAPConnector) {
		c.CommandTimeout = d
	}
}

func NewServerConnector(opts ...Option) *IMAPConnector {
	c := &IMAPConnector{
		CommandTimeout: DefaultCommandTimeout,
		gate:           newGate(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect dials the server over TLS and logs in. Any failure is returned as a
// mailerr.ConnectionError.
func (c *IMAPConnector) Connect(ctx context.Context) error {
	if err := validateDeps(c); err != nil {
		return mailerr.NewConnection(c.Addr, err)
	}
	if c.State() != Disconnected {
		return nil
	}

	dialCtx := ctx
	if c.CommandTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, c.CommandTimeout)
		defer cancel()
	}

	dialer := &tls.Dialer{NetDialer: &net.Dialer{}, Config: c.tlsConfig()}
	conn, err := dialer.DialContext(dialCtx, "tcp", c.Addr)
	if err != nil {
		return mailerr.NewConnection(c.Addr, err)
	}

	c.mu.Lock()
	c.client = giimapclient.New(conn, nil)
	c.state = Connected
	c.selected = ""
	c.mu.Unlock()

	err = c.do(ctx, "login", func(client *giimapclient.Client) error {
		return client.Login(c.Username, c.Password).Wait()
	})
	if err != nil {
		c.drop()
		return mailerr.NewConnection(c.Addr, err)
	}

	c.mu.Lock()
	c.state = Authenticated
	c.mu.Unlock()
	return nil
}

func (c *IMAPConnector) tlsConfig() *tls.Config {
	if c.TLSConfig != nil {
		return c.TLSConfig
	}
	host, _, err := net.SplitHostPort(c.Addr)
	if err != nil {
		host = c.Addr
	}
	return &tls.Config{ServerName: host}
}

// Do runs fn against the live client once the gate is free. Waiting for the
// gate is bounded by ctx; CommandTimeout bounds fn itself. A command that
// times out takes the connection down with it so the commands queued behind
// it are not stuck; the next Do reconnects and reselects the folder.
func (c *IMAPConnector) Do(ctx context.Context, op string, fn func(*giimapclient.Client) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for {
		if err := c.restore(ctx); err != nil {
			return errors.Wrapf(err, "%s: reconnect", op)
		}
		err := c.do(ctx, op, fn)
		if errors.Is(err, errSessionLost) {
			continue
		}
		return err
	}
}

func (c *IMAPConnector) do(ctx context.Context, op string, fn func(*giimapclient.Client) error) error {
	g, client, err := c.acquire(ctx, op)
	if err != nil {
		return err
	}

	cmdCtx := ctx
	if c.CommandTimeout > 0 {
		var cancel context.CancelFunc
		cmdCtx, cancel = context.WithTimeout(ctx, c.CommandTimeout)
		defer cancel()
	}

	done := make(chan error, 1)
	go func() {
		defer func() { <-g.slot }()
		defer func() {
			if r := recover(); r != nil {
				done <- errors.Errorf("%s: panic: %v", op, r)
			}
		}()
		done <- fn(client)
	}()

	select {
	case err := <-done:
		return err
	case <-cmdCtx.Done():
		c.abandon(g)
		return errors.Wrapf(cmdCtx.Err(), "%s", op)
	}
}

// acquire takes the slot of the current gate and returns the client bound
// to it.
func (c *IMAPConnector) acquire(ctx context.Context, op string) (*gate, *giimapclient.Client, error) {
	for {
		c.mu.Lock()
		g := c.gate
		c.mu.Unlock()

		select {
		case g.slot <- struct{}{}:
		case <-g.abandoned:
			continue
		case <-ctx.Done():
			return nil, nil, errors.Wrapf(ctx.Err(), "%s: waiting for session", op)
		}

		c.mu.Lock()
		if g != c.gate {
			c.mu.Unlock()
			<-g.slot
			continue
		}
		client := c.client
		c.mu.Unlock()

		if client == nil {
			<-g.slot
			if c.lost.Load() {
				return nil, nil, errSessionLost
			}
			return nil, nil, ErrNotConnected
		}
		return g, client, nil
	}
}

// abandon closes the connection under a timed-out command. The command's
// goroutine keeps the old gate until it returns; new commands get a fresh one.
func (c *IMAPConnector) abandon(g *gate) {
	c.mu.Lock()
	if g != c.gate {
		c.mu.Unlock()
		return
	}
	client := c.client
	c.lostFolder = c.selected
	c.client = nil
	c.state = Disconnected
	c.selected = ""
	c.gate = newGate()
	c.lost.Store(true)
	c.mu.Unlock()

	close(g.abandoned)
	if client != nil {
		_ = client.Close()
	}
}

// restore reconnects after abandon and reselects the folder that was open.
func (c *IMAPConnector) restore(ctx context.Context) error {
	if !c.lost.Load() {
		return nil
	}
	c.restoreMu.Lock()
	defer c.restoreMu.Unlock()
	if !c.lost.Load() {
		return nil
	}

	if err := c.Connect(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	folder := c.lostFolder
	c.mu.Unlock()
	if folder != "" {
		err := c.do(ctx, "select", func(client *giimapclient.Client) error {
			_, err := client.Select(folder, nil).Wait()
			return err
		})
		if err != nil {
			return mailerr.NewFolder(folder, err)
		}
		c.MarkSelected(folder)
	}
	c.lost.Store(false)
	return nil
}

// State reports the connection state.
func (c *IMAPConnector) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Selected returns the currently selected folder, if any.
func (c *IMAPConnector) Selected() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected
}

// MarkSelected records a successful SELECT.
func (c *IMAPConnector) MarkSelected(folder string) {
	c.mu.Lock()
	c.selected = folder
	c.mu.Unlock()
}

// Healthy reports whether the session can be reused: authenticated and not
// waiting to reconnect after a timed-out command.
func (c *IMAPConnector) Healthy() bool {
	return c.State() == Authenticated && !c.lost.Load()
}

// Ping issues a NOOP.
func (c *IMAPConnector) Ping(ctx context.Context) error {
	return c.Do(ctx, "noop", func(client *giimapclient.Client) error {
		return client.Noop().Wait()
	})
}

// Close logs out and clears the connection. A session closed after a
// timed-out command is not reconnected.
func (c *IMAPConnector) Close() error {
	c.lost.Store(false)
	c.mu.Lock()
	client := c.client
	c.mu.Unlock()
	if client == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.closeTimeout())
	err := c.do(ctx, "logout", func(client *giimapclient.Client) error {
		return client.Logout().Wait()
	})
	cancel()
	c.drop()
	c.lost.Store(false)
	return err
}

func (c *IMAPConnector) closeTimeout() time.Duration {
	if c.CommandTimeout > 0 {
		return c.CommandTimeout
	}
	return DefaultCommandTimeout
}

func (c *IMAPConnector) drop() {
	c.mu.Lock()
	client := c.client
	c.client = nil
	c.state = Disconnected
	c.selected = ""
	c.mu.Unlock()
	if client != nil {
		_ = client.Close()
	}
}

func validateDeps(c *IMAPConnector) error {
	if strings.TrimSpace(c.Addr) == "" {
		return errors.New("IMAP address is required")
	}
	if strings.TrimSpace(c.Username) == "" || strings.TrimSpace(c.Password) == "" {
		return errors.New("IMAP credentials are required")
	}
	return nil
}
