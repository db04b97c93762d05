// Package smb2 implements transport.Client on top of github.com/cloudsoda/go-smb2.
//
// go-smb2 owns negotiation, NTLM authentication, signing and framing. This
// package dials the TCP connection itself so it can run the NetBIOS session
// request when the endpoint asks for port 139 framing, and it translates
// go-smb2 errors into *ntstatus.Error values the core understands.
package smb2

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	gosmb2 "github.com/cloudsoda/go-smb2"

	"github.com/marmos91/smbkit/pkg/ntstatus"
	"github.com/marmos91/smbkit/pkg/transport"
)

// DefaultDialTimeout bounds the TCP connect when the context has no deadline.
const DefaultDialTimeout = 10 * time.Second

var errNotConnected = errors.New("smb2: not connected")

// Factory creates go-smb2 backed clients.
type Factory struct {
	// DialTimeout overrides DefaultDialTimeout when positive.
	DialTimeout time.Duration
}

var _ transport.Factory = Factory{}

// NewClient implements transport.Factory.
func (f Factory) NewClient(maxBufferSize int) transport.Client {
	timeout := f.DialTimeout
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}
	return &Client{maxBuffer: maxBufferSize, dialer: net.Dialer{Timeout: timeout}}
}

// Client is one TCP connection carrying at most one SMB2 session.
type Client struct {
	maxBuffer int
	dialer    net.Dialer
	endpoint  transport.Endpoint
	conn      net.Conn
	session   *gosmb2.Session
}

var _ transport.Client = (*Client)(nil)

func (c *Client) Connect(ctx context.Context, ep transport.Endpoint) error {
	conn, err := c.dialer.DialContext(ctx, "tcp", ep.String())
	if err != nil {
		return err
	}
	if ep.Kind == transport.KindNetBIOS {
		if deadline, ok := ctx.Deadline(); ok {
			_ = conn.SetDeadline(deadline)
		}
		err := sessionRequest(conn, ep.Hostname)
		_ = conn.SetDeadline(time.Time{})
		if err != nil {
			_ = conn.Close()
			return err
		}
	}
	c.conn = conn
	c.endpoint = ep
	return nil
}

func (c *Client) Login(ctx context.Context, domain, username, password string) error {
	if c.conn == nil {
		return errNotConnected
	}
	d := &gosmb2.Dialer{
		Initiator: &gosmb2.NTLMInitiator{
			User:     username,
			Password: password,
			Domain:   domain,
		},
	}
	target := c.endpoint.Hostname
	if target == "" {
		target = c.endpoint.Addr.String()
	}
	s, err := d.DialConn(ctx, c.conn, target)
	if err != nil {
		return translateError(err)
	}
	c.session = s
	return nil
}

func (c *Client) Ping(ctx context.Context) error {
	if c.session == nil {
		return errNotConnected
	}
	return translateError(c.session.WithContext(ctx).Echo())
}

func (c *Client) TreeConnect(ctx context.Context, share string) (transport.Tree, error) {
	if c.session == nil {
		return nil, errNotConnected
	}
	mounted, err := c.session.WithContext(ctx).Mount(share)
	if err != nil {
		return nil, translateError(err)
	}
	return &tree{share: share, fs: mounted}, nil
}

func (c *Client) Logoff(ctx context.Context) error {
	if c.session == nil {
		return errNotConnected
	}
	err := c.session.WithContext(ctx).Logoff()
	c.session = nil
	return translateError(err)
}

func (c *Client) Disconnect() error {
	if c.conn == nil {
		return errNotConnected
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// MaxReadSize returns the configured buffer size. go-smb2 splits larger
// requests internally against the negotiated limit.
func (c *Client) MaxReadSize() int { return c.maxBuffer }

func (c *Client) MaxWriteSize() int { return c.maxBuffer }

// translateError maps go-smb2 errors onto NT_STATUS values. A server
// response error carries its status code. io.EOF becomes STATUS_END_OF_FILE.
// Anything else is returned as is and treated as a transport failure.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	var rerr *gosmb2.ResponseError
	if errors.As(err, &rerr) {
		return ntstatus.Wrap(ntstatus.Status(rerr.Code), err)
	}
	if errors.Is(err, io.EOF) {
		return ntstatus.Wrap(ntstatus.StatusEndOfFile, err)
	}
	if errors.Is(err, os.ErrNotExist) {
		return ntstatus.Wrap(ntstatus.StatusObjectNameNotFound, err)
	}
	if errors.Is(err, os.ErrExist) {
		return ntstatus.Wrap(ntstatus.StatusObjectNameCollision, err)
	}
	return fmt.Errorf("smb2: %w", err)
}
