package transport

import (
	"fmt"
	"time"
)

// Client sends command frames to a Server over a REQ socket and waits
// for the matching REP frame, mirroring mangos' strict request/reply
// pairing (Send must be followed by Recv before the next Send).
type Client struct {
	sock  DialSocket
	auth  bool
	token string
}

// NewClient dials addr and returns a Client. If authEnabled is true,
// callers must call Authenticate before sending any command.
func NewClient(factory SocketFactory, addr string, authEnabled bool) (*Client, error) {
	sock, err := factory.NewRequestSocket()
	if err != nil {
		return nil, fmt.Errorf("transport: new request socket: %w", err)
	}
	if err := sock.Dial(addr); err != nil {
		sock.Close()
		return nil, fmt.Errorf("transport: dial %s: %w", addr, err)
	}
	return &Client{sock: sock, auth: authEnabled}, nil
}

// Close closes the underlying socket.
func (c *Client) Close() error {
	return c.sock.Close()
}

// Authenticate exchanges a shared secret for a bearer token, storing it
// for use by subsequent Send calls.
func (c *Client) Authenticate(clientID, secret string) error {
	frame := fmt.Sprintf("%s %s %s", frameAuth, clientID, secret)
	resp, err := c.roundTrip(frame)
	if err != nil {
		return err
	}
	if len(resp) < len(respToken)+1 || resp[:len(respToken)] != respToken {
		return fmt.Errorf("transport: auth rejected: %s", resp)
	}
	c.token = resp[len(respToken)+1:]
	return nil
}

// Send issues one command line and returns the server's response text.
func (c *Client) Send(line string) (string, error) {
	frame := line
	if c.auth {
		frame = fmt.Sprintf("%s %s %s", frameCmd, c.token, line)
	}
	return c.roundTrip(frame)
}

func (c *Client) roundTrip(frame string) (string, error) {
	if err := c.sock.SetSendDeadline(10 * time.Second); err != nil {
		return "", err
	}
	if err := c.sock.Send([]byte(frame)); err != nil {
		return "", fmt.Errorf("transport: send: %w", err)
	}
	if err := c.sock.SetRecvDeadline(10 * time.Second); err != nil {
		return "", err
	}
	resp, err := c.sock.Recv()
	if err != nil {
		return "", fmt.Errorf("transport: recv: %w", err)
	}
	return string(resp), nil
}
