package relay

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// Client sends notifications the way the engine does. It is used for
// debugging from the command line and in tests.
type Client struct {
	kind    string
	address string
	timeout time.Duration
}

// NewClient creates a client for a transport kind ("unix" or "http") and
// its address (socket path, or host:port).
func NewClient(kind, address string) *Client {
	return &Client{
		kind:    kind,
		address: address,
		timeout: 5 * time.Second,
	}
}

// SetTimeout sets the per-send timeout.
func (c *Client) SetTimeout(timeout time.Duration) {
	c.timeout = timeout
}

// Send delivers one message and returns the relay's acknowledgment.
func (c *Client) Send(ctx context.Context, msg Message) (Ack, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return Ack{}, fmt.Errorf("failed to encode notification: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	switch c.kind {
	case "unix":
		return c.sendUnix(ctx, body)
	case "http":
		return c.sendHTTP(ctx, body)
	default:
		return Ack{}, fmt.Errorf("unknown transport %q", c.kind)
	}
}

func (c *Client) sendUnix(ctx context.Context, body []byte) (Ack, error) {
	dialer := net.Dialer{Timeout: c.timeout}
	conn, err := dialer.DialContext(ctx, "unix", c.address)
	if err != nil {
		return Ack{}, fmt.Errorf("failed to connect to notification socket at %s: %w", c.address, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}
	if _, err := conn.Write(append(body, '\n')); err != nil {
		return Ack{}, fmt.Errorf("failed to send notification: %w", err)
	}

	line, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil && !(err == io.EOF && len(line) > 0) {
		return Ack{}, fmt.Errorf("failed to read acknowledgment: %w", err)
	}
	return decodeAck(line)
}

func (c *Client) sendHTTP(ctx context.Context, body []byte) (Ack, error) {
	url := c.address
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "http://" + url + NotifyPath
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Ack{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return Ack{}, fmt.Errorf("failed to post notification: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Ack{}, fmt.Errorf("failed to read acknowledgment: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Ack{}, fmt.Errorf("notification rejected: %s: %s", resp.Status, strings.TrimSpace(string(data)))
	}
	return decodeAck(data)
}

func decodeAck(data []byte) (Ack, error) {
	var ack Ack
	if err := json.Unmarshal(bytes.TrimSpace(data), &ack); err != nil {
		return Ack{}, fmt.Errorf("invalid acknowledgment %q: %w", data, err)
	}
	return ack, nil
}
