package ws

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jcdorr003/marty-emulator/internal/ricserial"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	responseWait   = 5 * time.Second
	maxMessageSize = 512 * 1024

	initialBackoff = 500 * time.Millisecond
	maxBackoff     = 10 * time.Second
	backoffFactor  = 2.0
	jitter         = 0.2
)

// Client is a standards-compliant peer speaking the robot protocol.
// Requests are serialized: one outstanding command at a time, matched by id.
type Client struct {
	url    string
	logger *zap.SugaredLogger

	mu     sync.Mutex
	conn   *websocket.Conn
	nextID byte
}

// Dial connects to url, retrying with exponential backoff until attempts are exhausted.
// At least one attempt is always made.
func Dial(ctx context.Context, url string, attempts int, logger *zap.SugaredLogger) (*Client, error) {
	if attempts < 1 {
		attempts = 1
	}
	c := &Client{url: url, logger: logger, nextID: 1}

	backoff := initialBackoff
	var lastErr error
	for i := 0; i < attempts; i++ {
		if err := c.connect(ctx); err != nil {
			lastErr = err
			c.logger.Warnw("Failed to connect to emulator", "error", err, "retryIn", backoff)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(addJitter(backoff, jitter)):
			}

			backoff = time.Duration(float64(backoff) * backoffFactor)
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		c.logger.Infow("✅ Connected to emulator", "url", url)
		return c, nil
	}
	return nil, fmt.Errorf("giving up after %d attempts: %w", attempts, lastErr)
}

func (c *Client) connect(ctx context.Context) error {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("WebSocket dial failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return fmt.Errorf("WebSocket dial failed: %w", err)
	}
	conn.SetReadLimit(maxMessageSize)
	c.conn = conn
	return nil
}

// Do sends cmd with a fresh id and waits for the response carrying the same id.
// The id set on cmd is ignored; raw Unknown payloads are answered with id 0.
func (c *Client) Do(ctx context.Context, cmd ricserial.Command) (ricserial.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID
	c.nextID++
	cmd = withID(cmd, id)
	want := cmd.MsgID()

	payload, err := ricserial.EncodeCommand(cmd)
	if err != nil {
		return ricserial.Response{}, err
	}

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.BinaryMessage, payload); err != nil {
		return ricserial.Response{}, fmt.Errorf("failed to write command: %w", err)
	}

	deadline := time.Now().Add(responseWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = c.conn.SetReadDeadline(deadline)

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			return ricserial.Response{}, fmt.Errorf("failed to read response: %w", err)
		}
		resp, err := ricserial.DecodeResponse(message)
		if err != nil {
			c.logger.Warnw("Discarding undecodable frame", "error", err, "bytes", len(message))
			continue
		}
		if resp.ID != want {
			c.logger.Debugw("Discarding response for another request", "id", resp.ID, "want", want)
			continue
		}
		return resp, nil
	}
}

// Close sends a close frame and closes the connection
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_ = c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait),
	)
	return c.conn.Close()
}

func withID(cmd ricserial.Command, id byte) ricserial.Command {
	switch c := cmd.(type) {
	case ricserial.Rest:
		c.ID = id
		return c
	case ricserial.JSON:
		c.ID = id
		return c
	case ricserial.Binary:
		c.ID = id
		return c
	default:
		return cmd
	}
}

// addJitter adds random jitter to a duration
func addJitter(duration time.Duration, jitter float64) time.Duration {
	multiplier := 1.0 + (rand.Float64()*2-1)*jitter
	return time.Duration(float64(duration) * multiplier)
}
