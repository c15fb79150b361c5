// SPDX-License-Identifier: MIT

// Package fixture provides a real websocket client for transport tests,
// deliberately built on a third-party implementation so the hand-rolled
// server side is verified against an independent one.
package fixture

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

type Client struct {
	conn     *websocket.Conn
	received chan []byte
	pongs    chan string
}

// NewClient dials url, performs the websocket handshake and starts pumping inbound
// text messages into Received. The channel closes when the connection dies.
func NewClient(ctx context.Context, url string) (*Client, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to dial %v", url)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	client := &Client{conn: conn, received: make(chan []byte, 1024), pongs: make(chan string, 16)}
	conn.SetPongHandler(func(appData string) error {
		select {
		case client.pongs <- appData:
		default:
		}

		return nil
	})
	go client.readLoop()

	return client, nil
}

func (c *Client) readLoop() {
	defer close(c.received)
	for {
		messageType, payload, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType == websocket.TextMessage {
			c.received <- payload
		}
	}
}

func (c *Client) SendText(msg string) error {
	return errors.Wrapf(c.conn.WriteMessage(websocket.TextMessage, []byte(msg)), "failed to send %v", msg)
}

func (c *Client) Ping(payload string) error {
	return errors.Wrap(c.conn.WriteControl(websocket.PingMessage, []byte(payload), deadline()), "failed to ping")
}

func (c *Client) Received() <-chan []byte {
	return c.received
}

func (c *Client) Pongs() <-chan string {
	return c.pongs
}

func (c *Client) Close() error {
	return errors.Wrap(c.conn.Close(), "failed to close client conn")
}

func deadline() time.Time {
	return time.Now().Add(5 * time.Second) //nolint:gomnd // Control frame deadline.
}
