// SPDX-License-Identifier: MIT

package wsserver

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	multierror "github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	appcfg "github.com/streamkitchen/kettle/config"
	"github.com/streamkitchen/kettle/log"
	"github.com/streamkitchen/kettle/wsserver/internal/frame"
)

func New(service Service, applicationYAMLKey string) Server {
	var config cfg
	appcfg.MustLoadFromKey(applicationYAMLKey, &config)

	return &srv{cfg: &config, service: service, conns: make(map[string]*conn)}
}

func (s *srv) ListenAndServe(ctx context.Context) error {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%v", s.cfg.Overlay.WSPort))
	if err != nil {
		return errors.Wrapf(err, "failed to listen on ws port %v", s.cfg.Overlay.WSPort)
	}
	s.listener = listener
	httpServer := s.newHTTPServer()
	go func() {
		if hErr := httpServer.ListenAndServe(); hErr != nil && !errors.Is(hErr, http.ErrServerClosed) {
			log.Error(errors.Wrap(hErr, "http acceptor failed"))
		}
	}()
	go s.acceptLoop(ctx)
	log.Info(fmt.Sprintf("overlay started. http: http://localhost:%v ws: ws://localhost:%v", s.cfg.Overlay.HTTPPort, s.cfg.Overlay.WSPort))
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second) //nolint:gomnd // Shutdown grace.
	defer cancel()
	err = multierror.Append( //nolint:wrapcheck // Aggregate of already wrapped errors.
		errors.Wrap(listener.Close(), "failed to close ws listener"),
		errors.Wrap(httpServer.Shutdown(shutdownCtx), "failed to shutdown http acceptor"),
		s.closeAll(),
	).ErrorOrNil()

	return err
}

func (s *srv) acceptLoop(ctx context.Context) {
	for {
		netConn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			log.Error(errors.Wrap(err, "failed to accept overlay connection"))

			continue
		}
		go s.serveConn(ctx, netConn)
	}
}

// serveConn drives one connection through AwaitingHandshake -> Open -> Closed.
// Every failure is fatal to this connection only.
func (s *srv) serveConn(ctx context.Context, netConn net.Conn) {
	c := &conn{id: uuid.NewString(), netConn: netConn, writeTimeout: s.cfg.Overlay.WriteTimeout}
	reader := bufio.NewReaderSize(netConn, handshakeReadLimit)
	if err := s.handshake(netConn, reader); err != nil {
		log.Warn("overlay handshake failed", "remoteAddr", netConn.RemoteAddr().String(), "error", err.Error())
		log.Error(errors.Wrap(netConn.Close(), "failed to close conn after failed handshake"))

		return
	}
	s.register(c)
	defer s.deregister(c)
	s.service.Connected(c)
	s.readLoop(ctx, c, reader)
}

func (s *srv) handshake(netConn net.Conn, reader *bufio.Reader) error {
	if s.cfg.Overlay.HandshakeTimeout > 0 {
		if err := netConn.SetReadDeadline(time.Now().Add(s.cfg.Overlay.HandshakeTimeout)); err != nil {
			return errors.Wrap(err, "failed to set handshake deadline")
		}
	}
	req, err := http.ReadRequest(reader)
	if err != nil {
		return errors.Wrap(err, "failed to read upgrade request")
	}
	if req.Method != http.MethodGet {
		return errors.Errorf("unexpected method %v", req.Method)
	}
	clientKey := req.Header.Get("Sec-WebSocket-Key")
	if clientKey == "" {
		return errors.New("missing Sec-WebSocket-Key")
	}
	response := "HTTP/1.1 101 Switching Protocols\r\n" +
		"Connection: Upgrade\r\n" +
		"Upgrade: websocket\r\n" +
		"Sec-WebSocket-Accept: " + frame.AcceptKey(clientKey) + "\r\n\r\n"
	if _, err = netConn.Write([]byte(response)); err != nil {
		return errors.Wrap(err, "failed to write 101 response")
	}

	return errors.Wrap(netConn.SetReadDeadline(time.Time{}), "failed to clear handshake deadline")
}

func (s *srv) readLoop(ctx context.Context, c *conn, reader *bufio.Reader) {
	for ctx.Err() == nil {
		opcode, payload, err := frame.Read(reader)
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				log.Warn("overlay connection read failed", "id", c.id, "error", err.Error())
			}

			return
		}
		switch opcode {
		case frame.OpText:
			if err = s.handleText(c, string(payload)); err != nil {
				log.Warn("overlay connection write failed", "id", c.id, "error", err.Error())

				return
			}
		case frame.OpPing:
			if err = c.write(frame.OpPong, payload); err != nil {
				return
			}
		case frame.OpClose:
			log.Error(errors.Wrap(c.write(frame.OpClose, nil), "failed to ack close frame"))

			return
		case frame.OpContinuation, frame.OpBinary, frame.OpPong:
			// Ignored. Fragmented and binary traffic is not part of the overlay protocol.
		}
	}
}

func (s *srv) handleText(c *conn, msg string) error {
	if strings.HasPrefix(msg, keepalivePrefix) {
		return c.WriteText([]byte(keepaliveReply + strings.TrimPrefix(msg, keepalivePrefix)))
	}
	if reply := s.service.HandleMessage(msg); reply != "" {
		return c.WriteText([]byte(reply))
	}

	return nil
}

func (s *srv) register(c *conn) {
	s.connsMx.Lock()
	defer s.connsMx.Unlock()
	s.conns[c.id] = c
}

func (s *srv) deregister(c *conn) {
	s.connsMx.Lock()
	delete(s.conns, c.id)
	s.connsMx.Unlock()
	log.Error(errors.Wrap(ignoreClosed(c.Close()), "failed to close deregistered conn"), "id", c.id)
}

func (s *srv) Broadcast(payload []byte) {
	s.connsMx.Lock()
	snapshot := make([]*conn, 0, len(s.conns))
	for _, c := range s.conns {
		snapshot = append(snapshot, c)
	}
	s.connsMx.Unlock()
	for _, c := range snapshot {
		if err := c.WriteText(payload); err != nil {
			// Best effort. The failing connection's own read loop will reap it.
			log.Warn("broadcast write failed", "id", c.id, "error", err.Error())
		}
	}
}

func (s *srv) closeAll() error {
	s.connsMx.Lock()
	defer s.connsMx.Unlock()
	err := new(multierror.Error)
	for _, c := range s.conns {
		err = multierror.Append(err, ignoreClosed(c.Close()))
	}
	s.conns = make(map[string]*conn)

	return errors.Wrap(err.ErrorOrNil(), "failed to close all overlay conns")
}

func (c *conn) WriteText(payload []byte) error {
	return c.write(frame.OpText, payload)
}

func (c *conn) write(opcode frame.Opcode, payload []byte) error {
	c.writeMx.Lock()
	defer c.writeMx.Unlock()
	if c.writeTimeout > 0 {
		if err := c.netConn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return errors.Wrap(err, "failed to set write deadline")
		}
	}
	_, err := c.netConn.Write(frame.Encode(opcode, payload))

	return errors.Wrapf(err, "failed to write %v frame", opcode)
}

func (c *conn) Close() error {
	return errors.Wrap(c.netConn.Close(), "failed to close overlay conn")
}

func ignoreClosed(err error) error {
	if errors.Is(err, net.ErrClosed) {
		return nil
	}

	return err
}
