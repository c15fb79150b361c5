// SPDX-License-Identifier: MIT

package wsserver

import (
	"context"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// Public API.

type (
	// ConnWriter is the broadcastable side of an open overlay connection.
	ConnWriter interface {
		WriteText(payload []byte) error
		io.Closer
	}

	// Service is everything the transport needs from the application:
	// the inbound text handler, the connection-opened observer and the plain HTTP routes.
	// Connected is invoked right after the handshake completes; packets broadcast
	// concurrently with registration may or may not reach that connection, the initial
	// snapshot written by Connected is what makes new clients converge.
	Service interface {
		RegisterRoutes(router *gin.Engine)
		HandleMessage(msg string) (reply string)
		Connected(w ConnWriter)
	}

	Server interface {
		// ListenAndServe starts both acceptors and blocks until ctx is done.
		ListenAndServe(ctx context.Context) error
		// Broadcast writes one text frame to every connection registered at call time,
		// best effort. A failed write never affects the other connections.
		Broadcast(payload []byte)
	}
)

// Private API.

const (
	// Application-level keepalive, distinct from protocol ping/pong.
	// Overlay clients send `PING<anything>` and expect `PONG<anything>` back,
	// without the message ever reaching the Service.
	keepalivePrefix = "PING"
	keepaliveReply  = "PONG"

	handshakeReadLimit = 8192
)

type (
	cfg struct {
		Overlay struct {
			WSPort           uint16        `yaml:"wsPort" mapstructure:"wsPort"`
			HTTPPort         uint16        `yaml:"httpPort" mapstructure:"httpPort"`
			HandshakeTimeout time.Duration `yaml:"handshakeTimeout" mapstructure:"handshakeTimeout"`
			WriteTimeout     time.Duration `yaml:"writeTimeout" mapstructure:"writeTimeout"`
			Development      bool          `yaml:"development" mapstructure:"development"`
		} `yaml:"overlay" mapstructure:"overlay"`
	}
	srv struct {
		cfg      *cfg
		service  Service
		listener net.Listener
		connsMx  sync.Mutex
		conns    map[string]*conn
	}
	conn struct {
		id           string
		netConn      net.Conn
		writeMx      sync.Mutex
		writeTimeout time.Duration
	}
)
