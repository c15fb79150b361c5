// SPDX-License-Identifier: MIT

package kitchen

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"github.com/streamkitchen/kettle/log"
	"github.com/streamkitchen/kettle/menu"
	"github.com/streamkitchen/kettle/wsserver"
)

// The Service doubles as the transport's application side: inbound overlay messages,
// the connection-opened snapshot and the plain HTTP routes.

// HandleMessage treats inbound overlay text as a console-issued chat command.
// Keepalive traffic never reaches this, the transport answers it in-process.
// `!t reset` is console-only: it wipes the economy for the current world.
func (s *Service) HandleMessage(msg string) string {
	if strings.TrimSpace(msg) == "!t reset" {
		if err := s.ledger.Reset(context.Background()); err != nil {
			log.Error(errors.Wrap(err, "failed to reset kitchen credits"))

			return "Reset failed, check the logs."
		}
		s.overlay.Reset()

		return "Kitchen credits have been reset."
	}

	return s.HandleChat(ChatMessage{Chatter: s.cfg.Kitchen.ConsoleChatter, IsModerator: true, Text: msg})
}

// Connected sends the full pools+waves snapshot to the newly registered connection.
func (s *Service) Connected(w wsserver.ConnWriter) {
	s.overlay.Initialize(w, s.ledger.Pools(), s.ledger.Waves())
}

func (s *Service) RegisterRoutes(router *gin.Engine) {
	router.GET("/", func(ginCtx *gin.Context) {
		wsEndpoint := fmt.Sprintf("%v:%v", hostOf(ginCtx.Request.Host), s.cfg.Overlay.WSPort)
		ginCtx.Data(http.StatusOK, "text/html; charset=utf-8", menu.OverlayPage(wsEndpoint))
	})
	router.GET("/menu", func(ginCtx *gin.Context) {
		ginCtx.Data(http.StatusOK, "text/html; charset=utf-8", menu.Menu(s.cfg.Kitchen.Items, s.cfg.Kitchen.Events))
	})
	router.GET("/redirect", func(ginCtx *gin.Context) {
		ginCtx.Data(http.StatusOK, "text/html; charset=utf-8", menu.RedirectPage())
	})
}

func hostOf(hostport string) string {
	for i := len(hostport) - 1; i >= 0; i-- {
		if hostport[i] == ':' {
			return hostport[:i]
		}
	}

	return hostport
}
