// SPDX-License-Identifier: MIT

package wsserver

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/streamkitchen/kettle/log"
)

// The plain HTTP acceptor shares nothing with the ws acceptor except configuration.
func (s *srv) newHTTPServer() *http.Server {
	if !s.cfg.Overlay.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.HandleMethodNotAllowed = true
	router.RemoveExtraSlash = true

	log.Info("registering overlay routes...")
	s.service.RegisterRoutes(router)
	log.Info(fmt.Sprintf("%v overlay routes registered", len(router.Routes())))

	return &http.Server{
		Addr:    fmt.Sprintf(":%v", s.cfg.Overlay.HTTPPort),
		Handler: router,
	}
}
