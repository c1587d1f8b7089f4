package api

import (
	"fmt"
	"net/http"
	"time"
)

// NewServer creates the *http.Server for the points and rounds API.
// WriteTimeout is left unset so websocket feeds are not cut off; handlers are
// bounded by the router's timeout middleware instead.
func NewServer(port uint16, h *HandlerProvider) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           NewRouter(h),
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
