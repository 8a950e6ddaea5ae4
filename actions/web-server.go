package actions

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/relloyd/cdcpipe/logger"
)

type WebServerConfig struct {
	Scheme string
	Addr   net.IP
	Port   int
}

func NewRouter(log logger.Logger, streams StreamController, runID string) *mux.Router {
	r := mux.NewRouter()
	r.Path("/health").Methods(http.MethodGet).HandlerFunc(GetHandlerHealth(log))
	r.Path("/stop").Methods(http.MethodGet, http.MethodPost).HandlerFunc(GetHandlerStop(log, streams))
	r.Path("/streams").Methods(http.MethodGet).HandlerFunc(GetHandlerStreamList(log, streams, runID))
	r.Path("/streams/{table}/status").Methods(http.MethodGet).HandlerFunc(GetHandlerStreamStatus(log, streams))
	return r
}

// startWebServer serves the stream routes without blocking.
func startWebServer(log logger.Logger, web WebServerConfig, streams StreamController, runID string) *http.Server {
	if web.Scheme == "" {
		web.Scheme = "http"
	}
	if web.Addr == nil {
		web.Addr = net.IP{0, 0, 0, 0}
	}
	srv := &http.Server{
		Addr:         fmt.Sprintf("%v:%v", web.Addr, web.Port),
		WriteTimeout: time.Second * 15,
		ReadTimeout:  time.Second * 15,
		IdleTimeout:  time.Second * 60,
		Handler:      NewRouter(log, streams, runID),
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil {
			if err == http.ErrServerClosed {
				log.Info(err)
			} else {
				log.Error("web server failed: ", err)
			}
		}
	}()
	log.Info(fmt.Sprintf("Listening on %v://%v:%v", strings.ToLower(web.Scheme), web.Addr, web.Port))
	return srv
}

func shutdownWebServer(log logger.Logger, srv *http.Server) {
	log.Info("Shutting down web server...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("error shutting down web server: ", err)
	}
}
