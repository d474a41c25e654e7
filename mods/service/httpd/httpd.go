// Package httpd exposes Bayesian regression sessions over HTTP so that
// plotting front-ends and remote demos can create an updater, feed it
// observation batches, and read the posterior back as plain numbers.
package httpd

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jellydator/ttlcache/v3"
	"github.com/machbase/neo-bayes/mods/logging"
)

type Service interface {
	Start() error
	Stop()
}

type Option func(s *httpd)

// Factory
func New(options ...Option) (Service, error) {
	s := &httpd{
		log:        logging.GetLog("httpd"),
		sessionTTL: 30 * time.Minute,
	}
	for _, opt := range options {
		opt(s)
	}
	s.sessions = ttlcache.New(
		ttlcache.WithTTL[string, *session](s.sessionTTL),
	)
	return s, nil
}

func OptionListenAddress(addrs ...string) Option {
	return func(s *httpd) {
		s.listenAddresses = append(s.listenAddresses, addrs...)
	}
}

// OptionSessionTTL sets how long an idle session survives before the
// store evicts it. Any access extends the lease.
func OptionSessionTTL(ttl time.Duration) Option {
	return func(s *httpd) {
		if ttl > 0 {
			s.sessionTTL = ttl
		}
	}
}

func OptionDebugMode() Option {
	return func(s *httpd) {
		s.debugMode = true
	}
}

func OptionReleaseMode() Option {
	return func(s *httpd) {
		s.debugMode = false
	}
}

type httpd struct {
	log   logging.Log
	alive bool

	listenAddresses []string
	sessionTTL      time.Duration
	sessions        *ttlcache.Cache[string, *session]

	httpServer *http.Server
	listeners  []net.Listener

	debugMode bool
}

func (svr *httpd) Start() error {
	svr.alive = true

	if svr.debugMode {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	go svr.sessions.Start()

	svr.httpServer = &http.Server{}
	svr.httpServer.Handler = svr.Router()

	for _, listen := range svr.listenAddresses {
		lsnr, err := makeListener(listen)
		if err != nil {
			return fmt.Errorf("cannot start with failed listener: %w", err)
		}
		svr.listeners = append(svr.listeners, lsnr)
		go svr.httpServer.Serve(lsnr)
		svr.log.Infof("HTTP Listen %s", listen)
	}
	return nil
}

func (svr *httpd) Stop() {
	svr.alive = false
	svr.sessions.Stop()
	if svr.httpServer == nil {
		return
	}
	ctx, cancelFunc := context.WithTimeout(context.Background(), 3*time.Second)
	svr.httpServer.Shutdown(ctx)
	cancelFunc()
}

func (svr *httpd) Router() *gin.Engine {
	r := gin.New()
	r.Use(RecoveryWithLogging(svr.log))
	r.Use(HttpLogger("http-log"))
	r.Use(svr.corsHandler())

	r.GET("/healthz", svr.handleHealthz)

	group := r.Group("/web/api")
	group.POST("/sessions", svr.handleCreateSession)
	group.GET("/sessions/:id", svr.handleGetSession)
	group.DELETE("/sessions/:id", svr.handleDeleteSession)
	group.POST("/sessions/:id/update", svr.handleUpdateSession)
	group.POST("/sessions/:id/bounds", svr.handleBounds)
	group.POST("/sessions/:id/sample", svr.handleSampleWeights)
	group.POST("/sessions/:id/generate", svr.handleGenerate)

	return r
}

func (svr *httpd) corsHandler() gin.HandlerFunc {
	corsHandler := cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	})
	return corsHandler
}

func (svr *httpd) handleHealthz(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"success": true, "reason": "success"})
}

func makeListener(addr string) (net.Listener, error) {
	if strings.HasPrefix(addr, "unix://") {
		pwd := strings.TrimPrefix(addr, "unix://")
		return net.Listen("unix", pwd)
	} else if strings.HasPrefix(addr, "tcp://") {
		return net.Listen("tcp", strings.TrimPrefix(addr, "tcp://"))
	} else {
		return nil, fmt.Errorf("unsupported listen scheme %s", addr)
	}
}
