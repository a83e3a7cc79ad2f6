// Package gateway exposes the store over HTTP and WebSocket and serves the
// operator's key-injection and attestation endpoints.
package gateway

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/offchainlabs/lottery-enclave/internal/enclave"
	"github.com/offchainlabs/lottery-enclave/internal/store"
)

var log = logrus.WithField("prefix", "gateway")

// version/commit are overridable via -ldflags at build time; both default
// to "dev" so a plain `go build` still works.
var (
	version = "dev"
	commit  = "dev"
)

// ChainHealth is the subset of *chainclient.Client the gateway needs for
// /api/health and /api/status.
type ChainHealth interface {
	HealthCheck(ctx context.Context) map[string]interface{}
}

// OperatorStatus is the subset of *operator.Operator the gateway needs.
type OperatorStatus interface {
	Status() map[string]interface{}
}

// KeyService is the subset of *enclave.Service the gateway needs for the
// attestation and key-injection endpoints.
type KeyService interface {
	PublicKeyPEM() (string, error)
	PublicKeyHex() string
	Attestation() (*enclave.Document, error)
	SetOperatorKey(encryptedB64 string) (operatorAddress string, injErr *enclave.InjectionError)
	Allow(remoteIP string) bool
}

// Server wires the store and its satellite components to an echo.Echo
// instance, plus a single broadcast fan-out to every connected WebSocket.
type Server struct {
	st       *store.Store
	chain    ChainHealth
	operator OperatorStatus
	keys     KeyService
	contract string // contract address, for /api/contract/address

	echo     *echo.Echo
	upgrader websocket.Upgrader

	wsHub *wsHub
}

// Options configures static dependencies and limits.
type Options struct {
	StaticDir       string // served as SPA fallback; empty disables it
	ParticipantsMax int
}

// New builds a Server and registers its routes.
func New(st *store.Store, chain ChainHealth, operatorStatus OperatorStatus, keys KeyService, contractAddress string, opts Options) *Server {
	if opts.ParticipantsMax <= 0 {
		opts.ParticipantsMax = 200
	}

	s := &Server{
		st:       st,
		chain:    chain,
		operator: operatorStatus,
		keys:     keys,
		contract: contractAddress,
		echo:     echo.New(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		wsHub: newWSHub(),
	}
	s.echo.HideBanner = true
	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogValuesFunc: func(c echo.Context, values middleware.RequestLoggerValues) error {
			log.WithFields(logrus.Fields{"uri": values.URI, "status": values.Status}).Info("request")
			return nil
		},
	}))
	s.registerRoutes(opts)
	return s
}

func (s *Server) registerRoutes(opts Options) {
	s.echo.GET("/api/health", s.handleHealth)
	s.echo.GET("/api/status", s.handleStatus)
	s.echo.GET("/api/round/status", s.handleRoundStatus)
	s.echo.GET("/api/round/participants", s.handleParticipants(opts.ParticipantsMax))
	s.echo.GET("/api/round/player", s.handlePlayer)
	s.echo.GET("/api/history", s.handleHistory)
	s.echo.GET("/api/activities", s.handleActivities)
	s.echo.GET("/api/contract/config", s.handleContractConfig)
	s.echo.GET("/api/contract/address", s.handleContractAddress)
	s.echo.GET("/api/attestation", s.handleAttestation)
	s.echo.GET("/api/get_pub_key", s.handleGetPubKey)
	s.echo.POST("/api/set_operator_key", s.handleSetOperatorKey)
	s.echo.GET("/ws/lottery", s.handleWebSocket)
	s.echo.GET("/api/version", s.handleVersion)

	if opts.StaticDir != "" {
		s.echo.Static("/", opts.StaticDir)
		s.echo.GET("/*", func(c echo.Context) error {
			return c.File(opts.StaticDir + "/index.html")
		})
	}
}

// Start subscribes the store's listeners to the broadcaster and serves HTTP
// until ctx is cancelled.
func (s *Server) Start(ctx context.Context, addr string) error {
	go s.wsHub.run(ctx)
	s.subscribeBroadcastSources()

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.echo.Start(addr)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.echo.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("gateway: serve: %w", err)
		}
		return nil
	}
}

// subscribeBroadcastSources wires every store event type except
// blockchain_event into the single broadcast queue the WebSocket hub drains.
func (s *Server) subscribeBroadcastSources() {
	sources := []store.EventType{
		store.EventRoundUpdate,
		store.EventParticipantsUpdate,
		store.EventHistoryUpdate,
		store.EventLiveFeed,
		store.EventConfigUpdate,
	}
	for _, eventType := range sources {
		ch := s.st.AddListener(eventType, 64)
		go func(et store.EventType, c <-chan store.Payload) {
			for payload := range c {
				s.wsHub.enqueue(string(et), payload)
			}
		}(eventType, ch)
	}
}
