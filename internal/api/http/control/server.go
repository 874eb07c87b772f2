package control

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oshokin/sos-button/internal/logger"
	"github.com/oshokin/sos-button/internal/trigger"
)

const (
	// shutdownTimeout bounds graceful shutdown of the listener.
	shutdownTimeout = 5 * time.Second
	// readHeaderTimeout bounds slow clients.
	readHeaderTimeout = 5 * time.Second
)

// Service abstracts the controller operations the transport layer depends on.
type Service interface {
	Status() trigger.Status
	PressPanic(ctx context.Context) bool
	ReleasePanic() bool
	StartVoice(ctx context.Context) error
	StopVoice(ctx context.Context)
	ShowDecoy() (trigger.Handle, bool)
	DismissDecoy() bool
}

// NoticeSource returns recent notices.
type NoticeSource interface {
	Recent() []trigger.Notice
}

// actionResponse is the body of every POST route.
type actionResponse struct {
	// Changed is false when the action was ignored in the current state.
	Changed bool           `json:"changed"`
	Status  trigger.Status `json:"status"`
}

// errorResponse is the body of failed requests.
type errorResponse struct {
	Error string `json:"error"`
}

// Server implements the local control API.
type Server struct {
	// service provides the trigger operations.
	service Service
	// notices serves /notices, nil returns an empty list.
	notices NoticeSource
	// router is the gin engine with every route registered.
	router *gin.Engine
}

// NewServer wires the provided service into a gin handler. The gin mode is
// left to the caller.
func NewServer(service Service, notices NoticeSource) *Server {
	s := &Server{
		service: service,
		notices: notices,
		router:  gin.New(),
	}

	s.router.Use(gin.Recovery())
	s.registerRoutes()

	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve serves on listener until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	server := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		_ = server.Shutdown(shutdownCtx) //nolint:contextcheck // Shutdown must outlive the cancelled ctx.
	}()

	logger.InfoKV(ctx, "Control surface listening", "address", listener.Addr().String())

	if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve control surface: %w", err)
	}

	return nil
}

// registerRoutes sets up every control route.
func (s *Server) registerRoutes() {
	s.router.GET("/status", s.handleStatus)
	s.router.GET("/notices", s.handleNotices)

	s.router.POST("/panic/press", s.handlePanicPress)
	s.router.POST("/panic/release", s.handlePanicRelease)
	s.router.POST("/voice/start", s.handleVoiceStart)
	s.router.POST("/voice/stop", s.handleVoiceStop)
	s.router.POST("/decoy/show", s.handleDecoyShow)
	s.router.POST("/decoy/dismiss", s.handleDecoyDismiss)
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.service.Status())
}

func (s *Server) handleNotices(c *gin.Context) {
	notices := []trigger.Notice{}
	if s.notices != nil {
		notices = append(notices, s.notices.Recent()...)
	}

	c.JSON(http.StatusOK, notices)
}

// Trigger sessions outlive the request, so handlers detach from its cancellation.
func (s *Server) handlePanicPress(c *gin.Context) {
	s.respond(c, s.service.PressPanic(context.WithoutCancel(c.Request.Context())))
}

func (s *Server) handlePanicRelease(c *gin.Context) {
	s.respond(c, s.service.ReleasePanic())
}

func (s *Server) handleVoiceStart(c *gin.Context) {
	if err := s.service.StartVoice(context.WithoutCancel(c.Request.Context())); err != nil {
		c.JSON(statusFor(err), errorResponse{Error: err.Error()})
		return
	}

	s.respond(c, true)
}

func (s *Server) handleVoiceStop(c *gin.Context) {
	s.service.StopVoice(c.Request.Context())
	s.respond(c, true)
}

func (s *Server) handleDecoyShow(c *gin.Context) {
	_, shown := s.service.ShowDecoy()
	s.respond(c, shown)
}

func (s *Server) handleDecoyDismiss(c *gin.Context) {
	s.respond(c, s.service.DismissDecoy())
}

// respond writes the action outcome with a fresh status snapshot.
func (s *Server) respond(c *gin.Context, changed bool) {
	c.JSON(http.StatusOK, actionResponse{
		Changed: changed,
		Status:  s.service.Status(),
	})
}

// statusFor maps trigger errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, trigger.ErrUnsupportedCapability):
		return http.StatusNotImplemented
	case errors.Is(err, trigger.ErrBusy):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
