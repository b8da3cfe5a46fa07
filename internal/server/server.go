package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"islamai-relay/internal/config"
	"islamai-relay/internal/models"
	"islamai-relay/internal/provider"
	"islamai-relay/internal/router"
	"islamai-relay/internal/settings"
	"islamai-relay/internal/translator"
)

const (
	maxBodyBytes        = 1 << 20 // 1 MiB
	shutdownGracePeriod = 10 * time.Second
	readTimeout         = 30 * time.Second
	// generation may stream for a couple of minutes
	writeTimeout = 150 * time.Second
	idleTimeout  = 120 * time.Second
	corsMaxAge   = 3600
)

type Server struct {
	cfg      config.Config
	router   *router.Router
	store    settings.Store
	registry *provider.Registry
	app      *echo.Echo
	address  string
}

// New constructs an HTTP server wired with routing and middleware.
func New(cfg config.Config, rt *router.Router, store settings.Store, registry *provider.Registry) (*Server, error) {
	if rt == nil {
		return nil, errors.New("router must not be nil")
	}
	if store == nil {
		return nil, errors.New("settings store must not be nil")
	}
	if registry == nil {
		return nil, errors.New("model registry must not be nil")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = envelopeErrorHandler

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogLatency:   true,
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			slog.Info("request",
				"id", v.RequestID,
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency_ms", v.Latency.Milliseconds(),
				"error", v.Error,
			)
			return nil
		},
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{cfg.Server.AllowedOrigin},
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowCredentials: true,
		MaxAge:           corsMaxAge,
	}))
	e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:      "1; mode=block",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "DENY",
		HSTSMaxAge:         31536000,
	}))

	srv := &Server{
		cfg:      cfg,
		router:   rt,
		store:    store,
		registry: registry,
		app:      e,
		address:  fmt.Sprintf(":%d", cfg.Server.Port),
	}

	srv.registerRoutes()

	return srv, nil
}

// Handler exposes the configured echo instance.
func (s *Server) Handler() http.Handler {
	return s.app
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	printStartupBanner(s.cfg.Server.Port, s.cfg.Server.BasePath)
	slog.Info("starting relay",
		"addr", s.address,
		"base_path", s.cfg.Server.BasePath,
		"allowed_origin", s.cfg.Server.AllowedOrigin,
		"settings_backend", s.cfg.Settings.Backend,
		"models", len(s.registry.Entries()))

	httpServer := &http.Server{
		Addr:         s.address,
		Handler:      s.app,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.app.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("listen on %s: %w", s.address, err)
	case <-ctx.Done():
	}

	slog.Info("draining in-flight chats", "grace", shutdownGracePeriod)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	slog.Info("relay stopped")
	return nil
}

func (s *Server) registerRoutes() {
	s.app.GET("/health", s.handleHealth)

	api := s.app.Group(s.cfg.Server.BasePath)
	api.POST("/keys", s.handleUpdateKey)
	api.GET("/keys/:provider", s.handleGetKey)
	api.POST("/chat", s.handleChat)
	api.GET("/models", s.handleListModels)
	api.PUT("/models/active", s.handleSetActiveModel)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleUpdateKey(c echo.Context) error {
	var req translator.KeyUpdateRequest
	if err := decodeRequestBody(c, &req); err != nil {
		return err
	}

	p, err := parseProvider(req.Provider)
	if err != nil {
		return err
	}
	if err := s.store.SetKey(c.Request().Context(), p, req.Key); err != nil {
		return toHTTPError(err)
	}
	slog.Info("api key updated", "provider", p)
	return c.JSON(http.StatusOK, translator.KeyUpdated(p))
}

func (s *Server) handleGetKey(c echo.Context) error {
	p, err := parseProvider(c.Param("provider"))
	if err != nil {
		return err
	}
	key, err := s.store.GetKey(c.Request().Context(), p)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, translator.KeyRetrieved(p, key))
}

func (s *Server) handleChat(c echo.Context) error {
	var req translator.ChatMessageRequest
	if err := decodeRequestBody(c, &req); err != nil {
		return err
	}

	result, err := s.router.Chat(c.Request().Context(), req.ToChatRequest())
	if err != nil {
		var stageErr *router.StageError
		if errors.As(err, &stageErr) {
			slog.Warn("chat failed", "state", stageErr.State.String(), "model", req.Model, "error", err)
		}
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, translator.FromChatResult(result))
}

func (s *Server) handleListModels(c echo.Context) error {
	active, err := s.store.ActiveModel(c.Request().Context())
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, translator.FromModelEntries(s.registry.Entries(), active))
}

func (s *Server) handleSetActiveModel(c echo.Context) error {
	var req translator.ActiveModelRequest
	if err := decodeRequestBody(c, &req); err != nil {
		return err
	}
	if _, err := s.registry.Resolve(req.Model); err != nil {
		return toHTTPError(err)
	}
	if err := s.store.SetActiveModel(c.Request().Context(), req.Model); err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, translator.ActiveModelUpdated(req.Model))
}

func parseProvider(value string) (models.ProviderName, error) {
	p, ok := models.ParseProvider(value)
	if !ok {
		return "", requestError{
			Status:  http.StatusBadRequest,
			Message: settings.ErrUnknownProvider.Error(),
		}
	}
	return p, nil
}

func decodeRequestBody[T any](c echo.Context, target *T) error {
	req := c.Request()
	defer req.Body.Close()

	req.Body = http.MaxBytesReader(c.Response(), req.Body, maxBodyBytes)

	decoder := json.NewDecoder(req.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return requestError{
				Status:  http.StatusBadRequest,
				Message: "request body is required",
			}
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return requestError{
				Status:  http.StatusRequestEntityTooLarge,
				Message: "request body too large",
			}
		}
		return requestError{
			Status:  http.StatusBadRequest,
			Message: fmt.Sprintf("invalid JSON payload: %v", err),
		}
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return requestError{
			Status:  http.StatusBadRequest,
			Message: "request body must contain a single JSON object",
		}
	}
	return nil
}

type requestError struct {
	Status  int
	Message string
}

func (e requestError) Error() string {
	return e.Message
}

func writeError(c echo.Context, status int, message string) error {
	if c.Response().Committed {
		return nil
	}
	return c.JSON(status, translator.Failure(message))
}

func envelopeErrorHandler(err error, c echo.Context) {
	var reqErr requestError
	if errors.As(err, &reqErr) {
		_ = writeError(c, reqErr.Status, reqErr.Message)
		return
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		_ = writeError(c, he.Code, fmt.Sprint(he.Message))
		return
	}

	slog.Error("unhandled error", "error", err)
	_ = writeError(c, http.StatusInternalServerError, "internal server error")
}

func toHTTPError(err error) error {
	var reqErr requestError
	if errors.As(err, &reqErr) {
		return reqErr
	}

	switch {
	case errors.Is(err, router.ErrValidation),
		errors.Is(err, provider.ErrUnsupportedModel),
		errors.Is(err, provider.ErrProviderAuth),
		errors.Is(err, settings.ErrUnknownProvider):
		return requestError{Status: http.StatusBadRequest, Message: err.Error()}
	case errors.Is(err, provider.ErrProviderGeneration):
		return requestError{Status: http.StatusBadGateway, Message: err.Error()}
	}

	slog.Error("internal failure", "error", err)
	return requestError{
		Status:  http.StatusInternalServerError,
		Message: "internal server error",
	}
}

func printStartupBanner(port int, basePath string) {
	host := "127.0.0.1"
	fmt.Println()
	fmt.Println("islamai-relay ready")
	fmt.Printf("Listening on http://%s:%d\n", host, port)
	fmt.Println("Endpoints:")
	fmt.Println("  GET  /health")
	fmt.Printf("  POST %s/keys\n", basePath)
	fmt.Printf("  GET  %s/keys/:provider\n", basePath)
	fmt.Printf("  POST %s/chat\n", basePath)
	fmt.Printf("  GET  %s/models\n", basePath)
	fmt.Printf("  PUT  %s/models/active\n", basePath)
	fmt.Printf("Example:\n  curl http://%s:%d%s/chat -H 'Content-Type: application/json' -d '{\"model\":\"gemini-pro\",\"content\":\"What is Zakat?\"}'\n\n", host, port, basePath)
}
