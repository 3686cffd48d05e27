// Package server exposes the extraction pipeline over HTTP.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/ArionMiles/mailtxn/pkg/api"
	"github.com/ArionMiles/mailtxn/pkg/extract"
)

const shutdownTimeout = 5 * time.Second

// ExtractRequest is the body of POST /api/extract. A bare JSON array of
// messages is accepted as well.
type ExtractRequest struct {
	Messages []*api.RawMessage `json:"messages"`
}

// ExtractResponse is the body returned by POST /api/extract.
type ExtractResponse struct {
	Items []api.Item `json:"items"`
	// Count is len(Items).
	Count int `json:"count"`
	// Filtered is the number of input messages dropped as noise.
	Filtered int `json:"filtered"`
}

// ErrorResponse is returned with every non-2xx status.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Server serves the extraction API.
type Server struct {
	app      *fiber.App
	pipeline *extract.Pipeline
	logger   *slog.Logger
}

// New creates a server around p. A nil pipeline uses extract.Default.
func New(p *extract.Pipeline, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if p == nil {
		p = extract.Default()
	}

	s := &Server{
		pipeline: p,
		logger:   logger.With("component", "server"),
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "mailtxn",
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})
	s.app.Use(recover.New())
	s.app.Use(s.logRequests)
	s.app.Get("/api/health", s.handleHealth)
	s.app.Post("/api/extract", s.handleExtract)
	return s
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Listen(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.app.Listen(addr)
	}()

	s.logger.Info("listening", "addr", addr)

	select {
	case err := <-errCh:
		return fmt.Errorf("listening on %s: %w", addr, err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down", "reason", ctx.Err())
	if err := s.app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return <-errCh
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) handleExtract(c *fiber.Ctx) error {
	msgs, err := decodeMessages(c.Body())
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	items := s.pipeline.Extract(msgs)
	return c.JSON(ExtractResponse{
		Items:    items,
		Count:    len(items),
		Filtered: len(msgs) - len(items),
	})
}

// decodeMessages accepts either {"messages": [...]} or a bare array. An empty
// body is an empty batch.
func decodeMessages(body []byte) ([]*api.RawMessage, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, nil
	}

	if body[0] == '[' {
		var msgs []*api.RawMessage
		if err := json.Unmarshal(body, &msgs); err != nil {
			return nil, fmt.Errorf("decoding messages: %w", err)
		}
		return msgs, nil
	}

	var req ExtractRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, fmt.Errorf("decoding request: %w", err)
	}
	return req.Messages, nil
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var ferr *fiber.Error
	if errors.As(err, &ferr) {
		code = ferr.Code
	}
	if code >= fiber.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.Path(), "error", err)
	}
	return c.Status(code).JSON(ErrorResponse{Error: err.Error()})
}

func (s *Server) logRequests(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	s.logger.Debug("request",
		"method", c.Method(),
		"path", c.Path(),
		"status", c.Response().StatusCode(),
		"duration", time.Since(start),
	)
	return err
}
