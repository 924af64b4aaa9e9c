package runtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Server exposes an Invoker over HTTP. Salesforce delivers every invocation as a
// POST to the root path.
type Server struct {
	app     *fiber.App
	invoker *Invoker
	logger  *zap.Logger
}

func NewServer(invoker *Invoker, logger *zap.Logger) *Server {
	s := &Server{
		invoker: invoker,
		logger:  logger,
	}
	s.app = fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})
	s.app.Post("/", s.invoke)
	return s
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Listen(addr string) error {
	s.logger.Info("listening", zap.String("addr", addr))
	return s.app.Listen(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) invoke(c *fiber.Ctx) error {
	// fasthttp reuses the request buffer once the handler returns.
	body := append([]byte(nil), c.Body()...)
	header := func(name string) string {
		return c.Get(name)
	}

	resp := s.invoker.Invoke(c.UserContext(), header, body)
	for key, value := range resp.Headers() {
		c.Set(key, value)
	}
	return c.Status(resp.StatusCode).Send(resp.Body)
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		resp := jsonResponse(fiberErr.Code, fiberErr.Message, nil)
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.Status(resp.StatusCode).Send(resp.Body)
	}

	message := fmt.Sprintf("Internal error: %v", err)
	s.logger.Error(message)
	resp := jsonResponse(http.StatusServiceUnavailable, message, &ExtraInfo{
		RequestID: notAvailable,
		Source:    notAvailable,
	})
	for key, value := range resp.Headers() {
		c.Set(key, value)
	}
	return c.Status(resp.StatusCode).Send(resp.Body)
}
