package bot

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/hiro1966/line-official-prottype1/internal/platform/messaging"
)

// eventTimeout bounds the handling of one webhook event after the HTTP
// response has been written.
const eventTimeout = 30 * time.Second

type Handler struct {
	svc           *Service
	channelSecret string
	logger        zerolog.Logger
}

func NewHandler(svc *Service, channelSecret string, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, channelSecret: channelSecret, logger: logger}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/webhook", h.Webhook)
}

// Webhook verifies the delivery signature and fans the batch out, one
// goroutine per event, so one event's failure cannot abort its siblings.
func (h *Handler) Webhook(c echo.Context) error {
	if h.channelSecret == "" {
		h.logger.Error().Msg("channel secret is not configured")
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed to read request body")
	}

	signature := c.Request().Header.Get(messaging.SignatureHeader)
	if signature == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "no signature")
	}
	if !messaging.ValidateSignature(h.channelSecret, signature, body) {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid signature")
	}

	events, err := messaging.ParseEvents(body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid webhook body")
	}

	var wg sync.WaitGroup
	for _, ev := range events {
		ev := ev
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
			defer cancel()
			h.svc.HandleEvent(ctx, ev)
		}()
	}
	wg.Wait()

	return c.String(http.StatusOK, "OK")
}
