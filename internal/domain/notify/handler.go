package notify

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/hiro1966/line-official-prottype1/internal/domain/token"
)

type Handler struct {
	svc    *Service
	logger zerolog.Logger
}

func NewHandler(svc *Service, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/messages", h.SendMessage)
}

type sendRequest struct {
	EncryptString string `json:"encryptString"`
	Message       string `json:"message"`
	RoomNumber    string `json:"roomNumber"`
}

// SendMessage broadcasts a call-in message to every account linked to the
// given token.
func (h *Handler) SendMessage(c echo.Context) error {
	var req sendRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.EncryptString == "" || (req.Message == "" && req.RoomNumber == "") {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"error":   "encryptString and message are required",
		})
	}

	sent, err := h.svc.Send(c.Request().Context(), req.EncryptString, req.Message, req.RoomNumber)
	switch {
	case errors.Is(err, ErrNotLinked):
		return c.JSON(http.StatusNotFound, map[string]interface{}{
			"success": false,
			"error":   "この患者はスマホ登録されていません",
		})
	case errors.Is(err, token.ErrDecode):
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"error":   "登録コードが正しくありません",
		})
	case err != nil:
		h.logger.Error().Err(err).Msg("send message")
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success":   true,
		"sentCount": sent,
		"message":   fmt.Sprintf("%d件のLINEアカウントにメッセージを送信しました", sent),
	})
}
