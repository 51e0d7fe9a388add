package patient

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/hiro1966/line-official-prottype1/internal/platform/qrcode"
)

type Handler struct {
	svc        *Service
	contactURL string
	logger     zerolog.Logger
}

// NewHandler builds the patient endpoints. contactURL is the official-account
// URL encoded into the contact QR of every issuance.
func NewHandler(svc *Service, contactURL string, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, contactURL: contactURL, logger: logger}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/patients", h.RegisterPatient)
	api.POST("/registrations", h.IssueRegistration)
}

type registerPatientRequest struct {
	EncryptString string `json:"encryptString"`
}

// RegisterPatient stores a pre-encrypted patient row sent by the hospital
// record system.
func (h *Handler) RegisterPatient(c echo.Context) error {
	var req registerPatientRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.EncryptString == "" {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"error":   "encryptString is required",
		})
	}

	p, err := h.svc.RegisterEncrypted(c.Request().Context(), req.EncryptString)
	if err != nil {
		h.logger.Error().Err(err).Msg("register patient")
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	h.logger.Info().Str("patient_row", p.ID.String()).Msg("patient registered")
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success":   true,
		"patientId": p.ID.String(),
		"message":   "患者情報が正常に登録されました",
	})
}

type issueRequest struct {
	PatientID    string `json:"userId"`
	PatientName  string `json:"patientName"`
	ForceReissue bool   `json:"forceReissue"`
}

// IssueRegistration issues a registration token for a patient and returns it
// together with the two scannable codes handed out at the reception desk.
func (h *Handler) IssueRegistration(c echo.Context) error {
	var req issueRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.PatientID == "" || req.PatientName == "" {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"error":   "患者IDと氏名は必須です",
		})
	}

	iss, err := h.svc.Issue(c.Request().Context(), req.PatientID, req.PatientName, req.ForceReissue)
	if errors.Is(err, ErrAlreadyIssued) {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"success":           false,
			"alreadyRegistered": true,
			"message":           "この患者IDは既に発行済みです。再度発行しますか？",
			"userId":            req.PatientID,
			"patientName":       req.PatientName,
		})
	}
	if err != nil {
		h.logger.Error().Err(err).Str("patient_id", req.PatientID).Msg("issue registration")
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	codes, err := qrcode.NewSet(h.contactURL, iss.Token)
	if err != nil {
		h.logger.Error().Err(err).Msg("render qr codes")
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	h.logger.Info().Str("patient_id", iss.PatientID).Msg("registration issued")
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success":       true,
		"userId":        iss.PatientID,
		"patientName":   iss.PatientName,
		"encryptString": iss.Token,
		"qrCodes":       codes,
	})
}
