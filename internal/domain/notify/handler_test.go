package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/hiro1966/line-official-prottype1/internal/domain/link"
)

func newTestHandler(repo *mockLinkRepo) (*Handler, *echo.Echo) {
	svc := NewService(repo, newMockPusher(), tmpl, zerolog.Nop())
	return NewHandler(svc, zerolog.Nop()), echo.New()
}

func postJSON(e *echo.Echo, body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestHandler_SendMessage(t *testing.T) {
	repo := &mockLinkRepo{}
	repo.Insert(context.Background(), &link.LinkRecord{AccountID: "U1", Token: "tok"})
	h, e := newTestHandler(repo)

	c, rec := postJSON(e, `{"encryptString":"tok","message":"お呼び出しです"}`)
	if err := h.SendMessage(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestHandler_SendMessage_NotLinked(t *testing.T) {
	h, e := newTestHandler(&mockLinkRepo{})
	c, rec := postJSON(e, `{"encryptString":"tok","message":"msg"}`)
	if err := h.SendMessage(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestHandler_SendMessage_MissingFields(t *testing.T) {
	h, e := newTestHandler(&mockLinkRepo{})
	for _, body := range []string{`{}`, `{"encryptString":"tok"}`, `{"message":"msg"}`} {
		c, rec := postJSON(e, body)
		if err := h.SendMessage(c); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %s: expected 400, got %d", body, rec.Code)
		}
	}
}
