package bot

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/hiro1966/line-official-prottype1/internal/platform/messaging"
)

const testSecret = "channel-secret"

func newTestHandler() (*Handler, *mockReplier, *echo.Echo) {
	svc, _, replier := newTestService()
	h := NewHandler(svc, testSecret, zerolog.Nop())
	return h, replier, echo.New()
}

func webhookRequest(body, signature string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if signature != "" {
		req.Header.Set(messaging.SignatureHeader, signature)
	}
	return req
}

func TestWebhook_ValidSignature(t *testing.T) {
	h, replier, e := newTestHandler()
	body := `{"events":[{"type":"follow","replyToken":"rt","source":{"type":"user","userId":"U1"}}]}`

	rec := httptest.NewRecorder()
	c := e.NewContext(webhookRequest(body, messaging.Sign(testSecret, []byte(body))), rec)
	if err := h.Webhook(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if replier.last(t) != msgWelcome {
		t.Error("expected follow event to be handled")
	}
}

func TestWebhook_MissingSignature(t *testing.T) {
	h, _, e := newTestHandler()
	body := `{"events":[]}`

	c := e.NewContext(webhookRequest(body, ""), httptest.NewRecorder())
	err := h.Webhook(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %v", err)
	}
}

func TestWebhook_InvalidSignature(t *testing.T) {
	h, _, e := newTestHandler()
	body := `{"events":[]}`

	c := e.NewContext(webhookRequest(body, messaging.Sign("wrong-secret", []byte(body))), httptest.NewRecorder())
	err := h.Webhook(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %v", err)
	}
}

func TestWebhook_MissingSecretIsFatal(t *testing.T) {
	svc, _, _ := newTestService()
	h := NewHandler(svc, "", zerolog.Nop())
	e := echo.New()
	body := `{"events":[]}`

	c := e.NewContext(webhookRequest(body, "sig"), httptest.NewRecorder())
	err := h.Webhook(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusInternalServerError {
		t.Errorf("expected 500 when the channel secret is unconfigured, got %v", err)
	}
}

func TestWebhook_BatchIsolation(t *testing.T) {
	// A malformed event in the batch must not prevent its sibling from being
	// handled.
	h, replier, e := newTestHandler()
	body := `{"events":[
		{"type":"message","replyToken":"rt1","source":{"type":"user","userId":"U1"}},
		{"type":"follow","replyToken":"rt2","source":{"type":"user","userId":"U2"}}
	]}`

	rec := httptest.NewRecorder()
	c := e.NewContext(webhookRequest(body, messaging.Sign(testSecret, []byte(body))), rec)
	if err := h.Webhook(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if replier.last(t) != msgWelcome {
		t.Error("expected the well-formed sibling event to be handled")
	}
}
