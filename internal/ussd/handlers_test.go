package ussd

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func setupHandlerTestRouter(t *testing.T) (*gin.Engine, *machineEnv) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := newMachineEnv(t)
	handler := NewHandler(env.machine)

	r := gin.New()
	handler.RegisterRoutes(&r.RouterGroup)
	return r, env
}

func postTurn(t *testing.T, router *gin.Engine, sessionID, phone, text string) (*httptest.ResponseRecorder, Reply) {
	t.Helper()
	form := url.Values{}
	form.Set("sessionId", sessionID)
	form.Set("phoneNumber", phone)
	form.Set("text", text)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/ussd", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	router.ServeHTTP(w, req)

	var reply Reply
	if w.Code == http.StatusOK {
		if err := json.Unmarshal(w.Body.Bytes(), &reply); err != nil {
			t.Fatalf("Failed to parse reply: %v: %s", err, w.Body.String())
		}
	}
	return w, reply
}

// ---------------------------------------------------------------------------
// POST /ussd
// ---------------------------------------------------------------------------

func TestHandler_Turn_MainMenu(t *testing.T) {
	router, _ := setupHandlerTestRouter(t)

	w, reply := postTurn(t, router, "sess-1", "26771000001", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if reply.Response != textMainMenu {
		t.Errorf("Expected main menu, got %q", reply.Response)
	}
	if !reply.KeepSession {
		t.Error("Expected keepSession=true for main menu")
	}
}

func TestHandler_Turn_FullSendMoneyDialogue(t *testing.T) {
	router, _ := setupHandlerTestRouter(t)

	steps := []struct {
		text string
		want string
		keep bool
	}{
		{"1", textPromptRecipient, true},
		{"1*26772000002", textPromptAmount, true},
		{"1*26772000002*50", "Success: Transfer complete.", false},
	}
	for _, step := range steps {
		w, reply := postTurn(t, router, "sess-2", "26771000001", step.text)
		if w.Code != http.StatusOK {
			t.Fatalf("Turn %q: expected 200, got %d", step.text, w.Code)
		}
		if reply.Response != step.want {
			t.Fatalf("Turn %q: got %q, want %q", step.text, reply.Response, step.want)
		}
		if reply.KeepSession != step.keep {
			t.Fatalf("Turn %q: keepSession = %v, want %v", step.text, reply.KeepSession, step.keep)
		}
	}
}

func TestHandler_Turn_MissingSessionID(t *testing.T) {
	router, _ := setupHandlerTestRouter(t)

	form := url.Values{}
	form.Set("phoneNumber", "26771000001")
	form.Set("text", "")

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/ussd", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Error string `json:"error"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Error != "invalid_request" {
		t.Errorf("Expected error invalid_request, got %s", resp.Error)
	}
}

func TestHandler_Turn_JSONBody(t *testing.T) {
	router, _ := setupHandlerTestRouter(t)

	body := `{"sessionId":"sess-3","phoneNumber":"26771000001","text":"4"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/ussd", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var reply Reply
	if err := json.Unmarshal(w.Body.Bytes(), &reply); err != nil {
		t.Fatalf("Failed to parse reply: %v", err)
	}
	if reply.Response != textGoodbye {
		t.Errorf("Expected goodbye, got %q", reply.Response)
	}
	if reply.KeepSession {
		t.Error("Expected keepSession=false on exit")
	}
}

func TestHandler_Turn_ReplyStaysWithinDisplayLimit(t *testing.T) {
	router, _ := setupHandlerTestRouter(t)

	w, reply := postTurn(t, router, "sess-4", "26771000001", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if len(reply.Response) > maxResponseBytes {
		t.Errorf("Reply is %d bytes, limit is %d", len(reply.Response), maxResponseBytes)
	}
}
