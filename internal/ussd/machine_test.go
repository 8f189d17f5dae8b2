package ussd

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/payflex/payflex/internal/fraud"
	"github.com/payflex/payflex/internal/identity"
	"github.com/payflex/payflex/internal/ledger"
	"github.com/payflex/payflex/internal/payments"
)

type stubScorer struct {
	score int
	err   error
	calls int
}

func (s *stubScorer) Score(ctx context.Context, did, phone, ip string) (int, error) {
	s.calls++
	if s.err != nil {
		return 0, s.err
	}
	return s.score, nil
}

type machineEnv struct {
	machine     *Machine
	sessions    *MemoryStore
	ledgerStore *ledger.MemoryStore
	fraudStore  *fraud.MemoryStore
	idsvc       *identity.Service
	vendor      *stubScorer
}

func newMachineEnv(t *testing.T) *machineEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	idStore := identity.NewMemoryStore()
	idsvc := identity.NewService(idStore, logger)
	fraudStore := fraud.NewMemoryStore()
	vendor := &stubScorer{}
	scorer := fraud.NewScorer(fraudStore, vendor, idStore, logger)
	ledgerStore := ledger.NewMemoryStore()
	recorder := ledger.NewRecorder(ledgerStore, logger)
	orch := payments.NewOrchestrator(
		payments.NewMemoryStore(), idsvc, scorer, nil, recorder, nil, "BWP", 0.002, logger)
	sessions := NewMemoryStore()

	env := &machineEnv{
		machine:     NewMachine(sessions, idsvc, scorer, orch, logger),
		sessions:    sessions,
		ledgerStore: ledgerStore,
		fraudStore:  fraudStore,
		idsvc:       idsvc,
		vendor:      vendor,
	}

	for _, u := range []*identity.User{
		{DID: "did:bw:alice", PhoneNumber: "26771000001", Balance: 250, CreatedAt: time.Now()},
		{DID: "did:bw:bob", PhoneNumber: "26772000002", Balance: 80.5, CreatedAt: time.Now()},
	} {
		if err := idsvc.Register(context.Background(), u); err != nil {
			t.Fatalf("register %s: %v", u.DID, err)
		}
	}
	return env
}

func (e *machineEnv) handle(t *testing.T, sessionID, phone, text string) *Reply {
	t.Helper()
	reply, err := e.machine.Handle(context.Background(), Turn{
		SessionID:   sessionID,
		PhoneNumber: phone,
		Text:        text,
		SourceIP:    "10.0.0.1",
	})
	if err != nil {
		t.Fatalf("Handle(%q): %v", text, err)
	}
	return reply
}

func (e *machineEnv) session(t *testing.T, sessionID string) *Session {
	t.Helper()
	sess, err := e.sessions.Get(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("Get session: %v", err)
	}
	return sess
}

func TestNewSessionShowsMainMenu(t *testing.T) {
	env := newMachineEnv(t)

	reply := env.handle(t, "sess-1", "26771000001", "")
	if reply.Response != textMainMenu {
		t.Errorf("response = %q, want main menu", reply.Response)
	}
	if !reply.KeepSession {
		t.Error("main menu must keep the session open")
	}

	sess := env.session(t, "sess-1")
	if sess.CurrentMenu != MenuMain {
		t.Errorf("menu = %s, want %s", sess.CurrentMenu, MenuMain)
	}
	if !sess.Active {
		t.Error("new session not active")
	}
}

func TestMainMenuSelections(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		phone    string
		want     string
		keep     bool
		wantMenu string
	}{
		{"send money", "1", "26771000001", textPromptRecipient, true, MenuSendRecipient},
		{"fraud score unscored", "2", "26771000001", "Your Fraud Score is 0.", false, MenuMain},
		{"balance whole", "3", "26771000001", "Your balance is P 250.", false, MenuMain},
		{"balance fractional", "3", "26772000002", "Your balance is P 80.5.", false, MenuMain},
		{"exit", "4", "26771000001", textGoodbye, false, MenuMain},
		{"garbage", "7", "26771000001", textInvalidInput, true, MenuMain},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newMachineEnv(t)
			reply := env.handle(t, "sess-1", tt.phone, tt.text)
			if reply.Response != tt.want {
				t.Errorf("response = %q, want %q", reply.Response, tt.want)
			}
			if reply.KeepSession != tt.keep {
				t.Errorf("keepSession = %v, want %v", reply.KeepSession, tt.keep)
			}
			if sess := env.session(t, "sess-1"); sess.CurrentMenu != tt.wantMenu {
				t.Errorf("menu = %s, want %s", sess.CurrentMenu, tt.wantMenu)
			}
		})
	}
}

func TestFraudScoreMenuReportsStoredComposite(t *testing.T) {
	env := newMachineEnv(t)
	err := env.fraudStore.Save(context.Background(), &fraud.Score{
		DID: "did:bw:alice", Composite: 61, UpdatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("seed score: %v", err)
	}

	reply := env.handle(t, "sess-1", "26771000001", "2")
	if reply.Response != "Your Fraud Score is 61." {
		t.Errorf("response = %q", reply.Response)
	}
	if reply.KeepSession {
		t.Error("score reply must end the session")
	}
}

func TestMenuQueriesForUnknownPhone(t *testing.T) {
	for _, text := range []string{"2", "3"} {
		env := newMachineEnv(t)
		reply := env.handle(t, "sess-1", "26779999999", text)
		if reply.Response != textUserNotFound {
			t.Errorf("option %s: response = %q, want %q", text, reply.Response, textUserNotFound)
		}
		if reply.KeepSession {
			t.Errorf("option %s: session kept open for unknown user", text)
		}
	}
}

func TestSendMoneyHappyPath(t *testing.T) {
	env := newMachineEnv(t)

	steps := []struct {
		text string
		want string
		keep bool
	}{
		{"", textMainMenu, true},
		{"1", textPromptRecipient, true},
		{"1*26772000002", textPromptAmount, true},
		{"1*26772000002*50", "Success: Transfer complete.", false},
	}
	for _, step := range steps {
		reply := env.handle(t, "sess-1", "26771000001", step.text)
		if reply.Response != step.want {
			t.Fatalf("turn %q: response = %q, want %q", step.text, reply.Response, step.want)
		}
		if reply.KeepSession != step.keep {
			t.Fatalf("turn %q: keepSession = %v, want %v", step.text, reply.KeepSession, step.keep)
		}
	}

	sess := env.session(t, "sess-1")
	if sess.Active {
		t.Error("session still active after terminal turn")
	}
	if sess.TempData["recipient"] != "26772000002" {
		t.Errorf("stored recipient = %q", sess.TempData["recipient"])
	}

	outs, err := env.ledgerStore.Query(context.Background(), "did:bw:alice", ledger.Query{})
	if err != nil {
		t.Fatalf("query ledger: %v", err)
	}
	ins, err := env.ledgerStore.Query(context.Background(), "did:bw:bob", ledger.Query{})
	if err != nil {
		t.Fatalf("query ledger: %v", err)
	}
	if len(outs) != 1 || len(ins) != 1 {
		t.Fatalf("ledger legs: sender=%d recipient=%d, want 1 each", len(outs), len(ins))
	}
}

func TestSendMoneyFraudBlocked(t *testing.T) {
	env := newMachineEnv(t)
	err := env.fraudStore.Save(context.Background(), &fraud.Score{
		DID: "did:bw:alice", Composite: 95, UpdatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("seed score: %v", err)
	}
	env.vendor.score = 95

	env.handle(t, "sess-1", "26771000001", "1")
	env.handle(t, "sess-1", "26771000001", "1*26772000002")
	reply := env.handle(t, "sess-1", "26771000001", "1*26772000002*500")

	want := "Error: " + payments.MsgFraudBlocked
	if reply.Response != want {
		t.Errorf("response = %q, want %q", reply.Response, want)
	}
	if reply.KeepSession {
		t.Error("blocked transfer must end the session")
	}

	events, _ := env.ledgerStore.Query(context.Background(), "did:bw:alice", ledger.Query{})
	if len(events) != 0 {
		t.Errorf("got %d ledger events for blocked transfer, want 0", len(events))
	}
}

func TestInvalidAmountKeepsAmountPrompt(t *testing.T) {
	env := newMachineEnv(t)
	env.handle(t, "sess-1", "26771000001", "1")
	env.handle(t, "sess-1", "26771000001", "1*26772000002")

	for _, bad := range []string{"abc", "0", "-10", "NaN", "Inf"} {
		reply := env.handle(t, "sess-1", "26771000001", "1*26772000002*"+bad)
		if reply.Response != textInvalidAmount {
			t.Errorf("amount %q: response = %q, want %q", bad, reply.Response, textInvalidAmount)
		}
		if !reply.KeepSession {
			t.Errorf("amount %q: session ended, want retry prompt", bad)
		}
		if sess := env.session(t, "sess-1"); sess.CurrentMenu != MenuSendAmount {
			t.Errorf("amount %q: menu = %s, want %s", bad, sess.CurrentMenu, MenuSendAmount)
		}
	}

	// The retry prompt still accepts a valid amount.
	reply := env.handle(t, "sess-1", "26771000001", "1*26772000002*50")
	if reply.Response != "Success: Transfer complete." {
		t.Errorf("response = %q after retry", reply.Response)
	}
}

func TestEmptyTextResetsMidFlow(t *testing.T) {
	env := newMachineEnv(t)
	env.handle(t, "sess-1", "26771000001", "1")
	env.handle(t, "sess-1", "26771000001", "1*26772000002")

	reply := env.handle(t, "sess-1", "26771000001", "")
	if reply.Response != textMainMenu {
		t.Errorf("response = %q, want main menu", reply.Response)
	}
	if sess := env.session(t, "sess-1"); sess.CurrentMenu != MenuMain {
		t.Errorf("menu = %s, want %s", sess.CurrentMenu, MenuMain)
	}
}

func TestRetransmitReplaysTerminalReply(t *testing.T) {
	env := newMachineEnv(t)
	env.handle(t, "sess-1", "26771000001", "1")
	env.handle(t, "sess-1", "26771000001", "1*26772000002")

	first := env.handle(t, "sess-1", "26771000001", "1*26772000002*50")
	if first.Response != "Success: Transfer complete." {
		t.Fatalf("dispatch response = %q", first.Response)
	}
	dispatches := env.vendor.calls

	// Carrier retransmission of the final turn: same session, same text.
	replay := env.handle(t, "sess-1", "26771000001", "1*26772000002*50")
	if replay.Response != first.Response || replay.KeepSession != first.KeepSession {
		t.Errorf("replay = %+v, want %+v", replay, first)
	}
	if env.vendor.calls != dispatches {
		t.Errorf("retransmit triggered %d extra fraud assessments", env.vendor.calls-dispatches)
	}

	events, _ := env.ledgerStore.Query(context.Background(), "did:bw:alice", ledger.Query{})
	if len(events) != 1 {
		t.Errorf("sender has %d ledger legs after retransmit, want 1", len(events))
	}
}

func TestTerminalSessionWithNewTextStartsFresh(t *testing.T) {
	env := newMachineEnv(t)
	env.handle(t, "sess-1", "26771000001", "4") // terminal

	reply := env.handle(t, "sess-1", "26771000001", "")
	if reply.Response != textMainMenu {
		t.Errorf("response = %q, want main menu for reused session ID", reply.Response)
	}
	if !reply.KeepSession {
		t.Error("fresh dialogue not kept open")
	}
}

func TestSenderNotFoundAtDispatch(t *testing.T) {
	env := newMachineEnv(t)
	phone := "26779999999" // no registered user
	env.handle(t, "sess-1", phone, "1")
	env.handle(t, "sess-1", phone, "1*26772000002")

	reply := env.handle(t, "sess-1", phone, "1*26772000002*50")
	if reply.Response != textSenderNotFound {
		t.Errorf("response = %q, want %q", reply.Response, textSenderNotFound)
	}
	if reply.KeepSession {
		t.Error("session kept open for unknown sender")
	}
}

func TestScoringOutageEndsSessionSafely(t *testing.T) {
	env := newMachineEnv(t)
	env.vendor.err = errors.New("dial tcp: connection refused")

	env.handle(t, "sess-1", "26771000001", "1")
	env.handle(t, "sess-1", "26771000001", "1*26772000002")
	reply := env.handle(t, "sess-1", "26771000001", "1*26772000002*50")

	if reply.Response != textServiceUnavail {
		t.Errorf("response = %q, want %q", reply.Response, textServiceUnavail)
	}
	if reply.KeepSession {
		t.Error("session kept open during scoring outage")
	}
}

func TestLatestToken(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"1", "1"},
		{"1*26772000002", "26772000002"},
		{"1*26772000002*50", "50"},
		{"1* 50 ", "50"},
	}
	for _, tt := range tests {
		if got := latestToken(tt.in); got != tt.want {
			t.Errorf("latestToken(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{250, "250"},
		{12.5, "12.5"},
		{0, "0"},
	}
	for _, tt := range tests {
		if got := formatAmount(tt.in); got != tt.want {
			t.Errorf("formatAmount(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTruncateLongReply(t *testing.T) {
	long := strings.Repeat("x", maxResponseBytes+40)
	if got := truncate(long); len(got) != maxResponseBytes {
		t.Errorf("truncated length = %d, want %d", len(got), maxResponseBytes)
	}
	if got := truncate("short"); got != "short" {
		t.Errorf("short reply altered: %q", got)
	}
}
