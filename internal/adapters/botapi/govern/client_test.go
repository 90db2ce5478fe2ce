package govern

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tgrate/internal/infra/telegram/chatlimit"
)

// testClient builds a Client pointed at an httptest server instead of the
// real api.telegram.org host. Exercising the package from inside itself
// (rather than a _test external package) lets tests set baseURL directly
// without needing to expose that knob on the public API.
func testClient(serverURL string, governor *chatlimit.Governor) *Client {
	return &Client{
		baseURL:  serverURL + "/bottest-token/",
		http:     &http.Client{Timeout: httpClientTimeout},
		governor: governor,
	}
}

func spawnGovernor(t *testing.T) *chatlimit.Governor {
	t.Helper()
	governor, worker := chatlimit.New(chatlimit.Default(), chatlimit.WithDelay(2*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go worker.Run(ctx)
	return governor
}

func TestSendDecodesSuccessResponse(t *testing.T) {
	t.Parallel()

	var gotPath string
	var gotBody struct {
		ChatID int64  `json:"chat_id"`
		Text   string `json:"text"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":42,"date":1700000000}}`))
	}))
	defer srv.Close()

	client := testClient(srv.URL, spawnGovernor(t))

	msg, err := Send[Message](context.Background(), client, SendMessage{
		chatTarget: chatTarget{ChatID: 7},
		Text:       "hello",
	})
	if err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if msg.MessageID != 42 {
		t.Fatalf("MessageID = %d, want 42", msg.MessageID)
	}
	if !strings.HasSuffix(gotPath, "/sendMessage") {
		t.Fatalf("request path = %q, want suffix /sendMessage", gotPath)
	}
	if gotBody.ChatID != 7 || gotBody.Text != "hello" {
		t.Fatalf("unexpected request body: %+v", gotBody)
	}
}

func TestSendSurfacesAPIError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":false,"error_code":400,"description":"chat not found"}`))
	}))
	defer srv.Close()

	client := testClient(srv.URL, spawnGovernor(t))

	_, err := Send[Message](context.Background(), client, SendMessage{
		chatTarget: chatTarget{ChatID: 7},
		Text:       "hello",
	})
	if err == nil {
		t.Fatal("expected an error for ok=false response, got nil")
	}
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("error is not *APIError: %v (%T)", err, err)
	}
	if apiErr.Code != 400 {
		t.Fatalf("APIError.Code = %d, want 400", apiErr.Code)
	}
}

func TestSendAdmitsByUsernameHash(t *testing.T) {
	t.Parallel()

	var gotBody struct {
		ChatID string `json:"chat_id"`
		Text   string `json:"text"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"date":1}}`))
	}))
	defer srv.Close()

	client := testClient(srv.URL, spawnGovernor(t))

	msg, err := Send[Message](context.Background(), client, SendMessageToUsername{
		ChatTargetUsername: ChatTargetUsername{Username: "@somechannel"},
		Text:               "hello",
	})
	if err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if msg.MessageID != 1 {
		t.Fatalf("MessageID = %d, want 1", msg.MessageID)
	}
	if gotBody.ChatID != "@somechannel" {
		t.Fatalf("request chat_id = %q, want @somechannel", gotBody.ChatID)
	}
}

func TestSendRespectsContextCancellation(t *testing.T) {
	t.Parallel()

	// A governor whose single slot is already occupied by another caller
	// blocks further admissions for the same chat until it rolls over; a
	// cancelled context must return promptly instead of waiting for that.
	limits := chatlimit.Limits{PerSecChat: 1, PerMinChat: 1, PerSecOverall: 30}
	governor, worker := chatlimit.New(limits, chatlimit.WithDelay(2*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go worker.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"date":1}}`))
	}))
	defer srv.Close()

	client := testClient(srv.URL, governor)

	if _, err := Send[Message](context.Background(), client, SendMessage{chatTarget: chatTarget{ChatID: 1}, Text: "a"}); err != nil {
		t.Fatalf("first send: %v", err)
	}

	cancelledCtx, cancelFn := context.WithCancel(context.Background())
	cancelFn()
	if _, err := Send[Message](cancelledCtx, client, SendMessage{chatTarget: chatTarget{ChatID: 1}, Text: "b"}); err == nil {
		t.Fatal("expected error from cancelled context, got nil")
	}
}
