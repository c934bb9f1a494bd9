package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/kursadbilgin/renewal-engine/internal/domain"
)

func newTestTwilio(t *testing.T, baseURL string, client *resty.Client) *TwilioWhatsApp {
	t.Helper()

	if client == nil {
		client = resty.New()
	}
	p, err := NewTwilioWhatsAppWithClient(TwilioConfig{
		BaseURL:    baseURL,
		AccountSID: "AC123",
		AuthToken:  "secret",
		From:       "+14155238886",
	}, client)
	if err != nil {
		t.Fatalf("NewTwilioWhatsAppWithClient() error = %v", err)
	}
	return p
}

func TestTwilioWhatsAppSendSuccess(t *testing.T) {
	t.Parallel()

	var (
		gotPath string
		gotUser string
		gotPass string
		gotForm map[string]string
	)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		gotPath = r.URL.Path
		gotUser, gotPass, _ = r.BasicAuth()
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm() error = %v", err)
		}
		gotForm = map[string]string{
			"From": r.PostForm.Get("From"),
			"To":   r.PostForm.Get("To"),
			"Body": r.PostForm.Get("Body"),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"SM42","status":"queued"}`))
	}))
	defer server.Close()

	p := newTestTwilio(t, server.URL, nil)

	resp, err := p.Send(context.Background(), Message{
		Channel: domain.ChannelWhatsApp,
		To:      "584121234567",
		Body:    "hola",
	})
	if err != nil {
		t.Fatalf("Send() unexpected error: %v", err)
	}

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("StatusCode = %d, want %d", resp.StatusCode, http.StatusCreated)
	}
	if resp.MessageID != "SM42" {
		t.Fatalf("MessageID = %q, want %q", resp.MessageID, "SM42")
	}
	if gotPath != "/2010-04-01/Accounts/AC123/Messages.json" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotUser != "AC123" || gotPass != "secret" {
		t.Fatalf("basic auth = %q/%q, want AC123/secret", gotUser, gotPass)
	}
	if gotForm["From"] != "whatsapp:+14155238886" {
		t.Fatalf("From = %q", gotForm["From"])
	}
	if gotForm["To"] != "whatsapp:+584121234567" {
		t.Fatalf("To = %q", gotForm["To"])
	}
	if gotForm["Body"] != "hola" {
		t.Fatalf("Body = %q", gotForm["Body"])
	}
	if string(resp.Raw()) != `{"sid":"SM42","status":"queued"}` {
		t.Fatalf("Raw() = %s", resp.Raw())
	}
}

func TestTwilioWhatsAppSendStatusClassification(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name          string
		statusCode    int
		wantTransient bool
	}{
		{name: "too many requests is transient", statusCode: http.StatusTooManyRequests, wantTransient: true},
		{name: "bad request is permanent", statusCode: http.StatusBadRequest, wantTransient: false},
		{name: "unauthorized is permanent", statusCode: http.StatusUnauthorized, wantTransient: false},
		{name: "bad gateway is transient", statusCode: http.StatusBadGateway, wantTransient: true},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.statusCode)
				_, _ = w.Write([]byte(`{"code":21211,"message":"invalid to"}`))
			}))
			defer server.Close()

			p := newTestTwilio(t, server.URL, nil)

			_, err := p.Send(context.Background(), Message{
				Channel: domain.ChannelWhatsApp,
				To:      "584121234567",
				Body:    "hola",
			})
			if err == nil {
				t.Fatal("expected error")
			}

			if got := IsTransient(err); got != tc.wantTransient {
				t.Fatalf("IsTransient() = %v, want %v", got, tc.wantTransient)
			}
			if !errors.Is(err, domain.ErrExternalService) {
				t.Fatalf("errors.Is(err, ErrExternalService) = false, err = %v", err)
			}

			providerErr, ok := AsProviderError(err)
			if !ok {
				t.Fatalf("expected ProviderError, got %T", err)
			}
			if providerErr.StatusCode != tc.statusCode {
				t.Fatalf("ProviderError.StatusCode = %d, want %d", providerErr.StatusCode, tc.statusCode)
			}
			if providerErr.Channel != domain.ChannelWhatsApp {
				t.Fatalf("ProviderError.Channel = %q", providerErr.Channel)
			}
		})
	}
}

func TestTwilioWhatsAppSendTimeoutIsTransient(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	client := resty.New()
	client.SetTimeout(30 * time.Millisecond)

	p := newTestTwilio(t, server.URL, client)

	_, err := p.Send(context.Background(), Message{
		Channel: domain.ChannelWhatsApp,
		To:      "584121234567",
		Body:    "hola",
	})
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !IsTransient(err) {
		t.Fatalf("IsTransient() = false, want true (err=%v)", err)
	}
}

func TestTwilioWhatsAppRejectsInvalidInput(t *testing.T) {
	t.Parallel()

	if _, err := NewTwilioWhatsApp(TwilioConfig{AccountSID: "AC1", From: "+1"}); err == nil {
		t.Fatal("expected error for missing auth token")
	}

	p := newTestTwilio(t, "http://127.0.0.1:1", nil)

	tests := []struct {
		name string
		msg  Message
	}{
		{name: "empty recipient", msg: Message{Channel: domain.ChannelWhatsApp, Body: "hola"}},
		{name: "empty body", msg: Message{Channel: domain.ChannelWhatsApp, To: "584121234567"}},
		{name: "email channel", msg: Message{Channel: domain.ChannelEmail, To: "a@b.c", Subject: "s", Body: "hola"}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := p.Send(context.Background(), tt.msg)
			if !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("Send() error = %v, want ErrValidation", err)
			}
		})
	}
}
