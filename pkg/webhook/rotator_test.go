package webhook

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNthAuthenticityTokenFindsCorrectOccurrence(t *testing.T) {
	body := strings.Repeat(`<input type="hidden" name="authenticity_token" value="wrong">`, 5) +
		`<input type="hidden" name="authenticity_token" value="correct">`

	got := nthAuthenticityToken(body, 6)
	if got != "correct" {
		t.Fatalf("expected correct, got %q", got)
	}
}

func TestFirstAuthenticityTokenReturnsEarliest(t *testing.T) {
	body := `<input name="authenticity_token" value="first"><input name="authenticity_token" value="second">`
	if got := firstAuthenticityToken(body); got != "first" {
		t.Fatalf("expected first, got %q", got)
	}
}

func TestNthAuthenticityTokenMissingReturnsEmpty(t *testing.T) {
	if got := nthAuthenticityToken(`<input name="other" value="x">`, 1); got != "" {
		t.Fatalf("expected empty string, got %q", got)
	}
}

func TestRotateWebhookEndToEnd(t *testing.T) {
	appHookURL := ""

	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<input name="authenticity_token" value="login-token">`)
	})
	mux.HandleFunc("/session", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		if r.FormValue("authenticity_token") != "login-token" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "logged_in", Value: "yes", Path: "/"})
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/settings/apps/my-app", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			fmt.Fprint(w, strings.Repeat(`<input name="authenticity_token" value="decoy">`, 5)+
				`<input name="authenticity_token" value="update-token">`)
			return
		}
		r.ParseForm()
		if r.FormValue("authenticity_token") != "update-token" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		appHookURL = r.FormValue("integration[hook_attributes][url]")
		w.WriteHeader(http.StatusOK)
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	originalBaseURL := githubBaseURL
	githubBaseURL = server.URL
	defer func() { githubBaseURL = originalBaseURL }()

	rotator := NewGithubAppRotator("bot", "secret", "my-app")

	if err := rotator.RotateWebhook("10.0.0.2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if appHookURL != "http://10.0.0.2:80/api/connection/github/payload" {
		t.Fatalf("unexpected webhook url: %q", appHookURL)
	}
}
