package webhook

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// DefaultTimeout bounds each HTTP call the rotator makes.
const DefaultTimeout = 30 * time.Second

// appUpdateTokenOccurrence is which authenticity_token input on the
// app settings page guards the webhook-update form; the page renders
// several identical-looking hidden inputs for its other forms first.
const appUpdateTokenOccurrence = 6

// githubBaseURL is overridable in tests so they can point the rotator
// at an httptest server instead of the real github.com host.
var githubBaseURL = "https://github.com"

// Rotator is the single entry point a switcher calls after promoting
// a node to master.
type Rotator interface {
	RotateWebhook(newIP string) error
}

// GithubAppRotator rewrites a GitHub App's webhook URL by driving the
// github.com web UI with a credentialed session.
type GithubAppRotator struct {
	Username string
	Password string
	AppName  string
	Port     string

	client *http.Client
}

// NewGithubAppRotator builds a rotator for the named GitHub App.
func NewGithubAppRotator(username, password, appName string) *GithubAppRotator {
	jar, _ := newCookieJar()
	return &GithubAppRotator{
		Username: username,
		Password: password,
		AppName:  appName,
		Port:     "80",
		client: &http.Client{
			Timeout: DefaultTimeout,
			Jar:     jar,
		},
	}
}

// RotateWebhook logs in and updates the app's webhook URL to
// http://<newIP>:<port>/api/connection/github/payload.
func (r *GithubAppRotator) RotateWebhook(newIP string) error {
	loginToken, err := r.loginPageToken()
	if err != nil {
		return fmt.Errorf("fetch login page token: %w", err)
	}
	if err := r.login(loginToken); err != nil {
		return fmt.Errorf("login: %w", err)
	}

	appURL := githubBaseURL + "/settings/apps/" + r.AppName
	updateToken, err := r.appPageToken(appURL)
	if err != nil {
		return fmt.Errorf("fetch app settings page token: %w", err)
	}

	if err := r.submitWebhookUpdate(appURL, updateToken, newIP); err != nil {
		return fmt.Errorf("submit webhook update: %w", err)
	}
	return nil
}

func (r *GithubAppRotator) loginPageToken() (string, error) {
	resp, err := r.client.Get(githubBaseURL + "/login")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	token := firstAuthenticityToken(string(body))
	if token == "" {
		return "", fmt.Errorf("authenticity_token not found on login page")
	}
	return token, nil
}

func (r *GithubAppRotator) login(token string) error {
	form := url.Values{}
	form.Set("authenticity_token", token)
	form.Set("login", r.Username)
	form.Set("password", r.Password)

	resp, err := r.client.PostForm(githubBaseURL+"/session", form)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("login rejected with status %d", resp.StatusCode)
	}
	if !r.loggedIn() {
		return fmt.Errorf("login did not produce a logged_in session cookie")
	}
	return nil
}

func (r *GithubAppRotator) loggedIn() bool {
	u, _ := url.Parse(githubBaseURL)
	if r.client.Jar == nil {
		return false
	}
	for _, c := range r.client.Jar.Cookies(u) {
		if c.Name == "logged_in" && c.Value == "yes" {
			return true
		}
	}
	return false
}

func (r *GithubAppRotator) appPageToken(appURL string) (string, error) {
	resp, err := r.client.Get(appURL)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return "", fmt.Errorf("github app %s not found", r.AppName)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	token := nthAuthenticityToken(string(body), appUpdateTokenOccurrence)
	if token == "" {
		return "", fmt.Errorf("authenticity_token occurrence %d not found on app page", appUpdateTokenOccurrence)
	}
	return token, nil
}

func (r *GithubAppRotator) submitWebhookUpdate(appURL, token, newIP string) error {
	hookURL := fmt.Sprintf("http://%s:%s/api/connection/github/payload", newIP, r.Port)

	form := url.Values{}
	form.Set("_method", "put")
	form.Set("authenticity_token", token)
	form.Set("integration[hook_attributes][url]", hookURL)

	resp, err := r.client.PostForm(appURL, form)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("webhook update rejected with status %d", resp.StatusCode)
	}
	return nil
}

// firstAuthenticityToken returns the value of the first
// <input name="authenticity_token"> found in body.
func firstAuthenticityToken(body string) string {
	return nthAuthenticityToken(body, 1)
}

// nthAuthenticityToken returns the value of the nth (1-indexed)
// <input name="authenticity_token"> found in body, scanning document
// order the same way the original HTML parser counted occurrences.
func nthAuthenticityToken(body string, n int) string {
	tokenizer := html.NewTokenizer(strings.NewReader(body))
	seen := 0
	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return ""
		case html.StartTagToken, html.SelfClosingTagToken:
			token := tokenizer.Token()
			if token.Data != "input" {
				continue
			}
			var name, value string
			for _, attr := range token.Attr {
				switch attr.Key {
				case "name":
					name = attr.Val
				case "value":
					value = attr.Val
				}
			}
			if name != "authenticity_token" {
				continue
			}
			seen++
			if seen == n {
				return value
			}
		}
	}
}
