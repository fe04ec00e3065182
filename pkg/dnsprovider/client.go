package dnsprovider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/openlab-infra/ha-healthchecker/pkg/types"
)

// DefaultTimeout bounds every HTTP call the client makes.
const DefaultTimeout = 30 * time.Second

// Client rewrites A records for the status and log domains to point
// at a new IP. Non-200 responses and mismatched records are reported
// as errors to the caller, which per the external-API error policy
// logs them and leaves state untouched rather than retrying within the
// same tick.
type Client struct {
	APIURL  string
	Token   string
	Account string
	Apex    string

	HTTPClient *http.Client
}

// NewClient builds a Client from the cluster configuration's DNS
// provider fields.
func NewClient(cfg types.Configuration) *Client {
	return &Client{
		APIURL:  strings.TrimRight(cfg.DNSProviderAPIURL, "/") + "/",
		Token:   cfg.DNSProviderToken,
		Account: cfg.DNSProviderAccount,
		Apex:    cfg.DNSApex,
		HTTPClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

type account struct {
	ID string `json:"id"`
}

type accountsResponse struct {
	Data []account `json:"data"`
}

type record struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	Content string `json:"content"`
}

type recordsResponse struct {
	Data []record `json:"data"`
}

type recordResponse struct {
	Data record `json:"data"`
}

func (c *Client) do(ctx context.Context, method, url string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.HTTPClient.Do(req)
}

func (c *Client) accountID(ctx context.Context) (string, error) {
	resp, err := c.do(ctx, http.MethodGet, c.APIURL+"accounts", nil)
	if err != nil {
		return "", fmt.Errorf("get accounts: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("get accounts: unexpected status %d", resp.StatusCode)
	}
	var parsed accountsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode accounts: %w", err)
	}
	for _, a := range parsed.Data {
		if a.ID == c.Account {
			return a.ID, nil
		}
	}
	return "", fmt.Errorf("account %s not found", c.Account)
}

// label strips the configured apex (and the separating dot) off a
// fully-qualified domain, e.g. "status.example.org" with apex
// "example.org" becomes "status".
func (c *Client) label(fqdn string) string {
	trimmed := strings.TrimSuffix(fqdn, c.Apex)
	return strings.TrimSuffix(trimmed, ".")
}

// matchRecord implements the bit-exact matcher: name==label,
// type=="A", content==masterIP.
func matchRecord(r record, label, masterIP string) bool {
	return r.Name == label && r.Type == "A" && r.Content == masterIP
}

func (c *Client) findRecord(ctx context.Context, accountID, fqdn, masterIP string) (string, error) {
	label := c.label(fqdn)
	url := fmt.Sprintf("%s%s/zones/%s/records?name=%s", c.APIURL, accountID, c.Apex, label)
	resp, err := c.do(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("get records for %s: %w", fqdn, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("get records for %s: unexpected status %d", fqdn, resp.StatusCode)
	}
	var parsed recordsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode records for %s: %w", fqdn, err)
	}
	for _, r := range parsed.Data {
		if matchRecord(r, label, masterIP) {
			return r.ID, nil
		}
	}
	return "", errNoMatch
}

// errNoMatch signals that no record currently points at the master
// IP — either nothing to rewrite, or the rewrite already happened
// (property P6: idempotent).
var errNoMatch = fmt.Errorf("no matching A record")

func (c *Client) patchRecord(ctx context.Context, accountID, recordID, newIP string) error {
	body, err := json.Marshal(map[string]string{"content": newIP})
	if err != nil {
		return fmt.Errorf("encode patch body: %w", err)
	}
	url := fmt.Sprintf("%s%s/zones/%s/records/%s", c.APIURL, accountID, c.Apex, recordID)
	resp, err := c.do(ctx, http.MethodPatch, url, strings.NewReader(string(body)))
	if err != nil {
		return fmt.Errorf("patch record %s: %w", recordID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("patch record %s: unexpected status %d", recordID, resp.StatusCode)
	}
	var parsed recordResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("decode patch response for %s: %w", recordID, err)
	}
	if parsed.Data.Content != newIP {
		return fmt.Errorf("patch record %s: content %q did not update to %q", recordID, parsed.Data.Content, newIP)
	}
	return nil
}

// RewriteResult reports what RewriteStatusAndLog actually did, so the
// caller can decide whether to swap the configuration keys.
type RewriteResult struct {
	// NoMatch is true when no target domain has an A record at the
	// master IP (as after an earlier successful rewrite) — a no-op
	// re-invocation (P6), not an error.
	NoMatch bool
}

// RewriteStatusAndLog rewrites the status and log domain A records
// from masterIP to slaveIP. It matches records strictly against
// masterIP, so invoking it again after a successful rewrite finds no
// match and returns a no-op result rather than an error.
func (c *Client) RewriteStatusAndLog(ctx context.Context, cfg types.Configuration) (RewriteResult, error) {
	accountID, err := c.accountID(ctx)
	if err != nil {
		return RewriteResult{}, err
	}

	targets := []string{cfg.DNSStatusDomain, cfg.DNSLogDomain}
	recordIDs := make([]string, 0, len(targets))
	noMatchCount := 0
	for _, fqdn := range targets {
		recordID, err := c.findRecord(ctx, accountID, fqdn, cfg.DNSMasterPublicIP)
		if err == errNoMatch {
			noMatchCount++
			continue
		}
		if err != nil {
			return RewriteResult{}, err
		}
		recordIDs = append(recordIDs, recordID)
	}

	if noMatchCount == len(targets) {
		return RewriteResult{NoMatch: true}, nil
	}
	if len(recordIDs) == 0 {
		return RewriteResult{}, fmt.Errorf("no records resolved for rewrite")
	}

	for _, recordID := range recordIDs {
		if err := c.patchRecord(ctx, accountID, recordID, cfg.DNSSlavePublicIP); err != nil {
			return RewriteResult{}, err
		}
	}
	return RewriteResult{}, nil
}
