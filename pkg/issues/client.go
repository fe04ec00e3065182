package issues

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/go-github/v59/github"
	"golang.org/x/oauth2"
)

// DefaultTimeout bounds a single issue-creation call.
const DefaultTimeout = 30 * time.Second

// Client files issues against a single configured repository.
type Client struct {
	gh    *github.Client
	owner string
	repo  string
}

// NewClient builds an issue-tracker client authenticated with a
// personal access token against owner/repo (as stored in
// Configuration.GithubRepoName).
func NewClient(token, ownerRepo string) (*Client, error) {
	owner, repo, ok := strings.Cut(ownerRepo, "/")
	if !ok {
		return nil, fmt.Errorf("github repo name %q is not in owner/repo form", ownerRepo)
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	httpClient := oauth2.NewClient(context.Background(), ts)
	return &Client{
		gh:    github.NewClient(httpClient),
		owner: owner,
		repo:  repo,
	}, nil
}

// CreateIssue files a new issue for the given report, stamping the
// title with the current time the way every issue kind does.
func (c *Client) CreateIssue(ctx context.Context, r Report) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	title := FormatTitle(timeNow())
	body := FormatBody(r)

	_, _, err := c.gh.Issues.Create(ctx, c.owner, c.repo, &github.IssueRequest{
		Title: &title,
		Body:  &body,
	})
	if err != nil {
		return fmt.Errorf("create issue against %s/%s: %w", c.owner, c.repo, err)
	}
	return nil
}

// timeNow is a seam so tests can pin the timestamp embedded in issue
// titles.
var timeNow = time.Now
