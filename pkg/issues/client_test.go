package issues

import "testing"

func TestNewClientRejectsMalformedRepoName(t *testing.T) {
	_, err := NewClient("token", "not-owner-slash-repo")
	if err == nil {
		t.Fatal("expected error for malformed owner/repo string")
	}
}

func TestNewClientAcceptsOwnerRepo(t *testing.T) {
	c, err := NewClient("token", "openlab/labkeeper")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.owner != "openlab" || c.repo != "labkeeper" {
		t.Fatalf("unexpected owner/repo split: %s/%s", c.owner, c.repo)
	}
}
