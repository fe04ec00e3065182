package issues

import (
	"fmt"
	"strings"
	"time"

	"github.com/openlab-infra/ha-healthchecker/pkg/types"
)

// Kind identifies the condition an issue reports.
type Kind string

const (
	KindServiceDown       Kind = "service_down"
	KindServiceTimeout    Kind = "service_timeout"
	KindHealthcheckerError Kind = "healthchecker_error"
	KindOtherNodeDown     Kind = "other_node_down"
	KindSwitch            Kind = "switch"
)

const titleTimeFormat = "2006-01-02 15:04:05"

// Report carries everything the formatter needs to produce a title
// and body; AffectedNode/AffectedService are nil when the kind doesn't
// use them.
type Report struct {
	Kind            Kind
	Issuer          *types.Node
	AffectedNode    *types.Node
	AffectedService *types.Service
}

// FormatTitle builds the issue title, timestamped in UTC to the second
// it was raised.
func FormatTitle(now time.Time) string {
	return fmt.Sprintf("[OpenLab HA HealthCheck][%s] Alarm", now.UTC().Format(titleTimeFormat))
}

// FormatBody builds the issue body: who raised it, what's wrong, and
// a copy-pasteable remediation suggestion.
func FormatBody(r Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Issuer Host Info:\n===============\n  name: %s\n  role: %s\n  ip: %s\n",
		r.Issuer.Name, r.Issuer.Role, r.Issuer.IP)

	b.WriteString("\nProblem:\n===============\n")

	switch r.Kind {
	case KindServiceDown:
		fmt.Fprintf(&b, "The service %s on the node %s (IP %s) is down.\n",
			r.AffectedService.Name, r.AffectedNode.Name, r.AffectedNode.IP)
		fmt.Fprintf(&b, "\nSuggestion:\n===============\nssh ubuntu@%s\nsystemctl status %s\njournalctl -u %s\n",
			r.AffectedNode.IP, r.AffectedService.Name, r.AffectedService.Name)

	case KindServiceTimeout:
		fmt.Fprintf(&b, "The unnecessary service %s on the node %s (IP %s) has been down for a long time.\n",
			r.AffectedService.Name, r.AffectedNode.Name, r.AffectedNode.IP)
		fmt.Fprintf(&b, "\nSuggestion:\n===============\nssh ubuntu@%s\nsystemctl status %s\njournalctl -u %s\n",
			r.AffectedNode.IP, r.AffectedService.Name, r.AffectedService.Name)

	case KindHealthcheckerError:
		fmt.Fprintf(&b, "The ha-healthchecker agent on the node %s (IP %s) is down.\n",
			r.AffectedNode.Name, r.AffectedNode.IP)
		fmt.Fprintf(&b, "\nSuggestion:\n===============\nssh ubuntu@%s\nsystemctl status ha-healthchecker\njournalctl -u ha-healthchecker\n",
			r.AffectedNode.IP)

	case KindOtherNodeDown:
		fmt.Fprintf(&b, "The %s node %s (IP %s) is down.\n",
			r.AffectedNode.Role, r.AffectedNode.Name, r.AffectedNode.IP)
		fmt.Fprintf(&b, "\nSuggestion:\n===============\nssh ubuntu@%s\n", r.AffectedNode.IP)
		b.WriteString("Or check the cloud console to confirm the instance still exists.\n")

	case KindSwitch:
		b.WriteString("HA deployment has switched to the slave deployment.\n")
		b.WriteString("Re-create a new slave cluster before the next failure.\n")
		b.WriteString("\nSuggestion:\n===============\ncd into the deployment directory\nupdate the inventory file\nre-run the new-slave deployment action\n")
	}

	return b.String()
}
