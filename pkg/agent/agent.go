package agent

import (
	"context"
	"sync"
	"time"

	"github.com/openlab-infra/ha-healthchecker/pkg/config"
	"github.com/openlab-infra/ha-healthchecker/pkg/dnsprovider"
	"github.com/openlab-infra/ha-healthchecker/pkg/fixer"
	"github.com/openlab-infra/ha-healthchecker/pkg/issues"
	"github.com/openlab-infra/ha-healthchecker/pkg/log"
	"github.com/openlab-infra/ha-healthchecker/pkg/metrics"
	"github.com/openlab-infra/ha-healthchecker/pkg/refresher"
	"github.com/openlab-infra/ha-healthchecker/pkg/store"
	"github.com/openlab-infra/ha-healthchecker/pkg/switcher"
	"github.com/openlab-infra/ha-healthchecker/pkg/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultInterval is the tick period used when Agent.Interval is zero
// (spec §4.5: 120 seconds).
const DefaultInterval = 120 * time.Second

// Store is everything the agent and the components it drives need
// from the coordination store. A single concrete store implementation
// satisfies this plus refresher.Store/fixer.Store/switcher.Store.
type Store interface {
	ListNodes(role types.NodeRole, nodeType types.NodeType, includeZk bool) ([]*types.Node, error)
	ListConfiguration() (types.Configuration, error)
	ListServices(nodeName string, role types.NodeRole, status types.ServiceStatus) ([]*types.Service, error)
	UpdateNode(name string, patch types.NodePatch) (*types.Node, error)
	UpdateService(name, nodeName string, patch types.ServicePatch) (*types.Service, error)
	UpdateConfiguration(patch store.ConfigurationPatch) (types.Configuration, error)
}

// Pinger checks whether a node's IP answers.
type Pinger interface {
	Ping(ctx context.Context, ip string) bool
}

// ServiceController drives the init system for services owned by the
// local node.
type ServiceController interface {
	Status(ctx context.Context, service string) (bool, error)
	Start(ctx context.Context, service string) error
	Stop(ctx context.Context, service string) error
	Restart(ctx context.Context, service string) error
}

// DNSRewriter points the status/log domains at the new master.
type DNSRewriter interface {
	RewriteStatusAndLog(ctx context.Context, cfg types.Configuration) (dnsprovider.RewriteResult, error)
}

// WebhookRotator points the external app's webhook at the new master.
type WebhookRotator interface {
	RotateWebhook(newIP string) error
}

// IssueFiler posts a GitHub issue describing what happened.
type IssueFiler interface {
	CreateIssue(ctx context.Context, r issues.Report) error
}

// Agent runs Refresher, then Fixer, then Switcher, in that order,
// once per tick, for one named node.
type Agent struct {
	NodeName string
	Interval time.Duration

	Store    Store
	Pinger   Pinger
	Services ServiceController
	DNS      DNSRewriter
	Webhook  WebhookRotator
	Issues   IssueFiler

	Logger zerolog.Logger

	mu     sync.Mutex
	stopCh chan struct{}
}

// New builds an Agent over a concrete coordination store.
func New(nodeName string, store Store, pinger Pinger, services ServiceController, dns DNSRewriter, webhook WebhookRotator, filer IssueFiler) *Agent {
	return &Agent{
		NodeName: nodeName,
		Interval: DefaultInterval,
		Store:    store,
		Pinger:   pinger,
		Services: services,
		DNS:      dns,
		Webhook:  webhook,
		Issues:   filer,
		Logger:   log.WithComponent("agent"),
	}
}

// Start runs the tick loop in a background goroutine until Stop is
// called.
func (a *Agent) Start(ctx context.Context) {
	a.mu.Lock()
	a.stopCh = make(chan struct{})
	stop := a.stopCh
	a.mu.Unlock()

	go a.run(ctx, stop)
}

// Stop ends the tick loop.
func (a *Agent) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopCh != nil {
		close(a.stopCh)
		a.stopCh = nil
	}
}

func (a *Agent) interval() time.Duration {
	if a.Interval > 0 {
		return a.Interval
	}
	return DefaultInterval
}

func (a *Agent) run(ctx context.Context, stop chan struct{}) {
	ticker := time.NewTicker(a.interval())
	defer ticker.Stop()

	a.Logger.Info().Str("node", a.NodeName).Dur("interval", a.interval()).Msg("agent started")

	for {
		select {
		case <-ticker.C:
			if err := a.Tick(ctx); err != nil {
				a.Logger.Error().Err(err).Msg("tick aborted")
				metrics.TicksTotal.WithLabelValues("aborted").Inc()
			} else {
				metrics.TicksTotal.WithLabelValues("ok").Inc()
			}
		case <-stop:
			a.Logger.Info().Msg("agent stopped")
			return
		case <-ctx.Done():
			a.Logger.Info().Msg("agent stopped by context cancellation")
			return
		}
	}
}

// Tick runs one Refresher+Fixer+Switcher cycle. A transient store
// error aborts the remainder of the tick (spec §7); any single
// component's own tolerated errors are handled internally and never
// propagate here.
func (a *Agent) Tick(ctx context.Context) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.TickDuration)

	tickLogger := a.Logger.With().Str("tick_id", uuid.New().String()).Logger()

	cfg, err := config.NewLoader(a.Store).Load()
	if err != nil {
		return err
	}

	local, oppo, zk, err := a.resolveNodes()
	if err != nil {
		return err
	}
	if local == nil {
		tickLogger.Warn().Str("node", a.NodeName).Msg("local node not found in store, skipping tick")
		return nil
	}

	ref := &refresher.Refresher{Store: a.Store, Pinger: a.Pinger, Services: a.Services, Logger: tickLogger}
	refTimer := metrics.NewTimer()
	if err := ref.Run(ctx, local, oppo, zk, cfg); err != nil {
		return err
	}
	refTimer.ObserveDuration(metrics.RefresherDuration)

	fix := &fixer.Fixer{Store: a.Store, Pinger: a.Pinger, Services: a.Services, Issues: a.Issues, Logger: tickLogger}
	fixTimer := metrics.NewTimer()
	if err := fix.Run(ctx, local, oppo, zk, cfg); err != nil {
		return err
	}
	fixTimer.ObserveDuration(metrics.FixerDuration)

	sw := &switcher.Switcher{NodeName: a.NodeName, Store: a.Store, Pinger: a.Pinger, Services: a.Services, DNS: a.DNS, Webhook: a.Webhook, Issues: a.Issues, Logger: tickLogger}
	swTimer := metrics.NewTimer()
	if err := sw.Run(ctx, cfg); err != nil {
		return err
	}
	swTimer.ObserveDuration(metrics.SwitcherDuration)

	return nil
}

// resolveNodes mirrors the source implementation's
// _get_oppo_and_zk_node: oppo is the other node sharing local's type,
// zk is the node whose type equals its own role (the zookeeper node).
func (a *Agent) resolveNodes() (local, oppo, zk *types.Node, err error) {
	all, err := a.Store.ListNodes("", "", true)
	if err != nil {
		return nil, nil, nil, err
	}

	for _, n := range all {
		if n.Name == a.NodeName {
			local = n
		}
	}
	if local == nil {
		return nil, nil, nil, nil
	}
	for _, n := range all {
		if n.Type == local.Type && n.Name != local.Name {
			oppo = n
		}
		if string(n.Type) == string(n.Role) {
			zk = n
		}
	}
	return local, oppo, zk, nil
}
