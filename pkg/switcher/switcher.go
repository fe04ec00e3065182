package switcher

import (
	"context"
	"time"

	"github.com/openlab-infra/ha-healthchecker/pkg/dnsprovider"
	"github.com/openlab-infra/ha-healthchecker/pkg/issues"
	"github.com/openlab-infra/ha-healthchecker/pkg/store"
	"github.com/openlab-infra/ha-healthchecker/pkg/types"
	"github.com/rs/zerolog"
)

// promotionSettleDelay is how long a freshly-promoted master waits
// before sampling its own services for the post-promotion log line.
const promotionSettleDelay = 5 * time.Second

// Store is the subset of store.Store the switcher depends on.
type Store interface {
	ListNodes(role types.NodeRole, nodeType types.NodeType, includeZk bool) ([]*types.Node, error)
	UpdateNode(name string, patch types.NodePatch) (*types.Node, error)
	ListServices(nodeName string, role types.NodeRole, status types.ServiceStatus) ([]*types.Service, error)
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

// Switcher runs the failover state machine for one local node.
type Switcher struct {
	NodeName string

	Store       Store
	Pinger      Pinger
	Services    ServiceController
	DNS         DNSRewriter
	Webhook     WebhookRotator
	Issues      IssueFiler
	Logger      zerolog.Logger
}

func (s *Switcher) isHeartbeatOvertime(node *types.Node, cfg types.Configuration) bool {
	if node.Heartbeat.IsZero() {
		return true
	}
	deadline := node.Heartbeat.Add(time.Duration(cfg.HeartbeatTimeoutSecond) * time.Second)
	return time.Now().UTC().After(deadline)
}

func (s *Switcher) isAlarmedTimeout(svc *types.Service, cfg types.Configuration) bool {
	if svc.AlarmedAt.IsZero() {
		return false
	}
	deadline := svc.AlarmedAt.Add(time.Duration(cfg.UnnecessaryServiceSwitchTimeoutHr) * time.Hour)
	return time.Now().UTC().After(deadline)
}

func (s *Switcher) unreachableAndExpired(ctx context.Context, node *types.Node, cfg types.Configuration) bool {
	return !s.Pinger.Ping(ctx, node.IP) && s.isHeartbeatOvertime(node, cfg)
}

// Run executes one tick of the switcher for the local node.
func (s *Switcher) Run(ctx context.Context, cfg types.Configuration) error {
	if !cfg.AllowSwitch {
		return nil
	}

	nonZK, err := s.Store.ListNodes("", "", false)
	if err != nil {
		return err
	}

	var local, oppo *types.Node
	for _, n := range nonZK {
		if n.Name == s.NodeName {
			local = n
		}
	}
	if local == nil {
		return nil
	}
	if local.Type == types.NodeTypeZookeeper {
		return nil
	}
	for _, n := range nonZK {
		if n.Type == local.Type && n.Name != local.Name {
			oppo = n
		}
	}

	// statuses derives the switch_status of every non-zookeeper node
	// from the node list read at the top of Run. Each write below also
	// updates the matching in-memory node, so a proposal or surrogate
	// write earlier in this same tick is visible to the CanStart/IsEnd
	// checks later in it. Writes by other agents during the tick are
	// not seen until the next tick's read.
	statuses := func() []types.SwitchStatus {
		out := make([]types.SwitchStatus, len(nonZK))
		for i, n := range nonZK {
			out[i] = n.SwitchStatus
		}
		return out
	}

	forced := true
	if normalizeSwitchStatus(local.SwitchStatus) == types.SwitchStatusNull && notSwitching(statuses()) {
		need, err := s.needSwitch(nonZK, cfg)
		if err != nil {
			return err
		}
		if need {
			if err := s.proposeSwitch(ctx, local, oppo, cfg); err != nil {
				return err
			}
			forced = false
		}
	}

	if canStart(statuses()) && normalizeSwitchStatus(local.SwitchStatus) != types.SwitchStatusEnd {
		if err := s.doSwitch(ctx, local, oppo, cfg, forced); err != nil {
			return err
		}
	}

	if isEnd(statuses()) {
		if normalizeSwitchStatus(local.SwitchStatus) == types.SwitchStatusEnd {
			null := types.SwitchStatusNull
			if _, err := s.Store.UpdateNode(local.Name, types.NodePatch{SwitchStatus: &null}); err != nil {
				return err
			}
			local.SwitchStatus = types.SwitchStatusNull
		}
		if oppo != nil && normalizeSwitchStatus(oppo.SwitchStatus) == types.SwitchStatusEnd &&
			s.unreachableAndExpired(ctx, oppo, cfg) {
			null := types.SwitchStatusNull
			if _, err := s.Store.UpdateNode(oppo.Name, types.NodePatch{SwitchStatus: &null}); err != nil {
				return err
			}
			oppo.SwitchStatus = types.SwitchStatusNull
		}
	}

	return nil
}

// needSwitch implements the global-checking evaluation (spec §4.4
// step 2): true as soon as any reason to fail over is found.
func (s *Switcher) needSwitch(nonZK []*types.Node, cfg types.Configuration) (bool, error) {
	for _, n := range nonZK {
		if n.Status == types.NodeStatusMaintaining {
			return false, nil
		}
	}
	for _, n := range nonZK {
		if n.Role == types.NodeRoleSlave && n.Status == types.NodeStatusDown {
			return false, nil
		}
	}
	for _, n := range nonZK {
		if n.Role != types.NodeRoleMaster {
			continue
		}
		if n.Status == types.NodeStatusDown {
			return true, nil
		}
		services, err := s.Store.ListServices(n.Name, "", "")
		if err != nil {
			return false, err
		}
		for _, svc := range services {
			if svc.Status != types.ServiceStatusDown {
				continue
			}
			if svc.IsNecessary {
				return true, nil
			}
			if s.isAlarmedTimeout(svc, cfg) {
				return true, nil
			}
		}
	}
	return false, nil
}

func (s *Switcher) proposeSwitch(ctx context.Context, local, oppo *types.Node, cfg types.Configuration) error {
	start := types.SwitchStatusStart
	if _, err := s.Store.UpdateNode(local.Name, types.NodePatch{SwitchStatus: &start}); err != nil {
		return err
	}
	local.SwitchStatus = types.SwitchStatusStart
	s.Logger.Info().Str("node", local.Name).Msg("proposing switch_status=start")

	if local.Role == types.NodeRoleSlave && oppo != nil && s.unreachableAndExpired(ctx, oppo, cfg) {
		if _, err := s.Store.UpdateNode(oppo.Name, types.NodePatch{SwitchStatus: &start}); err != nil {
			return err
		}
		oppo.SwitchStatus = types.SwitchStatusStart
		s.Logger.Info().Str("node", oppo.Name).Msg("surrogate switch_status=start for unreachable peer")
	}
	return nil
}

func (s *Switcher) doSwitch(ctx context.Context, local, oppo *types.Node, cfg types.Configuration, forced bool) error {
	switch local.Role {
	case types.NodeRoleMaster:
		if err := s.demote(ctx, local, forced); err != nil {
			return err
		}
	case types.NodeRoleSlave:
		if err := s.promote(ctx, local, oppo, cfg); err != nil {
			return err
		}
	default:
		return nil
	}

	if !forced && s.Issues != nil {
		if err := s.Issues.CreateIssue(ctx, issues.Report{Kind: issues.KindSwitch, Issuer: local}); err != nil {
			s.Logger.Error().Err(err).Msg("failed to file switch issue")
		}
	}
	return nil
}

func (s *Switcher) demote(ctx context.Context, local *types.Node, forced bool) error {
	services, err := s.Store.ListServices(local.Name, "", "")
	if err != nil {
		return err
	}
	for _, svc := range services {
		if types.TimerPseudoServices[svc.Name] {
			continue
		}
		if forced && svc.Name == "zookeeper" {
			continue
		}
		if err := s.Services.Stop(ctx, svc.Name); err != nil {
			s.Logger.Error().Err(err).Str("service", svc.Name).Msg("failed to stop service during demotion")
		}
	}

	slave := types.NodeRoleSlave
	end := types.SwitchStatusEnd
	if _, err := s.Store.UpdateNode(local.Name, types.NodePatch{Role: &slave, SwitchStatus: &end}); err != nil {
		return err
	}
	local.Role = types.NodeRoleSlave
	local.SwitchStatus = types.SwitchStatusEnd
	s.Logger.Info().Str("node", local.Name).Bool("forced", forced).Msg("demoted master to slave")
	return nil
}

func (s *Switcher) promote(ctx context.Context, local, oppo *types.Node, cfg types.Configuration) error {
	if local.Type == types.NodeTypeZuul {
		if result, err := s.DNS.RewriteStatusAndLog(ctx, cfg); err != nil {
			s.Logger.Error().Err(err).Msg("DNS rewrite failed during promotion")
		} else if !result.NoMatch {
			s.Logger.Info().Msg("rewrote status/log DNS records to slave IP")
			masterIP, slaveIP := cfg.DNSMasterPublicIP, cfg.DNSSlavePublicIP
			if _, err := s.Store.UpdateConfiguration(store.ConfigurationPatch{
				DNSMasterPublicIP: &slaveIP,
				DNSSlavePublicIP:  &masterIP,
			}); err != nil {
				return err
			}
		}
		// Webhook rotates to cfg.DNSSlavePublicIP as loaded at tick
		// start, i.e. the newly-promoted master's own public IP,
		// before the swap above takes effect on the next tick's load.
		if err := s.Webhook.RotateWebhook(cfg.DNSSlavePublicIP); err != nil {
			s.Logger.Error().Err(err).Msg("webhook rotation failed during promotion")
		}
	}

	master := types.NodeRoleMaster
	end := types.SwitchStatusEnd
	if _, err := s.Store.UpdateNode(local.Name, types.NodePatch{Role: &master, SwitchStatus: &end}); err != nil {
		return err
	}
	local.Role = types.NodeRoleMaster
	local.SwitchStatus = types.SwitchStatusEnd

	services, err := s.Store.ListServices(local.Name, "", "")
	if err != nil {
		return err
	}
	for _, svc := range services {
		if types.TimerPseudoServices[svc.Name] {
			continue
		}
		if err := s.Services.Start(ctx, svc.Name); err != nil {
			s.Logger.Error().Err(err).Str("service", svc.Name).Msg("failed to start service during promotion")
		}
	}

	sleep(promotionSettleDelay)

	for _, svc := range services {
		up, err := s.Services.Status(ctx, svc.Name)
		if err != nil {
			s.Logger.Error().Err(err).Str("service", svc.Name).Msg("failed to sample service status after promotion")
			continue
		}
		s.Logger.Info().Str("service", svc.Name).Bool("up", up).Msg("post-promotion service status")
	}

	s.Logger.Info().Str("node", local.Name).Msg("promoted slave to master")

	if oppo != nil && s.unreachableAndExpired(ctx, oppo, cfg) {
		slave := types.NodeRoleSlave
		end := types.SwitchStatusEnd
		if _, err := s.Store.UpdateNode(oppo.Name, types.NodePatch{Role: &slave, SwitchStatus: &end}); err != nil {
			return err
		}
		oppo.Role = types.NodeRoleSlave
		oppo.SwitchStatus = types.SwitchStatusEnd
		s.Logger.Info().Str("node", oppo.Name).Msg("surrogate demotion of unreachable peer")
	}
	return nil
}

// sleep is a seam so tests don't pay the real promotion settle delay.
var sleep = time.Sleep
