package fixer

import (
	"context"
	"time"

	"github.com/openlab-infra/ha-healthchecker/pkg/issues"
	"github.com/openlab-infra/ha-healthchecker/pkg/types"
	"github.com/rs/zerolog"
)

// Store is the subset of store.Store the fixer depends on.
type Store interface {
	ListServices(nodeName string, role types.NodeRole, status types.ServiceStatus) ([]*types.Service, error)
	UpdateService(name, nodeName string, patch types.ServicePatch) (*types.Service, error)
	UpdateNode(name string, patch types.NodePatch) (*types.Node, error)
}

// Pinger checks whether a node's IP answers.
type Pinger interface {
	Ping(ctx context.Context, ip string) bool
}

// ServiceRestarter restarts the unit backing a service name.
type ServiceRestarter interface {
	Restart(ctx context.Context, service string) error
}

// IssueFiler posts a GitHub issue describing what happened.
type IssueFiler interface {
	CreateIssue(ctx context.Context, r issues.Report) error
}

// Fixer remediates what the refresher observed: restarting services
// caught restarting, and filing debounced alerts for anything that
// stays down.
type Fixer struct {
	Store    Store
	Services ServiceRestarter
	Pinger   Pinger
	Issues   IssueFiler
	Logger   zerolog.Logger
}

func (f *Fixer) isHeartbeatOvertime(node *types.Node, cfg types.Configuration) bool {
	if node.Heartbeat.IsZero() {
		return true
	}
	deadline := node.Heartbeat.Add(time.Duration(cfg.HeartbeatTimeoutSecond) * time.Second)
	return time.Now().UTC().After(deadline)
}

func (f *Fixer) isAlarmedTimeout(svc *types.Service, cfg types.Configuration) bool {
	if svc.AlarmedAt.IsZero() {
		return false
	}
	deadline := svc.AlarmedAt.Add(time.Duration(cfg.UnnecessaryServiceSwitchTimeoutHr) * time.Hour)
	return time.Now().UTC().After(deadline)
}

func (f *Fixer) setServiceAlarmed(svc *types.Service) error {
	if svc.Alarmed {
		return nil
	}
	alarmed := true
	if _, err := f.Store.UpdateService(svc.Name, svc.NodeName, types.ServicePatch{Alarmed: &alarmed}); err != nil {
		return err
	}
	svc.Alarmed = true
	f.Logger.Info().Str("service", svc.Name).Msg("service updated with alarmed=true")
	return nil
}

func (f *Fixer) setNodeAlarmed(node *types.Node) error {
	if node.Alarmed {
		return nil
	}
	alarmed := true
	if _, err := f.Store.UpdateNode(node.Name, types.NodePatch{Alarmed: &alarmed}); err != nil {
		return err
	}
	node.Alarmed = true
	f.Logger.Info().Str("node", node.Name).Str("role", string(node.Role)).Msg("node updated with alarmed=true")
	return nil
}

// Run remediates local services, then checks oppo and zk for issues
// worth filing. Skips entirely when local is under maintenance.
func (f *Fixer) Run(ctx context.Context, local, oppo, zk *types.Node, cfg types.Configuration) error {
	if local.Status == types.NodeStatusMaintaining {
		f.Logger.Debug().Str("node", local.Name).Msg("node is maintaining, skipping fix")
		return nil
	}

	if err := f.fixLocalServices(ctx, local, cfg); err != nil {
		return err
	}
	if oppo != nil {
		if err := f.checkOtherNode(ctx, local, oppo, cfg); err != nil {
			return err
		}
	}
	if zk != nil {
		if err := f.checkOtherNode(ctx, local, zk, cfg); err != nil {
			return err
		}
	}
	return nil
}

func (f *Fixer) fixLocalServices(ctx context.Context, local *types.Node, cfg types.Configuration) error {
	services, err := f.Store.ListServices(local.Name, "", "")
	if err != nil {
		return err
	}
	for _, svc := range services {
		if err := f.fixService(ctx, local, svc, cfg); err != nil {
			return err
		}
	}
	return nil
}

func (f *Fixer) fixService(ctx context.Context, local *types.Node, svc *types.Service, cfg types.Configuration) error {
	switch svc.Status {
	case types.ServiceStatusRestarting:
		if err := f.Services.Restart(ctx, svc.Name); err != nil {
			f.Logger.Error().Err(err).Str("service", svc.Name).Msg("service restart failed")
			return nil
		}
		f.Logger.Info().Str("service", svc.Name).Msg("service restarted successfully")

	case types.ServiceStatusDown:
		if !svc.Alarmed {
			if err := f.fileIssue(ctx, issues.Report{Kind: issues.KindServiceDown, Issuer: local, AffectedNode: local, AffectedService: svc}); err != nil {
				return err
			}
			return f.setServiceAlarmed(svc)
		}
		if !svc.IsNecessary && f.isAlarmedTimeout(svc, cfg) {
			return f.fileIssue(ctx, issues.Report{Kind: issues.KindServiceTimeout, Issuer: local, AffectedNode: local, AffectedService: svc})
		}
	}
	return nil
}

func (f *Fixer) checkOtherNode(ctx context.Context, local, other *types.Node, cfg types.Configuration) error {
	if other.Status == types.NodeStatusMaintaining {
		return nil
	}

	reachable := f.Pinger.Ping(ctx, other.IP)
	overtime := f.isHeartbeatOvertime(other, cfg)

	switch {
	case reachable && overtime:
		if !other.Alarmed {
			if err := f.fileIssue(ctx, issues.Report{Kind: issues.KindHealthcheckerError, Issuer: local, AffectedNode: other}); err != nil {
				return err
			}
			f.Logger.Info().Msg("posted an issue to GitHub")
			return f.setNodeAlarmed(other)
		}
	case !reachable && overtime:
		if other.Status == types.NodeStatusDown && !other.Alarmed {
			if err := f.fileIssue(ctx, issues.Report{Kind: issues.KindOtherNodeDown, Issuer: local, AffectedNode: other}); err != nil {
				return err
			}
			return f.setNodeAlarmed(other)
		}
	}
	return nil
}

func (f *Fixer) fileIssue(ctx context.Context, r issues.Report) error {
	if f.Issues == nil {
		return nil
	}
	if err := f.Issues.CreateIssue(ctx, r); err != nil {
		f.Logger.Error().Err(err).Str("kind", string(r.Kind)).Msg("failed to file issue")
	}
	return nil
}
