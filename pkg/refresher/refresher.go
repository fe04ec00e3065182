package refresher

import (
	"context"
	"time"

	"github.com/openlab-infra/ha-healthchecker/pkg/types"
	"github.com/rs/zerolog"
)

// Store is the subset of store.Store the refresher depends on.
type Store interface {
	ListServices(nodeName string, role types.NodeRole, status types.ServiceStatus) ([]*types.Service, error)
	UpdateService(name, nodeName string, patch types.ServicePatch) (*types.Service, error)
	UpdateNode(name string, patch types.NodePatch) (*types.Node, error)
}

// Pinger checks whether a node's IP answers.
type Pinger interface {
	Ping(ctx context.Context, ip string) bool
}

// ServiceStatusChecker samples one service's current init-system state.
type ServiceStatusChecker interface {
	Status(ctx context.Context, service string) (bool, error)
}

// Refresher reconciles one node's locally-observed service state and
// heartbeat into the shared store.
type Refresher struct {
	Store    Store
	Pinger   Pinger
	Services ServiceStatusChecker
	Logger   zerolog.Logger
}

func (r *Refresher) isHeartbeatOvertime(node *types.Node, cfg types.Configuration) bool {
	if node.Heartbeat.IsZero() {
		return true
	}
	deadline := node.Heartbeat.Add(time.Duration(cfg.HeartbeatTimeoutSecond) * time.Second)
	return time.Now().UTC().After(deadline)
}

func (r *Refresher) isAlarmedTimeout(svc *types.Service, cfg types.Configuration) bool {
	if svc.AlarmedAt.IsZero() {
		return false
	}
	deadline := svc.AlarmedAt.Add(time.Duration(cfg.UnnecessaryServiceSwitchTimeoutHr) * time.Hour)
	return time.Now().UTC().After(deadline)
}

// Run processes local services and heartbeat for local, then checks
// reachability of oppo and zk, in that order. Skips entirely when
// local is under maintenance (spec §4.2).
func (r *Refresher) Run(ctx context.Context, local, oppo, zk *types.Node, cfg types.Configuration) error {
	if local.Status == types.NodeStatusMaintaining {
		r.Logger.Debug().Str("node", local.Name).Msg("node is maintaining, skipping refresh")
		return nil
	}

	if err := r.processLocalServices(ctx, local, cfg); err != nil {
		return err
	}
	if err := r.reportHeartbeat(local, cfg); err != nil {
		return err
	}

	if oppo != nil {
		if err := r.checkOtherNode(ctx, oppo, cfg); err != nil {
			return err
		}
	}
	if zk != nil {
		if err := r.checkOtherNode(ctx, zk, cfg); err != nil {
			return err
		}
	}
	return nil
}

func (r *Refresher) processLocalServices(ctx context.Context, local *types.Node, cfg types.Configuration) error {
	services, err := r.Store.ListServices(local.Name, "", "")
	if err != nil {
		return err
	}
	for _, svc := range services {
		if err := r.refreshService(ctx, svc, cfg); err != nil {
			return err
		}
	}
	return nil
}

func (r *Refresher) refreshService(ctx context.Context, svc *types.Service, cfg types.Configuration) error {
	up, err := r.Services.Status(ctx, svc.Name)
	if err != nil {
		r.Logger.Error().Err(err).Str("service", svc.Name).Msg("failed to sample service status")
		return nil
	}

	patch := types.ServicePatch{}
	changed := false

	if up {
		if svc.Status != types.ServiceStatusUp && svc.RestartedCount < cfg.ServiceRestartMaxTimes {
			status := types.ServiceStatusUp
			restarted := false
			alarmed := false
			count := 0
			patch.Status = &status
			patch.Restarted = &restarted
			patch.Alarmed = &alarmed
			patch.RestartedCount = &count
			changed = true
			r.Logger.Debug().Str("service", svc.Name).Str("from", string(svc.Status)).Msg("service recovered to up")
		}
	} else {
		if !svc.Restarted {
			status := types.ServiceStatusRestarting
			restarted := true
			patch.Status = &status
			patch.Restarted = &restarted
			changed = true
			r.Logger.Debug().Str("service", svc.Name).Msg("service is restarting")
		} else if svc.RestartedCount > cfg.ServiceRestartMaxTimes {
			status := types.ServiceStatusDown
			patch.Status = &status
			changed = true
			r.Logger.Debug().Str("service", svc.Name).Msg("service is down")
		} else {
			count := svc.RestartedCount + 1
			patch.RestartedCount = &count
			changed = true
			r.Logger.Debug().Str("service", svc.Name).Int("tries", svc.RestartedCount).Msg("service still restarting")
		}
	}

	if !changed {
		return nil
	}
	_, err = r.Store.UpdateService(svc.Name, svc.NodeName, patch)
	return err
}

// needFixAlarmedStatus mirrors the source's alarm-clearing gate: a
// slave node always clears on heartbeat, but a master/zookeeper node
// only clears when none of its unnecessary services carries an alarm
// older than the unnecessary-service switch timeout.
func (r *Refresher) needFixAlarmedStatus(node *types.Node, cfg types.Configuration) (bool, error) {
	if !node.Alarmed {
		return false, nil
	}
	if node.Role == types.NodeRoleSlave {
		return true, nil
	}

	services, err := r.Store.ListServices(node.Name, "", "")
	if err != nil {
		return false, err
	}
	for _, svc := range services {
		if svc.IsNecessary {
			continue
		}
		if svc.Alarmed && r.isAlarmedTimeout(svc, cfg) {
			return false, nil
		}
	}
	return true, nil
}

func (r *Refresher) reportHeartbeat(local *types.Node, cfg types.Configuration) error {
	now := time.Now().UTC()
	patch := types.NodePatch{Heartbeat: &now}

	if local.Status == types.NodeStatusInitializing || local.Status == types.NodeStatusDown {
		up := types.NodeStatusUp
		patch.Status = &up
	}

	clear, err := r.needFixAlarmedStatus(local, cfg)
	if err != nil {
		return err
	}
	if clear {
		alarmed := false
		patch.Alarmed = &alarmed
	}

	_, err = r.Store.UpdateNode(local.Name, patch)
	if err != nil {
		return err
	}
	r.Logger.Debug().Str("node", local.Name).Time("heartbeat", now).Msg("reported heartbeat")
	return nil
}

func (r *Refresher) checkOtherNode(ctx context.Context, other *types.Node, cfg types.Configuration) error {
	if other.Status == types.NodeStatusMaintaining {
		return nil
	}
	if !r.Pinger.Ping(ctx, other.IP) && r.isHeartbeatOvertime(other, cfg) {
		if other.Status == types.NodeStatusUp {
			down := types.NodeStatusDown
			if _, err := r.Store.UpdateNode(other.Name, types.NodePatch{Status: &down}); err != nil {
				return err
			}
			other.Status = types.NodeStatusDown
			r.Logger.Info().Str("node", other.Name).Str("role", string(other.Role)).Msg("node unreachable, marked down")
		}
	}
	return nil
}
