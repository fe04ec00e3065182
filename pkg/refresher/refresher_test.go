package refresher

import (
	"context"
	"testing"
	"time"

	"github.com/openlab-infra/ha-healthchecker/pkg/types"
	"github.com/rs/zerolog"
)

type fakeStore struct {
	services map[string][]*types.Service
	nodes    map[string]*types.Node
}

func (f *fakeStore) ListServices(nodeName string, role types.NodeRole, status types.ServiceStatus) ([]*types.Service, error) {
	return f.services[nodeName], nil
}

func (f *fakeStore) UpdateService(name, nodeName string, patch types.ServicePatch) (*types.Service, error) {
	for _, svc := range f.services[nodeName] {
		if svc.Name != name {
			continue
		}
		if patch.Status != nil {
			svc.Status = *patch.Status
		}
		if patch.Restarted != nil {
			svc.Restarted = *patch.Restarted
		}
		if patch.RestartedCount != nil {
			svc.RestartedCount = *patch.RestartedCount
		}
		if patch.Alarmed != nil {
			svc.Alarmed = *patch.Alarmed
		}
		return svc, nil
	}
	return nil, nil
}

func (f *fakeStore) UpdateNode(name string, patch types.NodePatch) (*types.Node, error) {
	n := f.nodes[name]
	if patch.Status != nil {
		n.Status = *patch.Status
	}
	if patch.Heartbeat != nil {
		n.Heartbeat = *patch.Heartbeat
	}
	if patch.Alarmed != nil {
		n.Alarmed = *patch.Alarmed
	}
	return n, nil
}

type fakePinger struct{ reachable map[string]bool }

func (f *fakePinger) Ping(ctx context.Context, ip string) bool { return f.reachable[ip] }

type fakeStatusChecker struct{ up map[string]bool }

func (f *fakeStatusChecker) Status(ctx context.Context, service string) (bool, error) {
	return f.up[service], nil
}

func baseConfig() types.Configuration {
	cfg := types.DefaultConfiguration()
	cfg.ServiceRestartMaxTimes = 3
	cfg.HeartbeatTimeoutSecond = 300
	cfg.UnnecessaryServiceSwitchTimeoutHr = 24
	return cfg
}

func TestRefreshServiceRecoversToUpUnderThreshold(t *testing.T) {
	svc := &types.Service{Name: "zuul-scheduler", NodeName: "zuul-master", Status: types.ServiceStatusRestarting, RestartedCount: 1}
	store := &fakeStore{services: map[string][]*types.Service{"zuul-master": {svc}}}
	r := &Refresher{Store: store, Services: &fakeStatusChecker{up: map[string]bool{"zuul-scheduler": true}}, Logger: zerolog.Nop()}

	if err := r.refreshService(context.Background(), svc, baseConfig()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if svc.Status != types.ServiceStatusUp || svc.Restarted || svc.RestartedCount != 0 {
		t.Fatalf("expected service cleared to up, got %+v", svc)
	}
}

func TestRefreshServiceFirstDownMarksRestarting(t *testing.T) {
	svc := &types.Service{Name: "zuul-scheduler", NodeName: "zuul-master", Status: types.ServiceStatusUp}
	store := &fakeStore{services: map[string][]*types.Service{"zuul-master": {svc}}}
	r := &Refresher{Store: store, Services: &fakeStatusChecker{up: map[string]bool{"zuul-scheduler": false}}, Logger: zerolog.Nop()}

	if err := r.refreshService(context.Background(), svc, baseConfig()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if svc.Status != types.ServiceStatusRestarting || !svc.Restarted {
		t.Fatalf("expected service marked restarting, got %+v", svc)
	}
}

func TestRefreshServiceExceedsThresholdGoesDown(t *testing.T) {
	svc := &types.Service{Name: "zuul-scheduler", NodeName: "zuul-master", Status: types.ServiceStatusRestarting, Restarted: true, RestartedCount: 4}
	store := &fakeStore{services: map[string][]*types.Service{"zuul-master": {svc}}}
	r := &Refresher{Store: store, Services: &fakeStatusChecker{up: map[string]bool{"zuul-scheduler": false}}, Logger: zerolog.Nop()}

	if err := r.refreshService(context.Background(), svc, baseConfig()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if svc.Status != types.ServiceStatusDown {
		t.Fatalf("expected service marked down, got %+v", svc)
	}
}

func TestRefreshServiceUnderThresholdIncrementsCount(t *testing.T) {
	svc := &types.Service{Name: "zuul-scheduler", NodeName: "zuul-master", Status: types.ServiceStatusRestarting, Restarted: true, RestartedCount: 1}
	store := &fakeStore{services: map[string][]*types.Service{"zuul-master": {svc}}}
	r := &Refresher{Store: store, Services: &fakeStatusChecker{up: map[string]bool{"zuul-scheduler": false}}, Logger: zerolog.Nop()}

	if err := r.refreshService(context.Background(), svc, baseConfig()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if svc.Status != types.ServiceStatusRestarting || svc.RestartedCount != 2 {
		t.Fatalf("expected restart count incremented to 2, got %+v", svc)
	}
}

func TestNeedFixAlarmedStatusSlaveAlwaysClears(t *testing.T) {
	node := &types.Node{Name: "zuul-slave", Role: types.NodeRoleSlave, Alarmed: true}
	r := &Refresher{Store: &fakeStore{}, Logger: zerolog.Nop()}

	clear, err := r.needFixAlarmedStatus(node, baseConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !clear {
		t.Fatal("expected slave alarm to always clear")
	}
}

func TestNeedFixAlarmedStatusMasterBlockedByTimedOutUnnecessaryAlarm(t *testing.T) {
	node := &types.Node{Name: "zuul-master", Role: types.NodeRoleMaster, Alarmed: true}
	store := &fakeStore{services: map[string][]*types.Service{
		"zuul-master": {{Name: "zuul-merger", IsNecessary: false, Alarmed: true, AlarmedAt: time.Now().UTC().Add(-48 * time.Hour)}},
	}}
	r := &Refresher{Store: store, Logger: zerolog.Nop()}

	clear, err := r.needFixAlarmedStatus(node, baseConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if clear {
		t.Fatal("expected alarm to stay set while an unnecessary-service alarm has passed its switch timeout")
	}
}

func TestReportHeartbeatClearsDownStatus(t *testing.T) {
	node := &types.Node{Name: "zuul-master", Role: types.NodeRoleMaster, Status: types.NodeStatusDown}
	store := &fakeStore{nodes: map[string]*types.Node{"zuul-master": node}, services: map[string][]*types.Service{}}
	r := &Refresher{Store: store, Logger: zerolog.Nop()}

	if err := r.reportHeartbeat(node, baseConfig()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if node.Status != types.NodeStatusUp {
		t.Fatalf("expected status cleared to up, got %s", node.Status)
	}
	if node.Heartbeat.IsZero() {
		t.Fatal("expected heartbeat to be stamped")
	}
}

func TestCheckOtherNodeMarksDownWhenUnreachableAndOvertime(t *testing.T) {
	other := &types.Node{Name: "zuul-master", Role: types.NodeRoleMaster, IP: "10.0.0.1", Status: types.NodeStatusUp, Heartbeat: time.Now().UTC().Add(-time.Hour)}
	store := &fakeStore{nodes: map[string]*types.Node{"zuul-master": other}}
	r := &Refresher{Store: store, Pinger: &fakePinger{}, Logger: zerolog.Nop()}

	if err := r.checkOtherNode(context.Background(), other, baseConfig()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if other.Status != types.NodeStatusDown {
		t.Fatalf("expected other node marked down, got %s", other.Status)
	}
}

func TestCheckOtherNodeSkipsMaintaining(t *testing.T) {
	other := &types.Node{Name: "zuul-master", Status: types.NodeStatusMaintaining}
	r := &Refresher{Store: &fakeStore{}, Pinger: &fakePinger{}, Logger: zerolog.Nop()}

	if err := r.checkOtherNode(context.Background(), other, baseConfig()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if other.Status != types.NodeStatusMaintaining {
		t.Fatal("expected maintaining node to be left untouched")
	}
}

func TestRunSkipsEntirelyWhenMaintaining(t *testing.T) {
	local := &types.Node{Name: "zuul-master", Status: types.NodeStatusMaintaining}
	store := &fakeStore{}
	r := &Refresher{Store: store, Pinger: &fakePinger{}, Services: &fakeStatusChecker{}, Logger: zerolog.Nop()}

	if err := r.Run(context.Background(), local, nil, nil, baseConfig()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
