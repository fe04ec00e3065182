package fixer

import (
	"context"
	"testing"
	"time"

	"github.com/openlab-infra/ha-healthchecker/pkg/issues"
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
		if patch.Alarmed != nil {
			svc.Alarmed = *patch.Alarmed
		}
		return svc, nil
	}
	return nil, nil
}

func (f *fakeStore) UpdateNode(name string, patch types.NodePatch) (*types.Node, error) {
	n := f.nodes[name]
	if patch.Alarmed != nil {
		n.Alarmed = *patch.Alarmed
	}
	return n, nil
}

type fakePinger struct{ reachable map[string]bool }

func (f *fakePinger) Ping(ctx context.Context, ip string) bool { return f.reachable[ip] }

type fakeRestarter struct {
	restarted []string
}

func (f *fakeRestarter) Restart(ctx context.Context, service string) error {
	f.restarted = append(f.restarted, service)
	return nil
}

type fakeIssues struct{ filed []issues.Report }

func (f *fakeIssues) CreateIssue(ctx context.Context, r issues.Report) error {
	f.filed = append(f.filed, r)
	return nil
}

func baseConfig() types.Configuration {
	cfg := types.DefaultConfiguration()
	cfg.HeartbeatTimeoutSecond = 300
	cfg.UnnecessaryServiceSwitchTimeoutHr = 24
	return cfg
}

func TestFixServiceRestartsWhenRestarting(t *testing.T) {
	svc := &types.Service{Name: "zuul-scheduler", NodeName: "zuul-master", Status: types.ServiceStatusRestarting}
	restarter := &fakeRestarter{}
	f := &Fixer{Services: restarter, Logger: zerolog.Nop()}

	local := &types.Node{Name: "zuul-master"}
	if err := f.fixService(context.Background(), local, svc, baseConfig()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(restarter.restarted) != 1 || restarter.restarted[0] != "zuul-scheduler" {
		t.Fatalf("expected zuul-scheduler restarted, got %v", restarter.restarted)
	}
}

func TestFixServiceFilesIssueAndAlarmsOnFirstDown(t *testing.T) {
	svc := &types.Service{Name: "zuul-scheduler", NodeName: "zuul-master", Status: types.ServiceStatusDown, IsNecessary: true}
	store := &fakeStore{services: map[string][]*types.Service{"zuul-master": {svc}}}
	iss := &fakeIssues{}
	f := &Fixer{Store: store, Issues: iss, Logger: zerolog.Nop()}
	local := &types.Node{Name: "zuul-master"}

	if err := f.fixService(context.Background(), local, svc, baseConfig()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(iss.filed) != 1 || iss.filed[0].Kind != issues.KindServiceDown {
		t.Fatalf("expected one service_down issue, got %+v", iss.filed)
	}
	if !svc.Alarmed {
		t.Fatal("expected service to be marked alarmed")
	}
}

func TestFixServiceNoDuplicateIssueWhileAlreadyAlarmedAndNotTimedOut(t *testing.T) {
	svc := &types.Service{Name: "zuul-merger", NodeName: "zuul-master", Status: types.ServiceStatusDown, IsNecessary: false, Alarmed: true, AlarmedAt: time.Now().UTC()}
	store := &fakeStore{services: map[string][]*types.Service{"zuul-master": {svc}}}
	iss := &fakeIssues{}
	f := &Fixer{Store: store, Issues: iss, Logger: zerolog.Nop()}
	local := &types.Node{Name: "zuul-master"}

	if err := f.fixService(context.Background(), local, svc, baseConfig()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(iss.filed) != 0 {
		t.Fatalf("expected no issue while alarm has not timed out, got %+v", iss.filed)
	}
}

func TestFixServiceFilesTimeoutIssueForUnnecessaryServiceAfterTimeout(t *testing.T) {
	svc := &types.Service{Name: "zuul-merger", NodeName: "zuul-master", Status: types.ServiceStatusDown, IsNecessary: false, Alarmed: true, AlarmedAt: time.Now().UTC().Add(-48 * time.Hour)}
	store := &fakeStore{services: map[string][]*types.Service{"zuul-master": {svc}}}
	iss := &fakeIssues{}
	f := &Fixer{Store: store, Issues: iss, Logger: zerolog.Nop()}
	local := &types.Node{Name: "zuul-master"}

	if err := f.fixService(context.Background(), local, svc, baseConfig()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(iss.filed) != 1 || iss.filed[0].Kind != issues.KindServiceTimeout {
		t.Fatalf("expected one service_timeout issue, got %+v", iss.filed)
	}
}

func TestCheckOtherNodeFilesHealthcheckerErrorWhenReachableButOvertime(t *testing.T) {
	other := &types.Node{Name: "zuul-slave", IP: "10.0.0.2", Heartbeat: time.Now().UTC().Add(-time.Hour)}
	store := &fakeStore{nodes: map[string]*types.Node{"zuul-slave": other}}
	iss := &fakeIssues{}
	f := &Fixer{Store: store, Pinger: &fakePinger{reachable: map[string]bool{"10.0.0.2": true}}, Issues: iss, Logger: zerolog.Nop()}
	local := &types.Node{Name: "zuul-master"}

	if err := f.checkOtherNode(context.Background(), local, other, baseConfig()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(iss.filed) != 1 || iss.filed[0].Kind != issues.KindHealthcheckerError {
		t.Fatalf("expected one healthchecker_error issue, got %+v", iss.filed)
	}
	if !other.Alarmed {
		t.Fatal("expected other node to be marked alarmed")
	}
}

func TestCheckOtherNodeFilesOtherNodeDownWhenUnreachableAndDown(t *testing.T) {
	other := &types.Node{Name: "zuul-slave", IP: "10.0.0.2", Status: types.NodeStatusDown, Heartbeat: time.Now().UTC().Add(-time.Hour)}
	store := &fakeStore{nodes: map[string]*types.Node{"zuul-slave": other}}
	iss := &fakeIssues{}
	f := &Fixer{Store: store, Pinger: &fakePinger{}, Issues: iss, Logger: zerolog.Nop()}
	local := &types.Node{Name: "zuul-master"}

	if err := f.checkOtherNode(context.Background(), local, other, baseConfig()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(iss.filed) != 1 || iss.filed[0].Kind != issues.KindOtherNodeDown {
		t.Fatalf("expected one other_node_down issue, got %+v", iss.filed)
	}
}

func TestCheckOtherNodeSkipsMaintaining(t *testing.T) {
	other := &types.Node{Name: "zuul-slave", Status: types.NodeStatusMaintaining}
	iss := &fakeIssues{}
	f := &Fixer{Pinger: &fakePinger{}, Issues: iss, Logger: zerolog.Nop()}
	local := &types.Node{Name: "zuul-master"}

	if err := f.checkOtherNode(context.Background(), local, other, baseConfig()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(iss.filed) != 0 {
		t.Fatal("expected no issue filed for a maintaining node")
	}
}

func TestRunSkipsEntirelyWhenMaintaining(t *testing.T) {
	local := &types.Node{Name: "zuul-master", Status: types.NodeStatusMaintaining}
	f := &Fixer{Store: &fakeStore{}, Pinger: &fakePinger{}, Logger: zerolog.Nop()}

	if err := f.Run(context.Background(), local, nil, nil, baseConfig()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
