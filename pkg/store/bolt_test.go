package store

import (
	"testing"

	"github.com/openlab-infra/ha-healthchecker/pkg/types"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *BoltStore {
	t.Helper()
	s, err := NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateNodeSeedsServiceMapping(t *testing.T) {
	s := newTestStore(t)

	node, err := s.CreateNode("sjc-openlab-zuul-master", types.NodeRoleMaster, types.NodeTypeZuul, "10.0.0.1")
	require.NoError(t, err)
	require.Equal(t, types.NodeStatusInitializing, node.Status)
	require.Equal(t, types.SwitchStatusNull, node.SwitchStatus)

	services, err := s.ListServices(node.Name, "", "")
	require.NoError(t, err)
	require.Len(t, services, len(types.ServiceMapping[types.NodeTypeZuul][types.NodeRoleMaster]))

	var foundNecessary, foundUnnecessary bool
	for _, svc := range services {
		if svc.Name == "zuul-scheduler" {
			foundNecessary = svc.IsNecessary
		}
		if svc.Name == "zuul-merger" {
			foundUnnecessary = !svc.IsNecessary
		}
	}
	require.True(t, foundNecessary)
	require.True(t, foundUnnecessary)
}

func TestCreateNodeRejectsDuplicateRoleType(t *testing.T) {
	s := newTestStore(t)

	_, err := s.CreateNode("sjc-openlab-zuul-master", types.NodeRoleMaster, types.NodeTypeZuul, "10.0.0.1")
	require.NoError(t, err)

	_, err = s.CreateNode("bak-openlab-zuul-master", types.NodeRoleMaster, types.NodeTypeZuul, "10.0.0.2")
	require.Error(t, err)
	require.IsType(t, &ValidationError{}, err)
}

func TestCreateNodeEnforcesZookeeperPairing(t *testing.T) {
	s := newTestStore(t)

	_, err := s.CreateNode("sjc-openlab-zookeeper", types.NodeRoleMaster, types.NodeTypeZookeeper, "10.0.0.3")
	require.Error(t, err)

	_, err = s.CreateNode("sjc-openlab-zk", types.NodeRoleZookeeper, types.NodeTypeZuul, "10.0.0.3")
	require.Error(t, err)

	_, err = s.CreateNode("sjc-openlab-zk", types.NodeRoleZookeeper, types.NodeTypeZookeeper, "10.0.0.3")
	require.NoError(t, err)
}

func TestUpdateNodeSwitchStatusTransitions(t *testing.T) {
	s := newTestStore(t)
	_, err := s.CreateNode("sjc-openlab-zuul-master", types.NodeRoleMaster, types.NodeTypeZuul, "10.0.0.1")
	require.NoError(t, err)

	start := types.SwitchStatusStart
	n, err := s.UpdateNode("sjc-openlab-zuul-master", types.NodePatch{SwitchStatus: &start})
	require.NoError(t, err)
	require.Equal(t, types.SwitchStatusStart, n.SwitchStatus)

	// Illegal: start -> start
	_, err = s.UpdateNode("sjc-openlab-zuul-master", types.NodePatch{SwitchStatus: &start})
	require.Error(t, err)

	end := types.SwitchStatusEnd
	n, err = s.UpdateNode("sjc-openlab-zuul-master", types.NodePatch{SwitchStatus: &end})
	require.NoError(t, err)
	require.Equal(t, types.SwitchStatusEnd, n.SwitchStatus)

	null := types.SwitchStatusNull
	n, err = s.UpdateNode("sjc-openlab-zuul-master", types.NodePatch{SwitchStatus: &null})
	require.NoError(t, err)
	require.Equal(t, types.SwitchStatusNull, n.SwitchStatus)
}

func TestUpdateNodeMaintainingLifecycle(t *testing.T) {
	s := newTestStore(t)
	_, err := s.CreateNode("sjc-openlab-zuul-master", types.NodeRoleMaster, types.NodeTypeZuul, "10.0.0.1")
	require.NoError(t, err)

	up := types.NodeStatusUp
	_, err = s.UpdateNode("sjc-openlab-zuul-master", types.NodePatch{Status: &up})
	require.NoError(t, err)

	maintain := true
	n, err := s.UpdateNode("sjc-openlab-zuul-master", types.NodePatch{Maintaining: &maintain})
	require.NoError(t, err)
	require.Equal(t, types.NodeStatusMaintaining, n.Status)

	// Cannot enter maintaining twice in a row.
	_, err = s.UpdateNode("sjc-openlab-zuul-master", types.NodePatch{Maintaining: &maintain})
	require.Error(t, err)

	unmaintain := false
	n, err = s.UpdateNode("sjc-openlab-zuul-master", types.NodePatch{Maintaining: &unmaintain})
	require.NoError(t, err)
	require.Equal(t, types.NodeStatusUp, n.Status)
	require.False(t, n.Heartbeat.IsZero())
}

func TestUpdateServiceStampsDebounceTimestamps(t *testing.T) {
	s := newTestStore(t)
	_, err := s.CreateNode("sjc-openlab-zuul-master", types.NodeRoleMaster, types.NodeTypeZuul, "10.0.0.1")
	require.NoError(t, err)

	alarmed := true
	svc, err := s.UpdateService("zuul-web", "sjc-openlab-zuul-master", types.ServicePatch{Alarmed: &alarmed})
	require.NoError(t, err)
	require.True(t, svc.Alarmed)
	require.False(t, svc.AlarmedAt.IsZero())

	restarted := true
	svc, err = s.UpdateService("zuul-web", "sjc-openlab-zuul-master", types.ServicePatch{Restarted: &restarted})
	require.NoError(t, err)
	require.True(t, svc.Restarted)
	require.False(t, svc.RestartedAt.IsZero())
}

func TestListConfigurationSeedsDefaults(t *testing.T) {
	s := newTestStore(t)

	cfg, err := s.ListConfiguration()
	require.NoError(t, err)
	require.Equal(t, types.DefaultConfiguration().ServiceRestartMaxTimes, cfg.ServiceRestartMaxTimes)
	require.True(t, cfg.AllowSwitch)
}

func TestUpdateConfigurationMergesOnlySetFields(t *testing.T) {
	s := newTestStore(t)
	_, err := s.ListConfiguration()
	require.NoError(t, err)

	falseVal := false
	cfg, err := s.UpdateConfiguration(ConfigurationPatch{AllowSwitch: &falseVal})
	require.NoError(t, err)
	require.False(t, cfg.AllowSwitch)
	require.Equal(t, types.DefaultConfiguration().HeartbeatTimeoutSecond, cfg.HeartbeatTimeoutSecond)
}

func TestSwitchMasterAndSlaveSkipsZookeeper(t *testing.T) {
	s := newTestStore(t)
	_, err := s.CreateNode("sjc-openlab-zuul-master", types.NodeRoleMaster, types.NodeTypeZuul, "10.0.0.1")
	require.NoError(t, err)
	_, err = s.CreateNode("bak-openlab-zuul-slave", types.NodeRoleSlave, types.NodeTypeZuul, "10.0.0.2")
	require.NoError(t, err)
	_, err = s.CreateNode("sjc-openlab-zk", types.NodeRoleZookeeper, types.NodeTypeZookeeper, "10.0.0.3")
	require.NoError(t, err)

	require.NoError(t, s.SwitchMasterAndSlave())

	nodes, err := s.ListNodes("", "", true)
	require.NoError(t, err)
	for _, n := range nodes {
		if n.Type == types.NodeTypeZookeeper {
			require.Equal(t, types.SwitchStatusNull, n.SwitchStatus)
		} else {
			require.Equal(t, types.SwitchStatusStart, n.SwitchStatus)
		}
	}
}

func TestListNodesExcludesZookeeperByDefault(t *testing.T) {
	s := newTestStore(t)
	_, err := s.CreateNode("sjc-openlab-zuul-master", types.NodeRoleMaster, types.NodeTypeZuul, "10.0.0.1")
	require.NoError(t, err)
	_, err = s.CreateNode("sjc-openlab-zk", types.NodeRoleZookeeper, types.NodeTypeZookeeper, "10.0.0.3")
	require.NoError(t, err)

	nodes, err := s.ListNodes("", "", false)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	require.Equal(t, types.NodeTypeZuul, nodes[0].Type)
}
