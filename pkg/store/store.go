package store

import "github.com/openlab-infra/ha-healthchecker/pkg/types"

// Store is the coordination-store contract every agent component is
// built against (spec §4.1). Implementations must be fail-closed on
// disconnect: a transient error aborts the caller's tick rather than
// silently returning stale data.
type Store interface {
	// ListNodes returns nodes sorted by name, optionally filtered by
	// role and/or type. Pass "" to skip a filter. includeZk controls
	// whether zookeeper-type nodes are included.
	ListNodes(role types.NodeRole, nodeType types.NodeType, includeZk bool) ([]*types.Node, error)
	GetNode(name string) (*types.Node, error)
	// CreateNode validates I1/I2, then seeds the node's service tree
	// from types.ServiceMapping.
	CreateNode(name string, role types.NodeRole, nodeType types.NodeType, ip string) (*types.Node, error)
	// UpdateNode applies a partial merge, validating I3 on
	// SwitchStatus and rejecting illegal Status transitions. Setting
	// Maintaining=false refreshes Heartbeat.
	UpdateNode(name string, patch types.NodePatch) (*types.Node, error)
	DeleteNode(name string) error

	ListServices(nodeName string, role types.NodeRole, status types.ServiceStatus) ([]*types.Service, error)
	GetService(name, nodeName string) (*types.Service, error)
	// UpdateService applies a partial merge; setting Alarmed=true
	// stamps AlarmedAt=now, setting Restarted=true stamps
	// RestartedAt=now.
	UpdateService(name, nodeName string, patch types.ServicePatch) (*types.Service, error)

	// ListConfiguration seeds types.DefaultConfiguration on first read.
	ListConfiguration() (types.Configuration, error)
	UpdateConfiguration(patch ConfigurationPatch) (types.Configuration, error)

	// SwitchMasterAndSlave is the administrative trigger: it sets
	// SwitchStatus=start on every non-zookeeper node.
	SwitchMasterAndSlave() error

	Close() error
}

// ConfigurationPatch carries only the configuration fields an
// operator call explicitly sets.
type ConfigurationPatch struct {
	AllowSwitch                       *bool
	HeartbeatTimeoutSecond            *int
	UnnecessaryServiceSwitchTimeoutHr *int
	ServiceRestartMaxTimes            *int
	LoggingLevel                      *string
	LoggingPath                       *string
	DNSProviderAPIURL                 *string
	DNSProviderToken                  *string
	DNSProviderAccount                *string
	DNSApex                           *string
	DNSStatusDomain                   *string
	DNSLogDomain                      *string
	DNSMasterPublicIP                 *string
	DNSSlavePublicIP                  *string
	GithubAppName                     *string
	GithubRepoName                    *string
	GithubUserToken                   *string
	GithubUserPassword                *string
}
