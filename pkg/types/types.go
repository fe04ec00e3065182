package types

import "time"

// NodeRole is a node's current position in the failover handshake.
type NodeRole string

const (
	NodeRoleMaster     NodeRole = "master"
	NodeRoleSlave      NodeRole = "slave"
	NodeRoleZookeeper  NodeRole = "zookeeper"
)

// NodeType identifies which CI subsystem a node belongs to.
type NodeType string

const (
	NodeTypeZuul      NodeType = "zuul"
	NodeTypeNodepool  NodeType = "nodepool"
	NodeTypeZookeeper NodeType = "zookeeper"
)

// NodeStatus is the observed liveness of a node.
type NodeStatus string

const (
	NodeStatusInitializing NodeStatus = "initializing"
	NodeStatusUp           NodeStatus = "up"
	NodeStatusDown         NodeStatus = "down"
	NodeStatusMaintaining  NodeStatus = "maintaining"
)

// SwitchStatus is a node's position in the failover handshake (I3).
type SwitchStatus string

const (
	SwitchStatusNull  SwitchStatus = ""
	SwitchStatusStart SwitchStatus = "start"
	SwitchStatusEnd   SwitchStatus = "end"
)

// Node is one host of the two-site control plane (spec §3).
type Node struct {
	Name         string       `json:"name"`
	Type         NodeType     `json:"type"`
	Role         NodeRole     `json:"role"`
	IP           string       `json:"ip"`
	Heartbeat    time.Time    `json:"heartbeat"`
	Status       NodeStatus   `json:"status"`
	Alarmed      bool         `json:"alarmed"`
	SwitchStatus SwitchStatus `json:"switch_status"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// NodePatch carries only the fields an update explicitly sets, replacing
// the dynamic-attribute-merge pattern of the source implementation with
// an explicit partial-update record (see the design notes on
// `obj.update(kwargs)`).
type NodePatch struct {
	Role         *NodeRole
	IP           *string
	Heartbeat    *time.Time
	Status       *NodeStatus
	Alarmed      *bool
	SwitchStatus *SwitchStatus
	Maintaining  *bool // true -> enter maintaining, false -> leave it
}

// ServiceStatus is the reconciled state of one systemd unit (spec §3, §4.2).
type ServiceStatus string

const (
	ServiceStatusInitializing ServiceStatus = "initializing"
	ServiceStatusUp           ServiceStatus = "up"
	ServiceStatusDown         ServiceStatus = "down"
	ServiceStatusRestarting   ServiceStatus = "restarting"
	ServiceStatusError        ServiceStatus = "error"
)

// Service is the reconciled state of one systemd-managed unit on one node.
type Service struct {
	Name           string        `json:"name"`
	NodeName       string        `json:"node_name"`
	IsNecessary    bool          `json:"is_necessary"`
	Status         ServiceStatus `json:"status"`
	Restarted      bool          `json:"restarted"`
	RestartedAt    time.Time     `json:"restarted_at"`
	RestartedCount int           `json:"restarted_count"`
	Alarmed        bool          `json:"alarmed"`
	AlarmedAt      time.Time     `json:"alarmed_at"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// ServicePatch carries only the fields an update explicitly sets.
type ServicePatch struct {
	Status         *ServiceStatus
	Restarted      *bool
	RestartedCount *int
	Alarmed        *bool
}

// ServiceDef is one entry of the fixed node-type/role service mapping
// table (spec §3).
type ServiceDef struct {
	Name        string
	IsNecessary bool
}

// MixedServices lists services that appear under more than one
// node-type mapping (e.g. mysql is unnecessary under zuul.slave and
// zookeeper is unnecessary under both nodepool roles) — carried from
// the original service-mapping table as a documented fact, not new
// behavior.
var MixedServices = []string{"mysql", "zookeeper"}

// ServiceMapping is the fixed table of which services are necessary or
// unnecessary for each (type, role) pair (spec §3). It is seeded onto
// every node at CreateNode time and never mutated ad-hoc afterward.
var ServiceMapping = map[NodeType]map[NodeRole][]ServiceDef{
	NodeTypeZuul: {
		NodeRoleMaster: {
			{Name: "zuul-scheduler", IsNecessary: true},
			{Name: "zuul-executor", IsNecessary: true},
			{Name: "zuul-web", IsNecessary: true},
			{Name: "gearman", IsNecessary: true},
			{Name: "mysql", IsNecessary: true},
			{Name: "apache", IsNecessary: true},
			{Name: "zuul-merger", IsNecessary: false},
			{Name: "zuul-fingergw", IsNecessary: false},
			{Name: "zuul-timer-tasks", IsNecessary: false},
		},
		NodeRoleSlave: {
			{Name: "mysql", IsNecessary: false},
			{Name: "rsync", IsNecessary: false},
		},
	},
	NodeTypeNodepool: {
		NodeRoleMaster: {
			{Name: "nodepool-launcher", IsNecessary: true},
			{Name: "nodepool-timer-tasks", IsNecessary: false},
			{Name: "nodepool-builder", IsNecessary: false},
			{Name: "zookeeper", IsNecessary: false},
		},
		NodeRoleSlave: {
			{Name: "zookeeper", IsNecessary: false},
			{Name: "rsync", IsNecessary: false},
		},
	},
	NodeTypeZookeeper: {
		NodeRoleZookeeper: {
			{Name: "zookeeper", IsNecessary: false},
		},
	},
}

// TimerPseudoServices map onto the cron unit for status/restart
// purposes and are excluded from stop/start during failover (spec §6.5).
var TimerPseudoServices = map[string]bool{
	"zuul-timer-tasks":     true,
	"nodepool-timer-tasks": true,
}

// Configuration is the single shared record refreshed every tick
// (spec §3, §6.7). Secret fields are stored base64-encoded in the
// coordination store and decoded on load by pkg/config.
type Configuration struct {
	AllowSwitch                       bool   `json:"allow_switch"`
	HeartbeatTimeoutSecond            int    `json:"heartbeat_timeout_second"`
	UnnecessaryServiceSwitchTimeoutHr int    `json:"unnecessary_service_switch_timeout_hour"`
	ServiceRestartMaxTimes            int    `json:"service_restart_max_times"`
	LoggingLevel                      string `json:"logging_level"`
	LoggingPath                       string `json:"logging_path"`

	DNSProviderAPIURL   string `json:"dns_provider_api_url"`
	DNSProviderToken    string `json:"dns_provider_token"`
	DNSProviderAccount  string `json:"dns_provider_account"`
	DNSApex             string `json:"dns_apex"`
	DNSStatusDomain     string `json:"dns_status_domain"`
	DNSLogDomain        string `json:"dns_log_domain"`
	DNSMasterPublicIP   string `json:"dns_master_public_ip"`
	DNSSlavePublicIP    string `json:"dns_slave_public_ip"`

	GithubAppName          string `json:"github_app_name"`
	GithubRepoName         string `json:"github_repo_name"`
	GithubUserToken        string `json:"github_user_token"`
	GithubUserPassword     string `json:"github_user_password"`
}

// Base64EncodedOptions lists the configuration keys stored
// base64-encoded in the coordination store (spec §3), mirroring
// ClusterConfig.BASE64_ENCODED_OPTIONS in the source implementation.
var Base64EncodedOptions = []string{
	"github_user_password",
	"dns_provider_token",
	"github_user_token",
}

// DefaultConfiguration seeds the values ListConfiguration returns on
// first read, before any operator override (spec §4.1).
func DefaultConfiguration() Configuration {
	return Configuration{
		AllowSwitch:                       true,
		HeartbeatTimeoutSecond:            300,
		UnnecessaryServiceSwitchTimeoutHr: 24,
		ServiceRestartMaxTimes:            3,
		LoggingLevel:                      "info",
		LoggingPath:                       "/var/log/ha-healthchecker/agent.log",
	}
}
