package store

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/openlab-infra/ha-healthchecker/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketNodes    = []byte("nodes")
	bucketServices = []byte("services")
	bucketConfig   = []byte("config")

	configKey = []byte("configuration")
)

// BoltStore implements Store against a local BoltDB file, playing the
// role the coordination store's ZooKeeper backend plays in the source
// implementation: the "/ha" root becomes the "nodes"/"services" top
// buckets, and a node's own subtree becomes a nested bucket keyed by
// node name inside "services".
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (creating if needed) a BoltDB file under dataDir
// and ensures the top-level buckets exist.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "ha-healthchecker.db")

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketNodes, bucketServices, bucketConfig} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the underlying database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// --- Nodes ---

func (s *BoltStore) ListNodes(role types.NodeRole, nodeType types.NodeType, includeZk bool) ([]*types.Node, error) {
	var nodes []*types.Node
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketNodes)
		return b.ForEach(func(_, v []byte) error {
			var n types.Node
			if err := json.Unmarshal(v, &n); err != nil {
				return err
			}
			if !includeZk && n.Type == types.NodeTypeZookeeper {
				return nil
			}
			if role != "" && n.Role != role {
				return nil
			}
			if nodeType != "" && n.Type != nodeType {
				return nil
			}
			nodes = append(nodes, &n)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Name < nodes[j].Name })
	return nodes, nil
}

func (s *BoltStore) GetNode(name string) (*types.Node, error) {
	var n types.Node
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketNodes).Get([]byte(name))
		if data == nil {
			return &ErrNotFound{Kind: "node", Name: name}
		}
		return json.Unmarshal(data, &n)
	})
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (s *BoltStore) CreateNode(name string, role types.NodeRole, nodeType types.NodeType, ip string) (*types.Node, error) {
	if nodeType == types.NodeTypeZookeeper && role != types.NodeRoleZookeeper {
		return nil, &ValidationError{Field: "role", Reason: "a zookeeper-type node must be zookeeper-role (I2)"}
	}
	if role == types.NodeRoleZookeeper && nodeType != types.NodeTypeZookeeper {
		return nil, &ValidationError{Field: "type", Reason: "a zookeeper-role node must be zookeeper-type (I2)"}
	}

	now := time.Now().UTC()
	node := &types.Node{
		Name:         name,
		Type:         nodeType,
		Role:         role,
		IP:           ip,
		Status:       types.NodeStatusInitializing,
		SwitchStatus: types.SwitchStatusNull,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		nb := tx.Bucket(bucketNodes)

		existing, err := existingNodesLocked(nb)
		if err != nil {
			return err
		}
		for _, e := range existing {
			if e.Name == name {
				return &ValidationError{Field: "name", Reason: "node already exists: " + name}
			}
			if e.Role == role && e.Type == nodeType {
				return &ValidationError{Field: "role,type", Reason: "at most one node per (role, type) pair (I1)"}
			}
		}

		data, err := json.Marshal(node)
		if err != nil {
			return err
		}
		if err := nb.Put([]byte(name), data); err != nil {
			return err
		}

		sb, err := tx.Bucket(bucketServices).CreateBucketIfNotExists([]byte(name))
		if err != nil {
			return err
		}
		for _, def := range types.ServiceMapping[nodeType][role] {
			svc := &types.Service{
				Name:        def.Name,
				NodeName:    name,
				IsNecessary: def.IsNecessary,
				Status:      types.ServiceStatusInitializing,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			data, err := json.Marshal(svc)
			if err != nil {
				return err
			}
			if err := sb.Put([]byte(def.Name), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return node, nil
}

func existingNodesLocked(nb *bolt.Bucket) ([]*types.Node, error) {
	var nodes []*types.Node
	err := nb.ForEach(func(_, v []byte) error {
		var n types.Node
		if err := json.Unmarshal(v, &n); err != nil {
			return err
		}
		nodes = append(nodes, &n)
		return nil
	})
	return nodes, err
}

// validSwitchTransition enforces I3: null -> start -> end -> null.
func validSwitchTransition(from, to types.SwitchStatus) bool {
	switch from {
	case types.SwitchStatusNull:
		return to == types.SwitchStatusStart
	case types.SwitchStatusStart:
		return to == types.SwitchStatusEnd
	case types.SwitchStatusEnd:
		return to == types.SwitchStatusNull
	default:
		// Malformed stored value: treat as null (design notes, §9).
		return to == types.SwitchStatusStart
	}
}

func (s *BoltStore) UpdateNode(name string, patch types.NodePatch) (*types.Node, error) {
	var updated types.Node
	err := s.db.Update(func(tx *bolt.Tx) error {
		nb := tx.Bucket(bucketNodes)
		data := nb.Get([]byte(name))
		if data == nil {
			return &ErrNotFound{Kind: "node", Name: name}
		}
		var n types.Node
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}

		if patch.Maintaining != nil {
			if *patch.Maintaining {
				if n.Status != types.NodeStatusUp {
					return &ValidationError{Field: "status", Reason: "maintaining may only be entered from up"}
				}
				n.Status = types.NodeStatusMaintaining
			} else {
				if n.Status != types.NodeStatusMaintaining {
					return &ValidationError{Field: "status", Reason: "un-maintain only valid while maintaining"}
				}
				n.Status = types.NodeStatusUp
				n.Heartbeat = time.Now().UTC()
			}
		}

		if patch.Status != nil {
			if n.Status == types.NodeStatusMaintaining || *patch.Status == types.NodeStatusMaintaining {
				return &ValidationError{Field: "status", Reason: "maintaining transitions must go through Maintaining, not Status"}
			}
			switch *patch.Status {
			case types.NodeStatusInitializing, types.NodeStatusUp, types.NodeStatusDown:
				n.Status = *patch.Status
			default:
				return &ValidationError{Field: "status", Reason: "unknown status: " + string(*patch.Status)}
			}
		}

		if patch.SwitchStatus != nil {
			if !validSwitchTransition(n.SwitchStatus, *patch.SwitchStatus) {
				return &ValidationError{Field: "switch_status", Reason: fmt.Sprintf("illegal transition %q -> %q (I3)", n.SwitchStatus, *patch.SwitchStatus)}
			}
			n.SwitchStatus = *patch.SwitchStatus
		}

		if patch.Role != nil {
			n.Role = *patch.Role
		}
		if patch.IP != nil {
			n.IP = *patch.IP
		}
		if patch.Heartbeat != nil {
			n.Heartbeat = *patch.Heartbeat
		}
		if patch.Alarmed != nil {
			n.Alarmed = *patch.Alarmed
		}

		n.UpdatedAt = time.Now().UTC()
		updated = n

		out, err := json.Marshal(n)
		if err != nil {
			return err
		}
		return nb.Put([]byte(name), out)
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *BoltStore) DeleteNode(name string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketNodes).Delete([]byte(name)); err != nil {
			return err
		}
		return tx.Bucket(bucketServices).DeleteBucket([]byte(name))
	})
}

// --- Services ---

func (s *BoltStore) ListServices(nodeName string, role types.NodeRole, status types.ServiceStatus) ([]*types.Service, error) {
	var services []*types.Service
	err := s.db.View(func(tx *bolt.Tx) error {
		nodeNames, err := s.serviceBucketNamesLocked(tx, nodeName, role)
		if err != nil {
			return err
		}
		sb := tx.Bucket(bucketServices)
		for _, name := range nodeNames {
			b := sb.Bucket([]byte(name))
			if b == nil {
				continue
			}
			if err := b.ForEach(func(_, v []byte) error {
				var svc types.Service
				if err := json.Unmarshal(v, &svc); err != nil {
					return err
				}
				if status != "" && svc.Status != status {
					return nil
				}
				services = append(services, &svc)
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(services, func(i, j int) bool {
		if services[i].NodeName != services[j].NodeName {
			return services[i].NodeName < services[j].NodeName
		}
		return services[i].Name < services[j].Name
	})
	return services, nil
}

func (s *BoltStore) serviceBucketNamesLocked(tx *bolt.Tx, nodeName string, role types.NodeRole) ([]string, error) {
	if nodeName != "" {
		return []string{nodeName}, nil
	}
	if role == "" {
		var names []string
		err := tx.Bucket(bucketServices).ForEach(func(k, v []byte) error {
			if v == nil { // nested bucket
				names = append(names, string(k))
			}
			return nil
		})
		return names, err
	}
	var names []string
	err := tx.Bucket(bucketNodes).ForEach(func(_, v []byte) error {
		var n types.Node
		if err := json.Unmarshal(v, &n); err != nil {
			return err
		}
		if n.Role == role {
			names = append(names, n.Name)
		}
		return nil
	})
	return names, err
}

func (s *BoltStore) GetService(name, nodeName string) (*types.Service, error) {
	var svc types.Service
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketServices).Bucket([]byte(nodeName))
		if b == nil {
			return &ErrNotFound{Kind: "service", Name: nodeName + "/" + name}
		}
		data := b.Get([]byte(name))
		if data == nil {
			return &ErrNotFound{Kind: "service", Name: nodeName + "/" + name}
		}
		return json.Unmarshal(data, &svc)
	})
	if err != nil {
		return nil, err
	}
	return &svc, nil
}

func (s *BoltStore) UpdateService(name, nodeName string, patch types.ServicePatch) (*types.Service, error) {
	var updated types.Service
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketServices).Bucket([]byte(nodeName))
		if b == nil {
			return &ErrNotFound{Kind: "service", Name: nodeName + "/" + name}
		}
		data := b.Get([]byte(name))
		if data == nil {
			return &ErrNotFound{Kind: "service", Name: nodeName + "/" + name}
		}
		var svc types.Service
		if err := json.Unmarshal(data, &svc); err != nil {
			return err
		}

		now := time.Now().UTC()
		if patch.Status != nil {
			switch *patch.Status {
			case types.ServiceStatusInitializing, types.ServiceStatusUp, types.ServiceStatusDown,
				types.ServiceStatusRestarting, types.ServiceStatusError:
				svc.Status = *patch.Status
			default:
				return &ValidationError{Field: "status", Reason: "unknown service status: " + string(*patch.Status)}
			}
		}
		if patch.Restarted != nil {
			svc.Restarted = *patch.Restarted
			if *patch.Restarted {
				svc.RestartedAt = now
			}
		}
		if patch.RestartedCount != nil {
			svc.RestartedCount = *patch.RestartedCount
		}
		if patch.Alarmed != nil {
			svc.Alarmed = *patch.Alarmed
			if *patch.Alarmed {
				svc.AlarmedAt = now
			}
		}
		svc.UpdatedAt = now
		updated = svc

		out, err := json.Marshal(svc)
		if err != nil {
			return err
		}
		return b.Put([]byte(name), out)
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// --- Configuration ---

func (s *BoltStore) ListConfiguration() (types.Configuration, error) {
	var cfg types.Configuration
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketConfig)
		data := b.Get(configKey)
		if data == nil {
			cfg = types.DefaultConfiguration()
			out, err := json.Marshal(cfg)
			if err != nil {
				return err
			}
			return b.Put(configKey, out)
		}
		return json.Unmarshal(data, &cfg)
	})
	return cfg, err
}

func (s *BoltStore) UpdateConfiguration(patch ConfigurationPatch) (types.Configuration, error) {
	var cfg types.Configuration
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketConfig)
		data := b.Get(configKey)
		if data == nil {
			cfg = types.DefaultConfiguration()
		} else if err := json.Unmarshal(data, &cfg); err != nil {
			return err
		}

		applyConfigPatch(&cfg, patch)

		out, err := json.Marshal(cfg)
		if err != nil {
			return err
		}
		return b.Put(configKey, out)
	})
	return cfg, err
}

func applyConfigPatch(cfg *types.Configuration, p ConfigurationPatch) {
	if p.AllowSwitch != nil {
		cfg.AllowSwitch = *p.AllowSwitch
	}
	if p.HeartbeatTimeoutSecond != nil {
		cfg.HeartbeatTimeoutSecond = *p.HeartbeatTimeoutSecond
	}
	if p.UnnecessaryServiceSwitchTimeoutHr != nil {
		cfg.UnnecessaryServiceSwitchTimeoutHr = *p.UnnecessaryServiceSwitchTimeoutHr
	}
	if p.ServiceRestartMaxTimes != nil {
		cfg.ServiceRestartMaxTimes = *p.ServiceRestartMaxTimes
	}
	if p.LoggingLevel != nil {
		cfg.LoggingLevel = *p.LoggingLevel
	}
	if p.LoggingPath != nil {
		cfg.LoggingPath = *p.LoggingPath
	}
	if p.DNSProviderAPIURL != nil {
		cfg.DNSProviderAPIURL = *p.DNSProviderAPIURL
	}
	if p.DNSProviderToken != nil {
		cfg.DNSProviderToken = *p.DNSProviderToken
	}
	if p.DNSProviderAccount != nil {
		cfg.DNSProviderAccount = *p.DNSProviderAccount
	}
	if p.DNSApex != nil {
		cfg.DNSApex = *p.DNSApex
	}
	if p.DNSStatusDomain != nil {
		cfg.DNSStatusDomain = *p.DNSStatusDomain
	}
	if p.DNSLogDomain != nil {
		cfg.DNSLogDomain = *p.DNSLogDomain
	}
	if p.DNSMasterPublicIP != nil {
		cfg.DNSMasterPublicIP = *p.DNSMasterPublicIP
	}
	if p.DNSSlavePublicIP != nil {
		cfg.DNSSlavePublicIP = *p.DNSSlavePublicIP
	}
	if p.GithubAppName != nil {
		cfg.GithubAppName = *p.GithubAppName
	}
	if p.GithubRepoName != nil {
		cfg.GithubRepoName = *p.GithubRepoName
	}
	if p.GithubUserToken != nil {
		cfg.GithubUserToken = *p.GithubUserToken
	}
	if p.GithubUserPassword != nil {
		cfg.GithubUserPassword = *p.GithubUserPassword
	}
}

// --- Admin ---

func (s *BoltStore) SwitchMasterAndSlave() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		nb := tx.Bucket(bucketNodes)
		nodes, err := existingNodesLocked(nb)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		for _, n := range nodes {
			if n.Type == types.NodeTypeZookeeper {
				continue
			}
			n.SwitchStatus = types.SwitchStatusStart
			n.UpdatedAt = now
			data, err := json.Marshal(n)
			if err != nil {
				return err
			}
			if err := nb.Put([]byte(n.Name), data); err != nil {
				return err
			}
		}
		return nil
	})
}
