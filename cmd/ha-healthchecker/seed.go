package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/openlab-infra/ha-healthchecker/pkg/store"
	"github.com/openlab-infra/ha-healthchecker/pkg/types"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the coordination store from a deploy-time manifest",
	Long: `Seed reads a YAML document made of one or more "Node" and
"Configuration" resources and idempotently creates/updates them,
replacing the source implementation's templated Ansible deploy step
with a single local command run once per site at install time.

Example:
  apiVersion: ha-healthchecker/v1
  kind: Node
  metadata:
    name: zuul-master
  spec:
    type: zuul
    role: master
    ip: 10.0.0.1
  ---
  apiVersion: ha-healthchecker/v1
  kind: Configuration
  metadata:
    name: cluster
  spec:
    allow-switch: true
    heartbeat-timeout-second: 300`,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().StringP("file", "f", "", "YAML manifest to apply (required)")
	seedCmd.Flags().StringP("config", "c", "/etc/ha-healthchecker/agent.ini", "Path to the startup config file")
	_ = seedCmd.MarkFlagRequired("file")
}

// resource mirrors the generic apiVersion/kind/metadata/spec envelope
// used to describe deploy-time objects, with an untyped spec map so a
// single decoder handles every kind.
type resource struct {
	APIVersion string                 `yaml:"apiVersion"`
	Kind       string                 `yaml:"kind"`
	Metadata   resourceMetadata       `yaml:"metadata"`
	Spec       map[string]interface{} `yaml:"spec"`
}

type resourceMetadata struct {
	Name string `yaml:"name"`
}

func runSeed(cmd *cobra.Command, args []string) error {
	filename, _ := cmd.Flags().GetString("file")

	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read manifest: %w", err)
	}

	db, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	for {
		var r resource
		if err := dec.Decode(&r); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return fmt.Errorf("failed to parse manifest: %w", err)
		}
		if r.Kind == "" {
			continue
		}
		switch r.Kind {
		case "Node":
			if err := applyNode(db, &r); err != nil {
				return err
			}
		case "Configuration":
			if err := applyConfiguration(db, &r); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unsupported resource kind: %s", r.Kind)
		}
	}
	return nil
}

func applyNode(db *store.BoltStore, r *resource) error {
	name := r.Metadata.Name
	nodeType := types.NodeType(getString(r.Spec, "type", ""))
	role := types.NodeRole(getString(r.Spec, "role", ""))
	ip := getString(r.Spec, "ip", "")

	if name == "" || nodeType == "" || role == "" {
		return fmt.Errorf("node %q requires metadata.name, spec.type, and spec.role", name)
	}

	if existing, err := db.GetNode(name); err == nil && existing != nil {
		fmt.Printf("node %s already exists, skipping\n", name)
		return nil
	}

	if _, err := db.CreateNode(name, role, nodeType, ip); err != nil {
		return fmt.Errorf("failed to create node %s: %w", name, err)
	}
	fmt.Printf("node %s created\n", name)
	return nil
}

func applyConfiguration(db *store.BoltStore, r *resource) error {
	patch, err := configPatchFromSpec(r.Spec)
	if err != nil {
		return err
	}
	if _, err := db.UpdateConfiguration(patch); err != nil {
		return fmt.Errorf("failed to apply configuration: %w", err)
	}
	fmt.Println("configuration updated")
	return nil
}

func configPatchFromSpec(spec map[string]interface{}) (store.ConfigurationPatch, error) {
	var patch store.ConfigurationPatch
	for key, raw := range spec {
		value := fmt.Sprintf("%v", raw)
		p, err := buildConfigPatch(key, value)
		if err != nil {
			return patch, err
		}
		mergeConfigPatch(&patch, p)
	}
	return patch, nil
}

func mergeConfigPatch(dst *store.ConfigurationPatch, src store.ConfigurationPatch) {
	if src.AllowSwitch != nil {
		dst.AllowSwitch = src.AllowSwitch
	}
	if src.HeartbeatTimeoutSecond != nil {
		dst.HeartbeatTimeoutSecond = src.HeartbeatTimeoutSecond
	}
	if src.UnnecessaryServiceSwitchTimeoutHr != nil {
		dst.UnnecessaryServiceSwitchTimeoutHr = src.UnnecessaryServiceSwitchTimeoutHr
	}
	if src.ServiceRestartMaxTimes != nil {
		dst.ServiceRestartMaxTimes = src.ServiceRestartMaxTimes
	}
	if src.LoggingLevel != nil {
		dst.LoggingLevel = src.LoggingLevel
	}
	if src.LoggingPath != nil {
		dst.LoggingPath = src.LoggingPath
	}
	if src.DNSProviderAPIURL != nil {
		dst.DNSProviderAPIURL = src.DNSProviderAPIURL
	}
	if src.DNSProviderToken != nil {
		dst.DNSProviderToken = src.DNSProviderToken
	}
	if src.DNSProviderAccount != nil {
		dst.DNSProviderAccount = src.DNSProviderAccount
	}
	if src.DNSApex != nil {
		dst.DNSApex = src.DNSApex
	}
	if src.DNSStatusDomain != nil {
		dst.DNSStatusDomain = src.DNSStatusDomain
	}
	if src.DNSLogDomain != nil {
		dst.DNSLogDomain = src.DNSLogDomain
	}
	if src.DNSMasterPublicIP != nil {
		dst.DNSMasterPublicIP = src.DNSMasterPublicIP
	}
	if src.DNSSlavePublicIP != nil {
		dst.DNSSlavePublicIP = src.DNSSlavePublicIP
	}
	if src.GithubAppName != nil {
		dst.GithubAppName = src.GithubAppName
	}
	if src.GithubRepoName != nil {
		dst.GithubRepoName = src.GithubRepoName
	}
	if src.GithubUserToken != nil {
		dst.GithubUserToken = src.GithubUserToken
	}
	if src.GithubUserPassword != nil {
		dst.GithubUserPassword = src.GithubUserPassword
	}
}

func getString(spec map[string]interface{}, key, def string) string {
	if v, ok := spec[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprintf("%v", v)
	}
	return def
}
