package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/openlab-infra/ha-healthchecker/pkg/store"
	"github.com/spf13/cobra"
	"os"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and update cluster configuration",
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the current cluster configuration, masking secrets",
	RunE:  runConfigList,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set one cluster configuration value",
	Long: `Set accepts the same keys shown by "config list" (allow-switch,
heartbeat-timeout-second, unnecessary-service-switch-timeout-hour,
service-restart-max-times, logging-level, logging-path,
dns-provider-api-url, dns-provider-token, dns-provider-account,
dns-apex, dns-status-domain, dns-log-domain, dns-master-public-ip,
dns-slave-public-ip, github-app-name, github-repo-name,
github-user-token, github-user-password).`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

func init() {
	configCmd.PersistentFlags().StringP("config", "c", "/etc/ha-healthchecker/agent.ini", "Path to the startup config file")
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configSetCmd)
}

func runConfigList(cmd *cobra.Command, args []string) error {
	db, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	cfg, err := db.ListConfiguration()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "allow-switch\t%v\n", cfg.AllowSwitch)
	fmt.Fprintf(w, "heartbeat-timeout-second\t%d\n", cfg.HeartbeatTimeoutSecond)
	fmt.Fprintf(w, "unnecessary-service-switch-timeout-hour\t%d\n", cfg.UnnecessaryServiceSwitchTimeoutHr)
	fmt.Fprintf(w, "service-restart-max-times\t%d\n", cfg.ServiceRestartMaxTimes)
	fmt.Fprintf(w, "logging-level\t%s\n", cfg.LoggingLevel)
	fmt.Fprintf(w, "logging-path\t%s\n", cfg.LoggingPath)
	fmt.Fprintf(w, "dns-provider-api-url\t%s\n", cfg.DNSProviderAPIURL)
	fmt.Fprintf(w, "dns-provider-token\t%s\n", mask(cfg.DNSProviderToken))
	fmt.Fprintf(w, "dns-provider-account\t%s\n", cfg.DNSProviderAccount)
	fmt.Fprintf(w, "dns-apex\t%s\n", cfg.DNSApex)
	fmt.Fprintf(w, "dns-status-domain\t%s\n", cfg.DNSStatusDomain)
	fmt.Fprintf(w, "dns-log-domain\t%s\n", cfg.DNSLogDomain)
	fmt.Fprintf(w, "dns-master-public-ip\t%s\n", cfg.DNSMasterPublicIP)
	fmt.Fprintf(w, "dns-slave-public-ip\t%s\n", cfg.DNSSlavePublicIP)
	fmt.Fprintf(w, "github-app-name\t%s\n", cfg.GithubAppName)
	fmt.Fprintf(w, "github-repo-name\t%s\n", cfg.GithubRepoName)
	fmt.Fprintf(w, "github-user-token\t%s\n", mask(cfg.GithubUserToken))
	fmt.Fprintf(w, "github-user-password\t%s\n", mask(cfg.GithubUserPassword))
	return w.Flush()
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "********"
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	db, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	key, value := args[0], args[1]
	patch, err := buildConfigPatch(key, value)
	if err != nil {
		return err
	}

	if _, err := db.UpdateConfiguration(patch); err != nil {
		return fmt.Errorf("failed to update configuration: %w", err)
	}
	fmt.Printf("%s updated\n", key)
	return nil
}

func buildConfigPatch(key, value string) (store.ConfigurationPatch, error) {
	var patch store.ConfigurationPatch
	switch key {
	case "allow-switch":
		b := value == "true" || value == "1"
		patch.AllowSwitch = &b
	case "heartbeat-timeout-second":
		n, err := parseInt(value)
		if err != nil {
			return patch, err
		}
		patch.HeartbeatTimeoutSecond = &n
	case "unnecessary-service-switch-timeout-hour":
		n, err := parseInt(value)
		if err != nil {
			return patch, err
		}
		patch.UnnecessaryServiceSwitchTimeoutHr = &n
	case "service-restart-max-times":
		n, err := parseInt(value)
		if err != nil {
			return patch, err
		}
		patch.ServiceRestartMaxTimes = &n
	case "logging-level":
		patch.LoggingLevel = &value
	case "logging-path":
		patch.LoggingPath = &value
	case "dns-provider-api-url":
		patch.DNSProviderAPIURL = &value
	case "dns-provider-token":
		patch.DNSProviderToken = &value
	case "dns-provider-account":
		patch.DNSProviderAccount = &value
	case "dns-apex":
		patch.DNSApex = &value
	case "dns-status-domain":
		patch.DNSStatusDomain = &value
	case "dns-log-domain":
		patch.DNSLogDomain = &value
	case "dns-master-public-ip":
		patch.DNSMasterPublicIP = &value
	case "dns-slave-public-ip":
		patch.DNSSlavePublicIP = &value
	case "github-app-name":
		patch.GithubAppName = &value
	case "github-repo-name":
		patch.GithubRepoName = &value
	case "github-user-token":
		patch.GithubUserToken = &value
	case "github-user-password":
		patch.GithubUserPassword = &value
	default:
		return patch, fmt.Errorf("unknown configuration key %q", key)
	}
	return patch, nil
}

func parseInt(s string) (int, error) {
	var n int
	_, err := fmt.Sscanf(s, "%d", &n)
	if err != nil {
		return 0, fmt.Errorf("expected an integer, got %q", s)
	}
	return n, nil
}
