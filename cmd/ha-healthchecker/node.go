package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/openlab-infra/ha-healthchecker/pkg/config"
	"github.com/openlab-infra/ha-healthchecker/pkg/store"
	"github.com/openlab-infra/ha-healthchecker/pkg/types"
	"github.com/spf13/cobra"
	"os"
)

var nodeCmd = &cobra.Command{
	Use:   "node",
	Short: "Inspect and administer nodes",
}

var nodeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List nodes known to the coordination store",
	RunE:  runNodeList,
}

var nodeMaintainCmd = &cobra.Command{
	Use:   "maintain <name>",
	Short: "Put a node into maintenance, exempting it from failover checks",
	Args:  cobra.ExactArgs(1),
	RunE:  runNodeMaintain(true),
}

var nodeUnmaintainCmd = &cobra.Command{
	Use:   "unmaintain <name>",
	Short: "Take a node out of maintenance and refresh its heartbeat",
	Args:  cobra.ExactArgs(1),
	RunE:  runNodeMaintain(false),
}

func init() {
	nodeCmd.PersistentFlags().StringP("config", "c", "/etc/ha-healthchecker/agent.ini", "Path to the startup config file")
	nodeCmd.AddCommand(nodeListCmd)
	nodeCmd.AddCommand(nodeMaintainCmd)
	nodeCmd.AddCommand(nodeUnmaintainCmd)
}

func openStore(cmd *cobra.Command) (*store.BoltStore, error) {
	configPath, _ := cmd.Flags().GetString("config")
	startup, err := config.LoadStartupConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load startup config: %w", err)
	}
	db, err := store.NewBoltStore(startup.StoreDataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open coordination store: %w", err)
	}
	return db, nil
}

func runNodeList(cmd *cobra.Command, args []string) error {
	db, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	nodes, err := db.ListNodes("", "", true)
	if err != nil {
		return fmt.Errorf("failed to list nodes: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tTYPE\tROLE\tSTATUS\tSWITCH\tIP")
	for _, n := range nodes {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", n.Name, n.Type, n.Role, n.Status, n.SwitchStatus, n.IP)
	}
	return w.Flush()
}

func runNodeMaintain(maintaining bool) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		db, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		name := args[0]
		if _, err := db.UpdateNode(name, types.NodePatch{Maintaining: &maintaining}); err != nil {
			return fmt.Errorf("failed to update node %s: %w", name, err)
		}
		if maintaining {
			fmt.Printf("%s is now under maintenance\n", name)
		} else {
			fmt.Printf("%s is back in service\n", name)
		}
		return nil
	}
}
