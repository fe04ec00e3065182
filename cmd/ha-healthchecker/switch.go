package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var switchCmd = &cobra.Command{
	Use:   "switch",
	Short: "Trigger a manual master/slave switch",
	Long: `Switch sets switch_status=start on every non-zookeeper node, the
same administrative trigger an operator uses to force a failover
outside of the normal unreachable-peer path. The running agents pick
it up on their next tick and carry out the promotion/demotion.`,
	RunE: runSwitch,
}

func init() {
	switchCmd.PersistentFlags().StringP("config", "c", "/etc/ha-healthchecker/agent.ini", "Path to the startup config file")
}

func runSwitch(cmd *cobra.Command, args []string) error {
	db, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.SwitchMasterAndSlave(); err != nil {
		return fmt.Errorf("failed to trigger switch: %w", err)
	}
	fmt.Println("switch triggered, agents will act on it next tick")
	return nil
}
