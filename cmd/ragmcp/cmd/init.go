package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/ragmcp/configs"
)

const defaultConfigName = "ragmcp.yaml"

func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter ragmcp.yaml in the current directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(defaultConfigName); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", defaultConfigName)
			}
			if err := os.WriteFile(defaultConfigName, []byte(configs.ConfigTemplate), 0o644); err != nil {
				return fmt.Errorf("write %s: %w", defaultConfigName, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s. Put your .txt files under corpus/ and run 'ragmcp index'.\n", defaultConfigName)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")
	return cmd
}
