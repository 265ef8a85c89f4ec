package main

import (
	"github.com/spf13/cobra"

	"pkt.systems/nextvm/internal/appconfig"
	"pkt.systems/pslog"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the nextvm config file",
	}
	cmd.AddCommand(newConfigInitCmd())
	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var cfgPath string
	var overwrite bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := appconfig.WriteDefault(cfgPath, overwrite)
			if err != nil {
				return err
			}
			pslog.Ctx(cmd.Context()).Info("config written", "path", path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().BoolVar(&overwrite, "force", false, "overwrite an existing config file")
	return cmd
}
