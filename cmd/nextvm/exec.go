package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"pkt.systems/nextvm/core"
	"pkt.systems/nextvm/internal/ansi"
	"pkt.systems/nextvm/internal/appconfig"
	"pkt.systems/nextvm/internal/executor"
	"pkt.systems/nextvm/internal/version"
	"pkt.systems/nextvm/schema"
)

func newExecCmd() *cobra.Command {
	var cfgPath string
	var endpoint string
	var timeout time.Duration
	var strip bool
	cmd := &cobra.Command{
		Use:   "exec [command...]",
		Short: "Run a command through a server's execution endpoint",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			commandText, err := schema.NormalizeCommand(strings.Join(args, " "))
			if err != nil {
				return err
			}
			if strings.TrimSpace(endpoint) == "" {
				cfg, err := appconfig.Load(cfgPath)
				if err != nil {
					return err
				}
				endpoint = cfg.Executor.Endpoint
				if strings.TrimSpace(endpoint) == "" {
					endpoint = executor.SelfEndpoint(cfg.HTTP.Addr, cfg.HTTP.BasePath)
				}
			}
			client, err := executor.NewClient(executor.ClientConfig{
				Endpoint:  endpoint,
				Timeout:   timeout,
				UserAgent: "nextvm/" + version.Current(),
			})
			if err != nil {
				return err
			}
			result, err := client.Execute(cmd.Context(), core.ExecRequest{Command: commandText})
			if err != nil {
				var execErr *schema.ExecutionError
				if errors.As(err, &execErr) {
					_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "Error: "+execErr.Error())
				}
				return err
			}
			return writeResult(cmd, result.Output, strip)
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVar(&endpoint, "endpoint", "", "execution endpoint URL (defaults to executor.endpoint, then the configured server)")
	cmd.Flags().DurationVar(&timeout, "timeout", executor.DefaultClientTimeout, "request timeout")
	cmd.Flags().BoolVar(&strip, "strip", false, "remove ANSI escape sequences from the output")
	return cmd
}

func writeResult(cmd *cobra.Command, output string, strip bool) error {
	if output == "" {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), schema.NoOutputText)
		return err
	}
	if strip {
		output = ansi.Strip(output)
	}
	_, err := fmt.Fprint(cmd.OutOrStdout(), output)
	if err == nil && !strings.HasSuffix(output, "\n") {
		_, err = fmt.Fprintln(cmd.OutOrStdout())
	}
	return err
}
