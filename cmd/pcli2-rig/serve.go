package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"pcli2rig/internal/config"
	"pcli2rig/internal/logging"
	"pcli2rig/internal/mcpserve"
	"pcli2rig/internal/tools"
)

func newServeToolsCmd() *cobra.Command {
	var logLevel string
	cmd := &cobra.Command{
		Use:   "serve-tools",
		Short: "Serve the built-in tools as an MCP server over stdio",
		Long: `Runs an MCP server on stdin/stdout exposing read_file, write_file,
list_directory, run_command and search_code rooted at the working
directory. Tool calls are not confirmed; the client is responsible for that.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(contextOrBackground(cmd.Context()), os.Interrupt, syscall.SIGTERM)
			defer stop()

			// stdout carries the protocol, so logs only go to the file.
			f, _, err := logging.OpenFile(config.StateDir())
			if err != nil {
				return err
			}
			defer f.Close()
			log := logging.New(logging.Config{Level: logging.ParseLevel(logLevel), Output: f})

			cfg, err := config.Load("")
			if err != nil {
				return err
			}
			ws := tools.OSWorkspace(workDir())
			s := mcpserve.NewServer(tools.Builtins(ws, "", cfg.ToolTimeout), log)
			log.Info().Str("dir", ws.Dir).Msg("serving tools over stdio")
			return mcpserve.ServeStdio(ctx, s, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "INFO", "Log level (DEBUG|INFO|WARN|ERROR)")
	return cmd
}
