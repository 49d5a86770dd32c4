package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"pcli2rig/internal/config"
)

func newSetupMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "setup-mcp FILE|-",
		Short: "Import MCP servers from a pcli2-mcp JSON config",
		Long: `Reads the mcpServers section of a pcli2-mcp JSON config (use - for stdin)
and saves the servers it finds to the pcli2-rig config file. Servers with
the same name are replaced.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSetupMCP(cmd, args[0])
		},
	}
}

func runSetupMCP(cmd *cobra.Command, src string) error {
	servers, err := config.ReadMCPConfig(src, cmd.InOrStdin())
	if err != nil {
		return err
	}
	if len(servers) == 0 {
		return fmt.Errorf("no MCP servers found in %s", src)
	}

	cfg, err := config.Load("")
	if err != nil {
		return err
	}
	for _, s := range servers {
		cfg.Upsert(s)
	}
	path, err := config.Save(cfg)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	ok := color.New(color.FgGreen, color.Bold)
	name := color.New(color.FgCyan, color.Bold)
	dim := color.New(color.FgHiBlack)

	ok.Fprintf(out, "✓ Imported %d MCP server(s)\n", len(servers))
	for _, s := range servers {
		target := s.URL
		if target == "" {
			target = s.Command
		}
		fmt.Fprintf(out, "  %s %s\n", name.Sprint(s.Name), dim.Sprint(target))
	}
	fmt.Fprintf(out, "%s %s\n", dim.Sprint("Saved to"), path)
	return nil
}
