package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/gaps-closure/vscle/internal/mcpserver"
	"github.com/gaps-closure/vscle/internal/workspace"
)

func mcpCmd() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Start MCP (Model Context Protocol) server for LLM tool integration",
		Description: `Starts an MCP server over stdio transport that exposes the analyzer
and label navigation as tools that LLMs can invoke.

To use with Claude Desktop, add to your config:
  {
    "mcpServers": {
      "vscle": {
        "command": "vscle",
        "args": ["mcp"]
      }
    }
  }

Available tools:
  - analyze        Run the conflict analyzer, return topology or conflicts
  - highlight      Color a file's functions by enclave level
  - lens           List the level of each function in a file
  - definition     Find the definition of a label used on a line
  - references     List every use of a label
  - rename         Compute rename edits for a label
  - hover          Show a label definition
  - labels         List every label definition
  - wrap           Wrap a function definition in a begin/end label pair
  - open_document  Use unsaved text for a file
  - close_document Read a file from disk again
  - source_set     List the files under analysis`,
		Action: runMCPCmd,
		Subcommands: []*cli.Command{
			{
				Name:   "manifest",
				Usage:  "Print the MCP server manifest (server.json)",
				Action: runMCPManifestCmd,
			},
		},
	}
}

func runMCPCmd(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	logger := newLogger(c)

	opts := []mcpserver.Option{mcpserver.WithLogger(logger)}
	if pc := openCache(cfg, logger); pc != nil {
		opts = append(opts, mcpserver.WithCache(pc))
	}
	server := mcpserver.NewServer(version, workspace.New(cfg, workspace.WithLogger(logger)), opts...)
	return server.Run(c.Context)
}

func runMCPManifestCmd(c *cli.Context) error {
	data, err := mcpserver.GenerateManifest(version)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(c.App.Writer, string(data))
	return err
}
