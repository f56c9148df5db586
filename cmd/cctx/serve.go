package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/voyantlabs/codectx/internal/config"
	mcpserver "github.com/voyantlabs/codectx/internal/mcp"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve codectx tools over the Model Context Protocol",
	Long: `Run the MCP server on stdin/stdout so editors and coding agents can
index repositories, retrieve context, assemble prompts, and apply patches
through tool calls.

Register it with an MCP client, for example:
  {"mcpServers": {"codectx": {"command": "cctx", "args": ["serve"]}}}`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := newService(ctx, config.ValidationContextServe)
	if err != nil {
		return err
	}
	defer svc.Close()

	// stdout carries the protocol, so greet on stderr
	fmt.Fprintf(os.Stderr, "codectx MCP server %s listening on stdio\n", Version)

	server := mcpserver.NewServer(svc, Version)
	if err := server.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("mcp server stopped: %w", err)
	}
	return nil
}
