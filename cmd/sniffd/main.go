// Command sniffd is the remote diagnostic sniffer service: it serves
// the capture-control operations of internal/supervisor as MCP stdio
// tools. The same binary doubles as the supervisor subordinate
// process when re-invoked under the registered reexec name.
package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/moby/sys/reexec"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"diagsniff/internal/mcptools"
	"diagsniff/internal/sshpool"
	"diagsniff/internal/supervisor"
)

const serviceName = "diagsniff"

// commitSHA is injected at build time.
var commitSHA = "dev"

func init() {
	reexec.Register(supervisor.ReexecCommandName, supervisor.RunSupervisor)
	if reexec.Init() {
		os.Exit(0)
	}
}

func main() {
	root := &cobra.Command{
		Use:           "sniffd",
		Short:         "Remote diagnostic sniffer service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP stdio server exposing capture-control tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	logger := zerolog.New(os.Stderr).With().Timestamp().Str("service", serviceName).Logger()

	pool := sshpool.New()
	defer pool.DestroyAll()

	front := supervisor.NewFront()
	if err := front.Start(func(record string) {
		logger.Info().Str("source", "supervisor").Msg(record)
	}); err != nil {
		return fmt.Errorf("sniffd: failed to start supervisor: %w", err)
	}
	defer front.Stop()

	mcpServer := server.NewMCPServer(serviceName, commitSHA,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)
	mcptools.RegisterAll(mcpServer, front, pool)

	logger.Info().Msg("serving MCP tools over stdio")
	if err := server.ServeStdio(mcpServer); err != nil {
		return fmt.Errorf("sniffd: stdio server error: %w", err)
	}
	return nil
}
