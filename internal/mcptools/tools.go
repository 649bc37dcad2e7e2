// Package mcptools exposes the capture-control operations of
// supervisor.Front plus the discovery helpers as MCP tools, served
// over stdio only — this binary never binds a port.
package mcptools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"diagsniff/internal/discovery"
	"diagsniff/internal/model"
	"diagsniff/internal/sshpool"
	"diagsniff/internal/supervisor"
)

// RegisterAll registers every MCP tool this service exposes: the five
// capture-control operations of the front plus three discovery
// helpers that make the capture tools usable without an external host
// registry.
func RegisterAll(s *server.MCPServer, front *supervisor.Front, pool *sshpool.Pool) {
	registerCaptureTools(s, front)
	registerDiscoveryTools(s, pool)
}

func hostFromRequest(req mcp.CallToolRequest) (model.Host, error) {
	address, err := req.RequireString("ssh_address")
	if err != nil {
		return model.Host{}, err
	}
	username, err := req.RequireString("ssh_username")
	if err != nil {
		return model.Host{}, err
	}
	password, err := req.RequireString("ssh_password")
	if err != nil {
		return model.Host{}, err
	}
	port := req.GetInt("ssh_port", 22)
	return model.Host{SSHAddress: address, SSHPort: port, Username: username, Password: password}, nil
}

func taskResultText(task model.Task) string {
	return fmt.Sprintf("task_id=%s name=%s task_type=%s is_alive=%v", task.TaskID, task.Name, task.TaskType, task.IsAlive)
}

func registerCaptureTools(s *server.MCPServer, front *supervisor.Front) {
	s.AddTool(
		mcp.NewTool("start_pcap_capture",
			mcp.WithDescription("Start a tcpdump packet capture against a host, streaming to a local file"),
			mcp.WithString("ssh_address", mcp.Required(), mcp.Description("SSH host address")),
			mcp.WithNumber("ssh_port", mcp.Description("SSH port (default: 22)")),
			mcp.WithString("ssh_username", mcp.Required(), mcp.Description("SSH username")),
			mcp.WithString("ssh_password", mcp.Required(), mcp.Description("SSH password")),
			mcp.WithString("output_file", mcp.Required(), mcp.Description("Local path to write the pcap stream to")),
			mcp.WithString("dumped_interface", mcp.Description("Remote network interface to capture on (default: any)")),
		),
		createStartPCAPDumpHandler(front),
	)

	s.AddTool(
		mcp.NewTool("start_log_capture",
			mcp.WithDescription("Start a tail -F capture of a remote log file, streaming to a local file"),
			mcp.WithString("ssh_address", mcp.Required(), mcp.Description("SSH host address")),
			mcp.WithNumber("ssh_port", mcp.Description("SSH port (default: 22)")),
			mcp.WithString("ssh_username", mcp.Required(), mcp.Description("SSH username")),
			mcp.WithString("ssh_password", mcp.Required(), mcp.Description("SSH password")),
			mcp.WithString("output_file", mcp.Required(), mcp.Description("Local path to write the log stream to")),
			mcp.WithString("dumped_file", mcp.Required(), mcp.Description("Remote file path to follow")),
		),
		createStartLogDumpHandler(front),
	)

	s.AddTool(
		mcp.NewTool("get_task_info",
			mcp.WithDescription("Get the current snapshot of one capture task"),
			mcp.WithString("task_id", mcp.Required(), mcp.Description("8-character task id")),
		),
		createGetTaskInfoHandler(front),
	)

	s.AddTool(
		mcp.NewTool("get_all_tasks",
			mcp.WithDescription("List every registered capture task, in start order"),
		),
		createGetAllTasksHandler(front),
	)

	s.AddTool(
		mcp.NewTool("stop_task",
			mcp.WithDescription("Stop a running capture task"),
			mcp.WithString("task_id", mcp.Required(), mcp.Description("8-character task id")),
		),
		createStopTaskHandler(front),
	)
}

func createStartPCAPDumpHandler(front *supervisor.Front) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		host, err := hostFromRequest(req)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		outputFile, err := req.RequireString("output_file")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		iface := req.GetString("dumped_interface", "")

		task, err := front.StartPCAPDump(ctx, host, outputFile, iface)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(taskResultText(task)), nil
	}
}

func createStartLogDumpHandler(front *supervisor.Front) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		host, err := hostFromRequest(req)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		outputFile, err := req.RequireString("output_file")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		dumpedFile, err := req.RequireString("dumped_file")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		task, err := front.StartLogDump(ctx, host, outputFile, dumpedFile)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(taskResultText(task)), nil
	}
}

func createGetTaskInfoHandler(front *supervisor.Front) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		taskID, err := req.RequireString("task_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		task, err := front.GetTaskInfo(ctx, taskID)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(taskResultText(task)), nil
	}
}

func createGetAllTasksHandler(front *supervisor.Front) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tasks, err := front.GetAllTasks(ctx)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if len(tasks) == 0 {
			return mcp.NewToolResultText("no tasks registered"), nil
		}
		var b strings.Builder
		for _, task := range tasks {
			b.WriteString(taskResultText(task))
			b.WriteString("\n")
		}
		return mcp.NewToolResultText(b.String()), nil
	}
}

func createStopTaskHandler(front *supervisor.Front) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		taskID, err := req.RequireString("task_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		task, err := front.StopTask(ctx, taskID)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(taskResultText(task)), nil
	}
}

func registerDiscoveryTools(s *server.MCPServer, pool *sshpool.Pool) {
	s.AddTool(
		mcp.NewTool("list_interfaces",
			mcp.WithDescription("List network interfaces on a host, candidates for dumped_interface"),
			mcp.WithString("ssh_address", mcp.Required(), mcp.Description("SSH host address")),
			mcp.WithNumber("ssh_port", mcp.Description("SSH port (default: 22)")),
			mcp.WithString("ssh_username", mcp.Required(), mcp.Description("SSH username")),
			mcp.WithString("ssh_password", mcp.Required(), mcp.Description("SSH password")),
		),
		createListInterfacesHandler(pool),
	)

	s.AddTool(
		mcp.NewTool("list_log_files",
			mcp.WithDescription("List candidate log files under a directory, candidates for dumped_file"),
			mcp.WithString("ssh_address", mcp.Required(), mcp.Description("SSH host address")),
			mcp.WithNumber("ssh_port", mcp.Description("SSH port (default: 22)")),
			mcp.WithString("ssh_username", mcp.Required(), mcp.Description("SSH username")),
			mcp.WithString("ssh_password", mcp.Required(), mcp.Description("SSH password")),
			mcp.WithString("directory", mcp.Description("Directory to list (default: /var/log)")),
		),
		createListLogFilesHandler(pool),
	)

	s.AddTool(
		mcp.NewTool("check_preflight",
			mcp.WithDescription("Check whether a host has tcpdump/tail and how much free space its output directory has"),
			mcp.WithString("ssh_address", mcp.Required(), mcp.Description("SSH host address")),
			mcp.WithNumber("ssh_port", mcp.Description("SSH port (default: 22)")),
			mcp.WithString("ssh_username", mcp.Required(), mcp.Description("SSH username")),
			mcp.WithString("ssh_password", mcp.Required(), mcp.Description("SSH password")),
			mcp.WithString("output_directory", mcp.Description("Directory the capture will write into (default: /tmp)")),
		),
		createCheckPreflightHandler(pool),
	)
}

func createListInterfacesHandler(pool *sshpool.Pool) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		host, err := hostFromRequest(req)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		scoped, err := pool.Scoped(ctx, host.SSHAddress, host.SSHPort, host.Username, host.Password)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		defer scoped.Release()

		ifaces, err := discovery.ListInterfaces(ctx, scoped.Transport)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		var b strings.Builder
		for _, iface := range ifaces {
			fmt.Fprintf(&b, "%s: %s\n", iface.Name, strings.Join(iface.Addresses, ", "))
		}
		return mcp.NewToolResultText(b.String()), nil
	}
}

func createListLogFilesHandler(pool *sshpool.Pool) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		host, err := hostFromRequest(req)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		dir := req.GetString("directory", "/var/log")

		scoped, err := pool.Scoped(ctx, host.SSHAddress, host.SSHPort, host.Username, host.Password)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		defer scoped.Release()

		files, err := discovery.ListLogFiles(ctx, scoped.Transport, dir)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		var b strings.Builder
		for _, f := range files {
			fmt.Fprintf(&b, "%s (%d bytes)\n", f.Path, f.Size)
		}
		return mcp.NewToolResultText(b.String()), nil
	}
}

func createCheckPreflightHandler(pool *sshpool.Pool) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		host, err := hostFromRequest(req)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		outputDir := req.GetString("output_directory", "/tmp")

		scoped, err := pool.Scoped(ctx, host.SSHAddress, host.SSHPort, host.Username, host.Password)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		defer scoped.Release()

		preflight, err := discovery.CheckPreflight(ctx, scoped.Transport, outputDir)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("tcpdump=%v tail=%v free_bytes=%d", preflight.HasTcpdump, preflight.HasTail, preflight.FreeBytesOutput)), nil
	}
}
