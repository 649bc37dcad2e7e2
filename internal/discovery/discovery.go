// Package discovery holds the preflight and target-listing operations
// a caller needs before starting a capture: which network interfaces
// exist, which log files are plausible tail targets, and whether the
// remote host even has the tools a capture needs.
package discovery

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/sftp"

	"diagsniff/internal/sshpool"
)

// shellQuote quotes a string for safe inclusion in a remote shell
// command.
func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	escaped := strings.ReplaceAll(s, "'", `'"'"'`)
	return "'" + escaped + "'"
}

func runCommand(transport *sshpool.Transport, command string) (string, error) {
	session, err := transport.NewSession()
	if err != nil {
		return "", fmt.Errorf("discovery: failed to open session: %w", err)
	}
	defer session.Close()

	output, err := session.CombinedOutput(command)
	return string(output), err
}

// Interface describes one network interface candidate for
// `dumped_interface` in a pcap_dump command.
type Interface struct {
	Name      string
	Addresses []string
}

// ListInterfaces runs `ip -o addr show` on the remote host and parses
// its output into interface candidates.
func ListInterfaces(ctx context.Context, transport *sshpool.Transport) ([]Interface, error) {
	output, err := runCommand(transport, "ip -o addr show 2>/dev/null")
	if err != nil {
		return nil, fmt.Errorf("discovery: list interfaces: %w", err)
	}

	byName := make(map[string]*Interface)
	var order []string
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}
		name := fields[1]
		addr := fields[3]
		iface, ok := byName[name]
		if !ok {
			iface = &Interface{Name: name}
			byName[name] = iface
			order = append(order, name)
		}
		iface.Addresses = append(iface.Addresses, addr)
	}

	result := make([]Interface, 0, len(order))
	for _, name := range order {
		result = append(result, *byName[name])
	}
	return result, nil
}

// LogFile describes one candidate target for `dumped_file` in a
// log_dump command.
type LogFile struct {
	Path string
	Size int64
}

// ListLogFiles lists regular files under dir via SFTP, keeping only
// files whose name plausibly looks like a log (".log" suffix or under
// a path segment named "log"/"logs").
func ListLogFiles(ctx context.Context, transport *sshpool.Transport, dir string) ([]LogFile, error) {
	client, err := sftp.NewClient(transport.SSHClient())
	if err != nil {
		return nil, fmt.Errorf("discovery: sftp client: %w", err)
	}
	defer client.Close()

	entries, err := client.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("discovery: read dir %q: %w", dir, err)
	}

	var out []LogFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !looksLikeLogFile(dir, entry.Name()) {
			continue
		}
		out = append(out, LogFile{Path: dir + "/" + entry.Name(), Size: entry.Size()})
	}
	return out, nil
}

func looksLikeLogFile(dir, name string) bool {
	if strings.HasSuffix(name, ".log") {
		return true
	}
	segments := strings.Split(dir, "/")
	for _, seg := range segments {
		if seg == "log" || seg == "logs" {
			return true
		}
	}
	return false
}

// Preflight reports whether the remote host has the tools a capture
// needs and how much free space is available at the output directory.
type Preflight struct {
	HasTcpdump      bool
	HasTail         bool
	FreeBytesOutput int64
}

// CheckPreflight probes the remote host for tcpdump/tail and the free
// space on the filesystem backing outputDir.
func CheckPreflight(ctx context.Context, transport *sshpool.Transport, outputDir string) (Preflight, error) {
	var p Preflight

	if out, err := runCommand(transport, "command -v tcpdump >/dev/null 2>&1 && echo yes || echo no"); err == nil {
		p.HasTcpdump = strings.TrimSpace(out) == "yes"
	}
	if out, err := runCommand(transport, "command -v tail >/dev/null 2>&1 && echo yes || echo no"); err == nil {
		p.HasTail = strings.TrimSpace(out) == "yes"
	}

	cmd := fmt.Sprintf("df -B1 --output=avail %s 2>/dev/null | tail -n1", shellQuote(outputDir))
	out, err := runCommand(transport, cmd)
	if err != nil {
		return p, fmt.Errorf("discovery: disk space check: %w", err)
	}
	avail, convErr := strconv.ParseInt(strings.TrimSpace(out), 10, 64)
	if convErr == nil {
		p.FreeBytesOutput = avail
	}
	return p, nil
}
