package capture

import (
	"fmt"

	"diagsniff/internal/model"
	"diagsniff/internal/sshpool"
)

// NewPCAPWorker builds the worker for a pcap_dump task: tcpdump writes
// a raw capture to stdout packet-by-packet (-U), with SSH traffic
// excluded so the capture doesn't amplify its own control channel.
func NewPCAPWorker(name string, host model.Host, iface, outputPath string, pool *sshpool.Pool, logger Logger) *Worker {
	command := fmt.Sprintf("tcpdump -i %s -U -w - -f not tcp port 22", iface)
	return newWorker(name, model.TaskTypePCAP, host, outputPath, command, pool, logger)
}

// NewLogWorker builds the worker for a log_dump task: tail follows a
// log file by name (surviving log rotation) starting one line back,
// retrying if the file doesn't exist yet.
func NewLogWorker(name string, host model.Host, dumpedFile, outputPath string, pool *sshpool.Pool, logger Logger) *Worker {
	command := fmt.Sprintf("tail --follow=name --retry --lines=1 %s", dumpedFile)
	return newWorker(name, model.TaskTypeLog, host, outputPath, command, pool, logger)
}
