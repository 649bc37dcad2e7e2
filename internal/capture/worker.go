// Package capture implements the capture worker: it drives one remote
// command over a leased SSH transport, copies stdout to a local file
// verbatim, surfaces stderr as log records, and supports cooperative
// cancellation plus end-of-stream detection.
package capture

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/crypto/ssh"

	"diagsniff/internal/model"
	"diagsniff/internal/sshpool"
)

// Logger is the narrow interface Worker needs for its log records:
// stderr chunks at error level, end-of-stream and lifecycle notices at
// info. The supervisor supplies an adapter over its forwarding
// zerolog.Logger; tests can supply a no-op.
type Logger interface {
	Infof(format string, args ...any)
	Errorf(format string, args ...any)
}

// pollInterval bounds how long a readiness wait can run before the
// worker re-checks its stop flag.
const pollInterval = 1 * time.Second

// Worker owns one pool lease, one open output file, and one SSH
// channel for its lifetime. It is a plain value holding its own
// scheduling handle: Start/Stop/IsAlive are ordinary methods backed by
// a goroutine and a WaitGroup.
type Worker struct {
	name       string
	taskType   model.TaskType
	host       model.Host
	outputPath string
	command    string
	pool       *sshpool.Pool
	logger     Logger

	mu      sync.Mutex
	alive   bool
	stopCh  chan struct{}
	stopped sync.Once
	done    sync.WaitGroup
}

func newWorker(name string, taskType model.TaskType, host model.Host, outputPath, command string, pool *sshpool.Pool, logger Logger) *Worker {
	return &Worker{
		name:       name,
		taskType:   taskType,
		host:       host,
		outputPath: outputPath,
		command:    command,
		pool:       pool,
		logger:     logger,
		stopCh:     make(chan struct{}),
	}
}

// Name is the dumper name, e.g. "proc_4213.pcap_AB12CD34".
func (w *Worker) Name() string { return w.name }

// TaskType reports which remote command variant this worker runs.
func (w *Worker) TaskType() model.TaskType { return w.taskType }

// IsAlive is true between Start returning and the worker's run loop
// fully exiting, whatever the exit reason.
func (w *Worker) IsAlive() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.alive
}

func (w *Worker) setAlive(v bool) {
	w.mu.Lock()
	w.alive = v
	w.mu.Unlock()
}

// Start launches the worker's execution context and returns
// immediately. Callers (the supervisor) must not call Start twice.
func (w *Worker) Start() {
	w.setAlive(true)
	w.done.Add(1)
	go func() {
		defer w.done.Done()
		defer w.setAlive(false)
		w.run()
	}()
}

// Stop sets the stop flag and blocks until the worker has fully
// exited. Safe to call while the worker is already terminating.
func (w *Worker) Stop() {
	w.stopped.Do(func() { close(w.stopCh) })
	w.done.Wait()
}

func (w *Worker) run() {
	w.logger.Infof("%s: starting", w.name)

	leaseID, transport, err := w.pool.Acquire(context.Background(), w.host.SSHAddress, w.host.SSHPort, w.host.Username, w.host.Password)
	if err != nil {
		w.logger.Errorf("%s: acquire failed: %v", w.name, err)
		return
	}
	defer w.pool.Release(leaseID)

	outputFile, err := os.OpenFile(w.outputPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		w.logger.Errorf("%s: %v", w.name, model.DumperError(model.ErrKindFileOpenFailed, "failed to open output file %q: %v", w.outputPath, err))
		return
	}
	defer outputFile.Close()

	session, err := transport.NewSession()
	if err != nil {
		w.logger.Errorf("%s: %v", w.name, model.DumperError(model.ErrKindTransportError, "failed to open session: %v", err))
		return
	}
	defer session.Close()

	stdout, err := session.StdoutPipe()
	if err != nil {
		w.logger.Errorf("%s: %v", w.name, model.DumperError(model.ErrKindTransportError, "failed to open stdout pipe: %v", err))
		return
	}
	stderr, err := session.StderrPipe()
	if err != nil {
		w.logger.Errorf("%s: %v", w.name, model.DumperError(model.ErrKindTransportError, "failed to open stderr pipe: %v", err))
		return
	}

	w.logger.Infof("%s: executing %q", w.name, w.command)
	if err := session.Start(w.command); err != nil {
		w.logger.Errorf("%s: %v", w.name, model.DumperError(model.ErrKindTransportError, "failed to start command: %v", err))
		return
	}

	// An exit status already available at this point means the remote
	// process died before producing anything worth capturing.
	waitErr := make(chan error, 1)
	go func() { waitErr <- session.Wait() }()

	select {
	case err := <-waitErr:
		exitCode := exitCodeOf(err)
		w.logger.Errorf("%s: %v", w.name, model.DumperError(model.ErrKindEarlyTermination, "process terminated early with exit code %d", exitCode))
		return
	default:
	}

	w.drainLoop(stdout, stderr, outputFile)

	session.Close()
	<-waitErr
}

// chunk is one read's worth of a remote stream: either data or the
// terminal read error.
type chunk struct {
	data []byte
	err  error
}

// drainLoop multiplexes the two remote streams with goroutine-backed
// readiness: one reader goroutine per stream reports chunks or EOF
// over a Go channel, and the main loop selects over both against a
// 1-second ticker so the stop flag is observed within that bound.
func (w *Worker) drainLoop(stdout, stderr io.Reader, outputFile *os.File) {
	stdoutCh := make(chan chunk, 8)
	stderrCh := make(chan chunk, 8)

	go streamReader(stdout, stdoutCh)
	go streamReader(stderr, stderrCh)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	stdoutDone, stderrDone := false, false
	for !(stdoutDone && stderrDone) {
		select {
		case <-w.stopCh:
			w.logger.Infof("%s: stop requested", w.name)
			// Unblock the stream readers so they can observe the channel
			// teardown and exit instead of hanging on a full channel.
			go discard(stdoutCh)
			go discard(stderrCh)
			return
		case c, ok := <-stdoutCh:
			if !ok {
				stdoutDone = true
				continue
			}
			if c.err != nil {
				if c.err != io.EOF {
					w.logger.Errorf("%s: %v", w.name, model.DumperError(model.ErrKindTransportError, "stdout read error: %v", c.err))
				} else {
					w.logger.Infof("%s: received end-of-stream, terminating buffer reader", w.name)
				}
				continue
			}
			if _, err := outputFile.Write(c.data); err != nil {
				w.logger.Errorf("%s: failed writing output file: %v", w.name, err)
			}
		case c, ok := <-stderrCh:
			if !ok {
				stderrDone = true
				continue
			}
			if c.err != nil {
				continue
			}
			w.logger.Errorf("%s: received new err data: %s", w.name, decodeStderr(c.data))
		case <-ticker.C:
			// nothing ready; loop back so the stop flag is re-checked
		}
	}
}

// discard drains ch until it is closed.
func discard(ch <-chan chunk) {
	for range ch {
	}
}

// streamReader performs blocking reads on r and reports each chunk (or
// the terminal error) over ch, then closes ch.
func streamReader(r io.Reader, ch chan<- chunk) {
	defer close(ch)
	buf := make([]byte, 32*1024)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			ch <- chunk{data: data}
		}
		if err != nil {
			ch <- chunk{err: err}
			return
		}
	}
}

// decodeStderr best-effort UTF-8 decodes a stderr chunk for logging,
// falling back to a byte-literal representation on invalid UTF-8.
func decodeStderr(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	return fmt.Sprintf("%q", data)
}

func exitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	if exitErr, ok := err.(*ssh.ExitError); ok {
		return exitErr.ExitStatus()
	}
	return -1
}
