package supervisor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/moby/sys/reexec"

	"diagsniff/internal/model"
)

// ReexecCommandName is the registered name cmd/sniffd uses to detect
// that it has been re-invoked as the supervisor subordinate (see
// reexec.Register / reexec.Init in cmd/sniffd/main.go).
const ReexecCommandName = "diagsniff-supervisor"

const defaultRPCTimeout = 5 * time.Second

// Front is the caller-side half of the capture runtime: it spawns the
// subordinate supervisor process, ships commands to it, and forwards
// its log queue to the caller's own logger.
type Front struct {
	timeout time.Duration

	// rpcMu serializes the full round trip of one RPC (write command,
	// read its result): the result queue carries no correlation id, so
	// a second command must not be issued before the first's response
	// arrives.
	rpcMu sync.Mutex

	mu      sync.Mutex
	started bool
	cmd     *exec.Cmd
	cmdW    *os.File
	resR    *os.File
	logR    *os.File

	logForwarderDone chan struct{}
}

// NewFront builds an unstarted Front with the default 5-second RPC
// timeout.
func NewFront() *Front {
	return &Front{timeout: defaultRPCTimeout}
}

// Start spawns the subordinate process with a clean, non-forked spawn
// model: reexec.Command re-executes /proc/self/exe under
// ReexecCommandName rather than forking this process's memory image,
// so no foreground file descriptors leak into the child beyond the
// three pipes wired explicitly below. onLog receives every forwarded
// log line.
func (f *Front) Start(onLog func(string)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.started {
		return fmt.Errorf("supervisor: front already started")
	}

	cmdR, cmdW, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("supervisor: command pipe: %w", err)
	}
	resR, resW, err := os.Pipe()
	if err != nil {
		cmdR.Close()
		cmdW.Close()
		return fmt.Errorf("supervisor: result pipe: %w", err)
	}
	logR, logW, err := os.Pipe()
	if err != nil {
		cmdR.Close()
		cmdW.Close()
		resR.Close()
		resW.Close()
		return fmt.Errorf("supervisor: log pipe: %w", err)
	}

	cmd := reexec.Command(ReexecCommandName)
	cmd.ExtraFiles = []*os.File{cmdR, resW, logW}
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		cmdR.Close()
		cmdW.Close()
		resR.Close()
		resW.Close()
		logR.Close()
		logW.Close()
		return fmt.Errorf("supervisor: failed to start subordinate process: %w", err)
	}
	// The child holds its own copies of these three fds now.
	cmdR.Close()
	resW.Close()
	logW.Close()

	f.cmd = cmd
	f.cmdW = cmdW
	f.resR = resR
	f.logR = logR
	f.logForwarderDone = make(chan struct{})
	f.started = true

	go f.forwardLogs(onLog)

	return nil
}

func (f *Front) forwardLogs(onLog func(string)) {
	defer close(f.logForwarderDone)
	for {
		rec, err := ReadLogRecord(f.logR)
		if err != nil {
			return
		}
		if onLog != nil {
			onLog(rec)
		}
	}
}

func (f *Front) send(ctx context.Context, cmd Command) (Result, error) {
	f.rpcMu.Lock()
	defer f.rpcMu.Unlock()

	f.mu.Lock()
	started := f.started
	cmdW := f.cmdW
	resR := f.resR
	f.mu.Unlock()

	if !started {
		return nil, model.NewRPCError(model.ErrKindNotStarted, "front has not been started")
	}

	if err := WriteCommand(cmdW, cmd); err != nil {
		return nil, fmt.Errorf("supervisor: failed to send command: %w", err)
	}

	type readOutcome struct {
		res Result
		err error
	}
	ch := make(chan readOutcome, 1)
	go func() {
		res, err := ReadResult(resR)
		ch <- readOutcome{res, err}
	}()

	timer := time.NewTimer(f.timeout)
	defer timer.Stop()

	select {
	case out := <-ch:
		if out.err != nil {
			return nil, fmt.Errorf("supervisor: failed to read result: %w", out.err)
		}
		if errRes, ok := out.res.(ErrorResult); ok {
			return nil, errRes.toError()
		}
		return out.res, nil
	case <-timer.C:
		return nil, model.NewRPCError(model.ErrKindRPCTimeout, "rpc timed out after %s", f.timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// StartPCAPDump starts a PCAP capture on the given host.
func (f *Front) StartPCAPDump(ctx context.Context, host model.Host, outputFile, dumpedInterface string) (model.Task, error) {
	res, err := f.send(ctx, StartPCAPDumpCmd{Host: host, OutputFile: outputFile, DumpedInterface: dumpedInterface})
	if err != nil {
		return model.Task{}, err
	}
	return res.(TaskResult).Task, nil
}

// StartLogDump starts a LOG capture on the given host.
func (f *Front) StartLogDump(ctx context.Context, host model.Host, outputFile, dumpedFile string) (model.Task, error) {
	res, err := f.send(ctx, StartLogDumpCmd{Host: host, OutputFile: outputFile, DumpedFile: dumpedFile})
	if err != nil {
		return model.Task{}, err
	}
	return res.(TaskResult).Task, nil
}

// GetTaskInfo returns the current snapshot of one task.
func (f *Front) GetTaskInfo(ctx context.Context, taskID string) (model.Task, error) {
	res, err := f.send(ctx, GetTaskInfoCmd{TaskID: taskID})
	if err != nil {
		return model.Task{}, err
	}
	return res.(TaskResult).Task, nil
}

// GetAllTasks returns a snapshot of every registered task, in
// insertion order.
func (f *Front) GetAllTasks(ctx context.Context) ([]model.Task, error) {
	res, err := f.send(ctx, GetAllTasksCmd{})
	if err != nil {
		return nil, err
	}
	return res.(TaskListResult).Tasks, nil
}

// StopTask stops a running task and returns its final snapshot.
func (f *Front) StopTask(ctx context.Context, taskID string) (model.Task, error) {
	res, err := f.send(ctx, StopTaskCmd{TaskID: taskID})
	if err != nil {
		return model.Task{}, err
	}
	return res.(TaskResult).Task, nil
}

// Stop signals the subordinate to stop (by closing the command pipe),
// joins it, then joins the log forwarder. Idempotent.
func (f *Front) Stop() error {
	f.mu.Lock()
	if !f.started {
		f.mu.Unlock()
		return nil
	}
	cmdW, resR, logR, cmd := f.cmdW, f.resR, f.logR, f.cmd
	forwarderDone := f.logForwarderDone
	f.started = false
	f.mu.Unlock()

	cmdW.Close()

	var waitErr error
	if cmd != nil {
		waitErr = cmd.Wait()
	}

	<-forwarderDone
	resR.Close()
	logR.Close()

	if waitErr != nil {
		return fmt.Errorf("supervisor: subordinate process exited with error: %w", waitErr)
	}
	return nil
}

// RunSupervisor is the subordinate-side entry point, invoked by
// cmd/sniffd's registered reexec handler. fd 3/4/5 are the command
// read end, result write end, and log write end respectively, set up
// by Front.Start via cmd.ExtraFiles.
func RunSupervisor() {
	cmdR := os.NewFile(3, "cmd-pipe")
	resW := os.NewFile(4, "result-pipe")
	logW := os.NewFile(5, "log-pipe")

	sup := NewSupervisor(logW)
	sup.Run(cmdR, resW)
}
