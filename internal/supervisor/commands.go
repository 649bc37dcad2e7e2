package supervisor

import (
	"encoding/gob"

	"diagsniff/internal/model"
)

// Command is the closed set of requests the front can send the
// supervisor. The dispatch loop type-switches on Command rather than
// looking up a handler by string name; the unexported isCommand method
// keeps the set closed to this package, and a Command the switch does
// not handle is answered with an unknown_command error result.
type Command interface {
	isCommand()
}

// StartPCAPDumpCmd starts a tcpdump-backed capture. DumpedInterface
// defaults to "any" when empty.
type StartPCAPDumpCmd struct {
	Host            model.Host
	OutputFile      string
	DumpedInterface string
}

func (StartPCAPDumpCmd) isCommand() {}

// StartLogDumpCmd starts a tail-backed capture of a remote file.
type StartLogDumpCmd struct {
	Host       model.Host
	OutputFile string
	DumpedFile string
}

func (StartLogDumpCmd) isCommand() {}

// GetTaskInfoCmd requests the current snapshot of one task.
type GetTaskInfoCmd struct {
	TaskID string
}

func (GetTaskInfoCmd) isCommand() {}

// GetAllTasksCmd requests a snapshot of every registered task, in
// insertion order.
type GetAllTasksCmd struct{}

func (GetAllTasksCmd) isCommand() {}

// StopTaskCmd stops a running task and removes it from the table.
type StopTaskCmd struct {
	TaskID string
}

func (StopTaskCmd) isCommand() {}

func init() {
	gob.Register(StartPCAPDumpCmd{})
	gob.Register(StartLogDumpCmd{})
	gob.Register(GetTaskInfoCmd{})
	gob.Register(GetAllTasksCmd{})
	gob.Register(StopTaskCmd{})
}
