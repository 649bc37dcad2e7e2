package supervisor

import (
	"encoding/gob"

	"diagsniff/internal/model"
)

// Result is the closed set of replies the supervisor sends back on
// the result queue. Results correspond one-to-one to commands; the
// queue carries no correlation ids.
type Result interface {
	isResult()
}

// TaskResult carries a single task snapshot, returned by every
// handler except get_all_tasks.
type TaskResult struct {
	Task model.Task
}

func (TaskResult) isResult() {}

// TaskListResult carries every registered task's snapshot, in
// insertion order.
type TaskListResult struct {
	Tasks []model.Task
}

func (TaskListResult) isResult() {}

// ErrorResult is how a handler's failure crosses the result queue: as
// structured data the front re-raises, never as a Go error value
// serialized across the process boundary.
type ErrorResult struct {
	Kind    model.ErrorKind
	Message string
}

func (ErrorResult) isResult() {}

func (e ErrorResult) toError() *model.RPCError {
	return &model.RPCError{Kind: e.Kind, Message: e.Message}
}

func errorResultOf(err error) ErrorResult {
	if rpcErr, ok := err.(*model.RPCError); ok {
		return ErrorResult{Kind: rpcErr.Kind, Message: rpcErr.Message}
	}
	return ErrorResult{Kind: model.ErrKindTransportError, Message: err.Error()}
}

func init() {
	gob.Register(TaskResult{})
	gob.Register(TaskListResult{})
	gob.Register(ErrorResult{})
}
