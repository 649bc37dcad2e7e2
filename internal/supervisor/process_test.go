package supervisor

import (
	"bytes"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"diagsniff/internal/model"
)

func pipePair(t *testing.T) (*os.File, *os.File) {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)
	return r, w
}

func newTestSupervisor() *Supervisor {
	return NewSupervisor(&bytes.Buffer{})
}

// Without any prior start, get_task_info and stop_task on an unknown
// id must both fail the same way, message included.
func TestUnknownTask(t *testing.T) {
	s := newTestSupervisor()

	infoRes := s.dispatch(GetTaskInfoCmd{TaskID: "yhsf76ha"})
	errRes, ok := infoRes.(ErrorResult)
	require.True(t, ok)
	require.Equal(t, model.ErrKindUnknownTask, errRes.Kind)
	require.Equal(t, `Task with id="yhsf76ha" not found in task list.`, errRes.Message)

	stopRes := s.dispatch(StopTaskCmd{TaskID: "yhsf76ha"})
	errRes2, ok := stopRes.(ErrorResult)
	require.True(t, ok)
	require.Equal(t, model.ErrKindUnknownTask, errRes2.Kind)
	require.Equal(t, `Task with id="yhsf76ha" not found in task list.`, errRes2.Message)
}

func TestDispatch_UnknownCommand(t *testing.T) {
	s := newTestSupervisor()
	res := s.dispatch(nil)
	errRes, ok := res.(ErrorResult)
	require.True(t, ok)
	require.Equal(t, model.ErrKindUnknownCommand, errRes.Kind)
}

func TestDispatch_GetAllTasksEmpty(t *testing.T) {
	s := newTestSupervisor()
	res := s.dispatch(GetAllTasksCmd{})
	listRes, ok := res.(TaskListResult)
	require.True(t, ok)
	require.Empty(t, listRes.Tasks)
}

// TestStartPCAPDump_RegistersTaskImmediately exercises the handler
// without a reachable SSH target: the worker's own connection attempt
// fails asynchronously and logs an error, but start_pcap_dump itself
// must still mint a task id and register a snapshot synchronously —
// none of those steps wait on the remote command succeeding.
func TestStartPCAPDump_RegistersTaskImmediately(t *testing.T) {
	s := newTestSupervisor()
	host := model.Host{SSHAddress: "127.0.0.1", SSHPort: 1, Username: "u", Password: "p"}

	res := s.dispatch(StartPCAPDumpCmd{Host: host, OutputFile: t.TempDir() + "/out.pcap", DumpedInterface: "eth0"})
	taskRes, ok := res.(TaskResult)
	require.True(t, ok)
	require.Len(t, taskRes.Task.TaskID, 8)
	require.Equal(t, model.TaskTypePCAP, taskRes.Task.TaskType)

	infoRes := s.dispatch(GetTaskInfoCmd{TaskID: taskRes.Task.TaskID})
	_, ok = infoRes.(TaskResult)
	require.True(t, ok)

	stopRes := s.dispatch(StopTaskCmd{TaskID: taskRes.Task.TaskID})
	stopTask, ok := stopRes.(TaskResult)
	require.True(t, ok)
	require.False(t, stopTask.Task.IsAlive)

	// A stopped task is removed from the table; a subsequent lookup
	// must fail with UnknownTask.
	afterStop := s.dispatch(GetTaskInfoCmd{TaskID: taskRes.Task.TaskID})
	_, ok = afterStop.(ErrorResult)
	require.True(t, ok)
}

func TestGetAllTasks_PreservesInsertionOrder(t *testing.T) {
	s := newTestSupervisor()
	host := model.Host{SSHAddress: "127.0.0.1", SSHPort: 1, Username: "u", Password: "p"}

	var ids []string
	for i := 0; i < 3; i++ {
		res := s.dispatch(StartLogDumpCmd{Host: host, OutputFile: t.TempDir() + "/out.log", DumpedFile: "/tmp/x.log"})
		taskRes := res.(TaskResult)
		ids = append(ids, taskRes.Task.TaskID)
	}

	all := s.dispatch(GetAllTasksCmd{}).(TaskListResult)
	require.Len(t, all.Tasks, 3)
	for i, task := range all.Tasks {
		require.Equal(t, ids[i], task.TaskID)
	}

	for _, id := range ids {
		s.dispatch(StopTaskCmd{TaskID: id})
	}
}

// TestRun_ShutsDownOnCommandPipeClose verifies the shutdown path:
// closing the front's write end of the command pipe must make Run
// return, after stopping every registered worker.
func TestRun_ShutsDownOnCommandPipeClose(t *testing.T) {
	cmdR, cmdW := pipePair(t)
	resR, resW := pipePair(t)

	s := newTestSupervisor()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.Run(cmdR, resW)
	}()

	require.NoError(t, WriteCommand(cmdW, GetAllTasksCmd{}))
	res, err := ReadResult(resR)
	require.NoError(t, err)
	require.IsType(t, TaskListResult{}, res)

	require.NoError(t, cmdW.Close())

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after command pipe close")
	}
}
