package supervisor

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"diagsniff/internal/model"
)

func TestWriteReadCommand_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	cmd := StartPCAPDumpCmd{
		Host:            model.Host{SSHAddress: "10.0.0.5", SSHPort: 22, Username: "u", Password: "p"},
		OutputFile:      "out.pcap",
		DumpedInterface: "eth0",
	}
	require.NoError(t, WriteCommand(&buf, cmd))

	got, err := ReadCommand(&buf)
	require.NoError(t, err)
	require.Equal(t, cmd, got)
}

func TestWriteReadResult_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	res := TaskResult{Task: model.Task{TaskID: "ABCD1234", Name: "proc_1.pcap_ABCD1234", TaskType: model.TaskTypePCAP, IsAlive: true}}
	require.NoError(t, WriteResult(&buf, res))

	got, err := ReadResult(&buf)
	require.NoError(t, err)
	require.Equal(t, res, got)
}

func TestWriteReadResult_ErrorRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	res := errorResultOf(model.NewRPCError(model.ErrKindUnknownTask, "Task with id=%q not found in task list.", "yhsf76ha"))
	require.NoError(t, WriteResult(&buf, res))

	got, err := ReadResult(&buf)
	require.NoError(t, err)
	errRes, ok := got.(ErrorResult)
	require.True(t, ok)
	require.Equal(t, model.ErrKindUnknownTask, errRes.Kind)
	require.Equal(t, `Task with id="yhsf76ha" not found in task list.`, errRes.Message)
}

func TestWriteReadLogRecord_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteLogRecord(&buf, "[info] supervisor: starting"))

	got, err := ReadLogRecord(&buf)
	require.NoError(t, err)
	require.Equal(t, "[info] supervisor: starting", got)
}

func TestMultipleFrames_Sequential(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCommand(&buf, GetAllTasksCmd{}))
	require.NoError(t, WriteCommand(&buf, StopTaskCmd{TaskID: "AAAAAAAA"}))

	first, err := ReadCommand(&buf)
	require.NoError(t, err)
	require.Equal(t, GetAllTasksCmd{}, first)

	second, err := ReadCommand(&buf)
	require.NoError(t, err)
	require.Equal(t, StopTaskCmd{TaskID: "AAAAAAAA"}, second)
}
