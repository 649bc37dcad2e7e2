package capture

import (
	"testing"

	"github.com/stretchr/testify/require"

	"diagsniff/internal/model"
	"diagsniff/internal/sshpool"
)

type noopLogger struct{}

func (noopLogger) Infof(format string, args ...any)  {}
func (noopLogger) Errorf(format string, args ...any) {}

func TestNewPCAPWorker_CommandShape(t *testing.T) {
	host := model.Host{SSHAddress: "10.0.0.1", SSHPort: 22}
	w := NewPCAPWorker("proc_1.pcap_AB12CD34", host, "eth0", "/tmp/out.pcap", nil, noopLogger{})

	require.Equal(t, model.TaskTypePCAP, w.TaskType())
	require.Equal(t, "proc_1.pcap_AB12CD34", w.Name())
	require.Equal(t, "tcpdump -i eth0 -U -w - -f not tcp port 22", w.command)
	require.False(t, w.IsAlive())
}

func TestNewLogWorker_CommandShape(t *testing.T) {
	host := model.Host{SSHAddress: "10.0.0.1", SSHPort: 22}
	w := NewLogWorker("proc_1.log_AB12CD34", host, "/var/log/app.log", "/tmp/out.log", nil, noopLogger{})

	require.Equal(t, model.TaskTypeLog, w.TaskType())
	require.Equal(t, "tail --follow=name --retry --lines=1 /var/log/app.log", w.command)
}

func TestDecodeStderr_InvalidUTF8Fallback(t *testing.T) {
	valid := []byte("connection refused")
	require.Equal(t, "connection refused", decodeStderr(valid))

	invalid := []byte{0xff, 0xfe, 0x80}
	decoded := decodeStderr(invalid)
	require.NotEqual(t, string(invalid), decoded)
	require.Contains(t, decoded, `\x`)
}

func TestWorker_StartStop_NoTransport(t *testing.T) {
	// Acquire fails immediately (pool is nil would panic, so use an
	// empty real pool with an address nothing listens on) and the
	// worker must still exit cleanly and report not-alive.
	host := model.Host{SSHAddress: "127.0.0.1", SSHPort: 1, Username: "u", Password: "p"}
	w := NewLogWorker("t.log_X", host, "/var/log/app.log", t.TempDir()+"/out.log", sshpool.New(), noopLogger{})

	w.Start()
	w.Stop()
	require.False(t, w.IsAlive())
}
