package supervisor

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"diagsniff/internal/capture"
	"diagsniff/internal/model"
	"diagsniff/internal/sshpool"
)

// logForwardHook is a zerolog.Hook that ships every log record the
// supervisor emits across the log pipe to the front process, in
// addition to the record going to the logger's normal writer.
type logForwardHook struct {
	w io.Writer
}

func (h *logForwardHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	if msg == "" {
		return
	}
	_ = WriteLogRecord(h.w, fmt.Sprintf("[%s] %s", level.String(), msg))
}

// supervisorLogger adapts a zerolog.Logger to capture.Logger.
type supervisorLogger struct {
	logger zerolog.Logger
}

func (l *supervisorLogger) Infof(format string, args ...any)  { l.logger.Info().Msgf(format, args...) }
func (l *supervisorLogger) Errorf(format string, args ...any) { l.logger.Error().Msgf(format, args...) }

// Supervisor is the worker-side half of the capture runtime: it owns
// the pool and the task table inside the subordinate process, and
// dispatches commands read off the command pipe.
type Supervisor struct {
	pool   *sshpool.Pool
	logger *supervisorLogger
	pid    int

	mu    sync.Mutex
	tasks map[string]*capture.Worker
	order []string
}

// NewSupervisor builds a Supervisor whose logger forwards every
// record to logPipe (the write end the front process reads from) and
// also prints locally to stderr.
func NewSupervisor(logPipe io.Writer) *Supervisor {
	zl := zerolog.New(os.Stderr).With().Timestamp().Logger().Hook(&logForwardHook{w: logPipe})
	return &Supervisor{
		pool:   sshpool.New(),
		logger: &supervisorLogger{logger: zl},
		pid:    os.Getpid(),
		tasks:  make(map[string]*capture.Worker),
	}
}

// Run loops reading commands from cmdR and writing one result per
// command to resultW. The front signals shutdown by closing its end
// of the command pipe rather than by a separate stop event: the two
// processes share no memory for an event flag to live in, and a
// blocking pipe Read unblocks immediately when the writer closes.
// Run returns once that EOF is observed, after stopping every worker
// in insertion order.
func (s *Supervisor) Run(cmdR io.Reader, resultW io.Writer) {
	s.logger.Infof("supervisor: dispatch loop starting (pid=%d)", s.pid)
	for {
		cmd, err := ReadCommand(cmdR)
		if err != nil {
			s.logger.Infof("supervisor: command pipe closed (%v), shutting down", err)
			s.shutdown()
			return
		}
		result := s.dispatch(cmd)
		if err := WriteResult(resultW, result); err != nil {
			s.logger.Errorf("supervisor: failed to write result: %v", err)
		}
	}
}

func (s *Supervisor) dispatch(cmd Command) Result {
	switch c := cmd.(type) {
	case StartPCAPDumpCmd:
		return s.startPCAPDump(c)
	case StartLogDumpCmd:
		return s.startLogDump(c)
	case GetTaskInfoCmd:
		return s.getTaskInfo(c.TaskID)
	case GetAllTasksCmd:
		return s.getAllTasks()
	case StopTaskCmd:
		return s.stopTask(c.TaskID)
	default:
		return errorResultOf(model.NewRPCError(model.ErrKindUnknownCommand, "unknown command %T", cmd))
	}
}

func (s *Supervisor) taskExists(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tasks[id]
	return ok
}

func (s *Supervisor) register(id string, w *capture.Worker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[id] = w
	s.order = append(s.order, id)
}

func snapshot(id string, w *capture.Worker) model.Task {
	return model.Task{TaskID: id, Name: w.Name(), TaskType: w.TaskType(), IsAlive: w.IsAlive()}
}

func (s *Supervisor) startPCAPDump(c StartPCAPDumpCmd) Result {
	iface := c.DumpedInterface
	if iface == "" {
		iface = "any"
	}
	taskID := sshpool.NewUniqueID(s.taskExists)
	name := fmt.Sprintf("proc_%d.pcap_%s", s.pid, taskID)
	worker := capture.NewPCAPWorker(name, c.Host, iface, c.OutputFile, s.pool, s.logger)
	worker.Start()
	s.register(taskID, worker)
	return TaskResult{Task: snapshot(taskID, worker)}
}

func (s *Supervisor) startLogDump(c StartLogDumpCmd) Result {
	taskID := sshpool.NewUniqueID(s.taskExists)
	name := fmt.Sprintf("proc_%d.log_%s", s.pid, taskID)
	worker := capture.NewLogWorker(name, c.Host, c.DumpedFile, c.OutputFile, s.pool, s.logger)
	worker.Start()
	s.register(taskID, worker)
	return TaskResult{Task: snapshot(taskID, worker)}
}

func unknownTask(id string) Result {
	return errorResultOf(model.NewRPCError(model.ErrKindUnknownTask, "Task with id=%q not found in task list.", id))
}

func (s *Supervisor) getTaskInfo(id string) Result {
	s.mu.Lock()
	w, ok := s.tasks[id]
	s.mu.Unlock()
	if !ok {
		return unknownTask(id)
	}
	return TaskResult{Task: snapshot(id, w)}
}

func (s *Supervisor) getAllTasks() Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	tasks := make([]model.Task, 0, len(s.order))
	for _, id := range s.order {
		if w, ok := s.tasks[id]; ok {
			tasks = append(tasks, snapshot(id, w))
		}
	}
	return TaskListResult{Tasks: tasks}
}

func (s *Supervisor) stopTask(id string) Result {
	s.mu.Lock()
	w, ok := s.tasks[id]
	if ok {
		delete(s.tasks, id)
		s.removeFromOrderLocked(id)
	}
	s.mu.Unlock()
	if !ok {
		return unknownTask(id)
	}
	w.Stop()
	return TaskResult{Task: snapshot(id, w)}
}

func (s *Supervisor) removeFromOrderLocked(id string) {
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}

// shutdown stops every registered worker in insertion order, then
// tears down the pool.
func (s *Supervisor) shutdown() {
	s.mu.Lock()
	order := append([]string(nil), s.order...)
	s.mu.Unlock()

	for _, id := range order {
		s.mu.Lock()
		w := s.tasks[id]
		s.mu.Unlock()
		if w != nil {
			w.Stop()
		}
	}
	s.pool.DestroyAll()
	s.logger.Infof("supervisor: shutdown complete")
}
