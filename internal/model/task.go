package model

// TaskType is a closed enumeration of capture variants. The string
// values "log_dump" and "pcap_dump" are wire-visible and fixed.
type TaskType string

const (
	TaskTypeLog  TaskType = "log_dump"
	TaskTypePCAP TaskType = "pcap_dump"
)

// Task is a snapshot of a running (or just-stopped) capture, not a handle.
// Authoritative state lives inside the supervisor's task table.
type Task struct {
	TaskID   string   `json:"task_id"`
	Name     string   `json:"name"`
	TaskType TaskType `json:"task_type"`
	IsAlive  bool     `json:"is_alive"`
}
