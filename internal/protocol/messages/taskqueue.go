package messages

import "github.com/zjrosen/agentpanel/internal/protocol/schema"

// TaskStatus is the lifecycle state of a queued task.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskActive    TaskStatus = "active"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
)

// Task is one entry of the host's task queue.
type Task struct {
	ID          string     `json:"id" yaml:"id"`
	Description string     `json:"description" yaml:"description"`
	Status      TaskStatus `json:"status" yaml:"status"`
	AgentID     string     `json:"agentId,omitempty" yaml:"agent_id,omitempty"`
	CreatedAt   *float64   `json:"createdAt,omitempty" yaml:"created_at,omitempty"`
}

// TaskQueue is the task-queue-update payload.
type TaskQueue struct {
	ActiveTask     *Task  `json:"activeTask,omitempty" yaml:"active_task,omitempty"`
	PendingTasks   []Task `json:"pendingTasks" yaml:"pending_tasks"`
	CompletedTasks []Task `json:"completedTasks" yaml:"completed_tasks"`
}

var taskShape = schema.Object(
	schema.Field("id", schema.ID()),
	schema.Field("description", schema.String()),
	schema.Field("status", schema.Enum(string(TaskPending), string(TaskActive), string(TaskCompleted), string(TaskFailed))),
	schema.Optional("agentId", schema.ID()),
	schema.Optional("createdAt", schema.Finite()),
)

var (
	// GetTaskQueueStatus asks the host to broadcast the queue.
	GetTaskQueueStatus = schema.Define[schema.Empty](schema.Default,
		schema.SubsystemTaskQueue, "get-task-queue-status", schema.ToHost, schema.None())

	// TaskQueueUpdate replaces the whole queue.
	TaskQueueUpdate = schema.Define[TaskQueue](schema.Default,
		schema.SubsystemTaskQueue, "task-queue-update", schema.ToUI, schema.Object(
			schema.Optional("activeTask", taskShape),
			schema.Field("pendingTasks", schema.ArrayOf(taskShape)),
			schema.Field("completedTasks", schema.ArrayOf(taskShape)),
		))
)
