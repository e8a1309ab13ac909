package blackboard

// TaskCounts holds the number of tasks in each queue bucket.
type TaskCounts struct {
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// Summary is a consistent snapshot of the blackboard used for status broadcasts.
type Summary struct {
	Tasks       TaskCounts               `json:"tasks"`
	Resources   map[string][]string      `json:"resources"`    // category → sorted resource names
	AgentStatus map[AgentRole]AgentState `json:"agent_status"` // role → idle/busy
	EventCount  int64                    `json:"event_count"`
}

// Total returns the number of tracked tasks across all buckets.
func (c TaskCounts) Total() int {
	return c.Pending + c.Running + c.Completed + c.Failed
}

// Drained reports whether no task is pending or running.
func (s Summary) Drained() bool {
	return s.Tasks.Pending == 0 && s.Tasks.Running == 0
}
