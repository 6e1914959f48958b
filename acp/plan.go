package acp

// Plan is an execution plan for accomplishing complex tasks.
//
// Plans consist of multiple entries representing individual tasks or goals.
// Agents report plans to clients through session updates to provide visibility
// into their execution strategy. Plans can evolve during execution as the
// agent discovers new requirements or completes tasks.
type Plan struct {
	// Entries is the list of tasks to be accomplished. When updating a plan
	// the agent must send the complete list of entries with their current
	// status; the client replaces the entire plan with each update.
	Entries []PlanEntry `json:"entries"`
	Meta    Meta        `json:"_meta,omitempty"`
}

// PlanEntry is a single task or goal that the agent intends to accomplish as
// part of fulfilling the user's request.
type PlanEntry struct {
	// Content is a human-readable description of what the task aims to
	// accomplish.
	Content  string            `json:"content"`
	Priority PlanEntryPriority `json:"priority"`
	Status   PlanEntryStatus   `json:"status"`
	Meta     Meta              `json:"_meta,omitempty"`
}

// PlanEntryPriority indicates the relative importance of a plan entry.
type PlanEntryPriority string

const (
	PlanEntryPriorityHigh   PlanEntryPriority = "high"
	PlanEntryPriorityMedium PlanEntryPriority = "medium"
	PlanEntryPriorityLow    PlanEntryPriority = "low"
)

// PlanEntryStatus tracks the lifecycle of a plan entry from planning through
// completion.
type PlanEntryStatus string

const (
	PlanEntryStatusPending    PlanEntryStatus = "pending"
	PlanEntryStatusInProgress PlanEntryStatus = "in_progress"
	PlanEntryStatusCompleted  PlanEntryStatus = "completed"
)
