package model

// Category classifies a task; it determines the synthesized duration, weight,
// urgency and priority flag of regenerated tasks.
type Category string

const (
	CategoryUrgent   Category = "urgent"
	CategoryStandard Category = "standard"
	CategoryBulk     Category = "bulk"
)

// Task is an immutable unit of delivery work. It is owned by the pool until
// offered or assigned, then by exactly one worker until delivered or
// transferred.
type Task struct {
	ID       string   `json:"id" yaml:"id"`
	Duration int      `json:"duration" yaml:"duration"`
	Weight   int      `json:"weight" yaml:"weight"`
	Category Category `json:"category" yaml:"category"`
	Urgency  int      `json:"urgency" yaml:"urgency"`
	Priority bool     `json:"priority" yaml:"priority"`
}
