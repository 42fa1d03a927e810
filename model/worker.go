package model

import "math"

// WorkerSpec describes a worker's static capabilities, supplied once at
// startup and never mutated afterwards.
type WorkerSpec struct {
	ID             string  `json:"id" yaml:"id"`
	CapacityWeight int     `json:"capacityWeight" yaml:"capacityWeight"`
	CapacitySlots  int     `json:"capacitySlots" yaml:"capacitySlots"`
	PriorityRank   int     `json:"priorityRank" yaml:"priorityRank"`
	SpeedFactor    float64 `json:"speedFactor" yaml:"speedFactor"`
}

// ScaledDuration converts a task's base duration into this worker's actual
// travel time, never below one tick.
func (s WorkerSpec) ScaledDuration(base int) int {
	factor := s.SpeedFactor
	if factor <= 0 {
		factor = 1
	}
	scaled := int(math.Round(float64(base) * factor))
	if scaled < 1 {
		scaled = 1
	}
	return scaled
}
