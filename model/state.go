package model

// WorkerState is a closed enum; a worker holds exactly one state at any
// instant.
type WorkerState string

const (
	StateIdle          WorkerState = "idle"
	StateBidding       WorkerState = "bidding"
	StateDelivering    WorkerState = "delivering"
	StateReturning     WorkerState = "returning"
	StateNegotiating   WorkerState = "negotiating"
	StateStranded      WorkerState = "stranded"
	StateRescueMission WorkerState = "rescueMission"
)

// CanBid reports whether a worker in this state may answer a call-for-bids.
// Only a worker idle at base is eligible.
func (s WorkerState) CanBid() bool {
	return s == StateIdle
}

// CanRescue reports whether a worker in this state may bid on a distress
// call. Stranded and rescuing workers are excluded.
func (s WorkerState) CanRescue() bool {
	switch s {
	case StateStranded, StateRescueMission:
		return false
	}
	return true
}
