package model

import "time"

// Bid is a worker's answer to a call-for-bids.
type Bid struct {
	WorkerID     string    `json:"workerId"`
	Score        int       `json:"score"`
	PriorityRank int       `json:"priorityRank"`
	At           time.Time `json:"at"`
}

// RescueBid is a worker's answer to a distress call; lower is better.
type RescueBid struct {
	WorkerID string    `json:"workerId"`
	Time     int       `json:"time"`
	At       time.Time `json:"at"`
}

// DistressCall records a mid-delivery failure awaiting rescue.
type DistressCall struct {
	WorkerID  string      `json:"workerId"`
	Task      *Task       `json:"task"`
	Elapsed   int         `json:"elapsed"`
	Remaining int         `json:"remaining"`
	Bids      []RescueBid `json:"bids,omitempty"`
}

// TradeNegotiation exists only between the moment a holder is asked to give
// up a task and the moment the transfer commits or is refused. At most one
// per task and one per holder at a time.
type TradeNegotiation struct {
	Requester string `json:"requester"`
	Holder    string `json:"holder"`
	TaskID    string `json:"taskId"`
	Locked    bool   `json:"locked"`
}
