package event

import "github.com/courierkit/dispatch/model"

// Notification payloads consumed by the display/log collaborator. All are
// fire-and-forget; the core never reads state back through this package.

type TaskCreated struct {
	Task *model.Task `json:"task"`
}

type TaskOffered struct {
	WorkerID string      `json:"workerId"`
	Task     *model.Task `json:"task"`
}

type TaskPickedUp struct {
	WorkerID string      `json:"workerId"`
	Task     *model.Task `json:"task"`
}

type WorkerStateChanged struct {
	WorkerID string            `json:"workerId"`
	State    model.WorkerState `json:"state"`
}

type WorkerLoadChanged struct {
	WorkerID string `json:"workerId"`
	Load     int    `json:"load"`
	Capacity int    `json:"capacity"`
}

type AuctionResult struct {
	Task   *model.Task `json:"task"`
	Winner string      `json:"winner"`
	Bids   []model.Bid `json:"bids"`
}

type DistressRaised struct {
	WorkerID  string      `json:"workerId"`
	Task      *model.Task `json:"task"`
	Elapsed   int         `json:"elapsed"`
	Remaining int         `json:"remaining"`
}

type RescueAwarded struct {
	Rescuer  string `json:"rescuer"`
	Stranded string `json:"stranded"`
}

type TradeCompleted struct {
	Task       *model.Task `json:"task"`
	FromWorker string      `json:"fromWorker"`
	ToWorker   string      `json:"toWorker"`
}

type LogLine struct {
	Text string `json:"text"`
}
