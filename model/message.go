package model

import "time"

// CoordinatorAddress is the well-known inbox address of the coordinator
// actor.
const CoordinatorAddress = "coordinator"

// Kind tags an envelope with its message type. The vocabulary is closed;
// each actor dispatches on it through a handler table.
type Kind string

const (
	KindRequestTask        Kind = "REQUEST_TASK"
	KindOffer              Kind = "OFFER"
	KindRefuse             Kind = "REFUSE"
	KindConfirmPickup      Kind = "CONFIRM_PICKUP"
	KindCFP                Kind = "CFP"
	KindBid                Kind = "BID"
	KindAward              Kind = "AWARD"
	KindDeny               Kind = "DENY"
	KindDelivered          Kind = "DELIVERED"
	KindDistress           Kind = "DISTRESS"
	KindRescueBid          Kind = "RESCUE_BID"
	KindRescueAward        Kind = "RESCUE_AWARD"
	KindRescued            Kind = "RESCUED"
	KindTradeRequest       Kind = "TRADE_REQUEST"
	KindTradeAccept        Kind = "TRADE_ACCEPT"
	KindTradeRefuse        Kind = "TRADE_REFUSE"
	KindTradeOpportunities Kind = "TRADE_OPPORTUNITIES"
	KindPause              Kind = "PAUSE"
	KindResume             Kind = "RESUME"

	// Internal control messages carried over the same envelopes.
	KindTick           Kind = "TICK"
	KindSubmitTask     Kind = "SUBMIT_TASK"
	KindTriggerFailure Kind = "TRIGGER_FAILURE"
)

// RefuseReason explains a refusal; capacity reasons are recoverable by the
// requester retrying or negotiating, never fatal.
type RefuseReason string

const (
	ReasonNoTasks    RefuseReason = "NO_TASKS"
	ReasonOverweight RefuseReason = "OVERWEIGHT"
	ReasonOvercount  RefuseReason = "OVERCOUNT"
	ReasonOverloaded RefuseReason = "OVERLOADED"

	// Stale-negotiation refusals.
	ReasonAlreadyNegotiating   RefuseReason = "ALREADY_NEGOTIATING"
	ReasonTaskUnderNegotiation RefuseReason = "TASK_UNDER_NEGOTIATION"
	ReasonTaskGone             RefuseReason = "TASK_GONE"
	ReasonTaskDelivered        RefuseReason = "TASK_DELIVERED"
	ReasonNoAdvantage          RefuseReason = "NO_ADVANTAGE"
)

// Envelope is the single message type exchanged between actors. Kind selects
// which payload fields are meaningful; unused fields stay zero.
type Envelope struct {
	ID   string `json:"id"`
	From string `json:"from"`
	To   string `json:"to"`
	Kind Kind   `json:"kind"`

	Task   *Task        `json:"task,omitempty"`
	TaskID string       `json:"taskId,omitempty"`
	Reason RefuseReason `json:"reason,omitempty"`

	// Request payload: current load and carried count of the requester.
	Load  int `json:"load,omitempty"`
	Items int `json:"items,omitempty"`

	// Bid payload.
	Score        int       `json:"score,omitempty"`
	PriorityRank int       `json:"priorityRank,omitempty"`
	At           time.Time `json:"at,omitempty"`

	// Delivery and rescue payload.
	Elapsed    int    `json:"elapsed,omitempty"`
	Remaining  int    `json:"remaining,omitempty"`
	TravelTime int    `json:"travelTime,omitempty"`
	StrandedID string `json:"strandedId,omitempty"`

	// Denial payload.
	Winner string `json:"winner,omitempty"`
	Gap    int    `json:"gap,omitempty"`

	// Trade payload.
	Holder        string        `json:"holder,omitempty"`
	Requester     string        `json:"requester,omitempty"`
	Opportunities []Opportunity `json:"opportunities,omitempty"`
}

// Opportunity names an in-flight task a holder could give up to a requester.
type Opportunity struct {
	Holder string `json:"holder"`
	TaskID string `json:"taskId"`
	Task   *Task  `json:"task,omitempty"`
}
