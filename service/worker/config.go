package worker

// BidWeights are the auction score coefficients.
type BidWeights struct {
	Priority int `json:"priority" yaml:"priority"`
	Capacity int `json:"capacity" yaml:"capacity"`
	Distance int `json:"distance" yaml:"distance"`
	Urgency  int `json:"urgency" yaml:"urgency"`
}

// Config tunes a worker's behaviour. All durations are ticks.
type Config struct {
	Bid BidWeights `json:"bid" yaml:"bid"`

	// OverloadThreshold is the number of consecutive deliveries after
	// which the worker refuses assignment with OVERLOADED; zero disables
	// the policy.
	OverloadThreshold int `json:"overloadThreshold" yaml:"overloadThreshold"`
	OverloadCooldown  int `json:"overloadCooldown" yaml:"overloadCooldown"`

	// FatiguePenalty is added to rescue bids per consecutive delivery.
	FatiguePenalty int `json:"fatiguePenalty" yaml:"fatiguePenalty"`

	// RetryBackoff delays the next task request after a NO_TASKS refusal.
	RetryBackoff int `json:"retryBackoff" yaml:"retryBackoff"`

	TradeEnabled         bool `json:"tradeEnabled" yaml:"tradeEnabled"`
	TradeMinPriorityDiff int  `json:"tradeMinPriorityDiff" yaml:"tradeMinPriorityDiff"`
	TradeMinLoadDiff     int  `json:"tradeMinLoadDiff" yaml:"tradeMinLoadDiff"`
	NegotiationTimeout   int  `json:"negotiationTimeout" yaml:"negotiationTimeout"`

	// Seed drives the rescue-bid jitter; runs with the same seed are
	// reproducible.
	Seed int64 `json:"seed" yaml:"seed"`
}

// DefaultConfig returns the standard worker tuning.
func DefaultConfig() Config {
	return Config{
		Bid:                  BidWeights{Priority: 20, Capacity: 10, Distance: 2, Urgency: 1},
		OverloadThreshold:    3,
		OverloadCooldown:     5,
		FatiguePenalty:       2,
		RetryBackoff:         2,
		TradeEnabled:         true,
		TradeMinPriorityDiff: 2,
		TradeMinLoadDiff:     2,
		NegotiationTimeout:   3,
		Seed:                 1,
	}
}
