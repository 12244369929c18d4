package guard

import "time"

// Result is the verdict of a guard check.
type Result struct {
	Allowed    bool          `json:"allowed"`
	Reason     string        `json:"reason,omitempty"`
	Guard      string        `json:"guard,omitempty"`
	RetryAfter time.Duration `json:"retryAfter,omitempty"`
}
