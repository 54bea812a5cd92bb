package domain

// AttemptResult reports the failure count after an increment and whether the
// identifier is now blocked.
type AttemptResult struct {
	Attempts  int  `json:"attempts"`
	IsBlocked bool `json:"isBlocked"`
}
