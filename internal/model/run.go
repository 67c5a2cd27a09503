package model

// RunResult summarizes one orchestrator run for an account.
type RunResult struct {
	AccountID   string     `json:"account_id"`
	Sync        SyncResult `json:"sync"`
	Parsed      int        `json:"parsed"`
	NoMatch     int        `json:"no_match"`
	Categorized int        `json:"categorized"`
	Failed      int        `json:"failed"`
	Review      int        `json:"review"`
}
