// Package llm provides the inference fallback used when deterministic extraction or
// categorization fails. Calls are cached by fingerprint, budgeted per user and day,
// rate limited and retried with backoff.
package llm
