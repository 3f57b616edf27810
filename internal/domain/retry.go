package domain

import "strings"

// RetryConfig governs the Worker Runtime's queue-level retry policy.
// Per spec §4.1, Drivers themselves never retry a failed provider call;
// this config only covers asynq's own task-delivery retry (process
// crashes, transient connection errors before a Driver was ever reached),
// not provider-level retry, which the spec explicitly disables by default.
type RetryConfig struct {
	MaxRetries         int
	NonRetryableErrors []string
}

// DefaultRetryConfig matches the spec's "retries are a Worker Runtime
// responsibility, disabled by default" stance: one redelivery attempt,
// and only for errors not already classified as terminal.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 1,
		NonRetryableErrors: []string{
			ErrInvalidRequest.Error(),
			ErrNotFound.Error(),
			ErrConflict.Error(),
			ErrProviderTaskFailed.Error(),
			ErrUnauthorized.Error(),
		},
	}
}

// IsRetryable reports whether err's message matches a known non-retryable
// class. Unknown errors default to retryable, mirroring the teacher's
// conservative default.
func (c RetryConfig) IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, nonRetryable := range c.NonRetryableErrors {
		if strings.Contains(msg, nonRetryable) {
			return false
		}
	}
	return true
}
