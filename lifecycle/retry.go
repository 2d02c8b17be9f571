package lifecycle

// DefaultMaxAttempts is how many link drops are tolerated before the device
// has been initialized once.
const DefaultMaxAttempts = 5

// RetryCounter is the bounded reconnect budget used before the first
// successful initialization. It is owned by the bus consumer and is not safe
// for concurrent use.
type RetryCounter struct {
	attempts    int
	maxAttempts int
	disabled    bool
}

func NewRetryCounter(maxAttempts int) *RetryCounter {
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}
	return &RetryCounter{maxAttempts: maxAttempts}
}

// Fail records a failed attempt and reports whether another automatic retry
// is allowed. Once the budget is spent retry stays disabled for the life of
// the process.
func (r *RetryCounter) Fail() bool {
	if r.disabled {
		return false
	}
	r.attempts++
	if r.attempts >= r.maxAttempts {
		r.disabled = true
		return false
	}
	return true
}

// Reset zeroes the attempt count. It does not re-enable a spent budget.
func (r *RetryCounter) Reset() {
	r.attempts = 0
}

func (r *RetryCounter) Enabled() bool {
	return !r.disabled
}

func (r *RetryCounter) Attempts() int {
	return r.attempts
}
