package lifecycle

import "testing"

func TestRetryCounter(t *testing.T) {
	r := NewRetryCounter(3)

	if !r.Fail() || !r.Fail() {
		t.Fatal("first two failures should allow a retry")
	}
	if r.Fail() {
		t.Fatal("third failure should exhaust the budget")
	}
	if r.Enabled() || r.Attempts() != 3 {
		t.Errorf("enabled %v attempts %d", r.Enabled(), r.Attempts())
	}

	r.Reset()
	if r.Attempts() != 0 || r.Enabled() {
		t.Error("reset must zero attempts without re-enabling")
	}
	if r.Fail() {
		t.Error("a disabled counter never allows a retry")
	}
}

func TestRetryCounterDefault(t *testing.T) {
	r := NewRetryCounter(0)
	for i := 0; i < DefaultMaxAttempts-1; i++ {
		if !r.Fail() {
			t.Fatalf("failure %d exhausted the default budget", i+1)
		}
	}
	if r.Fail() {
		t.Error("default budget should be spent")
	}
}
