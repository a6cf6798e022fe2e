package locator

// Outcome classifies how a resolution was answered.
type Outcome uint8

const (
	OutcomeCached   Outcome = iota // Answered from the memo.
	OutcomeFast                    // Single unconditional binding.
	OutcomeFallback                // Won by scoring the binding chain.
	OutcomeNotFound                // No binding qualified.
)

// String returns the lower-case name of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeCached:
		return "cached"
	case OutcomeFast:
		return "fast"
	case OutcomeFallback:
		return "fallback"
	case OutcomeNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Observer receives a notification for every call to Resolve. A cached miss
// is reported as OutcomeCached. Implementations must be safe for concurrent
// use and must not block.
type Observer interface {
	Observe(q Query, o Outcome)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(q Query, o Outcome)

// Observe implements the Observer interface.
func (f ObserverFunc) Observe(q Query, o Outcome) { f(q, o) }

type nopObserver struct{}

func (nopObserver) Observe(Query, Outcome) {}
