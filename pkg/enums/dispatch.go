package enums

// DispatchDecision is the tri-state result of one pass through the dispatch pipeline.
type DispatchDecision string

const (
	DecisionSent    DispatchDecision = "sent"
	DecisionFailed  DispatchDecision = "failed"
	DecisionSkipped DispatchDecision = "skipped"
)

// SkipReason explains why the policy declined to deliver.
type SkipReason string

const (
	SkipDisabled    SkipReason = "disabled"
	SkipNoEndpoint  SkipReason = "no_endpoint"
	SkipNotFound    SkipReason = "not_found"
	SkipAlreadySent SkipReason = "already_sent"
	SkipNotPaid     SkipReason = "not_paid"
	SkipRateLimited SkipReason = "rate_limited"
	SkipInFlight    SkipReason = "in_flight"
	SkipStoreError  SkipReason = "store_error"
	// SkipDuplicateEvent marks a redelivered inbound event id. It says nothing
	// about whether the order itself was sent.
	SkipDuplicateEvent SkipReason = "duplicate_event"
)

// Retryable reports whether a later attempt may succeed without operator action.
func (r SkipReason) Retryable() bool {
	switch r {
	case SkipNotPaid, SkipRateLimited, SkipInFlight, SkipStoreError:
		return true
	default:
		return false
	}
}

// DispatchErrorKind classifies the last recorded failure of a dispatch.
type DispatchErrorKind string

const (
	ErrorKindConnection DispatchErrorKind = "connection_error"
	ErrorKindHTTP       DispatchErrorKind = "http_error"
	ErrorKindException  DispatchErrorKind = "exception"
)
