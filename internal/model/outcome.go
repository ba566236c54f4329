package model

// Outcome is the terminal state of one dequeued URL.
type Outcome int

const (
	// OutcomeRecorded means a PageRecord was produced.
	OutcomeRecorded Outcome = iota

	// OutcomeDead means the fetch failed or returned an error status.
	OutcomeDead

	// OutcomeTimeout means the fetch exceeded its deadline. It is counted
	// separately but handled like OutcomeDead.
	OutcomeTimeout

	// OutcomeFailedParse means the content could not be extracted.
	OutcomeFailedParse

	// OutcomeDuplicate means the post-redirect URL had already been visited.
	OutcomeDuplicate

	// OutcomeOverBudget means the page was fetched after the budget filled.
	OutcomeOverBudget

	// OutcomeOffsite means the redirects ended outside the limiting domain.
	OutcomeOffsite

	// OutcomeInterrupted means the crawl was canceled mid-fetch and the URL
	// was returned to the frontier.
	OutcomeInterrupted
)

// String returns a short lowercase name for the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeRecorded:
		return "recorded"
	case OutcomeDead:
		return "dead"
	case OutcomeTimeout:
		return "timeout"
	case OutcomeFailedParse:
		return "failed_parse"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeOverBudget:
		return "over_budget"
	case OutcomeOffsite:
		return "offsite"
	case OutcomeInterrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}
