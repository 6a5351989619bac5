package game

// Outcome is the typed result of applying one event to an instance. It is
// what the orchestrator (and tests) branch on; user-visible replies have
// already been sent by the time an outcome is returned.
type Outcome int

const (
	// OutcomeOK means the operation applied cleanly.
	OutcomeOK Outcome = iota
	// OutcomeIgnored means the event was valid to receive but had no effect
	// (wrong stage, paused game, non-responder chatter).
	OutcomeIgnored
	// OutcomeAlreadyRegistered signals an idempotent duplicate registration.
	OutcomeAlreadyRegistered
	// OutcomeNotRegistered signals a roster miss.
	OutcomeNotRegistered
	// OutcomeTooLate signals a buzz that lost the race.
	OutcomeTooLate
	// OutcomeWrongAnswer signals a non-matching submission by the responder.
	OutcomeWrongAnswer
	// OutcomeCorrect signals an accepted answer with the game continuing.
	OutcomeCorrect
	// OutcomeAdvanced signals an accepted answer that moved the game to the
	// next question.
	OutcomeAdvanced
	// OutcomeFinished signals the game reached its natural end.
	OutcomeFinished
	// OutcomeCanceled signals the game was canceled.
	OutcomeCanceled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeIgnored:
		return "ignored"
	case OutcomeAlreadyRegistered:
		return "already_registered"
	case OutcomeNotRegistered:
		return "not_registered"
	case OutcomeTooLate:
		return "too_late"
	case OutcomeWrongAnswer:
		return "wrong_answer"
	case OutcomeCorrect:
		return "correct"
	case OutcomeAdvanced:
		return "advanced"
	case OutcomeFinished:
		return "finished"
	case OutcomeCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}
