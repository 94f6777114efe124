package fsm

import "fmt"

type State string

type Event string

const (
	StateIdle            State = "idle"
	StateDetected        State = "detected"
	StatePromptPending   State = "prompt_pending"
	StatePromptDelivered State = "prompt_delivered"
)

const (
	EventConditionMet  Event = "condition_met"
	EventArm           Event = "arm"
	EventConfirm       Event = "confirm"
	EventConditionLost Event = "condition_lost"
)

func Transition(current State, event Event) (State, error) {
	if event == EventConditionLost {
		return StateIdle, nil
	}

	switch current {
	case StateIdle:
		switch event {
		case EventConditionMet:
			return StateDetected, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateDetected:
		switch event {
		case EventArm:
			return StatePromptPending, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StatePromptPending:
		switch event {
		case EventConfirm:
			return StatePromptDelivered, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StatePromptDelivered:
		return current, invalidTransition(current, event)
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, event)
}
