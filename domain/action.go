package domain

import "fmt"

// Action is a privilege action on an entity. Actions are fully independent:
// holding ADMIN on an entity does not imply READ, WRITE, or EXECUTE on it.
// Every action must be granted explicitly.
type Action string

const (
	ActionRead    Action = "READ"
	ActionWrite   Action = "WRITE"
	ActionExecute Action = "EXECUTE"
	ActionAdmin   Action = "ADMIN"
)

// Actions lists every valid action.
var Actions = []Action{ActionRead, ActionWrite, ActionExecute, ActionAdmin}

// ParseAction converts a string to an Action.
func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case ActionRead, ActionWrite, ActionExecute, ActionAdmin:
		return Action(s), nil
	}
	return "", fmt.Errorf("unknown action %q", s)
}

// Valid reports whether a is one of the defined actions.
func (a Action) Valid() bool {
	switch a {
	case ActionRead, ActionWrite, ActionExecute, ActionAdmin:
		return true
	}
	return false
}
