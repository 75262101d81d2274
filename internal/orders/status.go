package orders

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusShipped   Status = "shipped"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Statuses lists every order status in lifecycle order.
var Statuses = []Status{StatusPending, StatusConfirmed, StatusShipped, StatusCompleted, StatusCancelled}

// Terminal reports whether no further transition is possible from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type Action string

const (
	ActionConfirm  Action = "confirm"
	ActionShip     Action = "ship"
	ActionComplete Action = "complete"
	ActionCancel   Action = "cancel"
)

// Actions lists every action accepted by the processor.
var Actions = []Action{ActionConfirm, ActionShip, ActionComplete, ActionCancel}

// ParseAction accepts the exact wire token for an action. Anything else,
// including padded or re-cased tokens, is ErrInvalidAction.
func ParseAction(s string) (Action, error) {
	a := Action(s)
	if _, ok := transitions[a]; !ok {
		return "", ErrInvalidAction
	}
	return a, nil
}

// rule is one row of the transition table: the statuses an action may start
// from and the status it produces.
type rule struct {
	from []Status
	to   Status
}

var transitions = map[Action]rule{
	ActionConfirm:  {from: []Status{StatusPending}, to: StatusConfirmed},
	ActionShip:     {from: []Status{StatusConfirmed}, to: StatusShipped},
	ActionComplete: {from: []Status{StatusShipped}, to: StatusCompleted},
	ActionCancel:   {from: []Status{StatusPending, StatusConfirmed, StatusShipped}, to: StatusCancelled},
}

// CanApply reports whether action a is legal from status s.
func CanApply(s Status, a Action) bool {
	r, ok := transitions[a]
	if !ok {
		return false
	}
	for _, f := range r.from {
		if f == s {
			return true
		}
	}
	return false
}

// Target returns the status produced by a. ok is false for unknown actions.
func Target(a Action) (Status, bool) {
	r, ok := transitions[a]
	return r.to, ok
}

// CanTransition reports whether some action moves an order from one status to another.
func CanTransition(from, to Status) bool {
	for a, r := range transitions {
		if r.to == to && CanApply(from, a) {
			return true
		}
	}
	return false
}
