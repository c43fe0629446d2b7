package scope

import "fmt"

// State is the lifecycle state of a Scope.
//
//	Active -> Cancelling -> Cancelled
//	Active -> Completed
//	Active -> Failed
type State uint32

const (
	Active State = iota
	Cancelling
	Completed
	Cancelled
	Failed
)

func (s State) String() string {
	switch s {
	case Active:
		return "active"
	case Cancelling:
		return "cancelling"
	case Completed:
		return "completed"
	case Cancelled:
		return "cancelled"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("scope.State(%d)", uint32(s))
	}
}

// IsFinal reports whether Wait has settled the scope.
func (s State) IsFinal() bool {
	return s == Completed || s == Cancelled || s == Failed
}
