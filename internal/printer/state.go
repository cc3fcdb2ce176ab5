package printer

// StateKind is the phase of a role's connection state machine.
type StateKind int

const (
	StateDisconnected StateKind = iota
	StatePairing
	StateConnecting
	StateConnected
	StateFailed
)

func (k StateKind) String() string {
	switch k {
	case StateDisconnected:
		return "disconnected"
	case StatePairing:
		return "pairing"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// ConnectionState is the current state plus, when Failed, why.
type ConnectionState struct {
	Kind   StateKind
	Reason error
}

func (s ConnectionState) String() string {
	if s.Kind == StateFailed && s.Reason != nil {
		return "failed: " + s.Reason.Error()
	}
	return s.Kind.String()
}
