package trackmmr

import "fmt"

type State int

const (
	Idle State = iota
	Connecting
	Authenticating
	LoggedOn
	LaunchingApp
	AwaitingCoordinatorReady
	RequestingHistory
	Completed
	Failed
)

var stateNames = map[State]string{
	Idle:                     "Idle",
	Connecting:               "Connecting",
	Authenticating:           "Authenticating",
	LoggedOn:                 "LoggedOn",
	LaunchingApp:             "LaunchingApp",
	AwaitingCoordinatorReady: "AwaitingCoordinatorReady",
	RequestingHistory:        "RequestingHistory",
	Completed:                "Completed",
	Failed:                   "Failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int(s))
}

func (s State) Terminal() bool {
	return s == Completed || s == Failed
}

// loggedOn reports whether logon succeeded at some point before reaching s.
func (s State) loggedOn() bool {
	return s >= LoggedOn && s <= RequestingHistory
}

var allowedTransitions = map[State][]State{
	Idle:                     {Connecting, Failed},
	Connecting:               {Authenticating, Failed},
	Authenticating:           {LoggedOn, Connecting, Failed},
	LoggedOn:                 {LaunchingApp, Failed},
	LaunchingApp:             {AwaitingCoordinatorReady, Failed},
	AwaitingCoordinatorReady: {RequestingHistory, Failed},
	RequestingHistory:        {Completed, Failed},
}

func canTransition(from, to State) bool {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// failureKind classifies an error that interrupts the wait of state s.
func (s State) failureKind() ErrorKind {
	switch s {
	case Idle, Connecting:
		return TransportConnectFailed
	case Authenticating:
		return LogonFailed
	case LoggedOn, LaunchingApp, AwaitingCoordinatorReady:
		return CoordinatorUnreachable
	default:
		return HistoryRequestFailed
	}
}
