package domain

import "time"

type SignalKind string

const (
	SignalNavigate SignalKind = "navigate"
	SignalLoading  SignalKind = "loading"
	SignalError    SignalKind = "error"
)

// Routes the engine asks the UI to navigate to.
const (
	RouteFeedList = "/feeds"
	RouteLogin    = "/login"
)

// Loading flag names.
const (
	FlagListUpdating = "list_updating"
	FlagPostsLoading = "posts_loading"
)

// Signal is a collaborator-facing notification emitted by the engine.
type Signal struct {
	Kind      SignalKind `json:"kind"`
	Route     string     `json:"route,omitempty"`
	Flag      string     `json:"flag,omitempty"`
	Active    bool       `json:"active,omitempty"`
	Message   string     `json:"message,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

func NavigateSignal(route string) Signal {
	return Signal{Kind: SignalNavigate, Route: route, Timestamp: time.Now().UTC()}
}

func LoadingSignal(flag string, active bool) Signal {
	return Signal{Kind: SignalLoading, Flag: flag, Active: active, Timestamp: time.Now().UTC()}
}

// ErrorSignal carries the user-visible error message; empty clears it.
func ErrorSignal(message string) Signal {
	return Signal{Kind: SignalError, Message: message, Timestamp: time.Now().UTC()}
}
