package domain

// AppState is the read-only slice of application state the views project from.
type AppState struct {
	Routing RoutingState
	User    UserState
}

// RoutingState holds the active route outlet.
type RoutingState struct {
	Outlet string
}

// UserState holds the logged-in user, if any.
type UserState struct {
	Token    string
	Username string
}

// NewAppState builds the state for a request from its session and route.
func NewAppState(s *Session, outlet string) AppState {
	state := AppState{Routing: RoutingState{Outlet: outlet}}
	if s != nil {
		state.User = UserState{Token: s.Token, Username: s.Username}
	}
	return state
}
