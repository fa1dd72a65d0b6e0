// Package view projects facade state into the view models the SPA renders.
package view

import "conduit-facade/internal/domain"

// HeaderProps is what the page header needs to render.
type HeaderProps struct {
	Route           string `json:"route"`
	IsAuthenticated bool   `json:"isAuthenticated"`
	LoggedInUser    string `json:"loggedInUser"`
}

// HeaderProperties projects the app state onto header props. A user is
// authenticated exactly when a token is present; the username is passed
// through even when empty.
func HeaderProperties(state domain.AppState) HeaderProps {
	return HeaderProps{
		Route:           state.Routing.Outlet,
		IsAuthenticated: state.User.Token != "",
		LoggedInUser:    state.User.Username,
	}
}
