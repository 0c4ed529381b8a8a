// Package routes declares route groups and registers them on a ServeMux.
package routes

import "net/http"

// Group collects routes under a shared prefix. Middleware wraps every route
// in the group and its children, outermost first.
type Group struct {
	Prefix     string
	Middleware []func(http.Handler) http.Handler
	Routes     []Route
	Children   []Group
}

// Register adds every route of groups to mux.
func Register(mux *http.ServeMux, groups ...Group) {
	for _, group := range groups {
		register(mux, "", nil, group)
	}
}

func register(mux *http.ServeMux, parentPrefix string, parentMw []func(http.Handler) http.Handler, group Group) {
	prefix := parentPrefix + group.Prefix
	mws := append(append([]func(http.Handler) http.Handler{}, parentMw...), group.Middleware...)

	for _, route := range group.Routes {
		var h http.Handler = route.Handler
		for i := len(mws) - 1; i >= 0; i-- {
			h = mws[i](h)
		}
		mux.Handle(route.Method+" "+prefix+route.Pattern, h)
	}

	for _, child := range group.Children {
		register(mux, prefix, mws, child)
	}
}
