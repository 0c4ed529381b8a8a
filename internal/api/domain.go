package api

import (
	"github.com/JaimeStill/triage/internal/cases"
	"github.com/JaimeStill/triage/internal/chat"
	"github.com/JaimeStill/triage/internal/classifier"
	"github.com/JaimeStill/triage/internal/escalation"
	"github.com/JaimeStill/triage/internal/history"
	"github.com/JaimeStill/triage/internal/review"
)

// Domain holds all domain systems that comprise the API.
type Domain struct {
	Cases      cases.System
	Classifier classifier.System
	Escalation escalation.System
	Review     review.System
	History    history.System
	Chat       chat.System
}

// NewDomain creates all domain systems from the API runtime.
func NewDomain(runtime *Runtime) *Domain {
	store := cases.New(
		runtime.Database.Connection(),
		runtime.Logger,
		runtime.Pagination,
	)

	return newDomain(runtime, store)
}

func newDomain(runtime *Runtime, store cases.System) *Domain {
	classifierSystem := classifier.New(
		&runtime.Classifier,
		runtime.HTTPClient,
		runtime.Logger,
	)

	escalationSystem := escalation.New(
		store,
		runtime.Storage,
		runtime.Logger,
	)

	return &Domain{
		Cases:      store,
		Classifier: classifierSystem,
		Escalation: escalationSystem,
		Review: review.New(
			store,
			runtime.Storage,
			runtime.Logger,
			runtime.Pagination,
		),
		History: history.New(
			store,
			runtime.Logger,
			runtime.Pagination,
		),
		Chat: chat.New(
			&runtime.Chat,
			classifierSystem,
			escalationSystem,
			runtime.Logger,
		),
	}
}
