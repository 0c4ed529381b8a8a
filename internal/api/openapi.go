package api

import (
	"maps"
	"net/http"

	"github.com/JaimeStill/triage/internal/cases"
	"github.com/JaimeStill/triage/internal/chat"
	"github.com/JaimeStill/triage/internal/config"
	"github.com/JaimeStill/triage/pkg/openapi"
)

// NewSpec describes the API module's routes as an OpenAPI document.
func NewSpec(cfg *config.Config) *openapi.Spec {
	spec := openapi.NewSpec(cfg.API.OpenAPI.Title, cfg.Version)
	spec.SetDescription(cfg.API.OpenAPI.Description)
	spec.AddServer(cfg.API.BasePath)
	spec.RequireBearer()
	spec.Components.AddSchemas(schemas())

	addReview(spec)
	addHistory(spec)
	addChat(spec)

	return spec
}

func schemas() map[string]*openapi.Schema {
	nullable := func(typ string) *openapi.Schema {
		return &openapi.Schema{Type: typ, Description: "Null when absent"}
	}

	return map[string]*openapi.Schema{
		"Case": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"id":              {Type: "string", Format: "uuid"},
				"patient_id":      {Type: "string"},
				"patient_email":   {Type: "string"},
				"prompt":          nullable("string"),
				"image":           {Type: "string", Description: "Data URI, null when absent"},
				"ai_response":     {Type: "string"},
				"severity":        {Type: "string", Enum: []any{string(cases.SeverityHigh)}},
				"doctor_response": nullable("string"),
				"doctor_id":       nullable("string"),
				"created_at":      {Type: "string", Format: "date-time"},
			},
		},
		"CasePage": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"data":        openapi.ArrayOf("Case"),
				"total":       {Type: "integer"},
				"page":        {Type: "integer"},
				"page_size":   {Type: "integer"},
				"total_pages": {Type: "integer"},
			},
		},
		"View": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"kind":    {Type: "string", Enum: []any{string(cases.ViewListing), string(cases.ViewViewing)}},
				"case_id": {Type: "string", Format: "uuid"},
			},
		},
		"ReviewList": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"view":  openapi.SchemaRef("View"),
				"cases": openapi.SchemaRef("CasePage"),
			},
		},
		"ReviewCase": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"view":  openapi.SchemaRef("View"),
				"case":  openapi.SchemaRef("Case"),
				"error": {Type: "string"},
			},
		},
		"RespondRequest": {
			Type:     "object",
			Required: []string{"response"},
			Properties: map[string]*openapi.Schema{
				"response": {Type: "string", Description: "Must not be blank"},
			},
		},
		"Message": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"id":        {Type: "string", Format: "uuid"},
				"text":      {Type: "string"},
				"sender":    {Type: "string", Enum: []any{string(chat.SenderPatient), string(chat.SenderAI)}},
				"timestamp": {Type: "string", Format: "date-time"},
				"image":     {Type: "string", Description: "Data URI"},
			},
		},
		"Session": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"id": {Type: "string", Format: "uuid"},
				"state": {Type: "string", Enum: []any{
					string(chat.StateIdle),
					string(chat.StateComposing),
					string(chat.StateAwaitingClassification),
					string(chat.StateDisplayed),
					string(chat.StateFailed),
				}},
				"attachment": {Type: "string", Description: "Pending image data URI"},
				"messages":   openapi.ArrayOf("Message"),
				"created_at": {Type: "string", Format: "date-time"},
			},
		},
		"AttachRequest": {
			Type:     "object",
			Required: []string{"image"},
			Properties: map[string]*openapi.Schema{
				"image": {Type: "string", Description: "Image data URI"},
			},
		},
		"SendRequest": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"text":  {Type: "string"},
				"image": {Type: "string", Description: "Image data URI; overrides the pending attachment"},
			},
		},
	}
}

func pageParams() []*openapi.Parameter {
	return []*openapi.Parameter{
		openapi.QueryParam("page", "integer", "Page number (1-indexed)", false),
		openapi.QueryParam("page_size", "integer", "Results per page", false),
		openapi.QueryParam("search", "string", "Matches prompt or patient email", false),
		openapi.QueryParam("sort", "string", "Tiebreakers after newest first", false),
	}
}

func denied() map[int]*openapi.Response {
	return map[int]*openapi.Response{
		401: openapi.ResponseRef("Unauthorized"),
		403: openapi.ResponseRef("Forbidden"),
	}
}

func with(base, extra map[int]*openapi.Response) map[int]*openapi.Response {
	maps.Copy(base, extra)
	return base
}

func addReview(spec *openapi.Spec) {
	tags := []string{"Review"}
	caseID := openapi.PathParam("id", "Case ID")

	spec.Add(http.MethodGet, "/review/cases", &openapi.Operation{
		Summary:    "List pending escalated cases, newest first",
		Tags:       tags,
		Parameters: pageParams(),
		Responses: with(denied(), map[int]*openapi.Response{
			200: openapi.ResponseJSON("Pending cases", "ReviewList"),
		}),
	})

	spec.Add(http.MethodGet, "/review/cases/{id}", &openapi.Operation{
		Summary:    "Open a case",
		Tags:       tags,
		Parameters: []*openapi.Parameter{caseID},
		Responses: with(denied(), map[int]*openapi.Response{
			200: openapi.ResponseJSON("Case", "ReviewCase"),
			404: openapi.ResponseRef("NotFound"),
		}),
	})

	spec.Add(http.MethodGet, "/review/cases/{id}/image", &openapi.Operation{
		Summary:    "Download the patient image attached to a case",
		Tags:       tags,
		Parameters: []*openapi.Parameter{caseID},
		Responses: with(denied(), map[int]*openapi.Response{
			200: {Description: "Image bytes"},
			404: openapi.ResponseRef("NotFound"),
		}),
	})

	spec.Add(http.MethodPost, "/review/cases/{id}/respond", &openapi.Operation{
		Summary:     "Record the doctor's response",
		Description: "A case accepts exactly one response.",
		Tags:        tags,
		Parameters:  []*openapi.Parameter{caseID},
		RequestBody: openapi.RequestBodyJSON("RespondRequest", true),
		Responses: with(denied(), map[int]*openapi.Response{
			200: openapi.ResponseJSON("Resolved case", "ReviewCase"),
			400: openapi.ResponseJSON("Blank response", "ReviewCase"),
			404: openapi.ResponseJSON("Unknown case", "ReviewCase"),
			409: openapi.ResponseJSON("Already resolved", "ReviewCase"),
		}),
	})
}

func addHistory(spec *openapi.Spec) {
	tags := []string{"History"}

	spec.Add(http.MethodGet, "/history/cases", &openapi.Operation{
		Summary:    "List the caller's resolved cases, newest first",
		Tags:       tags,
		Parameters: pageParams(),
		Responses: with(denied(), map[int]*openapi.Response{
			200: openapi.ResponseJSON("Resolved cases", "CasePage"),
		}),
	})

	spec.Add(http.MethodGet, "/history/cases/{id}", &openapi.Operation{
		Summary:    "Open one of the caller's resolved cases",
		Tags:       tags,
		Parameters: []*openapi.Parameter{openapi.PathParam("id", "Case ID")},
		Responses: with(denied(), map[int]*openapi.Response{
			200: openapi.ResponseJSON("Case", "Case"),
			404: openapi.ResponseRef("NotFound"),
		}),
	})
}

func addChat(spec *openapi.Spec) {
	tags := []string{"Chat"}
	sessionID := openapi.PathParam("id", "Session ID")
	session := func(description string) *openapi.Response {
		return openapi.ResponseJSON(description, "Session")
	}

	spec.Add(http.MethodPost, "/chat/sessions", &openapi.Operation{
		Summary:   "Open a session seeded with the greeting",
		Tags:      tags,
		Responses: with(denied(), map[int]*openapi.Response{201: session("New session")}),
	})

	spec.Add(http.MethodGet, "/chat/sessions", &openapi.Operation{
		Summary: "List the caller's sessions",
		Tags:    tags,
		Responses: with(denied(), map[int]*openapi.Response{
			200: {
				Description: "Sessions",
				Content: map[string]*openapi.MediaType{
					"application/json": {Schema: openapi.ArrayOf("Session")},
				},
			},
		}),
	})

	spec.Add(http.MethodGet, "/chat/sessions/{id}", &openapi.Operation{
		Summary:    "Get a session transcript",
		Tags:       tags,
		Parameters: []*openapi.Parameter{sessionID},
		Responses: with(denied(), map[int]*openapi.Response{
			200: session("Session"),
			404: openapi.ResponseRef("NotFound"),
		}),
	})

	spec.Add(http.MethodDelete, "/chat/sessions/{id}", &openapi.Operation{
		Summary:    "Close a session",
		Tags:       tags,
		Parameters: []*openapi.Parameter{sessionID},
		Responses: with(denied(), map[int]*openapi.Response{
			204: {Description: "Closed"},
			404: openapi.ResponseRef("NotFound"),
			409: openapi.ResponseRef("Conflict"),
		}),
	})

	spec.Add(http.MethodPut, "/chat/sessions/{id}/attachment", &openapi.Operation{
		Summary:     "Attach an image to the next message",
		Tags:        tags,
		Parameters:  []*openapi.Parameter{sessionID},
		RequestBody: openapi.RequestBodyJSON("AttachRequest", true),
		Responses: with(denied(), map[int]*openapi.Response{
			200: session("Session with pending attachment"),
			400: openapi.ResponseRef("BadRequest"),
			409: openapi.ResponseRef("Conflict"),
			413: {Description: "Image too large"},
		}),
	})

	spec.Add(http.MethodDelete, "/chat/sessions/{id}/attachment", &openapi.Operation{
		Summary:    "Discard the pending attachment",
		Tags:       tags,
		Parameters: []*openapi.Parameter{sessionID},
		Responses: with(denied(), map[int]*openapi.Response{
			200: session("Session"),
			409: openapi.ResponseRef("Conflict"),
		}),
	})

	spec.Add(http.MethodPost, "/chat/sessions/{id}/messages", &openapi.Operation{
		Summary:     "Send a message and receive the assessment",
		Description: "High severity assessments are escalated for doctor review.",
		Tags:        tags,
		Parameters:  []*openapi.Parameter{sessionID},
		RequestBody: openapi.RequestBodyJSON("SendRequest", true),
		Responses: with(denied(), map[int]*openapi.Response{
			200: session("Updated transcript"),
			400: openapi.ResponseRef("BadRequest"),
			404: openapi.ResponseRef("NotFound"),
			409: openapi.ResponseRef("Conflict"),
			413: {Description: "Image too large"},
		}),
	})
}
