package openapi_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/JaimeStill/triage/pkg/openapi"
)

func TestNewSpec(t *testing.T) {
	spec := openapi.NewSpec("Test API", "1.0.0")

	if spec.OpenAPI != "3.1.0" {
		t.Errorf("openapi version: got %s, want 3.1.0", spec.OpenAPI)
	}
	if spec.Info.Title != "Test API" || spec.Info.Version != "1.0.0" {
		t.Errorf("info: got %+v", spec.Info)
	}
	if spec.Components == nil || spec.Paths == nil {
		t.Fatal("components and paths should be initialized")
	}
	for _, name := range []string{"BadRequest", "Unauthorized", "Forbidden", "NotFound", "Conflict"} {
		if _, ok := spec.Components.Responses[name]; !ok {
			t.Errorf("missing shared response %s", name)
		}
	}
	if scheme := spec.Components.SecuritySchemes[openapi.BearerScheme]; scheme == nil || scheme.Scheme != "bearer" {
		t.Errorf("bearer scheme: got %+v", scheme)
	}
}

func TestAddGroupsOperationsByPath(t *testing.T) {
	spec := openapi.NewSpec("Test", "1.0.0")

	list := &openapi.Operation{Summary: "list"}
	open := &openapi.Operation{Summary: "open"}
	closeOp := &openapi.Operation{Summary: "close"}

	spec.Add(http.MethodGet, "/sessions", list)
	spec.Add(http.MethodPost, "/sessions", open)
	spec.Add(http.MethodDelete, "/sessions/{id}", closeOp)

	if len(spec.Paths) != 2 {
		t.Fatalf("paths: got %d, want 2", len(spec.Paths))
	}
	item := spec.Paths["/sessions"]
	if item.Get != list || item.Post != open {
		t.Errorf("/sessions: got %+v", item)
	}
	if spec.Paths["/sessions/{id}"].Delete != closeOp {
		t.Error("delete not registered")
	}
}

func TestRequireBearer(t *testing.T) {
	spec := openapi.NewSpec("Test", "1.0.0")
	spec.RequireBearer()

	data, err := openapi.MarshalJSON(spec)
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}

	var parsed struct {
		Security   []map[string][]string `json:"security"`
		Components struct {
			SecuritySchemes map[string]map[string]string `json:"securitySchemes"`
		} `json:"components"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if len(parsed.Security) != 1 {
		t.Fatalf("security: got %v", parsed.Security)
	}
	if _, ok := parsed.Security[0][openapi.BearerScheme]; !ok {
		t.Errorf("security requirement: got %v", parsed.Security[0])
	}
	if got := parsed.Components.SecuritySchemes[openapi.BearerScheme]["bearerFormat"]; got != "JWT" {
		t.Errorf("bearer format: got %q", got)
	}
}

func TestHelpers(t *testing.T) {
	if ref := openapi.SchemaRef("Case"); ref.Ref != "#/components/schemas/Case" {
		t.Errorf("SchemaRef: got %s", ref.Ref)
	}
	if ref := openapi.ResponseRef("NotFound"); ref.Ref != "#/components/responses/NotFound" {
		t.Errorf("ResponseRef: got %s", ref.Ref)
	}

	arr := openapi.ArrayOf("Message")
	if arr.Type != "array" || arr.Items.Ref != "#/components/schemas/Message" {
		t.Errorf("ArrayOf: got %+v", arr)
	}

	rb := openapi.RequestBodyJSON("SendRequest", true)
	if !rb.Required || rb.Content["application/json"].Schema.Ref != "#/components/schemas/SendRequest" {
		t.Errorf("RequestBodyJSON: got %+v", rb)
	}

	p := openapi.PathParam("id", "Case ID")
	if p.In != "path" || !p.Required || p.Schema.Format != "uuid" {
		t.Errorf("PathParam: got %+v", p)
	}

	q := openapi.QueryParam("page", "integer", "Page", false)
	if q.In != "query" || q.Required || q.Schema.Type != "integer" {
		t.Errorf("QueryParam: got %+v", q)
	}
}

func TestAddSchemas(t *testing.T) {
	c := openapi.NewComponents()
	c.AddSchemas(map[string]*openapi.Schema{
		"Case": {Type: "object"},
	})

	if _, ok := c.Schemas["Case"]; !ok {
		t.Error("Case schema not added")
	}
	if _, ok := c.Schemas["PageRequest"]; !ok {
		t.Error("PageRequest schema lost")
	}
}

func TestServeSpec(t *testing.T) {
	data, err := openapi.MarshalJSON(openapi.NewSpec("Test", "1.0.0"))
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}

	rec := httptest.NewRecorder()
	openapi.ServeSpec(data)(rec, httptest.NewRequest("GET", "/openapi.json", nil))

	res := rec.Result()
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		t.Errorf("status: got %d, want 200", res.StatusCode)
	}
	if ct := res.Header.Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("content-type: got %s", ct)
	}

	body, _ := io.ReadAll(res.Body)
	var parsed map[string]any
	if err := json.Unmarshal(body, &parsed); err != nil {
		t.Fatalf("body unmarshal failed: %v", err)
	}
	if parsed["openapi"] != "3.1.0" {
		t.Errorf("openapi: got %v", parsed["openapi"])
	}
}

func TestConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		var cfg openapi.Config
		if err := cfg.Finalize(nil); err != nil {
			t.Fatalf("Finalize: %v", err)
		}
		if cfg.Title != "Triage API" {
			t.Errorf("title: got %s, want Triage API", cfg.Title)
		}
		if cfg.Description == "" {
			t.Error("description empty")
		}
	})

	t.Run("env", func(t *testing.T) {
		t.Setenv("TEST_TITLE", "Custom API")

		var cfg openapi.Config
		if err := cfg.Finalize(&openapi.ConfigEnv{Title: "TEST_TITLE"}); err != nil {
			t.Fatalf("Finalize: %v", err)
		}
		if cfg.Title != "Custom API" {
			t.Errorf("title: got %s", cfg.Title)
		}
	})

	t.Run("merge", func(t *testing.T) {
		base := openapi.Config{Title: "Base", Description: "kept"}
		base.Merge(&openapi.Config{Title: "Overlay"})

		if base.Title != "Overlay" || base.Description != "kept" {
			t.Errorf("merge: got %+v", base)
		}
	})
}
