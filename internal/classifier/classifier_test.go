package classifier_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/JaimeStill/triage/internal/cases"
	"github.com/JaimeStill/triage/internal/classifier"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ptr[T any](v T) *T { return &v }

func newGateway(t *testing.T, h http.HandlerFunc, timeout string) classifier.System {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	cfg := &classifier.Config{BaseURL: srv.URL, Timeout: timeout}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	return classifier.New(cfg, srv.Client(), discard())
}

func TestClassifyRoutesByImagePresence(t *testing.T) {
	tests := []struct {
		name     string
		sub      classifier.Submission
		wantPath string
		wantBody map[string]string
	}{
		{
			name:     "text only",
			sub:      classifier.Submission{Text: "rash on arm"},
			wantPath: "/analyze-text",
			wantBody: map[string]string{"text": "rash on arm"},
		},
		{
			name:     "image with text",
			sub:      classifier.Submission{Text: "what is this", Image: ptr("data:image/png;base64,AAAA")},
			wantPath: "/chat",
			wantBody: map[string]string{"message": "what is this", "image": "data:image/png;base64,AAAA"},
		},
		{
			name:     "image without text",
			sub:      classifier.Submission{Image: ptr("data:image/png;base64,AAAA")},
			wantPath: "/chat",
			wantBody: map[string]string{"message": "", "image": "data:image/png;base64,AAAA"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotPath string
			var gotBody map[string]string

			gw := newGateway(t, func(w http.ResponseWriter, r *http.Request) {
				gotPath = r.URL.Path
				json.NewDecoder(r.Body).Decode(&gotBody)
				w.Write([]byte(`{"severity":"Low"}`))
			}, "")

			if _, err := gw.Classify(context.Background(), tt.sub); err != nil {
				t.Fatalf("Classify: %v", err)
			}

			if gotPath != tt.wantPath {
				t.Errorf("path = %q, want %q", gotPath, tt.wantPath)
			}
			if len(gotBody) != len(tt.wantBody) {
				t.Fatalf("body = %v, want %v", gotBody, tt.wantBody)
			}
			for k, v := range tt.wantBody {
				if gotBody[k] != v {
					t.Errorf("body[%q] = %q, want %q", k, gotBody[k], v)
				}
			}
		})
	}
}

func TestClassifyDecodesPartialResults(t *testing.T) {
	gw := newGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("```json\n{\"disease\":\"Contact Dermatitis\",\"confidence\":91,\"severity\":\"High\",\"info\":\"Avoid irritants.\"}\n```"))
	}, "")

	res, err := gw.Classify(context.Background(), classifier.Submission{Text: "rash on arm"})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}

	if *res.Disease != "Contact Dermatitis" || *res.Confidence != 91 || *res.Severity != cases.SeverityHigh {
		t.Errorf("result = %+v", res)
	}
	if !res.Escalates() {
		t.Error("High result does not escalate")
	}
}

func TestClassifyFailuresAreUnavailable(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		timeout string
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, `{"error":"model crashed"}`, http.StatusInternalServerError)
			},
		},
		{
			name: "bad request",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, `{"error":"Invalid image data"}`, http.StatusBadRequest)
			},
		},
		{
			name: "undecodable body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("<html>502 Bad Gateway</html>"))
			},
		},
		{
			name: "timeout",
			handler: func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-r.Context().Done():
				case <-time.After(time.Second):
				}
			},
			timeout: "20ms",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			gw := newGateway(t, func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				tt.handler(w, r)
			}, tt.timeout)

			_, err := gw.Classify(context.Background(), classifier.Submission{Text: "headache"})
			if !errors.Is(err, classifier.ErrUnavailable) {
				t.Fatalf("err = %v, want ErrUnavailable", err)
			}
			if got := calls.Load(); got != 1 {
				t.Errorf("service called %d times, want exactly 1", got)
			}
		})
	}
}

func TestClassifyTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	cfg := &classifier.Config{BaseURL: url}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatal(err)
	}

	_, err := classifier.New(cfg, nil, discard()).Classify(context.Background(), classifier.Submission{Text: "fever"})
	if !errors.Is(err, classifier.ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}

func TestClassifyRejectsEmptySubmission(t *testing.T) {
	var calls atomic.Int32
	gw := newGateway(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}, "")

	_, err := gw.Classify(context.Background(), classifier.Submission{Text: "  \n "})
	if !errors.Is(err, classifier.ErrEmptySubmission) {
		t.Errorf("err = %v, want ErrEmptySubmission", err)
	}
	if calls.Load() != 0 {
		t.Error("empty submission reached the service")
	}
}

func TestNarrative(t *testing.T) {
	tests := []struct {
		name   string
		result classifier.Result
		want   string
	}{
		{
			name: "full result",
			result: classifier.Result{
				Disease:    ptr("Contact Dermatitis"),
				Confidence: ptr(91.0),
				Severity:   ptr(cases.SeverityHigh),
				Info:       ptr("Avoid irritants."),
			},
			want: "🩺 Disease: Contact Dermatitis\n🎯 Confidence: 91%\n⚕️ Severity: High\n\n💊 Remedies & Info:\nAvoid irritants.",
		},
		{
			name:   "fractional confidence",
			result: classifier.Result{Disease: ptr("Eczema"), Confidence: ptr(87.35)},
			want:   "🩺 Disease: Eczema\n🎯 Confidence: 87.35%",
		},
		{
			name:   "severity only is trimmed",
			result: classifier.Result{Severity: ptr(cases.SeverityLow)},
			want:   "⚕️ Severity: Low",
		},
		{
			name:   "info only",
			result: classifier.Result{Info: ptr("Drink fluids and rest.")},
			want:   "💊 Remedies & Info:\nDrink fluids and rest.",
		},
		{
			name: "nothing",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifier.Narrative(tt.result); got != tt.want {
				t.Errorf("Narrative:\n got %q\nwant %q", got, tt.want)
			}
		})
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  classifier.Config
		ok   bool
	}{
		{"defaults", classifier.Config{}, true},
		{"relative url", classifier.Config{BaseURL: "localhost:5000"}, false},
		{"bad timeout", classifier.Config{Timeout: "forever"}, false},
		{"zero timeout", classifier.Config{Timeout: "0s"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Finalize(nil)
			if (err == nil) != tt.ok {
				t.Errorf("Finalize err = %v, want ok=%v", err, tt.ok)
			}
		})
	}

	var cfg classifier.Config
	cfg.Finalize(nil)
	if cfg.TimeoutDuration() != 60*time.Second {
		t.Errorf("default timeout = %v", cfg.TimeoutDuration())
	}
}
