package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	apperrors "github.com/louisbranch/mythos/internal/platform/errors"
	"github.com/louisbranch/mythos/internal/platform/telemetry/metrics"
	"github.com/louisbranch/mythos/internal/services/story/graph"
	"github.com/louisbranch/mythos/internal/services/story/outfit"
	"github.com/louisbranch/mythos/internal/services/story/profile"
	"github.com/louisbranch/mythos/internal/services/story/progression"
	"github.com/louisbranch/mythos/internal/services/story/storage"
)

func newTestServer(engine *fakeEngine, profiles fakeProfiles) (*Server, *[]string) {
	var logged []string
	server := NewServer(engine, profiles, Options{
		Logf: func(format string, args ...any) {
			logged = append(logged, fmt.Sprintf(format, args...))
		},
	})
	return server, &logged
}

func serve(t *testing.T, server *Server, method, target, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for key, values := range header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func lockerNode() graph.Node {
	return graph.Node{
		ID:      19,
		Title:   "Locker Password",
		Content: "What 4-digit code do you choose?",
		Kind:    graph.KindStandard,
		Input:   &graph.InputRequirement{Type: graph.InputPassword, Prompt: "Enter a 4-digit code"},
		Choices: []graph.Choice{
			{ID: 70, NodeID: 19, Text: "1234", NextNodeID: 6, Effect: profile.ParseEffect(map[string]any{"caution": -1})},
		},
	}
}

func TestStartReturnsRootNode(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{node: lockerNode()}
	server, _ := newTestServer(engine, fakeProfiles{})

	rec := serve(t, server, http.MethodGet, "/api/story/start", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Fatalf("content type = %q, want application/json", got)
	}
	got := decode[nodePayload](t, rec)
	if got.ID != 19 || got.NodeType != "standard" || !got.RequiresInput || got.InputType != "password" {
		t.Fatalf("node = %+v", got)
	}
	if len(got.Choices) != 1 {
		t.Fatalf("choices = %d, want 1", len(got.Choices))
	}
	choice := got.Choices[0]
	if !choice.RequiresInput || choice.InputPrompt != "Enter a 4-digit code" || choice.Role != "standard" {
		t.Fatalf("choice = %+v, want node-level password input", choice)
	}
	if _, ok := choice.Effect.Deltas[profile.Caution]; !ok {
		t.Fatalf("choice effect = %+v, want caution delta", choice.Effect)
	}
}

func TestGetNodeParsesIDs(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{node: lockerNode()}
	server, _ := newTestServer(engine, fakeProfiles{})

	rec := serve(t, server, http.MethodGet, "/api/story/nodes/19?characterId=7", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if engine.lastNodeID != 19 || engine.lastCharacterID != 7 {
		t.Fatalf("engine saw node %d character %d, want 19 and 7", engine.lastNodeID, engine.lastCharacterID)
	}

	tests := []struct {
		name   string
		target string
	}{
		{name: "non numeric node", target: "/api/story/nodes/abc"},
		{name: "negative node", target: "/api/story/nodes/-3"},
		{name: "bad character", target: "/api/story/nodes/19?characterId=x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, server, http.MethodGet, tt.target, "", nil)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
			}
			body := decode[errorResponse](t, rec)
			if body.Error.Code != string(apperrors.CodeInvalidArgument) {
				t.Fatalf("code = %q, want %q", body.Error.Code, apperrors.CodeInvalidArgument)
			}
			if !strings.HasPrefix(body.Error.Message, "The request is invalid: ") {
				t.Fatalf("message = %q", body.Error.Message)
			}
		})
	}
}

func TestSubmitChoiceForwardsSubmission(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{result: progression.Result{
		View: progression.View{
			Character: storage.Character{ID: 7, Name: "Robin"},
			Progress: storage.Progress{
				CharacterID:   7,
				CurrentNodeID: 6,
				History:       []storage.HistoryEntry{{ChoiceID: 70, NodeID: 19, ChoiceText: "1234", InputValue: "1234"}},
				Version:       3,
			},
			Node:    graph.Node{ID: 6, Title: "The Crossroads", Kind: graph.KindStandard},
			Profile: profile.Default(7),
		},
		Decision: progression.NextNodeDecision{Kind: progression.DecisionExplicit, NodeID: 6},
	}}
	server, _ := newTestServer(engine, fakeProfiles{})

	body := `{"characterId":7,"choiceId":70,"inputValue":"1234","classId":2,"submissionId":"abc"}`
	rec := serve(t, server, http.MethodPost, "/api/story/choice", body, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	want := progression.Submission{CharacterID: 7, ChoiceID: 70, InputValue: "1234", ClassID: 2, SubmissionID: "abc"}
	if engine.lastSubmission != want {
		t.Fatalf("submission = %+v, want %+v", engine.lastSubmission, want)
	}
	if engine.lastPassword {
		t.Fatal("choice route used the password path")
	}
	got := decode[choiceResultPayload](t, rec)
	if got.Decision != "explicit" || got.CurrentNodeID != 6 || got.Version != 3 {
		t.Fatalf("result = %+v", got)
	}
	if got.CurrentNode.Title != "The Crossroads" || len(got.ChoiceHistory) != 1 {
		t.Fatalf("progress = %+v", got.progressPayload)
	}
	if got.Profile.Alignment.Label != profile.TrueNeutral {
		t.Fatalf("alignment = %q, want %q", got.Profile.Alignment.Label, profile.TrueNeutral)
	}
	if got.Metadata == nil {
		t.Fatal("expected empty metadata object, got null")
	}
}

func TestSubmitPasswordPrefersPasswordField(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "password field", body: `{"characterId":7,"choiceId":70,"password":"2222","inputValue":"9999"}`, want: "2222"},
		{name: "input value fallback", body: `{"characterId":7,"choiceId":70,"inputValue":"9999"}`, want: "9999"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			engine := &fakeEngine{}
			server, _ := newTestServer(engine, fakeProfiles{})
			rec := serve(t, server, http.MethodPost, "/api/story/password-choice", tt.body, nil)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
			}
			if !engine.lastPassword || engine.lastSubmission.InputValue != tt.want {
				t.Fatalf("submission = %+v password=%v, want input %q", engine.lastSubmission, engine.lastPassword, tt.want)
			}
		})
	}
}

func TestSubmitChoiceRejectsBadBodies(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(&fakeEngine{}, fakeProfiles{})
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "empty", body: "", want: "request body is required"},
		{name: "malformed", body: `{"characterId":`, want: "request body is not valid JSON"},
		{name: "too large", body: `{"inputValue":"` + strings.Repeat("x", maxBodyBytes) + `"}`, want: "request body is too large"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, server, http.MethodPost, "/api/story/choice", tt.body, nil)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
			}
			body := decode[errorResponse](t, rec)
			if body.Error.Metadata["Reason"] != tt.want {
				t.Fatalf("reason = %q, want %q", body.Error.Metadata["Reason"], tt.want)
			}
		})
	}
}

func TestErrorResponses(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		language   string
		wantStatus int
		wantCode   apperrors.Code
		wantLocale string
		wantMsg    string
		retryable  bool
	}{
		{
			name:       "mismatch in portuguese",
			err:        apperrors.New(apperrors.CodeChoiceNodeMismatch, "choice 3 is not on node 4"),
			language:   "pt-BR,pt;q=0.9",
			wantStatus: http.StatusConflict,
			wantCode:   apperrors.CodeChoiceNodeMismatch,
			wantLocale: "pt-BR",
			wantMsg:    "Essa escolha não está mais disponível daqui.",
		},
		{
			name:       "input format with expected",
			err:        apperrors.WithMetadata(apperrors.CodeInvalidInputFormat, "bad", map[string]string{"Expected": "a 4-digit numeric code"}),
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   apperrors.CodeInvalidInputFormat,
			wantLocale: "en-US",
			wantMsg:    "That answer is not in the expected format (a 4-digit numeric code).",
		},
		{
			name:       "generation unavailable",
			err:        apperrors.New(apperrors.CodeGenerationUnavailable, "provider down"),
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   apperrors.CodeGenerationUnavailable,
			wantLocale: "en-US",
			wantMsg:    "The storyteller is unavailable right now. Please try again.",
			retryable:  true,
		},
		{
			name:       "deceased",
			err:        apperrors.New(apperrors.CodeCharacterDeceased, "dead"),
			wantStatus: http.StatusConflict,
			wantCode:   apperrors.CodeCharacterDeceased,
			wantLocale: "en-US",
			wantMsg:    "This character's adventure has ended.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			server, _ := newTestServer(&fakeEngine{err: tt.err}, fakeProfiles{})
			header := http.Header{}
			if tt.language != "" {
				header.Set("Accept-Language", tt.language)
			}
			rec := serve(t, server, http.MethodPost, "/api/story/choice", `{"characterId":1,"choiceId":2}`, header)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := rec.Header().Get("Content-Language"); got != tt.wantLocale {
				t.Fatalf("content language = %q, want %q", got, tt.wantLocale)
			}
			body := decode[errorResponse](t, rec)
			if body.Error.Code != string(tt.wantCode) || body.Error.Message != tt.wantMsg || body.Error.Retryable != tt.retryable {
				t.Fatalf("error = %+v", body.Error)
			}
		})
	}
}

func TestUnknownErrorsAreLoggedAndHidden(t *testing.T) {
	t.Parallel()

	server, logged := newTestServer(&fakeEngine{err: errors.New("disk on fire")}, fakeProfiles{})
	rec := serve(t, server, http.MethodGet, "/api/story/start", "", nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
	body := decode[errorResponse](t, rec)
	if body.Error.Code != "UNKNOWN" || strings.Contains(rec.Body.String(), "disk on fire") {
		t.Fatalf("body = %s", rec.Body.String())
	}
	if len(*logged) != 1 || !strings.Contains((*logged)[0], "disk on fire") {
		t.Fatalf("logged = %v", *logged)
	}
}

func TestProfileRoutes(t *testing.T) {
	t.Parallel()

	p := profile.Default(7)
	p.GoodEvil = 40
	p.OrderChaos = -75
	p.Strength = 14
	p.CombatPreference = 80
	server, _ := newTestServer(&fakeEngine{}, fakeProfiles{profile: p})

	rec := serve(t, server, http.MethodGet, "/api/profile/7/alignment", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("alignment status = %d", rec.Code)
	}
	if got := decode[alignmentPayload](t, rec); got.Label != "Very Chaotic Good" {
		t.Fatalf("alignment = %+v, want Very Chaotic Good", got)
	}

	rec = serve(t, server, http.MethodGet, "/api/profile/7/attributes", "", nil)
	if got := decode[map[string]int](t, rec); got["strength"] != 14 || len(got) != 6 {
		t.Fatalf("attributes = %v", got)
	}

	rec = serve(t, server, http.MethodGet, "/api/profile/7/preferences", "", nil)
	if got := decode[preferencesPayload](t, rec); got.Combat != 80 || got.Social != 50 {
		t.Fatalf("preferences = %+v", got)
	}

	rec = serve(t, server, http.MethodGet, "/api/profile/7", "", nil)
	full := decode[profilePayload](t, rec)
	if full.CharacterID != 7 || full.Experience["strength"] != 0 || full.Personality["curiosity"] != 50 {
		t.Fatalf("profile = %+v", full)
	}
}

func TestProfileMissingCharacter(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(&fakeEngine{}, fakeProfiles{err: fmt.Errorf("put profile: %w", storage.ErrNotFound)})
	rec := serve(t, server, http.MethodGet, "/api/profile/99", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
	body := decode[errorResponse](t, rec)
	if body.Error.Code != string(apperrors.CodeCharacterNotFound) || body.Error.Message != "Character 99 was not found." {
		t.Fatalf("error = %+v", body.Error)
	}
}

func TestRandomOutfits(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{outfits: []outfit.Option{
		{ClassID: 1, ClassName: "Ranger", OutfitID: 3, OutfitDescription: "Ranger's Garb", Weight: 1},
	}}
	server, _ := newTestServer(engine, fakeProfiles{})

	rec := serve(t, server, http.MethodGet, "/api/story/outfits/random", "", nil)
	if rec.Code != http.StatusOK || engine.lastOutfitCount != defaultOutfitDraw {
		t.Fatalf("status = %d count = %d", rec.Code, engine.lastOutfitCount)
	}
	got := decode[struct {
		Outfits []outfitPayload `json:"outfits"`
	}](t, rec)
	if len(got.Outfits) != 1 || got.Outfits[0].ClassName != "Ranger" || got.Outfits[0].Label == "" {
		t.Fatalf("outfits = %+v", got.Outfits)
	}

	rec = serve(t, server, http.MethodGet, "/api/story/outfits/random?count=6", "", nil)
	if rec.Code != http.StatusOK || engine.lastOutfitCount != 6 {
		t.Fatalf("status = %d count = %d, want 6", rec.Code, engine.lastOutfitCount)
	}

	for _, count := range []string{"0", "x", "21"} {
		rec = serve(t, server, http.MethodGet, "/api/story/outfits/random?count="+count, "", nil)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("count %s status = %d, want %d", count, rec.Code, http.StatusBadRequest)
		}
	}
}

func TestCharacterRoutes(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{character: storage.Character{ID: 7, Name: "Robin", Level: 1}}
	server, _ := newTestServer(engine, fakeProfiles{})

	rec := serve(t, server, http.MethodPost, "/api/characters", `{"name":"Robin"}`, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusCreated)
	}
	if engine.lastName != "Robin" {
		t.Fatalf("name = %q, want Robin", engine.lastName)
	}
	if got := decode[characterPayload](t, rec); got.ID != 7 || got.DiedAt != nil {
		t.Fatalf("character = %+v", got)
	}

	rec = serve(t, server, http.MethodGet, "/api/characters/7", "", nil)
	if rec.Code != http.StatusOK || engine.lastCharacterID != 7 {
		t.Fatalf("status = %d character = %d", rec.Code, engine.lastCharacterID)
	}
}

func TestHealthzAndMethodRouting(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(&fakeEngine{}, fakeProfiles{})
	rec := serve(t, server, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Fatalf("healthz = %d %q", rec.Code, rec.Body.String())
	}
	rec = serve(t, server, http.MethodGet, "/api/story/choice", "", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET choice status = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}
}

func TestRequestsAreCounted(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	server := NewServer(&fakeEngine{node: lockerNode()}, fakeProfiles{}, Options{
		Metrics: metrics.New(reg),
		Logf:    func(string, ...any) {},
	})
	serve(t, server, http.MethodGet, "/api/story/nodes/19", "", nil)
	serve(t, server, http.MethodGet, "/api/story/nodes/abc", "", nil)

	expected := `
# HELP mythos_http_requests_total HTTP requests by route and status.
# TYPE mythos_http_requests_total counter
mythos_http_requests_total{route="GET /api/story/nodes/{nodeID}",status="200"} 1
mythos_http_requests_total{route="GET /api/story/nodes/{nodeID}",status="400"} 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "mythos_http_requests_total"); err != nil {
		t.Fatalf("request metrics: %v", err)
	}
}
