package api_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/okian/bosstimeline/internal/adapters/http/api"
	"github.com/okian/bosstimeline/internal/adapters/repository"
	"github.com/okian/bosstimeline/internal/adapters/source"
	service "github.com/okian/bosstimeline/internal/app"
	"github.com/okian/bosstimeline/internal/domain/model"
	"github.com/okian/bosstimeline/internal/testreports"
	. "github.com/smartystreets/goconvey/convey"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Mock implementations for testing
type mockDeps struct {
	last       service.Request
	resp       service.Response
	reconErr   error
	timelines  map[string]repository.Timeline
	recent     []repository.Summary
	recentSize int
}

func (m *mockDeps) Reconcile(_ context.Context, req service.Request) (service.Response, error) { //nolint:gocritic // hugeParam: mirrors the interface
	m.last = req
	if m.reconErr != nil {
		return service.Response{}, m.reconErr
	}
	return m.resp, nil
}

func (m *mockDeps) Timeline(_ context.Context, boss string) (repository.Timeline, error) {
	tl, ok := m.timelines[boss]
	if !ok {
		return repository.Timeline{}, repository.ErrNotFound
	}
	return tl, nil
}

func (m *mockDeps) Recent(_ context.Context, n int) ([]repository.Summary, error) {
	m.recentSize = n
	if n > len(m.recent) {
		return m.recent, nil
	}
	return m.recent[:n], nil
}

type mockStats struct{}

func (mockStats) GetStats() map[string]any {
	return map[string]any{"started": true, "timelines": 1}
}

func newMux(deps *mockDeps) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(deps, mockStats{}, 50).Register(context.Background(), mux)
	return mux
}

func do(mux *http.ServeMux, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, http.NoBody)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func action(name string, at float64) model.AggregatedAction {
	return model.AggregatedAction{
		ID:                model.ActionID(strings.ToLower(name), 1, model.NoPhase),
		AbilityOccurrence: model.AbilityOccurrence{Name: name, Index: 1, Time: at, HitCount: 1},
		DamageText:        "40000",
		Confidence:        1,
		Source:            model.SourceReport,
	}
}

func TestReconcileEndpoint(t *testing.T) {
	Convey("Given an API server", t, func() {
		deps := &mockDeps{resp: service.Response{
			RunID:   "run-1",
			Boss:    "ifrit",
			Actions: []model.AggregatedAction{action("Meteor", 20)},
			Mappings: []model.SyncMapping{
				{Entry: model.ScriptEntry{Name: "Meteor", Index: 1, Time: 30}, Matched: true, ActionID: "x"},
			},
			Diagnostics: model.RunDiagnostics{ReportsIn: 2, ScriptEntries: 1, OffsetFound: true, Matched: 1},
		}}
		mux := newMux(deps)

		Convey("When posting reports and a script", func() {
			var report strings.Builder
			r := testreports.New(1).Reports(testreports.DefaultFight("ifrit"), 1)[0]
			So(source.EncodeReport(&report, r), ShouldBeNil)
			body := `{"boss": "ifrit", "reports": [` + report.String() + `], "script": "30 \"Meteor\"\n", "strategy": "average"}`

			w := do(mux, http.MethodPost, "/timelines", body)

			Convey("Then the request reaches the service decoded", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.last.Boss, ShouldEqual, "ifrit")
				So(deps.last.Reports, ShouldHaveLength, 1)
				So(deps.last.Reports[0].Events, ShouldHaveLength, len(r.Events))
				So(deps.last.Script, ShouldHaveLength, 1)
				So(deps.last.Strategy, ShouldEqual, "average")
			})

			Convey("Then the response carries the flat timeline", func() {
				var out struct {
					RunID       string `json:"run_id"`
					Actions     []map[string]any
					Mappings    []map[string]any
					Diagnostics map[string]any
				}
				So(json.Unmarshal(w.Body.Bytes(), &out), ShouldBeNil)
				So(out.RunID, ShouldEqual, "run-1")
				So(out.Actions, ShouldHaveLength, 1)
				So(out.Actions[0]["name"], ShouldEqual, "Meteor")
				So(out.Mappings, ShouldHaveLength, 1)
				So(out.Diagnostics["reports_in"], ShouldEqual, 2.0)
				So(out.Diagnostics["degraded"], ShouldBeFalse)
			})
		})

		Convey("When the script is an empty string", func() {
			w := do(mux, http.MethodPost, "/timelines", `{"boss": "ifrit", "script": ""}`)

			Convey("Then sync is disabled rather than read from the source", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.last.Script, ShouldNotBeNil)
				So(deps.last.Script, ShouldBeEmpty)
				So(deps.last.Reports, ShouldBeEmpty)
			})
		})

		Convey("When the script is absent", func() {
			do(mux, http.MethodPost, "/timelines", `{"boss": "ifrit"}`)

			So(deps.last.Script, ShouldBeNil)
		})

		Convey("When the body is invalid", func() {
			So(do(mux, http.MethodPost, "/timelines", `{"boss": `).Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, http.MethodPost, "/timelines", `{"boss": "  "}`).Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, http.MethodPost, "/timelines", `{"boss": "ifrit", "reports": [{"events": []}]}`).Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the service rejects the request", func() {
			deps.reconErr = service.ErrInvalidRequest
			So(do(mux, http.MethodPost, "/timelines", `{"boss": "ifrit"}`).Code, ShouldEqual, http.StatusBadRequest)

			deps.reconErr = service.ErrNotStarted
			So(do(mux, http.MethodPost, "/timelines", `{"boss": "ifrit"}`).Code, ShouldEqual, http.StatusServiceUnavailable)

			deps.reconErr = errors.New("list reports: disk gone")
			w := do(mux, http.MethodPost, "/timelines", `{"boss": "ifrit"}`)
			So(w.Code, ShouldEqual, http.StatusInternalServerError)
			So(w.Body.String(), ShouldContainSubstring, "internal_error")
		})

		Convey("When using an unsupported method", func() {
			So(do(mux, http.MethodDelete, "/timelines", "").Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestReadEndpoints(t *testing.T) {
	Convey("Given stored timelines", t, func() {
		stored := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		deps := &mockDeps{
			timelines: map[string]repository.Timeline{
				"ifrit": {Boss: "ifrit", RunID: "run-1", StoredAt: stored, Actions: []model.AggregatedAction{action("Meteor", 20)}},
			},
			recent: []repository.Summary{
				{Rank: 1, Boss: "ifrit", RunID: "run-1", StoredAt: stored, Actions: 1},
				{Rank: 2, Boss: "titan", RunID: "run-0", StoredAt: stored.Add(-time.Hour), Actions: 4, Degraded: true},
			},
		}
		mux := newMux(deps)

		Convey("When fetching one boss", func() {
			w := do(mux, http.MethodGet, "/timelines/ifrit", "")

			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"run_id":"run-1"`)
			So(w.Body.String(), ShouldContainSubstring, `"stored_at":"2024-05-01T12:00:00Z"`)
		})

		Convey("When fetching an unknown boss", func() {
			So(do(mux, http.MethodGet, "/timelines/titan", "").Code, ShouldEqual, http.StatusNotFound)
			So(do(mux, http.MethodGet, "/timelines/a/b", "").Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When listing recent runs", func() {
			w := do(mux, http.MethodGet, "/timelines?limit=1", "")

			var out []map[string]any
			So(w.Code, ShouldEqual, http.StatusOK)
			So(json.Unmarshal(w.Body.Bytes(), &out), ShouldBeNil)
			So(out, ShouldHaveLength, 1)
			So(out[0]["boss"], ShouldEqual, "ifrit")
		})

		Convey("When the limit is omitted", func() {
			do(mux, http.MethodGet, "/timelines", "")

			So(deps.recentSize, ShouldEqual, 10)
		})

		Convey("When the limit is invalid", func() {
			So(do(mux, http.MethodGet, "/timelines?limit=0", "").Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, http.MethodGet, "/timelines?limit=abc", "").Code, ShouldEqual, http.StatusBadRequest)

			w := do(mux, http.MethodGet, "/timelines?limit=51", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(w.Body.String(), ShouldContainSubstring, "limit_exceeded")
		})
	})
}

func TestOperationalEndpoints(t *testing.T) {
	Convey("Given an API server", t, func() {
		mux := newMux(&mockDeps{})

		Convey("When fetching stats", func() {
			w := do(mux, http.MethodGet, "/stats", "")

			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get("Content-Type"), ShouldEqual, "application/json; charset=utf-8")
			So(w.Body.String(), ShouldContainSubstring, `"timelines":1`)
		})

		Convey("When scraping health", func() {
			w := do(mux, http.MethodGet, "/healthz", "")

			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "bosstimeline_reconcile_reports_processed_total")
		})
	})
}
