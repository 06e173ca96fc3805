package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	api "github.com/mind-engage/mindengage-practice/internal/api/http"
	auth "github.com/mind-engage/mindengage-practice/internal/auth/middleware"
	"github.com/mind-engage/mindengage-practice/internal/catalog"
	"github.com/mind-engage/mindengage-practice/internal/grading"
	"github.com/mind-engage/mindengage-practice/internal/practice"
	"github.com/mind-engage/mindengage-practice/internal/progress"
)

type harness struct {
	router chi.Router
	store  *progress.MemoryStore
	auth   *auth.AuthService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cat := catalog.NewStatic()
	cat.PutBank(catalog.Bank{ID: "B", Name: "Bank B"},
		catalog.Question{ID: "q1", Type: catalog.TypeSingle, Options: []string{"x", "y"}, Answer: []string{"A"}},
		catalog.Question{ID: "q2", Type: catalog.TypeMultiple, Options: []string{"x", "y", "z"}, Answer: []string{"A", "C"}},
	)
	cat.PutBank(catalog.Bank{ID: "F", Name: "Fill"},
		catalog.Question{ID: "f1", Type: catalog.TypeFillInBlank, Blanks: []catalog.Blank{
			{ID: "b1", AcceptedAnswers: []string{"Paris"}},
			{ID: "b2", AcceptedAnswers: []string{"Rome"}},
		}},
	)

	store := progress.NewMemoryStore()
	cfg := practice.DefaultConfig()
	cfg.AdvanceDelay = 0
	cfg.Writer.Debounce = 5 * time.Millisecond
	svc := practice.NewService(cat, store, grading.NewDefaultGrader(), cfg,
		practice.WithClock(func() time.Time { return time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC) }))
	t.Cleanup(func() { _ = svc.Close(context.Background()) })

	a := auth.NewAuthService("test-secret")
	r := api.NewRouter(api.Deps{Practice: svc, Store: store, Catalog: cat, Auth: a})
	return &harness{router: r, store: store, auth: a}
}

func (h *harness) token(t *testing.T, learner, role string) string {
	t.Helper()
	tok, err := h.auth.IssueJWT(learner, role)
	require.NoError(t, err)
	return tok
}

func (h *harness) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestAuthRequired(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/healthz", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, h.do(t, http.MethodGet, "/api/practice-records", "", nil).Code)
}

func TestSessionFlow(t *testing.T) {
	h := newHarness(t)
	tok := h.token(t, "u1", "")

	rec := h.do(t, http.MethodPost, "/api/sessions", tok, map[string]any{"bankId": "B", "mode": "SEQUENTIAL"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	view := decode(t, rec)
	id := view["id"].(string)
	assert.EqualValues(t, 2, view["total"])
	question := view["question"].(map[string]any)
	assert.Nil(t, question["answer"], "answer stays hidden until locked")

	rec = h.do(t, http.MethodPost, "/api/sessions/"+id+"/select", tok, map[string]string{"label": "A"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decode(t, rec)["result"].(map[string]any)
	assert.Equal(t, true, result["isCorrect"])

	other := h.token(t, "u2", "")
	assert.Equal(t, http.StatusForbidden, h.do(t, http.MethodGet, "/api/sessions/"+id, other, nil).Code)
	assert.Equal(t, http.StatusNotFound, h.do(t, http.MethodGet, "/api/sessions/nope", tok, nil).Code)

	rec = h.do(t, http.MethodPost, "/api/sessions/"+id+"/confirm", tok, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, "confirm on a single-choice question")

	rec = h.do(t, http.MethodPost, "/api/sessions/"+id+"/exit", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "home", decode(t, rec)["route"])
	assert.Equal(t, http.StatusNotFound, h.do(t, http.MethodPost, "/api/sessions/"+id+"/next", tok, nil).Code, "closed sessions leave the registry")

	rec = h.do(t, http.MethodPost, "/api/sessions", tok, map[string]any{"bankId": "B", "mode": "SEQUENTIAL"})
	require.Equal(t, http.StatusConflict, rec.Code)
	stored := decode(t, rec)["record"].(map[string]any)
	assert.Equal(t, []any{"A"}, stored["userAnswers"].(map[string]any)["q1"])

	rec = h.do(t, http.MethodGet, "/api/sessions/resumable?bankId=B&mode=SEQUENTIAL", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotNil(t, decode(t, rec)["record"])

	rec = h.do(t, http.MethodPost, "/api/sessions", tok, map[string]any{"bankId": "B", "mode": "SEQUENTIAL", "decision": "continue"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.EqualValues(t, 1, decode(t, rec)["answeredCount"])
}

func TestStartErrors(t *testing.T) {
	h := newHarness(t)
	tok := h.token(t, "u1", "")

	rec := h.do(t, http.MethodPost, "/api/sessions", tok, map[string]any{"bankId": "B", "mode": "NOPE"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, []any{"mode"}, decode(t, rec)["fields"])

	rec = h.do(t, http.MethodPost, "/api/sessions", tok, map[string]any{"bankId": "EMPTY", "mode": "SEQUENTIAL"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPracticeRecordsCRUD(t *testing.T) {
	h := newHarness(t)
	tok := h.token(t, "u1", "")

	body := map[string]any{"bankId": "B", "mode": "SEQUENTIAL", "currentIndex": 1, "userAnswers": map[string][]string{"q1": {"A"}}}
	rec := h.do(t, http.MethodPost, "/api/practice-records", tok, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := decode(t, rec)["id"].(string)

	assert.Equal(t, http.StatusConflict, h.do(t, http.MethodPost, "/api/practice-records", tok, body).Code)

	rec = h.do(t, http.MethodGet, "/api/practice-records/find?bankId=B&mode=SEQUENTIAL", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, id, decode(t, rec)["id"])
	assert.Equal(t, "u1", decode(t, rec)["learnerId"])

	update := map[string]any{"currentIndex": 0, "userAnswers": map[string][]string{}}
	rec = h.do(t, http.MethodPut, "/api/practice-records/"+id, tok, update)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decode(t, rec)["changes"])

	intruder := h.token(t, "u2", "")
	rec = h.do(t, http.MethodPut, "/api/practice-records/"+id, intruder, update)
	assert.EqualValues(t, 0, decode(t, rec)["changes"])
	assert.Equal(t, http.StatusNotFound, h.do(t, http.MethodGet, "/api/practice-records/"+id, intruder, nil).Code)

	assert.Equal(t, http.StatusNoContent, h.do(t, http.MethodDelete, "/api/practice-records/"+id, tok, nil).Code)
	assert.Equal(t, http.StatusNotFound, h.do(t, http.MethodGet, "/api/practice-records/"+id, tok, nil).Code)
}

func TestSrsEndpoints(t *testing.T) {
	h := newHarness(t)
	tok := h.token(t, "u1", "")

	rec := h.do(t, http.MethodPost, "/api/srs/update", tok, map[string]string{"questionId": "q1", "grade": "HARD"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode(t, rec)
	assert.EqualValues(t, 0, got["interval"])
	assert.Equal(t, "2024-01-01", got["nextReviewDate"])

	rec = h.do(t, http.MethodGet, "/api/srs/due", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{"q1"}, decode(t, rec)["questionIds"])

	rec = h.do(t, http.MethodPost, "/api/srs/update", tok, map[string]string{"questionId": "q1", "grade": "MEH"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, []any{"grade"}, decode(t, rec)["fields"])
}

func TestExamHistory(t *testing.T) {
	h := newHarness(t)
	tok := h.token(t, "u1", "")

	rec := h.do(t, http.MethodPost, "/api/exams/history", tok, map[string]any{"examId": "mock:B", "bankId": "B", "currentIndex": 1})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	id := decode(t, rec)["id"].(string)

	final := map[string]any{"score": 70, "totalScore": 100, "passScore": 60, "timeUsed": 30, "wrongQuestionIds": []string{"q2"}}
	rec = h.do(t, http.MethodPut, "/api/exams/history/"+id+"/finalize", tok, final)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	done := decode(t, rec)
	assert.Equal(t, true, done["isFinished"])
	assert.Equal(t, true, done["passed"])

	assert.Equal(t, http.StatusConflict, h.do(t, http.MethodPut, "/api/exams/history/"+id+"/finalize", tok, final).Code)

	rec = h.do(t, http.MethodGet, "/api/exams/history?status=finished", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	assert.Equal(t, http.StatusForbidden, h.do(t, http.MethodGet, "/api/admin/exam-history", tok, nil).Code)
	rec = h.do(t, http.MethodGet, "/api/admin/exam-history?learner_id=u1", h.token(t, "ops", auth.RoleAdmin), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)
}

func TestGradeFillBlank(t *testing.T) {
	h := newHarness(t)
	tok := h.token(t, "u1", "")

	rec := h.do(t, http.MethodPost, "/api/questions/f1/grade-fill-blank", tok, map[string]any{"answers": map[string]string{"b1": " paris ", "b2": "Milan"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode(t, rec)
	assert.EqualValues(t, 1, got["correct"])
	assert.EqualValues(t, 2, got["total"])
	assert.EqualValues(t, 50, got["percentage"])
	assert.Equal(t, false, got["isAllCorrect"])

	assert.Equal(t, http.StatusUnprocessableEntity, h.do(t, http.MethodPost, "/api/questions/q1/grade-fill-blank", tok, map[string]any{"answers": map[string]string{}}).Code)
	assert.Equal(t, http.StatusNotFound, h.do(t, http.MethodPost, "/api/questions/zz/grade-fill-blank", tok, map[string]any{"answers": map[string]string{}}).Code)
}

func TestResetAndLogout(t *testing.T) {
	h := newHarness(t)
	tok := h.token(t, "u1", "")

	rec := h.do(t, http.MethodPost, "/api/sessions", tok, map[string]any{"bankId": "B", "mode": "SEQUENTIAL"})
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode(t, rec)["id"].(string)
	require.Equal(t, http.StatusOK, h.do(t, http.MethodPost, "/api/sessions/"+id+"/select", tok, map[string]string{"label": "B"}).Code)

	assert.Equal(t, http.StatusNoContent, h.do(t, http.MethodPost, "/api/user/logout", tok, nil).Code)
	assert.Equal(t, http.StatusNotFound, h.do(t, http.MethodGet, "/api/sessions/"+id, tok, nil).Code)

	recs, err := h.store.ListPracticeRecords(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, recs, 1)

	assert.Equal(t, http.StatusNoContent, h.do(t, http.MethodPost, "/api/user/reset", tok, nil).Code)
	recs, err = h.store.ListPracticeRecords(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, recs)
	mistakes, err := h.store.ListMistakes(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, mistakes)
}
