package router_test

import (
    "bytes"
    "encoding/json"
    "net/http"
    "net/http/httptest"
    "testing"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/workbook-assignment/internal/config"
    "github.com/iliyamo/workbook-assignment/internal/handler"
    "github.com/iliyamo/workbook-assignment/internal/logger"
    "github.com/iliyamo/workbook-assignment/internal/model"
    "github.com/iliyamo/workbook-assignment/internal/ratelimit"
    "github.com/iliyamo/workbook-assignment/internal/router"
    "github.com/iliyamo/workbook-assignment/internal/service"
    "github.com/iliyamo/workbook-assignment/internal/testutil"
    "github.com/iliyamo/workbook-assignment/internal/utils"
)

const secret = "router-test-secret"

type server struct {
    e     *echo.Echo
    token string
}

func newServer(t *testing.T, policies map[string]ratelimit.Policy) *server {
    t.Helper()
    store := testutil.Store(t)
    repos := service.ReposFrom(store)
    w := handler.NewWorkbookHandler(
        service.NewAssignmentService(repos),
        service.NewInstanceService(repos),
        service.NewSubmissionService(repos),
        nil,
    )
    a := handler.NewAdminHandler(service.NewCatalogService(repos), nil)
    limits := router.Limits{Limiter: ratelimit.New(ratelimit.NewMemoryStore(), nil), Policies: policies}

    e := echo.New()
    router.Setup(e, logger.Nop())
    router.RegisterRoutes(e, store.DB())
    router.RegisterAdmin(e, a, w, secret, limits, nil)
    router.RegisterPublic(e, a, w, limits)

    tok, err := utils.NewAccessToken(secret, "admin-1", "ADMIN", 10)
    require.NoError(t, err)
    return &server{e: e, token: tok.Token}
}

func (s *server) do(t *testing.T, method, path string, body any, admin bool) *httptest.ResponseRecorder {
    t.Helper()
    var buf bytes.Buffer
    if body != nil {
        require.NoError(t, json.NewEncoder(&buf).Encode(body))
    }
    req := httptest.NewRequest(method, path, &buf)
    req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
    if admin {
        req.Header.Set("Authorization", "Bearer "+s.token)
    }
    rec := httptest.NewRecorder()
    s.e.ServeHTTP(rec, req)
    return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
    t.Helper()
    var v T
    require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
    return v
}

type errorBody struct {
    Error   string   `json:"error"`
    Message string   `json:"message"`
    IDs     []string `json:"ids"`
}

func TestHealthz(t *testing.T) {
    s := newServer(t, config.DefaultPolicies())
    rec := s.do(t, http.MethodGet, "/healthz", nil, false)
    assert.Equal(t, http.StatusOK, rec.Code)
    assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
}

func TestWorkbookFlowOverHTTP(t *testing.T) {
    s := newServer(t, config.DefaultPolicies())

    rec := s.do(t, http.MethodPost, "/v1/admin/templates", map[string]any{
        "title": "Values", "questions": []string{"What matters?", "Why?"},
    }, true)
    require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
    tpl := decode[model.Template](t, rec)

    rec = s.do(t, http.MethodPost, "/v1/admin/users", map[string]any{"name": "Ana", "email": "ana@example.com"}, true)
    require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
    user := decode[model.User](t, rec)

    rec = s.do(t, http.MethodPost, "/v1/admin/assign", map[string]any{"templateId": tpl.ID, "userId": user.ID}, true)
    require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
    assigned := decode[map[string]string](t, rec)
    instID := assigned["instanceId"]
    assert.Contains(t, assigned["shareableLink"], instID)

    rec = s.do(t, http.MethodPost, "/v1/admin/assign", map[string]any{"templateId": tpl.ID, "userId": user.ID}, true)
    assert.Equal(t, http.StatusConflict, rec.Code)
    assert.Equal(t, "AlreadyAssigned", decode[errorBody](t, rec).Error)

    rec = s.do(t, http.MethodGet, "/v1/instances/"+instID+"?user="+user.ID, nil, false)
    require.Equal(t, http.StatusOK, rec.Code)
    assert.Equal(t, model.StatusAssigned, decode[model.Instance](t, rec).Status)

    rec = s.do(t, http.MethodPut, "/v1/instances/"+instID+"?user="+user.ID, map[string]any{
        "answers": []map[string]string{{"answer": "Family"}, {"answer": ""}},
    }, false)
    require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
    assert.Equal(t, model.StatusInProgress, decode[model.Instance](t, rec).Status)

    rec = s.do(t, http.MethodPut, "/v1/submit-all", map[string]any{
        "userId": user.ID, "instances": []map[string]any{{"id": instID}},
    }, false)
    require.Equal(t, http.StatusBadRequest, rec.Code)
    body := decode[errorBody](t, rec)
    assert.Equal(t, "IncompleteWorkbook", body.Error)
    assert.Equal(t, []string{instID}, body.IDs)

    rec = s.do(t, http.MethodPut, "/v1/submit-all", map[string]any{
        "userId": user.ID,
        "instances": []map[string]any{{
            "id":      instID,
            "answers": []map[string]string{{"answer": "Family"}, {"answer": "Because"}},
        }},
    }, false)
    require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
    res := decode[service.SubmitResult](t, rec)
    assert.True(t, res.User.IsCompleted)
    assert.Equal(t, model.StatusSubmitted, res.Instances[0].Status)

    rec = s.do(t, http.MethodGet, "/v1/instances/"+instID+"?user="+user.ID, nil, false)
    assert.Equal(t, http.StatusForbidden, rec.Code)
    assert.Equal(t, "AccessExpired", decode[errorBody](t, rec).Error)

    rec = s.do(t, http.MethodPut, "/v1/admin/instances/"+instID+"/review", map[string]string{"feedback": "Nice"}, true)
    require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
    assert.Equal(t, model.StatusReviewed, decode[model.Instance](t, rec).Status)

    rec = s.do(t, http.MethodGet, "/v1/users/"+user.ID+"/access", nil, false)
    require.Equal(t, http.StatusOK, rec.Code)
    assert.False(t, decode[service.AccessSummary](t, rec).CanAccess)

    rec = s.do(t, http.MethodGet, "/v1/admin/users/"+user.ID+"/workbooks", nil, true)
    require.Equal(t, http.StatusOK, rec.Code)
    assert.Len(t, decode[[]model.Instance](t, rec), 1)

    rec = s.do(t, http.MethodDelete, "/v1/admin/assign?instanceId="+instID+"&userId="+user.ID, nil, true)
    assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
    rec = s.do(t, http.MethodDelete, "/v1/admin/assign", map[string]string{"instanceId": instID, "userId": user.ID}, true)
    assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestErrorStatuses(t *testing.T) {
    s := newServer(t, config.DefaultPolicies())

    rec := s.do(t, http.MethodGet, "/v1/instances/nope?user=alsonope", nil, false)
    assert.Equal(t, http.StatusBadRequest, rec.Code)
    assert.Equal(t, "InvalidIdFormat", decode[errorBody](t, rec).Error)

    missing := testutil.MustID(t)
    rec = s.do(t, http.MethodPost, "/v1/admin/assign", map[string]any{"templateId": missing, "userId": missing}, true)
    assert.Equal(t, http.StatusNotFound, rec.Code)
    assert.Equal(t, "TemplateNotFound", decode[errorBody](t, rec).Error)

    rec = s.do(t, http.MethodGet, "/v1/admin/templates", nil, false)
    assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRateLimitedRouteReturns429(t *testing.T) {
    policies := config.DefaultPolicies()
    policies[config.PolicyAuth] = ratelimit.Policy{Name: config.PolicyAuth, Window: time.Minute, MaxRequests: 2}
    s := newServer(t, policies)
    path := "/v1/users/" + testutil.MustID(t) + "/access"

    for i := 0; i < 2; i++ {
        assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, path, nil, false).Code)
    }
    rec := s.do(t, http.MethodGet, path, nil, false)
    require.Equal(t, http.StatusTooManyRequests, rec.Code)
    assert.NotEmpty(t, rec.Header().Get("Retry-After"))
    body := decode[map[string]any](t, rec)
    assert.EqualValues(t, 2, body["limit"])
    assert.EqualValues(t, 0, body["remaining"])

    // other classes keep their own counters
    assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/v1/admin/templates", nil, true).Code)
}
