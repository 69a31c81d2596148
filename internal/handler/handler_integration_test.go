package handler

import (
	"bytes"
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"template-pipeline/internal/domain"
	"template-pipeline/internal/repository"
	"template-pipeline/internal/template"
	"template-pipeline/internal/transport"
)

const validTemplateBody = `{
	"name": "order_update",
	"category": "utility",
	"language": "en_US",
	"components": [
		{"type": "BODY", "text": "Hi {{1}}, your order {{2}} has shipped.", "example": [["Ada", "A-1001"]]}
	]
}`

func TestTemplateRoutes_Register(t *testing.T) {
	t.Parallel()

	svc := &stubTemplateService{
		registerFn: func(ctx context.Context, tpl *domain.Template) (*domain.Template, error) {
			if tpl.Name != "order_update" {
				t.Fatalf("name = %q, want order_update", tpl.Name)
			}
			if tpl.Category != domain.CategoryUtility {
				t.Fatalf("category = %q, want UTILITY", tpl.Category)
			}
			return tpl, nil
		},
	}

	app := newTestApp(t, svc, nil, nil)

	resp, body := performRequest(t, app, http.MethodPost, "/v1/templates", validTemplateBody)
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("status = %d, want 201, body=%s", resp.StatusCode, string(body))
	}

	var parsed map[string]any
	if err := json.Unmarshal(body, &parsed); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if parsed["name"] != "order_update" {
		t.Fatalf("name = %v, want order_update", parsed["name"])
	}
	if parsed["category"] != "UTILITY" {
		t.Fatalf("category = %v, want UTILITY", parsed["category"])
	}

	resp, _ = performRequest(t, app, http.MethodPost, "/v1/templates", "{not json")
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for malformed body", resp.StatusCode)
	}
}

func TestTemplateRoutes_RegisterRejected(t *testing.T) {
	t.Parallel()

	svc := &stubTemplateService{
		registerFn: func(ctx context.Context, tpl *domain.Template) (*domain.Template, error) {
			return nil, domain.ErrValidation
		},
	}

	app := newTestApp(t, svc, nil, nil)

	resp, _ := performRequest(t, app, http.MethodPost, "/v1/templates", validTemplateBody)
	if resp.StatusCode != fiber.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422 for rejected template", resp.StatusCode)
	}
}

func TestTemplateRoutes_Validate(t *testing.T) {
	t.Parallel()

	svc := &stubTemplateService{
		validateFn: func(tpl *domain.Template) template.Violations {
			if tpl.Name == "order_update" {
				return nil
			}
			return template.Violations{
				{Component: "TEMPLATE", Code: template.CodeNameInvalid, Message: "bad name"},
			}
		},
	}

	app := newTestApp(t, svc, nil, nil)

	resp, body := performRequest(t, app, http.MethodPost, "/v1/templates/validate", validTemplateBody)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, string(body))
	}
	var parsed validateTemplateResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if !parsed.Valid || len(parsed.Violations) != 0 {
		t.Fatalf("parsed = %+v, want valid with no violations", parsed)
	}

	invalidBody := strings.Replace(validTemplateBody, "order_update", "Bad Name", 1)
	resp, body = performRequest(t, app, http.MethodPost, "/v1/templates/validate", invalidBody)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200 even for invalid template", resp.StatusCode)
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if parsed.Valid || len(parsed.Violations) != 1 {
		t.Fatalf("parsed = %+v, want invalid with one violation", parsed)
	}
	if parsed.Violations[0].Code != template.CodeNameInvalid {
		t.Fatalf("code = %s, want NAME_INVALID", parsed.Violations[0].Code)
	}
}

func TestTemplateRoutes_GetAndDelete(t *testing.T) {
	t.Parallel()

	svc := &stubTemplateService{
		getFn: func(ctx context.Context, name string) (*domain.Template, error) {
			if name == "order_update" {
				return &domain.Template{Name: "order_update", Category: domain.CategoryUtility, Language: "en_US"}, nil
			}
			return nil, domain.ErrNotFound
		},
	}

	app := newTestApp(t, svc, nil, nil)

	resp, _ := performRequest(t, app, http.MethodGet, "/v1/templates/order_update", "")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	resp, _ = performRequest(t, app, http.MethodGet, "/v1/templates/not_there", "")
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}

	resp, _ = performRequest(t, app, http.MethodDelete, "/v1/templates/order_update", "")
	if resp.StatusCode != fiber.StatusNoContent {
		t.Fatalf("status = %d, want 204", resp.StatusCode)
	}
}

func TestTemplateRoutes_Preview(t *testing.T) {
	t.Parallel()

	svc := &stubTemplateService{
		previewFn: func(ctx context.Context, name string, values map[int]string) ([]template.PreviewComponent, error) {
			if values[1] != "Ada" {
				t.Fatalf("values[1] = %q, want Ada", values[1])
			}
			return []template.PreviewComponent{
				{Type: domain.ComponentBody, Text: "Hi Ada, your order A-1001 has shipped."},
			}, nil
		},
	}

	app := newTestApp(t, svc, nil, nil)

	resp, body := performRequest(t, app, http.MethodPost, "/v1/templates/order_update/preview",
		`{"values":{"1":"Ada","2":"A-1001"}}`)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, string(body))
	}

	var parsed previewTemplateResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if parsed.Template != "order_update" || len(parsed.Components) != 1 {
		t.Fatalf("parsed = %+v", parsed)
	}
	if parsed.Components[0].Text != "Hi Ada, your order A-1001 has shipped." {
		t.Fatalf("text = %q", parsed.Components[0].Text)
	}
}

func TestSendRoutes_Create(t *testing.T) {
	t.Parallel()

	svc := &stubSendService{
		acceptFn: func(ctx context.Context, send *domain.Send) (*domain.Send, error) {
			if err := send.Validate(); err != nil {
				return nil, err
			}
			send.ID = "s-created"
			send.Status = domain.SendStatusQueued
			return send, nil
		},
	}

	app := newTestApp(t, nil, svc, nil)

	validBody := `{"templateName":"order_update","recipient":"+15550001111","values":{"1":"Ada","2":"A-1001"}}`
	resp, body := performRequest(t, app, http.MethodPost, "/v1/sends", validBody)
	if resp.StatusCode != fiber.StatusAccepted {
		t.Fatalf("status = %d, want 202, body=%s", resp.StatusCode, string(body))
	}

	var parsed map[string]any
	if err := json.Unmarshal(body, &parsed); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if parsed["id"] != "s-created" {
		t.Fatalf("id = %v, want s-created", parsed["id"])
	}
	if parsed["status"] != domain.SendStatusQueued.String() {
		t.Fatalf("status = %v, want QUEUED", parsed["status"])
	}

	missingRecipient := `{"templateName":"order_update","recipient":""}`
	resp, _ = performRequest(t, app, http.MethodPost, "/v1/sends", missingRecipient)
	if resp.StatusCode != fiber.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422 for missing recipient", resp.StatusCode)
	}
}

func TestSendRoutes_Get(t *testing.T) {
	t.Parallel()

	svc := &stubSendService{
		getByIDFn: func(ctx context.Context, id string) (*domain.Send, error) {
			if id == "s-found" {
				return &domain.Send{
					ID:           "s-found",
					TemplateName: "order_update",
					Recipient:    "+15550001111",
					Status:       domain.SendStatusSent,
				}, nil
			}
			return nil, domain.ErrNotFound
		},
	}

	app := newTestApp(t, nil, svc, nil)

	resp, _ := performRequest(t, app, http.MethodGet, "/v1/sends/s-found", "")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	resp, _ = performRequest(t, app, http.MethodGet, "/v1/sends/nope", "")
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestSendRoutes_ListFilters(t *testing.T) {
	t.Parallel()

	fromExpected, _ := time.Parse(time.RFC3339, "2026-01-01T00:00:00Z")
	toExpected, _ := time.Parse(time.RFC3339, "2026-01-31T23:59:59Z")

	svc := &stubSendService{
		listFn: func(ctx context.Context, params repository.SendListParams) ([]domain.Send, int64, error) {
			if params.Page != 2 || params.PageSize != 10 {
				t.Fatalf("pagination = %d/%d, want 2/10", params.Page, params.PageSize)
			}
			if params.Status == nil || *params.Status != domain.SendStatusSent {
				t.Fatalf("status filter = %v, want SENT", params.Status)
			}
			if params.TemplateName == nil || *params.TemplateName != "order_update" {
				t.Fatalf("template filter = %v, want order_update", params.TemplateName)
			}
			if params.From == nil || !params.From.Equal(fromExpected) {
				t.Fatalf("from = %v, want %v", params.From, fromExpected)
			}
			if params.To == nil || !params.To.Equal(toExpected) {
				t.Fatalf("to = %v, want %v", params.To, toExpected)
			}
			return []domain.Send{{ID: "s-1", Status: domain.SendStatusSent}}, 1, nil
		},
	}

	app := newTestApp(t, nil, svc, nil)

	path := "/v1/sends?page=2&pageSize=10&status=sent&template=order_update&from=2026-01-01T00:00:00Z&to=2026-01-31T23:59:59Z"
	resp, body := performRequest(t, app, http.MethodGet, path, "")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, string(body))
	}

	var parsed listSendsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if parsed.Meta.Total != 1 || len(parsed.Data) != 1 {
		t.Fatalf("parsed = %+v, want one send", parsed)
	}

	resp, _ = performRequest(t, app, http.MethodGet,
		"/v1/sends?from=2026-02-01T00:00:00Z&to=2026-01-01T00:00:00Z", "")
	if resp.StatusCode != fiber.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422 for inverted date range", resp.StatusCode)
	}
}

func TestQualityRoutes_GetVerdict(t *testing.T) {
	t.Parallel()

	capturedAt, _ := time.Parse(time.RFC3339, "2026-08-01T12:00:00Z")
	reader := &stubQualityReader{
		getLatestVerdictFn: func(ctx context.Context, name string) (*domain.QualityVerdict, error) {
			if name != "order_update" {
				return nil, domain.ErrNotFound
			}
			return &domain.QualityVerdict{
				TemplateName: "order_update",
				Score:        87.5,
				Status:       domain.QualityExcellent,
				Guidance:     "Template is performing well. No action needed.",
				CapturedAt:   capturedAt,
			}, nil
		},
	}

	app := newTestApp(t, nil, nil, reader)

	resp, body := performRequest(t, app, http.MethodGet, "/v1/templates/order_update/quality", "")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, string(body))
	}

	var parsed qualityResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if parsed.Template != "order_update" || parsed.Score != 87.5 {
		t.Fatalf("parsed = %+v", parsed)
	}
	if parsed.Status != domain.QualityExcellent.String() {
		t.Fatalf("status = %s, want EXCELLENT", parsed.Status)
	}

	resp, _ = performRequest(t, app, http.MethodGet, "/v1/templates/unknown/quality", "")
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("status = %d, want 404 without a stored verdict", resp.StatusCode)
	}
}

func TestHealthRoutes_LivezAndReadyz(t *testing.T) {
	t.Parallel()

	t.Run("livez returns 200", func(t *testing.T) {
		t.Parallel()

		app := fiber.New(fiber.Config{ErrorHandler: transport.ErrorHandler(zap.NewNop())})
		RegisterHealthRoutes(app, sql.OpenDB(stubConnector{}), newStubRedisClient(nil), stubBroker{healthy: true})

		resp, body := performRequest(t, app, http.MethodGet, "/livez", "")
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, string(body))
		}
	})

	t.Run("readyz returns 200 when dependencies healthy", func(t *testing.T) {
		t.Parallel()

		sqlDB := sql.OpenDB(stubConnector{})
		t.Cleanup(func() { _ = sqlDB.Close() })

		rdb := newStubRedisClient(nil)
		t.Cleanup(func() { _ = rdb.Close() })

		app := fiber.New(fiber.Config{ErrorHandler: transport.ErrorHandler(zap.NewNop())})
		RegisterHealthRoutes(app, sqlDB, rdb, stubBroker{healthy: true})

		resp, body := performRequest(t, app, http.MethodGet, "/readyz", "")
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, string(body))
		}
	})

	t.Run("readyz returns 503 when dependencies down", func(t *testing.T) {
		t.Parallel()

		sqlDB := sql.OpenDB(stubConnector{pingErr: errors.New("postgres down")})
		t.Cleanup(func() { _ = sqlDB.Close() })

		rdb := newStubRedisClient(errors.New("redis down"))
		t.Cleanup(func() { _ = rdb.Close() })

		app := fiber.New(fiber.Config{ErrorHandler: transport.ErrorHandler(zap.NewNop())})
		RegisterHealthRoutes(app, sqlDB, rdb, stubBroker{healthy: false})

		resp, body := performRequest(t, app, http.MethodGet, "/readyz", "")
		if resp.StatusCode != fiber.StatusServiceUnavailable {
			t.Fatalf("status = %d, want 503, body=%s", resp.StatusCode, string(body))
		}
	})
}

type stubTemplateService struct {
	registerFn func(ctx context.Context, tpl *domain.Template) (*domain.Template, error)
	validateFn func(tpl *domain.Template) template.Violations
	getFn      func(ctx context.Context, name string) (*domain.Template, error)
	listFn     func(ctx context.Context, page, pageSize int) ([]domain.Template, int64, error)
	deleteFn   func(ctx context.Context, name string) error
	previewFn  func(ctx context.Context, name string, values map[int]string) ([]template.PreviewComponent, error)
}

func (s *stubTemplateService) Register(ctx context.Context, tpl *domain.Template) (*domain.Template, error) {
	if s.registerFn != nil {
		return s.registerFn(ctx, tpl)
	}
	return tpl, nil
}

func (s *stubTemplateService) Validate(tpl *domain.Template) template.Violations {
	if s.validateFn != nil {
		return s.validateFn(tpl)
	}
	return nil
}

func (s *stubTemplateService) Get(ctx context.Context, name string) (*domain.Template, error) {
	if s.getFn != nil {
		return s.getFn(ctx, name)
	}
	return nil, domain.ErrNotFound
}

func (s *stubTemplateService) List(ctx context.Context, page, pageSize int) ([]domain.Template, int64, error) {
	if s.listFn != nil {
		return s.listFn(ctx, page, pageSize)
	}
	return nil, 0, nil
}

func (s *stubTemplateService) Delete(ctx context.Context, name string) error {
	if s.deleteFn != nil {
		return s.deleteFn(ctx, name)
	}
	return nil
}

func (s *stubTemplateService) Preview(ctx context.Context, name string, values map[int]string) ([]template.PreviewComponent, error) {
	if s.previewFn != nil {
		return s.previewFn(ctx, name, values)
	}
	return nil, domain.ErrNotFound
}

type stubSendService struct {
	acceptFn  func(ctx context.Context, send *domain.Send) (*domain.Send, error)
	getByIDFn func(ctx context.Context, id string) (*domain.Send, error)
	listFn    func(ctx context.Context, params repository.SendListParams) ([]domain.Send, int64, error)
}

func (s *stubSendService) Accept(ctx context.Context, send *domain.Send) (*domain.Send, error) {
	if s.acceptFn != nil {
		return s.acceptFn(ctx, send)
	}
	return send, nil
}

func (s *stubSendService) GetByID(ctx context.Context, id string) (*domain.Send, error) {
	if s.getByIDFn != nil {
		return s.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (s *stubSendService) List(ctx context.Context, params repository.SendListParams) ([]domain.Send, int64, error) {
	if s.listFn != nil {
		return s.listFn(ctx, params)
	}
	return nil, 0, nil
}

type stubQualityReader struct {
	getLatestVerdictFn func(ctx context.Context, templateName string) (*domain.QualityVerdict, error)
}

func (s *stubQualityReader) GetLatestVerdict(ctx context.Context, templateName string) (*domain.QualityVerdict, error) {
	if s.getLatestVerdictFn != nil {
		return s.getLatestVerdictFn(ctx, templateName)
	}
	return nil, domain.ErrNotFound
}

func newTestApp(t *testing.T, templates TemplateService, sends SendService, quality QualityReader) *fiber.App {
	t.Helper()

	app := fiber.New(fiber.Config{
		ErrorHandler: transport.ErrorHandler(zap.NewNop()),
	})

	if templates == nil {
		templates = &stubTemplateService{}
	}
	if sends == nil {
		sends = &stubSendService{}
	}
	if quality == nil {
		quality = &stubQualityReader{}
	}

	if err := RegisterTemplateRoutes(app, templates); err != nil {
		t.Fatalf("RegisterTemplateRoutes() error = %v", err)
	}
	if err := RegisterSendRoutes(app, sends); err != nil {
		t.Fatalf("RegisterSendRoutes() error = %v", err)
	}
	if err := RegisterQualityRoutes(app, quality); err != nil {
		t.Fatalf("RegisterQualityRoutes() error = %v", err)
	}

	return app
}

func performRequest(t *testing.T, app *fiber.App, method string, path string, body string) (*http.Response, []byte) {
	t.Helper()

	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	_ = resp.Body.Close()

	return resp, respBody
}

type stubBroker struct {
	healthy bool
}

func (b stubBroker) Healthy() bool { return b.healthy }

type stubConnector struct {
	pingErr error
}

func (c stubConnector) Connect(context.Context) (driver.Conn, error) {
	return stubConn(c), nil
}

func (c stubConnector) Driver() driver.Driver {
	return stubDriver(c)
}

type stubDriver struct {
	pingErr error
}

func (d stubDriver) Open(string) (driver.Conn, error) {
	return stubConn(d), nil
}

type stubConn struct {
	pingErr error
}

func (c stubConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("not implemented") }
func (c stubConn) Close() error                        { return nil }
func (c stubConn) Begin() (driver.Tx, error)           { return nil, errors.New("not implemented") }
func (c stubConn) Ping(context.Context) error          { return c.pingErr }

type stubRedisHook struct {
	pingErr error
}

func (h stubRedisHook) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (h stubRedisHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		if strings.EqualFold(cmd.Name(), "ping") {
			if h.pingErr != nil {
				cmd.SetErr(h.pingErr)
				return h.pingErr
			}
			cmd.SetErr(nil)
			return nil
		}
		cmd.SetErr(nil)
		return nil
	}
}

func (h stubRedisHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		for _, cmd := range cmds {
			cmd.SetErr(nil)
		}
		return nil
	}
}

func newStubRedisClient(pingErr error) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:         "127.0.0.1:6379",
		DialTimeout:  time.Millisecond,
		ReadTimeout:  time.Millisecond,
		WriteTimeout: time.Millisecond,
	})
	rdb.AddHook(stubRedisHook{pingErr: pingErr})
	return rdb
}
