// Package routertest provides a router.Context double for handler tests.
//
// Request values come from the exported maps unless an expectation was
// registered for the method, in which case the mock answers. Response
// methods fall back to recording into the struct when not expected.
package routertest

import (
	"context"
	"encoding/json"

	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/mock"
)

type MockContext struct {
	mock.Mock

	ParamsM  map[string]string
	QueriesM map[string]string
	HeadersM map[string]string
	CookiesM map[string]string
	LocalsM  map[any]any
	StoreM   map[string]any

	MethodV      string
	PathV        string
	OriginalURLV string
	BodyV        []byte

	StatusCode  int
	SentBody    []byte
	SentHeaders map[string]string
	SetCookies  []*router.Cookie

	ctx context.Context
}

var _ router.Context = (*MockContext)(nil)

func NewMockContext() *MockContext {
	return &MockContext{
		ParamsM:     map[string]string{},
		QueriesM:    map[string]string{},
		HeadersM:    map[string]string{},
		CookiesM:    map[string]string{},
		LocalsM:     map[any]any{},
		StoreM:      map[string]any{},
		SentHeaders: map[string]string{},
		MethodV:     "GET",
		PathV:       "/",
		ctx:         context.Background(),
	}
}

func (m *MockContext) expects(method string) bool {
	for _, call := range m.ExpectedCalls {
		if call.Method == method {
			return true
		}
	}
	return false
}

func (m *MockContext) Method() string {
	if m.expects("Method") {
		return m.Called().String(0)
	}
	return m.MethodV
}

func (m *MockContext) Path() string {
	if m.expects("Path") {
		return m.Called().String(0)
	}
	return m.PathV
}

func (m *MockContext) Param(name string, defaultValue ...string) string {
	if m.expects("Param") {
		return m.Called(name).String(0)
	}
	if v, ok := m.ParamsM[name]; ok {
		return v
	}
	if len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return ""
}

func (m *MockContext) ParamsInt(key string, defaultValue int) int {
	if m.expects("ParamsInt") {
		return m.Called(key, defaultValue).Int(0)
	}
	var n int
	if err := json.Unmarshal([]byte(m.ParamsM[key]), &n); err != nil {
		return defaultValue
	}
	return n
}

func (m *MockContext) Query(name string, defaultValue string) string {
	if m.expects("Query") {
		return m.Called(name, defaultValue).String(0)
	}
	if v, ok := m.QueriesM[name]; ok {
		return v
	}
	return defaultValue
}

func (m *MockContext) QueryInt(name string, defaultValue int) int {
	if m.expects("QueryInt") {
		return m.Called(name, defaultValue).Int(0)
	}
	var n int
	if err := json.Unmarshal([]byte(m.QueriesM[name]), &n); err != nil {
		return defaultValue
	}
	return n
}

func (m *MockContext) Queries() map[string]string {
	if m.expects("Queries") {
		return m.Called().Get(0).(map[string]string)
	}
	out := make(map[string]string, len(m.QueriesM))
	for k, v := range m.QueriesM {
		out[k] = v
	}
	return out
}

func (m *MockContext) Body() []byte {
	if m.expects("Body") {
		return m.Called().Get(0).([]byte)
	}
	return m.BodyV
}

func (m *MockContext) Locals(key any, value ...any) any {
	if m.expects("Locals") {
		return m.Called(append([]any{key}, value...)...).Get(0)
	}
	if len(value) > 0 {
		m.LocalsM[key] = value[0]
		return value[0]
	}
	return m.LocalsM[key]
}

func (m *MockContext) Render(name string, bind any, layouts ...string) error {
	return m.Called(name, bind, layouts).Error(0)
}

func (m *MockContext) Cookie(cookie *router.Cookie) {
	if m.expects("Cookie") {
		m.Called(cookie)
		return
	}
	m.SetCookies = append(m.SetCookies, cookie)
}

func (m *MockContext) Cookies(key string, defaultValue ...string) string {
	if m.expects("Cookies") {
		return m.Called(key).String(0)
	}
	if v, ok := m.CookiesM[key]; ok {
		return v
	}
	if len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return ""
}

func (m *MockContext) CookieParser(out any) error {
	return m.Called(out).Error(0)
}

func (m *MockContext) Redirect(location string, status ...int) error {
	return m.Called(location, status).Error(0)
}

func (m *MockContext) RedirectToRoute(routeName string, params router.ViewContext, status ...int) error {
	return m.Called(routeName, params, status).Error(0)
}

func (m *MockContext) RedirectBack(fallback string, status ...int) error {
	return m.Called(fallback, status).Error(0)
}

func (m *MockContext) Header(key string) string {
	if m.expects("Header") {
		return m.Called(key).String(0)
	}
	return m.HeadersM[key]
}

func (m *MockContext) Referer() string {
	return m.Header("Referer")
}

func (m *MockContext) OriginalURL() string {
	if m.expects("OriginalURL") {
		return m.Called().String(0)
	}
	return m.OriginalURLV
}

func (m *MockContext) Status(code int) router.Context {
	if m.expects("Status") {
		m.Called(code)
	}
	m.StatusCode = code
	return m
}

func (m *MockContext) Send(body []byte) error {
	if m.expects("Send") {
		return m.Called(body).Error(0)
	}
	m.SentBody = body
	return nil
}

func (m *MockContext) SendString(body string) error {
	if m.expects("SendString") {
		return m.Called(body).Error(0)
	}
	m.SentBody = []byte(body)
	return nil
}

func (m *MockContext) JSON(code int, v any) error {
	if m.expects("JSON") {
		return m.Called(code, v).Error(0)
	}
	m.StatusCode = code
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.SentBody = body
	return nil
}

func (m *MockContext) NoContent(code int) error {
	if m.expects("NoContent") {
		return m.Called(code).Error(0)
	}
	m.StatusCode = code
	return nil
}

func (m *MockContext) SetHeader(key, value string) router.Context {
	if m.expects("SetHeader") {
		m.Called(key, value)
	}
	m.SentHeaders[key] = value
	return m
}

func (m *MockContext) Set(key string, value any) {
	m.StoreM[key] = value
}

func (m *MockContext) Get(key string, def any) any {
	if v, ok := m.StoreM[key]; ok {
		return v
	}
	return def
}

func (m *MockContext) GetString(key string, def string) string {
	if v, ok := m.StoreM[key].(string); ok {
		return v
	}
	return def
}

func (m *MockContext) GetInt(key string, def int) int {
	if v, ok := m.StoreM[key].(int); ok {
		return v
	}
	return def
}

func (m *MockContext) GetBool(key string, def bool) bool {
	if v, ok := m.StoreM[key].(bool); ok {
		return v
	}
	return def
}

func (m *MockContext) Bind(v any) error {
	if m.expects("Bind") {
		return m.Called(v).Error(0)
	}
	if len(m.BodyV) == 0 {
		return nil
	}
	return json.Unmarshal(m.BodyV, v)
}

func (m *MockContext) Context() context.Context {
	if m.expects("Context") {
		return m.Called().Get(0).(context.Context)
	}
	return m.ctx
}

func (m *MockContext) SetContext(ctx context.Context) {
	if m.expects("SetContext") {
		m.Called(ctx)
	}
	m.ctx = ctx
}

func (m *MockContext) Next() error {
	if m.expects("Next") {
		return m.Called().Error(0)
	}
	return nil
}
