package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/factcheck/internal/llm/llmtest"
	"github.com/ppiankov/factcheck/internal/metrics"
	"github.com/ppiankov/factcheck/internal/model"
	"github.com/ppiankov/factcheck/internal/pipeline"
	"github.com/ppiankov/factcheck/internal/retry"
	"github.com/ppiankov/factcheck/internal/vision"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01")

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeChecker struct {
	mu     sync.Mutex
	calls  []pipeline.CheckRequest
	report *model.Report
	err    error
}

func (f *fakeChecker) Check(ctx context.Context, req pipeline.CheckRequest) (*model.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if f.err != nil {
		return nil, f.err
	}
	return f.report, nil
}

func (f *fakeChecker) MaxWords() int { return 40000 }

func sampleReport() *model.Report {
	return &model.Report{
		ID:              "r1",
		Language:        model.LangIndonesian,
		InputText:       "Jakarta didirikan pada tahun 1531.",
		CheckedText:     "Jakarta didirikan pada tahun 1531.",
		Keywords:        []string{"Jakarta", "1531"},
		KeywordSource:   model.KeywordSourceLLM,
		Reference:       &model.Reference{Title: "Jakarta", URL: "https://id.wikipedia.org/wiki/Jakarta"},
		HighlightedHTML: `<span class="claim claim-inaccurate" style="background-color: #FFEBEE" title="INACCURATE: 1527">Jakarta didirikan pada tahun 1531.</span>`,
		Claims: []model.Claim{{
			Text:          "Jakarta didirikan pada tahun 1531.",
			Status:        model.StatusInaccurate,
			Justification: "Founded in 1527",
			SourceURL:     "https://id.wikipedia.org/wiki/Jakarta",
		}},
		Score: model.Score{Credibility: 0, Inaccurate: 1, Total: 1, Confidence: "medium"},
	}
}

func newTestServer(checker Checker, analyzer ImageAnalyzer) *Server {
	return New(model.ServerConfig{Addr: ":0"}, checker, analyzer, metrics.NewNop(), nil)
}

func do(s *Server, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func postForm(path string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func postJSON(t *testing.T, path string, body any) *http.Request {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func upload(t *testing.T, path, filename string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("image", filename)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestIndex(t *testing.T) {
	s := newTestServer(&fakeChecker{}, nil)

	w := do(s, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, `<option value="id" selected>`)
	assert.Contains(t, body, `data-max="40000"`)
	assert.NotContains(t, body, `?tab=image`, "image tab hidden without an analyzer")
}

func TestSetLanguage(t *testing.T) {
	s := newTestServer(&fakeChecker{}, nil)

	w := do(s, postForm("/language", url.Values{"language": {"ja"}, "tab": {"image"}}))
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/?tab=image", w.Header().Get("Location"))

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, LanguageCookie, cookies[0].Name)
	assert.Equal(t, "ja", cookies[0].Value)

	w = do(s, postForm("/language", url.Values{"language": {"de"}}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCheckForm_EmptyTextSkipsChecker(t *testing.T) {
	checker := &fakeChecker{report: sampleReport()}
	s := newTestServer(checker, nil)

	w := do(s, postForm("/check", url.Values{"text": {"   "}}))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Please enter some text to check.")
	assert.Empty(t, checker.calls)
}

func TestCheckForm_RendersReport(t *testing.T) {
	checker := &fakeChecker{report: sampleReport()}
	s := newTestServer(checker, nil)

	req := postForm("/check", url.Values{"text": {"Jakarta didirikan pada tahun 1531."}, "correct_typos": {"1"}})
	req.AddCookie(&http.Cookie{Name: LanguageCookie, Value: "en"})
	w := do(s, req)
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, `<span class="claim claim-inaccurate" style="background-color: #FFEBEE"`, "highlighted HTML is not re-escaped")
	assert.Contains(t, body, `class="claim-card claim-inaccurate"`)
	assert.Contains(t, body, "INACCURATE")
	assert.Contains(t, body, "Credibility: 0.0%")

	require.Len(t, checker.calls, 1)
	assert.Equal(t, model.LangEnglish, checker.calls[0].Language, "language comes from the cookie")
	assert.True(t, checker.calls[0].CorrectTypos)
}

func TestCheckForm_Language(t *testing.T) {
	checker := &fakeChecker{report: sampleReport()}
	s := newTestServer(checker, nil)

	req := postForm("/check", url.Values{"text": {"Tokyo is the capital of Japan."}, "language": {"ja"}})
	req.AddCookie(&http.Cookie{Name: LanguageCookie, Value: "en"})
	w := do(s, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, checker.calls, 1)
	assert.Equal(t, model.LangJapanese, checker.calls[0].Language, "form value wins over the cookie")

	w = do(s, postForm("/check", url.Values{"text": {"Berlin ist die Hauptstadt."}, "language": {"de"}}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "unsupported language")
	assert.Len(t, checker.calls, 1, "unsupported language never reaches the checker")
}

func TestCheckForm_Errors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		banner string
	}{
		{"word limit", errors.Join(pipeline.ErrWordLimit, errors.New("40001 words")), http.StatusBadRequest, "40001 words"},
		{"internal", errors.New("boom"), http.StatusInternalServerError, "could not be completed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(&fakeChecker{err: tt.err}, nil)
			w := do(s, postForm("/check", url.Values{"text": {"some text"}}))
			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), tt.banner)
			assert.NotContains(t, w.Body.String(), "boom")
		})
	}
}

func TestCheckJSON(t *testing.T) {
	checker := &fakeChecker{report: sampleReport()}
	s := newTestServer(checker, nil)

	w := do(s, postJSON(t, "/api/check", checkBody{Text: "Jakarta didirikan pada tahun 1531.", Language: "ID"}))
	require.Equal(t, http.StatusOK, w.Code)

	var got model.Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "r1", got.ID)
	require.Len(t, got.Claims, 1)
	assert.Equal(t, model.StatusInaccurate, got.Claims[0].Status)
	assert.Equal(t, model.LangIndonesian, checker.calls[0].Language)
}

func TestCheckJSON_BadRequests(t *testing.T) {
	tests := []struct {
		name   string
		body   any
		err    error
		status int
	}{
		{"empty text", checkBody{Text: " "}, nil, http.StatusBadRequest},
		{"unsupported language", checkBody{Text: "x", Language: "de"}, nil, http.StatusBadRequest},
		{"word limit", checkBody{Text: "x"}, pipeline.ErrWordLimit, http.StatusBadRequest},
		{"checker failure", checkBody{Text: "x"}, errors.New("boom"), http.StatusInternalServerError},
		{"not json", "plain", nil, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := &fakeChecker{report: sampleReport(), err: tt.err}
			s := newTestServer(checker, nil)

			w := do(s, postJSON(t, "/api/check", tt.body))
			assert.Equal(t, tt.status, w.Code)

			var resp map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp["error"])
		})
	}
}

func TestImageJSON(t *testing.T) {
	stub := llmtest.Text(`{"description": "a pixel", "objects_identified": ["dot"]}`)
	analyzer := vision.NewAnalyzer(stub, retry.Policy{MaxAttempts: 1}, 1<<20, 0)
	s := newTestServer(&fakeChecker{}, analyzer)

	w := do(s, upload(t, "/api/image", "pixel.png", pngHeader))
	require.Equal(t, http.StatusOK, w.Code)

	var got model.ImageAnalysis
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "a pixel", got.Description)
	assert.Equal(t, []string{"dot"}, got.ObjectsIdentified)
}

func TestImageJSON_Rejections(t *testing.T) {
	stub := llmtest.Text(`{"description": "x"}`)

	tests := []struct {
		name     string
		analyzer ImageAnalyzer
		data     []byte
		status   int
	}{
		{"too large", vision.NewAnalyzer(stub, retry.Policy{MaxAttempts: 1}, 8, 0), pngHeader, http.StatusRequestEntityTooLarge},
		{"unsupported", vision.NewAnalyzer(stub, retry.Policy{MaxAttempts: 1}, 1<<20, 0), []byte("GIF89a\x01\x00\x01\x00"), http.StatusBadRequest},
		{"not configured", nil, pngHeader, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(&fakeChecker{}, tt.analyzer)
			w := do(s, upload(t, "/api/image", "x.png", tt.data))
			assert.Equal(t, tt.status, w.Code)
		})
	}
	assert.Zero(t, stub.Calls())
}

func TestImageForm(t *testing.T) {
	stub := llmtest.Text("Just a single pixel.")
	analyzer := vision.NewAnalyzer(stub, retry.Policy{MaxAttempts: 1}, 1<<20, 0)
	s := newTestServer(&fakeChecker{}, analyzer)

	w := do(s, upload(t, "/image", "pixel.png", pngHeader))
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Image analysis: pixel.png")
	assert.Contains(t, body, "Just a single pixel.")
}

func TestLanguages(t *testing.T) {
	s := newTestServer(&fakeChecker{}, nil)

	w := do(s, httptest.NewRequest(http.MethodGet, "/api/languages?language=fr", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Default   string           `json:"default"`
		Selected  string           `json:"selected"`
		Languages []languageOption `json:"languages"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "id", resp.Default)
	assert.Equal(t, "fr", resp.Selected)
	assert.Len(t, resp.Languages, len(model.SupportedLanguages))
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(&fakeChecker{}, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/check", nil)
	req.Header.Set("Origin", "https://example.org")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := do(s, req)

	assert.Less(t, w.Code, 300)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestHealthAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	s := New(model.ServerConfig{}, &fakeChecker{}, nil, m, reg)

	w := do(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = do(s, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `route="/healthz"`)
}

func TestRequestLanguage(t *testing.T) {
	tests := []struct {
		name     string
		explicit string
		cookie   string
		want     model.Language
	}{
		{"explicit wins", "ar", "ja", model.LangArabic},
		{"cookie", "", "ja", model.LangJapanese},
		{"invalid explicit falls to cookie", "xx", "ru", model.LangRussian},
		{"default", "", "", model.DefaultLanguage},
		{"invalid cookie", "", "xx", model.DefaultLanguage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.cookie != "" {
				c.Request.AddCookie(&http.Cookie{Name: LanguageCookie, Value: tt.cookie})
			}
			assert.Equal(t, tt.want, requestLanguage(c, tt.explicit))
		})
	}
}
