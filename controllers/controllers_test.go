package controllers_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"salesassistant/controllers"
	"salesassistant/routes"
	"salesassistant/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(t *testing.T, client services.CompletionClient) http.Handler {
	t.Helper()
	logger := zap.NewNop()
	sessions := services.NewSessionManager(client, "llama3-8b-8192", nil, logger)
	return routes.SetupRouter(
		controllers.NewChatController(sessions, logger),
		controllers.NewInsightController(sessions, logger),
		logger,
	)
}

func do(t *testing.T, h http.Handler, method, path string, body []byte, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func createSession(t *testing.T, h http.Handler) string {
	t.Helper()
	w := do(t, h, http.MethodPost, "/sessions", nil, "")
	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		ID    string `json:"id"`
		Model string `json:"model"`
		State string `json:"state"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.ID)
	assert.Equal(t, "llama3-8b-8192", resp.Model)
	assert.Equal(t, "created", resp.State)
	return resp.ID
}

func postChat(t *testing.T, h http.Handler, id, message string) *httptest.ResponseRecorder {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"message": message})
	return do(t, h, http.MethodPost, "/sessions/"+id+"/chat", body, "application/json")
}

type salesForm struct {
	fields   map[string]string
	fileName string
}

func postInsight(t *testing.T, h http.Handler, id string, form salesForm) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range form.fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if form.fileName != "" {
		fw, err := mw.CreateFormFile("product_overview", form.fileName)
		require.NoError(t, err)
		_, _ = fw.Write([]byte("binary content that is never parsed"))
	}
	require.NoError(t, mw.Close())
	return do(t, h, http.MethodPost, "/sessions/"+id+"/insights", buf.Bytes(), mw.FormDataContentType())
}

type transcript struct {
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func getTranscript(t *testing.T, h http.Handler, id string) transcript {
	t.Helper()
	w := do(t, h, http.MethodGet, "/sessions/"+id+"/messages", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var tr transcript
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tr))
	return tr
}

func TestHandleChat_StreamsProgressAndCommits(t *testing.T) {
	h := newTestRouter(t, services.NewMockCompletionClient())
	id := createSession(t, h)

	w := postChat(t, h, id, "hello there")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/event-stream"),
		"content type %q", w.Header().Get("Content-Type"))

	body := w.Body.String()
	assert.Contains(t, body, "event:user\n")
	assert.Contains(t, body, "event:progress\ndata:You\n")
	assert.Contains(t, body, "event:progress\ndata:You said:\n")
	assert.Contains(t, body, "event:progress\ndata:You said: hello there\n")
	assert.Contains(t, body, "event:done\n")
	assert.NotContains(t, body, "event:error")
	assert.Less(t, strings.Index(body, "event:progress"), strings.Index(body, "event:done"))

	tr := getTranscript(t, h, id)
	require.Len(t, tr.Messages, 2)
	assert.Equal(t, "user", tr.Messages[0].Role)
	assert.Equal(t, "hello there", tr.Messages[0].Content)
	assert.Equal(t, "assistant", tr.Messages[1].Role)
	assert.Equal(t, "You said: hello there", tr.Messages[1].Content)

	w = do(t, h, http.MethodGet, "/sessions/"+id, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"state":"active"`)
	assert.Contains(t, w.Body.String(), `"messages":2`)
}

func TestHandleChat_RejectsBlankMessage(t *testing.T) {
	h := newTestRouter(t, services.NewMockCompletionClient())
	id := createSession(t, h)

	w := postChat(t, h, id, "   ")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodPost, "/sessions/"+id+"/chat", []byte(`{}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleChat_ProviderFailure(t *testing.T) {
	mock := &services.MockCompletionClient{Err: errors.New("invalid api key")}
	h := newTestRouter(t, mock)
	id := createSession(t, h)

	w := postChat(t, h, id, "hi")
	body := w.Body.String()
	assert.Contains(t, body, "event:error\n")
	assert.Contains(t, body, "invalid api key")
	assert.Contains(t, body, `"status":502`)
	assert.NotContains(t, body, "event:done")

	assert.Empty(t, getTranscript(t, h, id).Messages)
}

func TestHandleChat_UnknownSession(t *testing.T) {
	h := newTestRouter(t, services.NewMockCompletionClient())

	w := postChat(t, h, "missing", "hi")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSetModel(t *testing.T) {
	mock := services.NewMockCompletionClient()
	h := newTestRouter(t, mock)
	id := createSession(t, h)

	w := do(t, h, http.MethodPut, "/sessions/"+id+"/model", []byte(`{"model":"mixtral-8x7b-32768"}`), "application/json")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"model":"mixtral-8x7b-32768"`)

	postChat(t, h, id, "hi")
	calls := mock.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "mixtral-8x7b-32768", calls[0].Model)

	w = do(t, h, http.MethodPut, "/sessions/"+id+"/model", []byte(`{"model":""}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodPut, "/sessions/"+id+"/model", []byte(`{"model":"   "}`), "application/json")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestEndSession(t *testing.T) {
	h := newTestRouter(t, services.NewMockCompletionClient())
	id := createSession(t, h)

	w := do(t, h, http.MethodDelete, "/sessions/"+id, nil, "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, h, http.MethodGet, "/sessions/"+id, nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, h, http.MethodDelete, "/sessions/"+id, nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSessionsAreIsolated(t *testing.T) {
	h := newTestRouter(t, services.NewMockCompletionClient())
	a := createSession(t, h)
	b := createSession(t, h)

	postChat(t, h, a, "for a only")

	assert.Len(t, getTranscript(t, h, a).Messages, 2)
	assert.Empty(t, getTranscript(t, h, b).Messages)
}

func TestGenerateInsight(t *testing.T) {
	mock := &services.MockCompletionClient{Reply: "Position against legacy warehouses."}
	h := newTestRouter(t, mock)
	id := createSession(t, h)

	w := postInsight(t, h, id, salesForm{
		fields: map[string]string{
			"product_name":      "WarehouseX",
			"company_url":       "https://acme.example",
			"product_category":  "Data Warehousing",
			"competitors":       "https://a.example\nhttps://b.example",
			"value_proposition": "Fast queries",
			"target_customer":   "CTO",
		},
		fileName: "overview.pdf",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Submitted struct {
			ProductName      string `json:"product_name"`
			UploadedFileName string `json:"uploaded_file_name"`
		} `json:"submitted"`
		Insight struct {
			Index       int    `json:"index"`
			ProductName string `json:"product_name"`
			Category    string `json:"category"`
			Text        string `json:"insight"`
		} `json:"insight"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "overview.pdf", resp.Submitted.UploadedFileName)
	assert.Equal(t, 1, resp.Insight.Index)
	assert.Equal(t, "WarehouseX", resp.Insight.ProductName)
	assert.Equal(t, "Data Warehousing", resp.Insight.Category)
	assert.Equal(t, "Position against legacy warehouses.", resp.Insight.Text)

	calls := mock.Calls()
	require.Len(t, calls, 1)
	prompt := calls[0].Messages[0].Content
	assert.Contains(t, prompt, "Competitors: https://a.example\nhttps://b.example")
	assert.Contains(t, prompt, "Additional Information: Parsed content from the uploaded file.")

	w = do(t, h, http.MethodGet, "/sessions/"+id+"/insights/1", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"index":1`)
}

func TestGenerateInsight_JSONBody(t *testing.T) {
	h := newTestRouter(t, services.NewMockCompletionClient())
	id := createSession(t, h)

	w := do(t, h, http.MethodPost, "/sessions/"+id+"/insights",
		[]byte(`{"product_name":"Widget","company_url":"https://w.example"}`), "application/json")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"product_name":"Widget"`)
}

func TestGenerateInsight_RejectsUnsupportedUpload(t *testing.T) {
	mock := services.NewMockCompletionClient()
	h := newTestRouter(t, mock)
	id := createSession(t, h)

	w := postInsight(t, h, id, salesForm{
		fields:   map[string]string{"product_name": "X"},
		fileName: "payload.exe",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, mock.Calls())
}

func TestGenerateInsight_JSONFileNameIsChecked(t *testing.T) {
	mock := services.NewMockCompletionClient()
	h := newTestRouter(t, mock)
	id := createSession(t, h)

	w := do(t, h, http.MethodPost, "/sessions/"+id+"/insights",
		[]byte(`{"product_name":"W","uploaded_file_name":"payload.exe"}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, mock.Calls())

	w = do(t, h, http.MethodPost, "/sessions/"+id+"/insights",
		[]byte(`{"product_name":"W","uploaded_file_name":"../docs/brief.txt"}`), "application/json")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"uploaded_file_name":"brief.txt"`)

	calls := mock.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Messages[0].Content, "Additional Information: Parsed content from the uploaded file.")
}

func TestGenerateInsight_FailureRecordsNothing(t *testing.T) {
	mock := &services.MockCompletionClient{Err: errors.New("quota exceeded")}
	h := newTestRouter(t, mock)
	id := createSession(t, h)

	w := postInsight(t, h, id, salesForm{fields: map[string]string{"product_name": "X"}})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "An error occurred:")
	assert.Contains(t, w.Body.String(), "quota exceeded")

	w = do(t, h, http.MethodGet, "/sessions/"+id+"/insights", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"insights":[],"message":"No insights saved yet."}`, w.Body.String())
}

func TestGetInsights_Ordering(t *testing.T) {
	h := newTestRouter(t, services.NewMockCompletionClient())
	id := createSession(t, h)

	for _, name := range []string{"A", "B", "C"} {
		w := postInsight(t, h, id, salesForm{fields: map[string]string{"product_name": name}})
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := do(t, h, http.MethodGet, "/sessions/"+id+"/insights", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Insights []struct {
			Index       int    `json:"index"`
			ProductName string `json:"product_name"`
		} `json:"insights"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Insights, 3)
	for i, name := range []string{"A", "B", "C"} {
		assert.Equal(t, i+1, resp.Insights[i].Index)
		assert.Equal(t, name, resp.Insights[i].ProductName)
	}
	assert.Empty(t, resp.Message)

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/sessions/"+id+"/insights/4", nil, "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/sessions/"+id+"/insights/0", nil, "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/sessions/"+id+"/insights/first", nil, "").Code)
}

func TestCORSPreflight(t *testing.T) {
	h := newTestRouter(t, services.NewMockCompletionClient())

	w := do(t, h, http.MethodOptions, "/sessions", nil, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
