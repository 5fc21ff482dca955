package httpapi

import (
	"bufio"
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/claritymed/regassist/internal/streaming"
	"github.com/claritymed/regassist/internal/workflows"
)

func newStreamingServer(t *testing.T) (*streaming.Manager, *httptest.Server) {
	t.Helper()
	mgr := streaming.NewManager(16)
	h := NewStreamingHandler(mgr, zaptest.NewLogger(t))
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return mgr, srv
}

func TestSSERequiresWorkflowID(t *testing.T) {
	_, srv := newStreamingServer(t)
	resp, err := http.Get(srv.URL + "/stream/sse")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSSEStreamsPublishedEvents(t *testing.T) {
	mgr, srv := newStreamingServer(t)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/stream/sse?workflow_id=wf-1", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	// wait for the subscription before publishing
	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(line, ": connected"))

	go func() {
		time.Sleep(50 * time.Millisecond)
		mgr.Publish("wf-1", streaming.Event{WorkflowID: "wf-1", Type: "ROUTING", Message: "routing to regulatory_agent"})
	}()

	var sawEvent, sawData bool
	deadline := time.After(5 * time.Second)
	lines := make(chan string, 16)
	go func() {
		for {
			l, err := reader.ReadString('\n')
			if err != nil {
				close(lines)
				return
			}
			lines <- l
		}
	}()
	for !sawData {
		select {
		case l, ok := <-lines:
			if !ok {
				t.Fatal("stream closed before event arrived")
			}
			if strings.HasPrefix(l, "event: ROUTING") {
				sawEvent = true
			}
			if strings.HasPrefix(l, "data: ") {
				sawData = true
				assert.Contains(t, l, "routing to regulatory_agent")
			}
		case <-deadline:
			t.Fatal("timed out waiting for SSE event")
		}
	}
	assert.True(t, sawEvent)
}

func TestSSEReplaysBacklog(t *testing.T) {
	mgr, srv := newStreamingServer(t)
	for i := 0; i < 3; i++ {
		mgr.Publish("wf-2", streaming.Event{WorkflowID: "wf-2", Type: "AGENT_COMPLETED", Message: "turn"})
	}

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/stream/sse?workflow_id=wf-2", nil)
	require.NoError(t, err)
	req.Header.Set("Last-Event-ID", "1")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	deadline := time.Now().Add(5 * time.Second)
	var ids []string
	for time.Now().Before(deadline) {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "id: ") {
			ids = append(ids, strings.TrimSpace(strings.TrimPrefix(line, "id: ")))
			break
		}
	}
	// only the event after the cursor is replayed
	assert.Equal(t, []string{"2"}, ids)
}

func TestWebSocketStreamsEvents(t *testing.T) {
	mgr, srv := newStreamingServer(t)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/stream/ws?workflow_id=wf-3"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		defer resp.Body.Close()
	}
	defer conn.Close()

	go func() {
		time.Sleep(50 * time.Millisecond)
		mgr.Publish("wf-3", streaming.Event{WorkflowID: "wf-3", Type: "FINAL_ANSWER", Message: "done"})
	}()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var ev streaming.Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "FINAL_ANSWER", ev.Type)
	assert.Equal(t, "done", ev.Message)
}

func newTaskServer(t *testing.T) *httptest.Server {
	t.Helper()
	h := NewTaskHandler(nil, "compliance", workflows.DefaultComplianceConfig(), zaptest.NewLogger(t))
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestSubmitRejectsMissingQuery(t *testing.T) {
	srv := newTaskServer(t)
	resp, err := http.Post(srv.URL+"/api/v1/tasks", "application/json", strings.NewReader(`{"query":"  "}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSubmitRejectsUnknownWorkflowType(t *testing.T) {
	srv := newTaskServer(t)
	resp, err := http.Post(srv.URL+"/api/v1/tasks", "application/json",
		strings.NewReader(`{"query":"What is a predicate device?","workflow_type":"summarize"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSubmitRejectsGapAnalysisWithoutFiles(t *testing.T) {
	srv := newTaskServer(t)
	resp, err := http.Post(srv.URL+"/api/v1/tasks", "application/json",
		strings.NewReader(`{"query":"analyze this","workflow_type":"gap_analysis"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSubmitRejectsNonPost(t *testing.T) {
	srv := newTaskServer(t)
	resp, err := http.Get(srv.URL + "/api/v1/tasks")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestSubmitMultipartExtractsBeforeValidation(t *testing.T) {
	srv := newTaskServer(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("files", "notes.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("threat modeling summary"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	// no query field, so the request fails validation after extraction ran
	resp, err := http.Post(srv.URL+"/api/v1/tasks", mw.FormDataContentType(), &body)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
