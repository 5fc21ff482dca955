package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/claritymed/regassist/internal/streaming"
)

// CancelFunc cancels a running workflow when a streaming client that asked
// for lifecycle coupling disconnects.
type CancelFunc func(ctx context.Context, workflowID string) error

// StreamingHandler serves workflow progress events over SSE and WebSocket.
type StreamingHandler struct {
	mgr    *streaming.Manager
	cancel CancelFunc
	logger *zap.Logger
}

func NewStreamingHandler(mgr *streaming.Manager, logger *zap.Logger) *StreamingHandler {
	return &StreamingHandler{mgr: mgr, logger: logger}
}

// WithCanceller enables cancel_on_disconnect support.
func (h *StreamingHandler) WithCanceller(cancel CancelFunc) *StreamingHandler {
	h.cancel = cancel
	return h
}

// cancelOnDisconnect cancels the workflow if the client requested coupling.
func (h *StreamingHandler) cancelOnDisconnect(r *http.Request, wf string) {
	if h.cancel == nil || r.URL.Query().Get("cancel_on_disconnect") != "true" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.cancel(ctx, wf); err != nil {
		h.logger.Warn("Cancel on disconnect failed", zap.String("workflow_id", wf), zap.Error(err))
		return
	}
	h.logger.Info("Workflow cancelled after client disconnect", zap.String("workflow_id", wf))
}

// RegisterRoutes registers the streaming routes on the provided mux.
func (h *StreamingHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/stream/sse", h.handleSSE)
	mux.HandleFunc("/stream/ws", h.handleWS)
}

type eventFilter map[string]struct{}

// parseEventFilter reads the optional comma-separated types parameter.
func parseEventFilter(r *http.Request) eventFilter {
	filter := eventFilter{}
	for _, t := range strings.Split(r.URL.Query().Get("types"), ",") {
		if t = strings.TrimSpace(t); t != "" {
			filter[t] = struct{}{}
		}
	}
	return filter
}

func (f eventFilter) allows(evType string) bool {
	if len(f) == 0 {
		return true
	}
	_, ok := f[evType]
	return ok
}

// lastEventID reads the replay cursor from the Last-Event-ID header or the
// last_event_id query parameter.
func lastEventID(r *http.Request) uint64 {
	if lei := r.Header.Get("Last-Event-ID"); lei != "" {
		if n, err := strconv.ParseUint(lei, 10, 64); err == nil {
			return n
		}
	}
	if q := r.URL.Query().Get("last_event_id"); q != "" {
		if n, err := strconv.ParseUint(q, 10, 64); err == nil {
			return n
		}
	}
	return 0
}

// handleSSE streams events for a workflow via Server-Sent Events.
// GET /stream/sse?workflow_id=<id>
func (h *StreamingHandler) handleSSE(w http.ResponseWriter, r *http.Request) {
	wf := r.URL.Query().Get("workflow_id")
	if wf == "" {
		http.Error(w, `{"error":"workflow_id required"}`, http.StatusBadRequest)
		return
	}
	filter := parseEventFilter(r)

	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	ch := h.mgr.Subscribe(wf, 256)
	defer h.mgr.Unsubscribe(wf, ch)

	fmt.Fprintf(w, ": connected to workflow %s\n\n", wf)
	flusher.Flush()

	writeEvent := func(ev streaming.Event) {
		if ev.Seq > 0 {
			fmt.Fprintf(w, "id: %d\n", ev.Seq)
		}
		if ev.Type != "" {
			fmt.Fprintf(w, "event: %s\n", ev.Type)
		}
		fmt.Fprintf(w, "data: %s\n\n", ev.Marshal())
	}

	// Replay the ring backlog so reconnecting clients do not lose events.
	if since := lastEventID(r); since > 0 {
		for _, ev := range h.mgr.ReplaySince(wf, since) {
			if filter.allows(ev.Type) {
				writeEvent(ev)
			}
		}
		flusher.Flush()
	}

	hb := time.NewTicker(15 * time.Second)
	defer hb.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			h.logger.Debug("SSE client disconnected", zap.String("workflow_id", wf))
			h.cancelOnDisconnect(r, wf)
			return
		case ev := <-ch:
			if !filter.allows(ev.Type) {
				continue
			}
			writeEvent(ev)
			flusher.Flush()
		case <-hb.C:
			// keepalive through proxies
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}
