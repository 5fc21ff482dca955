package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/claritymed/regassist/internal/extraction"
	"github.com/claritymed/regassist/internal/models"
	"github.com/claritymed/regassist/internal/workflows"
)

const maxUploadBytes = 64 << 20

// TaskHandler accepts compliance requests and starts their workflows.
type TaskHandler struct {
	temporal  client.Client
	taskQueue string
	cfg       workflows.ComplianceConfig
	logger    *zap.Logger
}

func NewTaskHandler(tc client.Client, taskQueue string, cfg workflows.ComplianceConfig, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{temporal: tc, taskQueue: taskQueue, cfg: cfg, logger: logger}
}

// RegisterRoutes registers the task routes on the provided mux.
func (h *TaskHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/tasks", h.handleSubmit)
	mux.HandleFunc("/api/v1/tasks/", h.handleTask)
}

type submitRequest struct {
	Query        string `json:"query"`
	WorkflowType string `json:"workflow_type,omitempty"`
}

type submitResponse struct {
	WorkflowID   string              `json:"workflow_id"`
	RunID        string              `json:"run_id"`
	WorkflowType models.WorkflowType `json:"workflow_type"`
	Files        []fileStatus        `json:"files,omitempty"`
}

type fileStatus struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Size   int64  `json:"size"`
	Failed bool   `json:"failed,omitempty"`
}

// handleSubmit starts a compliance workflow. The request is either a JSON
// body with a query, or multipart form data with a query field plus document
// uploads (pdf, docx, txt, or a zip of those). Extraction happens here, before
// the workflow starts, because parsing is not deterministic.
func (h *TaskHandler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	var req submitRequest
	var files []models.UploadedFile

	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			http.Error(w, `{"error":"invalid multipart form"}`, http.StatusBadRequest)
			return
		}
		req.Query = r.FormValue("query")
		req.WorkflowType = r.FormValue("workflow_type")

		for _, headers := range r.MultipartForm.File {
			for _, fh := range headers {
				extracted, err := h.extractUpload(fh.Filename, fh)
				if err != nil {
					http.Error(w, fmt.Sprintf(`{"error":%q}`, err.Error()), http.StatusBadRequest)
					return
				}
				files = append(files, extracted...)
			}
		}
	} else {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}
	}

	if strings.TrimSpace(req.Query) == "" {
		http.Error(w, `{"error":"query required"}`, http.StatusBadRequest)
		return
	}

	wt := models.WorkflowType(req.WorkflowType)
	switch wt {
	case models.WorkflowQuestionAnswering, models.WorkflowGapAnalysis:
	case "":
		// documents present means the user wants their submission analyzed
		if len(files) > 0 {
			wt = models.WorkflowGapAnalysis
		} else {
			wt = models.WorkflowQuestionAnswering
		}
	default:
		http.Error(w, `{"error":"unknown workflow_type"}`, http.StatusBadRequest)
		return
	}
	if wt == models.WorkflowGapAnalysis && len(files) == 0 {
		http.Error(w, `{"error":"gap_analysis requires uploaded documents"}`, http.StatusBadRequest)
		return
	}

	workflowID := "compliance-" + uuid.NewString()
	run, err := h.temporal.ExecuteWorkflow(r.Context(), client.StartWorkflowOptions{
		ID:        workflowID,
		TaskQueue: h.taskQueue,
	}, workflows.ComplianceWorkflowWithConfig, workflows.ComplianceInput{
		UserInput:     req.Query,
		WorkflowType:  wt,
		UploadedFiles: files,
	}, h.cfg)
	if err != nil {
		h.logger.Error("Failed to start workflow", zap.Error(err))
		http.Error(w, `{"error":"failed to start workflow"}`, http.StatusInternalServerError)
		return
	}

	statuses := make([]fileStatus, 0, len(files))
	for _, f := range files {
		statuses = append(statuses, fileStatus{
			Name:   f.Name,
			Type:   f.Type,
			Size:   f.Size,
			Failed: f.Type == models.FileTypeError,
		})
	}

	h.logger.Info("Workflow started",
		zap.String("workflow_id", workflowID),
		zap.String("workflow_type", string(wt)),
		zap.Int("files", len(files)),
	)
	writeJSON(w, http.StatusAccepted, submitResponse{
		WorkflowID:   workflowID,
		RunID:        run.GetRunID(),
		WorkflowType: wt,
		Files:        statuses,
	})
}

// extractUpload reads one uploaded file and converts it to text entries. Zip
// archives expand to one entry per member; extraction failures become error
// pseudo-entries rather than rejecting the request.
func (h *TaskHandler) extractUpload(name string, fh *multipart.FileHeader) ([]models.UploadedFile, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload %s: %w", name, err)
	}
	defer f.Close()

	content, err := io.ReadAll(io.LimitReader(f, maxUploadBytes))
	if err != nil {
		return nil, fmt.Errorf("read upload %s: %w", name, err)
	}

	if strings.EqualFold(filepath.Ext(name), ".zip") {
		return extraction.ExpandArchive(content), nil
	}

	result := extraction.ExtractText(content, name)
	entry := models.UploadedFile{
		Name:    name,
		Content: result.Text,
		Type:    strings.ToLower(filepath.Ext(name)),
		Size:    int64(len(content)),
	}
	if !result.Success {
		entry.Content = result.Error
		entry.Type = models.FileTypeError
		entry.Size = 0
	}
	return []models.UploadedFile{entry}, nil
}

// handleTask serves task status, results, and cancellation.
// GET    /api/v1/tasks/{id}         -> status
// GET    /api/v1/tasks/{id}/result  -> blocks until the workflow completes
// DELETE /api/v1/tasks/{id}         -> cancels the workflow
func (h *TaskHandler) handleTask(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/tasks/")
	id, tail, _ := strings.Cut(rest, "/")
	if id == "" {
		http.Error(w, `{"error":"workflow id required"}`, http.StatusBadRequest)
		return
	}

	switch {
	case r.Method == http.MethodDelete && tail == "":
		h.handleCancel(w, r, id)
	case r.Method == http.MethodGet && tail == "":
		h.handleStatus(w, r, id)
	case r.Method == http.MethodGet && tail == "result":
		h.handleResult(w, r, id)
	default:
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
	}
}

func (h *TaskHandler) handleCancel(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.temporal.CancelWorkflow(r.Context(), id, ""); err != nil {
		http.Error(w, `{"error":"workflow not found"}`, http.StatusNotFound)
		return
	}
	h.logger.Info("Workflow cancelled", zap.String("workflow_id", id))
	writeJSON(w, http.StatusOK, map[string]string{"workflow_id": id, "status": "cancelling"})
}

func (h *TaskHandler) handleStatus(w http.ResponseWriter, r *http.Request, id string) {
	desc, err := h.temporal.DescribeWorkflowExecution(r.Context(), id, "")
	if err != nil {
		http.Error(w, `{"error":"workflow not found"}`, http.StatusNotFound)
		return
	}
	info := desc.GetWorkflowExecutionInfo()
	writeJSON(w, http.StatusOK, map[string]any{
		"workflow_id": id,
		"status":      info.GetStatus().String(),
		"start_time":  info.GetStartTime().AsTime(),
	})
}

func (h *TaskHandler) handleResult(w http.ResponseWriter, r *http.Request, id string) {
	run := h.temporal.GetWorkflow(r.Context(), id, "")

	var result workflows.ComplianceResult
	if err := run.Get(r.Context(), &result); err != nil {
		h.logger.Warn("Workflow result unavailable", zap.String("workflow_id", id), zap.Error(err))
		http.Error(w, `{"error":"workflow failed or still running"}`, http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		return
	}
}
