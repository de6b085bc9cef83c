// Package handler exposes the HTTP API. Handlers translate requests into
// service calls and coded errors into HTTP statuses; the acting user is
// identified by the X-User-ID header set by the gateway.
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/pesio-ai/be-approval-workflows/internal/application"
	"github.com/pesio-ai/be-approval-workflows/internal/assignment"
	"github.com/pesio-ai/be-approval-workflows/internal/errors"
	"github.com/pesio-ai/be-approval-workflows/internal/logger"
	"github.com/pesio-ai/be-approval-workflows/internal/repository"
	"github.com/pesio-ai/be-approval-workflows/internal/service"
)

// HTTPHandler handles HTTP requests.
type HTTPHandler struct {
	applications *service.ApplicationService
	assignments  *service.AssignmentService
	dashboard    *service.DashboardService
	log          *logger.Logger
}

// NewHTTPHandler creates a new HTTP handler.
func NewHTTPHandler(
	applications *service.ApplicationService,
	assignments *service.AssignmentService,
	dashboard *service.DashboardService,
	log *logger.Logger,
) *HTTPHandler {
	return &HTTPHandler{
		applications: applications,
		assignments:  assignments,
		dashboard:    dashboard,
		log:          log,
	}
}

// Register wires every route into the mux.
func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/applications", h.CreateApplication)
	mux.HandleFunc("GET /api/v1/applications/{id}", h.GetApplication)
	mux.HandleFunc("PUT /api/v1/applications/{id}/form", h.SaveFormData)
	mux.HandleFunc("POST /api/v1/applications/{id}/submit", h.SubmitApplication)
	mux.HandleFunc("POST /api/v1/applications/{id}/approve", h.ApproveApplication)
	mux.HandleFunc("POST /api/v1/applications/{id}/reject", h.RejectApplication)
	mux.HandleFunc("POST /api/v1/applications/{id}/withdraw", h.WithdrawApplication)
	mux.HandleFunc("POST /api/v1/applications/{id}/clone", h.CloneApplication)
	mux.HandleFunc("DELETE /api/v1/applications/{id}", h.DeleteApplication)
	mux.HandleFunc("GET /api/v1/applications/{id}/approvers", h.GetApproverUsers)
	mux.HandleFunc("GET /api/v1/applications/{id}/progress", h.GetProgress)
	mux.HandleFunc("GET /api/v1/applications/{id}/activities", h.ListActivities)
	mux.HandleFunc("GET /api/v1/dashboard/applications", h.ListDashboard)
	mux.HandleFunc("POST /api/v1/approvers", h.CreateApprover)
	mux.HandleFunc("DELETE /api/v1/approvers/{id}", h.DeactivateApprover)
	mux.HandleFunc("POST /api/v1/assignments/{id}/archive", h.ArchiveAssignment)
	mux.HandleFunc("GET /api/v1/workflows/{id}/levels/{levelID}/overrides", h.ListOverrideInheritance)
}

// ── Applications ──────────────────────────────────────────────────────────────

// CreateApplication opens a new draft application.
func (h *HTTPHandler) CreateApplication(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var req struct {
		AssignmentID     int64  `json:"assignment_id"`
		WorkflowTypeName string `json:"workflow_type_name"`
		ApplicantID      int64  `json:"applicant_id"`
		ApplicantName    string `json:"applicant_name"`
		Title            string `json:"title"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	if req.ApplicantID == 0 {
		req.ApplicantID = actor
	}

	in := service.CreateApplicationInput{
		AssignmentID:  req.AssignmentID,
		ApplicantID:   req.ApplicantID,
		ApplicantName: req.ApplicantName,
		Title:         req.Title,
	}

	var m *application.Model
	var err error
	if req.AssignmentID == 0 && req.WorkflowTypeName != "" {
		m, err = h.applications.CreateForWorkflowType(r.Context(), req.WorkflowTypeName, in, actor)
	} else {
		m, err = h.applications.Create(r.Context(), in, actor)
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, applicationFromModel(m))
}

// GetApplication retrieves one application.
func (h *HTTPHandler) GetApplication(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	m, err := h.applications.GetApplication(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, applicationFromModel(m))
}

// SaveFormData replaces the draft form data without leaving the draft.
func (h *HTTPHandler) SaveFormData(w http.ResponseWriter, r *http.Request) {
	id, actor, ok := h.pathIDAndActor(w, r)
	if !ok {
		return
	}
	var req struct {
		FormData string `json:"form_data"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	m, err := h.applications.SaveFormData(r.Context(), id, actor, req.FormData)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, applicationFromModel(m))
}

// SubmitApplication publishes the form data and moves the application into
// approvals.
func (h *HTTPHandler) SubmitApplication(w http.ResponseWriter, r *http.Request) {
	id, actor, ok := h.pathIDAndActor(w, r)
	if !ok {
		return
	}
	var req struct {
		FormData string `json:"form_data"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	m, err := h.applications.Submit(r.Context(), id, actor, req.FormData)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, applicationFromModel(m))
}

// ApproveApplication records an approval at the current level.
func (h *HTTPHandler) ApproveApplication(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, h.applications.Approve)
}

// RejectApplication records a rejection and returns the application to its
// form stage.
func (h *HTTPHandler) RejectApplication(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, h.applications.Reject)
}

// WithdrawApplication withdraws the application.
func (h *HTTPHandler) WithdrawApplication(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, h.applications.Withdraw)
}

// CloneApplication opens a fresh draft carrying the source's form data.
func (h *HTTPHandler) CloneApplication(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, h.applications.Clone)
}

// DeleteApplication deletes an application. Non-drafts require force=true.
func (h *HTTPHandler) DeleteApplication(w http.ResponseWriter, r *http.Request) {
	id, actor, ok := h.pathIDAndActor(w, r)
	if !ok {
		return
	}
	force := r.URL.Query().Get("force") == "true"
	if err := h.applications.Delete(r.Context(), id, actor, force); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetApproverUsers lists the users who may act at the current level.
func (h *HTTPHandler) GetApproverUsers(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	users, err := h.applications.GetApproverUsers(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string][]int64{"user_ids": users})
}

// GetProgress reports the overall and per-user progress of an application.
func (h *HTTPHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	id, actor, ok := h.pathIDAndActor(w, r)
	if !ok {
		return
	}
	p, err := h.applications.GetProgress(r.Context(), id, actor)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{
		"overall_progress": string(p.Overall),
		"your_progress":    string(p.Yours),
	})
}

// ListActivities serves the application's audit trail.
func (h *HTTPHandler) ListActivities(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	activities, err := h.applications.ListActivities(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	type activityEntry struct {
		Activity            string    `json:"activity"`
		ActorID             int64     `json:"actor_id"`
		StageID             int64     `json:"stage_id"`
		ApprovalLevelID     int64     `json:"approval_level_id,omitempty"`
		SourceApplicationID int64     `json:"source_application_id,omitempty"`
		CreatedAt           time.Time `json:"created_at"`
	}
	out := make([]*activityEntry, 0, len(activities))
	for _, a := range activities {
		out = append(out, &activityEntry{
			Activity:            string(a.Activity),
			ActorID:             a.ActorID,
			StageID:             a.StageID,
			ApprovalLevelID:     a.ApprovalLevelID,
			SourceApplicationID: a.SourceApplicationID,
			CreatedAt:           a.CreatedAt,
		})
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"activities": out})
}

// ── Dashboard ─────────────────────────────────────────────────────────────────

type dashboardEntryResponse struct {
	Application      *applicationResponse `json:"application"`
	WorkflowID       int64                `json:"workflow_id"`
	WorkflowTypeName string               `json:"workflow_type_name"`
	OverallProgress  string               `json:"overall_progress"`
	YourProgress     string               `json:"your_progress"`
}

// ListDashboard serves the applications-for-others listing.
func (h *HTTPHandler) ListDashboard(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	applicationID, _ := strconv.ParseInt(q.Get("application_id"), 10, 64)
	query := service.DashboardQuery{
		ApplicationID:    applicationID,
		IDNumber:         q.Get("id_number"),
		WorkflowTypeName: q.Get("workflow_type_name"),
		ApplicantName:    q.Get("applicant_name"),
		OverallProgress:  application.OverallProgress(q.Get("overall_progress")),
		YourProgress:     application.YourProgress(q.Get("your_progress")),
		Sort:             repository.DashboardSort(q.Get("sort")),
		Cursor:           q.Get("cursor"),
		Limit:            limit,
	}

	result, err := h.dashboard.ListForOthers(r.Context(), actor, query)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	entries := make([]*dashboardEntryResponse, 0, len(result.Entries))
	for _, e := range result.Entries {
		entries = append(entries, &dashboardEntryResponse{
			Application:      applicationFromRow(e.Row.Application),
			WorkflowID:       e.Row.WorkflowID,
			WorkflowTypeName: e.Row.WorkflowTypeName,
			OverallProgress:  string(e.Row.OverallProgress),
			YourProgress:     string(e.YourProgress),
		})
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"applications": entries,
		"next_cursor":  result.NextCursor,
	})
}

// ── Approver administration ───────────────────────────────────────────────────

// CreateApprover adds a direct approver to an assignment level and
// propagates the change to descendant assignments.
func (h *HTTPHandler) CreateApprover(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.actor(w, r); !ok {
		return
	}

	var req struct {
		AssignmentID    int64  `json:"assignment_id"`
		ApprovalLevelID int64  `json:"approval_level_id"`
		Kind            string `json:"kind"`
		Identifier      int64  `json:"identifier"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	kind := assignment.ApproverKind(req.Kind)
	if kind != assignment.ApproverKindUser && kind != assignment.ApproverKindRelationship {
		h.writeError(w, r, errors.InvalidInput("kind", "must be USER or RELATIONSHIP"))
		return
	}

	approver, err := h.assignments.CreateApprover(r.Context(), req.AssignmentID, req.ApprovalLevelID, kind, req.Identifier)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, approverResponse(approver))
}

// DeactivateApprover retires a direct approver and restores inheritance at
// the affected pairings.
func (h *HTTPHandler) DeactivateApprover(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	if _, ok := h.actor(w, r); !ok {
		return
	}
	if err := h.assignments.DeactivateApprover(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ArchiveAssignment archives a non-default assignment.
func (h *HTTPHandler) ArchiveAssignment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	if _, ok := h.actor(w, r); !ok {
		return
	}
	if err := h.assignments.ArchiveAssignment(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListOverrideInheritance reports, per override, the approvers acting at a
// level and where they are inherited from.
func (h *HTTPHandler) ListOverrideInheritance(w http.ResponseWriter, r *http.Request) {
	workflowID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	levelID, ok := h.pathID(w, r, "levelID")
	if !ok {
		return
	}
	activemode := r.URL.Query().Get("activemode") == "true"

	entries, err := h.assignments.ListOverrideInheritance(r.Context(), workflowID, levelID, activemode)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	type entry struct {
		AssignmentID            int64                    `json:"assignment_id"`
		AssignmentName          string                   `json:"assignment_name"`
		InheritedFromAssignment int64                    `json:"inherited_from_assignment,omitempty"`
		Approvers               []map[string]interface{} `json:"approvers"`
	}
	out := make([]*entry, 0, len(entries))
	for _, e := range entries {
		approvers := make([]map[string]interface{}, 0, len(e.Approvers))
		for _, a := range e.Approvers {
			approvers = append(approvers, approverResponse(a))
		}
		out = append(out, &entry{
			AssignmentID:            e.Assignment.ID,
			AssignmentName:          e.Assignment.Name,
			InheritedFromAssignment: e.InheritedFromAssignment,
			Approvers:               approvers,
		})
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"overrides": out})
}

// ── Responses and helpers ─────────────────────────────────────────────────────

type applicationResponse struct {
	ID                int64      `json:"id"`
	Title             string     `json:"title"`
	IDNumber          string     `json:"id_number"`
	ApplicantID       int64      `json:"applicant_id"`
	ApplicantName     string     `json:"applicant_name"`
	OwnerID           int64      `json:"owner_id"`
	WorkflowVersionID int64      `json:"workflow_version_id"`
	AssignmentID      int64      `json:"assignment_id"`
	StageID           int64      `json:"stage_id"`
	ApprovalLevelID   int64      `json:"approval_level_id,omitempty"`
	IsDraft           bool       `json:"is_draft"`
	OverallProgress   string     `json:"overall_progress,omitempty"`
	SubmittedAt       *time.Time `json:"submitted_at,omitempty"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

func applicationFromRow(app *application.Application) *applicationResponse {
	return &applicationResponse{
		ID:                app.ID,
		Title:             app.Title,
		IDNumber:          app.IDNumber,
		ApplicantID:       app.UserID,
		ApplicantName:     app.ApplicantName,
		OwnerID:           app.OwnerID,
		WorkflowVersionID: app.WorkflowVersionID,
		AssignmentID:      app.AssignmentID,
		StageID:           app.StageID,
		ApprovalLevelID:   app.ApprovalLevelID,
		IsDraft:           app.IsDraft,
		SubmittedAt:       app.SubmittedAt,
		CompletedAt:       app.CompletedAt,
		CreatedAt:         app.CreatedAt,
		UpdatedAt:         app.UpdatedAt,
	}
}

func applicationFromModel(m *application.Model) *applicationResponse {
	resp := applicationFromRow(m.Application)
	resp.OverallProgress = string(m.OverallProgress())
	return resp
}

func approverResponse(a *assignment.Approver) map[string]interface{} {
	return map[string]interface{}{
		"id":                a.ID,
		"assignment_id":     a.AssignmentID,
		"approval_level_id": a.ApprovalLevelID,
		"kind":              string(a.Kind),
		"identifier":        a.Identifier,
		"active":            a.Active,
		"inherited":         a.IsInherited(),
	}
}

// action runs one of the single-actor lifecycle operations.
func (h *HTTPHandler) action(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id, actor int64) (*application.Model, error)) {
	id, actor, ok := h.pathIDAndActor(w, r)
	if !ok {
		return
	}
	m, err := fn(r.Context(), id, actor)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, applicationFromModel(m))
}

func (h *HTTPHandler) actor(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.Header.Get("X-User-ID"), 10, 64)
	if err != nil || id <= 0 {
		h.writeError(w, r, errors.New(errors.ErrCodeUnauthorized, "missing or invalid X-User-ID header"))
		return 0, false
	}
	return id, true
}

func (h *HTTPHandler) pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		h.writeError(w, r, errors.InvalidInput(name, "must be a positive integer"))
		return 0, false
	}
	return id, true
}

func (h *HTTPHandler) pathIDAndActor(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return 0, 0, false
	}
	actor, ok := h.actor(w, r)
	if !ok {
		return 0, 0, false
	}
	return id, actor, true
}

func (h *HTTPHandler) decode(w http.ResponseWriter, r *http.Request, out interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		h.writeError(w, r, errors.InvalidInput("body", "invalid request body"))
		return false
	}
	return true
}

func (h *HTTPHandler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error().Err(err).Msg("failed to encode response")
	}
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(errors.Code(err))
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	h.writeJSON(w, status, map[string]string{
		"code":    string(errors.Code(err)),
		"message": err.Error(),
	})
}

func statusFor(code errors.ErrorCode) int {
	switch code {
	case errors.ErrCodeNotFound:
		return http.StatusNotFound
	case errors.ErrCodeForbidden:
		return http.StatusForbidden
	case errors.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case errors.ErrCodeConflict, errors.ErrCodeAmbiguous:
		return http.StatusConflict
	case errors.ErrCodeInvalidInput:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
