package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/enterprise-bte/bte-engine/internal/config"
	"github.com/enterprise-bte/bte-engine/internal/domain/enums"
	domainworkflow "github.com/enterprise-bte/bte-engine/internal/domain/workflow"
	"github.com/enterprise-bte/bte-engine/internal/middleware"
	"github.com/enterprise-bte/bte-engine/internal/workflow"
	"github.com/enterprise-bte/bte-engine/pkg/response"
	"github.com/enterprise-bte/bte-engine/pkg/validator"
)

// jwtProtect wraps a handler with JWT authentication middleware.
func jwtProtect(mw *middleware.Stack, h http.HandlerFunc) http.Handler {
	return mw.JWTAuth(http.HandlerFunc(h))
}

// Deps bundles the engine's read/write ports that the HTTP layer exposes.
type Deps struct {
	Engine     *workflow.Engine
	Templates  *workflow.TemplateStore
	Registry   *workflow.Registry
	Visibility *workflow.Visibility
	Auth       workflow.AuthResolver
}

// NewRouter sets up all HTTP routes and middleware chains.
func NewRouter(deps Deps, mw *middleware.Stack, cfg *config.Config, log zerolog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", healthCheck)
	mux.HandleFunc("GET /health/ready", func(w http.ResponseWriter, r *http.Request) {
		response.OK(w, map[string]string{"status": "ready"})
	})

	h := &engineHandler{deps: deps, log: log}

	// ----------------------------------------------------------------
	// Boundary operations (§4.1) — the 7 operations callers drive
	// transfers through.
	// ----------------------------------------------------------------
	mux.Handle("POST /api/v1/transfers/{transferID}/start", jwtProtect(mw, h.startWorkflow))
	mux.Handle("POST /api/v1/transfers/{transferID}/actions", jwtProtect(mw, h.processAction))
	mux.Handle("POST /api/v1/transfers/{transferID}/cancel", jwtProtect(mw, h.cancelWorkflow))
	mux.Handle("POST /api/v1/transfers/{transferID}/restart", jwtProtect(mw, h.restartWorkflow))
	mux.Handle("GET /api/v1/transfers/{transferID}/status", jwtProtect(mw, h.getStatus))
	mux.Handle("GET /api/v1/me/pending", jwtProtect(mw, h.listPendingForUser))
	mux.Handle("GET /api/v1/me/history", jwtProtect(mw, h.listHistoryForUser))

	// ----------------------------------------------------------------
	// Template administration (C2) and registry administration (C3) —
	// both superadmin-only, since neither is scoped to a single security
	// group the way transfer operations are.
	// ----------------------------------------------------------------
	mux.Handle("POST /api/v1/admin/templates", jwtProtect(mw, h.requireSuperAdmin(h.createTemplate)))
	mux.Handle("GET /api/v1/admin/templates/{templateID}", jwtProtect(mw, h.requireSuperAdmin(h.getTemplate)))
	mux.Handle("DELETE /api/v1/admin/templates/{templateID}", jwtProtect(mw, h.requireSuperAdmin(h.deleteTemplate)))
	mux.Handle("POST /api/v1/admin/templates/{templateID}/stages", jwtProtect(mw, h.requireSuperAdmin(h.addStage)))
	mux.Handle("PUT /api/v1/admin/stages/{stageID}", jwtProtect(mw, h.requireSuperAdmin(h.updateStage)))
	mux.Handle("DELETE /api/v1/admin/stages/{stageID}", jwtProtect(mw, h.requireSuperAdmin(h.deleteStage)))

	mux.Handle("GET /api/v1/admin/security-groups/{groupID}/assignments", jwtProtect(mw, h.requireSuperAdmin(h.orderedAssignments)))
	mux.Handle("PUT /api/v1/admin/security-groups/{groupID}/assignments", jwtProtect(mw, h.requireSuperAdmin(h.bulkReassign)))

	return mux
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"service": "bte-engine",
	})
}

type engineHandler struct {
	deps Deps
	log  zerolog.Logger
}

// requireSuperAdmin gates a handler on the acting user holding superadmin
// status. Template and registry administration reshape routing for every
// security group at once, so there's no single group to scope an ability
// check against (unlike the per-transfer boundary operations, which rely
// on the engine's own access checks).
func (h *engineHandler) requireSuperAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.UserID(r.Context())
		if !ok {
			response.Error(w, http.StatusUnauthorized, "missing acting user")
			return
		}
		isSuper, err := h.deps.Auth.IsSuperAdmin(r.Context(), userID)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "authorization check failed")
			return
		}
		if !isSuper {
			response.Error(w, http.StatusForbidden, "superadmin privileges required")
			return
		}
		next(w, r)
	}
}

func (h *engineHandler) startWorkflow(w http.ResponseWriter, r *http.Request) {
	transferID := r.PathValue("transferID")
	inst, err := h.deps.Engine.StartWorkflow(r.Context(), transferID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	response.Created(w, inst)
}

type processActionRequest struct {
	Action     string  `json:"action" validate:"required,oneof=approve reject delegate"`
	Comment    string  `json:"comment"`
	DelegateTo *string `json:"delegate_to,omitempty"`
}

func (h *engineHandler) processAction(w http.ResponseWriter, r *http.Request) {
	transferID := r.PathValue("transferID")
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		response.Error(w, http.StatusUnauthorized, "missing acting user")
		return
	}

	var req processActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if err := validator.Validate.Struct(req); err != nil {
		response.ValidationError(w, validator.FormatErrors(err))
		return
	}

	action, ok := parseActionType(req.Action)
	if !ok {
		response.Error(w, http.StatusBadRequest, "unrecognized action type")
		return
	}

	inst, err := h.deps.Engine.ProcessAction(r.Context(), transferID, userID, action, req.Comment, req.DelegateTo)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	response.OK(w, inst)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (h *engineHandler) cancelWorkflow(w http.ResponseWriter, r *http.Request) {
	transferID := r.PathValue("transferID")
	var req cancelRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	if err := h.deps.Engine.CancelWorkflow(r.Context(), transferID, req.Reason); err != nil {
		writeEngineError(w, err)
		return
	}
	response.OK(w, map[string]string{"status": "cancelled"})
}

func (h *engineHandler) restartWorkflow(w http.ResponseWriter, r *http.Request) {
	transferID := r.PathValue("transferID")
	inst, err := h.deps.Engine.RestartWorkflow(r.Context(), transferID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	response.OK(w, inst)
}

func (h *engineHandler) getStatus(w http.ResponseWriter, r *http.Request) {
	transferID := r.PathValue("transferID")
	inst, stages, err := h.deps.Engine.GetStatus(r.Context(), transferID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	response.OK(w, map[string]interface{}{"instance": inst, "stages": stages})
}

func (h *engineHandler) listPendingForUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		response.Error(w, http.StatusUnauthorized, "missing acting user")
		return
	}
	ids, err := h.deps.Visibility.PendingForUser(r.Context(), userID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	response.OK(w, ids)
}

func (h *engineHandler) listHistoryForUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		response.Error(w, http.StatusUnauthorized, "missing acting user")
		return
	}
	ids, err := h.deps.Visibility.HistoryForUser(r.Context(), userID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	response.OK(w, ids)
}

func (h *engineHandler) createTemplate(w http.ResponseWriter, r *http.Request) {
	var tpl domainworkflow.Template
	if err := json.NewDecoder(r.Body).Decode(&tpl); err != nil {
		response.Error(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if err := h.deps.Templates.CreateTemplate(r.Context(), &tpl); err != nil {
		writeEngineError(w, err)
		return
	}
	response.Created(w, tpl)
}

func (h *engineHandler) getTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("templateID"))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "invalid template id")
		return
	}
	tpl, err := h.deps.Templates.GetTemplate(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if tpl == nil {
		response.Error(w, http.StatusNotFound, "template not found")
		return
	}
	response.OK(w, tpl)
}

func (h *engineHandler) deleteTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("templateID"))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "invalid template id")
		return
	}
	if err := h.deps.Templates.DeleteTemplate(r.Context(), id); err != nil {
		writeEngineError(w, err)
		return
	}
	response.OK(w, map[string]string{"status": "deleted"})
}

func (h *engineHandler) addStage(w http.ResponseWriter, r *http.Request) {
	templateID, err := strconv.Atoi(r.PathValue("templateID"))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "invalid template id")
		return
	}
	var stage domainworkflow.StageTemplate
	if err := json.NewDecoder(r.Body).Decode(&stage); err != nil {
		response.Error(w, http.StatusBadRequest, "malformed request body")
		return
	}
	stage.TemplateID = templateID
	if err := h.deps.Templates.AddStage(r.Context(), &stage); err != nil {
		writeEngineError(w, err)
		return
	}
	response.Created(w, stage)
}

func (h *engineHandler) updateStage(w http.ResponseWriter, r *http.Request) {
	stageID, err := strconv.Atoi(r.PathValue("stageID"))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "invalid stage id")
		return
	}
	var stage domainworkflow.StageTemplate
	if err := json.NewDecoder(r.Body).Decode(&stage); err != nil {
		response.Error(w, http.StatusBadRequest, "malformed request body")
		return
	}
	stage.ID = stageID
	if err := h.deps.Templates.UpdateStage(r.Context(), &stage); err != nil {
		writeEngineError(w, err)
		return
	}
	response.OK(w, stage)
}

func (h *engineHandler) deleteStage(w http.ResponseWriter, r *http.Request) {
	stageID, err := strconv.Atoi(r.PathValue("stageID"))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "invalid stage id")
		return
	}
	if err := h.deps.Templates.DeleteStage(r.Context(), stageID); err != nil {
		writeEngineError(w, err)
		return
	}
	response.OK(w, map[string]string{"status": "deleted"})
}

func (h *engineHandler) orderedAssignments(w http.ResponseWriter, r *http.Request) {
	groupID, err := strconv.Atoi(r.PathValue("groupID"))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "invalid security group id")
		return
	}
	prefix := r.URL.Query().Get("transaction_code_prefix")
	assignments, err := h.deps.Registry.OrderedAssignments(r.Context(), groupID, prefix)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	response.OK(w, assignments)
}

func (h *engineHandler) bulkReassign(w http.ResponseWriter, r *http.Request) {
	groupID, err := strconv.Atoi(r.PathValue("groupID"))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "invalid security group id")
		return
	}
	var assignments []domainworkflow.TemplateAssignment
	if err := json.NewDecoder(r.Body).Decode(&assignments); err != nil {
		response.Error(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if err := h.deps.Registry.BulkReassign(r.Context(), groupID, assignments); err != nil {
		writeEngineError(w, err)
		return
	}
	response.OK(w, map[string]string{"status": "reassigned"})
}

func parseActionType(s string) (enums.ActionType, bool) {
	switch s {
	case "approve":
		return enums.ActionApprove, true
	case "reject":
		return enums.ActionReject, true
	case "delegate":
		return enums.ActionDelegate, true
	default:
		return 0, false
	}
}

// writeEngineError maps the §7 error taxonomy onto HTTP status codes.
func writeEngineError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case workflow.IsKind(err, workflow.KindInvalidInput):
		status = http.StatusBadRequest
	case workflow.IsKind(err, workflow.KindAccessDenied):
		status = http.StatusForbidden
	case workflow.IsKind(err, workflow.KindStateConflict):
		status = http.StatusConflict
	case workflow.IsKind(err, workflow.KindPolicyViolation):
		status = http.StatusUnprocessableEntity
	case workflow.IsKind(err, workflow.KindConfigurationError):
		status = http.StatusUnprocessableEntity
	case workflow.IsKind(err, workflow.KindNotFound):
		status = http.StatusNotFound
	}
	response.Error(w, status, err.Error())
}
