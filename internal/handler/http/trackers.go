package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"LinkTrace-Backend/internal/domain"
	"LinkTrace-Backend/internal/repository"
	"LinkTrace-Backend/internal/service"
)

// TrackersHandler serves the admin API for trackers, visitors and instances.
type TrackersHandler struct {
	storage  repository.Storage
	tracking *service.TrackingService
	log      *zap.Logger
}

func NewTrackersHandler(storage repository.Storage, tracking *service.TrackingService, log *zap.Logger) *TrackersHandler {
	return &TrackersHandler{
		storage:  storage,
		tracking: tracking,
		log:      log,
	}
}

// CreateTrackerRequest is the tracker creation payload.
type CreateTrackerRequest struct {
	Name     string `json:"name"`
	Comments string `json:"comments,omitempty"`
}

// TrackerInfo is a tracker as returned by the API.
type TrackerInfo struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Comments      string `json:"comments,omitempty"`
	InstanceCount int    `json:"instance_count"`
	CreatedAt     string `json:"created_at"`
}

// CreateVisitorRequest is the visitor creation payload.
type CreateVisitorRequest struct {
	Username        string `json:"username"`
	FirstName       string `json:"first_name,omitempty"`
	LastName        string `json:"last_name,omitempty"`
	Email           string `json:"email,omitempty"`
	Comments        string `json:"comments,omitempty"`
	MirrorsOperator bool   `json:"mirrors_operator,omitempty"`
}

// VisitorInfo is a visitor as returned by the API.
type VisitorInfo struct {
	ID              int64  `json:"id"`
	Username        string `json:"username"`
	FirstName       string `json:"first_name,omitempty"`
	LastName        string `json:"last_name,omitempty"`
	Email           string `json:"email,omitempty"`
	MirrorsOperator bool   `json:"mirrors_operator"`
	CreatedAt       string `json:"created_at"`
}

// AssignRequest binds a visitor to a tracker.
type AssignRequest struct {
	VisitorID int64 `json:"visitor_id"`
}

// InstanceInfo is a tracking instance plus its sample tracked URLs.
type InstanceInfo struct {
	UUID         string            `json:"uuid"`
	TrackerID    int64             `json:"tracker_id"`
	VisitorID    int64             `json:"visitor_id"`
	Notified     string            `json:"notified,omitempty"`
	CreatedAt    string            `json:"created_at"`
	TrackingURLs map[string]string `json:"tracking_urls"`
}

// InstanceStatsInfo is an instance with its access aggregates.
type InstanceStatsInfo struct {
	UUID         string `json:"uuid"`
	TrackerID    int64  `json:"tracker_id"`
	VisitorID    int64  `json:"visitor_id"`
	AccessCount  int64  `json:"access_count"`
	FirstAccess  string `json:"first_access,omitempty"`
	RecentAccess string `json:"recent_access,omitempty"`
	WasAccessed  bool   `json:"was_accessed"`
}

// IssueURLRequest asks for a tracked URL of the given kind.
type IssueURLRequest struct {
	UUID   string `json:"uuid"`
	Kind   string `json:"kind"`
	Scheme string `json:"scheme,omitempty"`
	Domain string `json:"domain,omitempty"`
	Path   string `json:"path,omitempty"`
}

// IssueURLResponse carries the issued URL.
type IssueURLResponse struct {
	URL string `json:"url"`
}

// HandleTrackers dispatches /api/trackers by method.
func (h *TrackersHandler) HandleTrackers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.CreateTracker(w, r)
	case http.MethodGet:
		h.ListTrackers(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleVisitors dispatches /api/visitors by method.
func (h *TrackersHandler) HandleVisitors(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.CreateVisitor(w, r)
	case http.MethodGet:
		h.ListVisitors(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// CreateTracker creates a tracker
//
//	@Summary		Create a tracker
//	@Tags			Trackers
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		CreateTrackerRequest	true	"Tracker creation request"
//	@Success		201		{object}	TrackerInfo
//	@Failure		400		{object}	errorResponse
//	@Router			/api/trackers [post]
func (h *TrackersHandler) CreateTracker(w http.ResponseWriter, r *http.Request) {
	var req CreateTrackerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request format", http.StatusBadRequest)
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, "Tracker name is required", http.StatusBadRequest)
		return
	}
	if strings.HasPrefix(req.Name, "_") {
		writeError(w, "Tracker names starting with underscore are reserved", http.StatusBadRequest)
		return
	}

	tracker := &domain.Tracker{
		Name:     req.Name,
		Comments: req.Comments,
	}
	if err := h.storage.CreateTracker(r.Context(), tracker); err != nil {
		h.log.Error("failed to create tracker", zap.String("name", req.Name), zap.Error(err))
		writeError(w, "Failed to create tracker", http.StatusInternalServerError)
		return
	}

	h.log.Info("tracker created", zap.Int64("tracker_id", tracker.ID), zap.String("name", tracker.Name))
	writeJSON(w, trackerInfo(tracker), http.StatusCreated)
}

// ListTrackers lists all trackers
//
//	@Summary		List trackers
//	@Tags			Trackers
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{array}	TrackerInfo
//	@Router			/api/trackers [get]
func (h *TrackersHandler) ListTrackers(w http.ResponseWriter, r *http.Request) {
	trackers, err := h.storage.ListTrackers(r.Context())
	if err != nil {
		h.log.Error("failed to list trackers", zap.Error(err))
		writeError(w, "Failed to list trackers", http.StatusInternalServerError)
		return
	}

	infos := make([]TrackerInfo, 0, len(trackers))
	for _, t := range trackers {
		infos = append(infos, trackerInfo(t))
	}
	writeJSON(w, infos, http.StatusOK)
}

// Assign binds a visitor to a tracker, issuing a fresh instance
//
//	@Summary		Assign a visitor to a tracker
//	@Tags			Trackers
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id		path		int				true	"Tracker ID"
//	@Param			request	body		AssignRequest	true	"Assignment request"
//	@Success		201		{object}	InstanceInfo
//	@Failure		400		{object}	errorResponse
//	@Failure		404		{object}	errorResponse
//	@Failure		409		{object}	errorResponse	"Visitor already assigned"
//	@Router			/api/trackers/{id}/assign [post]
func (h *TrackersHandler) Assign(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	trackerID, ok := trackerIDFromPath(r.URL.Path)
	if !ok {
		writeError(w, "Invalid tracker id", http.StatusBadRequest)
		return
	}

	var req AssignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request format", http.StatusBadRequest)
		return
	}
	if req.VisitorID == 0 {
		writeError(w, "visitor_id is required", http.StatusBadRequest)
		return
	}

	instance, err := h.tracking.AssignVisitor(r.Context(), trackerID, req.VisitorID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrTrackerNotFound):
			writeError(w, "Tracker not found", http.StatusNotFound)
		case errors.Is(err, repository.ErrVisitorNotFound):
			writeError(w, "Visitor not found", http.StatusNotFound)
		case errors.Is(err, repository.ErrDuplicateAssignment):
			writeError(w, "Visitor is already assigned to this tracker", http.StatusConflict)
		default:
			h.log.Error("failed to assign visitor",
				zap.Int64("tracker_id", trackerID),
				zap.Int64("visitor_id", req.VisitorID),
				zap.Error(err))
			writeError(w, "Failed to assign visitor", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, h.instanceInfo(instance), http.StatusCreated)
}

// CreateVisitor creates a visitor
//
//	@Summary		Create a visitor
//	@Tags			Visitors
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		CreateVisitorRequest	true	"Visitor creation request"
//	@Success		201		{object}	VisitorInfo
//	@Failure		400		{object}	errorResponse
//	@Failure		409		{object}	errorResponse	"Username taken"
//	@Router			/api/visitors [post]
func (h *TrackersHandler) CreateVisitor(w http.ResponseWriter, r *http.Request) {
	var req CreateVisitorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request format", http.StatusBadRequest)
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" {
		writeError(w, "Username is required", http.StatusBadRequest)
		return
	}
	if strings.HasPrefix(req.Username, "_") {
		writeError(w, "Usernames starting with underscore are reserved", http.StatusBadRequest)
		return
	}

	visitor := &domain.Visitor{
		Username:        req.Username,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Comments:        req.Comments,
		MirrorsOperator: req.MirrorsOperator,
	}
	if req.Email != "" {
		visitor.EmailAddress = &req.Email
	}

	if err := h.storage.CreateVisitor(r.Context(), visitor); err != nil {
		if errors.Is(err, repository.ErrVisitorExists) {
			writeError(w, "Visitor with this username already exists", http.StatusConflict)
			return
		}
		h.log.Error("failed to create visitor", zap.String("username", req.Username), zap.Error(err))
		writeError(w, "Failed to create visitor", http.StatusInternalServerError)
		return
	}

	writeJSON(w, visitorInfo(visitor), http.StatusCreated)
}

// ListVisitors lists all visitors
//
//	@Summary		List visitors
//	@Tags			Visitors
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{array}	VisitorInfo
//	@Router			/api/visitors [get]
func (h *TrackersHandler) ListVisitors(w http.ResponseWriter, r *http.Request) {
	visitors, err := h.storage.ListVisitors(r.Context())
	if err != nil {
		h.log.Error("failed to list visitors", zap.Error(err))
		writeError(w, "Failed to list visitors", http.StatusInternalServerError)
		return
	}

	infos := make([]VisitorInfo, 0, len(visitors))
	for _, v := range visitors {
		infos = append(infos, visitorInfo(v))
	}
	writeJSON(w, infos, http.StatusOK)
}

// GetInstance returns an instance with its access aggregates
//
//	@Summary		Get instance stats
//	@Tags			Instances
//	@Produce		json
//	@Security		BearerAuth
//	@Param			uuid	path		string	true	"Instance UUID"
//	@Success		200		{object}	InstanceStatsInfo
//	@Failure		404		{object}	errorResponse
//	@Router			/api/instances/{uuid} [get]
func (h *TrackersHandler) GetInstance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	uuid := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/api/instances/"), "/")
	if uuid == "" {
		writeError(w, "Instance uuid is required", http.StatusBadRequest)
		return
	}

	instance, err := h.storage.GetInstanceByUUID(r.Context(), uuid)
	if err != nil {
		if errors.Is(err, repository.ErrInstanceNotFound) {
			writeError(w, "Instance not found", http.StatusNotFound)
			return
		}
		h.log.Error("failed to load instance", zap.String("uuid", uuid), zap.Error(err))
		writeError(w, "Failed to load instance", http.StatusInternalServerError)
		return
	}

	stats, err := h.tracking.InstanceStats(r.Context(), instance.ID)
	if err != nil {
		h.log.Error("failed to load instance stats", zap.String("uuid", uuid), zap.Error(err))
		writeError(w, "Failed to load instance stats", http.StatusInternalServerError)
		return
	}

	info := InstanceStatsInfo{
		UUID:        instance.UUID,
		TrackerID:   instance.TrackerID,
		VisitorID:   instance.VisitorID,
		AccessCount: stats.AccessCount,
		WasAccessed: stats.WasAccessed(),
	}
	if stats.FirstAccess != nil {
		info.FirstAccess = stats.FirstAccess.Format(timeFormat)
	}
	if stats.RecentAccess != nil {
		info.RecentAccess = stats.RecentAccess.Format(timeFormat)
	}

	writeJSON(w, info, http.StatusOK)
}

// IssueURL issues a tracked URL for an existing instance
//
//	@Summary		Issue a tracked URL
//	@Tags			Instances
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		IssueURLRequest	true	"URL request"
//	@Success		200		{object}	IssueURLResponse
//	@Failure		400		{object}	errorResponse
//	@Failure		404		{object}	errorResponse
//	@Router			/api/urls [post]
func (h *TrackersHandler) IssueURL(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req IssueURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request format", http.StatusBadRequest)
		return
	}

	if _, err := h.storage.GetInstanceByUUID(r.Context(), req.UUID); err != nil {
		if errors.Is(err, repository.ErrInstanceNotFound) {
			writeError(w, "Instance not found", http.StatusNotFound)
			return
		}
		h.log.Error("failed to look up instance", zap.String("uuid", req.UUID), zap.Error(err))
		writeError(w, "Failed to look up instance", http.StatusInternalServerError)
		return
	}

	var (
		url string
		err error
	)
	switch req.Kind {
	case "redirect":
		url, err = h.tracking.RedirectURL(req.UUID, req.Scheme, req.Domain, req.Path)
	case "local_redirect":
		url, err = h.tracking.LocalRedirectURL(req.UUID, req.Path)
	case "html":
		url = h.tracking.HTMLURL(req.UUID, req.Path)
	case "pixel_gif":
		url = h.tracking.PixelGIFURL(req.UUID)
	case "pixel_png":
		url = h.tracking.PixelPNGURL(req.UUID)
	case "email_render":
		url = h.tracking.EmailRenderURL(req.UUID)
	case "email_ack":
		url = h.tracking.EmailAckURL(req.UUID)
	default:
		writeError(w, "Unknown URL kind", http.StatusBadRequest)
		return
	}
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, IssueURLResponse{URL: url}, http.StatusOK)
}

const timeFormat = "2006-01-02T15:04:05Z07:00"

func trackerInfo(t *domain.Tracker) TrackerInfo {
	return TrackerInfo{
		ID:            t.ID,
		Name:          t.Name,
		Comments:      t.Comments,
		InstanceCount: len(t.Instances),
		CreatedAt:     t.CreatedAt.Format(timeFormat),
	}
}

func visitorInfo(v *domain.Visitor) VisitorInfo {
	return VisitorInfo{
		ID:              v.ID,
		Username:        v.Username,
		FirstName:       v.FirstName,
		LastName:        v.LastName,
		Email:           v.Email(),
		MirrorsOperator: v.MirrorsOperator,
		CreatedAt:       v.CreatedAt.Format(timeFormat),
	}
}

func (h *TrackersHandler) instanceInfo(inst *domain.TrackingInstance) InstanceInfo {
	info := InstanceInfo{
		UUID:      inst.UUID,
		TrackerID: inst.TrackerID,
		VisitorID: inst.VisitorID,
		CreatedAt: inst.CreatedAt.Format(timeFormat),
		TrackingURLs: map[string]string{
			"pixel_gif": h.tracking.PixelGIFURL(inst.UUID),
			"pixel_png": h.tracking.PixelPNGURL(inst.UUID),
			"html":      h.tracking.HTMLURL(inst.UUID, ""),
		},
	}
	if inst.Notified != nil {
		info.Notified = inst.Notified.Format(timeFormat)
	}
	return info
}

// trackerIDFromPath parses /api/trackers/{id}/assign.
func trackerIDFromPath(path string) (int64, bool) {
	rest := strings.TrimPrefix(path, "/api/trackers/")
	rest = strings.TrimSuffix(rest, "/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[1] != "assign" {
		return 0, false
	}
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
