package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"LinkTrace-Backend/internal/mailer"
	"LinkTrace-Backend/internal/repository"
)

// EmailsHandler serves the tracked-email admin API.
type EmailsHandler struct {
	mailer *mailer.Service
	log    *zap.Logger
}

func NewEmailsHandler(mailerService *mailer.Service, log *zap.Logger) *EmailsHandler {
	return &EmailsHandler{
		mailer: mailerService,
		log:    log,
	}
}

// ComposeEmailRequest is the email composition payload.
type ComposeEmailRequest struct {
	FromEmail  string   `json:"from_email"`
	Subject    string   `json:"subject"`
	TextBody   string   `json:"text_body,omitempty"`
	HTMLBody   string   `json:"html_body"`
	Recipients []string `json:"recipients"`
}

// ComposeEmailResponse describes the stored email and its instances.
type ComposeEmailResponse struct {
	EmailID    int64    `json:"email_id"`
	TrackerID  int64    `json:"tracker_id"`
	Recipients int      `json:"recipients"`
	UUIDs      []string `json:"uuids"`
}

// EmailStatsResponse reports read/unread counts for one email.
type EmailStatsResponse struct {
	EmailID        int64 `json:"email_id"`
	RecipientCount int64 `json:"recipient_count"`
	ReadCount      int64 `json:"read_count"`
	UnreadCount    int64 `json:"unread_count"`
}

// Compose sends a tracked email to the given visitors
//
//	@Summary		Compose and send a tracked email
//	@Tags			Emails
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		ComposeEmailRequest	true	"Email composition request"
//	@Success		201		{object}	ComposeEmailResponse
//	@Failure		400		{object}	errorResponse
//	@Failure		404		{object}	errorResponse	"Unknown recipient"
//	@Router			/api/emails [post]
func (h *EmailsHandler) Compose(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ComposeEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request format", http.StatusBadRequest)
		return
	}

	if strings.TrimSpace(req.Subject) == "" {
		writeError(w, "Subject is required", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.HTMLBody) == "" {
		writeError(w, "HTML body is required", http.StatusBadRequest)
		return
	}
	if len(req.Recipients) == 0 {
		writeError(w, "At least one recipient is required", http.StatusBadRequest)
		return
	}

	email, instances, err := h.mailer.Compose(r.Context(), &mailer.ComposeRequest{
		FromEmail:  req.FromEmail,
		Subject:    req.Subject,
		TextBody:   req.TextBody,
		HTMLBody:   req.HTMLBody,
		Recipients: req.Recipients,
	})
	if err != nil {
		if errors.Is(err, repository.ErrVisitorNotFound) {
			writeError(w, "Unknown recipient", http.StatusNotFound)
			return
		}
		h.log.Error("failed to compose email", zap.String("subject", req.Subject), zap.Error(err))
		writeError(w, "Failed to compose email", http.StatusInternalServerError)
		return
	}

	uuids := make([]string, 0, len(instances))
	for _, inst := range instances {
		uuids = append(uuids, inst.UUID)
	}

	writeJSON(w, ComposeEmailResponse{
		EmailID:    email.ID,
		TrackerID:  email.TrackerID,
		Recipients: len(instances),
		UUIDs:      uuids,
	}, http.StatusCreated)
}

// Stats reports how many recipients opened an email
//
//	@Summary		Get email read statistics
//	@Tags			Emails
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id	path		int	true	"Email ID"
//	@Success		200	{object}	EmailStatsResponse
//	@Failure		404	{object}	errorResponse
//	@Router			/api/emails/{id}/stats [get]
func (h *EmailsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	emailID, ok := emailIDFromPath(r.URL.Path)
	if !ok {
		writeError(w, "Invalid email id", http.StatusBadRequest)
		return
	}

	stats, err := h.mailer.Stats(r.Context(), emailID)
	if err != nil {
		if errors.Is(err, repository.ErrEmailNotFound) {
			writeError(w, "Email not found", http.StatusNotFound)
			return
		}
		h.log.Error("failed to load email stats", zap.Int64("email_id", emailID), zap.Error(err))
		writeError(w, "Failed to load email stats", http.StatusInternalServerError)
		return
	}

	writeJSON(w, EmailStatsResponse{
		EmailID:        emailID,
		RecipientCount: stats.RecipientCount,
		ReadCount:      stats.ReadCount,
		UnreadCount:    stats.UnreadCount,
	}, http.StatusOK)
}

// emailIDFromPath parses /api/emails/{id}/stats.
func emailIDFromPath(path string) (int64, bool) {
	rest := strings.TrimPrefix(path, "/api/emails/")
	rest = strings.TrimSuffix(rest, "/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[1] != "stats" {
		return 0, false
	}
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
