package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"LinkTrace-Backend/internal/repository"
)

// AuthHandlers serves operator registration and login.
type AuthHandlers struct {
	storage         repository.Storage
	jwtService      *JWTService
	passwordService *PasswordService
	log             *zap.Logger
}

func NewAuthHandlers(storage repository.Storage, jwtService *JWTService, passwordService *PasswordService, log *zap.Logger) *AuthHandlers {
	return &AuthHandlers{
		storage:         storage,
		jwtService:      jwtService,
		passwordService: passwordService,
		log:             log,
	}
}

// RegisterRequest is the registration payload.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest is the login payload.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is returned on successful registration or login.
type AuthResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	Operator     OperatorInfo `json:"operator"`
}

// OperatorInfo is the operator's public profile.
type OperatorInfo struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Register creates a new operator account
//
//	@Summary		Register a new operator
//	@Description	Create a new operator account
//	@Tags			Authentication
//	@Accept			json
//	@Produce		json
//	@Param			request	body		RegisterRequest	true	"Registration request"
//	@Success		201		{object}	AuthResponse	"Operator registered successfully"
//	@Failure		400		{object}	ErrorResponse	"Invalid request data"
//	@Failure		409		{object}	ErrorResponse	"Operator already exists"
//	@Router			/api/auth/register [post]
func (h *AuthHandlers) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Debug("invalid registration request", zap.Error(err))
		h.writeError(w, "Invalid request format", http.StatusBadRequest)
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if !isValidEmail(req.Email) {
		h.writeError(w, "Invalid email format", http.StatusBadRequest)
		return
	}

	if err := IsValidPassword(req.Password); err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	hashedPassword, err := h.passwordService.HashPassword(req.Password)
	if err != nil {
		h.log.Error("failed to hash password", zap.Error(err))
		h.writeError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	operator, err := h.storage.CreateOperator(r.Context(), req.Email, hashedPassword)
	if err != nil {
		if errors.Is(err, repository.ErrOperatorExists) {
			h.writeError(w, "Operator with this email already exists", http.StatusConflict)
			return
		}
		h.log.Error("failed to create operator", zap.String("email", req.Email), zap.Error(err))
		h.writeError(w, "Failed to create operator", http.StatusInternalServerError)
		return
	}

	response, err := h.tokenResponse(operator.ID, operator.Email)
	if err != nil {
		h.log.Error("failed to generate tokens", zap.Error(err))
		h.writeError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.log.Info("operator registered successfully", zap.Int64("operator_id", operator.ID), zap.String("email", req.Email))
	h.writeJSON(w, response, http.StatusCreated)
}

// Login authenticates an operator
//
//	@Summary		Login operator
//	@Description	Authenticate operator and receive JWT tokens
//	@Tags			Authentication
//	@Accept			json
//	@Produce		json
//	@Param			request	body		LoginRequest	true	"Login request"
//	@Success		200		{object}	AuthResponse	"Login successful"
//	@Failure		400		{object}	ErrorResponse	"Invalid request data"
//	@Failure		401		{object}	ErrorResponse	"Invalid credentials"
//	@Router			/api/auth/login [post]
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Debug("invalid login request", zap.Error(err))
		h.writeError(w, "Invalid request format", http.StatusBadRequest)
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	operator, err := h.storage.GetOperatorByEmail(r.Context(), req.Email)
	if err != nil {
		h.log.Debug("operator not found for login", zap.String("email", req.Email))
		h.writeError(w, "Invalid email or password", http.StatusUnauthorized)
		return
	}

	if err := h.passwordService.VerifyPassword(operator.PasswordHash, req.Password); err != nil {
		h.log.Debug("invalid password for operator", zap.String("email", req.Email))
		h.writeError(w, "Invalid email or password", http.StatusUnauthorized)
		return
	}

	response, err := h.tokenResponse(operator.ID, operator.Email)
	if err != nil {
		h.log.Error("failed to generate tokens", zap.Error(err))
		h.writeError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.log.Info("operator logged in successfully", zap.Int64("operator_id", operator.ID), zap.String("email", req.Email))
	h.writeJSON(w, response, http.StatusOK)
}

func (h *AuthHandlers) tokenResponse(operatorID int64, email string) (*AuthResponse, error) {
	accessToken, err := h.jwtService.GenerateAccessToken(operatorID, email)
	if err != nil {
		return nil, err
	}

	refreshToken, err := h.jwtService.GenerateRefreshToken(operatorID, email)
	if err != nil {
		return nil, err
	}

	return &AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Operator: OperatorInfo{
			ID:    operatorID,
			Email: email,
		},
	}, nil
}

// Helper methods

func (h *AuthHandlers) writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func (h *AuthHandlers) writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{Error: message})
}

func isValidEmail(email string) bool {
	return strings.Contains(email, "@") && len(email) > 3 && len(email) < 255
}
