// Package authgate provides dual-mode request authentication (signed session
// tokens and revocable API keys) with a warm in-memory key cache for Go services.
//
// This file contains framework-agnostic handler core logic.
// Following clean architecture, handlers delegate to services and return structured results.
package authgate

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"
)

// HandlerResult represents a framework-agnostic handler response
type HandlerResult struct {
	StatusCode int
	Data       interface{}
	Error      string
}

// NewSuccessResult creates a success result
func NewSuccessResult(statusCode int, data interface{}) *HandlerResult {
	return &HandlerResult{
		StatusCode: statusCode,
		Data:       data,
	}
}

// NewErrorResult creates an error result
func NewErrorResult(statusCode int, message string) *HandlerResult {
	return &HandlerResult{
		StatusCode: statusCode,
		Error:      message,
	}
}

// CreateKeyRequest is the body of the key creation endpoint.
type CreateKeyRequest struct {
	Name string `json:"name"`
}

// CreateKeyResponse returns the created record plus the plaintext secret,
// which is shown exactly once here and never retrievable again except via the
// audited reveal endpoint.
type CreateKeyResponse struct {
	Key    *APIKeyRecord `json:"key"`
	Secret string        `json:"secret"`
}

// RevealSecretResponse carries a decrypted secret for operator display.
type RevealSecretResponse struct {
	ID     int64  `json:"id"`
	Secret string `json:"secret"`
}

// HandlerCore contains framework-agnostic admin handler logic. Every
// operation requires a principal holding the admin role.
type HandlerCore struct {
	admin  *KeyAdminService
	logger *zap.Logger
}

// NewHandlerCore creates a new handler core
func NewHandlerCore(admin *KeyAdminService, logger *zap.Logger) *HandlerCore {
	if logger == nil {
		logger, _ = zap.NewProduction() // Fallback to default logger
	}
	return &HandlerCore{
		admin:  admin,
		logger: logger.Named(CLASS_HANDLER_CORE),
	}
}

// isAdmin reports whether the caller may use the operator endpoints. Only
// session principals carry roles; API key principals never administer keys.
func (h *HandlerCore) isAdmin(caller *Principal) bool {
	return caller != nil && caller.Session != nil && caller.Session.Role == ROLE_ADMIN
}

// HandleCreateKey handles API key creation (framework-agnostic)
func (h *HandlerCore) HandleCreateKey(ctx context.Context, requestBody []byte, caller *Principal) *HandlerResult {
	if !h.isAdmin(caller) {
		return NewErrorResult(http.StatusUnauthorized, ERROR_NOT_ADMIN)
	}

	var req CreateKeyRequest
	if err := json.Unmarshal(requestBody, &req); err != nil {
		h.logger.Warn("Invalid create key request body",
			zap.Error(err))
		return NewErrorResult(http.StatusBadRequest, ERROR_INVALID_JSON)
	}

	req.Name = SanitizeString(req.Name, MAX_NAME_LENGTH)
	if err := ValidateCreateKeyRequest(req.Name, caller.Session.Subject); err != nil {
		return NewErrorResult(http.StatusBadRequest, err.Error())
	}

	rec, secret, err := h.admin.CreateKey(ctx, req.Name, caller.Session.Subject)
	if err != nil {
		h.logger.Error("Create key failed",
			zap.String(LOG_FIELD_NAME, req.Name),
			zap.Error(err))
		return NewErrorResult(ErrorToHTTPStatus(err), err.Error())
	}

	return NewSuccessResult(http.StatusCreated, &CreateKeyResponse{
		Key:    rec,
		Secret: secret,
	})
}

// HandleListKeys handles listing active API keys (framework-agnostic)
func (h *HandlerCore) HandleListKeys(ctx context.Context, caller *Principal) *HandlerResult {
	if !h.isAdmin(caller) {
		return NewErrorResult(http.StatusUnauthorized, ERROR_NOT_ADMIN)
	}

	records, err := h.admin.ListActiveKeys(ctx)
	if err != nil {
		h.logger.Error("List keys failed",
			zap.Error(err))
		return NewErrorResult(ErrorToHTTPStatus(err), err.Error())
	}

	return NewSuccessResult(http.StatusOK, records)
}

// HandleGetKey handles retrieving a single API key (framework-agnostic)
func (h *HandlerCore) HandleGetKey(ctx context.Context, idParam string, caller *Principal) *HandlerResult {
	if !h.isAdmin(caller) {
		return NewErrorResult(http.StatusUnauthorized, ERROR_NOT_ADMIN)
	}

	id, err := strconv.ParseInt(idParam, 10, 64)
	if err != nil {
		return NewErrorResult(http.StatusBadRequest, ERROR_INVALID_KEY_ID)
	}

	rec, err := h.admin.GetKey(ctx, id)
	if err != nil {
		if IsNotFoundError(err) {
			return NewErrorResult(http.StatusNotFound, ERROR_KEY_UNKNOWN)
		}
		h.logger.Error("Get key failed",
			zap.Int64(LOG_FIELD_KEY_ID, id),
			zap.Error(err))
		return NewErrorResult(ErrorToHTTPStatus(err), err.Error())
	}

	return NewSuccessResult(http.StatusOK, rec)
}

// HandleRevokeKey handles key revocation (framework-agnostic)
func (h *HandlerCore) HandleRevokeKey(ctx context.Context, idParam string, caller *Principal) *HandlerResult {
	if !h.isAdmin(caller) {
		return NewErrorResult(http.StatusUnauthorized, ERROR_NOT_ADMIN)
	}

	id, err := strconv.ParseInt(idParam, 10, 64)
	if err != nil {
		return NewErrorResult(http.StatusBadRequest, ERROR_INVALID_KEY_ID)
	}

	rec, err := h.admin.RevokeKey(ctx, id)
	if err != nil {
		if IsNotFoundError(err) {
			return NewErrorResult(http.StatusNotFound, ERROR_KEY_UNKNOWN)
		}
		h.logger.Error("Revoke key failed",
			zap.Int64(LOG_FIELD_KEY_ID, id),
			zap.Error(err))
		return NewErrorResult(ErrorToHTTPStatus(err), err.Error())
	}

	return NewSuccessResult(http.StatusOK, rec)
}

// HandleRevealSecret handles decrypting a stored secret for operator display
// (framework-agnostic). Audited by the admin service.
func (h *HandlerCore) HandleRevealSecret(ctx context.Context, idParam string, caller *Principal) *HandlerResult {
	if !h.isAdmin(caller) {
		return NewErrorResult(http.StatusUnauthorized, ERROR_NOT_ADMIN)
	}

	id, err := strconv.ParseInt(idParam, 10, 64)
	if err != nil {
		return NewErrorResult(http.StatusBadRequest, ERROR_INVALID_KEY_ID)
	}

	secret, err := h.admin.RevealSecret(ctx, id)
	if err != nil {
		if IsNotFoundError(err) {
			return NewErrorResult(http.StatusNotFound, ERROR_KEY_UNKNOWN)
		}
		h.logger.Error("Reveal secret failed",
			zap.Int64(LOG_FIELD_KEY_ID, id),
			zap.Error(err))
		return NewErrorResult(ErrorToHTTPStatus(err), err.Error())
	}

	return NewSuccessResult(http.StatusOK, &RevealSecretResponse{
		ID:     id,
		Secret: secret,
	})
}
