package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/kailas-cloud/tenderdex/internal/domain"
)

// errorCode is the machine-readable error identifier in error responses.
type errorCode string

const (
	codeBadRequest         errorCode = "bad_request"
	codeUnauthorized       errorCode = "unauthorized"
	codeValidationFailed   errorCode = "validation_failed"
	codeNotFound           errorCode = "not_found"
	codeIngestBusy         errorCode = "ingest_busy"
	codeRateLimited        errorCode = "rate_limited"
	codeEmbeddingProvider  errorCode = "embedding_provider_error"
	codeCompletionProvider errorCode = "completion_provider_error"
	codeModelMismatch      errorCode = "embedding_model_mismatch"
	codeInternal           errorCode = "internal_error"
)

type errorResponse struct {
	Code    errorCode `json:"code"`
	Message string    `json:"message"`
}

// errorMapping binds a domain sentinel to its HTTP status and code. Order matters:
// the first match wins.
type errorMapping struct {
	sentinel error
	status   int
	code     errorCode
}

var errorMappings = []errorMapping{
	{domain.ErrInvalidQuery, http.StatusBadRequest, codeValidationFailed},
	{domain.ErrInvalidMetadata, http.StatusBadRequest, codeValidationFailed},
	{domain.ErrJobNotFound, http.StatusNotFound, codeNotFound},
	{domain.ErrDocumentNotFound, http.StatusNotFound, codeNotFound},
	{domain.ErrNotFound, http.StatusNotFound, codeNotFound},
	{domain.ErrIngestBusy, http.StatusConflict, codeIngestBusy},
	{domain.ErrRateLimited, http.StatusTooManyRequests, codeRateLimited},
	{domain.ErrEmbeddingModelMismatch, http.StatusConflict, codeModelMismatch},
	{domain.ErrVectorDimMismatch, http.StatusConflict, codeModelMismatch},
	{domain.ErrEmbeddingProviderError, http.StatusBadGateway, codeEmbeddingProvider},
	{domain.ErrCompletionProviderError, http.StatusBadGateway, codeCompletionProvider},
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code errorCode, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// handleDomainError maps err to a response. Clients only ever see the sentinel text,
// never wrapped internals.
func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.sentinel) {
			s.logger.Warn("domain error", zap.Error(err))
			writeError(w, m.status, m.code, m.sentinel.Error())
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternal, "internal error")
}
