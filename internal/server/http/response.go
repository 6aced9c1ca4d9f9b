package httpserver

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/helixir/scholar-aggregator/internal/domain"
	"github.com/helixir/scholar-aggregator/internal/papersources"
)

// maxRequestBodySize limits JSON request bodies. Posted paper text makes
// this larger than a typical API.
const maxRequestBodySize = 8 << 20

// sourceStatus reports one source of a search.
type sourceStatus struct {
	Source string `json:"source"`
	Count  int    `json:"count"`
	Error  string `json:"error,omitempty"`
}

// searchResponse is the body of both search endpoints.
type searchResponse struct {
	Papers  []domain.Paper `json:"papers"`
	Total   int            `json:"total"`
	Sources []sourceStatus `json:"sources"`
}

func outcomeToResponse(o *papersources.Outcome) searchResponse {
	resp := searchResponse{
		Papers:  o.Papers,
		Total:   len(o.Papers),
		Sources: make([]sourceStatus, 0, len(o.Sources)),
	}
	if resp.Papers == nil {
		resp.Papers = []domain.Paper{}
	}
	for _, so := range o.Sources {
		st := sourceStatus{Source: string(so.Source), Count: so.Count}
		if so.Err != nil {
			st.Error = so.Err.Error()
		}
		resp.Sources = append(resp.Sources, st)
	}
	return resp
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Best-effort; headers already sent.
		_ = err
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{
		"error": message,
	})
}

// writeDomainError maps err to a status code by its ErrorKind. Internal
// errors are logged and rendered without detail.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForError(err)

	var rateErr *domain.RateLimitError
	if errors.As(err, &rateErr) && rateErr.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(rateErr.RetryAfter.Seconds())))
	}

	if status == http.StatusInternalServerError {
		s.logger.Error().Err(err).
			Str("path", r.URL.Path).
			Msg("request failed")
		writeError(w, status, "internal server error")
		return
	}
	writeError(w, status, err.Error())
}

// statusForError maps an error to its HTTP status code.
func statusForError(err error) int {
	switch domain.KindOf(err) {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindInvalidInput, domain.KindUnknownSource:
		return http.StatusBadRequest
	case domain.KindRateLimited:
		return http.StatusTooManyRequests
	case domain.KindUpstream:
		return http.StatusBadGateway
	case domain.KindTimeout:
		return http.StatusGatewayTimeout
	case domain.KindCanceled:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a size-limited JSON body into dst. Unknown fields are
// rejected.
func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize+1))
	if err != nil {
		return domain.NewValidationError("body", "failed to read request body")
	}
	if len(body) > maxRequestBodySize {
		return domain.NewValidationError("body", "request body too large")
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return domain.NewValidationError("body", "invalid JSON request body: "+err.Error())
	}
	return nil
}

// validationError turns validator failures into a ValidationError naming
// the first offending field.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return domain.NewValidationError("request", err.Error())
	}
	fe := verrs[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return domain.NewValidationError(field, "is required")
	case "max", "lte":
		return domain.NewValidationError(field, "must be at most "+fe.Param())
	case "min", "gte":
		return domain.NewValidationError(field, "must be at least "+fe.Param())
	case "datetime":
		return domain.NewValidationError(field, "must be a date in YYYY-MM-DD format")
	default:
		return domain.NewValidationError(field, fmt.Sprintf("failed %q validation", fe.Tag()))
	}
}
