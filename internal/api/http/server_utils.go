package apihttp

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"torrentsession/internal/domain"
	"torrentsession/internal/usecase"
)

type errorEnvelope struct {
	Error errorPayload `json:"error"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeUseCaseError maps engine and repository failures onto HTTP statuses.
// Domain sentinels are checked first because the use cases wrap them in
// ErrEngine.
func writeUseCaseError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, usecase.ErrInvalidSource):
		writeError(w, http.StatusBadRequest, "invalid_request", "exactly one of magnet or torrent file is required")
	case errors.Is(err, domain.ErrInvalidIdentifier):
		writeError(w, http.StatusBadRequest, "invalid_identifier", err.Error())
	case errors.Is(err, domain.ErrMalformedMetadata):
		writeError(w, http.StatusBadRequest, "malformed_metadata", err.Error())
	case errors.Is(err, domain.ErrIO):
		writeError(w, http.StatusBadRequest, "unreadable_source", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "torrent not found")
	case errors.Is(err, domain.ErrDuplicateIdentifier):
		writeError(w, http.StatusConflict, "duplicate", err.Error())
	case errors.Is(err, domain.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, domain.ErrCapacityExceeded):
		writeError(w, http.StatusTooManyRequests, "capacity_exceeded", err.Error())
	case errors.Is(err, usecase.ErrRepository):
		writeError(w, http.StatusInternalServerError, "repository_error", err.Error())
	case errors.Is(err, usecase.ErrEngine):
		writeError(w, http.StatusInternalServerError, "engine_error", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeRepoError(w http.ResponseWriter, err error) {
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "torrent not found")
		return
	}

	writeError(w, http.StatusInternalServerError, "repository_error", err.Error())
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorEnvelope{Error: errorPayload{Code: code, Message: message}})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func parseStatus(value string) (*domain.TorrentStatus, error) {
	value = strings.TrimSpace(value)
	if value == "" || value == "all" {
		return nil, nil
	}
	status := domain.TorrentStatus(value)
	if !status.Valid() {
		return nil, errors.New("invalid status")
	}
	return &status, nil
}

func parsePositiveInt(value string, requirePositive bool) (int, error) {
	if strings.TrimSpace(value) == "" {
		return -1, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	if requirePositive && parsed <= 0 {
		return 0, errors.New("must be > 0")
	}
	if !requirePositive && parsed < 0 {
		return 0, errors.New("must be >= 0")
	}
	return parsed, nil
}

func parseSortOrder(value string, fallback domain.SortOrder) (domain.SortOrder, error) {
	trimmed := strings.TrimSpace(strings.ToLower(value))
	if trimmed == "" {
		return fallback, nil
	}
	switch domain.SortOrder(trimmed) {
	case domain.SortAsc:
		return domain.SortAsc, nil
	case domain.SortDesc:
		return domain.SortDesc, nil
	default:
		return "", errors.New("invalid sort order")
	}
}

func isAllowedStateSortBy(value string) bool {
	switch value {
	case "", "name", "progress", "totalBytes":
		return true
	default:
		return false
	}
}

func isAllowedRecordSortBy(value string) bool {
	switch value {
	case "name", "createdAt", "updatedAt", "totalBytes", "progress":
		return true
	default:
		return false
	}
}

const maxListLimit = 1000

// parseFilter reads the query parameters shared by the list endpoints.
// sortAllowed decides which sortBy values the endpoint accepts.
func parseFilter(r *http.Request, sortAllowed func(string) bool, defaultSort string, defaultOrder domain.SortOrder) (domain.TorrentFilter, string, bool) {
	q := r.URL.Query()

	status, err := parseStatus(q.Get("status"))
	if err != nil {
		return domain.TorrentFilter{}, "invalid status", false
	}
	sortBy := strings.TrimSpace(q.Get("sortBy"))
	if sortBy == "" {
		sortBy = defaultSort
	}
	if !sortAllowed(sortBy) {
		return domain.TorrentFilter{}, "invalid sortBy", false
	}
	sortOrder, err := parseSortOrder(q.Get("sortOrder"), defaultOrder)
	if err != nil {
		return domain.TorrentFilter{}, "invalid sortOrder", false
	}
	limit, err := parsePositiveInt(q.Get("limit"), true)
	if err != nil {
		return domain.TorrentFilter{}, "invalid limit", false
	}
	offset, err := parsePositiveInt(q.Get("offset"), false)
	if err != nil {
		return domain.TorrentFilter{}, "invalid offset", false
	}

	filter := domain.TorrentFilter{
		Status:    status,
		Search:    strings.TrimSpace(q.Get("search")),
		SortBy:    sortBy,
		SortOrder: sortOrder,
	}
	if limit > 0 {
		filter.Limit = min(limit, maxListLimit)
	}
	if offset > 0 {
		filter.Offset = offset
	}
	return filter, "", true
}
