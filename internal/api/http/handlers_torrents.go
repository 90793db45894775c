package apihttp

import (
	"context"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"torrentsession/internal/domain"
	"torrentsession/internal/usecase"
)

// maxTorrentFileSize caps uploaded metadata files.
const maxTorrentFileSize = 5 << 20

func (s *Server) handleTorrents(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateTorrent(w, r)
	case http.MethodGet:
		s.handleListTorrents(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleCreateTorrent(w http.ResponseWriter, r *http.Request) {
	if s.createTorrent == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "create torrent use case not configured")
		return
	}

	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		mediaType = ""
	}

	var input usecase.CreateTorrentInput
	var ok bool
	switch mediaType {
	case "application/json":
		input, ok = decodeCreateJSON(w, r)
	case "multipart/form-data":
		input, ok = decodeCreateMultipart(w, r)
	case "application/x-bittorrent":
		input, ok = decodeCreateRaw(w, r)
	default:
		writeError(w, http.StatusUnsupportedMediaType, "unsupported_media_type", "unsupported content type")
		return
	}
	if !ok {
		return
	}

	// Cap the handler execution time so we never block indefinitely.
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	snap, err := s.createTorrent.Execute(ctx, input)
	if err != nil {
		writeUseCaseError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, snap)
}

type createTorrentJSON struct {
	Magnet string `json:"magnet"`
}

func decodeCreateJSON(w http.ResponseWriter, r *http.Request) (usecase.CreateTorrentInput, bool) {
	var body createTorrentJSON
	decoder := json.NewDecoder(io.LimitReader(r.Body, 64<<10))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid json")
		return usecase.CreateTorrentInput{}, false
	}
	return usecase.CreateTorrentInput{Magnet: strings.TrimSpace(body.Magnet)}, true
}

func decodeCreateMultipart(w http.ResponseWriter, r *http.Request) (usecase.CreateTorrentInput, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxTorrentFileSize+1<<20)
	if err := r.ParseMultipartForm(maxTorrentFileSize); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid multipart form")
		return usecase.CreateTorrentInput{}, false
	}

	file, _, err := r.FormFile("torrent")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing torrent file")
		return usecase.CreateTorrentInput{}, false
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxTorrentFileSize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable_source", "failed to read torrent file")
		return usecase.CreateTorrentInput{}, false
	}
	return usecase.CreateTorrentInput{Metadata: data}, true
}

func decodeCreateRaw(w http.ResponseWriter, r *http.Request) (usecase.CreateTorrentInput, bool) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxTorrentFileSize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable_source", "failed to read torrent body")
		return usecase.CreateTorrentInput{}, false
	}
	return usecase.CreateTorrentInput{Metadata: data}, true
}

type torrentStateList struct {
	Items []domain.TorrentSnapshot `json:"items"`
	Count int                      `json:"count"`
}

type torrentRecordList struct {
	Items []domain.TorrentRecord `json:"items"`
	Count int                    `json:"count"`
}

func (s *Server) handleListTorrents(w http.ResponseWriter, r *http.Request) {
	if s.listStates == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "list torrents use case not configured")
		return
	}

	// No sortBy keeps admission order.
	filter, msg, ok := parseFilter(r, isAllowedStateSortBy, "", domain.SortAsc)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_request", msg)
		return
	}

	states, err := s.listStates.Execute(r.Context(), filter)
	if err != nil {
		writeUseCaseError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, torrentStateList{Items: states, Count: len(states)})
}

func (s *Server) handleTorrentByID(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/torrents/"), "/")
	if path == "" {
		http.NotFound(w, r)
		return
	}

	parts := strings.Split(path, "/")
	id := domain.TorrentID(parts[0])
	switch len(parts) {
	case 1:
		switch r.Method {
		case http.MethodGet:
			s.handleGetTorrent(w, r, id)
		case http.MethodDelete:
			s.handleDeleteTorrent(w, r, id)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case 2:
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		switch parts[1] {
		case "pause":
			s.handleControl(w, r, s.pauseTorrent, "pause", id)
		case "resume":
			s.handleControl(w, r, s.resumeTorrent, "resume", id)
		default:
			http.NotFound(w, r)
		}
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleGetTorrent(w http.ResponseWriter, r *http.Request, id domain.TorrentID) {
	if s.getState == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "get torrent use case not configured")
		return
	}

	snap, err := s.getState.Execute(r.Context(), id)
	if err != nil {
		writeUseCaseError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleControl(w http.ResponseWriter, r *http.Request, uc ControlTorrentUseCase, action string, id domain.TorrentID) {
	if uc == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", action+" torrent use case not configured")
		return
	}

	snap, err := uc.Execute(r.Context(), id)
	if err != nil {
		writeUseCaseError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleDeleteTorrent(w http.ResponseWriter, r *http.Request, id domain.TorrentID) {
	if s.deleteTorrent == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "delete torrent use case not configured")
		return
	}

	if err := s.deleteTorrent.Execute(r.Context(), id); err != nil {
		writeUseCaseError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRecords lists persisted admissions, newest first by default.
func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.repo == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "repository not configured")
		return
	}

	filter, msg, ok := parseFilter(r, isAllowedRecordSortBy, "updatedAt", domain.SortDesc)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_request", msg)
		return
	}

	records, err := s.repo.List(r.Context(), filter)
	if err != nil {
		writeRepoError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, torrentRecordList{Items: records, Count: len(records)})
}

func (s *Server) handleRecordByID(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/records/"), "/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.repo == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "repository not configured")
		return
	}

	record, err := s.repo.Get(r.Context(), domain.TorrentID(id))
	if err != nil {
		writeRepoError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}
