package rpc

import (
	"net/http"
	"strconv"
	"strings"
)

const maxJournalLimit = 500

func (s *Server) journalAvailable(w http.ResponseWriter) bool {
	if s.journal == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "Unavailable", "journal disabled")
		return false
	}
	return true
}

func (s *Server) handleIntentJournal(w http.ResponseWriter, r *http.Request) {
	if !s.journalAvailable(w) {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	records, err := s.journal.ListByIntent(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newJournalViews(records))
}

func (s *Server) handlePositionJournal(w http.ResponseWriter, r *http.Request) {
	if !s.journalAvailable(w) {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	records, err := s.journal.ListByPosition(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newJournalViews(records))
}

func (s *Server) handleJournalByType(w http.ResponseWriter, r *http.Request) {
	if !s.journalAvailable(w) {
		return
	}
	eventType := strings.TrimSpace(r.URL.Query().Get("type"))
	if eventType == "" {
		writeJSONError(w, http.StatusBadRequest, "InvalidRequest", "type query parameter required")
		return
	}
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeJSONError(w, http.StatusBadRequest, "InvalidRequest", "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	if limit > maxJournalLimit {
		limit = maxJournalLimit
	}
	records, err := s.journal.ListByType(r.Context(), eventType, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newJournalViews(records))
}
