package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/illmade-knight/go-gdcache/pkg/api"
	"github.com/illmade-knight/go-gdcache/pkg/fetch"
	"github.com/illmade-knight/go-gdcache/pkg/request"
)

// CacheStateHeader reports whether a response came from a fresh entry, a
// stale entry that is being refreshed, or the source.
const CacheStateHeader = "X-Cache-State"

func (s *Server) handleLevels(w http.ResponseWriter, r *http.Request) {
	req, err := parseLevelsRequest(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	res, err := s.fetcher.Levels(r.Context(), req)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	respond(s, w, r, res)
}

func (s *Server) handleLevel(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid level id %q", r.PathValue("id")))
		return
	}
	res, err := s.fetcher.Level(r.Context(), request.NewLevelRequest(id))
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	respond(s, w, r, res)
}

// respond serves the cached value when there is one, leaving a stale
// entry's refresh to finish in the background. Otherwise it waits for the
// source.
func respond[T any](s *Server, w http.ResponseWriter, r *http.Request, res *fetch.Result[T]) {
	if cached, ok := res.Cached(); ok {
		state := "fresh"
		if res.Refreshing() {
			state = "stale"
			if err := res.Detach(); err != nil {
				s.Logger.Warn().Err(err).Msg("Failed to detach refresh.")
			}
		}
		s.writeJSON(w, state, cached)
		return
	}

	value, err := res.Wait(r.Context())
	if err != nil {
		res.Cancel()
		s.writeError(w, statusFor(err), err)
		return
	}
	s.writeJSON(w, "missing", value)
}

func parseLevelsRequest(r *http.Request) (request.LevelsRequest, error) {
	q := r.URL.Query()
	req := request.LevelsRequest{}.WithSearch(q.Get("search"))

	if v := q.Get("type"); v != "" {
		t, err := request.ParseLevelRequestType(v)
		if err != nil {
			return req, err
		}
		req = req.WithType(t)
	}
	if v := q.Get("page"); v != "" {
		page, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return req, fmt.Errorf("invalid page %q", v)
		}
		req = req.WithPage(uint32(page))
	}
	if v := q.Get("song"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return req, fmt.Errorf("invalid song %q", v)
		}
		filters := req.Filters
		if q.Get("custom") == "true" {
			filters.Song = request.CustomSong(id)
		} else {
			filters.Song = request.MainSong(id)
		}
		req = req.WithFilters(filters)
	}
	return req, nil
}

func statusFor(err error) int {
	if kind, ok := api.KindOf(err); ok {
		switch kind {
		case api.KindNoResult:
			return http.StatusNotFound
		case api.KindMalformed:
			return http.StatusBadGateway
		case api.KindTransport:
			return http.StatusServiceUnavailable
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func (s *Server) writeJSON(w http.ResponseWriter, state string, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(CacheStateHeader, state)
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.Logger.Error().Err(err).Msg("Failed to write response.")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.Logger.Error().Err(err).Int("status", status).Msg("Request failed.")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
