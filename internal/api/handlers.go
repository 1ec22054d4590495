package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/roach88/brickbook/internal/ir"
	"github.com/roach88/brickbook/internal/store"
)

func (s *server) handleGetBuilding(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var b ir.Building
	if raw := r.URL.Query().Get("revision"); raw != "" {
		rev, perr := strconv.ParseInt(raw, 10, 64)
		if perr != nil {
			s.writeError(w, r, store.NewValidationError("read building", id, "revision must be an integer"))
			return
		}
		b, err = s.catalogue.BuildingAt(r.Context(), id, rev)
	} else {
		b, err = s.catalogue.Building(r.Context(), id)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	etag, err := ir.BuildingDigest(b)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	etag = `"` + etag + `"`
	w.Header().Set("ETag", etag)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	writeJSON(w, http.StatusOK, b.Attributes())
}

func (s *server) handleSaveBuilding(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	principal, err := principalFrom(r, "save", id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	proposed, err := readObject(r, "save", id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	b, err := s.catalogue.SaveBuilding(r.Context(), id, proposed, principal)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b.Attributes())
}

func (s *server) handleLikeBuilding(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	principal, err := principalFrom(r, "like", id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	b, err := s.catalogue.LikeBuilding(r.Context(), id, principal)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b.Attributes())
}

func (s *server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	entries, err := s.catalogue.History(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *server) handleRevert(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	logID, err := pathInt(r, "logID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	principal, err := principalFrom(r, "revert", id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	body, err := readObject(r, "revert", id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	expected, ok := body[ir.FieldRevisionID].(ir.Int)
	if !ok {
		s.writeError(w, r, store.NewValidationError("revert", id, "body must carry an integer %s", ir.FieldRevisionID))
		return
	}

	b, err := s.catalogue.RevertChange(r.Context(), id, logID, int64(expected), principal)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b.Attributes())
}

func (s *server) handleFindByReference(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	kind := ir.ReferenceKind(q.Get("reference"))

	found, err := s.catalogue.FindByReference(r.Context(), kind, q.Get("value"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, attributesOf(found))
}

func (s *server) handleFindNear(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lng, errLng := strconv.ParseFloat(q.Get("lng"), 64)
	lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
	if errLng != nil || errLat != nil {
		s.writeError(w, r, store.NewValidationError("find near", 0, "lng and lat must be numbers"))
		return
	}

	found, err := s.catalogue.FindNear(r.Context(), ir.Point{Lng: lng, Lat: lat})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, attributesOf(found))
}

func attributesOf(buildings []ir.Building) []ir.Object {
	out := make([]ir.Object, len(buildings))
	for i, b := range buildings {
		out[i] = b.Attributes()
	}
	return out
}

func pathInt(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n <= 0 {
		return 0, store.NewValidationError("route", 0, "%s must be a positive integer, got %q", name, raw)
	}
	return n, nil
}

func principalFrom(r *http.Request, op string, id int64) (ir.Principal, error) {
	raw := r.Header.Get(PrincipalHeader)
	if raw == "" {
		return ir.Principal{}, store.NewValidationError(op, id, "missing %s header", PrincipalHeader)
	}
	p, err := ir.ParsePrincipal(raw)
	if err != nil {
		return ir.Principal{}, store.NewValidationError(op, id, "%v", err)
	}
	return p, nil
}

func readObject(r *http.Request, op string, id int64) (ir.Object, error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(data) > maxBodyBytes {
		return nil, store.NewValidationError(op, id, "request body too large")
	}
	obj, err := ir.ParseObject(data)
	if err != nil {
		return nil, store.NewValidationError(op, id, "invalid JSON body: %v", err)
	}
	return obj, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
