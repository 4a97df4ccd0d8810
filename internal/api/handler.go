// Package api exposes the district dashboard's REST surface: district
// data, narrative and dossier generation, and advisory ingestion.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/arivoli/neer/internal/advisory"
	"github.com/arivoli/neer/internal/district"
	"github.com/arivoli/neer/internal/narrative"
	"github.com/arivoli/neer/internal/policy"
	"github.com/arivoli/neer/internal/prompt"
	"github.com/arivoli/neer/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Deps holds everything the handlers need.
type Deps struct {
	Dataset    *district.Dataset
	Narratives *narrative.Service
	Store      *storage.Store
	Ingestor   *advisory.Ingestor
	Token      string
}

// NewHandler builds the full HTTP router.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(BearerAuth(deps.Token))

	r.Get("/health", handleHealth)
	r.Get("/districts", handleListDistricts(deps))
	r.Get("/districts/{name}", handleGetDistrict(deps))
	r.Get("/geojson", handleGeoJSON(deps))
	r.Get("/quota", handleQuota(deps))
	r.Post("/narrative", handleNarrative(deps))
	r.Post("/dossier", handleDossier(deps))
	r.Post("/advisories", handleIngestAdvisory(deps))
	r.Get("/advisories", handleListAdvisories(deps))

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleListDistricts(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		names := deps.Dataset.Names()
		if names == nil {
			names = []string{}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"districts": names})
	}
}

func handleGetDistrict(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")

		rec, ok := deps.Dataset.Get(name)
		if !ok {
			httpError(w, http.StatusNotFound, "not_found", "district %q not found", name)
			return
		}

		comparables := deps.Dataset.Comparables(name)
		if comparables == nil {
			comparables = []district.Record{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"district":    rec,
			"comparables": comparables,
			"schemes":     policy.SchemesForDistrict(name),
		})
	}
}

func handleGeoJSON(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if len(deps.Dataset.GeoJSON) == 0 {
			httpError(w, http.StatusNotFound, "not_found", "no boundary data loaded")
			return
		}
		w.Header().Set("Content-Type", "application/geo+json")
		w.Write(deps.Dataset.GeoJSON)
	}
}

func handleQuota(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"sessions_used": deps.Narratives.SessionsUsed(),
			"session_cap":   deps.Narratives.SessionCap(),
		})
	}
}

type generateRequest struct {
	District string `json:"district"`
}

func handleNarrative(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.District == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "district is required")
			return
		}

		rec, ok := deps.Dataset.Get(req.District)
		if !ok {
			httpError(w, http.StatusNotFound, "not_found", "district %q not found", req.District)
			return
		}

		result, err := deps.Narratives.Narrative(r.Context(), narrative.NarrativeRequest{
			Key:      req.District,
			Record:   rec,
			Fallback: rec.FallbackNarrative(),
		})
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "narrative generation: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"text":   result.Text,
			"source": result.Source,
		})
	}
}

// handleDossier streams dossier sections as server-sent events. Each
// section arrives as one `data:` frame; the terminal frame carries
// done=true and the full section map.
func handleDossier(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.District == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "district is required")
			return
		}

		rec, ok := deps.Dataset.Get(req.District)
		if !ok {
			httpError(w, http.StatusNotFound, "not_found", "district %q not found", req.District)
			return
		}

		events, err := deps.Narratives.Dossier(r.Context(), narrative.DossierRequest{
			Key:      req.District,
			Record:   rec,
			Aux:      buildAux(deps, req.District, rec),
			Fallback: rec.FallbackNarrative(),
		})
		var rej *narrative.Rejection
		if errors.As(err, &rej) {
			if rej.RetryAfter > 0 {
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(rej.RetryAfter.Seconds()))))
			}
			httpError(w, http.StatusTooManyRequests, rej.Reason, "%s", rej.Error())
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "dossier generation: %v", err)
			return
		}

		streamDossier(w, events)
	}
}

func streamDossier(w http.ResponseWriter, events <-chan narrative.DossierEvent) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		httpError(w, http.StatusInternalServerError, "api_error", "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	enc := json.NewEncoder(w)
	for ev := range events {
		frame := map[string]any{
			"completed": ev.Completed,
			"done":      ev.Done,
		}
		if ev.Done {
			frame["from_cache"] = ev.FromCache
			sections := make(map[string]string, len(ev.Sections))
			for sec, text := range ev.Sections {
				sections[string(sec)] = text
			}
			frame["sections"] = sections
		} else {
			frame["section"] = string(ev.Section)
			frame["label"] = ev.Label
			frame["text"] = ev.Text
		}

		fmt.Fprint(w, "data: ")
		enc.Encode(frame)
		fmt.Fprint(w, "\n")
		flusher.Flush()
	}
}

// buildAux assembles the auxiliary prompt context for a dossier run.
func buildAux(deps Deps, name string, rec district.Record) prompt.Context {
	crop, _ := rec.String("Recommended_Crop")
	return prompt.Context{
		Crop:        policy.CropPolicy(crop),
		Schemes:     policy.SchemesForDistrict(name),
		Comparables: deps.Dataset.Comparables(name),
		Advisories:  advisory.ExtractsForCrop(deps.Store, crop, 3),
	}
}

type ingestAdvisoryRequest struct {
	Type    string `json:"type"` // "text" or "url"; default text
	Title   string `json:"title"`
	Crop    string `json:"crop"`
	Content string `json:"content"`
	URL     string `json:"url"`
}

func handleIngestAdvisory(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req ingestAdvisoryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		var (
			adv storage.Advisory
			err error
		)
		switch {
		case req.Type == "url" && req.URL != "":
			ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
			defer cancel()
			adv, err = deps.Ingestor.IngestURL(ctx, req.URL, req.Title, req.Crop)
		case req.Content != "":
			adv, err = deps.Ingestor.IngestText(req.Title, req.Crop, req.Content, "api")
		default:
			httpError(w, http.StatusBadRequest, "invalid_request_error", "at least one of content or url is required")
			return
		}
		if err != nil {
			httpError(w, http.StatusBadGateway, "api_error", "ingesting advisory: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"id":     adv.ID,
			"status": "stored",
		})
	}
}

func handleListAdvisories(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		crop := r.URL.Query().Get("crop")
		limit := parseIntParam(r, "limit", 20, 100)

		advisories, err := deps.Store.ListAdvisories(crop, limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "listing advisories: %v", err)
			return
		}
		if advisories == nil {
			advisories = []storage.Advisory{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(advisories)
	}
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
