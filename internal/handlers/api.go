// Package handlers exposes the engine to the UI layer over JSON/HTTP.
// It is a thin adapter: every endpoint maps 1:1 onto a Store or Pipeline
// method, and no query logic lives here.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"pinbook/internal/indexer"
	"pinbook/internal/store"
	"pinbook/pkg/geo"
	"pinbook/pkg/utils"
)

type API struct {
	Store    *store.Store
	Pipeline *indexer.Pipeline
}

func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/clusters", a.handleClusters)
	mux.HandleFunc("GET /api/photos", a.handlePhotos)
	mux.HandleFunc("GET /api/summary", a.handleSummary)
	mux.HandleFunc("GET /api/centroid", a.handleCentroid)
	mux.HandleFunc("GET /api/annotations/{id}", a.handleAnnotations)
	mux.HandleFunc("POST /api/photos/{id}/favorite", a.handleSetFavorite)
	mux.HandleFunc("POST /api/photos/{id}/comment", a.handleSetComment)
	mux.HandleFunc("POST /api/index", a.handleIndex)
}

// handleClusters serves map pins for a viewport.
// GET /api/clusters?precision=city&min_lat=..&min_lon=..&max_lat=..&max_lon=..
func (a *API) handleClusters(w http.ResponseWriter, r *http.Request) {
	precision := store.PrecisionCountry
	if r.URL.Query().Get("precision") == string(store.PrecisionCity) {
		precision = store.PrecisionCity
	}

	world := geo.World()
	bbox := geo.BBox{
		MinLat: utils.ParseFloat(r.URL.Query().Get("min_lat"), world.MinLat),
		MinLon: utils.ParseFloat(r.URL.Query().Get("min_lon"), world.MinLon),
		MaxLat: utils.ParseFloat(r.URL.Query().Get("max_lat"), world.MaxLat),
		MaxLon: utils.ParseFloat(r.URL.Query().Get("max_lon"), world.MaxLon),
	}

	bubbles, err := a.Store.Clusters(bbox, precision)
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, utils.ErrStoreQueryFailed, "Clustering query failed.")
		return
	}
	utils.WriteJSON(w, http.StatusOK, bubbles)
}

// handlePhotos drills a cluster down to its member photos.
// GET /api/photos?key=city:Denver|US&favorites=1
func (a *API) handlePhotos(w http.ResponseWriter, r *http.Request) {
	key, err := store.ParseClusterKey(r.URL.Query().Get("key"))
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, utils.ErrClusterKeyInvalid, err.Error())
		return
	}

	var items []store.PhotoListItem
	if r.URL.Query().Get("favorites") == "1" {
		items, err = a.Store.DrillDownFavorites(key)
	} else {
		items, err = a.Store.DrillDown(key)
	}
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, utils.ErrStoreQueryFailed, "Drill-down query failed.")
		return
	}
	utils.WriteJSON(w, http.StatusOK, items)
}

func (a *API) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := a.Store.DiarySummary()
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, utils.ErrStoreQueryFailed, "Summary query failed.")
		return
	}
	utils.WriteJSON(w, http.StatusOK, summary)
}

// handleCentroid returns the mean photo location (map-focus fallback),
// or 204 when the store holds no located photos yet.
func (a *API) handleCentroid(w http.ResponseWriter, r *http.Request) {
	centroid, err := a.Store.Centroid()
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, utils.ErrStoreQueryFailed, "Centroid query failed.")
		return
	}
	if centroid == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	utils.WriteJSON(w, http.StatusOK, centroid)
}

func (a *API) handleAnnotations(w http.ResponseWriter, r *http.Request) {
	ann, err := a.Store.UserAnnotations(r.PathValue("id"))
	if errors.Is(err, store.ErrPhotoNotFound) {
		utils.WriteError(w, http.StatusNotFound, utils.ErrPhotoNotFound, "No such photo in the index.")
		return
	}
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, utils.ErrStoreQueryFailed, "Annotation lookup failed.")
		return
	}
	utils.WriteJSON(w, http.StatusOK, ann)
}

func (a *API) handleSetFavorite(w http.ResponseWriter, r *http.Request) {
	var body struct {
		IsFavorite bool `json:"is_favorite"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.WriteError(w, http.StatusBadRequest, utils.ErrRequestInvalid, "Invalid JSON body.")
		return
	}

	err := a.Store.SetFavorite(r.PathValue("id"), body.IsFavorite)
	if errors.Is(err, store.ErrPhotoNotFound) {
		utils.WriteError(w, http.StatusNotFound, utils.ErrPhotoNotFound, "No such photo in the index.")
		return
	}
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, utils.ErrStoreQueryFailed, "Favorite update failed.")
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (a *API) handleSetComment(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Comment *string `json:"comment"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.WriteError(w, http.StatusBadRequest, utils.ErrRequestInvalid, "Invalid JSON body.")
		return
	}

	err := a.Store.SetComment(r.PathValue("id"), body.Comment)
	if errors.Is(err, store.ErrPhotoNotFound) {
		utils.WriteError(w, http.StatusNotFound, utils.ErrPhotoNotFound, "No such photo in the index.")
		return
	}
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, utils.ErrStoreQueryFailed, "Comment update failed.")
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// handleIndex triggers an indexing run. mode=full forces a reset;
// mode=incremental requires an existing watermark; the default picks
// automatically based on whether the store has ever been populated.
func (a *API) handleIndex(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("mode")

	watermark, hasWatermark, err := a.Store.LatestWatermark()
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, utils.ErrStoreQueryFailed, "Watermark query failed.")
		return
	}

	var summary indexer.RunSummary
	if mode == "full" || (!hasWatermark && mode != "incremental") {
		summary, err = a.Pipeline.FullReindex(r.Context())
	} else {
		summary, err = a.Pipeline.IncrementalIndex(r.Context(), watermark)
	}

	if errors.Is(err, indexer.ErrRunInProgress) {
		utils.WriteError(w, http.StatusConflict, utils.ErrIndexRunConflict, "An indexing run is already in progress.")
		return
	}
	if err != nil {
		// Counts may be partial; the message carries them anyway.
		utils.WriteError(w, http.StatusInternalServerError, utils.ErrIndexRunFailed,
			"Indexing run failed after "+summary.String()+".")
		return
	}
	utils.WriteJSON(w, http.StatusOK, summary)
}
