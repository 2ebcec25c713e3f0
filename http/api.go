package http

import (
	"math"
	"net/http"
	"strconv"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/quadmap/culling"
	"github.com/aukilabs/quadmap/featureflag"
	"github.com/aukilabs/quadmap/models"
	"github.com/aukilabs/quadmap/quadtree"
	"github.com/segmentio/encoding/json"
)

const (
	// The error type returned when a request cannot be decoded.
	ErrTypeBadRequest = "bad_request"

	maxBodySize = 1 << 20
)

// API serves the world over HTTP.
type API struct {
	World        *models.World
	FeatureFlags featureflag.FeatureFlag

	// The LOD thresholds used by visibility queries. culling.DefaultLOD when
	// nil.
	LOD []culling.LOD
}

// Register adds the API routes to mux.
func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /map", a.handleMap)
	mux.HandleFunc("POST /map/reload", a.handleReload)
	mux.HandleFunc("GET /bounds", a.handleBounds)
	mux.HandleFunc("GET /height", a.handleHeight)
	mux.HandleFunc("POST /heights", a.handleSetHeights)
	mux.HandleFunc("POST /textures", a.handleSetTextures)
	mux.HandleFunc("GET /units", a.handleUnits)
	mux.HandleFunc("POST /units", a.handleAddUnit)
	mux.HandleFunc("GET /units/{id}", a.handleUnit)
	mux.HandleFunc("PUT /units/{id}", a.handleMoveUnit)
	mux.HandleFunc("DELETE /units/{id}", a.handleRemoveUnit)
	mux.HandleFunc("POST /visible", a.handleVisible)
}

// MapInfo describes the current map.
type MapInfo struct {
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	Textures   int    `json:"textures"`
	Checksum   string `json:"checksum"`
	CanvasTree bool   `json:"canvas_tree"`
	Units      int    `json:"units"`
}

func (a *API) handleMap(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, MapInfo{
		Width:      a.World.Width(),
		Height:     a.World.Height(),
		Textures:   a.World.TextureCount(),
		Checksum:   a.World.Checksum(),
		CanvasTree: a.World.HasCanvasTree(),
		Units:      len(a.World.Units()),
	})
}

// ReloadRequest replaces the map with a flat one.
type ReloadRequest struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (a *API) handleReload(w http.ResponseWriter, r *http.Request) {
	var req ReloadRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	if err := a.World.Reload(req.Width, req.Height); err != nil {
		WriteError(w, r, err)
		return
	}
	a.handleMap(w, r)
}

func (a *API) handleBounds(w http.ResponseWriter, r *http.Request) {
	rect, err := queryRect(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	b, err := a.World.Bounds(rect)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// HeightResponse is the ground height at a point.
type HeightResponse struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
}

func (a *API) handleHeight(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	x, err := parseCoordinate(query.Get("x"))
	if err != nil {
		WriteError(w, r, badRequest("invalid x", err))
		return
	}

	y, err := parseCoordinate(query.Get("y"))
	if err != nil {
		WriteError(w, r, badRequest("invalid y", err))
		return
	}

	writeJSON(w, http.StatusOK, HeightResponse{
		X: float32(x),
		Y: float32(y),
		Z: a.World.HeightAtPoint(float32(x), float32(y)),
	})
}

// parseCoordinate parses a finite float32.
func parseCoordinate(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 32)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.New("coordinate is not finite").WithTag("value", s)
	}
	return v, nil
}

// SetHeightsRequest sets the heights of the corners from (X1, Y1) to
// (X2, Y2). Heights holds either a single value applied to every corner or
// one value per corner, row by row.
type SetHeightsRequest struct {
	X1      int       `json:"x1"`
	Y1      int       `json:"y1"`
	X2      int       `json:"x2"`
	Y2      int       `json:"y2"`
	Heights []float32 `json:"heights"`
}

func (a *API) handleSetHeights(w http.ResponseWriter, r *http.Request) {
	var req SetHeightsRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	rect := quadtree.NewRect(req.X1, req.Y1, req.X2, req.Y2)
	if n := len(req.Heights); n != 1 && n != rect.Size() {
		WriteError(w, r, errors.New("invalid heights count").
			WithType(ErrTypeBadRequest).
			WithTag("expected", rect.Size()).
			WithTag("heights", n))
		return
	}

	err := a.World.SetHeightsInRect(rect.Left, rect.Top, rect.Right, rect.Bottom, func(x, y int) float32 {
		if len(req.Heights) == 1 {
			return req.Heights[0]
		}
		return req.Heights[(y-rect.Top)*rect.Width()+x-rect.Left]
	})
	if err != nil {
		WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetTexturesRequest sets texture alphas at a corner.
type SetTexturesRequest struct {
	X        int     `json:"x"`
	Y        int     `json:"y"`
	Textures []int   `json:"textures"`
	Alphas   []uint8 `json:"alphas"`
}

func (a *API) handleSetTextures(w http.ResponseWriter, r *http.Request) {
	var req SetTexturesRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	if err := a.World.SetTextures(req.X, req.Y, req.Textures, req.Alphas); err != nil {
		WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleUnits(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.World.Units())
}

// AddUnitRequest adds a unit. When Z is not set, the unit is placed on the
// ground.
type AddUnitRequest struct {
	X      float32  `json:"x"`
	Y      float32  `json:"y"`
	Width  float32  `json:"width"`
	Height float32  `json:"height"`
	Z      *float32 `json:"z,omitempty"`
	Depth  float32  `json:"depth"`
}

func (a *API) handleAddUnit(w http.ResponseWriter, r *http.Request) {
	var req AddUnitRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	u := models.Unit{
		X:      req.X,
		Y:      req.Y,
		Width:  req.Width,
		Height: req.Height,
		Depth:  req.Depth,
	}

	var err error
	if req.Z != nil {
		u.Z = *req.Z
		u, err = a.World.AddUnit(u)
	} else {
		u, err = a.World.PlaceUnit(u)
	}

	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (a *API) handleUnit(w http.ResponseWriter, r *http.Request) {
	id, err := unitID(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	u, ok := a.World.Unit(id)
	if !ok {
		WriteError(w, r, errors.New("unit not found").
			WithType(models.ErrTypeUnitNotFound).
			WithTag("unit_id", id))
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// MoveUnitRequest moves a unit. When Z is not set, the unit is placed on the
// ground.
type MoveUnitRequest struct {
	X float32  `json:"x"`
	Y float32  `json:"y"`
	Z *float32 `json:"z,omitempty"`
}

func (a *API) handleMoveUnit(w http.ResponseWriter, r *http.Request) {
	id, err := unitID(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	var req MoveUnitRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	u, err := a.World.MoveUnit(id, req.X, req.Y, req.Z)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (a *API) handleRemoveUnit(w http.ResponseWriter, r *http.Request) {
	id, err := unitID(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	if err := a.World.RemoveUnit(id); err != nil {
		WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// VisibleRequest asks for the cells seen by a camera.
type VisibleRequest struct {
	culling.Camera
	DisableLOD bool `json:"disable_lod"`
}

func (a *API) handleVisible(w http.ResponseWriter, r *http.Request) {
	var req VisibleRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	frustum, err := req.Frustum()
	if err != nil {
		WriteError(w, r, err)
		return
	}

	b := culling.Builder{
		Frustum:    frustum,
		LOD:        a.LOD,
		DisableLOD: req.DisableLOD || a.FeatureFlags.IsSet(featureflag.FlagDisableLOD),
	}

	var list culling.CellList
	a.World.View(func(t *quadtree.Tree) {
		list = b.VisibleCells(t)
	})
	writeJSON(w, http.StatusOK, list)
}

// ErrorResponse is the body of failed requests.
type ErrorResponse struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// WriteError writes err as a JSON error response whose status depends on
// the error type.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError

	switch errors.Type(err) {
	case ErrTypeBadRequest,
		models.ErrTypeOutOfMap,
		models.ErrTypeInvalidUnit,
		models.ErrTypeInvalidTexture,
		culling.ErrTypeInvalidCamera,
		quadtree.ErrTypeInvalidDimensions:
		status = http.StatusBadRequest

	case models.ErrTypeUnitNotFound:
		status = http.StatusNotFound
	}

	if status == http.StatusInternalServerError {
		logs.WithTag("method", r.Method).
			WithTag("path", r.URL.Path).
			Error(err)
	} else {
		logs.WithTag("method", r.Method).
			WithTag("path", r.URL.Path).
			WithTag("status", status).
			Debug(err)
	}

	writeJSON(w, status, ErrorResponse{
		Type:    errors.Type(err),
		Message: err.Error(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		logs.Error(errors.New("encoding response failed").Wrap(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(b)
}

// DecodeJSON decodes the body of r into v. It writes a bad request response
// and returns false when the body is invalid.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		WriteError(w, r, badRequest("decoding request body failed", err))
		return false
	}
	return true
}

func badRequest(msg string, err error) error {
	return errors.New(msg).
		WithType(ErrTypeBadRequest).
		Wrap(err)
}

func unitID(r *http.Request) (uint32, error) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 32)
	if err != nil {
		return 0, badRequest("invalid unit id", err)
	}
	return uint32(id), nil
}

func queryRect(r *http.Request) (quadtree.Rect, error) {
	var values [4]int

	query := r.URL.Query()
	for i, name := range []string{"x1", "y1", "x2", "y2"} {
		v, err := strconv.Atoi(query.Get(name))
		if err != nil {
			return quadtree.Rect{}, errors.New("invalid query parameter").
				WithType(ErrTypeBadRequest).
				WithTag("name", name).
				Wrap(err)
		}
		values[i] = v
	}
	return quadtree.NewRect(values[0], values[1], values[2], values[3]), nil
}
