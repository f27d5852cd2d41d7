package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jengzang/regrowth-dataset/internal/middleware"
	"github.com/jengzang/regrowth-dataset/internal/models"
	"github.com/jengzang/regrowth-dataset/internal/repository"
	"github.com/jengzang/regrowth-dataset/internal/service"
	"github.com/jengzang/regrowth-dataset/internal/spatial"
	"github.com/jengzang/regrowth-dataset/pkg/response"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// RunHandler handles HTTP requests for pipeline runs
type RunHandler struct {
	service *service.RunService
}

// NewRunHandler creates a new run handler
func NewRunHandler(service *service.RunService) *RunHandler {
	return &RunHandler{service: service}
}

// CreateRunRequest represents the request body for creating a run
type CreateRunRequest struct {
	Stage  string          `json:"stage" binding:"required"`
	Params json.RawMessage `json:"params"`
}

// CreateRun starts a stage in the background
// POST /api/v1/runs
func (h *RunHandler) CreateRun(c *gin.Context) {
	var req CreateRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	createdBy := c.GetString(middleware.UserKey)
	if createdBy == "" {
		createdBy = "anonymous"
	}

	run, err := h.service.Create(req.Stage, req.Params, createdBy)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	response.Accepted(c, run)
}

// GetRun retrieves a run with its per-source counts
// GET /api/v1/runs/:id
func (h *RunHandler) GetRun(c *gin.Context) {
	id, ok := runID(c)
	if !ok {
		return
	}

	run, err := h.service.GetRun(id)
	if err != nil {
		notFoundOr500(c, err)
		return
	}
	sources, err := h.service.GetSourceStats(id)
	if err != nil {
		response.InternalError(c, err.Error())
		return
	}
	count, err := h.service.CountPoints(id)
	if err != nil {
		response.InternalError(c, err.Error())
		return
	}
	response.Success(c, gin.H{"run": run, "sources": sources, "points": count})
}

// ListRuns lists runs
// GET /api/v1/runs
func (h *RunHandler) ListRuns(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil {
		limit = 20
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil {
		offset = 0
	}

	runs, err := h.service.ListRuns(models.RunFilters{
		Stage:  c.Query("stage"),
		Status: c.Query("status"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		response.InternalError(c, err.Error())
		return
	}
	response.Success(c, gin.H{"runs": runs, "limit": limit, "offset": offset})
}

// ListPoints returns the sampling points of a run as GeoJSON in lon/lat
// GET /api/v1/runs/:id/points?geohash=<prefix>
func (h *RunHandler) ListPoints(c *gin.Context) {
	id, ok := runID(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	prefix := c.Query("geohash")
	points, err := h.service.ListPoints(id, prefix, limit, offset)
	if err != nil {
		notFoundOr500(c, err)
		return
	}

	fc := geojson.NewFeatureCollection()
	if prefix != "" {
		fc.BBox = geojson.NewBBox(spatial.GeohashBound(prefix))
	}
	for _, p := range points {
		f := geojson.NewFeature(orb.Point{p.Lon, p.Lat})
		f.Properties["row"] = p.Row
		f.Properties["col"] = p.Col
		f.Properties["x"] = p.X
		f.Properties["y"] = p.Y
		f.Properties["geohash"] = p.Geohash
		fc.Append(f)
	}
	response.GeoJSON(c, fc)
}

// ListStages lists the stages a run can execute
// GET /api/v1/stages
func (h *RunHandler) ListStages(c *gin.Context) {
	response.Success(c, gin.H{"stages": h.service.Stages()})
}

func runID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "Invalid run ID")
		return 0, false
	}
	return id, true
}

func notFoundOr500(c *gin.Context, err error) {
	if errors.Is(err, repository.ErrRunNotFound) {
		response.NotFound(c, err.Error())
		return
	}
	response.Error(c, http.StatusInternalServerError, err.Error())
}
