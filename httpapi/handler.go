// Package httpapi exposes the dashboard and the satellite routing over HTTP.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/FabioFlo/asd-platform-sub001/aggregate"
	"github.com/FabioFlo/asd-platform-sub001/authz"
	"github.com/FabioFlo/asd-platform-sub001/logger"
	"github.com/FabioFlo/asd-platform-sub001/satellite"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RolesHeader carries the caller roles, set by the gateway after
// authentication.
const RolesHeader = "X-Roles"

type DashboardBuilder interface {
	Build(ctx context.Context, asdID, seasonID uuid.UUID) (*aggregate.DashboardView, error)
}

// Satellites routes calls by discipline. satellite.Dispatcher satisfies it.
type Satellites interface {
	Summary(ctx context.Context, disciplina string, personID uuid.UUID) (*satellite.PlayerSummary, error)
	Profile(ctx context.Context, disciplina string, personID uuid.UUID) (*satellite.PlayerProfile, error)
	Roster(ctx context.Context, disciplina string, asdID, seasonID uuid.UUID) (*satellite.Roster, error)
}

type Handler struct {
	dashboard   DashboardBuilder
	satellites  Satellites
	definitions []satellite.Definition
	logger      logger.Logger
}

func NewHandler(d DashboardBuilder, s Satellites, definitions []satellite.Definition) *Handler {
	if d == nil || s == nil {
		panic("you must provide a dashboard and a satellite dispatcher")
	}
	return &Handler{
		dashboard:   d,
		satellites:  s,
		definitions: definitions,
		logger:      &logger.NopLogger{},
	}
}

// SetLogger sets an optional logger.
func (h *Handler) SetLogger(l logger.Logger) {
	h.logger = logger.OrNop(l)
}

// GET /api/asd/:asdId/dashboard?season=
func (h *Handler) GetDashboard(c *gin.Context) {
	if !h.authorize(c, authz.RoleAdmin, authz.RoleSegreteria) {
		return
	}
	asdID, ok := pathUUID(c, "asdId")
	if !ok {
		return
	}
	seasonID, ok := queryUUID(c, "season")
	if !ok {
		return
	}

	view, err := h.dashboard.Build(c.Request.Context(), asdID, seasonID)
	if errors.Is(err, aggregate.ErrNoData) {
		RespondError(c, http.StatusServiceUnavailable, CodeNoData, err)
		return
	}
	if err != nil {
		h.logger.Error(fmt.Sprintf("building dashboard of asd '%s'", asdID), err)
		RespondError(c, http.StatusInternalServerError, CodeInternal, err)
		return
	}
	RespondOK(c, view)
}

// GET /api/satellites
func (h *Handler) ListSatellites(c *gin.Context) {
	defs := h.definitions
	if defs == nil {
		defs = []satellite.Definition{}
	}
	RespondOK(c, gin.H{"satellites": defs})
}

// GET /api/satellites/:disciplina/players/:personId/summary
func (h *Handler) GetPlayerSummary(c *gin.Context) {
	if !h.authorize(c, authz.RoleAdmin, authz.RoleSegreteria, authz.RoleIstruttore) {
		return
	}
	personID, ok := pathUUID(c, "personId")
	if !ok {
		return
	}
	s, err := h.satellites.Summary(c.Request.Context(), c.Param("disciplina"), personID)
	h.respondSatellite(c, s, err)
}

// GET /api/satellites/:disciplina/players/:personId/profile
func (h *Handler) GetPlayerProfile(c *gin.Context) {
	if !h.authorize(c, authz.RoleAdmin, authz.RoleSegreteria, authz.RoleIstruttore) {
		return
	}
	personID, ok := pathUUID(c, "personId")
	if !ok {
		return
	}
	p, err := h.satellites.Profile(c.Request.Context(), c.Param("disciplina"), personID)
	h.respondSatellite(c, p, err)
}

// GET /api/satellites/:disciplina/roster?asd=&season=
func (h *Handler) GetRoster(c *gin.Context) {
	if !h.authorize(c, authz.RoleAdmin, authz.RoleSegreteria, authz.RoleIstruttore) {
		return
	}
	asdID, ok := queryUUID(c, "asd")
	if !ok {
		return
	}
	seasonID, ok := queryUUID(c, "season")
	if !ok {
		return
	}
	r, err := h.satellites.Roster(c.Request.Context(), c.Param("disciplina"), asdID, seasonID)
	h.respondSatellite(c, r, err)
}

// GET /healthz
func (h *Handler) Health(c *gin.Context) {
	RespondOK(c, gin.H{"status": "ok"})
}

func (h *Handler) respondSatellite(c *gin.Context, payload any, err error) {
	switch {
	case errors.Is(err, satellite.ErrUnknownSatellite):
		RespondError(c, http.StatusNotFound, CodeUnknownSatellite, err)
	case errors.Is(err, satellite.ErrSatelliteUnavailable):
		RespondError(c, http.StatusServiceUnavailable, CodeSatelliteUnavailable, err)
	case err != nil:
		h.logger.Error("satellite call", err)
		RespondError(c, http.StatusInternalServerError, CodeInternal, err)
	default:
		RespondOK(c, payload)
	}
}

func (h *Handler) authorize(c *gin.Context, required ...string) bool {
	if err := authz.Require(authz.ParseRoles(c.GetHeader(RolesHeader)), required...); err != nil {
		RespondError(c, http.StatusForbidden, CodeForbidden, err)
		return false
	}
	return true
}

func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	return parseUUID(c, name, c.Param(name))
}

func queryUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	return parseUUID(c, name, c.Query(name))
}

func parseUUID(c *gin.Context, name, raw string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		RespondError(c, http.StatusBadRequest, CodeBadRequest, fmt.Errorf("invalid %s '%s'", name, raw))
		return uuid.Nil, false
	}
	return id, true
}
