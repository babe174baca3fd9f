// README: Transport request handlers for requesters and the admin dashboard.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"lifeline/internal/http/middleware"
	"lifeline/internal/modules/dispatch"
	"lifeline/internal/types"
)

type DispatchHandler struct {
	dispatch *dispatch.Service
	onError  func(*gin.Context, error)
}

func NewDispatchHandler(svc *dispatch.Service, onError func(*gin.Context, error)) *DispatchHandler {
	return &DispatchHandler{dispatch: svc, onError: onError}
}

type createRequestReq struct {
	RequesterName     string `json:"requester_name"`
	Phone             string `json:"phone"`
	PickupLocation    string `json:"pickup_location" binding:"required"`
	EmergencyType     string `json:"emergency_type" binding:"required"`
	PreferredHospital string `json:"preferred_hospital"`
}

func (h *DispatchHandler) Create(c *gin.Context) {
	var req createRequestReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	r, err := h.dispatch.CreateRequest(c.Request.Context(), middleware.PrincipalFrom(c), dispatch.CreateCommand{
		RequesterName:     req.RequesterName,
		Phone:             req.Phone,
		PickupLocation:    req.PickupLocation,
		EmergencyType:     req.EmergencyType,
		PreferredHospital: req.PreferredHospital,
	})
	if err != nil {
		h.onError(c, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

func (h *DispatchHandler) Get(c *gin.Context) {
	r, err := h.dispatch.GetRequest(c.Request.Context(), middleware.PrincipalFrom(c), types.ID(c.Param("id")))
	if err != nil {
		h.onError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *DispatchHandler) ListMine(c *gin.Context) {
	rs, err := h.dispatch.ListMine(c.Request.Context(), middleware.PrincipalFrom(c))
	if err != nil {
		h.onError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": rs})
}

func (h *DispatchHandler) ListAll(c *gin.Context) {
	rs, err := h.dispatch.ListAll(c.Request.Context(), middleware.PrincipalFrom(c))
	if err != nil {
		h.onError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": rs})
}

func (h *DispatchHandler) Cancel(c *gin.Context) {
	r, err := h.dispatch.CancelRequest(c.Request.Context(), middleware.PrincipalFrom(c), types.ID(c.Param("id")))
	if err != nil {
		h.onError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

type driverRef struct {
	DriverID string `json:"driver_id" binding:"required"`
}

func (h *DispatchHandler) Assign(c *gin.Context) {
	var req driverRef
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing driver_id"})
		return
	}
	r, err := h.dispatch.AssignDriver(c.Request.Context(), middleware.PrincipalFrom(c),
		types.ID(c.Param("id")), types.ID(req.DriverID))
	if err != nil {
		h.onError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *DispatchHandler) Complete(c *gin.Context) {
	var req driverRef
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing driver_id"})
		return
	}
	r, err := h.dispatch.CompleteRequest(c.Request.Context(), middleware.PrincipalFrom(c),
		types.ID(c.Param("id")), types.ID(req.DriverID))
	if err != nil {
		h.onError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *DispatchHandler) History(c *gin.Context) {
	events, err := h.dispatch.History(c.Request.Context(), middleware.PrincipalFrom(c), types.ID(c.Param("id")))
	if err != nil {
		h.onError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}
