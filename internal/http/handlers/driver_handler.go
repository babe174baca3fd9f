// README: Driver registry handlers (admin only, enforced by the service).
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"lifeline/internal/http/middleware"
	"lifeline/internal/modules/driver"
	"lifeline/internal/types"
)

type DriverHandler struct {
	drivers *driver.Service
	onError func(*gin.Context, error)
}

func NewDriverHandler(svc *driver.Service, onError func(*gin.Context, error)) *DriverHandler {
	return &DriverHandler{drivers: svc, onError: onError}
}

type createDriverReq struct {
	Name          string `json:"name" binding:"required"`
	Phone         string `json:"phone" binding:"required"`
	LicenseNumber string `json:"license_number" binding:"required"`
	Address       string `json:"address"`
	Location      string `json:"location"`
}

func (h *DriverHandler) Create(c *gin.Context) {
	var req createDriverReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	d, err := h.drivers.Create(c.Request.Context(), middleware.PrincipalFrom(c), driver.CreateCommand{
		Name:          req.Name,
		Phone:         req.Phone,
		LicenseNumber: req.LicenseNumber,
		Address:       req.Address,
		Location:      req.Location,
	})
	if err != nil {
		h.onError(c, err)
		return
	}
	c.JSON(http.StatusCreated, d)
}

type updateDriverReq struct {
	Name          *string        `json:"name"`
	Phone         *string        `json:"phone"`
	LicenseNumber *string        `json:"license_number"`
	Address       *string        `json:"address"`
	Location      *string        `json:"location"`
	Status        *driver.Status `json:"status" binding:"omitempty,driverstatus"`
}

func (h *DriverHandler) Update(c *gin.Context) {
	var req updateDriverReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	d, err := h.drivers.Update(c.Request.Context(), middleware.PrincipalFrom(c), types.ID(c.Param("id")), driver.Patch{
		Name:          req.Name,
		Phone:         req.Phone,
		LicenseNumber: req.LicenseNumber,
		Address:       req.Address,
		Location:      req.Location,
		Status:        req.Status,
	})
	if err != nil {
		h.onError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *DriverHandler) Delete(c *gin.Context) {
	if err := h.drivers.Delete(c.Request.Context(), middleware.PrincipalFrom(c), types.ID(c.Param("id"))); err != nil {
		h.onError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *DriverHandler) List(c *gin.Context) {
	var (
		drivers []*driver.Driver
		err     error
	)
	if c.Query("status") == string(driver.StatusAvailable) {
		drivers, err = h.drivers.ListAvailable(c.Request.Context(), middleware.PrincipalFrom(c))
	} else {
		drivers, err = h.drivers.List(c.Request.Context(), middleware.PrincipalFrom(c))
	}
	if err != nil {
		h.onError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"drivers": drivers})
}

type setStatusReq struct {
	Status driver.Status `json:"status" binding:"required,driverstatus"`
}

func (h *DriverHandler) SetStatus(c *gin.Context) {
	var req setStatusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid or missing status"})
		return
	}
	d, err := h.drivers.SetStatus(c.Request.Context(), middleware.PrincipalFrom(c), types.ID(c.Param("id")), req.Status)
	if err != nil {
		h.onError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}
