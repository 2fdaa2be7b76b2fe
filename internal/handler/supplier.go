package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"opengate/api/internal/model"
)

// SupplierHandler manages the supplier roster.
type SupplierHandler struct {
	db    *gorm.DB
	audit *AuditHandler
}

// NewSupplierHandler creates a supplier handler.
func NewSupplierHandler(db *gorm.DB, audit *AuditHandler) *SupplierHandler {
	return &SupplierHandler{db: db, audit: audit}
}

// RegisterRoutes registers supplier routes.
func (h *SupplierHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/suppliers", h.List)
	r.GET("/suppliers/:id", h.Get)
	r.POST("/suppliers", h.Create)
	r.PUT("/suppliers/:id", h.Update)
	r.DELETE("/suppliers/:id", h.Delete)
}

// List returns filtered, paginated suppliers with their vehicles.
// @Summary List suppliers
// @Tags suppliers
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /suppliers [get]
func (h *SupplierHandler) List(c *gin.Context) {
	var q model.SupplierListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	query := h.db.Model(&model.Supplier{})
	if q.Name != "" {
		query = query.Where("name ILIKE ?", "%"+q.Name+"%")
	}
	if q.CIN != "" {
		query = query.Where("cin = ?", q.CIN)
	}
	if q.Company != "" {
		query = query.Where("company ILIKE ?", "%"+q.Company+"%")
	}
	if q.Status != "" {
		query = query.Where("status = ?", q.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var suppliers []model.Supplier
	offset := (q.Page - 1) * q.PageSize
	if err := query.Preload("Vehicle").Order("id").Offset(offset).Limit(q.PageSize).Find(&suppliers).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"list":      suppliers,
		"total":     total,
		"page":      q.Page,
		"page_size": q.PageSize,
	})
}

// Get returns one supplier.
func (h *SupplierHandler) Get(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var supplier model.Supplier
	if err := h.db.Preload("Vehicle").First(&supplier, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "supplier not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, supplier)
}

// Create creates a supplier, optionally with their vehicle.
func (h *SupplierHandler) Create(c *gin.Context) {
	var req model.CreateSupplierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	supplier := model.Supplier{
		Name:    req.Name,
		CIN:     req.CIN,
		Company: req.Company,
		Email:   req.Email,
		Phone:   req.Phone,
		Status:  "active",
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&supplier).Error; err != nil {
			return err
		}
		if req.Vehicle != nil {
			vehicle := model.Vehicle{
				PlateNumber: req.Vehicle.PlateNumber,
				Make:        req.Vehicle.Make,
				Model:       req.Vehicle.Model,
				Year:        req.Vehicle.Year,
				Color:       req.Vehicle.Color,
				SupplierID:  &supplier.ID,
			}
			if err := tx.Create(&vehicle).Error; err != nil {
				return err
			}
			supplier.Vehicle = &vehicle
		}
		return nil
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.audit.RecordOperation(c, "supplier", "create", strconv.Itoa(supplier.ID))
	c.JSON(http.StatusCreated, supplier)
}

// Update edits a supplier. A vehicle payload replaces or creates the
// supplier's vehicle.
func (h *SupplierHandler) Update(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var req model.UpdateSupplierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var supplier model.Supplier
	if err := h.db.First(&supplier, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "supplier not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	updates := map[string]interface{}{}
	if req.Name != "" {
		updates["name"] = req.Name
	}
	if req.CIN != "" {
		updates["cin"] = req.CIN
	}
	if req.Company != "" {
		updates["company"] = req.Company
	}
	if req.Email != "" {
		updates["email"] = req.Email
	}
	if req.Phone != "" {
		updates["phone"] = req.Phone
	}
	if req.Status != "" {
		updates["status"] = req.Status
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		if len(updates) > 0 {
			if err := tx.Model(&supplier).Updates(updates).Error; err != nil {
				return err
			}
		}
		if req.Vehicle != nil {
			return upsertVehicle(tx, req.Vehicle, &supplier.ID, nil)
		}
		return nil
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.audit.RecordOperation(c, "supplier", "update", strconv.Itoa(id))

	h.db.Preload("Vehicle").First(&supplier, id)
	c.JSON(http.StatusOK, supplier)
}

// Delete removes a supplier and their vehicle. Their access logs remain.
func (h *SupplierHandler) Delete(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("supplier_id = ?", id).Delete(&model.Vehicle{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&model.Supplier{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "supplier not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.audit.RecordOperation(c, "supplier", "delete", strconv.Itoa(id))
	c.JSON(http.StatusOK, gin.H{"message": "supplier deleted"})
}

// upsertVehicle replaces the person's vehicle in place, keeping the
// one-vehicle-per-person rule.
func upsertVehicle(tx *gorm.DB, input *model.VehicleInput, supplierID, personnelID *int) error {
	var existing model.Vehicle
	query := tx.Model(&model.Vehicle{})
	if supplierID != nil {
		query = query.Where("supplier_id = ?", *supplierID)
	} else {
		query = query.Where("personnel_id = ?", *personnelID)
	}

	err := query.First(&existing).Error
	if err == gorm.ErrRecordNotFound {
		vehicle := model.Vehicle{
			PlateNumber: input.PlateNumber,
			Make:        input.Make,
			Model:       input.Model,
			Year:        input.Year,
			Color:       input.Color,
			SupplierID:  supplierID,
			PersonnelID: personnelID,
		}
		return tx.Create(&vehicle).Error
	}
	if err != nil {
		return err
	}

	return tx.Model(&existing).Updates(map[string]interface{}{
		"plate_number": input.PlateNumber,
		"make":         input.Make,
		"model":        input.Model,
		"year":         input.Year,
		"color":        input.Color,
	}).Error
}
