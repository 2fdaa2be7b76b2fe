package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"opengate/api/internal/model"
)

// PersonnelHandler manages the employee roster.
type PersonnelHandler struct {
	db    *gorm.DB
	audit *AuditHandler
}

// NewPersonnelHandler creates a personnel handler.
func NewPersonnelHandler(db *gorm.DB, audit *AuditHandler) *PersonnelHandler {
	return &PersonnelHandler{db: db, audit: audit}
}

// RegisterRoutes registers personnel routes.
func (h *PersonnelHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/personnel", h.List)
	r.GET("/personnel/:id", h.Get)
	r.POST("/personnel", h.Create)
	r.PUT("/personnel/:id", h.Update)
	r.DELETE("/personnel/:id", h.Delete)
}

// List returns filtered, paginated personnel with their vehicles.
func (h *PersonnelHandler) List(c *gin.Context) {
	var q model.PersonnelListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	query := h.db.Model(&model.Personnel{})
	if q.Name != "" {
		query = query.Where("name ILIKE ?", "%"+q.Name+"%")
	}
	if q.Matricule != "" {
		query = query.Where("matricule = ?", q.Matricule)
	}
	if q.Department != "" {
		query = query.Where("department = ?", q.Department)
	}
	if q.Status != "" {
		query = query.Where("status = ?", q.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var personnel []model.Personnel
	offset := (q.Page - 1) * q.PageSize
	if err := query.Preload("Vehicle").Order("id").Offset(offset).Limit(q.PageSize).Find(&personnel).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"list":      personnel,
		"total":     total,
		"page":      q.Page,
		"page_size": q.PageSize,
	})
}

// Get returns one personnel record.
func (h *PersonnelHandler) Get(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var person model.Personnel
	if err := h.db.Preload("Vehicle").First(&person, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "personnel not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, person)
}

// Create creates a personnel record, optionally with their vehicle.
func (h *PersonnelHandler) Create(c *gin.Context) {
	var req model.CreatePersonnelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	person := model.Personnel{
		Name:       req.Name,
		Matricule:  req.Matricule,
		Department: req.Department,
		Email:      req.Email,
		Phone:      req.Phone,
		Status:     "active",
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&person).Error; err != nil {
			return err
		}
		if req.Vehicle != nil {
			vehicle := model.Vehicle{
				PlateNumber: req.Vehicle.PlateNumber,
				Make:        req.Vehicle.Make,
				Model:       req.Vehicle.Model,
				Year:        req.Vehicle.Year,
				Color:       req.Vehicle.Color,
				PersonnelID: &person.ID,
			}
			if err := tx.Create(&vehicle).Error; err != nil {
				return err
			}
			person.Vehicle = &vehicle
		}
		return nil
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.audit.RecordOperation(c, "personnel", "create", strconv.Itoa(person.ID))
	c.JSON(http.StatusCreated, person)
}

// Update edits a personnel record.
func (h *PersonnelHandler) Update(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var req model.UpdatePersonnelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var person model.Personnel
	if err := h.db.First(&person, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "personnel not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	updates := map[string]interface{}{}
	if req.Name != "" {
		updates["name"] = req.Name
	}
	if req.Matricule != "" {
		updates["matricule"] = req.Matricule
	}
	if req.Department != "" {
		updates["department"] = req.Department
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
			if err := tx.Model(&person).Updates(updates).Error; err != nil {
				return err
			}
		}
		if req.Vehicle != nil {
			return upsertVehicle(tx, req.Vehicle, nil, &person.ID)
		}
		return nil
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.audit.RecordOperation(c, "personnel", "update", strconv.Itoa(id))

	h.db.Preload("Vehicle").First(&person, id)
	c.JSON(http.StatusOK, person)
}

// Delete removes a personnel record and their vehicle.
func (h *PersonnelHandler) Delete(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("personnel_id = ?", id).Delete(&model.Vehicle{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&model.Personnel{}, id)
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
			c.JSON(http.StatusNotFound, gin.H{"error": "personnel not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.audit.RecordOperation(c, "personnel", "delete", strconv.Itoa(id))
	c.JSON(http.StatusOK, gin.H{"message": "personnel deleted"})
}
