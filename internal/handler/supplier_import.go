package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"opengate/api/internal/service"
)

// SupplierImportHandler serves the bulk supplier import flow: template
// download, upload preview, background import, task polling.
type SupplierImportHandler struct {
	importer *service.SupplierImportService
	audit    *AuditHandler
}

// NewSupplierImportHandler creates a supplier import handler.
func NewSupplierImportHandler(importer *service.SupplierImportService, audit *AuditHandler) *SupplierImportHandler {
	return &SupplierImportHandler{importer: importer, audit: audit}
}

// RegisterRoutes registers import routes.
func (h *SupplierImportHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/suppliers/import/template", h.DownloadTemplate)
	r.POST("/suppliers/import/preview", h.Preview)
	r.POST("/suppliers/import", h.Import)
	r.GET("/suppliers/import/:task_id", h.GetTask)
}

// DownloadTemplate streams the import template workbook.
func (h *SupplierImportHandler) DownloadTemplate(c *gin.Context) {
	buf, err := h.importer.GenerateTemplate()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Header("Content-Disposition", `attachment; filename="supplier-import-template.xlsx"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

// Preview parses the uploaded workbook and returns the rows with their
// validation results, without writing anything.
func (h *SupplierImportHandler) Preview(c *gin.Context) {
	file, _, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	defer file.Close()

	rows, err := h.importer.ParseExcel(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	valid := 0
	for _, row := range rows {
		if row.Error == "" {
			valid++
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"rows":        rows,
		"total":       len(rows),
		"valid_count": valid,
		"error_count": len(rows) - valid,
	})
}

// Import parses the workbook and starts a background import, returning the
// task id for polling.
func (h *SupplierImportHandler) Import(c *gin.Context) {
	file, _, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	defer file.Close()

	rows, err := h.importer.ParseExcel(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	taskID := h.importer.StartImport(rows, c.GetInt("userID"))
	h.audit.RecordOperation(c, "supplier", "import", taskID)

	c.JSON(http.StatusAccepted, gin.H{
		"task_id": taskID,
		"total":   len(rows),
	})
}

// GetTask returns the live state of an import task.
func (h *SupplierImportHandler) GetTask(c *gin.Context) {
	result, ok := h.importer.GetTask(c.Param("task_id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}
	c.JSON(http.StatusOK, result)
}
