package app

import (
	"net/http"

	"forumhub/internal/service"
	"forumhub/internal/util"

	"github.com/gin-gonic/gin"
)

type ReportHandler struct {
	reportService service.ReportService
}

func NewReportHandler(reportService service.ReportService) *ReportHandler {
	return &ReportHandler{
		reportService: reportService,
	}
}

// CreateReport
// POST /api/v1/reports
func (h *ReportHandler) CreateReport(c *gin.Context) {
	var req service.CreateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	report, err := h.reportService.Create(c.Request.Context(), requesterFrom(c), req)
	if err != nil {
		respondError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusCreated, "Report submitted successfully", gin.H{"report": report})
}

// ListReports is staff only
// GET /api/v1/reports?status=&page=&limit=
func (h *ReportHandler) ListReports(c *gin.Context) {
	page, err := h.reportService.List(c.Request.Context(), requesterFrom(c),
		c.Query("status"), queryInt(c, "page"), queryInt(c, "limit"))
	if err != nil {
		respondError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Reports retrieved successfully", page)
}

// UpdateReportStatus
// PUT /api/v1/reports/:id/status
func (h *ReportHandler) UpdateReportStatus(c *gin.Context) {
	var req service.UpdateReportStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	report, err := h.reportService.UpdateStatus(c.Request.Context(), requesterFrom(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Report updated successfully", gin.H{"report": report})
}

// GetReportStats
// GET /api/v1/reports/stats
func (h *ReportHandler) GetReportStats(c *gin.Context) {
	stats, err := h.reportService.Stats(c.Request.Context(), requesterFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Report statistics retrieved successfully", stats)
}
