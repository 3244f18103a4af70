package handler

import (
	"bytes"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"aforo/internal/csvexport"
	"aforo/internal/domain"
	"aforo/internal/report"
	"aforo/internal/service"
	"aforo/internal/xlsxexport"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ReportHandler handles consolidation and report export endpoints.
type ReportHandler struct {
	consolidationService service.ConsolidationService
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(consolidationService service.ConsolidationService) *ReportHandler {
	return &ReportHandler{consolidationService: consolidationService}
}

// ConsolidateRequest carries per-shipment cost overrides keyed by BL number.
type ConsolidateRequest struct {
	Costs map[string]domain.ShipmentCosts `json:"costs"`
}

// Consolidate handles POST /api/v1/batches/:id/consolidate
func (h *ReportHandler) Consolidate(c *gin.Context) {
	id, ok := parseIDParam(c, "id", "batch")
	if !ok {
		return
	}

	var req ConsolidateRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid costs payload")
			return
		}
	}
	for bl, costs := range req.Costs {
		if (costs.Freight != nil && *costs.Freight < 0) || (costs.Insurance != nil && *costs.Insurance < 0) {
			RespondError(c, http.StatusBadRequest, "INVALID_COSTS", "costs for "+bl+" must not be negative")
			return
		}
	}

	rep, err := h.consolidationService.Consolidate(c.Request.Context(), id, req.Costs)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, rep)
}

// Report handles GET /api/v1/batches/:id/report?format=json|xlsx|csv
func (h *ReportHandler) Report(c *gin.Context) {
	id, ok := parseIDParam(c, "id", "batch")
	if !ok {
		return
	}

	format := c.DefaultQuery("format", "json")
	if format != "json" && format != "xlsx" && format != "csv" {
		RespondError(c, http.StatusBadRequest, "INVALID_FORMAT", "format must be json, xlsx or csv")
		return
	}

	rep, err := h.consolidationService.Report(c.Request.Context(), id)
	if err != nil {
		HandleError(c, err)
		return
	}

	switch format {
	case "xlsx":
		h.writeXLSX(c, id, rep)
	case "csv":
		h.writeCSV(c, rep)
	default:
		RespondOK(c, rep)
	}
}

func (h *ReportHandler) writeXLSX(c *gin.Context, id uuid.UUID, rep *report.Report) {
	var buf bytes.Buffer
	if err := xlsxexport.Write(&buf, rep); err != nil {
		HandleError(c, err)
		return
	}
	name := rep.BatchName
	if name == "" {
		name = id.String()
	}
	c.Header("Content-Disposition", `attachment; filename="`+csvexport.BuildFilename(name, "xlsx")+`"`)
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// writeCSV streams rows straight to the client.
func (h *ReportHandler) writeCSV(c *gin.Context, rep *report.Report) {
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename="`+csvexport.BuildFilename(rep.BatchName, "csv")+`"`)
	c.Status(http.StatusOK)
	if _, err := c.Writer.Write(csvexport.BOM); err != nil {
		_ = c.Error(err)
		return
	}

	w := csvexport.NewWriter(c.Writer)
	if err := w.WriteHeader(); err != nil {
		_ = c.Error(err)
		return
	}
	if err := w.WriteReport(rep); err != nil {
		_ = c.Error(err)
		return
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = c.Error(err)
	}
}
