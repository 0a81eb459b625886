package handler

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/studio-adp-api/internal/dto"
	"github.com/noah-isme/studio-adp-api/internal/models"
	"github.com/noah-isme/studio-adp-api/internal/service"
	appErrors "github.com/noah-isme/studio-adp-api/pkg/errors"
	"github.com/noah-isme/studio-adp-api/pkg/export"
	"github.com/noah-isme/studio-adp-api/pkg/response"
)

type attendanceService interface {
	Issue(ctx context.Context, actor service.Actor, classID string) (*models.AttendanceToken, error)
	Redeem(ctx context.Context, actor service.Actor, req dto.RedeemAttendanceRequest) (*models.AttendanceRecord, error)
	ListByClass(ctx context.Context, actor service.Actor, classID, date string) ([]models.AttendanceRecordDetail, error)
	StudentHistory(ctx context.Context, actor service.Actor, filter models.AttendanceHistoryFilter) ([]models.AttendanceRecordDetail, *models.Pagination, error)
	QRCode(ctx context.Context, actor service.Actor, token string, size int) ([]byte, error)
	QRSheet(ctx context.Context, actor service.Actor, token string) ([]byte, error)
}

// AttendanceHandler exposes QR attendance endpoints.
type AttendanceHandler struct {
	attendance attendanceService
	prefix     string
}

// NewAttendanceHandler constructs AttendanceHandler. prefix is the API mount point used to build QR links.
func NewAttendanceHandler(attendance attendanceService, prefix string) *AttendanceHandler {
	return &AttendanceHandler{attendance: attendance, prefix: prefix}
}

// Issue godoc
// @Summary Issue attendance QR code
// @Description Issues a short-lived code for the class. Display it as a QR code at the studio entrance.
// @Tags Attendance
// @Produce json
// @Param id path string true "Class ID"
// @Success 201 {object} response.Envelope{data=dto.IssueTokenResponse}
// @Failure 404 {object} response.Envelope
// @Router /classes/{id}/attendance-tokens [post]
func (h *AttendanceHandler) Issue(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	token, err := h.attendance.Issue(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	base := h.prefix + "/attendance/tokens/" + token.Token
	response.Created(c, dto.IssueTokenResponse{
		Token:      token.Token,
		ClassID:    token.ClassID,
		ValidFrom:  token.ValidFrom,
		ValidUntil: token.ValidUntil,
		QRCodePath: base + "/qr.png",
		SheetPath:  base + "/sheet.pdf",
	})
}

// Redeem godoc
// @Summary Redeem attendance code
// @Description Marks attendance for the scanned code. Guardians with several students must send student_id.
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body dto.RedeemAttendanceRequest true "Scanned code"
// @Success 201 {object} response.Envelope{data=models.AttendanceRecord}
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 410 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /attendance/redeem [post]
func (h *AttendanceHandler) Redeem(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.RedeemAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request payload"))
		return
	}
	if req.DeviceFingerprint == "" {
		req.DeviceFingerprint = c.GetHeader("X-Device-Fingerprint")
	}
	req.UserAgent = c.Request.UserAgent()

	record, err := h.attendance.Redeem(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, record)
}

// QRCode godoc
// @Summary Render attendance QR code
// @Tags Attendance
// @Produce png
// @Param token path string true "Attendance code"
// @Param size query int false "Pixel size (max 1024)"
// @Success 200 {file} binary
// @Router /attendance/tokens/{token}/qr.png [get]
func (h *AttendanceHandler) QRCode(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	png, err := h.attendance.QRCode(c.Request.Context(), actor, c.Param("token"), queryInt(c, "size", 0))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Binary(c, "image/png", "attendance.png", png)
}

// Sheet godoc
// @Summary Render printable attendance sheet
// @Tags Attendance
// @Produce application/pdf
// @Param token path string true "Attendance code"
// @Success 200 {file} binary
// @Router /attendance/tokens/{token}/sheet.pdf [get]
func (h *AttendanceHandler) Sheet(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	pdf, err := h.attendance.QRSheet(c.Request.Context(), actor, c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Binary(c, "application/pdf", "attendance.pdf", pdf)
}

// ListByClass godoc
// @Summary List class attendance for a day
// @Tags Attendance
// @Produce json
// @Param id path string true "Class ID"
// @Param date query string false "Day (YYYY-MM-DD), default today"
// @Param format query string false "json (default) or csv"
// @Success 200 {object} response.Envelope{data=[]models.AttendanceRecordDetail}
// @Router /classes/{id}/attendance [get]
func (h *AttendanceHandler) ListByClass(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	rows, err := h.attendance.ListByClass(c.Request.Context(), actor, c.Param("id"), c.Query("date"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if c.Query("format") != "csv" {
		response.JSON(c, http.StatusOK, rows, nil)
		return
	}

	table := export.Table{Columns: []string{"student_id", "student_name", "class_name", "attendance_date", "marked_at", "marked_by"}}
	for _, r := range rows {
		table.Rows = append(table.Rows, []string{
			r.StudentID,
			r.StudentName,
			r.ClassName,
			r.AttendanceDate.Format("2006-01-02"),
			r.MarkedAt.UTC().Format(time.RFC3339),
			r.MarkedBy,
		})
	}
	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, table); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv"))
		return
	}
	response.Binary(c, "text/csv; charset=utf-8", "attendance-"+c.Param("id")+".csv", buf.Bytes())
}

// StudentHistory godoc
// @Summary Student attendance history
// @Tags Attendance
// @Produce json
// @Param id path string true "Student ID"
// @Param classId query string false "Filter by class"
// @Param from query string false "From date (YYYY-MM-DD)"
// @Param to query string false "To date (YYYY-MM-DD)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope{data=[]models.AttendanceRecordDetail}
// @Router /students/{id}/attendance [get]
func (h *AttendanceHandler) StudentHistory(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	filter := models.AttendanceHistoryFilter{
		StudentID: c.Param("id"),
		ClassID:   c.Query("classId"),
		Page:      queryInt(c, "page", 1),
		PageSize:  queryInt(c, "limit", 50),
	}
	for key, dest := range map[string]**time.Time{"from": &filter.DateFrom, "to": &filter.DateTo} {
		raw := c.Query(key)
		if raw == "" {
			continue
		}
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, key+" must be YYYY-MM-DD"))
			return
		}
		*dest = &parsed
	}

	rows, pagination, err := h.attendance.StudentHistory(c.Request.Context(), actor, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, pagination)
}
