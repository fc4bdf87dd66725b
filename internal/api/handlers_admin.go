package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"membership/internal/attendance"
	"membership/internal/images"
	"membership/internal/members"
)

func (h *handler) listPending(c *gin.Context) {
	list, err := h.Approvals.ListPending(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pending": list})
}

func (h *handler) approve(c *gin.Context) {
	m, err := h.Approvals.Approve(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"member": m})
}

type attendanceRequest struct {
	Year        string `json:"year" binding:"required"`
	Month       string `json:"month" binding:"required"`
	Day         int    `json:"day" binding:"required"`
	RollNumbers []int  `json:"roll_numbers" binding:"required"`
}

func (h *handler) addAttendance(c *gin.Context) {
	h.attendanceBatch(c, h.Attendance.Add)
}

func (h *handler) removeAttendance(c *gin.Context) {
	h.attendanceBatch(c, h.Attendance.Remove)
}

type batchFunc func(ctx context.Context, year, month string, day int, rolls []int) (attendance.BatchResult, error)

func (h *handler) attendanceBatch(c *gin.Context, run batchFunc) {
	var req attendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badInput(c, err)
		return
	}
	res, err := run(c.Request.Context(), req.Year, req.Month, req.Day, req.RollNumbers)
	if err != nil {
		h.fail(c, err)
		return
	}
	status := http.StatusOK
	if res.Failed > 0 {
		status = http.StatusMultiStatus
	}
	c.JSON(status, res)
}

type donationRequest struct {
	Year   string          `json:"year" binding:"required"`
	Month  string          `json:"month" binding:"required"`
	Amount decimal.Decimal `json:"amount"`
	RollNo int             `json:"roll_no" binding:"required"`
}

func (h *handler) addDonation(c *gin.Context) {
	var req donationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badInput(c, err)
		return
	}
	total, err := h.Donations.Add(c.Request.Context(), req.Year, req.Month, req.Amount, req.RollNo)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"roll_no": req.RollNo, "amount": total})
}

func (h *handler) removeDonation(c *gin.Context) {
	var req donationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badInput(c, err)
		return
	}
	left, err := h.Donations.Remove(c.Request.Context(), req.Year, req.Month, req.Amount, req.RollNo)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"roll_no": req.RollNo, "amount": left})
}

func (h *handler) listExpenses(c *gin.Context) {
	p, ok := h.periodQuery(c)
	if !ok {
		return
	}
	list, err := h.Expenses.List(c.Request.Context(), fmt.Sprint(p.Year), p.Month.String())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"year": p.Year, "month": p.Month.String(), "expenses": list})
}

func (h *handler) addExpense(c *gin.Context) {
	var req struct {
		Year        string          `json:"year" binding:"required"`
		Month       string          `json:"month" binding:"required"`
		Amount      decimal.Decimal `json:"amount"`
		Description string          `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badInput(c, err)
		return
	}
	x, err := h.Expenses.Add(c.Request.Context(), req.Year, req.Month, req.Amount, req.Description)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, x)
}

func (h *handler) removeExpense(c *gin.Context) {
	removed, err := h.Expenses.Remove(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "removed": removed})
}

func (h *handler) refreshCache(c *gin.Context) {
	s, err := h.Cache.Refresh(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"members": len(s.Members), "as_of": s.FetchedAt})
}

func (h *handler) nextRoll(c *gin.Context) {
	next, err := h.Members.NextRollNo(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"roll_no": next})
}

func (h *handler) saveMember(c *gin.Context) {
	roll, ok := rollParam(c)
	if !ok {
		return
	}
	var p members.Profile
	if err := c.ShouldBindJSON(&p); err != nil {
		badInput(c, err)
		return
	}
	p.RollNo = roll
	m, created, err := h.Members.Save(c.Request.Context(), p)
	if err != nil {
		h.fail(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"member": m})
}

func (h *handler) deleteMember(c *gin.Context) {
	roll, ok := rollParam(c)
	if !ok {
		return
	}
	m, err := h.Members.SoftDelete(c.Request.Context(), roll)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"member": m})
}

func (h *handler) setRoles(c *gin.Context) {
	roll, ok := rollParam(c)
	if !ok {
		return
	}
	var req struct {
		IsAdmin      bool `json:"is_admin"`
		IsSuperAdmin bool `json:"is_super_admin"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badInput(c, err)
		return
	}
	if self, _ := callerRoll(c); self == roll && !req.IsSuperAdmin {
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "cannot remove your own super admin role"})
		return
	}
	m, err := h.Members.SetRoles(c.Request.Context(), roll, req.IsAdmin, req.IsSuperAdmin)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"member": m})
}

func (h *handler) uploadImage(c *gin.Context) {
	roll, ok := rollParam(c)
	if !ok {
		return
	}
	if h.Images == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "image storage not configured"})
		return
	}

	var (
		data []byte
		err  error
	)
	if strings.Contains(c.ContentType(), "multipart/form-data") {
		file, _, ferr := c.Request.FormFile("file")
		if ferr != nil {
			badInput(c, fmt.Errorf("file field required"))
			return
		}
		defer file.Close()
		data, err = io.ReadAll(io.LimitReader(file, images.MaxBytes+1))
		if err == nil {
			err = images.Check(data)
		}
	} else {
		var body struct {
			Data string `json:"data" binding:"required"`
		}
		if berr := c.ShouldBindJSON(&body); berr != nil {
			badInput(c, fmt.Errorf(`provide {"data": "<base64 data URL>"}`))
			return
		}
		data, err = images.DecodeDataURL(body.Data)
	}
	if err != nil {
		badInput(c, err)
		return
	}

	up, err := h.Images.Put(c.Request.Context(), fmt.Sprintf("member-%d", roll), data)
	if err != nil {
		h.Log.Error("image upload failed", zap.Int("roll_no", roll), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "image upload failed"})
		return
	}
	m, err := h.Members.SetImage(c.Request.Context(), roll, up.URL)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"member": m, "image": up})
}
