package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"membership/internal/attendance"
	"membership/internal/finance"
	"membership/internal/ledger"
)

func (h *handler) me(c *gin.Context) {
	roll, ok := callerRoll(c)
	if !ok {
		return
	}
	m, err := h.Cache.Profile(c.Request.Context(), roll)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"member": m, "role": m.Role()})
}

func (h *handler) activity(c *gin.Context) {
	roll, ok := callerRoll(c)
	if !ok {
		return
	}
	year, ok := h.yearQuery(c)
	if !ok {
		return
	}
	m, err := h.Cache.Profile(c.Request.Context(), roll)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, attendance.BuildActivity(m, year))
}

func (h *handler) roster(c *gin.Context) {
	s, err := h.Cache.Snapshot(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"members": s.Members, "as_of": s.FetchedAt})
}

func (h *handler) sheet(c *gin.Context) {
	p, ok := h.periodQuery(c)
	if !ok {
		return
	}
	s, err := h.Cache.Snapshot(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sheet": attendance.BuildSheet(s.Members, p), "as_of": s.FetchedAt})
}

func (h *handler) summary(c *gin.Context) {
	year, ok := h.yearQuery(c)
	if !ok {
		return
	}
	s, err := h.Cache.Snapshot(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, finance.Summarize(s.Members, s.Expenses, year, s.FetchedAt))
}

func (h *handler) breakdown(c *gin.Context) {
	p, ok := h.periodQuery(c)
	if !ok {
		return
	}
	s, err := h.Cache.Snapshot(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, finance.MonthBreakdown(s.Members, s.Expenses, p, s.FetchedAt))
}

// yearQuery reads ?year=, defaulting to the current year.
func (h *handler) yearQuery(c *gin.Context) (int, bool) {
	raw := c.Query("year")
	if raw == "" {
		return h.now().Year(), true
	}
	year, err := ledger.ParseYear(raw)
	if err != nil {
		badInput(c, err)
		return 0, false
	}
	return year, true
}

// periodQuery reads ?year=&month=, defaulting to the current month.
func (h *handler) periodQuery(c *gin.Context) (ledger.Period, bool) {
	now := h.now()
	year := c.DefaultQuery("year", strconv.Itoa(now.Year()))
	month := c.DefaultQuery("month", now.Month().String())
	p, err := ledger.ParsePeriod(year, month)
	if err != nil {
		badInput(c, err)
		return ledger.Period{}, false
	}
	return p, true
}
