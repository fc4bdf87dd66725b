package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *handler) signup(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
		RollNo   int    `json:"roll_no" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badInput(c, err)
		return
	}
	p, err := h.Approvals.Signup(c.Request.Context(), req.Email, req.Password, req.RollNo)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"pending": p, "message": "awaiting approval"})
}

func (h *handler) login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badInput(c, err)
		return
	}
	sess, err := h.Accounts.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (h *handler) refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badInput(c, err)
		return
	}
	pair, err := h.Accounts.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, pair)
}

func (h *handler) logout(c *gin.Context) {
	roll, ok := callerRoll(c)
	if !ok {
		return
	}
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badInput(c, err)
			return
		}
	}
	if err := h.Accounts.Logout(c.Request.Context(), roll, req.RefreshToken); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
