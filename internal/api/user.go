package api

import (
	"errors"
	"net/http"

	"coinbazar/internal/ledger"
	"coinbazar/internal/metrics"

	"github.com/gin-gonic/gin"
)

func GetUser(c *gin.Context) {
	a := getApp(c)
	user, err := a.Ledger.GetUser(c.Request.Context(), c.Param("userId"))
	if err != nil {
		failErr(c, err, "Failed to fetch user data")
		return
	}
	respond(c, gin.H{"user": user})
}

func UpdateUser(c *gin.Context) {
	a := getApp(c)
	var updates map[string]interface{}
	if err := c.ShouldBindJSON(&updates); err != nil || updates == nil {
		fail(c, http.StatusBadRequest, "Invalid updates data")
		return
	}

	user, err := a.Ledger.GenericUpdate(c.Request.Context(), c.Param("userId"), updates)
	metrics.LedgerOp("update", err)
	if err != nil {
		failErr(c, err, "Failed to update user data")
		return
	}
	respond(c, gin.H{
		"message": "User data updated successfully",
		"user":    user,
	})
}

func GetUsers(c *gin.Context) {
	a := getApp(c)
	users, stats, err := a.Ledger.ListUsers(c.Request.Context())
	if err != nil {
		failErr(c, err, "Failed to fetch users data")
		return
	}
	respond(c, gin.H{
		"users": users,
		"stats": stats,
	})
}

type adjustParams struct {
	Field   string   `json:"field"`
	Amount  *float64 `json:"amount"`
	AdminId int64    `json:"adminId"`
}

// AdjustUser credits or debits one counter on behalf of the admin dashboard.
func AdjustUser(c *gin.Context) {
	a := getApp(c)
	var params adjustParams
	if err := c.ShouldBindJSON(&params); err != nil || params.Field == "" || params.Amount == nil {
		fail(c, http.StatusBadRequest, "Missing required fields: field, amount")
		return
	}

	userID := c.Param("userId")
	user, err := a.Ledger.AdminAdjust(c.Request.Context(), userID, params.Field, *params.Amount, params.AdminId)
	metrics.LedgerOp("admin_adjust", err)
	if err != nil {
		if errors.Is(err, ledger.ErrInvalidField) {
			fail(c, http.StatusBadRequest, "Invalid type. Use: coins, balance, diamonds, keys")
			return
		}
		failErr(c, err, "Failed to update user data")
		return
	}
	respond(c, gin.H{
		"message": "Balance adjusted",
		"user":    user,
	})
}
