package api

import (
	"net/http"

	"coinbazar/internal/ledger"
	"coinbazar/internal/metrics"
	"coinbazar/internal/model"

	"github.com/gin-gonic/gin"
)

type SpinParams struct {
	UserId    flexID        `json:"userId"`
	CostCoins *float64      `json:"costCoins"`
	CostKeys  *float64      `json:"costKeys"`
	Prize     *ledger.Prize `json:"prize"` // "$5", "10 Coin", "1 Key" or {"type":"coins","amount":10}
}

type AdParams struct {
	UserId      flexID   `json:"userId"`
	AdType      string   `json:"adType"`
	RewardCoins *float64 `json:"rewardCoins"`
	RewardKeys  *float64 `json:"rewardKeys"`
}

func ProcessSpin(c *gin.Context) {
	a := getApp(c)
	var params SpinParams
	if err := c.ShouldBindJSON(&params); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	if params.UserId == "" || params.CostCoins == nil || params.CostKeys == nil || params.Prize == nil {
		fail(c, http.StatusBadRequest, "Missing required fields: userId, costCoins, costKeys, prize")
		return
	}
	costCoins, okCoins := wholeNumber(*params.CostCoins)
	costKeys, okKeys := wholeNumber(*params.CostKeys)
	if !okCoins || !okKeys {
		fail(c, http.StatusBadRequest, "costCoins and costKeys must be non-negative integers")
		return
	}

	res, err := a.Ledger.ProcessSpin(c.Request.Context(), string(params.UserId), costCoins, costKeys, *params.Prize)
	metrics.LedgerOp("spin", err)
	if err != nil {
		failErr(c, err, "Failed to process spin")
		return
	}
	respond(c, gin.H{
		"message":    "Spin processed successfully",
		"prize":      params.Prize,
		"updates":    res.Updates,
		"newBalance": res.Record.Balance,
		"newCoins":   res.Record.Coins,
		"newKeys":    res.Record.Keys,
	})
}

func WatchAd(c *gin.Context) {
	a := getApp(c)
	var params AdParams
	if err := c.ShouldBindJSON(&params); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	if params.UserId == "" {
		fail(c, http.StatusBadRequest, "Missing required field: userId")
		return
	}

	settings := a.Ledger.Settings()
	slot := params.AdType
	if slot == "" {
		slot = model.SlotAd1
	}
	rewardCoins, rewardKeys := settings.AdCoins, settings.AdKeys
	ok := true
	if params.RewardCoins != nil {
		rewardCoins, ok = wholeNumber(*params.RewardCoins)
	}
	if ok && params.RewardKeys != nil {
		rewardKeys, ok = wholeNumber(*params.RewardKeys)
	}
	if !ok {
		fail(c, http.StatusBadRequest, "rewardCoins and rewardKeys must be non-negative integers")
		return
	}

	res, err := a.Ledger.ProcessAdWatch(c.Request.Context(), string(params.UserId), slot, rewardCoins, rewardKeys)
	metrics.LedgerOp("ad_watch", err)
	if err != nil {
		failErr(c, err, "Failed to process ad watch")
		return
	}
	respond(c, gin.H{
		"message":  "Ad watch processed successfully",
		"updates":  res.Updates,
		"newCoins": res.Record.Coins,
		"newKeys":  res.Record.Keys,
	})
}
