package model

import "coinbazar/internal/app"

type UserStats struct {
	TotalUsers   int     `json:"totalUsers"`
	TotalBalance float64 `json:"totalBalance"`
	TotalCoins   int64   `json:"totalCoins"`
	TotalEarned  float64 `json:"totalEarned"`
}

// Aggregate sums the ledger counters of every user; money totals keep 4 decimals.
func Aggregate(users map[string]UserRecord) (stats UserStats) {
	var balance, earned float64
	for _, u := range users {
		stats.TotalUsers++
		stats.TotalCoins += u.Coins
		balance += u.Balance
		earned += u.TotalEarned
	}
	stats.TotalBalance = app.RoundFloat(balance, 4)
	stats.TotalEarned = app.RoundFloat(earned, 4)
	return stats
}
