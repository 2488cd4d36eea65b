package model

// Audit entries are append-only and never read back by the service.

const TxTypeAdminAdd = "admin_add"

// AdminTransaction is stored at transactions/<txid>.
type AdminTransaction struct {
	UserId      string  `json:"userId"`
	Type        string  `json:"type"` // Type: "admin_add"
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"` // coins, balance, diamonds or keys
	AdminId     int64   `json:"adminId"`
	Timestamp   string  `json:"timestamp"`
	Description string  `json:"description"`
}

// SpinLog is stored at spins/<userId>/<unix ms>.
type SpinLog struct {
	UserId    string                 `json:"userId"`
	CostCoins int64                  `json:"costCoins"`
	CostKeys  int64                  `json:"costKeys"`
	Prize     string                 `json:"prize"`
	Updates   map[string]interface{} `json:"updates"`
	Timestamp string                 `json:"timestamp"`
}

// AdWatchLog is stored at ads/<userId>/<unix ms>.
type AdWatchLog struct {
	UserId      string `json:"userId"`
	AdType      string `json:"adType"`
	RewardCoins int64  `json:"rewardCoins"`
	RewardKeys  int64  `json:"rewardKeys"`
	Timestamp   string `json:"timestamp"`
}

// UpdateLog is stored at userUpdates/<userId>/<unix ms> and keeps the raw payload.
type UpdateLog struct {
	Updates   map[string]interface{} `json:"updates"`
	Timestamp string                 `json:"timestamp"`
	Source    string                 `json:"source"`
}
