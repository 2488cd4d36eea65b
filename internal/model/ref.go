package model

// ReferralRecord is written once per (referrer, referee) pair at
// referrals/<referrerId>/<referredUserId>.
type ReferralRecord struct {
	ReferredUserId string  `json:"referredUserId"`
	ReferrerId     string  `json:"referrerId"`
	JoinedAt       string  `json:"joinedAt"`
	BonusGiven     bool    `json:"bonusGiven"`
	BonusAmount    float64 `json:"bonusAmount"`
}
