package model

const (
	SlotAd1 = "ad1"
	SlotAd2 = "ad2"
	SlotAd3 = "ad3"

	DirectTaskSlots = 3
)

// AdSlots are the only keys watchedAds may carry.
var AdSlots = []string{SlotAd1, SlotAd2, SlotAd3}

// UserRecord is the document stored at users/<telegram id>.
type UserRecord struct {
	TelegramId         int64                  `json:"telegramId"`
	Username           string                 `json:"username"`
	FirstName          string                 `json:"firstName"`
	LastName           string                 `json:"lastName"`
	PhotoUrl           string                 `json:"photoUrl"`
	Coins              int64                  `json:"coins"`
	Balance            float64                `json:"balance"` // fractional currency, $
	Keys               int64                  `json:"keys"`
	Diamonds           int64                  `json:"diamonds"`
	WatchedAds         map[string]int64       `json:"watchedAds"`
	DirectTasksClaimed [DirectTaskSlots]bool  `json:"directTasksClaimed"`
	TasksCompleted     map[string]interface{} `json:"tasksCompleted"`
	Referrals          []string               `json:"referrals"`   // referred user ids, oldest first
	TotalEarned        float64                `json:"totalEarned"` // sum of every balance credit
	JoinDate           string                 `json:"joinDate,omitempty"`
	LastLogin          string                 `json:"lastLogin,omitempty"`
}

// ProfileMeta is the display metadata the platform supplies.
type ProfileMeta struct {
	TelegramId int64  `json:"telegramId"`
	Username   string `json:"username"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	PhotoUrl   string `json:"photoUrl"`
}

// DefaultRecord builds a fresh record around profile, stamped with now.
func DefaultRecord(profile ProfileMeta, now string) UserRecord {
	firstName := profile.FirstName
	if firstName == "" {
		firstName = "User"
	}
	return UserRecord{
		TelegramId:     profile.TelegramId,
		Username:       profile.Username,
		FirstName:      firstName,
		LastName:       profile.LastName,
		PhotoUrl:       profile.PhotoUrl,
		WatchedAds:     defaultWatchedAds(),
		TasksCompleted: map[string]interface{}{},
		Referrals:      []string{},
		JoinDate:       now,
		LastLogin:      now,
	}
}

func defaultWatchedAds() map[string]int64 {
	ads := make(map[string]int64, len(AdSlots))
	for _, slot := range AdSlots {
		ads[slot] = 0
	}
	return ads
}

// IsAdSlot reports whether slot is one of the known watchedAds keys.
func IsAdSlot(slot string) bool {
	for _, s := range AdSlots {
		if s == slot {
			return true
		}
	}
	return false
}

// AdsWatched sums every slot counter.
func (u UserRecord) AdsWatched() int64 {
	var total int64
	for _, n := range u.WatchedAds {
		total += n
	}
	return total
}

// Profile extracts the display metadata of the record.
func (u UserRecord) Profile() ProfileMeta {
	return ProfileMeta{
		TelegramId: u.TelegramId,
		Username:   u.Username,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		PhotoUrl:   u.PhotoUrl,
	}
}
