package model

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"coinbazar/internal/app"
)

var numericFields = []string{"coins", "balance", "keys", "diamonds", "totalEarned"}

var profileFields = []string{"username", "firstName", "lastName", "photoUrl", "joinDate", "lastLogin"}

// DecodeRecord turns a stored document into its generic map form.
// A nil or non-object document decodes to an empty map.
func DecodeRecord(raw json.RawMessage) map[string]interface{} {
	out := map[string]interface{}{}
	if len(raw) == 0 {
		return out
	}
	if err := json.Unmarshal(raw, &out); err != nil || out == nil {
		return map[string]interface{}{}
	}
	return out
}

// ToMap renders a record in the generic form used by Validate and merges.
func ToMap(u UserRecord) map[string]interface{} {
	out := map[string]interface{}{}
	raw, err := json.Marshal(u)
	if err != nil {
		return out
	}
	_ = json.Unmarshal(raw, &out)
	return out
}

// Sanitize normalizes an arbitrary stored document into a UserRecord:
// missing fields take their defaults and malformed ones are reset.
// Sanitize(ToMap(Sanitize(x))) equals Sanitize(x).
func Sanitize(raw map[string]interface{}) UserRecord {
	u := UserRecord{
		TelegramId:     toInt(raw["telegramId"]),
		Username:       toString(raw["username"]),
		FirstName:      toString(raw["firstName"]),
		LastName:       toString(raw["lastName"]),
		PhotoUrl:       toString(raw["photoUrl"]),
		Coins:          toInt(raw["coins"]),
		Balance:        toFloat(raw["balance"]),
		Keys:           toInt(raw["keys"]),
		Diamonds:       toInt(raw["diamonds"]),
		WatchedAds:     defaultWatchedAds(),
		TasksCompleted: map[string]interface{}{},
		Referrals:      []string{},
		TotalEarned:    toFloat(raw["totalEarned"]),
		JoinDate:       toString(raw["joinDate"]),
		LastLogin:      toString(raw["lastLogin"]),
	}

	if ads, ok := raw["watchedAds"].(map[string]interface{}); ok {
		for _, slot := range AdSlots {
			if n := toInt(ads[slot]); n > 0 {
				u.WatchedAds[slot] = n
			}
		}
	}

	if claimed, ok := raw["directTasksClaimed"].([]interface{}); ok && len(claimed) == DirectTaskSlots {
		var flags [DirectTaskSlots]bool
		valid := true
		for i, v := range claimed {
			b, isBool := v.(bool)
			if !isBool {
				valid = false
				break
			}
			flags[i] = b
		}
		if valid {
			u.DirectTasksClaimed = flags
		}
	}

	if tasks, ok := raw["tasksCompleted"].(map[string]interface{}); ok {
		u.TasksCompleted = normalizeObject(tasks)
	}

	if refs, ok := raw["referrals"].([]interface{}); ok {
		for _, ref := range refs {
			if id := toID(ref); id != "" {
				u.Referrals = append(u.Referrals, id)
			}
		}
	}

	return u
}

// Validate reports whether raw already has the canonical shape: every
// counter present and numeric, all three ad slots present and non-negative,
// directTasksClaimed a 3-element boolean array, and the collections of the
// right JSON type. Optional profile fields must be strings when present.
func Validate(raw map[string]interface{}) bool {
	for _, field := range numericFields {
		if !isNumber(raw[field]) {
			return false
		}
	}

	if _, ok := raw["tasksCompleted"].(map[string]interface{}); !ok {
		return false
	}
	if _, ok := raw["referrals"].([]interface{}); !ok {
		return false
	}

	ads, ok := raw["watchedAds"].(map[string]interface{})
	if !ok {
		return false
	}
	for _, slot := range AdSlots {
		if !isNumber(ads[slot]) || toFloat(ads[slot]) < 0 {
			return false
		}
	}

	claimed, ok := raw["directTasksClaimed"].([]interface{})
	if !ok || len(claimed) != DirectTaskSlots {
		return false
	}
	for _, v := range claimed {
		if _, isBool := v.(bool); !isBool {
			return false
		}
	}

	for _, field := range profileFields {
		if v, present := raw[field]; present && v != nil {
			if _, isString := v.(string); !isString {
				return false
			}
		}
	}
	return true
}

func isNumber(v interface{}) bool {
	switch n := v.(type) {
	case float64:
		return !math.IsNaN(n) && !math.IsInf(n, 0)
	case float32, int, int32, int64:
		return true
	case json.Number:
		_, err := n.Float64()
		return err == nil
	}
	return false
}

func toFloat(v interface{}) float64 {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		f, _ = n.Float64()
	case string:
		f, _ = strconv.ParseFloat(strings.TrimSpace(n), 64)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func toInt(v interface{}) int64 {
	return app.TruncInt(toFloat(v))
}

func toString(v interface{}) string {
	s, _ := v.(string)
	return s
}

// toID accepts referral ids stored either as strings or as numbers.
func toID(v interface{}) string {
	switch id := v.(type) {
	case string:
		return strings.TrimSpace(id)
	case float64, int, int64, json.Number:
		return strconv.FormatInt(toInt(id), 10)
	}
	return ""
}

func normalizeObject(obj map[string]interface{}) map[string]interface{} {
	out := map[string]interface{}{}
	raw, err := json.Marshal(obj)
	if err != nil {
		return out
	}
	_ = json.Unmarshal(raw, &out)
	return out
}
