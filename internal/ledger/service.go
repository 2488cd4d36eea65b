// Package ledger owns every mutation of a user's economic record. Each
// operation reads the stored document, sanitizes it, computes the new
// counters, writes them back and appends one audit entry. Mutations of the
// same user are serialized in-process.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"coinbazar/internal/app"
	"coinbazar/internal/logger"
	"coinbazar/internal/model"
	"coinbazar/internal/store"

	"github.com/dchest/uniuri"
)

const (
	DefaultReferralBonus = 0.0015
	DefaultAdCoins       = 5
	DefaultAdKeys        = 1
)

const (
	FieldCoins    = "coins"
	FieldBalance  = "balance"
	FieldDiamonds = "diamonds"
	FieldKeys     = "keys"
)

// AdjustableFields are the counters an admin may credit or debit.
var AdjustableFields = []string{FieldCoins, FieldBalance, FieldDiamonds, FieldKeys}

var txidChars = []byte("abcdefghijklmnopqrstuvwxyz0123456789")

// Settings are the reward amounts applied by the ledger.
type Settings struct {
	ReferralBonus float64
	AdCoins       int64
	AdKeys        int64
}

func DefaultSettings() Settings {
	return Settings{
		ReferralBonus: DefaultReferralBonus,
		AdCoins:       DefaultAdCoins,
		AdKeys:        DefaultAdKeys,
	}
}

// Observer is told about every record the ledger has written.
type Observer func(userID string, record model.UserRecord)

type Service struct {
	store    store.Store
	locks    *keyedMutex
	settings Settings
	observer Observer
	now      func() time.Time
}

func New(st store.Store, settings Settings) *Service {
	return &Service{
		store:    st,
		locks:    newKeyedMutex(),
		settings: settings,
		now:      time.Now,
	}
}

// OnChange registers the observer invoked after successful writes.
func (s *Service) OnChange(fn Observer) {
	s.observer = fn
}

func (s *Service) Settings() Settings {
	return s.settings
}

func userPath(userID string) string {
	return store.Join("users", userID)
}

func (s *Service) stamp() (iso string, ms string) {
	t := s.now()
	return app.FormatIso(t), strconv.FormatInt(t.UnixMilli(), 10)
}

func (s *Service) notify(userID string, record model.UserRecord) {
	if s.observer != nil {
		s.observer(userID, record)
	}
}

// audit writes an append-only log entry. Failures are logged, never returned:
// the ledger mutation it describes is already committed.
func (s *Service) audit(ctx context.Context, path string, entry interface{}) {
	if err := s.store.Set(ctx, path, entry); err != nil {
		logger.Errorf("audit write %s failed: %v", path, err)
	}
}

// auditKey makes a write-once log key: the millisecond stamp keeps entries in
// time order, the random suffix keeps same-millisecond entries apart.
func auditKey(ms string) string {
	return ms + "_" + uniuri.NewLenChars(9, txidChars)
}

func (s *Service) load(ctx context.Context, userID string) (model.UserRecord, error) {
	raw, err := s.store.Get(ctx, userPath(userID))
	if err != nil {
		return model.UserRecord{}, downstream(err)
	}
	if raw == nil {
		return model.UserRecord{}, fmt.Errorf("%w: %s", ErrNotFound, userID)
	}
	return model.Sanitize(model.DecodeRecord(raw)), nil
}

// Exists reports whether a record is stored for userID.
func (s *Service) Exists(ctx context.Context, userID string) (bool, error) {
	raw, err := s.store.Get(ctx, userPath(userID))
	if err != nil {
		return false, downstream(err)
	}
	return raw != nil, nil
}

func (s *Service) GetUser(ctx context.Context, userID string) (model.UserRecord, error) {
	return s.load(ctx, userID)
}

// CreateUser writes a fresh record for userID, replacing whatever was stored.
// Callers check existence first.
func (s *Service) CreateUser(ctx context.Context, userID string, profile model.ProfileMeta) (model.UserRecord, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	now, _ := s.stamp()
	record := model.DefaultRecord(profile, now)
	if err := s.store.Set(ctx, userPath(userID), record); err != nil {
		return model.UserRecord{}, downstream(err)
	}
	s.notify(userID, record)
	return record, nil
}

// TouchLogin stamps lastLogin on an existing record.
func (s *Service) TouchLogin(ctx context.Context, userID string) error {
	unlock := s.locks.Lock(userID)
	defer unlock()

	now, _ := s.stamp()
	if err := s.store.Update(ctx, userPath(userID), map[string]interface{}{"lastLogin": now}); err != nil {
		return downstream(err)
	}
	return nil
}

// ApplyReferral credits referrerID for bringing in newUserID. It must only be
// called for users that did not exist before; replaying it credits again.
func (s *Service) ApplyReferral(ctx context.Context, newUserID string, referrerID string) (model.ReferralRecord, error) {
	if referrerID == "" || referrerID == newUserID {
		return model.ReferralRecord{}, fmt.Errorf("%w: %q referred by %q", ErrInvalidReferral, newUserID, referrerID)
	}

	unlock := s.locks.Lock(referrerID)
	defer unlock()

	referrer, err := s.load(ctx, referrerID)
	if err != nil {
		return model.ReferralRecord{}, err
	}

	bonus := s.settings.ReferralBonus
	referrer.Referrals = append(referrer.Referrals, newUserID)
	referrer.Balance += bonus
	referrer.TotalEarned += bonus

	err = s.store.Update(ctx, userPath(referrerID), map[string]interface{}{
		"referrals":   referrer.Referrals,
		"balance":     referrer.Balance,
		"totalEarned": referrer.TotalEarned,
	})
	if err != nil {
		return model.ReferralRecord{}, downstream(err)
	}
	s.notify(referrerID, referrer)

	now, _ := s.stamp()
	ref := model.ReferralRecord{
		ReferredUserId: newUserID,
		ReferrerId:     referrerID,
		JoinedAt:       now,
		BonusGiven:     true,
		BonusAmount:    bonus,
	}
	s.audit(ctx, store.Join("referrals", referrerID, newUserID), ref)
	return ref, nil
}

func isAdjustable(field string) bool {
	for _, f := range AdjustableFields {
		if f == field {
			return true
		}
	}
	return false
}

// AdminAdjust adds amount (possibly negative) to one counter. No floor is
// enforced. Integer counters only accept whole amounts.
func (s *Service) AdminAdjust(ctx context.Context, userID string, field string, amount float64, adminID int64) (model.UserRecord, error) {
	if !isAdjustable(field) {
		return model.UserRecord{}, fmt.Errorf("%w: %q", ErrInvalidField, field)
	}
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return model.UserRecord{}, fmt.Errorf("%w: %v", ErrInvalidAmount, amount)
	}
	if field != FieldBalance && amount != math.Trunc(amount) {
		return model.UserRecord{}, fmt.Errorf("%w: %s takes whole amounts", ErrInvalidAmount, field)
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	record, err := s.load(ctx, userID)
	if err != nil {
		return model.UserRecord{}, err
	}

	var value interface{}
	switch field {
	case FieldCoins:
		record.Coins += app.TruncInt(amount)
		value = record.Coins
	case FieldKeys:
		record.Keys += app.TruncInt(amount)
		value = record.Keys
	case FieldDiamonds:
		record.Diamonds += app.TruncInt(amount)
		value = record.Diamonds
	case FieldBalance:
		record.Balance += amount
		value = record.Balance
	}

	if err := s.store.Update(ctx, userPath(userID), map[string]interface{}{field: value}); err != nil {
		return model.UserRecord{}, downstream(err)
	}
	s.notify(userID, record)

	now, ms := s.stamp()
	txid := "txn_" + auditKey(ms)
	s.audit(ctx, store.Join("transactions", txid), model.AdminTransaction{
		UserId:      userID,
		Type:        model.TxTypeAdminAdd,
		Amount:      amount,
		Currency:    field,
		AdminId:     adminID,
		Timestamp:   now,
		Description: fmt.Sprintf("Admin added %v %s", amount, field),
	})
	return record, nil
}

// ResetUser overwrites the record with defaults. The stored profile is kept
// when there is one, otherwise fallback is used.
func (s *Service) ResetUser(ctx context.Context, userID string, fallback model.ProfileMeta) (model.UserRecord, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	profile := fallback
	if current, err := s.load(ctx, userID); err == nil {
		profile = current.Profile()
	} else if !isNotFound(err) {
		return model.UserRecord{}, err
	}
	if id, err := strconv.ParseInt(userID, 10, 64); err == nil {
		profile.TelegramId = id
	}

	now, _ := s.stamp()
	record := model.DefaultRecord(profile, now)
	if err := s.store.Set(ctx, userPath(userID), record); err != nil {
		return model.UserRecord{}, downstream(err)
	}
	s.notify(userID, record)
	return record, nil
}

// SpinResult carries the fields a spin changed and the resulting record.
type SpinResult struct {
	Updates map[string]interface{}
	Record  model.UserRecord
}

// ProcessSpin charges the spin cost and pays out prize. Nothing is written
// when the user cannot afford the spin.
func (s *Service) ProcessSpin(ctx context.Context, userID string, costCoins int64, costKeys int64, prize Prize) (SpinResult, error) {
	if costCoins < 0 || costKeys < 0 {
		return SpinResult{}, fmt.Errorf("%w: negative spin cost", ErrInvalidAmount)
	}
	if err := prize.validate(); err != nil {
		return SpinResult{}, err
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	record, err := s.load(ctx, userID)
	if err != nil {
		return SpinResult{}, err
	}
	if record.Coins < costCoins || record.Keys < costKeys {
		return SpinResult{}, ErrInsufficientBalance
	}

	record.Coins -= costCoins
	record.Keys -= costKeys
	updates := map[string]interface{}{}
	switch prize.Kind {
	case PrizeCurrency:
		record.Balance += prize.Amount
		record.TotalEarned += prize.Amount
		updates["balance"] = record.Balance
		updates["totalEarned"] = record.TotalEarned
	case PrizeCoins:
		record.Coins += app.TruncInt(prize.Amount)
	case PrizeKeys:
		record.Keys += app.TruncInt(prize.Amount)
	}
	updates["coins"] = record.Coins
	updates["keys"] = record.Keys

	if err := s.store.Update(ctx, userPath(userID), updates); err != nil {
		return SpinResult{}, downstream(err)
	}
	s.notify(userID, record)

	now, ms := s.stamp()
	s.audit(ctx, store.Join("spins", userID, auditKey(ms)), model.SpinLog{
		UserId:    userID,
		CostCoins: costCoins,
		CostKeys:  costKeys,
		Prize:     prize.String(),
		Updates:   updates,
		Timestamp: now,
	})
	return SpinResult{Updates: updates, Record: record}, nil
}

// AdResult carries the fields an ad watch changed and the resulting record.
type AdResult struct {
	Updates map[string]interface{}
	Record  model.UserRecord
}

// ProcessAdWatch counts one view of slot and credits the reward.
func (s *Service) ProcessAdWatch(ctx context.Context, userID string, slot string, rewardCoins int64, rewardKeys int64) (AdResult, error) {
	if !model.IsAdSlot(slot) {
		return AdResult{}, fmt.Errorf("%w: %q", ErrInvalidSlot, slot)
	}
	if rewardCoins < 0 || rewardKeys < 0 {
		return AdResult{}, fmt.Errorf("%w: negative reward", ErrInvalidAmount)
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	record, err := s.load(ctx, userID)
	if err != nil {
		return AdResult{}, err
	}

	record.WatchedAds[slot]++
	record.Coins += rewardCoins
	record.Keys += rewardKeys
	updates := map[string]interface{}{
		"watchedAds": record.WatchedAds,
		"coins":      record.Coins,
		"keys":       record.Keys,
	}
	if err := s.store.Update(ctx, userPath(userID), updates); err != nil {
		return AdResult{}, downstream(err)
	}
	s.notify(userID, record)

	now, ms := s.stamp()
	s.audit(ctx, store.Join("ads", userID, auditKey(ms)), model.AdWatchLog{
		UserId:      userID,
		AdType:      slot,
		RewardCoins: rewardCoins,
		RewardKeys:  rewardKeys,
		Timestamp:   now,
	})
	return AdResult{Updates: updates, Record: record}, nil
}

// GenericUpdate merges partial over the current record and stores the result.
// watchedAds merges per slot; telegramId cannot be changed; unknown keys are
// dropped. A merge that does not validate is rejected with ErrInvalidPayload.
func (s *Service) GenericUpdate(ctx context.Context, userID string, partial map[string]interface{}) (model.UserRecord, error) {
	if partial == nil {
		return model.UserRecord{}, ErrInvalidPayload
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	current, err := s.load(ctx, userID)
	if err != nil {
		return model.UserRecord{}, err
	}

	merged := model.ToMap(current)
	for key, value := range partial {
		switch key {
		case "telegramId":
			continue
		case "watchedAds":
			if ads, ok := value.(map[string]interface{}); ok {
				slots, _ := merged["watchedAds"].(map[string]interface{})
				for slot, n := range ads {
					if !model.IsAdSlot(slot) {
						return model.UserRecord{}, fmt.Errorf("%w: %q", ErrInvalidSlot, slot)
					}
					slots[slot] = n
				}
				continue
			}
		}
		merged[key] = value
	}
	now, ms := s.stamp()
	merged["lastLogin"] = now

	if !model.Validate(merged) {
		return model.UserRecord{}, ErrInvalidPayload
	}
	record := model.Sanitize(merged)
	if err := s.store.Set(ctx, userPath(userID), record); err != nil {
		return model.UserRecord{}, downstream(err)
	}
	s.notify(userID, record)

	s.audit(ctx, store.Join("userUpdates", userID, auditKey(ms)), model.UpdateLog{
		Updates:   partial,
		Timestamp: now,
		Source:    "api",
	})
	return record, nil
}

// ListUsers returns every stored record, sanitized, with aggregate stats.
func (s *Service) ListUsers(ctx context.Context) (map[string]model.UserRecord, model.UserStats, error) {
	raw, err := s.store.Get(ctx, "users")
	if err != nil {
		return nil, model.UserStats{}, downstream(err)
	}
	users := map[string]model.UserRecord{}
	if raw == nil {
		return users, model.UserStats{}, nil
	}
	var docs map[string]json.RawMessage
	if err := json.Unmarshal(raw, &docs); err != nil {
		return nil, model.UserStats{}, downstream(err)
	}
	for id, doc := range docs {
		users[id] = model.Sanitize(model.DecodeRecord(doc))
	}
	return users, model.Aggregate(users), nil
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
