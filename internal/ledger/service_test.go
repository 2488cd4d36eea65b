package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"coinbazar/internal/model"
	"coinbazar/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newService(t *testing.T) (*Service, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	s := New(mem, DefaultSettings())
	s.now = func() time.Time { return fixedNow }
	return s, mem
}

func seed(t *testing.T, mem *store.Memory, userID string, doc string) {
	t.Helper()
	var v map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(doc), &v))
	require.NoError(t, mem.Set(context.Background(), store.Join("users", userID), v))
}

func stored(t *testing.T, mem *store.Memory, path string) map[string]interface{} {
	t.Helper()
	raw, err := mem.Get(context.Background(), path)
	require.NoError(t, err)
	require.NotNil(t, raw, path)
	var v map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

// onlyEntry returns the single log entry stored under dir, checking its key
// starts with the operation's millisecond stamp.
func onlyEntry(t *testing.T, mem *store.Memory, dir string) map[string]interface{} {
	t.Helper()
	entries := stored(t, mem, dir)
	require.Len(t, entries, 1, dir)
	for key, entry := range entries {
		assert.True(t, strings.HasPrefix(key, "1714564800000_"), key)
		assert.Len(t, key, len("1714564800000_")+9)
		return entry.(map[string]interface{})
	}
	return nil
}

type failingStore struct{}

var errBoom = errors.New("boom")

func (failingStore) Get(context.Context, string) (json.RawMessage, error) { return nil, errBoom }
func (failingStore) Set(context.Context, string, interface{}) error { return errBoom }
func (failingStore) Update(context.Context, string, interface{}) error { return errBoom }

func TestCreateUser(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()

	u, err := s.CreateUser(ctx, "42", model.ProfileMeta{TelegramId: 42, Username: "neo"})
	require.NoError(t, err)
	assert.Equal(t, "User", u.FirstName)
	assert.Equal(t, "2024-05-01T12:00:00.000Z", u.JoinDate)

	got, err := s.GetUser(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, u, got)

	exists, err := s.Exists(ctx, "42")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestCreateUser_ReplacesExisting(t *testing.T) {
	s, mem := newService(t)
	ctx := context.Background()
	seed(t, mem, "42", `{"telegramId": 42, "coins": 90, "referrals": ["1"]}`)

	u, err := s.CreateUser(ctx, "42", model.ProfileMeta{TelegramId: 42, FirstName: "Ann"})
	require.NoError(t, err)
	assert.Zero(t, u.Coins)
	assert.Empty(t, u.Referrals)

	got, err := s.GetUser(ctx, "42")
	require.NoError(t, err)
	assert.Zero(t, got.Coins)
	assert.Equal(t, "Ann", got.FirstName)
}

func TestGetUser_NotFound(t *testing.T) {
	s, _ := newService(t)
	_, err := s.GetUser(context.Background(), "404")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTouchLogin(t *testing.T) {
	s, mem := newService(t)
	seed(t, mem, "7", `{"telegramId": 7, "coins": 3, "lastLogin": "2020-01-01T00:00:00.000Z"}`)

	require.NoError(t, s.TouchLogin(context.Background(), "7"))
	doc := stored(t, mem, "users/7")
	assert.Equal(t, "2024-05-01T12:00:00.000Z", doc["lastLogin"])
	assert.Equal(t, 3.0, doc["coins"])
}

func TestApplyReferral(t *testing.T) {
	s, mem := newService(t)
	ctx := context.Background()
	seed(t, mem, "A", `{"telegramId": 1, "balance": 0.5, "totalEarned": 1, "referrals": []}`)

	ref, err := s.ApplyReferral(ctx, "B", "A")
	require.NoError(t, err)
	assert.Equal(t, 0.0015, ref.BonusAmount)
	assert.True(t, ref.BonusGiven)

	a, err := s.GetUser(ctx, "A")
	require.NoError(t, err)
	assert.InDelta(t, 0.5015, a.Balance, 1e-12)
	assert.InDelta(t, 1.0015, a.TotalEarned, 1e-12)
	assert.Equal(t, []string{"B"}, a.Referrals)

	rec := stored(t, mem, "referrals/A/B")
	assert.Equal(t, "B", rec["referredUserId"])
	assert.Equal(t, "A", rec["referrerId"])
	assert.Equal(t, "2024-05-01T12:00:00.000Z", rec["joinedAt"])
}

func TestApplyReferral_Rejects(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()

	_, err := s.ApplyReferral(ctx, "A", "A")
	assert.ErrorIs(t, err, ErrInvalidReferral)

	_, err = s.ApplyReferral(ctx, "B", "")
	assert.ErrorIs(t, err, ErrInvalidReferral)

	_, err = s.ApplyReferral(ctx, "B", "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAdminAdjust(t *testing.T) {
	s, mem := newService(t)
	ctx := context.Background()
	seed(t, mem, "9", `{"telegramId": 9, "diamonds": 2, "balance": 1, "totalEarned": 4}`)

	u, err := s.AdminAdjust(ctx, "9", FieldDiamonds, -3, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(-1), u.Diamonds)

	u, err = s.AdminAdjust(ctx, "9", FieldBalance, 0.25, 100)
	require.NoError(t, err)
	assert.Equal(t, 1.25, u.Balance)
	assert.Equal(t, 4.0, u.TotalEarned)

	txs := stored(t, mem, "transactions")
	require.Len(t, txs, 2)
	for id, v := range txs {
		assert.True(t, strings.HasPrefix(id, "txn_1714564800000_"), id)
		assert.Len(t, id, len("txn_1714564800000_")+9)
		entry := v.(map[string]interface{})
		assert.Equal(t, "admin_add", entry["type"])
		assert.Equal(t, 100.0, entry["adminId"])
		assert.Equal(t, "9", entry["userId"])
	}
}

func TestAdminAdjust_Rejects(t *testing.T) {
	s, mem := newService(t)
	ctx := context.Background()
	seed(t, mem, "9", `{"telegramId": 9, "coins": 1}`)

	_, err := s.AdminAdjust(ctx, "9", "gold", 1, 0)
	assert.ErrorIs(t, err, ErrInvalidField)

	_, err = s.AdminAdjust(ctx, "9", FieldCoins, math.NaN(), 0)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = s.AdminAdjust(ctx, "9", FieldKeys, math.Inf(1), 0)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = s.AdminAdjust(ctx, "9", FieldCoins, 1.5, 0)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = s.AdminAdjust(ctx, "nobody", FieldCoins, 1, 0)
	assert.ErrorIs(t, err, ErrNotFound)

	u, err := s.GetUser(ctx, "9")
	require.NoError(t, err)
	assert.Equal(t, int64(1), u.Coins)
}

func TestResetUser_KeepsProfile(t *testing.T) {
	s, mem := newService(t)
	ctx := context.Background()
	seed(t, mem, "5", `{"telegramId": 5, "username": "kim", "firstName": "Kim", "coins": 40, "balance": 2}`)

	u, err := s.ResetUser(ctx, "5", model.ProfileMeta{Username: "admin", FirstName: "Admin"})
	require.NoError(t, err)
	assert.Equal(t, "kim", u.Username)
	assert.Equal(t, "Kim", u.FirstName)
	assert.Zero(t, u.Coins)
	assert.Zero(t, u.Balance)
	assert.Equal(t, int64(5), u.TelegramId)
}

func TestResetUser_FallbackProfile(t *testing.T) {
	s, _ := newService(t)
	u, err := s.ResetUser(context.Background(), "77", model.ProfileMeta{TelegramId: 1, Username: "admin"})
	require.NoError(t, err)
	assert.Equal(t, "admin", u.Username)
	assert.Equal(t, int64(77), u.TelegramId)
}

func TestProcessSpin_CurrencyPrize(t *testing.T) {
	s, mem := newService(t)
	ctx := context.Background()
	seed(t, mem, "u", `{"telegramId": 1, "coins": 10, "keys": 1, "balance": 0, "totalEarned": 0}`)

	res, err := s.ProcessSpin(ctx, "u", 10, 1, Currency(5))
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.Record.Coins)
	assert.Equal(t, int64(0), res.Record.Keys)
	assert.Equal(t, 5.0, res.Record.Balance)
	assert.Equal(t, 5.0, res.Record.TotalEarned)
	assert.Equal(t, 5.0, res.Updates["balance"])

	log := onlyEntry(t, mem, "spins/u")
	assert.Equal(t, "$5", log["prize"])
	assert.Equal(t, 10.0, log["costCoins"])
}

func TestProcessSpin_CoinAndKeyPrizes(t *testing.T) {
	s, mem := newService(t)
	ctx := context.Background()
	seed(t, mem, "u", `{"telegramId": 1, "coins": 20, "keys": 2, "balance": 1}`)

	res, err := s.ProcessSpin(ctx, "u", 10, 1, Coins(25))
	require.NoError(t, err)
	assert.Equal(t, int64(35), res.Record.Coins)
	assert.Equal(t, int64(1), res.Record.Keys)
	assert.Equal(t, 1.0, res.Record.Balance)
	assert.NotContains(t, res.Updates, "balance")

	res, err = s.ProcessSpin(ctx, "u", 5, 1, Keys(3))
	require.NoError(t, err)
	assert.Equal(t, int64(30), res.Record.Coins)
	assert.Equal(t, int64(3), res.Record.Keys)
}

func TestProcessSpin_InsufficientBalance(t *testing.T) {
	s, mem := newService(t)
	ctx := context.Background()
	seed(t, mem, "u", `{"telegramId": 1, "coins": 5, "keys": 0}`)
	before := stored(t, mem, "users/u")

	_, err := s.ProcessSpin(ctx, "u", 10, 0, Currency(1))
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	_, err = s.ProcessSpin(ctx, "u", 0, 1, Currency(1))
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	assert.Equal(t, before, stored(t, mem, "users/u"))
	raw, err := mem.Get(ctx, "spins")
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TestProcessSpin_Rejects(t *testing.T) {
	s, mem := newService(t)
	ctx := context.Background()
	seed(t, mem, "u", `{"telegramId": 1, "coins": 5}`)

	_, err := s.ProcessSpin(ctx, "u", -1, 0, Coins(1))
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = s.ProcessSpin(ctx, "u", 1, 0, Prize{Kind: "gems", Amount: 1})
	assert.ErrorIs(t, err, ErrInvalidPrize)
	_, err = s.ProcessSpin(ctx, "u", 1, 0, Currency(-2))
	assert.ErrorIs(t, err, ErrInvalidPrize)
	_, err = s.ProcessSpin(ctx, "ghost", 1, 0, Coins(1))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProcessAdWatch(t *testing.T) {
	s, mem := newService(t)
	ctx := context.Background()
	seed(t, mem, "u", `{"telegramId": 1, "coins": 1, "keys": 0, "watchedAds": {"ad1": 0, "ad2": 3, "ad3": 0}}`)

	res, err := s.ProcessAdWatch(ctx, "u", model.SlotAd2, 5, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(4), res.Record.WatchedAds["ad2"])
	assert.Equal(t, int64(6), res.Record.Coins)
	assert.Equal(t, int64(1), res.Record.Keys)

	log := onlyEntry(t, mem, "ads/u")
	assert.Equal(t, "ad2", log["adType"])
	assert.Equal(t, 5.0, log["rewardCoins"])
}

func TestProcessAdWatch_Rejects(t *testing.T) {
	s, mem := newService(t)
	ctx := context.Background()
	seed(t, mem, "u", `{"telegramId": 1}`)

	_, err := s.ProcessAdWatch(ctx, "u", "ad9", 5, 1)
	assert.ErrorIs(t, err, ErrInvalidSlot)
	_, err = s.ProcessAdWatch(ctx, "u", "ad1", -5, 1)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = s.ProcessAdWatch(ctx, "ghost", "ad1", 5, 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProcessAdWatch_SerializedPerUser(t *testing.T) {
	s, mem := newService(t)
	seed(t, mem, "u", `{"telegramId": 1}`)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.ProcessAdWatch(context.Background(), "u", model.SlotAd1, 5, 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	u, err := s.GetUser(context.Background(), "u")
	require.NoError(t, err)
	assert.Equal(t, int64(250), u.Coins)
	assert.Equal(t, int64(50), u.Keys)
	assert.Equal(t, int64(50), u.WatchedAds["ad1"])
	assert.Len(t, stored(t, mem, "ads/u"), 50)
	assert.Zero(t, s.locks.size())
}

func TestGenericUpdate(t *testing.T) {
	s, mem := newService(t)
	ctx := context.Background()
	seed(t, mem, "u", `{"telegramId": 11, "coins": 4, "watchedAds": {"ad1": 2, "ad2": 1, "ad3": 0}}`)

	u, err := s.GenericUpdate(ctx, "u", map[string]interface{}{
		"coins":              9.0,
		"telegramId":         99.0,
		"watchedAds":         map[string]interface{}{"ad3": 5.0},
		"directTasksClaimed": []interface{}{true, false, false},
		"nickname":           "dropped",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(9), u.Coins)
	assert.Equal(t, int64(11), u.TelegramId)
	assert.Equal(t, map[string]int64{"ad1": 2, "ad2": 1, "ad3": 5}, u.WatchedAds)
	assert.Equal(t, [3]bool{true, false, false}, u.DirectTasksClaimed)
	assert.Equal(t, "2024-05-01T12:00:00.000Z", u.LastLogin)

	doc := stored(t, mem, "users/u")
	assert.NotContains(t, doc, "nickname")

	log := onlyEntry(t, mem, "userUpdates/u")
	assert.Equal(t, "api", log["source"])
	assert.Contains(t, log["updates"], "nickname")
}

func TestGenericUpdate_Rejects(t *testing.T) {
	s, mem := newService(t)
	ctx := context.Background()
	seed(t, mem, "u", `{"telegramId": 11, "coins": 4}`)
	before := stored(t, mem, "users/u")

	cases := map[string]map[string]interface{}{
		"string counter": {"coins": "lots"},
		"short claims":   {"directTasksClaimed": []interface{}{true}},
		"negative slot":  {"watchedAds": map[string]interface{}{"ad1": -1.0}},
		"referrals map":  {"referrals": map[string]interface{}{"a": 1.0}},
	}
	for name, partial := range cases {
		_, err := s.GenericUpdate(ctx, "u", partial)
		assert.ErrorIs(t, err, ErrInvalidPayload, name)
	}

	_, err := s.GenericUpdate(ctx, "u", map[string]interface{}{"watchedAds": map[string]interface{}{"ad7": 1.0}})
	assert.ErrorIs(t, err, ErrInvalidSlot)

	_, err = s.GenericUpdate(ctx, "u", nil)
	assert.ErrorIs(t, err, ErrInvalidPayload)

	_, err = s.GenericUpdate(ctx, "ghost", map[string]interface{}{"coins": 1.0})
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, before, stored(t, mem, "users/u"))
}

func TestListUsersAndChatIDs(t *testing.T) {
	s, mem := newService(t)
	ctx := context.Background()

	users, stats, err := s.ListUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)
	assert.Zero(t, stats.TotalUsers)

	ids, err := s.ChatIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	seed(t, mem, "3", `{"telegramId": 3, "coins": 2, "balance": 0.1}`)
	seed(t, mem, "1", `{"telegramId": "1", "coins": 3, "balance": 0.2}`)
	seed(t, mem, "x", `{"username": "no id"}`)

	users, stats, err = s.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 3)
	assert.Equal(t, 3, stats.TotalUsers)
	assert.Equal(t, int64(5), stats.TotalCoins)
	assert.Equal(t, 0.3, stats.TotalBalance)

	ids, err = s.ChatIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3}, ids)
}

func TestObserverSeesWrites(t *testing.T) {
	s, mem := newService(t)
	seed(t, mem, "u", `{"telegramId": 1, "coins": 10}`)

	var seen []string
	s.OnChange(func(userID string, rec model.UserRecord) {
		seen = append(seen, userID)
		assert.Equal(t, int64(15), rec.Coins)
	})
	_, err := s.ProcessAdWatch(context.Background(), "u", model.SlotAd1, 5, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"u"}, seen)
}

func TestDownstreamFailures(t *testing.T) {
	s := New(failingStore{}, DefaultSettings())
	ctx := context.Background()

	_, err := s.GetUser(ctx, "u")
	assert.ErrorIs(t, err, ErrDownstream)
	assert.ErrorIs(t, err, errBoom)

	_, err = s.CreateUser(ctx, "u", model.ProfileMeta{})
	assert.ErrorIs(t, err, ErrDownstream)

	_, err = s.ChatIDs(ctx)
	assert.ErrorIs(t, err, ErrDownstream)

	assert.Equal(t, "error", s.StoreStatus(ctx))
}

func TestStoreStatus(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()
	assert.Equal(t, "error", s.StoreStatus(ctx))
	require.NoError(t, s.EnsureHealthCheck(ctx))
	assert.Equal(t, "connected", s.StoreStatus(ctx))
}

func TestAuditEntries_OnePerOperation(t *testing.T) {
	mem := store.NewMemory()
	s := New(mem, DefaultSettings())
	ctx := context.Background()
	seed(t, mem, "u", `{"telegramId": 1, "coins": 100, "keys": 100}`)

	const n = 20
	for i := 0; i < n; i++ {
		_, err := s.ProcessAdWatch(ctx, "u", "ad1", 5, 1)
		require.NoError(t, err)
		_, err = s.ProcessSpin(ctx, "u", 1, 1, Coins(1))
		require.NoError(t, err)
		_, err = s.GenericUpdate(ctx, "u", map[string]interface{}{"firstName": "Ann"})
		require.NoError(t, err)
	}

	assert.Len(t, stored(t, mem, "ads/u"), n)
	assert.Len(t, stored(t, mem, "spins/u"), n)
	assert.Len(t, stored(t, mem, "userUpdates/u"), n)
}

func TestAdminAdjust_HugeAmountSaturates(t *testing.T) {
	s, mem := newService(t)
	ctx := context.Background()
	seed(t, mem, "u", `{"telegramId": 1}`)

	u, err := s.AdminAdjust(ctx, "u", FieldCoins, 1e19, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), u.Coins)

	u, err = s.AdminAdjust(ctx, "u", FieldKeys, -1e19, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(math.MinInt64), u.Keys)
}

func TestTouchLogin_WaitsForUserLock(t *testing.T) {
	s, mem := newService(t)
	seed(t, mem, "7", `{"telegramId": 7}`)

	unlock := s.locks.Lock("7")
	done := make(chan error, 1)
	go func() { done <- s.TouchLogin(context.Background(), "7") }()

	select {
	case <-done:
		t.Fatal("TouchLogin ran while the user was locked")
	case <-time.After(50 * time.Millisecond):
	}
	unlock()
	require.NoError(t, <-done)
	assert.Equal(t, "2024-05-01T12:00:00.000Z", stored(t, mem, "users/7")["lastLogin"])
}
