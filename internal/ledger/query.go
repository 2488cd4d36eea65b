package ledger

import (
	"context"
	"sort"
	"strconv"

	"coinbazar/internal/app"

	"github.com/spyzhov/ajson"
)

const healthCheckPath = "healthCheck"

// ChatIDs lists the telegramId of every stored user, ascending. Records
// without a usable id are skipped.
func (s *Service) ChatIDs(ctx context.Context) ([]int64, error) {
	raw, err := s.store.Get(ctx, "users")
	if err != nil {
		return nil, downstream(err)
	}
	if raw == nil {
		return []int64{}, nil
	}

	nodes, err := ajson.JSONPath(raw, "$.*.telegramId")
	if err != nil {
		return nil, downstream(err)
	}

	seen := map[int64]bool{}
	ids := make([]int64, 0, len(nodes))
	for _, node := range nodes {
		var id int64
		switch {
		case node.IsNumeric():
			n, err := node.GetNumeric()
			if err != nil {
				continue
			}
			id = int64(n)
		case node.IsString():
			str, err := node.GetString()
			if err != nil {
				continue
			}
			if id, err = strconv.ParseInt(str, 10, 64); err != nil {
				continue
			}
		default:
			continue
		}
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// EnsureHealthCheck writes the marker document StoreStatus looks for.
func (s *Service) EnsureHealthCheck(ctx context.Context) error {
	err := s.store.Set(ctx, healthCheckPath, map[string]interface{}{
		"status":    "ok",
		"updatedAt": app.FormatIso(s.now()),
	})
	if err != nil {
		return downstream(err)
	}
	return nil
}

// StoreStatus reports "connected" when the health marker can be read back.
func (s *Service) StoreStatus(ctx context.Context) string {
	raw, err := s.store.Get(ctx, healthCheckPath)
	if err != nil || raw == nil {
		return "error"
	}
	return "connected"
}
