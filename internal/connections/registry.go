// Package connections tracks dashboard clients that announced themselves
// through /api/frontend/connect.
package connections

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"coinbazar/internal/app"

	"github.com/dchest/uniuri"
)

const (
	DefaultMax = 1000
	DefaultTTL = 5 * time.Minute

	recentLimit = 10
)

var idChars = []byte("abcdefghijklmnopqrstuvwxyz0123456789")

type Connection struct {
	ID              string                 `json:"id"`
	Timestamp       string                 `json:"timestamp"`
	UserAgent       string                 `json:"userAgent"`
	FrontendVersion string                 `json:"frontendVersion"`
	UserData        map[string]interface{} `json:"userData"`
	IP              string                 `json:"ip"`
	Origin          string                 `json:"origin"`
	LastSeen        string                 `json:"lastSeen"`

	lastSeen time.Time
}

// Info is what a client reports when it connects.
type Info struct {
	UserAgent       string
	FrontendVersion string
	UserData        map[string]interface{}
	IP              string
	Origin          string
}

type Recent struct {
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	User      string `json:"user"`
	Origin    string `json:"origin"`
	LastSeen  string `json:"last_seen"`
}

type Stats struct {
	Total  int      `json:"total_connections"`
	Active int      `json:"active_connections"`
	Unique int      `json:"unique_users"`
	Max    int      `json:"max_stored"`
	TTL    string   `json:"cleanup_interval"`
	Recent []Recent `json:"recent_connections"`
}

// Registry holds at most max connections and forgets any not seen for ttl.
// Expired entries are pruned on every call.
type Registry struct {
	mu    sync.Mutex
	max   int
	ttl   time.Duration
	conns map[string]*Connection
	order []string
	now   func() time.Time
}

func NewRegistry(max int, ttl time.Duration) *Registry {
	if max <= 0 {
		max = DefaultMax
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Registry{
		max:   max,
		ttl:   ttl,
		conns: map[string]*Connection{},
		now:   time.Now,
	}
}

func (r *Registry) prune(now time.Time) {
	cutoff := now.Add(-r.ttl)
	kept := r.order[:0]
	for _, id := range r.order {
		c := r.conns[id]
		if c.lastSeen.Before(cutoff) {
			delete(r.conns, id)
			continue
		}
		kept = append(kept, id)
	}
	r.order = kept
	for len(r.order) > r.max {
		delete(r.conns, r.order[0])
		r.order = r.order[1:]
	}
}

// Prune drops expired connections; it is also run by a background ticker.
func (r *Registry) Prune() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prune(r.now())
}

// Register records a new connection and returns it.
func (r *Registry) Register(info Info) Connection {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.prune(now)

	stamp := app.FormatIso(now)
	c := &Connection{
		ID:              fmt.Sprintf("conn_%d_%s", now.UnixMilli(), uniuri.NewLenChars(9, idChars)),
		Timestamp:       stamp,
		UserAgent:       orUnknown(info.UserAgent),
		FrontendVersion: orUnknown(info.FrontendVersion),
		UserData:        info.UserData,
		IP:              orUnknown(info.IP),
		Origin:          orUnknown(info.Origin),
		LastSeen:        stamp,
		lastSeen:        now,
	}
	r.conns[c.ID] = c
	r.order = append(r.order, c.ID)
	r.prune(now)
	return *c
}

// Touch refreshes lastSeen of id. It reports false for unknown or expired ids.
func (r *Registry) Touch(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.prune(now)
	c, ok := r.conns[id]
	if !ok {
		return false
	}
	c.lastSeen = now
	c.LastSeen = app.FormatIso(now)
	return true
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prune(r.now())
	return len(r.order)
}

func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.prune(now)

	stats := Stats{
		Total:  len(r.order),
		Max:    r.max,
		TTL:    r.ttl.String(),
		Recent: []Recent{},
	}
	users := map[string]bool{}
	active := now.Add(-r.ttl)
	for _, id := range r.order {
		c := r.conns[id]
		if c.lastSeen.After(active) {
			stats.Active++
		}
		if uid := telegramID(c.UserData); uid != "" {
			users[uid] = true
		}
	}
	stats.Unique = len(users)

	for i := len(r.order) - 1; i >= 0 && len(stats.Recent) < recentLimit; i-- {
		c := r.conns[r.order[i]]
		stats.Recent = append(stats.Recent, Recent{
			ID:        c.ID,
			Timestamp: c.Timestamp,
			User:      describe(c.UserData),
			Origin:    c.Origin,
			LastSeen:  c.LastSeen,
		})
	}
	return stats
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

func telegramID(data map[string]interface{}) string {
	switch id := data["telegramId"].(type) {
	case string:
		return id
	case float64:
		return strconv.FormatInt(int64(id), 10)
	case int64:
		return strconv.FormatInt(id, 10)
	case int:
		return strconv.Itoa(id)
	}
	return ""
}

func describe(data map[string]interface{}) string {
	if data == nil {
		return "Anonymous"
	}
	username, _ := data["username"].(string)
	if username == "" {
		username = "unknown"
	}
	return fmt.Sprintf("@%s (%s)", username, telegramID(data))
}
