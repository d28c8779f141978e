package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/raihq/rai-backend/pkg/clientip"
)

// History endpoints get their own per-IP limiter: clients paging through
// conversation or community history can burst without tripping the global
// limiter, while sustained scraping still gets cut off.

const (
	historyRPS        = 0.5 // 30/min
	historyBurst      = 20
	historyCleanupMin = 5 * time.Minute
	historyLimiterTTL = 30 * time.Minute
)

var (
	historyEntries    = make(map[string]*limiterEntry)
	historyEntriesMu  sync.Mutex
	historyCleanupRun bool
)

func getHistoryLimiter(ip string) *rate.Limiter {
	historyEntriesMu.Lock()
	defer historyEntriesMu.Unlock()
	startHistoryCleanupOnce()

	e, ok := historyEntries[ip]
	if !ok {
		e = &limiterEntry{
			limiter: rate.NewLimiter(rate.Limit(historyRPS), historyBurst),
			lastUse: time.Now(),
		}
		historyEntries[ip] = e
	}
	e.lastUse = time.Now()
	return e.limiter
}

func startHistoryCleanupOnce() {
	if historyCleanupRun {
		return
	}
	historyCleanupRun = true
	go func() {
		ticker := time.NewTicker(historyCleanupMin)
		defer ticker.Stop()
		for range ticker.C {
			historyEntriesMu.Lock()
			now := time.Now()
			for ip, e := range historyEntries {
				if now.Sub(e.lastUse) > historyLimiterTTL {
					delete(historyEntries, ip)
				}
			}
			historyEntriesMu.Unlock()
		}
	}()
}

func isHistoryPath(r *http.Request) bool {
	if r.Method != http.MethodGet {
		return false
	}
	if strings.HasPrefix(r.URL.Path, "/api/ai/conversations") {
		return true
	}
	return strings.HasPrefix(r.URL.Path, "/api/community/") && strings.HasSuffix(r.URL.Path, "/messages")
}

// HistoryRateLimit applies rate limiting to history read endpoints only.
// 30/min with burst 20, returns 429 with headers when exceeded.
func HistoryRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !isHistoryPath(r) {
			next.ServeHTTP(w, r)
			return
		}

		ip := clientip.RealClientIP(r)
		if !getHistoryLimiter(ip).Allow() {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(historyBurst))
			w.Header().Set("X-RateLimit-Remaining", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"success":false,"message":"Too many history requests. Please slow down."}`))
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(historyBurst))
		next.ServeHTTP(w, r)
	})
}
