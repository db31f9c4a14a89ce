package circuit

import (
	"time"

	gb "github.com/sony/gobreaker"
)

// NewReconnectBreaker wraps sony/gobreaker around a streaming source's
// reconnect attempts, the way infra/breakers wraps it around a single named
// operation: a source that keeps failing to even complete the WebSocket
// handshake should back off harder than the fixed reconnect_interval alone
// would give it.
func NewReconnectBreaker(name string) *gb.CircuitBreaker {
	return gb.NewCircuitBreaker(gb.Settings{
		Name:     name,
		Interval: 60 * time.Second,
		Timeout:  60 * time.Second,
		ReadyToTrip: func(counts gb.Counts) bool {
			if counts.ConsecutiveFailures >= 3 {
				return true
			}
			total := counts.Requests
			if total < 20 {
				return false
			}
			return float64(counts.TotalFailures)/float64(total) > 0.05
		},
	})
}
