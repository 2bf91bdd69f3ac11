package service

import "time"

// keepAlive fires once every time the local time of day enters a new
// interval, e.g. on each full hour for a one hour interval.
type keepAlive struct {
	interval time.Duration
	slot     time.Duration
}

func newKeepAlive(interval time.Duration, now time.Time) *keepAlive {
	k := &keepAlive{interval: interval}
	if interval > 0 {
		k.slot = sinceMidnight(now) / interval
	}
	return k
}

// due reports a boundary was crossed since the previous call. A zero interval
// disables it.
func (k *keepAlive) due(now time.Time) bool {
	if k.interval <= 0 {
		return false
	}
	slot := sinceMidnight(now) / k.interval
	if slot == k.slot {
		return false
	}
	k.slot = slot
	return true
}

func sinceMidnight(t time.Time) time.Duration {
	y, m, d := t.Date()
	return t.Sub(time.Date(y, m, d, 0, 0, 0, 0, t.Location()))
}
