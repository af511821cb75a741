package otp

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// fanOutWindow is the sliding window for the distinct-target heuristic.
const fanOutWindow = 10 * time.Minute

// Limits are the layered send thresholds. Zero values disable a layer.
type Limits struct {
	PerPhonePerHour int
	PerIPPerHour    int
	GlobalPerHour   int
	FanOutLimit     int // distinct phone numbers per IP per 10 minutes
}

type keyedLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateGuard enforces the layered limits on Send. Per-key token buckets with
// hourly refill, a global bucket, and a fan-out tracker of which phone
// numbers each IP has targeted recently.
type rateGuard struct {
	mu      sync.Mutex
	limits  Limits
	byPhone map[string]*keyedLimiter
	byIP    map[string]*keyedLimiter
	global  *rate.Limiter
	fanOut  map[string]map[string]time.Time // ip -> phone -> last targeted
	done    chan struct{}
}

func newRateGuard(limits Limits) *rateGuard {
	g := &rateGuard{
		limits:  limits,
		byPhone: make(map[string]*keyedLimiter),
		byIP:    make(map[string]*keyedLimiter),
		fanOut:  make(map[string]map[string]time.Time),
		done:    make(chan struct{}),
	}
	if limits.GlobalPerHour > 0 {
		g.global = hourlyLimiter(limits.GlobalPerHour)
	}
	go g.cleanupLoop()
	return g
}

// allow reports whether a send to phone from ip fits every layer. Layers are
// checked cheapest-first and none consume a token unless all pass, so a
// rejected request does not burn budget in another layer.
func (g *rateGuard) allow(phoneNumber, ip string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()
	phoneLim := g.keyed(g.byPhone, phoneNumber, g.limits.PerPhonePerHour, now)
	ipLim := g.keyed(g.byIP, ip, g.limits.PerIPPerHour, now)

	if phoneLim != nil && phoneLim.Tokens() < 1 {
		return false
	}
	if ipLim != nil && ipLim.Tokens() < 1 {
		return false
	}
	if g.global != nil && g.global.Tokens() < 1 {
		return false
	}
	if !g.fanOutOK(phoneNumber, ip, now) {
		return false
	}

	if phoneLim != nil {
		phoneLim.Allow()
	}
	if ipLim != nil {
		ipLim.Allow()
	}
	if g.global != nil {
		g.global.Allow()
	}
	g.recordTarget(phoneNumber, ip, now)
	return true
}

func (g *rateGuard) keyed(m map[string]*keyedLimiter, key string, perHour int, now time.Time) *rate.Limiter {
	if perHour <= 0 || key == "" {
		return nil
	}
	if v, ok := m[key]; ok {
		v.lastSeen = now
		return v.limiter
	}
	l := hourlyLimiter(perHour)
	m[key] = &keyedLimiter{limiter: l, lastSeen: now}
	return l
}

func (g *rateGuard) fanOutOK(phoneNumber, ip string, now time.Time) bool {
	if g.limits.FanOutLimit <= 0 || ip == "" {
		return true
	}
	targets := g.fanOut[ip]
	distinct := 0
	for p, at := range targets {
		if now.Sub(at) > fanOutWindow {
			delete(targets, p)
			continue
		}
		if p != phoneNumber {
			distinct++
		}
	}
	return distinct < g.limits.FanOutLimit
}

func (g *rateGuard) recordTarget(phoneNumber, ip string, now time.Time) {
	if g.limits.FanOutLimit <= 0 || ip == "" {
		return
	}
	if g.fanOut[ip] == nil {
		g.fanOut[ip] = make(map[string]time.Time)
	}
	g.fanOut[ip][phoneNumber] = now
}

// cleanupLoop drops limiters and fan-out entries idle past their window.
func (g *rateGuard) cleanupLoop() {
	t := time.NewTicker(5 * time.Minute)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			g.mu.Lock()
			now := time.Now()
			for k, v := range g.byPhone {
				if now.Sub(v.lastSeen) > 2*time.Hour {
					delete(g.byPhone, k)
				}
			}
			for k, v := range g.byIP {
				if now.Sub(v.lastSeen) > 2*time.Hour {
					delete(g.byIP, k)
				}
			}
			for ip, targets := range g.fanOut {
				for p, at := range targets {
					if now.Sub(at) > fanOutWindow {
						delete(targets, p)
					}
				}
				if len(targets) == 0 {
					delete(g.fanOut, ip)
				}
			}
			g.mu.Unlock()
		case <-g.done:
			return
		}
	}
}

func (g *rateGuard) close() {
	close(g.done)
}

func hourlyLimiter(perHour int) *rate.Limiter {
	return rate.NewLimiter(rate.Every(time.Hour/time.Duration(perHour)), perHour)
}
