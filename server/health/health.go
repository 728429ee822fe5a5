// Package health tracks a clamped integer health value per player.
package health

import (
	"github.com/automoto/galaxia-mp/shared/gamemath"
	"github.com/automoto/galaxia-mp/shared/netconfig"
	"github.com/automoto/galaxia-mp/shared/replica"
	"go.uber.org/zap"
)

// Health is single-writer: only the authoritative role mutates it. Observers
// mirror it through Apply and may only predict kills.
type Health struct {
	role    netconfig.Role
	max     int
	current *replica.Field[int]
	log     *zap.Logger
}

func New(role netconfig.Role, maxHealth int, log *zap.Logger) *Health {
	if log == nil {
		log = zap.NewNop()
	}
	return &Health{
		role:    role,
		max:     maxHealth,
		current: replica.NewField(maxHealth),
		log:     log,
	}
}

func (h *Health) Current() int { return h.current.Get() }

func (h *Health) Max() int { return h.max }

func (h *Health) IsDead() bool { return h.current.Get() == 0 }

// ApplyDamage subtracts amount and reports whether the entity is killed.
// Negative amounts count as zero. On an observer the value is left untouched
// and the result is a local prediction only.
func (h *Health) ApplyDamage(amount int, reason netconfig.DamageReason, instigator netconfig.Identity) bool {
	if amount < 0 {
		amount = 0
	}
	cur := h.current.Get()
	if h.role != netconfig.RoleAuthoritative {
		return cur-amount < 0
	}
	next := int(gamemath.Clamp(float64(cur-amount), 0, float64(h.max)))
	h.current.Set(next)
	if amount > 0 {
		h.log.Debug("damage applied",
			zap.Int("amount", amount),
			zap.Stringer("reason", reason),
			zap.Stringer("instigator", instigator),
			zap.Int("health", next))
	}
	return next == 0
}

// ApplyHeal adds amount, clamped to the maximum. Observers ignore it.
func (h *Health) ApplyHeal(amount int) {
	if h.role != netconfig.RoleAuthoritative || amount <= 0 {
		return
	}
	next := int(gamemath.Clamp(float64(h.current.Get()+amount), 0, float64(h.max)))
	h.current.Set(next)
}

// Reset restores full health. Observers ignore it.
func (h *Health) Reset() {
	if h.role != netconfig.RoleAuthoritative {
		return
	}
	h.current.Set(h.max)
}

func (h *Health) Snapshot() replica.Snapshot[int] { return h.current.Snapshot() }

// Apply mirrors an authoritative snapshot onto an observer copy.
func (h *Health) Apply(s replica.Snapshot[int]) bool {
	if h.role == netconfig.RoleAuthoritative {
		return false
	}
	return h.current.Apply(s)
}

// OnChange registers fn to run whenever the value changes.
func (h *Health) OnChange(fn func(old, new int)) {
	h.current.OnChange(fn)
}
