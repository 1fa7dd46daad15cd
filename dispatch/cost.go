package dispatch

import (
	"fmt"
	"sync"
)

// CostHandler meters how much work a target may do. Consume takes amount
// from the handler if it can be paid now.
type CostHandler interface {
	Fuel() float64
	Consume(amount float64) bool
}

// FuelTank is the default CostHandler: a regenerating pool of fuel.
type FuelTank struct {
	mu   sync.Mutex
	fuel float64
	cfg  CostConfig
}

// NewFuelTank returns a tank filled to cfg.Initial.
func NewFuelTank(cfg CostConfig) *FuelTank {
	return &FuelTank{fuel: cfg.Initial, cfg: cfg}
}

func (t *FuelTank) Fuel() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fuel
}

func (t *FuelTank) Consume(amount float64) bool {
	if amount < 0 {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cfg.AllowNegative {
		if t.fuel <= 0 {
			return false
		}
	} else if t.fuel < amount {
		return false
	}
	t.fuel -= amount
	return true
}

// Regen adds one tick's worth of fuel, up to the limit.
func (t *FuelTank) Regen() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fuel += t.cfg.Regen
	if t.fuel > t.cfg.Limit {
		t.fuel = t.cfg.Limit
	}
}

// Affordable reports whether amount could ever be paid. A tank that does
// not regenerate can only pay from what it holds now.
func (t *FuelTank) Affordable(amount float64) bool {
	if t.cfg.Regen <= 0 {
		t.mu.Lock()
		defer t.mu.Unlock()
		if t.cfg.AllowNegative {
			return t.fuel > 0
		}
		return t.fuel >= amount
	}
	return t.cfg.AllowNegative || amount <= t.cfg.Limit
}

// AwaitCost pays amount from handler and then runs next. While the handler
// cannot pay, the attempt is retried on each following tick. A nil handler
// charges nothing.
func AwaitCost(handler CostHandler, amount float64, next Continuation) (Result, error) {
	if handler == nil {
		return next()
	}
	if a, ok := handler.(interface{ Affordable(float64) bool }); ok && !a.Affordable(amount) {
		return Result{}, fmt.Errorf("%w: cost %g exceeds capacity", ErrInsufficientFuel, amount)
	}
	if handler.Consume(amount) {
		return next()
	}
	return NextTick(func() (Result, error) {
		return AwaitCost(handler, amount, next)
	}), nil
}
