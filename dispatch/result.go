package dispatch

import "fmt"

// Domain is the scheduling domain a deferred continuation runs on.
type Domain int

const (
	// DomainImmediate runs continuations as soon as possible, off the tick
	// loop.
	DomainImmediate Domain = iota
	// DomainTick runs continuations on the simulation's tick loop.
	DomainTick
)

func (d Domain) String() string {
	switch d {
	case DomainImmediate:
		return "immediate"
	case DomainTick:
		return "tick"
	default:
		return fmt.Sprintf("domain(%d)", int(d))
	}
}

// Continuation produces the next step of a deferred result.
type Continuation func() (Result, error)

type resultKind int

const (
	resultValues resultKind = iota
	resultFailure
	resultDeferred
)

// Result is what a method produces: ready values, a soft failure, or a
// continuation that must run on some domain before values exist. The zero
// Result carries no values.
type Result struct {
	kind    resultKind
	values  []Value
	message string
	next    Continuation
	domain  Domain
	delay   int
}

// Values is a ready result.
func Values(values ...Value) Result {
	return Result{kind: resultValues, values: values}
}

// Empty is a ready result with no values.
func Empty() Result { return Result{} }

// Failure is a soft failure: it reaches the script as nil plus message
// instead of an error.
func Failure(message string) Result {
	return Result{kind: resultFailure, message: message}
}

// Defer runs next on domain before producing values.
func Defer(domain Domain, next Continuation) Result {
	return Result{kind: resultDeferred, next: next, domain: domain}
}

// NextTick runs next on the following tick.
func NextTick(next Continuation) Result {
	return Defer(DomainTick, next)
}

// Delay runs next on the tick domain after ticks further ticks have passed.
func Delay(ticks int, next Continuation) Result {
	if ticks < 0 {
		ticks = 0
	}
	r := Defer(DomainTick, next)
	r.delay = ticks
	return r
}

func (r Result) IsDeferred() bool { return r.kind == resultDeferred }

func (r Result) IsFailure() bool { return r.kind == resultFailure }

// Message is the soft failure message.
func (r Result) Message() string { return r.message }

func (r Result) Domain() Domain { return r.domain }

// DelayTicks is the number of extra ticks to wait before running Next.
func (r Result) DelayTicks() int { return r.delay }

func (r Result) Next() Continuation { return r.next }

// Values returns the materialized values of a ready result. A soft failure
// materializes as nil followed by its message. Deferred results have none.
func (r Result) Values() []Value {
	switch r.kind {
	case resultFailure:
		return []Value{NewNil(), NewString(r.message)}
	case resultDeferred:
		return nil
	default:
		return r.values
	}
}

func (r Result) String() string {
	switch r.kind {
	case resultFailure:
		return fmt.Sprintf("failure(%q)", r.message)
	case resultDeferred:
		return fmt.Sprintf("deferred(%s, +%d)", r.domain, r.delay)
	default:
		return fmt.Sprintf("values(%d)", len(r.values))
	}
}
