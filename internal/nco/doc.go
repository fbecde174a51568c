// Package nco models the code and carrier numerically-controlled oscillators
// of the tracking channel.
//
// Both oscillators are fixed-width phase accumulators. The carry out of the
// accumulator is the oscillator's output event; the accumulator itself simply
// wraps. Each oscillator is a value type whose Next method computes the next
// register contents and this cycle's outputs from the current registers, so a
// caller can evaluate every component before committing any of them.
package nco
