package state

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Context identifies who invoked an operation and how much native currency
// rode along with the call.
type Context struct {
	World  *World
	Caller common.Address
	Value  *uint256.Int
}

// NewContext builds a zero-value call context for caller.
func NewContext(w *World, caller common.Address) *Context {
	return &Context{World: w, Caller: caller, Value: uint256.NewInt(0)}
}

// WithValue attaches native currency to the call.
func (c *Context) WithValue(v *uint256.Int) *Context {
	return &Context{World: c.World, Caller: c.Caller, Value: new(uint256.Int).Set(v)}
}

// Now is shorthand for the world clock.
func (c *Context) Now() uint64 { return c.World.Now() }
