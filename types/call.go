package types

// Address identifies an account on the host chain. The engine treats
// addresses as opaque strings; encoding and signature verification belong to
// the host layer.
type Address string

// IsZero reports whether the address is unset.
func (a Address) IsZero() bool { return a == "" }

func (a Address) String() string { return string(a) }

// Call carries the host-supplied context for a single engine call: who is
// calling and at which block height. Every mutating operation takes a Call
// instead of reading ambient state, so the engine stays deterministic and
// testable with synthetic contexts.
type Call struct {
	Caller Address `json:"caller"`
	Block  uint64  `json:"block"`
}

// NewCall builds a Call for the given caller at the given block height.
func NewCall(caller Address, block uint64) Call {
	return Call{Caller: caller, Block: block}
}
