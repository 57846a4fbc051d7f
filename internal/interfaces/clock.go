package interfaces

// Clock is the authoritative time source for payment timestamps.
type Clock interface {
	Now() uint64
}
