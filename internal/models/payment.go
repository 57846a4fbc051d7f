package models

// NotFoundParty is the payer/payee placeholder carried by the NotFound sentinel.
const NotFoundParty = "Not Found"

// Payment represents a single recorded micropayment
type Payment struct {
	ID        uint64 `json:"id"`         // store-assigned, equals the creation rank (1-based)
	Payer     string `json:"payer"`      // identity of the paying party
	Payee     string `json:"payee"`      // identity of the receiving party
	Amount    uint64 `json:"amount"`     // opaque unit
	CreatedAt uint64 `json:"created_at"` // host clock reading at creation
}

// NotFound is returned by lookups for ids that were never assigned.
// It is a "not found" marker rather than a real record: callers detect it with IsNotFound.
var NotFound = Payment{
	ID:    0,
	Payer: NotFoundParty,
	Payee: NotFoundParty,
}

// IsNotFound reports whether p is the NotFound sentinel. Id 0 is never assigned to a real payment.
func (p Payment) IsNotFound() bool {
	return p.ID == 0
}
