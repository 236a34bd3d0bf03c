// Package lightning abstracts the mint's Lightning payment backend
// behind a capability interface, so the mint core never sees a
// backend-specific error shape or wire format.
package lightning

import "context"

// PaymentStatus mirrors the lifecycle of an outgoing Lightning payment.
type PaymentStatus int

const (
	Pending PaymentStatus = iota
	Succeeded
	Failed
)

func (s PaymentStatus) String() string {
	switch s {
	case Succeeded:
		return "SUCCEEDED"
	case Failed:
		return "FAILED"
	default:
		return "PENDING"
	}
}

// Invoice is a bolt11 invoice as reported by a backend.
type Invoice struct {
	PaymentRequest string
	PaymentHash    string
	Preimage       string
	Settled        bool
	Amount         uint64
	Expiry         uint64
}

// Payment is the result of an outgoing payment attempt.
type Payment struct {
	Preimage string
	Status   PaymentStatus
	FeeMsat  uint64
}

// Client is the capability set the mint core needs from a Lightning
// backend: create/poll incoming invoices, pay outgoing ones, and quote
// a fee reserve for melt requests. Concrete backends (Lnd, Cln, Lnbits,
// Strike, Alby, or Fake) all implement this same interface so the mint
// core stays backend-agnostic.
type Client interface {
	CreateInvoice(ctx context.Context, amount uint64) (Invoice, error)
	IsInvoicePaid(ctx context.Context, paymentHash string) (bool, error)
	SendPayment(ctx context.Context, paymentRequest string, maxFeeMsat uint64) (Payment, error)
	OutgoingPaymentStatus(ctx context.Context, paymentHash string) (Payment, error)
	FeeReserve(amountMsat uint64) uint64
}
