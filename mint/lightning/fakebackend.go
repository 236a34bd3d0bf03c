package lightning

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/lightningnetwork/lnd/lnwire"
	"github.com/lightningnetwork/lnd/zpay32"
	decodepay "github.com/nbd-wtf/ln-decodepay"
)

const (
	FakePreimage           = "00000000000000000000000000000000000000000000000000000000000000"
	FailPaymentDescription = "fail the payment"
)

type fakeInvoice struct {
	invoice  Invoice
	preimage string
	feeMsat  uint64
}

// FakeBackend is an in-memory Lightning backend for tests and local
// development: invoices settle immediately unless their description
// asks to fail, so scenarios in the integration test suite can force
// either outcome deterministically. ReserveFeeMsat and PaymentFeeMsat
// let a test simulate a backend that actually charges routing fees,
// exercising the melt-change path without a real node.
type FakeBackend struct {
	invoices []fakeInvoice

	ReserveFeeMsat uint64
	PaymentFeeMsat uint64
}

func NewFakeBackend() *FakeBackend {
	return &FakeBackend{}
}

func (fb *FakeBackend) CreateInvoice(ctx context.Context, amount uint64) (Invoice, error) {
	req, preimage, hash, err := createFakeInvoice(amount, false)
	if err != nil {
		return Invoice{}, err
	}

	inv := Invoice{PaymentRequest: req, PaymentHash: hash, Preimage: preimage, Settled: true, Amount: amount}
	fb.invoices = append(fb.invoices, fakeInvoice{invoice: inv, preimage: preimage})
	return inv, nil
}

func (fb *FakeBackend) IsInvoicePaid(ctx context.Context, paymentHash string) (bool, error) {
	idx := slices.IndexFunc(fb.invoices, func(i fakeInvoice) bool { return i.invoice.PaymentHash == paymentHash })
	if idx == -1 {
		return false, errors.New("invoice does not exist")
	}
	return fb.invoices[idx].invoice.Settled, nil
}

func (fb *FakeBackend) SendPayment(ctx context.Context, paymentRequest string, maxFeeMsat uint64) (Payment, error) {
	invoice, err := decodepay.Decodepay(paymentRequest)
	if err != nil {
		return Payment{}, fmt.Errorf("error decoding invoice: %v", err)
	}

	status := Succeeded
	feeMsat := uint64(0)
	if invoice.Description == FailPaymentDescription {
		status = Failed
	} else {
		feeMsat = fb.PaymentFeeMsat
	}

	fb.invoices = append(fb.invoices, fakeInvoice{
		invoice:  Invoice{PaymentHash: invoice.PaymentHash, Settled: status == Succeeded, Amount: uint64(invoice.MSatoshi) / 1000},
		preimage: FakePreimage,
		feeMsat:  feeMsat,
	})

	return Payment{Preimage: FakePreimage, Status: status, FeeMsat: feeMsat}, nil
}

func (fb *FakeBackend) OutgoingPaymentStatus(ctx context.Context, paymentHash string) (Payment, error) {
	idx := slices.IndexFunc(fb.invoices, func(i fakeInvoice) bool { return i.invoice.PaymentHash == paymentHash })
	if idx == -1 {
		return Payment{}, errors.New("payment does not exist")
	}
	status := Failed
	if fb.invoices[idx].invoice.Settled {
		status = Succeeded
	}
	return Payment{Preimage: fb.invoices[idx].preimage, Status: status, FeeMsat: fb.invoices[idx].feeMsat}, nil
}

func (fb *FakeBackend) FeeReserve(amountMsat uint64) uint64 {
	return fb.ReserveFeeMsat / 1000
}

func createFakeInvoice(amount uint64, failPayment bool) (string, string, string, error) {
	var random [32]byte
	if _, err := rand.Read(random[:]); err != nil {
		return "", "", "", err
	}
	preimage := hex.EncodeToString(random[:])
	paymentHash := sha256.Sum256(random[:])
	hash := hex.EncodeToString(paymentHash[:])

	description := "test"
	if failPayment {
		description = FailPaymentDescription
	}

	invoice, err := zpay32.NewInvoice(
		&chaincfg.SigNetParams,
		paymentHash,
		time.Now(),
		zpay32.Amount(lnwire.MilliSatoshi(amount*1000)),
		zpay32.Description(description),
	)
	if err != nil {
		return "", "", "", err
	}

	invoiceStr, err := invoice.Encode(zpay32.MessageSigner{
		SignCompact: func(msg []byte) ([]byte, error) {
			key, err := secp256k1.GeneratePrivateKey()
			if err != nil {
				return nil, err
			}
			return ecdsa.SignCompact(key, msg, true), nil
		},
	})
	if err != nil {
		return "", "", "", err
	}

	return invoiceStr, preimage, hash, nil
}
