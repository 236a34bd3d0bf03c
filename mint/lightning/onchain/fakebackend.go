package onchain

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"sync"
)

type fakePayment struct {
	address string
	amount  uint64
	txid    string
}

// FakeBackend is an in-memory on-chain backend for tests and local
// development. Deposits are simulated via SendCoins, which records a
// payment to the address under a fake txid; IsPaid then reports the first
// matching payment as
// confirmed immediately, mirroring the behavior a regtest node with
// fast confirmations would show in a test harness.
type FakeBackend struct {
	mu       sync.Mutex
	payments []fakePayment
}

func NewFakeBackend() *FakeBackend {
	return &FakeBackend{}
}

func (fb *FakeBackend) NewAddress(ctx context.Context) (string, error) {
	var random [20]byte
	if _, err := rand.Read(random[:]); err != nil {
		return "", err
	}
	return "bcrt1q" + hex.EncodeToString(random[:]), nil
}

func (fb *FakeBackend) SendCoins(ctx context.Context, address string, amount uint64, satPerVbyte float64) (string, error) {
	var random [32]byte
	if _, err := rand.Read(random[:]); err != nil {
		return "", err
	}
	hash := sha256.Sum256(random[:])
	txid := hex.EncodeToString(hash[:])

	fb.mu.Lock()
	fb.payments = append(fb.payments, fakePayment{address: address, amount: amount, txid: txid})
	fb.mu.Unlock()

	return txid, nil
}

func (fb *FakeBackend) EstimateFee(ctx context.Context, address string, amount uint64) (uint64, float64, error) {
	return 153, 1, nil
}

func (fb *FakeBackend) IsPaid(ctx context.Context, address string, amount uint64, minConfirmations uint) (bool, string, error) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	for _, p := range fb.payments {
		if p.address == address && p.amount >= amount {
			return true, p.txid, nil
		}
	}
	return false, "", nil
}
