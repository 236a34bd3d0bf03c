package onchain

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"
)

const (
	EnvBitcoindRPCHost = "BITCOIND_RPC_HOST"
	EnvBitcoindRPCUser = "BITCOIND_RPC_USER"
	EnvBitcoindRPCPass = "BITCOIND_RPC_PASS"
)

// BitcoindBackend drives a bitcoind node's JSON-RPC wallet interface via
// btcsuite/btcd's rpcclient.
type BitcoindBackend struct {
	client *rpcclient.Client
	params *chaincfg.Params
}

func NewBitcoindBackend(params *chaincfg.Params) (*BitcoindBackend, error) {
	host := os.Getenv(EnvBitcoindRPCHost)
	if host == "" {
		return nil, errors.New(EnvBitcoindRPCHost + " cannot be empty")
	}
	user := os.Getenv(EnvBitcoindRPCUser)
	pass := os.Getenv(EnvBitcoindRPCPass)

	client, err := rpcclient.New(&rpcclient.ConnConfig{
		Host:         host,
		User:         user,
		Pass:         pass,
		HTTPPostMode: true,
		DisableTLS:   true,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("error connecting to bitcoind: %w", err)
	}

	return &BitcoindBackend{client: client, params: params}, nil
}

func (b *BitcoindBackend) NewAddress(ctx context.Context) (string, error) {
	addr, err := b.client.GetNewAddress("")
	if err != nil {
		return "", err
	}
	return addr.EncodeAddress(), nil
}

func (b *BitcoindBackend) SendCoins(ctx context.Context, address string, amount uint64, satPerVbyte float64) (string, error) {
	addr, err := btcutil.DecodeAddress(address, b.params)
	if err != nil {
		return "", fmt.Errorf("invalid address: %w", err)
	}

	txid, err := b.client.SendToAddress(addr, btcutil.Amount(amount))
	if err != nil {
		return "", err
	}
	return txid.String(), nil
}

func (b *BitcoindBackend) EstimateFee(ctx context.Context, address string, amount uint64) (uint64, float64, error) {
	estimate, err := b.client.EstimateSmartFee(6, nil)
	if err != nil {
		return 0, 0, err
	}
	if estimate.FeeRate == nil {
		return 0, 1, nil
	}

	// EstimateSmartFee reports BTC/kvB; convert to sat/vB.
	satPerVbyte := *estimate.FeeRate * 1e8 / 1000
	const assumedVsize = 150
	return uint64(satPerVbyte * assumedVsize), satPerVbyte, nil
}

// IsPaid reports whether a confirmed UTXO of at least amount has been
// observed at address. Once a txid has first been observed paying the
// address, callers should persist it and call IsPaidByTxid on
// subsequent polls, so a later unrelated payment to the same address
// cannot flip quote state.
func (b *BitcoindBackend) IsPaid(ctx context.Context, address string, amount uint64, minConfirmations uint) (bool, string, error) {
	unspent, err := b.client.ListUnspentMinMax(int(minConfirmations), 9999999)
	if err != nil {
		return false, "", err
	}

	for _, u := range unspent {
		if u.Address != address {
			continue
		}
		if btcutil.Amount(u.Amount*1e8) >= btcutil.Amount(amount) {
			return true, u.TxID, nil
		}
	}
	return false, "", nil
}

// IsPaidByTxid checks whether a specific previously observed txid has
// now reached minConfirmations, closing the race where a quote could be
// completed by any matching UTXO rather than the one first observed.
func (b *BitcoindBackend) IsPaidByTxid(ctx context.Context, txid string, minConfirmations uint) (bool, error) {
	hash, err := chainhash.NewHashFromStr(txid)
	if err != nil {
		return false, fmt.Errorf("invalid txid: %w", err)
	}

	tx, err := b.client.GetTransaction(hash)
	if err != nil {
		return false, err
	}
	return uint(tx.Confirmations) >= minConfirmations, nil
}
