package lightning

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"os"
	"time"
)

const (
	EnvClnRestURL = "CLN_REST_URL"
	EnvClnRune    = "CLN_RUNE"
	clnInvoiceExpirySecs = 600
)

// ClnConfig names a core-lightning node's clnrest endpoint and the rune
// authorizing this mint's requests against it.
type ClnConfig struct {
	RestURL string
	Rune    string
}

// ClnClient talks to core-lightning's clnrest REST plugin.
type ClnClient struct {
	config ClnConfig
	client *http.Client
}

func NewClnClient() (*ClnClient, error) {
	restURL := os.Getenv(EnvClnRestURL)
	if restURL == "" {
		return nil, errors.New(EnvClnRestURL + " cannot be empty")
	}
	rune := os.Getenv(EnvClnRune)
	if rune == "" {
		return nil, errors.New(EnvClnRune + " cannot be empty")
	}

	return &ClnClient{
		config: ClnConfig{RestURL: restURL, Rune: rune},
		client: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (cln *ClnClient) post(ctx context.Context, path string, body any) (*http.Response, error) {
	var jsonData []byte
	if body != nil {
		var err error
		jsonData, err = json.Marshal(body)
		if err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cln.config.RestURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Rune", cln.config.Rune)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	return cln.client.Do(req)
}

func (cln *ClnClient) CreateInvoice(ctx context.Context, amount uint64) (Invoice, error) {
	r := rand.New(rand.NewPCG(uint64(time.Now().UnixMicro()), uint64(time.Now().UnixMilli())))

	resp, err := cln.post(ctx, "/v1/invoice", map[string]any{
		"amount_msat": amount * 1000,
		"label":       fmt.Sprintf("%d-%d", time.Now().Unix(), r.Int()),
		"description": "ecash mint invoice",
		"expiry":      clnInvoiceExpirySecs,
	})
	if err != nil {
		return Invoice{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return Invoice{}, fmt.Errorf("unable to create invoice from CLN")
	}

	var res struct {
		PaymentHash string `json:"payment_hash"`
		Bolt11      string `json:"bolt11"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return Invoice{}, err
	}

	return Invoice{PaymentRequest: res.Bolt11, PaymentHash: res.PaymentHash, Amount: amount}, nil
}

func (cln *ClnClient) IsInvoicePaid(ctx context.Context, paymentHash string) (bool, error) {
	resp, err := cln.post(ctx, "/v1/listinvoices", map[string]any{"payment_hash": paymentHash})
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	var res struct {
		Invoices []struct {
			Status string `json:"status"`
		} `json:"invoices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return false, err
	}
	if len(res.Invoices) == 0 {
		return false, fmt.Errorf("invoice not found")
	}
	return res.Invoices[0].Status == "paid", nil
}

func (cln *ClnClient) SendPayment(ctx context.Context, request string, maxFeeMsat uint64) (Payment, error) {
	resp, err := cln.post(ctx, "/v1/pay", map[string]any{
		"bolt11":  request,
		"maxfee":  maxFeeMsat,
	})
	if err != nil {
		return Payment{}, err
	}
	defer resp.Body.Close()

	var res struct {
		Status          string `json:"status"`
		PaymentPreimage string `json:"payment_preimage"`
		AmountMsat      uint64 `json:"amount_msat"`
		AmountSentMsat  uint64 `json:"amount_sent_msat"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return Payment{}, err
	}

	status := Pending
	switch res.Status {
	case "complete":
		status = Succeeded
	case "failed":
		status = Failed
	}
	if status == Failed {
		return Payment{Status: Failed}, fmt.Errorf("CLN payment failed")
	}

	var feeMsat uint64
	if res.AmountSentMsat > res.AmountMsat {
		feeMsat = res.AmountSentMsat - res.AmountMsat
	}
	return Payment{Preimage: res.PaymentPreimage, Status: status, FeeMsat: feeMsat}, nil
}

func (cln *ClnClient) OutgoingPaymentStatus(ctx context.Context, paymentHash string) (Payment, error) {
	resp, err := cln.post(ctx, "/v1/listpays", map[string]any{"payment_hash": paymentHash})
	if err != nil {
		return Payment{}, err
	}
	defer resp.Body.Close()

	var res struct {
		Pays []struct {
			Status         string `json:"status"`
			Preimage       string `json:"preimage"`
			AmountMsat     uint64 `json:"amount_msat"`
			AmountSentMsat uint64 `json:"amount_sent_msat"`
		} `json:"pays"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return Payment{}, err
	}
	if len(res.Pays) == 0 {
		return Payment{}, fmt.Errorf("payment not found")
	}

	status := Pending
	switch res.Pays[0].Status {
	case "complete":
		status = Succeeded
	case "failed":
		status = Failed
	}
	var feeMsat uint64
	if res.Pays[0].AmountSentMsat > res.Pays[0].AmountMsat {
		feeMsat = res.Pays[0].AmountSentMsat - res.Pays[0].AmountMsat
	}
	return Payment{Preimage: res.Pays[0].Preimage, Status: status, FeeMsat: feeMsat}, nil
}

func (cln *ClnClient) FeeReserve(amountMsat uint64) uint64 {
	return amountMsat / 100 / 1000
}
