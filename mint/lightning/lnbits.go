package lightning

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
)

const (
	EnvLnbitsHost   = "LNBITS_HOST"
	EnvLnbitsApiKey = "LNBITS_API_KEY"
)

// LnbitsClient talks to an LNbits instance's REST API. There is no
// maintained Go client for LNbits, so this wraps net/http directly in
// the same request-response shape as the LND REST backend.
type LnbitsClient struct {
	host   string
	apiKey string
	client *http.Client
}

func NewLnbitsClient() (*LnbitsClient, error) {
	host := os.Getenv(EnvLnbitsHost)
	if host == "" {
		return nil, errors.New(EnvLnbitsHost + " cannot be empty")
	}
	apiKey := os.Getenv(EnvLnbitsApiKey)
	if apiKey == "" {
		return nil, errors.New(EnvLnbitsApiKey + " cannot be empty")
	}
	return &LnbitsClient{host: host, apiKey: apiKey, client: &http.Client{}}, nil
}

func (lb *LnbitsClient) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var buf *bytes.Buffer
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		buf = bytes.NewBuffer(jsonBody)
	} else {
		buf = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, lb.host+path, buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Api-Key", lb.apiKey)
	req.Header.Set("Content-Type", "application/json")
	return lb.client.Do(req)
}

func (lb *LnbitsClient) CreateInvoice(ctx context.Context, amount uint64) (Invoice, error) {
	resp, err := lb.do(ctx, http.MethodPost, "/api/v1/payments", map[string]any{
		"out": false, "amount": amount, "memo": "",
	})
	if err != nil {
		return Invoice{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return Invoice{}, fmt.Errorf("unable to get invoice from lnbits")
	}

	var res struct {
		PaymentHash    string `json:"payment_hash"`
		PaymentRequest string `json:"payment_request"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return Invoice{}, err
	}

	return Invoice{PaymentRequest: res.PaymentRequest, PaymentHash: res.PaymentHash, Amount: amount}, nil
}

func (lb *LnbitsClient) IsInvoicePaid(ctx context.Context, paymentHash string) (bool, error) {
	resp, err := lb.do(ctx, http.MethodGet, "/api/v1/payments/"+paymentHash, nil)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	var res struct {
		Paid bool `json:"paid"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return false, err
	}
	return res.Paid, nil
}

func (lb *LnbitsClient) SendPayment(ctx context.Context, request string, maxFeeMsat uint64) (Payment, error) {
	resp, err := lb.do(ctx, http.MethodPost, "/api/v1/payments", map[string]any{
		"out": true, "bolt11": request,
	})
	if err != nil {
		return Payment{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return Payment{Status: Failed}, fmt.Errorf("unable to make payment via lnbits")
	}

	var res struct {
		PaymentHash string `json:"payment_hash"`
	}
	json.NewDecoder(resp.Body).Decode(&res)
	return lb.OutgoingPaymentStatus(ctx, res.PaymentHash)
}

func (lb *LnbitsClient) OutgoingPaymentStatus(ctx context.Context, paymentHash string) (Payment, error) {
	resp, err := lb.do(ctx, http.MethodGet, "/api/v1/payments/"+paymentHash, nil)
	if err != nil {
		return Payment{}, err
	}
	defer resp.Body.Close()

	var res struct {
		Paid    bool `json:"paid"`
		Details struct {
			Preimage string `json:"preimage"`
			Fee      int64  `json:"fee"`
		} `json:"details"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return Payment{}, err
	}

	status := Pending
	if res.Paid {
		status = Succeeded
	}
	feeMsat := res.Details.Fee
	if feeMsat < 0 {
		feeMsat = -feeMsat
	}
	return Payment{Preimage: res.Details.Preimage, Status: status, FeeMsat: uint64(feeMsat)}, nil
}

func (lb *LnbitsClient) FeeReserve(amountMsat uint64) uint64 {
	return amountMsat / 100 / 1000
}
