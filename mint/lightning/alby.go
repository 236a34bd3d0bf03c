package lightning

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
)

const (
	EnvAlbyAccessToken = "ALBY_ACCESS_TOKEN"
	albyBaseURL        = "https://api.getalby.com"
)

// AlbyClient talks to the Alby wallet REST API. Like Strike and LNbits,
// Alby has no maintained Go SDK, so it is a direct net/http client.
type AlbyClient struct {
	accessToken string
	client      *http.Client
}

func NewAlbyClient() (*AlbyClient, error) {
	token := os.Getenv(EnvAlbyAccessToken)
	if token == "" {
		return nil, errors.New(EnvAlbyAccessToken + " cannot be empty")
	}
	return &AlbyClient{accessToken: token, client: &http.Client{}}, nil
}

func (a *AlbyClient) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
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

	req, err := http.NewRequestWithContext(ctx, method, albyBaseURL+path, buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+a.accessToken)
	req.Header.Set("Content-Type", "application/json")
	return a.client.Do(req)
}

func (a *AlbyClient) CreateInvoice(ctx context.Context, amount uint64) (Invoice, error) {
	resp, err := a.do(ctx, http.MethodPost, "/invoices", map[string]any{"amount": amount})
	if err != nil {
		return Invoice{}, err
	}
	defer resp.Body.Close()

	var res struct {
		PaymentHash    string `json:"payment_hash"`
		PaymentRequest string `json:"payment_request"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return Invoice{}, err
	}
	return Invoice{PaymentRequest: res.PaymentRequest, PaymentHash: res.PaymentHash, Amount: amount}, nil
}

func (a *AlbyClient) IsInvoicePaid(ctx context.Context, paymentHash string) (bool, error) {
	resp, err := a.do(ctx, http.MethodGet, "/invoices/"+paymentHash, nil)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	var res struct {
		Settled bool `json:"settled"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return false, err
	}
	return res.Settled, nil
}

func (a *AlbyClient) SendPayment(ctx context.Context, request string, maxFeeMsat uint64) (Payment, error) {
	resp, err := a.do(ctx, http.MethodPost, "/payments/bolt11", map[string]any{"invoice": request})
	if err != nil {
		return Payment{}, err
	}
	defer resp.Body.Close()

	var res struct {
		Preimage string `json:"payment_preimage"`
		FeeMsat  uint64 `json:"fee"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return Payment{}, err
	}
	return Payment{Preimage: res.Preimage, Status: Succeeded, FeeMsat: res.FeeMsat}, nil
}

func (a *AlbyClient) OutgoingPaymentStatus(ctx context.Context, paymentHash string) (Payment, error) {
	resp, err := a.do(ctx, http.MethodGet, "/payments/"+paymentHash, nil)
	if err != nil {
		return Payment{}, err
	}
	defer resp.Body.Close()

	var res struct {
		Preimage string `json:"payment_preimage"`
		Settled  bool   `json:"settled"`
		FeeMsat  uint64 `json:"fee"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return Payment{}, err
	}
	status := Pending
	if res.Settled {
		status = Succeeded
	}
	return Payment{Preimage: res.Preimage, Status: status, FeeMsat: res.FeeMsat}, nil
}

func (a *AlbyClient) FeeReserve(amountMsat uint64) uint64 {
	return amountMsat / 100 / 1000
}
