package lightning

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
)

const (
	EnvStrikeApiKey = "STRIKE_API_KEY"
	strikeBaseURL   = "https://api.strike.me/v1"
)

// StrikeClient talks to the Strike REST API. Strike has no official Go
// SDK, so this is a direct net/http client in the same shape as the
// other backends in this package.
type StrikeClient struct {
	apiKey string
	client *http.Client
}

func NewStrikeClient() (*StrikeClient, error) {
	apiKey := os.Getenv(EnvStrikeApiKey)
	if apiKey == "" {
		return nil, errors.New(EnvStrikeApiKey + " cannot be empty")
	}
	return &StrikeClient{apiKey: apiKey, client: &http.Client{}}, nil
}

func (s *StrikeClient) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
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

	req, err := http.NewRequestWithContext(ctx, method, strikeBaseURL+path, buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")
	return s.client.Do(req)
}

func (s *StrikeClient) CreateInvoice(ctx context.Context, amount uint64) (Invoice, error) {
	resp, err := s.do(ctx, http.MethodPost, "/invoices", map[string]any{
		"amount":      map[string]any{"amount": amount, "currency": "BTC"},
		"description": "",
	})
	if err != nil {
		return Invoice{}, err
	}
	defer resp.Body.Close()

	var created struct {
		InvoiceId string `json:"invoiceId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return Invoice{}, err
	}

	quoteResp, err := s.do(ctx, http.MethodPost, "/invoices/"+created.InvoiceId+"/quote", nil)
	if err != nil {
		return Invoice{}, err
	}
	defer quoteResp.Body.Close()

	var quote struct {
		LnInvoice string `json:"lnInvoice"`
	}
	if err := json.NewDecoder(quoteResp.Body).Decode(&quote); err != nil {
		return Invoice{}, err
	}

	return Invoice{PaymentRequest: quote.LnInvoice, PaymentHash: created.InvoiceId, Amount: amount}, nil
}

func (s *StrikeClient) IsInvoicePaid(ctx context.Context, paymentHash string) (bool, error) {
	resp, err := s.do(ctx, http.MethodGet, "/invoices/"+paymentHash, nil)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	var res struct {
		State string `json:"state"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return false, err
	}
	return res.State == "PAID", nil
}

func (s *StrikeClient) SendPayment(ctx context.Context, request string, maxFeeMsat uint64) (Payment, error) {
	resp, err := s.do(ctx, http.MethodPost, "/payment-quotes/lightning", map[string]any{"lnInvoice": request})
	if err != nil {
		return Payment{}, err
	}
	defer resp.Body.Close()

	var quote struct {
		PaymentQuoteId     string `json:"paymentQuoteId"`
		LightningNetworkFee struct {
			Amount string `json:"amount"`
		} `json:"lightningNetworkFee"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&quote); err != nil {
		return Payment{}, err
	}

	execResp, err := s.do(ctx, http.MethodPatch, "/payment-quotes/"+quote.PaymentQuoteId+"/execute", nil)
	if err != nil {
		return Payment{}, err
	}
	defer execResp.Body.Close()

	var exec struct {
		State    string `json:"state"`
		Preimage string `json:"lightningPaymentPreimage"`
	}
	if err := json.NewDecoder(execResp.Body).Decode(&exec); err != nil {
		return Payment{}, err
	}

	status := Failed
	if exec.State == "COMPLETED" {
		status = Succeeded
	}
	if status == Failed {
		return Payment{Status: Failed}, fmt.Errorf("strike payment failed: state %s", exec.State)
	}

	feeBTC, _ := strconv.ParseFloat(quote.LightningNetworkFee.Amount, 64)
	feeMsat := uint64(feeBTC * 1e11)
	return Payment{Preimage: exec.Preimage, Status: status, FeeMsat: feeMsat}, nil
}

func (s *StrikeClient) OutgoingPaymentStatus(ctx context.Context, paymentHash string) (Payment, error) {
	resp, err := s.do(ctx, http.MethodGet, "/payment-quotes/"+paymentHash, nil)
	if err != nil {
		return Payment{}, err
	}
	defer resp.Body.Close()

	var res struct {
		State    string `json:"state"`
		Preimage string `json:"lightningPaymentPreimage"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return Payment{}, err
	}

	status := Pending
	switch res.State {
	case "COMPLETED":
		status = Succeeded
	case "FAILED":
		status = Failed
	}
	return Payment{Preimage: res.Preimage, Status: status}, nil
}

func (s *StrikeClient) FeeReserve(amountMsat uint64) uint64 {
	return 0
}
