package lightning

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"
)

const (
	EnvLndHost          = "LND_REST_HOST"
	EnvLndCertPath      = "LND_CERT_PATH"
	EnvLndMacaroonPath  = "LND_MACAROON_PATH"
	lndInvoiceExpiryMin = 10
	lndFeePercent       = 1
)

// LndClient talks to LND's REST gateway directly over net/http, carrying
// the admin/invoice macaroon as a request header rather than going
// through LND's gRPC surface.
type LndClient struct {
	host     string
	client   *http.Client
	macaroon string // hex encoded
}

func NewLndClient() (*LndClient, error) {
	host := os.Getenv(EnvLndHost)
	if host == "" {
		return nil, errors.New(EnvLndHost + " cannot be empty")
	}
	certPath := os.Getenv(EnvLndCertPath)
	if certPath == "" {
		return nil, errors.New(EnvLndCertPath + " cannot be empty")
	}
	macaroonPath := os.Getenv(EnvLndMacaroonPath)
	if macaroonPath == "" {
		return nil, errors.New(EnvLndMacaroonPath + " cannot be empty")
	}

	macaroonBytes, err := os.ReadFile(macaroonPath)
	if err != nil {
		return nil, fmt.Errorf("error reading macaroon: %w", err)
	}

	client, err := lndHTTPClient(certPath)
	if err != nil {
		return nil, fmt.Errorf("error creating lnd client: %w", err)
	}

	return &LndClient{host: host, client: client, macaroon: hex.EncodeToString(macaroonBytes)}, nil
}

func lndHTTPClient(tlsCertPath string) (*http.Client, error) {
	cert, err := os.ReadFile(tlsCertPath)
	if err != nil {
		return nil, fmt.Errorf("error reading cert: %w", err)
	}
	certPool := x509.NewCertPool()
	certPool.AppendCertsFromPEM(cert)

	return &http.Client{
		Transport: &http.Transport{TLSClientConfig: &tls.Config{RootCAs: certPool}},
	}, nil
}

func (lnd *LndClient) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reqBody *bytes.Buffer
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewBuffer(jsonBody)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, lnd.host+path, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Add("Grpc-Metadata-macaroon", lnd.macaroon)

	return lnd.client.Do(req)
}

type addInvoiceResponse struct {
	Hash           string `json:"r_hash"`
	PaymentRequest string `json:"payment_request"`
}

func (lnd *LndClient) CreateInvoice(ctx context.Context, amount uint64) (Invoice, error) {
	resp, err := lnd.do(ctx, http.MethodPost, "/v1/invoices", map[string]any{
		"value": amount, "expiry": lndInvoiceExpiryMin * 60,
	})
	if err != nil {
		return Invoice{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Invoice{}, fmt.Errorf("unable to get invoice from lnd")
	}

	var res addInvoiceResponse
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return Invoice{}, fmt.Errorf("error parsing response from lnd: %w", err)
	}

	hashBytes, err := base64.StdEncoding.DecodeString(res.Hash)
	if err != nil {
		return Invoice{}, fmt.Errorf("error decoding hash from lnd: %w", err)
	}

	return Invoice{
		PaymentRequest: res.PaymentRequest,
		PaymentHash:    hex.EncodeToString(hashBytes),
		Amount:         amount,
		Expiry:         uint64(time.Now().Add(lndInvoiceExpiryMin * time.Minute).Unix()),
	}, nil
}

func (lnd *LndClient) IsInvoicePaid(ctx context.Context, paymentHash string) (bool, error) {
	hashBytes, err := hex.DecodeString(paymentHash)
	if err != nil {
		return false, fmt.Errorf("invalid hash provided")
	}

	path := "/v2/invoices/lookup?payment_hash=" + base64.URLEncoding.EncodeToString(hashBytes)
	resp, err := lnd.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("error getting invoice status")
	}

	var res map[string]any
	json.NewDecoder(resp.Body).Decode(&res)
	return res["state"] == "SETTLED", nil
}

func (lnd *LndClient) FeeReserve(amountMsat uint64) uint64 {
	return amountMsat * lndFeePercent / 100 / 1000
}

type sendPaymentResponse struct {
	PaymentError    string `json:"payment_error"`
	PaymentPreimage string `json:"payment_preimage"`
	PaymentRoute    struct {
		TotalFeesMsat string `json:"total_fees_msat"`
	} `json:"payment_route"`
}

func (lnd *LndClient) SendPayment(ctx context.Context, request string, maxFeeMsat uint64) (Payment, error) {
	resp, err := lnd.do(ctx, http.MethodPost, "/v1/channels/transactions", map[string]any{
		"payment_request": request,
		"fee_limit_msat":  strconv.FormatUint(maxFeeMsat, 10),
	})
	if err != nil {
		return Payment{}, fmt.Errorf("error making payment: %w", err)
	}
	defer resp.Body.Close()

	var res sendPaymentResponse
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return Payment{}, fmt.Errorf("error parsing response from lnd: %w", err)
	}

	if len(res.PaymentError) > 0 {
		return Payment{Status: Failed}, fmt.Errorf("unable to make payment: %v", res.PaymentError)
	}

	feeMsat, _ := strconv.ParseUint(res.PaymentRoute.TotalFeesMsat, 10, 64)
	return Payment{Preimage: res.PaymentPreimage, Status: Succeeded, FeeMsat: feeMsat}, nil
}

func (lnd *LndClient) OutgoingPaymentStatus(ctx context.Context, paymentHash string) (Payment, error) {
	resp, err := lnd.do(ctx, http.MethodGet, "/v1/payments?include_incomplete=true", nil)
	if err != nil {
		return Payment{}, err
	}
	defer resp.Body.Close()

	var res struct {
		Payments []struct {
			PaymentHash     string `json:"payment_hash"`
			PaymentPreimage string `json:"payment_preimage"`
			Status          string `json:"status"`
			FeeMsat         string `json:"fee_msat"`
		} `json:"payments"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return Payment{}, err
	}

	for _, p := range res.Payments {
		if p.PaymentHash == paymentHash {
			status := Pending
			switch p.Status {
			case "SUCCEEDED":
				status = Succeeded
			case "FAILED":
				status = Failed
			}
			feeMsat, _ := strconv.ParseUint(p.FeeMsat, 10, 64)
			return Payment{Preimage: p.PaymentPreimage, Status: status, FeeMsat: feeMsat}, nil
		}
	}

	return Payment{}, fmt.Errorf("payment not found")
}
