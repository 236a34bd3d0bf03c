package mint

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/cashunuts/mint/cashu"
	"github.com/cashunuts/mint/cashu/nuts/nut04"
	"github.com/cashunuts/mint/cashu/nuts/nut05"
	"github.com/cashunuts/mint/cashu/nuts/nut07"
	"github.com/cashunuts/mint/cashu/nuts/nutonchain"
	"github.com/cashunuts/mint/crypto"
	"github.com/cashunuts/mint/mint/storage"
)

// Server binds a Mint to the HTTP surface described in §6.2: the bolt11
// mint/melt/swap endpoints, keyset discovery, info, and their on-chain
// analogues when an on-chain backend is configured.
type Server struct {
	httpServer *http.Server
	mint       *Mint
}

func SetupMintServer(m *Mint, addr string) *Server {
	s := &Server{mint: m}

	r := mux.NewRouter()
	r.HandleFunc("/v1/keys", s.getKeys).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/v1/keys/{id}", s.getKeysById).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/v1/keysets", s.getKeysets).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/v1/info", s.getInfo).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/v1/swap", s.swap).Methods(http.MethodPost, http.MethodOptions)

	r.HandleFunc("/v1/mint/quote/bolt11", s.mintQuoteBolt11).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/v1/mint/quote/bolt11/{quote}", s.mintQuoteBolt11State).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/v1/mint/bolt11", s.mintBolt11).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/v1/melt/quote/bolt11", s.meltQuoteBolt11).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/v1/melt/bolt11", s.meltBolt11).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/v1/checkstate", s.checkState).Methods(http.MethodPost, http.MethodOptions)

	r.HandleFunc("/v1/mint/quote/btconchain", s.mintQuoteOnchain).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/v1/mint/quote/btconchain/{quote}", s.mintQuoteOnchainState).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/v1/mint/btconchain", s.mintOnchain).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/v1/melt/quote/btconchain", s.meltQuoteOnchain).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/v1/melt/btconchain", s.meltOnchain).Methods(http.MethodPost, http.MethodOptions)

	r.Use(jsonHeaders)

	s.httpServer = &http.Server{Addr: addr, Handler: r}
	return s
}

func (s *Server) Start() error {
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func jsonHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		rw.Header().Set("Content-Type", "application/json")
		rw.Header().Set("Access-Control-Allow-Origin", "*")
		rw.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		rw.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, origin")
		if req.Method == http.MethodOptions {
			return
		}
		next.ServeHTTP(rw, req)
	})
}

func writeJSON(rw http.ResponseWriter, status int, body any) {
	rw.WriteHeader(status)
	json.NewEncoder(rw).Encode(body)
}

func writeErr(rw http.ResponseWriter, err error) {
	cerr, ok := err.(*cashu.Error)
	if !ok {
		v, isVal := err.(cashu.Error)
		if !isVal {
			writeJSON(rw, http.StatusInternalServerError, cashu.StandardErr)
			return
		}
		cerr = &v
	}
	writeJSON(rw, statusForErrCode(cerr.Code), cerr)
}

// statusForErrCode maps a structured error code to the HTTP status it is
// documented to carry: a quote not yet paid is 200 so a polling wallet
// keeps retrying instead of treating it as failure, errors originating
// in the mint's own infrastructure (database, Lightning backend, signing)
// are 5xx, and anything else is a client-side validation failure, 4xx.
func statusForErrCode(code cashu.ErrCode) int {
	switch code {
	case cashu.MintQuoteRequestNotPaidErrCode:
		return http.StatusOK
	case cashu.DBErrCode, cashu.BackendErrCode, cashu.BackendTimeoutErrCode, cashu.CryptoErrCode:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

func decodeBody(req *http.Request, dst any) error {
	if req.Body == nil {
		return cashu.EmptyBodyErr
	}
	return json.NewDecoder(req.Body).Decode(dst)
}

func (s *Server) getKeys(rw http.ResponseWriter, req *http.Request) {
	active := s.mint.GetActiveKeyset()
	writeJSON(rw, http.StatusOK, keysetsResponse{Keysets: []keysetKeys{{Id: active.Id, Unit: active.Unit, Keys: active.PublicKeys()}}})
}

func (s *Server) getKeysById(rw http.ResponseWriter, req *http.Request) {
	id := mux.Vars(req)["id"]
	ks, ok := s.mint.GetKeyset(id)
	if !ok {
		writeErr(rw, &cashu.UnknownKeysetErr)
		return
	}
	writeJSON(rw, http.StatusOK, keysetsResponse{Keysets: []keysetKeys{{Id: ks.Id, Unit: ks.Unit, Keys: ks.PublicKeys()}}})
}

func (s *Server) getKeysets(rw http.ResponseWriter, req *http.Request) {
	keysets := s.mint.GetKeysets()
	out := make([]keysetInfo, len(keysets))
	for i, ks := range keysets {
		out[i] = keysetInfo{Id: ks.Id, Unit: ks.Unit, Active: ks.Active, InputFeePpk: ks.InputFeePpk}
	}
	writeJSON(rw, http.StatusOK, keysetsInfoResponse{Keysets: out})
}

func (s *Server) getInfo(rw http.ResponseWriter, req *http.Request) {
	writeJSON(rw, http.StatusOK, s.mint.RetrieveMintInfo())
}

func (s *Server) swap(rw http.ResponseWriter, req *http.Request) {
	var r struct {
		Inputs  cashu.Proofs          `json:"inputs"`
		Outputs cashu.BlindedMessages `json:"outputs"`
	}
	if err := decodeBody(req, &r); err != nil {
		writeErr(rw, &cashu.EmptyBodyErr)
		return
	}
	sigs, err := s.mint.Swap(r.Inputs, r.Outputs)
	if err != nil {
		writeErr(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, struct {
		Signatures cashu.BlindedSignatures `json:"signatures"`
	}{sigs})
}

func (s *Server) mintQuoteBolt11(rw http.ResponseWriter, req *http.Request) {
	var r nut04.PostMintQuoteBolt11Request
	if err := decodeBody(req, &r); err != nil {
		writeErr(rw, &cashu.EmptyBodyErr)
		return
	}
	quote, err := s.mint.RequestMintQuote(req.Context(), r.Amount)
	if err != nil {
		writeErr(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, mintQuoteBolt11Response(quote))
}

func (s *Server) mintQuoteBolt11State(rw http.ResponseWriter, req *http.Request) {
	id := mux.Vars(req)["quote"]
	quote, err := s.mint.GetMintQuoteState(req.Context(), id)
	if err != nil {
		writeErr(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, mintQuoteBolt11Response(quote))
}

func (s *Server) mintBolt11(rw http.ResponseWriter, req *http.Request) {
	var r nut04.PostMintBolt11Request
	if err := decodeBody(req, &r); err != nil {
		writeErr(rw, &cashu.EmptyBodyErr)
		return
	}
	sigs, err := s.mint.MintTokens(r.Quote, r.Outputs)
	if err != nil {
		writeErr(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, nut04.PostMintBolt11Response{Signatures: sigs})
}

func (s *Server) meltQuoteBolt11(rw http.ResponseWriter, req *http.Request) {
	var r nut05.PostMeltQuoteBolt11Request
	if err := decodeBody(req, &r); err != nil {
		writeErr(rw, &cashu.EmptyBodyErr)
		return
	}
	quote, err := s.mint.RequestMeltQuote(req.Context(), r.Request)
	if err != nil {
		writeErr(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, meltQuoteBolt11Response(quote))
}

func (s *Server) meltBolt11(rw http.ResponseWriter, req *http.Request) {
	var r nut05.PostMeltBolt11Request
	if err := decodeBody(req, &r); err != nil {
		writeErr(rw, &cashu.EmptyBodyErr)
		return
	}
	quote, change, err := s.mint.MeltTokens(req.Context(), r.Quote, r.Inputs, r.Outputs)
	if err != nil {
		writeErr(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, nut05.PostMeltBolt11Response{
		Paid:     quote.State == storage.QuoteConsumed,
		Preimage: quote.Preimage,
		Change:   change,
	})
}

func (s *Server) checkState(rw http.ResponseWriter, req *http.Request) {
	var r nut07.PostCheckStateRequest
	if err := decodeBody(req, &r); err != nil {
		writeErr(rw, &cashu.EmptyBodyErr)
		return
	}
	states, err := s.mint.ProofsStateCheck(r.Ys)
	if err != nil {
		writeErr(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, nut07.PostCheckStateResponse{States: states})
}

func (s *Server) mintQuoteOnchain(rw http.ResponseWriter, req *http.Request) {
	var r nutonchain.PostMintQuoteBtcOnchainRequest
	if err := decodeBody(req, &r); err != nil {
		writeErr(rw, &cashu.EmptyBodyErr)
		return
	}
	quote, err := s.mint.RequestMintQuoteOnchain(req.Context(), r.Amount)
	if err != nil {
		writeErr(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, mintQuoteOnchainResponse(quote))
}

func (s *Server) mintQuoteOnchainState(rw http.ResponseWriter, req *http.Request) {
	id := mux.Vars(req)["quote"]
	quote, err := s.mint.GetMintQuoteStateOnchain(req.Context(), id)
	if err != nil {
		writeErr(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, mintQuoteOnchainResponse(quote))
}

func (s *Server) mintOnchain(rw http.ResponseWriter, req *http.Request) {
	var r nutonchain.PostMintBtcOnchainRequest
	if err := decodeBody(req, &r); err != nil {
		writeErr(rw, &cashu.EmptyBodyErr)
		return
	}
	sigs, err := s.mint.MintTokensOnchain(r.Quote, r.Outputs)
	if err != nil {
		writeErr(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, nutonchain.PostMintBtcOnchainResponse{Signatures: sigs})
}

func (s *Server) meltQuoteOnchain(rw http.ResponseWriter, req *http.Request) {
	var r nutonchain.PostMeltQuoteBtcOnchainRequest
	if err := decodeBody(req, &r); err != nil {
		writeErr(rw, &cashu.EmptyBodyErr)
		return
	}
	quote, err := s.mint.RequestMeltQuoteOnchain(req.Context(), r.Address, r.Amount)
	if err != nil {
		writeErr(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, nutonchain.PostMeltQuoteBtcOnchainResponse{
		Quote: quote.Id, Amount: quote.Amount, FeeReserve: quote.FeeReserve,
		Paid: quote.State == storage.QuoteConsumed, Expiry: quote.Expiry,
	})
}

func (s *Server) meltOnchain(rw http.ResponseWriter, req *http.Request) {
	var r nutonchain.PostMeltBtcOnchainRequest
	if err := decodeBody(req, &r); err != nil {
		writeErr(rw, &cashu.EmptyBodyErr)
		return
	}
	quote, txid, err := s.mint.MeltTokensOnchain(req.Context(), r.Quote, r.Inputs)
	if err != nil {
		writeErr(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, nutonchain.PostMeltBtcOnchainResponse{
		Paid: quote.State == storage.QuoteConsumed,
		Txid: txid,
	})
}

type keysetKeys struct {
	Id   string           `json:"id"`
	Unit string           `json:"unit"`
	Keys crypto.PublicKeys `json:"keys"`
}

type keysetsResponse struct {
	Keysets []keysetKeys `json:"keysets"`
}

type keysetInfo struct {
	Id          string `json:"id"`
	Unit        string `json:"unit"`
	Active      bool   `json:"active"`
	InputFeePpk uint   `json:"input_fee_ppk"`
}

type keysetsInfoResponse struct {
	Keysets []keysetInfo `json:"keysets"`
}

func mintQuoteBolt11Response(q storage.MintQuote) nut04.PostMintQuoteBolt11Response {
	return nut04.PostMintQuoteBolt11Response{
		Quote:   q.Id,
		Request: q.PaymentRequest,
		Paid:    q.State != storage.QuotePending,
		Expiry:  q.Expiry,
	}
}

func meltQuoteBolt11Response(q storage.MeltQuote) nut05.PostMeltQuoteBolt11Response {
	return nut05.PostMeltQuoteBolt11Response{
		Quote:      q.Id,
		Amount:     q.Amount,
		FeeReserve: q.FeeReserve,
		Paid:       q.State == storage.QuoteConsumed,
		Expiry:     q.Expiry,
	}
}

func mintQuoteOnchainResponse(q storage.MintQuote) nutonchain.PostMintQuoteBtcOnchainResponse {
	return nutonchain.PostMintQuoteBtcOnchainResponse{
		Quote:            q.Id,
		Address:          q.Address,
		Paid:             q.State != storage.QuotePending,
		Expiry:           q.Expiry,
		MinConfirmations: q.MinConfirmations,
	}
}
