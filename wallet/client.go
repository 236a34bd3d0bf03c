package wallet

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/cashunuts/mint/cashu"
	"github.com/cashunuts/mint/cashu/nuts/nut04"
	"github.com/cashunuts/mint/cashu/nuts/nut05"
	"github.com/cashunuts/mint/cashu/nuts/nut06"
	"github.com/cashunuts/mint/cashu/nuts/nut07"
	"github.com/cashunuts/mint/crypto"
)

// httpClient is shared by every request a wallet makes against a mint,
// the same way the reference wallet reuses one client instance rather
// than paying connection setup per call.
var httpClient = &http.Client{}

func httpGet(url string, dst any) error {
	resp, err := httpClient.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(dst)
}

func httpPostJSON(url string, body, dst any) error {
	reqBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("json.Marshal: %w", err)
	}
	resp, err := httpClient.Post(url, "application/json", bytes.NewReader(reqBody))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if dst == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}

type keysetKeys struct {
	Id   string            `json:"id"`
	Unit string            `json:"unit"`
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

// GetActiveKeysets fetches GET /v1/keys: every keyset the mint currently
// signs under.
func GetActiveKeysets(mintURL string) (map[string]crypto.WalletKeyset, error) {
	var res keysetsResponse
	if err := httpGet(mintURL+"/v1/keys", &res); err != nil {
		return nil, fmt.Errorf("fetching active keysets: %w", err)
	}

	active := make(map[string]crypto.WalletKeyset, len(res.Keysets))
	for _, ks := range res.Keysets {
		active[ks.Id] = crypto.WalletKeyset{
			Id:         ks.Id,
			MintURL:    mintURL,
			Unit:       ks.Unit,
			Active:     true,
			PublicKeys: ks.Keys,
		}
	}
	return active, nil
}

// GetKeysetsInfo fetches GET /v1/keysets: id/unit/active/fee metadata
// for every keyset the mint has ever issued, including retired ones
// still needed to verify older proofs.
func GetKeysetsInfo(mintURL string) ([]keysetInfo, error) {
	var res keysetsInfoResponse
	if err := httpGet(mintURL+"/v1/keysets", &res); err != nil {
		return nil, fmt.Errorf("fetching keyset info: %w", err)
	}
	return res.Keysets, nil
}

// GetMintInfo fetches GET /v1/info.
func GetMintInfo(mintURL string) (nut06.MintInfo, error) {
	var info nut06.MintInfo
	err := httpGet(mintURL+"/v1/info", &info)
	return info, err
}

// RequestMintQuote posts POST /v1/mint/quote/bolt11.
func RequestMintQuote(mintURL string, amount uint64, unit string) (nut04.PostMintQuoteBolt11Response, error) {
	var res nut04.PostMintQuoteBolt11Response
	err := httpPostJSON(mintURL+"/v1/mint/quote/bolt11",
		nut04.PostMintQuoteBolt11Request{Amount: amount, Unit: unit}, &res)
	return res, err
}

// GetMintQuoteState polls GET /v1/mint/quote/bolt11/{quote}.
func GetMintQuoteState(mintURL, quoteId string) (nut04.PostMintQuoteBolt11Response, error) {
	var res nut04.PostMintQuoteBolt11Response
	err := httpGet(mintURL+"/v1/mint/quote/bolt11/"+quoteId, &res)
	return res, err
}

// PostMintBolt11 posts POST /v1/mint/bolt11, exchanging a paid quote for
// blind signatures over the supplied outputs.
func PostMintBolt11(mintURL, quoteId string, outputs cashu.BlindedMessages) (cashu.BlindedSignatures, error) {
	var res nut04.PostMintBolt11Response
	err := httpPostJSON(mintURL+"/v1/mint/bolt11",
		nut04.PostMintBolt11Request{Quote: quoteId, Outputs: outputs}, &res)
	return res.Signatures, err
}

// PostSwap posts POST /v1/swap.
func PostSwap(mintURL string, inputs cashu.Proofs, outputs cashu.BlindedMessages) (cashu.BlindedSignatures, error) {
	var res struct {
		Signatures cashu.BlindedSignatures `json:"signatures"`
	}
	req := struct {
		Inputs  cashu.Proofs          `json:"inputs"`
		Outputs cashu.BlindedMessages `json:"outputs"`
	}{inputs, outputs}
	err := httpPostJSON(mintURL+"/v1/swap", req, &res)
	return res.Signatures, err
}

// RequestMeltQuote posts POST /v1/melt/quote/bolt11.
func RequestMeltQuote(mintURL, request, unit string) (nut05.PostMeltQuoteBolt11Response, error) {
	var res nut05.PostMeltQuoteBolt11Response
	err := httpPostJSON(mintURL+"/v1/melt/quote/bolt11",
		nut05.PostMeltQuoteBolt11Request{Request: request, Unit: unit}, &res)
	return res, err
}

// PostMeltBolt11 posts POST /v1/melt/bolt11.
func PostMeltBolt11(mintURL, quoteId string, inputs cashu.Proofs, outputs cashu.BlindedMessages) (nut05.PostMeltBolt11Response, error) {
	var res nut05.PostMeltBolt11Response
	err := httpPostJSON(mintURL+"/v1/melt/bolt11",
		nut05.PostMeltBolt11Request{Quote: quoteId, Inputs: inputs, Outputs: outputs}, &res)
	return res, err
}

// PostCheckState posts POST /v1/checkstate.
func PostCheckState(mintURL string, Ys []string) ([]nut07.ProofState, error) {
	var res nut07.PostCheckStateResponse
	err := httpPostJSON(mintURL+"/v1/checkstate", nut07.PostCheckStateRequest{Ys: Ys}, &res)
	return res.States, err
}
