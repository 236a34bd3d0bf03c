package cashu

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// TokenV3Prefix is the mandatory string prefix of a serialized v3 token.
const TokenV3Prefix = "cashuA"

// TokenV3Entry bundles the proofs redeemable at one mint.
type TokenV3Entry struct {
	Mint   string `json:"mint"`
	Proofs Proofs `json:"proofs"`
}

// TokenV3 is the v3 wire container: a list of per-mint proof bundles plus
// an optional memo and unit.
type TokenV3 struct {
	Token []TokenV3Entry `json:"token"`
	Unit  string         `json:"unit,omitempty"`
	Memo  string         `json:"memo,omitempty"`
}

// NewTokenV3 builds a single-mint TokenV3 from a set of proofs. The mint
// URL's trailing slash, if any, is stripped per the canonical wire form.
func NewTokenV3(proofs Proofs, mintURL string, unit Unit, memo string) TokenV3 {
	return TokenV3{
		Token: []TokenV3Entry{{Mint: strings.TrimSuffix(mintURL, "/"), Proofs: proofs}},
		Unit:  unit.String(),
		Memo:  memo,
	}
}

// Proofs returns every proof across all mint entries.
func (t TokenV3) Proofs() Proofs {
	proofs := make(Proofs, 0, len(t.Token))
	for _, entry := range t.Token {
		proofs = append(proofs, entry.Proofs...)
	}
	return proofs
}

// Mint returns the first entry's mint URL.
func (t TokenV3) Mint() string {
	if len(t.Token) == 0 {
		return ""
	}
	return t.Token[0].Mint
}

// Amount returns the sum of every proof's amount across all entries.
func (t TokenV3) Amount() uint64 {
	return t.Proofs().Amount()
}

// Serialize renders the canonical "cashuA"-prefixed, base64url(JSON) wire
// form.
func (t TokenV3) Serialize() (string, error) {
	jsonBytes, err := json.Marshal(t)
	if err != nil {
		return "", err
	}
	return TokenV3Prefix + base64.URLEncoding.EncodeToString(jsonBytes), nil
}

// DecodeTokenV3 parses a "cashuA"-prefixed token string. It accepts both
// padded (URL_SAFE) and unpadded (URL_SAFE_NO_PAD) base64, trying padded
// first and falling back to unpadded, per the wire format's documented
// leniency.
func DecodeTokenV3(tokenStr string) (*TokenV3, error) {
	if len(tokenStr) < len(TokenV3Prefix) || tokenStr[:len(TokenV3Prefix)] != TokenV3Prefix {
		return nil, &InvalidTokenPrefixErr
	}
	encoded := tokenStr[len(TokenV3Prefix):]

	raw, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		raw, err = base64.RawURLEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", &InvalidTokenErr, err)
		}
	}

	var token TokenV3
	if err := json.Unmarshal(raw, &token); err != nil {
		return nil, fmt.Errorf("%w: %v", &InvalidTokenErr, err)
	}

	return &token, nil
}
