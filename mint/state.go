package mint

import (
	"slices"

	"github.com/cashunuts/mint/cashu"
	"github.com/cashunuts/mint/cashu/nuts/nut07"
	"github.com/cashunuts/mint/mint/storage"
)

// ProofsStateCheck reports the spend state of each secret in Ys: spent
// if it appears in the used-proof ledger, unspent otherwise.
func (m *Mint) ProofsStateCheck(Ys []string) ([]nut07.ProofState, error) {
	used, err := m.db.GetProofsUsed(Ys)
	if err != nil {
		return nil, cashu.BuildDBErr(err)
	}

	states := make([]nut07.ProofState, len(Ys))
	for i, y := range Ys {
		state := nut07.Unspent
		if slices.ContainsFunc(used, func(p storage.DBProof) bool { return p.Y == y || p.Secret == y }) {
			state = nut07.Spent
		}
		states[i] = nut07.ProofState{Y: y, State: state}
	}
	return states, nil
}
