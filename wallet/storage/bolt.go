package storage

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	bolt "go.etcd.io/bbolt"

	"github.com/cashunuts/mint/cashu"
	"github.com/cashunuts/mint/crypto"
)

const (
	keysetsBucket       = "keysets"
	proofsBucket        = "proofs"
	pendingProofsBucket = "pending_proofs"
	mintQuotesBucket    = "mint_quotes"
	meltQuotesBucket    = "melt_quotes"
	seedBucket          = "seed"
	mnemonicKey         = "mnemonic"
	seedKey             = "seed"
)

// ErrProofNotFound is returned when deleting a secret no stored proof
// carries.
var ErrProofNotFound = errors.New("wallet: proof not found")

// BoltDB is a WalletDB backed by a single bbolt file.
type BoltDB struct {
	bolt *bolt.DB
}

// InitBolt opens (creating if necessary) wallet.db under path and
// ensures every top-level bucket exists.
func InitBolt(path string) (*BoltDB, error) {
	db, err := bolt.Open(filepath.Join(path, "wallet.db"), 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("opening bolt db: %w", err)
	}

	boltdb := &BoltDB{bolt: db}
	if err := boltdb.initBuckets(); err != nil {
		return nil, fmt.Errorf("initializing wallet buckets: %w", err)
	}
	return boltdb, nil
}

func (db *BoltDB) initBuckets() error {
	return db.bolt.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{
			keysetsBucket, proofsBucket, pendingProofsBucket,
			mintQuotesBucket, meltQuotesBucket, seedBucket,
		} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (db *BoltDB) Close() error {
	return db.bolt.Close()
}

func (db *BoltDB) SaveMnemonicSeed(mnemonic string, seed []byte) error {
	return db.bolt.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(seedBucket))
		if err := b.Put([]byte(seedKey), seed); err != nil {
			return err
		}
		return b.Put([]byte(mnemonicKey), []byte(mnemonic))
	})
}

func (db *BoltDB) GetMnemonic() string {
	var mnemonic string
	db.bolt.View(func(tx *bolt.Tx) error {
		mnemonic = string(tx.Bucket([]byte(seedBucket)).Get([]byte(mnemonicKey)))
		return nil
	})
	return mnemonic
}

func (db *BoltDB) GetSeed() []byte {
	var seed []byte
	db.bolt.View(func(tx *bolt.Tx) error {
		seed = tx.Bucket([]byte(seedBucket)).Get([]byte(seedKey))
		return nil
	})
	return seed
}

func (db *BoltDB) SaveProofs(proofs cashu.Proofs) error {
	return db.bolt.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(proofsBucket))
		for _, proof := range proofs {
			jsonProof, err := json.Marshal(proof)
			if err != nil {
				return fmt.Errorf("marshaling proof: %w", err)
			}
			if err := b.Put([]byte(proof.Secret), jsonProof); err != nil {
				return err
			}
		}
		return nil
	})
}

func (db *BoltDB) GetProofs() cashu.Proofs {
	proofs := cashu.Proofs{}
	db.bolt.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(proofsBucket)).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var proof cashu.Proof
			if err := json.Unmarshal(v, &proof); err != nil {
				continue
			}
			proofs = append(proofs, proof)
		}
		return nil
	})
	return proofs
}

func (db *BoltDB) GetProofsByKeysetId(id string) cashu.Proofs {
	proofs := cashu.Proofs{}
	db.bolt.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(proofsBucket)).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var proof cashu.Proof
			if err := json.Unmarshal(v, &proof); err != nil {
				continue
			}
			if proof.Id == id {
				proofs = append(proofs, proof)
			}
		}
		return nil
	})
	return proofs
}

func (db *BoltDB) DeleteProof(secret string) error {
	return db.bolt.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(proofsBucket))
		if b.Get([]byte(secret)) == nil {
			return ErrProofNotFound
		}
		return b.Delete([]byte(secret))
	})
}

// AddPendingProofs stores proofs in the pending bucket, indexed by
// Y = hash_to_curve(secret) as the mint itself indexes spent proofs,
// tagged with the melt quote holding them.
func (db *BoltDB) AddPendingProofs(proofs cashu.Proofs, meltQuoteId string) error {
	return db.bolt.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(pendingProofsBucket))
		for _, proof := range proofs {
			Y := crypto.HashToCurve([]byte(proof.Secret))
			Ybytes := Y.SerializeCompressed()

			dbProof := DBProof{
				Y:           hex.EncodeToString(Ybytes),
				Amount:      proof.Amount,
				Id:          proof.Id,
				Secret:      proof.Secret,
				C:           proof.C,
				MeltQuoteId: meltQuoteId,
			}
			jsonProof, err := json.Marshal(dbProof)
			if err != nil {
				return fmt.Errorf("marshaling pending proof: %w", err)
			}
			if err := b.Put(Ybytes, jsonProof); err != nil {
				return err
			}
		}
		return nil
	})
}

func (db *BoltDB) GetPendingProofs() []DBProof {
	proofs := []DBProof{}
	db.bolt.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(pendingProofsBucket)).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var proof DBProof
			if err := json.Unmarshal(v, &proof); err != nil {
				continue
			}
			proofs = append(proofs, proof)
		}
		return nil
	})
	return proofs
}

func (db *BoltDB) GetPendingProofsByQuoteId(quoteId string) []DBProof {
	proofs := []DBProof{}
	db.bolt.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(pendingProofsBucket)).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var proof DBProof
			if err := json.Unmarshal(v, &proof); err != nil {
				continue
			}
			if proof.MeltQuoteId == quoteId {
				proofs = append(proofs, proof)
			}
		}
		return nil
	})
	return proofs
}

func (db *BoltDB) DeletePendingProofs(Ys []string) error {
	return db.bolt.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(pendingProofsBucket))
		for _, y := range Ys {
			raw, err := hex.DecodeString(y)
			if err != nil {
				return fmt.Errorf("invalid Y %q: %w", y, err)
			}
			if err := b.Delete(raw); err != nil {
				return err
			}
		}
		return nil
	})
}

// SaveKeyset stores a keyset under a per-mint sub-bucket, so keysets
// from multiple mints a wallet has used never collide on id.
func (db *BoltDB) SaveKeyset(keyset *crypto.WalletKeyset) error {
	jsonKeyset, err := json.Marshal(keyset)
	if err != nil {
		return fmt.Errorf("marshaling keyset: %w", err)
	}
	return db.bolt.Update(func(tx *bolt.Tx) error {
		mintBucket, err := tx.Bucket([]byte(keysetsBucket)).CreateBucketIfNotExists([]byte(keyset.MintURL))
		if err != nil {
			return err
		}
		return mintBucket.Put([]byte(keyset.Id), jsonKeyset)
	})
}

func (db *BoltDB) GetKeysets() map[string][]crypto.WalletKeyset {
	keysets := make(map[string][]crypto.WalletKeyset)
	db.bolt.View(func(tx *bolt.Tx) error {
		keysetsb := tx.Bucket([]byte(keysetsBucket))
		return keysetsb.ForEach(func(mintURL, _ []byte) error {
			mintBucket := keysetsb.Bucket(mintURL)
			if mintBucket == nil {
				return nil
			}
			var mintKeysets []crypto.WalletKeyset
			c := mintBucket.Cursor()
			for k, v := c.First(); k != nil; k, v = c.Next() {
				var keyset crypto.WalletKeyset
				if err := json.Unmarshal(v, &keyset); err != nil {
					continue
				}
				mintKeysets = append(mintKeysets, keyset)
			}
			keysets[string(mintURL)] = mintKeysets
			return nil
		})
	})
	return keysets
}

func (db *BoltDB) GetKeyset(keysetId string) *crypto.WalletKeyset {
	var keyset *crypto.WalletKeyset
	db.bolt.View(func(tx *bolt.Tx) error {
		keysetsb := tx.Bucket([]byte(keysetsBucket))
		return keysetsb.ForEach(func(mintURL, _ []byte) error {
			mintBucket := keysetsb.Bucket(mintURL)
			if mintBucket == nil {
				return nil
			}
			raw := mintBucket.Get([]byte(keysetId))
			if raw == nil {
				return nil
			}
			var ks crypto.WalletKeyset
			if err := json.Unmarshal(raw, &ks); err != nil {
				return err
			}
			keyset = &ks
			return nil
		})
	})
	return keyset
}

func (db *BoltDB) IncrementKeysetCounter(keysetId string, num uint32) error {
	return db.bolt.Update(func(tx *bolt.Tx) error {
		keysetsb := tx.Bucket([]byte(keysetsBucket))
		found := false
		err := keysetsb.ForEach(func(mintURL, _ []byte) error {
			mintBucket := keysetsb.Bucket(mintURL)
			if mintBucket == nil {
				return nil
			}
			raw := mintBucket.Get([]byte(keysetId))
			if raw == nil {
				return nil
			}
			var ks crypto.WalletKeyset
			if err := json.Unmarshal(raw, &ks); err != nil {
				return err
			}
			ks.Counter += num
			jsonBytes, err := json.Marshal(ks)
			if err != nil {
				return err
			}
			found = true
			return mintBucket.Put([]byte(keysetId), jsonBytes)
		})
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("wallet: keyset %s does not exist", keysetId)
		}
		return nil
	})
}

func (db *BoltDB) GetKeysetCounter(keysetId string) uint32 {
	var counter uint32
	db.bolt.View(func(tx *bolt.Tx) error {
		keysetsb := tx.Bucket([]byte(keysetsBucket))
		return keysetsb.ForEach(func(mintURL, _ []byte) error {
			mintBucket := keysetsb.Bucket(mintURL)
			if mintBucket == nil {
				return nil
			}
			raw := mintBucket.Get([]byte(keysetId))
			if raw == nil {
				return nil
			}
			var ks crypto.WalletKeyset
			if err := json.Unmarshal(raw, &ks); err != nil {
				return err
			}
			counter = ks.Counter
			return nil
		})
	})
	return counter
}

func (db *BoltDB) SaveMintQuote(quote MintQuote) error {
	jsonBytes, err := json.Marshal(quote)
	if err != nil {
		return fmt.Errorf("marshaling mint quote: %w", err)
	}
	return db.bolt.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(mintQuotesBucket)).Put([]byte(quote.QuoteId), jsonBytes)
	})
}

func (db *BoltDB) GetMintQuotes() []MintQuote {
	var quotes []MintQuote
	db.bolt.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(mintQuotesBucket)).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var q MintQuote
			if err := json.Unmarshal(v, &q); err != nil {
				continue
			}
			quotes = append(quotes, q)
		}
		return nil
	})
	return quotes
}

func (db *BoltDB) GetMintQuoteById(id string) *MintQuote {
	var quote *MintQuote
	db.bolt.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket([]byte(mintQuotesBucket)).Get([]byte(id))
		if raw == nil {
			return nil
		}
		var q MintQuote
		if err := json.Unmarshal(raw, &q); err != nil {
			return nil
		}
		quote = &q
		return nil
	})
	return quote
}

func (db *BoltDB) SaveMeltQuote(quote MeltQuote) error {
	jsonBytes, err := json.Marshal(quote)
	if err != nil {
		return fmt.Errorf("marshaling melt quote: %w", err)
	}
	return db.bolt.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(meltQuotesBucket)).Put([]byte(quote.QuoteId), jsonBytes)
	})
}

func (db *BoltDB) GetMeltQuotes() []MeltQuote {
	var quotes []MeltQuote
	db.bolt.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(meltQuotesBucket)).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var q MeltQuote
			if err := json.Unmarshal(v, &q); err != nil {
				continue
			}
			quotes = append(quotes, q)
		}
		return nil
	})
	return quotes
}

func (db *BoltDB) GetMeltQuoteById(id string) *MeltQuote {
	var quote *MeltQuote
	db.bolt.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket([]byte(meltQuotesBucket)).Get([]byte(id))
		if raw == nil {
			return nil
		}
		var q MeltQuote
		if err := json.Unmarshal(raw, &q); err != nil {
			return nil
		}
		quote = &q
		return nil
	})
	return quote
}
