// Package sqlite implements the mint's MintDB contract on top of
// database/sql + mattn/go-sqlite3, with schema migrations applied via
// golang-migrate.
package sqlite

import (
	"database/sql"
	"embed"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/mattn/go-sqlite3"

	"github.com/cashunuts/mint/cashu"
	"github.com/cashunuts/mint/crypto"
	"github.com/cashunuts/mint/mint/storage"
)

//go:embed migrations
var migrations embed.FS

type SQLiteDB struct {
	db *sql.DB
}

// migrationsDir copies the embedded migration files out to a temp
// directory, since migrate.New needs a filesystem path to a source.
func migrationsDir() (string, error) {
	tempDir, err := os.MkdirTemp("", "mint-migrations")
	if err != nil {
		return "", err
	}

	entries, err := migrations.ReadDir("migrations")
	if err != nil {
		return "", err
	}

	for _, entry := range entries {
		destPath := filepath.Join(tempDir, entry.Name())

		src, err := migrations.Open(filepath.Join("migrations", entry.Name()))
		if err != nil {
			return "", err
		}

		dst, err := os.Create(destPath)
		if err != nil {
			src.Close()
			return "", err
		}

		if _, err := io.Copy(dst, src); err != nil {
			src.Close()
			dst.Close()
			return "", err
		}
		src.Close()
		dst.Close()
	}

	return tempDir, nil
}

func InitSQLite(path string) (*SQLiteDB, error) {
	dbpath := filepath.Join(path, "mint.sqlite.db")
	db, err := sql.Open("sqlite3", dbpath)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	tempMigrationsDir, err := migrationsDir()
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tempMigrationsDir)

	m, err := migrate.New(fmt.Sprintf("file://%s", tempMigrationsDir), fmt.Sprintf("sqlite3://%s", dbpath))
	if err != nil {
		return nil, err
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return &SQLiteDB{db: db}, nil
}

func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

func (s *SQLiteDB) SaveSeed(seed []byte) error {
	_, err := s.db.Exec(`INSERT INTO seed (id, seed) VALUES (?, ?)`, "id", hex.EncodeToString(seed))
	return err
}

func (s *SQLiteDB) GetSeed() ([]byte, error) {
	var hexSeed string
	row := s.db.QueryRow("SELECT seed FROM seed WHERE id = ?", "id")
	if err := row.Scan(&hexSeed); err != nil {
		return nil, err
	}
	return hex.DecodeString(hexSeed)
}

func (s *SQLiteDB) SaveKeyset(keyset storage.DBKeyset) error {
	_, err := s.db.Exec(
		`INSERT INTO keysets (id, unit, active, seed, derivation_path, input_fee_ppk) VALUES (?, ?, ?, ?, ?, ?)`,
		keyset.Id, keyset.Unit, keyset.Active, keyset.Seed, keyset.Path, keyset.InputFeePpk,
	)
	return err
}

func (s *SQLiteDB) GetKeysets() ([]storage.DBKeyset, error) {
	rows, err := s.db.Query("SELECT id, unit, active, seed, derivation_path, input_fee_ppk FROM keysets")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keysets := []storage.DBKeyset{}
	for rows.Next() {
		var k storage.DBKeyset
		if err := rows.Scan(&k.Id, &k.Unit, &k.Active, &k.Seed, &k.Path, &k.InputFeePpk); err != nil {
			return nil, err
		}
		keysets = append(keysets, k)
	}
	return keysets, rows.Err()
}

func (s *SQLiteDB) UpdateKeysetActive(id string, active bool) error {
	_, err := s.db.Exec("UPDATE keysets SET active = ? WHERE id = ?", active, id)
	return err
}

// Swap marks input proofs as used and persists the output signatures in
// one transaction, so a crash between the two steps is impossible.
func (s *SQLiteDB) Swap(inputs cashu.Proofs, B_s []string, signatures cashu.BlindedSignatures) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}

	if err := insertUsedProofs(tx, inputs); err != nil {
		tx.Rollback()
		return err
	}
	if err := insertBlindSignatures(tx, B_s, signatures); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}

func insertUsedProofs(tx *sql.Tx, proofs cashu.Proofs) error {
	stmt, err := tx.Prepare("INSERT INTO proofs_used (y, amount, keyset_id, secret, c, witness) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, proof := range proofs {
		Y := crypto.HashToCurve([]byte(proof.Secret))
		Yhex := hex.EncodeToString(Y.SerializeCompressed())

		var witness string
		if proof.Script != nil {
			witness = *proof.Script
		}
		if _, err := stmt.Exec(Yhex, proof.Amount, proof.Id, proof.Secret, proof.C, witness); err != nil {
			return err
		}
	}
	return nil
}

func insertBlindSignatures(tx *sql.Tx, B_s []string, signatures cashu.BlindedSignatures) error {
	stmt, err := tx.Prepare("INSERT INTO blind_signatures (b_, c_, keyset_id, amount) VALUES (?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, sig := range signatures {
		if _, err := stmt.Exec(B_s[i], sig.C_, sig.Id, sig.Amount); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteDB) GetProofsUsed(Ys []string) ([]storage.DBProof, error) {
	if len(Ys) == 0 {
		return nil, nil
	}
	query := `SELECT y, amount, keyset_id, secret, c, witness FROM proofs_used WHERE y in (?` + strings.Repeat(",?", len(Ys)-1) + `)`

	args := make([]any, len(Ys))
	for i, y := range Ys {
		args[i] = y
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	proofs := []storage.DBProof{}
	for rows.Next() {
		var p storage.DBProof
		var witness sql.NullString
		if err := rows.Scan(&p.Y, &p.Amount, &p.Id, &p.Secret, &p.C, &witness); err != nil {
			return nil, err
		}
		if witness.Valid {
			p.Witness = witness.String
		}
		proofs = append(proofs, p)
	}
	return proofs, rows.Err()
}

func (s *SQLiteDB) AddPendingProofs(proofs cashu.Proofs, quoteId string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare("INSERT INTO proofs_pending (y, amount, keyset_id, secret, c, melt_quote_id) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, proof := range proofs {
		Y := crypto.HashToCurve([]byte(proof.Secret))
		Yhex := hex.EncodeToString(Y.SerializeCompressed())
		if _, err := stmt.Exec(Yhex, proof.Amount, proof.Id, proof.Secret, proof.C, quoteId); err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

func (s *SQLiteDB) GetPendingProofsByQuote(quoteId string) ([]storage.DBProof, error) {
	rows, err := s.db.Query("SELECT y, amount, keyset_id, secret, c, melt_quote_id FROM proofs_pending WHERE melt_quote_id = ?", quoteId)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	proofs := []storage.DBProof{}
	for rows.Next() {
		var p storage.DBProof
		if err := rows.Scan(&p.Y, &p.Amount, &p.Id, &p.Secret, &p.C, &p.MeltQuoteId); err != nil {
			return nil, err
		}
		proofs = append(proofs, p)
	}
	return proofs, rows.Err()
}

// GetPendingProofs returns the subset of Ys currently locked in the
// pending table by some other in-flight melt.
func (s *SQLiteDB) GetPendingProofs(Ys []string) ([]storage.DBProof, error) {
	if len(Ys) == 0 {
		return nil, nil
	}
	query := `SELECT y, amount, keyset_id, secret, c, melt_quote_id FROM proofs_pending WHERE y in (?` + strings.Repeat(",?", len(Ys)-1) + `)`

	args := make([]any, len(Ys))
	for i, y := range Ys {
		args[i] = y
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	proofs := []storage.DBProof{}
	for rows.Next() {
		var p storage.DBProof
		if err := rows.Scan(&p.Y, &p.Amount, &p.Id, &p.Secret, &p.C, &p.MeltQuoteId); err != nil {
			return nil, err
		}
		proofs = append(proofs, p)
	}
	return proofs, rows.Err()
}

func (s *SQLiteDB) RemovePendingProofs(Ys []string) error {
	if len(Ys) == 0 {
		return nil
	}
	query := `DELETE FROM proofs_pending WHERE y in (?` + strings.Repeat(",?", len(Ys)-1) + `)`
	args := make([]any, len(Ys))
	for i, y := range Ys {
		args[i] = y
	}
	_, err := s.db.Exec(query, args...)
	return err
}

func (s *SQLiteDB) SaveMintQuote(q storage.MintQuote) error {
	var pubkey string
	if q.Pubkey != nil {
		pubkey = hex.EncodeToString(q.Pubkey.SerializeCompressed())
	}

	_, err := s.db.Exec(
		`INSERT INTO mint_quotes (id, amount, unit, payment_request, payment_hash, address, min_confirmations, observed_txid, state, expiry, pubkey)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		q.Id, q.Amount, q.Unit, q.PaymentRequest, q.PaymentHash, q.Address, q.MinConfirmations, q.ObservedTxid, q.State.String(), q.Expiry, pubkey,
	)
	return err
}

func scanMintQuote(row *sql.Row) (storage.MintQuote, error) {
	var q storage.MintQuote
	var state string
	var pubkey sql.NullString

	err := row.Scan(&q.Id, &q.Amount, &q.Unit, &q.PaymentRequest, &q.PaymentHash, &q.Address, &q.MinConfirmations, &q.ObservedTxid, &state, &q.Expiry, &pubkey)
	if err != nil {
		return storage.MintQuote{}, err
	}
	q.State = storage.StringToQuoteState(state)

	if pubkey.Valid && len(pubkey.String) > 0 {
		hexPubkey, err := hex.DecodeString(pubkey.String)
		if err != nil {
			return storage.MintQuote{}, fmt.Errorf("invalid public key in db: %v", err)
		}
		pk, err := secp256k1.ParsePubKey(hexPubkey)
		if err != nil {
			return storage.MintQuote{}, fmt.Errorf("invalid public key in db: %v", err)
		}
		q.Pubkey = pk
	}

	return q, nil
}

const mintQuoteColumns = "id, amount, unit, payment_request, payment_hash, address, min_confirmations, observed_txid, state, expiry, pubkey"

func (s *SQLiteDB) GetMintQuote(id string) (storage.MintQuote, error) {
	row := s.db.QueryRow("SELECT "+mintQuoteColumns+" FROM mint_quotes WHERE id = ?", id)
	return scanMintQuote(row)
}

func (s *SQLiteDB) GetMintQuoteByPaymentHash(paymentHash string) (storage.MintQuote, error) {
	row := s.db.QueryRow("SELECT "+mintQuoteColumns+" FROM mint_quotes WHERE payment_hash = ?", paymentHash)
	return scanMintQuote(row)
}

func (s *SQLiteDB) GetMintQuoteByAddress(address string) (storage.MintQuote, error) {
	row := s.db.QueryRow("SELECT "+mintQuoteColumns+" FROM mint_quotes WHERE address = ?", address)
	return scanMintQuote(row)
}

func (s *SQLiteDB) UpdateMintQuoteState(quoteId string, state storage.QuoteState) error {
	result, err := s.db.Exec("UPDATE mint_quotes SET state = ? WHERE id = ?", state.String(), quoteId)
	if err != nil {
		return err
	}
	count, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if count != 1 {
		return errors.New("mint quote was not updated")
	}
	return nil
}

// IssueMintQuote atomically consumes a mint quote and persists the
// signatures issued for it. The UPDATE's WHERE clause only matches a
// quote still in the paid state, so a second concurrent call with the
// same quote id affects zero rows and is reported as already issued.
func (s *SQLiteDB) IssueMintQuote(quoteId string, B_s []string, signatures cashu.BlindedSignatures) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}

	result, err := tx.Exec("UPDATE mint_quotes SET state = ? WHERE id = ? AND state = ?",
		storage.QuoteConsumed.String(), quoteId, storage.QuotePaid.String())
	if err != nil {
		tx.Rollback()
		return err
	}
	count, err := result.RowsAffected()
	if err != nil {
		tx.Rollback()
		return err
	}
	if count != 1 {
		tx.Rollback()
		return &cashu.MintQuoteAlreadyIssuedErr
	}

	if err := insertBlindSignatures(tx, B_s, signatures); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}

func (s *SQLiteDB) SaveMeltQuote(q storage.MeltQuote) error {
	_, err := s.db.Exec(
		`INSERT INTO melt_quotes (id, unit, payment_request, payment_hash, address, amount, fee_reserve, state, expiry, preimage, txid)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		q.Id, q.Unit, q.PaymentRequest, q.PaymentHash, q.Address, q.Amount, q.FeeReserve, q.State.String(), q.Expiry, q.Preimage, q.Txid,
	)
	return err
}

const meltQuoteColumns = "id, unit, payment_request, payment_hash, address, amount, fee_reserve, state, expiry, preimage, txid"

func scanMeltQuote(row *sql.Row) (storage.MeltQuote, error) {
	var q storage.MeltQuote
	var state string
	err := row.Scan(&q.Id, &q.Unit, &q.PaymentRequest, &q.PaymentHash, &q.Address, &q.Amount, &q.FeeReserve, &state, &q.Expiry, &q.Preimage, &q.Txid)
	if err != nil {
		return storage.MeltQuote{}, err
	}
	q.State = storage.StringToQuoteState(state)
	return q, nil
}

func (s *SQLiteDB) GetMeltQuote(id string) (storage.MeltQuote, error) {
	row := s.db.QueryRow("SELECT "+meltQuoteColumns+" FROM melt_quotes WHERE id = ?", id)
	return scanMeltQuote(row)
}

func (s *SQLiteDB) GetMeltQuoteByPaymentRequest(paymentRequest string) (*storage.MeltQuote, error) {
	row := s.db.QueryRow("SELECT "+meltQuoteColumns+" FROM melt_quotes WHERE payment_request = ?", paymentRequest)
	q, err := scanMeltQuote(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &q, nil
}

func (s *SQLiteDB) GetMeltQuoteByAddress(address string) (*storage.MeltQuote, error) {
	row := s.db.QueryRow("SELECT "+meltQuoteColumns+" FROM melt_quotes WHERE address = ?", address)
	q, err := scanMeltQuote(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &q, nil
}

func (s *SQLiteDB) UpdateMeltQuoteState(quoteId string, state storage.QuoteState) error {
	result, err := s.db.Exec("UPDATE melt_quotes SET state = ? WHERE id = ?", state.String(), quoteId)
	if err != nil {
		return err
	}
	count, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if count != 1 {
		return errors.New("melt quote was not updated")
	}
	return nil
}

// Melt atomically marks the input proofs used, records the payout
// preimage or txid and transitions the quote to consumed, and persists any
// change signatures.
func (s *SQLiteDB) Melt(inputs cashu.Proofs, quoteId string, preimageOrTxid string, B_s []string, change cashu.BlindedSignatures) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}

	if err := insertUsedProofs(tx, inputs); err != nil {
		tx.Rollback()
		return err
	}

	result, err := tx.Exec(
		"UPDATE melt_quotes SET state = ?, preimage = ?, txid = ? WHERE id = ? AND state != ?",
		storage.QuoteConsumed.String(), preimageOrTxid, preimageOrTxid, quoteId, storage.QuoteConsumed.String(),
	)
	if err != nil {
		tx.Rollback()
		return err
	}
	count, err := result.RowsAffected()
	if err != nil {
		tx.Rollback()
		return err
	}
	if count != 1 {
		tx.Rollback()
		return &cashu.MeltQuoteAlreadyPaidErr
	}

	if len(change) > 0 {
		if err := insertBlindSignatures(tx, B_s, change); err != nil {
			tx.Rollback()
			return err
		}
	}

	if _, err := tx.Exec(
		`DELETE FROM proofs_pending WHERE melt_quote_id = ?`, quoteId,
	); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}

func (s *SQLiteDB) SaveBlindSignatures(B_s []string, blindSignatures cashu.BlindedSignatures) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	if err := insertBlindSignatures(tx, B_s, blindSignatures); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *SQLiteDB) GetBlindSignature(B_ string) (cashu.BlindedSignature, error) {
	row := s.db.QueryRow("SELECT amount, c_, keyset_id FROM blind_signatures WHERE b_ = ?", B_)
	var sig cashu.BlindedSignature
	if err := row.Scan(&sig.Amount, &sig.C_, &sig.Id); err != nil {
		return cashu.BlindedSignature{}, err
	}
	return sig, nil
}

func (s *SQLiteDB) GetBlindSignatures(B_s []string) (cashu.BlindedSignatures, error) {
	if len(B_s) == 0 {
		return nil, nil
	}
	query := `SELECT amount, c_, keyset_id FROM blind_signatures WHERE b_ in (?` + strings.Repeat(",?", len(B_s)-1) + `)`
	args := make([]any, len(B_s))
	for i, b := range B_s {
		args[i] = b
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	signatures := cashu.BlindedSignatures{}
	for rows.Next() {
		var sig cashu.BlindedSignature
		if err := rows.Scan(&sig.Amount, &sig.C_, &sig.Id); err != nil {
			return nil, err
		}
		signatures = append(signatures, sig)
	}
	return signatures, rows.Err()
}

func (s *SQLiteDB) GetIssuedEcash() (map[string]uint64, error) {
	rows, err := s.db.Query("SELECT keyset_id, SUM(amount) FROM blind_signatures GROUP BY keyset_id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	issued := make(map[string]uint64)
	for rows.Next() {
		var keysetId string
		var amount uint64
		if err := rows.Scan(&keysetId, &amount); err != nil {
			return nil, err
		}
		issued[keysetId] = amount
	}
	return issued, rows.Err()
}

func (s *SQLiteDB) GetRedeemedEcash() (map[string]uint64, error) {
	rows, err := s.db.Query("SELECT keyset_id, SUM(amount) FROM proofs_used GROUP BY keyset_id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	redeemed := make(map[string]uint64)
	for rows.Next() {
		var keysetId string
		var amount uint64
		if err := rows.Scan(&keysetId, &amount); err != nil {
			return nil, err
		}
		redeemed[keysetId] = amount
	}
	return redeemed, rows.Err()
}
