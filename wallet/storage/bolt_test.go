package storage

import (
	"encoding/hex"
	"log"
	"math/rand/v2"
	"os"
	"reflect"
	"slices"
	"strings"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/cashunuts/mint/cashu"
	"github.com/cashunuts/mint/crypto"
)

var db *BoltDB

func TestMain(m *testing.M) {
	code, err := testMain(m)
	if err != nil {
		log.Println(err)
	}
	os.Exit(code)
}

func testMain(m *testing.M) (int, error) {
	dbpath := "./testdbbolt"
	if err := os.MkdirAll(dbpath, 0750); err != nil {
		return 1, err
	}
	defer os.RemoveAll(dbpath)

	var err error
	db, err = InitBolt(dbpath)
	if err != nil {
		return 1, err
	}
	defer db.Close()

	return m.Run(), nil
}

func TestMnemonicSeed(t *testing.T) {
	mnemonic := "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
	seed := []byte("fakeseedbytesfakeseedbytesfakeseedbytes")

	if err := db.SaveMnemonicSeed(mnemonic, seed); err != nil {
		t.Fatalf("error saving mnemonic and seed: %v", err)
	}
	if got := db.GetMnemonic(); got != mnemonic {
		t.Fatalf("expected mnemonic %q but got %q", mnemonic, got)
	}
	if got := db.GetSeed(); !reflect.DeepEqual(got, seed) {
		t.Fatalf("expected seed %x but got %x", seed, got)
	}
}

func TestProofs(t *testing.T) {
	keysetId1 := "keysetId12345"
	numProofsKeysetId1 := 50
	randomProofs1 := generateRandomProofs(keysetId1, numProofsKeysetId1)

	if err := db.SaveProofs(randomProofs1); err != nil {
		t.Fatalf("error saving proofs: %v", err)
	}

	proofs := db.GetProofs()
	if len(proofs) != numProofsKeysetId1 {
		t.Fatalf("expected '%v' proofs from db but got '%v'", numProofsKeysetId1, len(proofs))
	}

	keysetId2 := "someotherKeysetId123"
	numProofsKeysetId2 := 100
	randomProofs2 := generateRandomProofs(keysetId2, numProofsKeysetId2)
	if err := db.SaveProofs(randomProofs2); err != nil {
		t.Fatalf("error saving proofs: %v", err)
	}

	proofsById := db.GetProofsByKeysetId(keysetId1)
	if len(proofsById) != numProofsKeysetId1 {
		t.Fatalf("expected '%v' proofs from db for keyset '%v' but got '%v'",
			numProofsKeysetId1, keysetId1, len(proofsById))
	}

	sortProofs(randomProofs1)
	sortProofs(proofsById)
	if !reflect.DeepEqual(randomProofs1, proofsById) {
		t.Fatal("proofs from db do not match randomly generated ones saved to db")
	}

	numToDelete := 3
	for i := 0; i < numToDelete; i++ {
		if err := db.DeleteProof(randomProofs1[i].Secret); err != nil {
			t.Fatalf("error deleting proof: %v", err)
		}
	}

	proofsById = db.GetProofsByKeysetId(keysetId1)
	expectedNumProofs := numProofsKeysetId1 - numToDelete
	if len(proofsById) != expectedNumProofs {
		t.Fatalf("expected '%v' proofs from db for keyset '%v' but got '%v'",
			expectedNumProofs, keysetId1, len(proofsById))
	}
}

func TestPendingProofs(t *testing.T) {
	keysetId1 := "pendingKeysetId12345"
	numProofs := 25
	quoteId := "quoteId12345"
	randomProofs := generateRandomProofs(keysetId1, numProofs)

	if err := db.AddPendingProofs(randomProofs, quoteId); err != nil {
		t.Fatalf("error saving pending proofs: %v", err)
	}

	proofsByQuoteId := db.GetPendingProofsByQuoteId(quoteId)
	if len(proofsByQuoteId) != numProofs {
		t.Fatalf("expected '%v' pending proofs from db but got '%v' for quote id '%v'",
			numProofs, len(proofsByQuoteId), quoteId)
	}

	expected := toDBProofs(randomProofs, quoteId)
	sortDBProofs(expected)
	sortDBProofs(proofsByQuoteId)
	if !reflect.DeepEqual(expected, proofsByQuoteId) {
		t.Fatal("pending proofs from db do not match randomly generated ones saved to db")
	}

	all := db.GetPendingProofs()
	if len(all) != numProofs {
		t.Fatalf("expected '%v' pending proofs from db but got '%v'", numProofs, len(all))
	}

	numToDelete := 3
	YsToDelete := make([]string, numToDelete)
	for i := 0; i < numToDelete; i++ {
		YsToDelete[i] = all[i].Y
	}
	if err := db.DeletePendingProofs(YsToDelete); err != nil {
		t.Fatalf("error deleting pending proofs: %v", err)
	}

	all = db.GetPendingProofs()
	if len(all) != numProofs-numToDelete {
		t.Fatalf("expected '%v' pending proofs from db but got '%v'", numProofs-numToDelete, len(all))
	}
}

func TestKeysets(t *testing.T) {
	keyset1 := generateKeyset("http://localhost:3338")
	keyset2 := generateKeyset("http://localhost:3338")
	keyset3 := generateKeyset("http://localhost:8888")

	if err := db.SaveKeyset(&keyset1); err != nil {
		t.Fatalf("error saving keyset: %v", err)
	}
	if err := db.SaveKeyset(&keyset2); err != nil {
		t.Fatalf("error saving keyset: %v", err)
	}
	if err := db.SaveKeyset(&keyset3); err != nil {
		t.Fatalf("error saving keyset: %v", err)
	}

	keysetsMap := db.GetKeysets()
	if len(keysetsMap) != 2 {
		t.Fatalf("expected keyset map of length 2 but got %v", len(keysetsMap))
	}

	keysetFromDb := db.GetKeyset(keyset1.Id)
	if keysetFromDb == nil || !reflect.DeepEqual(keyset1, *keysetFromDb) {
		t.Fatalf("keyset from db does not match %v", keyset1)
	}

	var incrementBy uint32 = 5
	if err := db.IncrementKeysetCounter(keyset2.Id, incrementBy); err != nil {
		t.Fatalf("error updating keyset counter: %v", err)
	}

	if counter := db.GetKeysetCounter(keyset1.Id); counter != 0 {
		t.Fatalf("expected counter for keyset '%v' to be 0 but got %v", keyset1.Id, counter)
	}
	counter := db.GetKeysetCounter(keyset2.Id)
	if counter != incrementBy {
		t.Fatalf("expected counter for keyset '%v' to be %v but got %v", keyset2.Id, incrementBy, counter)
	}

	if err := db.IncrementKeysetCounter(keyset2.Id, 3); err != nil {
		t.Fatalf("error updating keyset counter: %v", err)
	}
	counter = db.GetKeysetCounter(keyset2.Id)
	if counter != incrementBy+3 {
		t.Fatalf("expected counter for keyset '%v' to be %v but got %v", keyset2.Id, incrementBy+3, counter)
	}
}

func TestMintQuotes(t *testing.T) {
	quoteId := "mintQuoteId1"
	quote := generateMintQuote(quoteId)
	if err := db.SaveMintQuote(quote); err != nil {
		t.Fatalf("error saving mint quote: %v", err)
	}

	for i := 0; i < 50; i++ {
		q := generateMintQuote(generateRandomString(32))
		if err := db.SaveMintQuote(q); err != nil {
			t.Fatalf("error saving mint quote: %v", err)
		}
	}

	quoteById := db.GetMintQuoteById(quoteId)
	if quoteById == nil {
		t.Fatal("expected valid quote but got nil")
	}
	if !reflect.DeepEqual(quote, *quoteById) {
		t.Fatal("mint quote from db does not match generated one")
	}

	quotesFromDb := db.GetMintQuotes()
	if len(quotesFromDb) != 51 {
		t.Fatalf("expected '51' mint quotes but got '%v'", len(quotesFromDb))
	}
}

func TestMeltQuotes(t *testing.T) {
	quoteId := "meltQuoteId1"
	quote := generateMeltQuote(quoteId)
	if err := db.SaveMeltQuote(quote); err != nil {
		t.Fatalf("error saving melt quote: %v", err)
	}

	for i := 0; i < 50; i++ {
		q := generateMeltQuote(generateRandomString(32))
		if err := db.SaveMeltQuote(q); err != nil {
			t.Fatalf("error saving melt quote: %v", err)
		}
	}

	quoteById := db.GetMeltQuoteById(quoteId)
	if quoteById == nil {
		t.Fatal("expected valid quote but got nil")
	}
	if !reflect.DeepEqual(quote, *quoteById) {
		t.Fatal("melt quote from db does not match generated one")
	}

	quotesFromDb := db.GetMeltQuotes()
	if len(quotesFromDb) != 51 {
		t.Fatalf("expected '51' melt quotes but got '%v'", len(quotesFromDb))
	}
}

func generateRandomString(length int) string {
	const letters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, length)
	for i := range b {
		b[i] = letters[rand.IntN(len(letters))]
	}
	return string(b)
}

func generateRandomProofs(keysetId string, num int) cashu.Proofs {
	proofs := make(cashu.Proofs, num)
	for i := 0; i < num; i++ {
		proofs[i] = cashu.Proof{
			Amount: 21,
			Id:     keysetId,
			Secret: generateRandomString(64),
			C:      generateRandomString(64),
		}
	}
	return proofs
}

func toDBProofs(proofs cashu.Proofs, quoteId string) []DBProof {
	dbProofs := make([]DBProof, len(proofs))
	for i, proof := range proofs {
		Y := crypto.HashToCurve([]byte(proof.Secret))
		dbProofs[i] = DBProof{
			Y:           hex.EncodeToString(Y.SerializeCompressed()),
			Amount:      proof.Amount,
			Id:          proof.Id,
			Secret:      proof.Secret,
			C:           proof.C,
			MeltQuoteId: quoteId,
		}
	}
	return dbProofs
}

func sortProofs(proofs cashu.Proofs) {
	slices.SortFunc(proofs, func(a, b cashu.Proof) int { return strings.Compare(a.Secret, b.Secret) })
}

func sortDBProofs(proofs []DBProof) {
	slices.SortFunc(proofs, func(a, b DBProof) int { return strings.Compare(a.Secret, b.Secret) })
}

func generateKeyset(mint string) crypto.WalletKeyset {
	return crypto.WalletKeyset{
		Id:          generateRandomString(32),
		MintURL:     mint,
		Unit:        cashu.Sat.String(),
		Active:      true,
		PublicKeys:  make(map[uint64]*secp256k1.PublicKey),
		InputFeePpk: 100,
	}
}

func generateMintQuote(id string) MintQuote {
	return MintQuote{
		QuoteId: id,
		Mint:    "http://localhost:3338",
		Method:  cashu.Bolt11Method,
		State:   QuotePending,
		Unit:    cashu.Sat.String(),
		Amount:  21,
	}
}

func generateMeltQuote(id string) MeltQuote {
	return MeltQuote{
		QuoteId: id,
		Mint:    "http://localhost:3338",
		Method:  cashu.Bolt11Method,
		State:   QuotePending,
		Unit:    cashu.Sat.String(),
		Amount:  21,
	}
}
