// Package mint implements the mint-side state machine: keyset
// derivation and rotation, mint/melt quote lifecycles, swaps, and the
// ledger of spent proofs that enforces no ecash is ever redeemed twice.
package mint

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"

	"github.com/cashunuts/mint/cashu"
	"github.com/cashunuts/mint/cashu/nuts/nut06"
	"github.com/cashunuts/mint/crypto"
	"github.com/cashunuts/mint/mint/lightning"
	"github.com/cashunuts/mint/mint/lightning/onchain"
	"github.com/cashunuts/mint/mint/storage"
	"github.com/cashunuts/mint/mint/storage/sqlite"
)

const derivationPathV0 = "m/0'"

// Mint holds everything the mint core needs at runtime: its keysets, its
// backends, and the store of record.
type Mint struct {
	db     storage.MintDB
	logger *slog.Logger
	logFile *os.File

	keysetsMu sync.RWMutex
	keysets   map[string]crypto.MintKeyset
	// activeKeysetId is the id of the keyset currently issued in
	// signatures; every other keyset in keysets is kept only to verify
	// proofs signed before rotation.
	activeKeysetId string

	unit            cashu.Unit
	limits          MintLimits
	lightningClient lightning.Client
	onchainBackend  onchain.Backend
	minConfirmations uint

	mintInfo MintInfo
}

// LoadMint opens (or initializes) the mint's database, derives its
// keyset from a persisted seed, and returns a ready-to-serve Mint.
func LoadMint(config Config) (*Mint, error) {
	mintPath := config.MintPath
	if mintPath == "" {
		homedir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		mintPath = filepath.Join(homedir, ".cashu-mint")
	}
	if err := os.MkdirAll(mintPath, 0750); err != nil {
		return nil, fmt.Errorf("creating mint directory: %w", err)
	}

	db, err := sqlite.InitSQLite(mintPath)
	if err != nil {
		return nil, fmt.Errorf("opening mint database: %w", err)
	}

	seed, err := db.GetSeed()
	if err != nil {
		seed, err = generateSeed()
		if err != nil {
			return nil, fmt.Errorf("generating mint seed: %w", err)
		}
		if err := db.SaveSeed(seed); err != nil {
			return nil, fmt.Errorf("persisting mint seed: %w", err)
		}
	}
	seedHex := hex.EncodeToString(seed)

	logger, logFile, err := setupLogger(mintPath, config.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("setting up logger: %w", err)
	}

	mint := &Mint{
		db:               db,
		logger:           logger,
		logFile:          logFile,
		keysets:          make(map[string]crypto.MintKeyset),
		unit:             cashu.Sat,
		limits:           config.Limits,
		lightningClient:  config.LightningClient,
		onchainBackend:   config.OnchainBackend,
		minConfirmations: config.MinConfirmations,
		mintInfo:         config.MintInfo,
	}

	if err := mint.initKeysets(db, seedHex, config.DerivationPath, config.InputFeePpk); err != nil {
		return nil, err
	}

	mint.logInfof("mint loaded with active keyset %s", mint.activeKeysetId)
	return mint, nil
}

func generateSeed() ([]byte, error) {
	seed := make([]byte, 32)
	if _, err := rand.Read(seed); err != nil {
		return nil, err
	}
	return seed, nil
}

// initKeysets loads persisted keysets from the database, generating the
// first one on a fresh mint, and rotates in a new active keyset whenever
// the configured (path, fee) pair does not match the currently active one
// -- the same "stale keysets go inactive" pattern the reference mint
// uses, adapted to the flat seed-derivation scheme.
func (m *Mint) initKeysets(db storage.MintDB, seedHex, path string, inputFeePpk uint) error {
	if path == "" {
		path = derivationPathV0
	}

	dbKeysets, err := db.GetKeysets()
	if err != nil {
		return fmt.Errorf("reading keysets: %w", err)
	}

	m.keysetsMu.Lock()
	defer m.keysetsMu.Unlock()

	for _, dbks := range dbKeysets {
		ks := crypto.GenerateKeyset(dbks.Seed, dbks.Path, dbks.Unit, dbks.InputFeePpk)
		ks.Active = dbks.Active
		m.keysets[ks.Id] = *ks
		if ks.Active {
			m.activeKeysetId = ks.Id
		}
	}

	active, ok := m.keysets[m.activeKeysetId]
	if ok && active.Path == path && active.InputFeePpk == inputFeePpk {
		return nil
	}

	newKeyset := crypto.GenerateKeyset(seedHex, path, m.unit.String(), inputFeePpk)
	if err := db.SaveKeyset(storage.DBKeyset{
		Id:          newKeyset.Id,
		Unit:        newKeyset.Unit,
		Active:      true,
		Seed:        newKeyset.Seed,
		Path:        newKeyset.Path,
		InputFeePpk: newKeyset.InputFeePpk,
	}); err != nil {
		return fmt.Errorf("saving new keyset: %w", err)
	}

	if ok {
		if err := db.UpdateKeysetActive(active.Id, false); err != nil {
			return fmt.Errorf("deactivating stale keyset: %w", err)
		}
		active.Active = false
		m.keysets[active.Id] = active
	}

	m.keysets[newKeyset.Id] = *newKeyset
	m.activeKeysetId = newKeyset.Id
	return nil
}

// GetActiveKeyset returns the keyset currently used to sign new
// blinded messages.
func (m *Mint) GetActiveKeyset() crypto.MintKeyset {
	m.keysetsMu.RLock()
	defer m.keysetsMu.RUnlock()
	return m.keysets[m.activeKeysetId]
}

// GetKeyset returns the keyset with the given id, including inactive
// ones kept around to verify old proofs.
func (m *Mint) GetKeyset(id string) (crypto.MintKeyset, bool) {
	m.keysetsMu.RLock()
	defer m.keysetsMu.RUnlock()
	ks, ok := m.keysets[id]
	return ks, ok
}

// GetKeysets returns all keysets, sorted for deterministic listing.
func (m *Mint) GetKeysets() []crypto.MintKeyset {
	m.keysetsMu.RLock()
	defer m.keysetsMu.RUnlock()

	out := make([]crypto.MintKeyset, 0, len(m.keysets))
	for _, ks := range m.keysets {
		out = append(out, ks)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Id < out[j].Id })
	return out
}

// RetrieveMintInfo builds the GET /v1/info response body.
func (m *Mint) RetrieveMintInfo() nut06.MintInfo {
	nuts := nut06.NutsMap{
		4: map[string]any{
			"methods": []map[string]any{{"method": cashu.Bolt11Method, "unit": m.unit.String()}},
		},
		5: map[string]any{
			"methods": []map[string]any{{"method": cashu.Bolt11Method, "unit": m.unit.String()}},
		},
		7:  map[string]any{"supported": true},
		8:  map[string]any{"supported": false},
		9:  map[string]any{"supported": false},
		10: map[string]any{"supported": false},
		11: map[string]any{"supported": false},
		12: map[string]any{"supported": false},
	}

	return nut06.MintInfo{
		Name:            m.mintInfo.Name,
		Pubkey:          hex.EncodeToString(m.GetActiveKeyset().MintPubkey.SerializeCompressed()),
		Version:         "cashu-mint/0.1.0",
		Description:     m.mintInfo.Description,
		LongDescription: m.mintInfo.LongDescription,
		Motd:            m.mintInfo.Motd,
		Nuts:            nuts,
	}
}

// Close releases the mint's underlying resources.
func (m *Mint) Close() error {
	if m.logFile != nil {
		m.logFile.Close()
	}
	return m.db.Close()
}

func setupLogger(mintPath string, level LogLevel) (*slog.Logger, *os.File, error) {
	if level == Disable {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), nil, nil
	}

	logFile, err := os.OpenFile(filepath.Join(mintPath, "mint.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, err
	}

	opts := &slog.HandlerOptions{
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			switch a.Key {
			case slog.SourceKey:
				if src, ok := a.Value.Any().(*slog.Source); ok {
					src.File = filepath.Base(src.File)
				}
			case slog.TimeKey:
				a.Value = slog.StringValue(a.Value.Time().Format("2006-01-02 15:04:05"))
			}
			return a
		},
		AddSource: true,
	}
	if level == Debug {
		opts.Level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(io.MultiWriter(os.Stdout, logFile), opts)
	return slog.New(handler), logFile, nil
}

// logInfof, logErrorf and logDebugf preserve the call site of the
// logging call itself rather than this helper's, so log lines point at
// the code that actually logged.
func (m *Mint) logCaller(skip int) slog.Attr {
	var pcs [1]uintptr
	runtime.Callers(skip, pcs[:])
	frames := runtime.CallersFrames(pcs[:])
	frame, _ := frames.Next()
	return slog.Any(slog.SourceKey, &slog.Source{File: frame.File, Line: frame.Line, Function: frame.Function})
}

func (m *Mint) logInfof(format string, args ...any) {
	m.logger.LogAttrs(context.Background(), slog.LevelInfo, fmt.Sprintf(format, args...), m.logCaller(3))
}

func (m *Mint) logErrorf(format string, args ...any) {
	m.logger.LogAttrs(context.Background(), slog.LevelError, fmt.Sprintf(format, args...), m.logCaller(3))
}

func (m *Mint) logDebugf(format string, args ...any) {
	m.logger.LogAttrs(context.Background(), slog.LevelDebug, fmt.Sprintf(format, args...), m.logCaller(3))
}
