package mint

import (
	"log"
	"os"
	"strconv"

	"github.com/cashunuts/mint/mint/lightning"
	"github.com/cashunuts/mint/mint/lightning/onchain"
)

// LogLevel controls the verbosity of the mint's slog logger.
type LogLevel int

const (
	Info LogLevel = iota
	Debug
	Disable
)

type MintMethodSettings struct {
	MinAmount uint64
	MaxAmount uint64
}

type MeltMethodSettings struct {
	MinAmount uint64
	MaxAmount uint64
}

// MintLimits bounds how much the mint will issue or pay out, and how
// large its outstanding liability (MaxBalance) may grow.
type MintLimits struct {
	MaxBalance      uint64
	MintingSettings MintMethodSettings
	MeltingSettings MeltMethodSettings
}

// Config configures a running mint: where its state lives, its keyset
// derivation parameters, request limits, and the backends it pays out
// through.
type Config struct {
	MintPath        string
	Port            string
	DerivationPath  string
	InputFeePpk     uint
	Limits          MintLimits
	LogLevel        LogLevel
	LightningClient lightning.Client
	OnchainBackend  onchain.Backend
	MinConfirmations uint
	MintInfo        MintInfo
}

// MintInfo is operator-supplied metadata surfaced via GET /v1/info.
type MintInfo struct {
	Name            string
	Description     string
	LongDescription string
	Motd            string
}

func envUint(key string) uint64 {
	val, ok := os.LookupEnv(key)
	if !ok {
		return 0
	}
	n, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		log.Fatalf("invalid %s: %v", key, err)
	}
	return n
}

// GetConfig reads mint configuration from the environment, the way the
// reference mint server does; operators wanting a .env file can load it
// first with joho/godotenv before calling this.
func GetConfig() Config {
	limits := MintLimits{
		MaxBalance: envUint("MAX_BALANCE"),
		MintingSettings: MintMethodSettings{
			MinAmount: envUint("MINTING_MIN_AMOUNT"),
			MaxAmount: envUint("MINTING_MAX_AMOUNT"),
		},
		MeltingSettings: MeltMethodSettings{
			MinAmount: envUint("MELTING_MIN_AMOUNT"),
			MaxAmount: envUint("MELTING_MAX_AMOUNT"),
		},
	}

	return Config{
		MintPath:         os.Getenv("MINT_PATH"),
		Port:             os.Getenv("MINT_PORT"),
		DerivationPath:   os.Getenv("MINT_DERIVATION_PATH"),
		InputFeePpk:      uint(envUint("INPUT_FEE_PPK")),
		MinConfirmations: uint(envUint("MIN_CONFIRMATIONS")),
		Limits:           limits,
		MintInfo: MintInfo{
			Name:            os.Getenv("MINT_NAME"),
			Description:     os.Getenv("MINT_DESCRIPTION"),
			LongDescription: os.Getenv("MINT_DESCRIPTION_LONG"),
			Motd:            os.Getenv("MINT_MOTD"),
		},
	}
}
