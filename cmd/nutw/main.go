// Command nutw is the ecash wallet CLI: balance, mint, send, receive,
// and pay, all driven against a single configured mint.
package main

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/cashunuts/mint/cashu"
	"github.com/cashunuts/mint/wallet"
)

var nutw *wallet.Wallet

func walletConfig() wallet.Config {
	path := setWalletPath()
	config := wallet.Config{WalletPath: path, CurrentMintURL: "http://127.0.0.1:3338"}

	envPath := filepath.Join(path, ".env")
	if _, err := os.Stat(envPath); err != nil {
		if wd, err := os.Getwd(); err == nil {
			envPath = filepath.Join(wd, ".env")
		} else {
			envPath = ""
		}
	}

	if len(envPath) > 0 {
		if err := godotenv.Load(envPath); err == nil {
			config.CurrentMintURL = getMintURL()
		}
	}

	return config
}

func setWalletPath() string {
	homedir, err := os.UserHomeDir()
	if err != nil {
		log.Fatal(err)
	}
	path := filepath.Join(homedir, ".nutw")
	if err := os.MkdirAll(path, 0700); err != nil {
		log.Fatal(err)
	}
	return path
}

func getMintURL() string {
	if mintURL := os.Getenv("MINT_URL"); mintURL != "" {
		return mintURL
	}
	host := os.Getenv("MINT_HOST")
	port := os.Getenv("MINT_PORT")
	if host == "" || port == "" {
		return "http://127.0.0.1:3338"
	}
	u := &url.URL{Scheme: "http", Host: host + ":" + port}
	return u.String()
}

func setupWallet(ctx *cli.Context) error {
	config := walletConfig()
	var err error
	nutw, err = wallet.LoadWallet(config)
	if err != nil {
		printErr(err)
	}
	return nil
}

func printErr(err error) {
	fmt.Println(err)
	os.Exit(1)
}

func main() {
	app := &cli.App{
		Name:  "nutw",
		Usage: "ecash wallet",
		Commands: []*cli.Command{
			balanceCmd,
			mnemonicCmd,
			mintCmd,
			sendCmd,
			receiveCmd,
			payCmd,
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

var balanceCmd = &cli.Command{
	Name:   "balance",
	Usage:  "wallet balance",
	Before: setupWallet,
	Action: getBalance,
}

func getBalance(ctx *cli.Context) error {
	fmt.Printf("mint: %v\n", nutw.MintURL)
	fmt.Printf("balance: %v sats\n", nutw.GetBalance())
	return nil
}

var mnemonicCmd = &cli.Command{
	Name:   "mnemonic",
	Usage:  "print the wallet's recovery phrase",
	Before: setupWallet,
	Action: func(ctx *cli.Context) error {
		fmt.Println(nutw.Mnemonic())
		return nil
	},
}

var mintCmd = &cli.Command{
	Name:      "mint",
	Usage:     "request a mint quote, or redeem a paid one",
	ArgsUsage: "[AMOUNT]",
	Before:    setupWallet,
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "quote", Usage: "redeem tokens for a previously requested, now paid, quote id"},
	},
	Action: mintAction,
}

func mintAction(ctx *cli.Context) error {
	if ctx.IsSet("quote") {
		return redeemQuote(ctx.String("quote"))
	}

	args := ctx.Args()
	if args.Len() < 1 {
		printErr(errors.New("specify an amount to mint"))
	}
	amount, err := strconv.ParseUint(args.First(), 10, 64)
	if err != nil {
		printErr(errors.New("invalid amount"))
	}

	quote, err := nutw.RequestMint(amount)
	if err != nil {
		printErr(err)
	}

	fmt.Printf("invoice: %v\n\n", quote.PaymentRequest)
	fmt.Printf("once paid, redeem with: nutw mint --quote %v\n", quote.QuoteId)
	return nil
}

func redeemQuote(quoteId string) error {
	paid, err := nutw.MintQuoteState(quoteId)
	if err != nil {
		printErr(err)
	}
	if !paid {
		printErr(errors.New("quote has not been paid yet"))
	}

	quote, err := nutw.GetMintQuote(quoteId)
	if err != nil {
		printErr(err)
	}

	proofs, err := nutw.MintTokens(quoteId, quote.Amount)
	if err != nil {
		printErr(err)
	}
	fmt.Printf("%v sats minted\n", proofs.Amount())
	return nil
}

var sendCmd = &cli.Command{
	Name:      "send",
	Usage:     "generate a token to send",
	ArgsUsage: "[AMOUNT]",
	Before:    setupWallet,
	Action:    send,
}

func send(ctx *cli.Context) error {
	args := ctx.Args()
	if args.Len() < 1 {
		printErr(errors.New("specify an amount to send"))
	}
	amount, err := strconv.ParseUint(args.First(), 10, 64)
	if err != nil {
		printErr(errors.New("invalid amount"))
	}

	token, err := nutw.Send(amount)
	if err != nil {
		printErr(err)
	}

	serialized, err := token.Serialize()
	if err != nil {
		printErr(err)
	}
	fmt.Println(serialized)
	return nil
}

var receiveCmd = &cli.Command{
	Name:      "receive",
	Usage:     "receive a token",
	ArgsUsage: "[TOKEN]",
	Before:    setupWallet,
	Action:    receive,
}

func receive(ctx *cli.Context) error {
	args := ctx.Args()
	if args.Len() < 1 {
		printErr(errors.New("token not provided"))
	}

	token, err := cashu.DecodeTokenV3(args.First())
	if err != nil {
		printErr(err)
	}

	amount, err := nutw.Receive(*token)
	if err != nil {
		printErr(err)
	}
	fmt.Printf("%v sats received\n", amount)
	return nil
}

var payCmd = &cli.Command{
	Name:      "pay",
	Usage:     "pay a lightning invoice",
	ArgsUsage: "[INVOICE]",
	Before:    setupWallet,
	Action:    pay,
}

func pay(ctx *cli.Context) error {
	args := ctx.Args()
	if args.Len() < 1 {
		printErr(errors.New("invoice not provided"))
	}

	fmt.Println("requesting melt quote...")
	resp, err := nutw.PayInvoice(args.First())
	if err != nil {
		printErr(err)
	}

	if !resp.Paid {
		printErr(errors.New("payment failed"))
	}
	fmt.Printf("payment sent, preimage: %v\n", resp.Preimage)
	return nil
}
