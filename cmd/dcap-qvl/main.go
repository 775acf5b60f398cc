// dcap-qvl decodes and verifies Intel SGX/TDX DCAP quotes.
package main

import (
	"crypto/x509"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/edgelesssys/go-dcap-qvl/verification"
	"github.com/edgelesssys/go-dcap-qvl/verification/crypto"
	"github.com/edgelesssys/go-dcap-qvl/verification/pcs"
	"github.com/edgelesssys/go-dcap-qvl/verification/types"
	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("Error: %v", err))
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "dcap-qvl",
		Usage: "decode and verify Intel SGX/TDX DCAP quotes",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "enable debug logging",
			},
		},
		Before: func(ctx *cli.Context) error {
			if ctx.Bool("verbose") {
				logrus.SetLevel(logrus.DebugLevel)
			}
			return nil
		},
		Commands: []*cli.Command{
			decodeCommand(),
			verifyCommand(),
			collateralCommand(),
		},
	}
}

func decodeCommand() *cli.Command {
	return &cli.Command{
		Name:      "decode",
		Usage:     "decode a quote and print it as JSON",
		ArgsUsage: "<quote-file>",
		Flags:     []cli.Flag{hexFlag()},
		Action: func(ctx *cli.Context) error {
			rawQuote, err := readQuote(ctx)
			if err != nil {
				return err
			}
			quote, err := types.ParseQuote(rawQuote)
			if err != nil {
				return fmt.Errorf("parsing quote: %w", err)
			}
			return printJSON(quote)
		},
	}
}

func verifyCommand() *cli.Command {
	return &cli.Command{
		Name:      "verify",
		Usage:     "verify a quote against collateral and print the result",
		ArgsUsage: "<quote-file>",
		Flags: []cli.Flag{
			hexFlag(),
			pccsFlag(),
			&cli.StringFlag{
				Name:  "collateral",
				Usage: "verify against recorded collateral from `FILE` instead of fetching it",
			},
			&cli.StringFlag{
				Name:  "root",
				Usage: "trust PEM root CA certificate from `FILE` instead of the Intel SGX Root CA",
			},
			&cli.StringFlag{
				Name:  "time",
				Usage: "verify at the given RFC 3339 `TIME` instead of now",
			},
		},
		Action: func(ctx *cli.Context) error {
			rawQuote, err := readQuote(ctx)
			if err != nil {
				return err
			}
			collateral, err := loadCollateral(ctx, rawQuote)
			if err != nil {
				return err
			}
			trustedRoot, err := loadTrustedRoot(ctx)
			if err != nil {
				return err
			}
			verificationTime, err := loadVerificationTime(ctx)
			if err != nil {
				return err
			}

			result, err := verification.VerifyQuote(rawQuote, collateral, trustedRoot, verificationTime)
			if err != nil {
				return err
			}

			fmt.Println(color.GreenString("✔ quote verified, TCB status: %s", result.Status))
			if len(result.StaleCollateral) > 0 {
				fmt.Println(color.YellowString("⚠ stale collateral: %s", strings.Join(result.StaleCollateral, ", ")))
			}
			return printJSON(result)
		},
	}
}

func collateralCommand() *cli.Command {
	return &cli.Command{
		Name:      "collateral",
		Usage:     "fetch verification collateral for a quote and print it as JSON",
		ArgsUsage: "<quote-file>",
		Flags:     []cli.Flag{hexFlag(), pccsFlag()},
		Action: func(ctx *cli.Context) error {
			rawQuote, err := readQuote(ctx)
			if err != nil {
				return err
			}
			client, err := pcsClient(ctx)
			if err != nil {
				return err
			}
			collateral, err := client.GetCollateral(ctx.Context, rawQuote)
			if err != nil {
				return err
			}
			return printJSON(collateral)
		},
	}
}

func hexFlag() *cli.BoolFlag {
	return &cli.BoolFlag{
		Name:  "hex",
		Usage: "quote file is hex encoded",
	}
}

func pccsFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "pccs-url",
		Usage:   "fetch collateral from the PCCS at `URL` instead of Intel's PCS",
		EnvVars: []string{"PCCS_URL"},
	}
}

func readQuote(ctx *cli.Context) ([]byte, error) {
	if ctx.NArg() != 1 {
		return nil, errors.New("expected exactly one quote file argument")
	}
	data, err := os.ReadFile(ctx.Args().First())
	if err != nil {
		return nil, fmt.Errorf("reading quote: %w", err)
	}
	if ctx.Bool("hex") {
		cleaned := strings.TrimPrefix(strings.TrimSpace(string(data)), "0x")
		data, err = hex.DecodeString(cleaned)
		if err != nil {
			return nil, fmt.Errorf("decoding hex quote: %w", err)
		}
	}
	return data, nil
}

func loadCollateral(ctx *cli.Context, rawQuote []byte) (*types.Collateral, error) {
	if collateralFile := ctx.String("collateral"); collateralFile != "" {
		data, err := os.ReadFile(collateralFile)
		if err != nil {
			return nil, fmt.Errorf("reading collateral: %w", err)
		}
		collateral := &types.Collateral{}
		if err := json.Unmarshal(data, collateral); err != nil {
			return nil, fmt.Errorf("parsing collateral: %w", err)
		}
		return collateral, nil
	}

	client, err := pcsClient(ctx)
	if err != nil {
		return nil, err
	}
	return client.GetCollateral(ctx.Context, rawQuote)
}

func loadTrustedRoot(ctx *cli.Context) (*x509.Certificate, error) {
	rootFile := ctx.String("root")
	if rootFile == "" {
		return pcs.IntelRootCA(), nil
	}
	pemData, err := os.ReadFile(rootFile)
	if err != nil {
		return nil, fmt.Errorf("reading root certificate: %w", err)
	}
	certs, err := crypto.ParsePEMCertificateChain(pemData)
	if err != nil {
		return nil, fmt.Errorf("parsing root certificate: %w", err)
	}
	if len(certs) != 1 {
		return nil, fmt.Errorf("expected exactly one root certificate, got %d", len(certs))
	}
	return certs[0], nil
}

func loadVerificationTime(ctx *cli.Context) (time.Time, error) {
	timeFlag := ctx.String("time")
	if timeFlag == "" {
		return time.Now(), nil
	}
	verificationTime, err := time.Parse(time.RFC3339, timeFlag)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing verification time: %w", err)
	}
	return verificationTime, nil
}

func pcsClient(ctx *cli.Context) (*pcs.TrustedServicesClient, error) {
	if endpoint := ctx.String("pccs-url"); endpoint != "" {
		return pcs.NewWithEndpoint(endpoint)
	}
	return pcs.New(), nil
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", " ")
	if err != nil {
		return fmt.Errorf("marshaling output: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
