package main

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"

	"github.com/alanyoungcy/tokenbet/internal/client"
	"github.com/alanyoungcy/tokenbet/internal/config"
	"github.com/alanyoungcy/tokenbet/internal/crypto"
)

type rootOpts struct {
	configPath string
	apiURL     string
}

func newRootCmd() *cobra.Command {
	opts := &rootOpts{}
	root := &cobra.Command{
		Use:           "betctl",
		Short:         "tokenbet client tools",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "configuration file holding the wallet section")
	root.PersistentFlags().StringVar(&opts.apiURL, "api", "", "API base URL (overrides wallet.api_url)")

	root.AddCommand(
		keygenCmd(),
		addressCmd(opts),
		signCmd(opts),
		callCmd(opts),
		betCmd(opts),
		quoteCmd(opts),
		claimCmd(opts),
		refundCmd(opts),
	)
	return root
}

func (o *rootOpts) load() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.apiURL != "" {
		cfg.Wallet.APIURL = o.apiURL
	}
	return cfg, nil
}

func (o *rootOpts) signer() (*crypto.Signer, *config.Config, error) {
	cfg, err := o.load()
	if err != nil {
		return nil, nil, err
	}
	pk, err := crypto.LoadKey(crypto.KeyConfig{
		RawPrivateKey:    cfg.Wallet.PrivateKey,
		EncryptedKeyPath: cfg.Wallet.EncryptedKeyPath,
		KeyPassword:      cfg.Wallet.KeyPassword,
	})
	if err != nil {
		return nil, nil, err
	}
	return crypto.NewSignerFromKey(pk), cfg, nil
}

func (o *rootOpts) client() (*client.Client, error) {
	signer, cfg, err := o.signer()
	if err != nil {
		return nil, err
	}
	return client.New(cfg.Wallet.APIURL, signer), nil
}

func keygenCmd() *cobra.Command {
	var out, password string
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a signing key",
		Long:  "Generate a secp256k1 key. With --out the key is written encrypted; otherwise the raw hex key is printed.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pk, err := ethcrypto.GenerateKey()
			if err != nil {
				return err
			}
			addr := crypto.NewSignerFromKey(pk).Address()
			if out != "" {
				if password == "" {
					return fmt.Errorf("--password is required with --out")
				}
				if err := crypto.WriteKeyFile(out, pk, password); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "address: %s\nkey file: %s\n", addr, out)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "address: %s\nprivate key: 0x%s\n", addr, hex.EncodeToString(ethcrypto.FromECDSA(pk)))
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "write an encrypted key file to this path")
	cmd.Flags().StringVar(&password, "password", "", "password for the encrypted key file")
	return cmd
}

func addressCmd(opts *rootOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "address",
		Short: "Print the address of the configured key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, _, err := opts.signer()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), s.Address())
			return nil
		},
	}
}

// readBody returns the request body argument. "-" reads stdin.
func readBody(cmd *cobra.Command, args []string, idx int) ([]byte, error) {
	if len(args) <= idx {
		return nil, nil
	}
	if args[idx] == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return []byte(args[idx]), nil
}

func signCmd(opts *rootOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "sign METHOD PATH [BODY]",
		Short: "Print the authentication headers for a request",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := opts.signer()
			if err != nil {
				return err
			}
			body, err := readBody(cmd, args, 2)
			if err != nil {
				return err
			}
			headers, err := s.AuthHeaders(strings.ToUpper(args[0]), args[1], body)
			if err != nil {
				return err
			}
			for _, k := range []string{crypto.HeaderAddress, crypto.HeaderTimestamp, crypto.HeaderNonce, crypto.HeaderSignature} {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", k, headers[k])
			}
			return nil
		},
	}
}

func callCmd(opts *rootOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "call METHOD PATH [BODY]",
		Short: "Send a signed request and print the response",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			body, err := readBody(cmd, args, 2)
			if err != nil {
				return err
			}
			raw, err := c.Do(cmd.Context(), strings.ToUpper(args[0]), args[1], body)
			if err != nil {
				return err
			}
			return printRaw(cmd.OutOrStdout(), raw)
		},
	}
}

func betCmd(opts *rootOpts) *cobra.Command {
	var amount uint64
	cmd := &cobra.Command{
		Use:   "bet COMPETITION ASSET",
		Short: "Place a bet on one asset of a competition",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			bet, err := c.PlaceBet(cmd.Context(), args[0], args[1], amount)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), bet)
		},
	}
	cmd.Flags().Uint64Var(&amount, "amount", config.Defaults().Platform.StakeAmount, "stake in base units")
	return cmd
}

func quoteCmd(opts *rootOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "quote COMPETITION [PARTICIPANT]",
		Short: "Preview a payout; the participant defaults to the configured key",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			participant := c.Address()
			if len(args) == 2 {
				participant = args[1]
			}
			q, err := c.Quote(cmd.Context(), args[0], participant)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), q)
		},
	}
}

func claimCmd(opts *rootOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "claim COMPETITION",
		Short: "Claim winnings from a resolved competition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			bet, err := c.Claim(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), bet)
		},
	}
}

func refundCmd(opts *rootOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "refund COMPETITION",
		Short: "Recover the stake from a paused or cancelled competition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			bet, err := c.Refund(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), bet)
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printRaw(w io.Writer, raw []byte) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		_, err = w.Write(raw)
		return err
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(w)
	return err
}

