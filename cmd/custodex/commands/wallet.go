package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodex/custodex/internal/config"
	"github.com/custodex/custodex/internal/identity"
)

func NewWalletCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wallet",
		Short: "Wallet management",
		Long: `Manage the signing wallet used for escrow transactions.

Subcommands:
  wallet create     Generate a new encrypted keystore
  wallet import     Import an existing private key
  wallet address    Show the wallet address
  wallet password   Store or remove the password in the OS keyring`,
	}

	cmd.AddCommand(newWalletCreateCmd())
	cmd.AddCommand(newWalletImportCmd())
	cmd.AddCommand(newWalletAddressCmd())
	cmd.AddCommand(newWalletPasswordCmd())
	return cmd
}

func walletConfig() (*config.Config, error) {
	path := ConfigPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	return config.Load(path)
}

// promptNewPassword asks for a password twice and enforces a minimum
// length. Used for keystore creation and import.
func promptNewPassword() (string, error) {
	password, err := promptPassword("New wallet password: ")
	if err != nil {
		return "", err
	}
	confirm, err := promptPassword("Confirm password: ")
	if err != nil {
		return "", err
	}
	if password != confirm {
		return "", fmt.Errorf("passwords do not match")
	}
	if len(password) < 8 {
		return "", fmt.Errorf("password must be at least 8 characters")
	}
	return password, nil
}

func newWalletCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Generate a new wallet",
		Long:  "Generate a new key pair and store it as an encrypted keystore file.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := walletConfig()
			if err != nil {
				return err
			}

			password, err := promptNewPassword()
			if err != nil {
				return err
			}

			w, err := identity.Create(cfg.Wallet.KeystoreDir, password)
			if err != nil {
				return err
			}

			Success("Wallet created")
			fmt.Println(StatusBox("Wallet", [][2]string{
				{"Address", w.Address().Hex()},
				{"Keystore", w.KeystoreDir()},
			}))
			fmt.Println(Hint("fund this address with ETH for gas and USDC for payments"))
			return nil
		},
	}
}

func newWalletImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import [private-key-hex]",
		Short: "Import a private key",
		Long:  "Import a hex-encoded private key into a new encrypted keystore file.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := walletConfig()
			if err != nil {
				return err
			}

			password, err := promptNewPassword()
			if err != nil {
				return err
			}

			w, err := identity.Import(cfg.Wallet.KeystoreDir, args[0], password)
			if err != nil {
				return err
			}

			Success("Wallet imported")
			fmt.Printf("Address: %s\n", w.Address().Hex())
			return nil
		},
	}
}

func newWalletAddressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "address",
		Short: "Show the wallet address",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := walletConfig()
			if err != nil {
				return err
			}
			w, err := identity.Load(cfg.Wallet.KeystoreDir)
			if err != nil {
				return err
			}
			if w == nil {
				return fmt.Errorf("no wallet found in %s (run 'custodex wallet create' first)", cfg.Wallet.KeystoreDir)
			}
			fmt.Println(w.Address().Hex())
			return nil
		},
	}
}

func newWalletPasswordCmd() *cobra.Command {
	var clear bool

	cmd := &cobra.Command{
		Use:   "password",
		Short: "Store the wallet password in the OS keyring",
		Long: `Store the wallet password in the operating system keyring so
transactions can be signed without prompting. Use --clear to remove it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if clear {
				if err := identity.DeleteWalletPassword(); err != nil {
					return err
				}
				Success("Wallet password removed from keyring")
				return nil
			}

			cfg, err := walletConfig()
			if err != nil {
				return err
			}
			w, err := identity.Load(cfg.Wallet.KeystoreDir)
			if err != nil {
				return err
			}
			if w == nil {
				return fmt.Errorf("no wallet found in %s", cfg.Wallet.KeystoreDir)
			}

			password, err := promptPassword("Wallet password: ")
			if err != nil {
				return err
			}
			// Verify before storing so a typo does not get persisted.
			if _, err := w.PrivateKey(password); err != nil {
				return fmt.Errorf("password verification failed: %w", err)
			}
			w.ClearCachedKey()

			backend, err := identity.StoreWalletPassword(password)
			if err != nil {
				return err
			}
			Success(fmt.Sprintf("Wallet password stored in %s", backend))
			return nil
		},
	}

	cmd.Flags().BoolVar(&clear, "clear", false, "Remove the stored password")
	return cmd
}
