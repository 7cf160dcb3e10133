package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/proofmesh-labs/proofmesh-node/internal/chains"
	"github.com/proofmesh-labs/proofmesh-node/internal/database"
	"github.com/proofmesh-labs/proofmesh-node/internal/keystore"
	"github.com/proofmesh-labs/proofmesh-node/internal/wallet"
)

var (
	walletChain  string
	walletName   string
	walletUserID string
	walletID     string
	walletTo     string
	walletAmount string
	walletToken  string
	forceWallet  bool
)

var walletCmd = &cobra.Command{
	Use:   "wallet",
	Short: "Manage blockchain wallets",
	Long: `Manage the node's blockchain wallets.

Supported chains: ethereum, bsc, polygon, solana.

Private keys and mnemonics are stored in the operating system keyring and
never written to the database or log files.`,
}

// walletServices wires the database, keyring and chain registry for one
// wallet command invocation.
type walletServices struct {
	db       *database.SQLiteManager
	manager  *wallet.Manager
	balances *wallet.BalanceService
	txs      *wallet.TxService
}

func newWalletServices() (*walletServices, error) {
	db, err := database.NewSQLiteManager(config)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}

	ks := keystore.NewKeystore(logger)
	registry := chains.NewRegistry(config)

	return &walletServices{
		db:       db,
		manager:  wallet.NewManager(db.Wallets, ks, registry, logger),
		balances: wallet.NewBalanceService(registry, db.Wallets, config, logger),
		txs:      wallet.NewTxService(registry, db.Wallets, db.Transactions, ks, config, logger),
	}, nil
}

func (ws *walletServices) close() {
	ws.db.Close()
}

var walletCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new wallet",
	Long: `Create a new wallet for a specific chain.

A fresh mnemonic is generated and the derived private key is stored in the
OS keyring. The mnemonic is shown once and never stored.

Example:
  proofmesh wallet create --chain ethereum --user-id <id>`,
	Run: func(cmd *cobra.Command, args []string) {
		if walletChain == "" {
			fmt.Println("Error: --chain is required (ethereum, bsc, polygon, solana)")
			os.Exit(1)
		}

		ws, err := newWalletServices()
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		defer ws.close()

		created, err := ws.manager.Create(context.Background(), walletUserID, walletChain, walletName)
		if err != nil {
			fmt.Printf("Error: Failed to create wallet: %v\n", err)
			os.Exit(1)
		}

		fmt.Println()
		fmt.Println("✓ Wallet created successfully")
		fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		fmt.Printf("Wallet ID:  %s\n", created.WalletID)
		fmt.Printf("Chain:      %s\n", walletChain)
		fmt.Printf("Address:    %s\n", created.Address)
		fmt.Println()
		fmt.Println("Recovery phrase (shown once, write it down now):")
		fmt.Printf("  %s\n", created.Mnemonic)
		fmt.Println()
		fmt.Println("Anyone with this phrase controls the wallet. It is not stored anywhere.")
		fmt.Println()
	},
}

var walletImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import an existing wallet from a mnemonic or private key",
	Long: `Import an existing wallet using a recovery phrase or a private key.

The secret is read from a hidden prompt. A 12+ word input is treated as a
mnemonic; anything else as a private key (EVM hex, or Solana 64-byte key as
hex, base58, JSON array or comma-separated bytes).

SECURITY WARNING: never enter a private key on an untrusted system.

Example:
  proofmesh wallet import --chain solana --user-id <id>`,
	Run: func(cmd *cobra.Command, args []string) {
		if walletChain == "" {
			fmt.Println("Error: --chain is required (ethereum, bsc, polygon, solana)")
			os.Exit(1)
		}

		secret, err := promptSecret("Enter mnemonic or private key: ")
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		if strings.TrimSpace(secret) == "" {
			fmt.Println("Error: no secret entered")
			os.Exit(1)
		}

		ws, err := newWalletServices()
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		defer ws.close()

		imported, err := ws.manager.Import(context.Background(), walletUserID, walletChain, secret, walletName)
		if err != nil {
			fmt.Printf("Error: Failed to import wallet: %v\n", err)
			os.Exit(1)
		}

		fmt.Println()
		fmt.Println("✓ Wallet imported successfully")
		fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		fmt.Printf("Wallet ID:  %s\n", imported.WalletID)
		fmt.Printf("Chain:      %s\n", walletChain)
		fmt.Printf("Address:    %s\n", imported.Address)
		fmt.Println()
	},
}

var walletListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all wallets",
	Long:  `Display all wallets stored on this node.`,
	Run: func(cmd *cobra.Command, args []string) {
		ws, err := newWalletServices()
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		defer ws.close()

		wallets, err := ws.manager.List(context.Background(), walletUserID)
		if err != nil {
			fmt.Printf("Error: Failed to list wallets: %v\n", err)
			os.Exit(1)
		}

		if len(wallets) == 0 {
			fmt.Println("No wallets found.")
			fmt.Println()
			fmt.Println("Create a new wallet:")
			fmt.Println("  proofmesh wallet create --chain ethereum")
			return
		}

		fmt.Println("Wallets")
		fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		fmt.Println()

		for _, w := range wallets {
			fmt.Printf("Wallet ID:  %s\n", w.ID)
			fmt.Printf("Chain:      %s\n", w.Chain)
			fmt.Printf("Address:    %s\n", w.Address)
			if w.Name != "" {
				fmt.Printf("Name:       %s\n", w.Name)
			}
			fmt.Println()
		}
	},
}

var walletDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete a wallet and its stored key",
	Long: `Delete a wallet. Its private key is removed from the OS keyring and
its record and transaction history from the database.

Example:
  proofmesh wallet delete --wallet-id <id>`,
	Run: func(cmd *cobra.Command, args []string) {
		if walletID == "" {
			fmt.Println("Error: --wallet-id is required")
			os.Exit(1)
		}

		if !forceWallet {
			fmt.Printf("This permanently deletes wallet %s and its key. Type 'yes' to continue: ", walletID)
			var answer string
			fmt.Scanln(&answer)
			if answer != "yes" {
				fmt.Println("Aborted.")
				return
			}
		}

		ws, err := newWalletServices()
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		defer ws.close()

		if err := ws.manager.Delete(context.Background(), walletID); err != nil {
			fmt.Printf("Error: Failed to delete wallet: %v\n", err)
			os.Exit(1)
		}

		fmt.Println("✓ Wallet deleted")
	},
}

var walletBalanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Show native and token balances for a wallet",
	Long: `Query the native balance and watched stablecoin balances of a wallet.

Example:
  proofmesh wallet balance --wallet-id <id>`,
	Run: func(cmd *cobra.Command, args []string) {
		if walletID == "" {
			fmt.Println("Error: --wallet-id is required")
			os.Exit(1)
		}

		ws, err := newWalletServices()
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		defer ws.close()

		balances, err := ws.balances.GetAllBalances(context.Background(), walletID)
		if err != nil {
			fmt.Printf("Error: Failed to query balances: %v\n", err)
			os.Exit(1)
		}

		fmt.Println("Wallet Balances")
		fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		fmt.Printf("Chain:      %s\n", balances.Chain)
		fmt.Printf("Address:    %s\n", balances.Address)
		fmt.Printf("Native:     %s\n", balances.Native)
		for _, token := range balances.Tokens {
			fmt.Printf("%-10s  %s\n", token.Symbol+":", token.Formatted)
		}
		fmt.Println()
	},
}

var walletSendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send native currency or a token from a wallet",
	Long: `Send a transfer from a wallet. Without --token the native currency is
sent; with --token the given ERC-20 contract is used. Token sends are only
supported on EVM chains.

The amount is a human decimal string, e.g. "0.05".

Example:
  proofmesh wallet send --wallet-id <id> --to 0xabc... --amount 0.05`,
	Run: func(cmd *cobra.Command, args []string) {
		if walletID == "" || walletTo == "" || walletAmount == "" {
			fmt.Println("Error: --wallet-id, --to and --amount are required")
			os.Exit(1)
		}

		ws, err := newWalletServices()
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		defer ws.close()

		ctx := context.Background()

		var result *wallet.TxResult
		if walletToken != "" {
			result, err = ws.txs.SendTokenTransaction(ctx, walletID, walletTo, walletAmount, walletToken)
		} else {
			result, err = ws.txs.SendTransaction(ctx, walletID, walletTo, walletAmount)
		}
		if err != nil {
			fmt.Printf("Error: Transfer failed: %v\n", err)
			os.Exit(1)
		}

		fmt.Println()
		fmt.Println("✓ Transfer submitted")
		fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		fmt.Printf("Hash:       %s\n", result.Hash)
		fmt.Printf("Status:     %s\n", result.Status)
		if result.BlockNumber > 0 {
			fmt.Printf("Block:      %d\n", result.BlockNumber)
		}
		if result.GasUsed > 0 {
			fmt.Printf("Gas used:   %d\n", result.GasUsed)
		}
		fmt.Println()
	},
}

// promptSecret reads a line without echoing it to the terminal
func promptSecret(prompt string) (string, error) {
	fmt.Print(prompt)
	secretBytes, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read secret: %v", err)
	}
	return string(secretBytes), nil
}

func init() {
	rootCmd.AddCommand(walletCmd)

	walletCmd.AddCommand(walletCreateCmd)
	walletCmd.AddCommand(walletImportCmd)
	walletCmd.AddCommand(walletListCmd)
	walletCmd.AddCommand(walletDeleteCmd)
	walletCmd.AddCommand(walletBalanceCmd)
	walletCmd.AddCommand(walletSendCmd)

	walletCmd.PersistentFlags().StringVarP(&walletUserID, "user-id", "u", "", "owning user id")

	walletCreateCmd.Flags().StringVar(&walletChain, "chain", "", "blockchain (ethereum, bsc, polygon, solana)")
	walletCreateCmd.Flags().StringVar(&walletName, "name", "", "display name for the wallet")

	walletImportCmd.Flags().StringVar(&walletChain, "chain", "", "blockchain (ethereum, bsc, polygon, solana)")
	walletImportCmd.Flags().StringVar(&walletName, "name", "", "display name for the wallet")

	walletDeleteCmd.Flags().StringVarP(&walletID, "wallet-id", "w", "", "wallet ID (required)")
	walletDeleteCmd.Flags().BoolVar(&forceWallet, "force", false, "skip confirmation prompt")

	walletBalanceCmd.Flags().StringVarP(&walletID, "wallet-id", "w", "", "wallet ID (required)")

	walletSendCmd.Flags().StringVarP(&walletID, "wallet-id", "w", "", "wallet ID (required)")
	walletSendCmd.Flags().StringVar(&walletTo, "to", "", "recipient address (required)")
	walletSendCmd.Flags().StringVar(&walletAmount, "amount", "", "amount as a decimal string (required)")
	walletSendCmd.Flags().StringVar(&walletToken, "token", "", "ERC-20 token contract address (EVM chains only)")
}
