package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/term"

	"github.com/custodex/custodex/internal/notify"
)

// cliNotifier renders core notifications on the terminal.
type cliNotifier struct{}

func newCLINotifier() notify.Notifier { return cliNotifier{} }

func (cliNotifier) Notify(n notify.Notification) {
	switch n.Kind {
	case notify.KindSuccess:
		Success(n.Message)
	case notify.KindError:
		Error(n.Message)
	default:
		Info(n.Message)
	}
	if n.Link != "" {
		fmt.Println(Hint(n.Link))
	}
}

// mockReceiptReader confirms every transaction on the first lookup.
// Installed when the CLI runs without a configured contract.
type mockReceiptReader struct{}

func (mockReceiptReader) TransactionReceipt(_ context.Context, txHash common.Hash) (*types.Receipt, error) {
	return &types.Receipt{
		Status: types.ReceiptStatusSuccessful,
		TxHash: txHash,
	}, nil
}

// Confirm asks a yes/no question and returns the answer. Skipped
// (always true) when --yes was given.
func Confirm(question string) bool {
	if Yes {
		return true
	}
	fmt.Printf("%s [y/N]: ", question)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

// promptPassword reads a password from the terminal without echo.
func promptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(b), nil
}
