package commands

import (
	"context"
	"fmt"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common"

	"github.com/custodex/custodex/internal/chain"
	"github.com/custodex/custodex/internal/config"
	"github.com/custodex/custodex/internal/dispatch"
	"github.com/custodex/custodex/internal/escrow"
	"github.com/custodex/custodex/internal/identity"
	"github.com/custodex/custodex/internal/inbox"
	"github.com/custodex/custodex/internal/lifecycle"
	"github.com/custodex/custodex/internal/logging"
	"github.com/custodex/custodex/internal/notify"
)

// Root command persistent flags.
var (
	// ConfigPath is the --config flag value.
	ConfigPath string

	// Yes skips interactive confirmation before signing.
	Yes bool
)

// App bundles the wired client components one command invocation uses.
type App struct {
	Config     *config.Config
	Chain      *chain.Client
	Contract   *escrow.EscrowContract
	Token      *escrow.TokenContract
	Wallet     *identity.Wallet
	Controller *lifecycle.Controller
	Dispatcher *dispatch.Dispatcher
	Inbox      *inbox.Inbox
	Feed       *inbox.ActivityFeed
	Notifier   notify.Notifier
	Viewer     common.Address
}

// NewApp loads config and wires the client. With needSigner the wallet
// must exist and decrypt; without it the client runs read-only. When
// no escrow contract address is configured everything runs against the
// in-memory mock, which keeps the CLI usable for demos and tests.
func NewApp(ctx context.Context, needSigner bool) (*App, error) {
	path := ConfigPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logging.Configure(cfg.Log.Level, cfg.Log.Format, os.Stderr)

	app := &App{
		Config:   cfg,
		Notifier: newCLINotifier(),
	}

	app.Wallet, err = identity.Load(cfg.Wallet.KeystoreDir)
	if err != nil {
		return nil, err
	}
	if app.Wallet != nil {
		app.Viewer = app.Wallet.Address()
	} else if cfg.Wallet.Address != "" {
		app.Viewer = common.HexToAddress(cfg.Wallet.Address)
	}
	if needSigner && app.Wallet == nil {
		return nil, fmt.Errorf("no wallet found in %s (run 'custodex wallet create' first)", cfg.Wallet.KeystoreDir)
	}

	if cfg.Contracts.Escrow == "" {
		app.Contract = escrow.NewMockEscrowContract()
		app.Token = escrow.NewMockTokenContract()
		logging.Warn("no escrow contract configured, using in-memory mock")
	} else {
		if err := app.connect(ctx, cfg, needSigner); err != nil {
			return nil, err
		}
	}

	poller := lifecycle.NewReceiptPoller(receiptReader(app)).
		WithInterval(cfg.Polling.Interval).
		WithTimeout(cfg.Polling.Timeout)

	app.Inbox = inbox.New(app.Contract, app.Viewer,
		inbox.WithRefreshInterval(cfg.Inbox.RefreshInterval))

	app.Controller = lifecycle.NewController(poller, app.Notifier,
		lifecycle.WithGraceDelay(cfg.Polling.GraceDelay),
		lifecycle.WithExplorerBase(cfg.Chain.ExplorerURL),
		lifecycle.WithOnPaymentsChanged(func() {
			if err := app.Inbox.ForceRefresh(context.Background()); err != nil {
				logging.Debug("post-confirmation refresh failed", logging.Err(err))
			}
		}))

	app.Dispatcher = dispatch.NewDispatcher(app.Contract, app.Token, app.Controller, app.Notifier, app.Viewer)
	return app, nil
}

func (a *App) connect(ctx context.Context, cfg *config.Config, needSigner bool) error {
	chainCfg := chain.DefaultConfig()
	chainCfg.RPCURL = cfg.Chain.RPCURL
	chainCfg.ChainID = cfg.Chain.ChainID
	chainCfg.BlockConfirmations = int(cfg.Chain.Confirmations)
	if cfg.Chain.MaxGasPrice != "" {
		gwei, ok := new(big.Int).SetString(cfg.Chain.MaxGasPrice, 10)
		if !ok {
			return fmt.Errorf("invalid max_gas_price_gwei: %s", cfg.Chain.MaxGasPrice)
		}
		chainCfg.MaxGasPrice = new(big.Int).Mul(gwei, big.NewInt(1e9))
	}

	var err error
	if needSigner {
		password, perr := identity.ResolvePassword(cfg.Wallet.PasswordFile)
		if perr != nil {
			return perr
		}
		if password == "" {
			password, perr = promptPassword("Wallet password: ")
			if perr != nil {
				return perr
			}
		}
		key, kerr := a.Wallet.PrivateKey(password)
		if kerr != nil {
			return kerr
		}
		a.Chain, err = chain.NewClient(chainCfg, key)
	} else {
		a.Chain, err = chain.NewClient(chainCfg, nil)
	}
	if err != nil {
		return err
	}
	if err := a.Chain.Connect(ctx); err != nil {
		return err
	}

	a.Contract, err = escrow.NewEscrowContract(a.Chain, common.HexToAddress(cfg.Contracts.Escrow))
	if err != nil {
		return err
	}
	a.Token, err = escrow.NewTokenContract(a.Chain, common.HexToAddress(cfg.Contracts.Token))
	if err != nil {
		return err
	}

	a.Feed = inbox.NewActivityFeed(a.Chain, a.Contract.Address(), a.Contract.ABI()).
		WithLookback(cfg.Inbox.LookbackBlocks)
	return nil
}

// receiptReader returns the receipt source: the chain client when
// connected, otherwise a mock that confirms immediately.
func receiptReader(a *App) lifecycle.ReceiptReader {
	if a.Chain != nil {
		return a.Chain
	}
	return mockReceiptReader{}
}

// Close releases the RPC connection and the cached signing key.
func (a *App) Close() {
	if a.Chain != nil {
		a.Chain.Close()
	}
	if a.Wallet != nil {
		a.Wallet.ClearCachedKey()
	}
}
