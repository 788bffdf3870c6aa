package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/nextid/blockchain/pkg/chain"
	"github.com/nextid/blockchain/pkg/chain/registry"
	"github.com/nextid/blockchain/pkg/config"
	"github.com/nextid/blockchain/pkg/document"
	"github.com/nextid/blockchain/pkg/logger"
	"github.com/nextid/blockchain/pkg/metrics"
	"github.com/nextid/blockchain/pkg/notify"
	"github.com/nextid/blockchain/pkg/storage"
	"github.com/nextid/blockchain/pkg/verify"
	"github.com/nextid/blockchain/pkg/verify/dnstxt"
	"github.com/nextid/blockchain/pkg/verify/storestatus"
	"github.com/nextid/blockchain/pkg/worker"
)

var (
	configPath = flag.String("config", "", "Path to configuration file")
	version    = "1.0.0"
)

func usage() {
	fmt.Fprintf(os.Stderr, `anchorctl %s - anchor and verify certificates across ledgers

Usage:
  anchorctl [flags] deploy  -protocol P -network N -name NAME -email EMAIL
  anchorctl [flags] issue   -protocol P -network N -store ADDR -root HASH -email EMAIL
  anchorctl [flags] revoke  -protocol P -network N -store ADDR -root HASH -email EMAIL
  anchorctl [flags] resolve -protocol P -network N -tx HASH
  anchorctl [flags] verify  -protocol P -network N -doc FILE

Flags:
`, version)
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	log := logger.Get()

	if cfg.Metrics.Enabled {
		go func() {
			if err := metrics.StartMetricsServer(cfg.Metrics.ListenAddr, log); err != nil {
				log.Error("metrics server stopped", zap.Error(err))
			}
		}()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pool := worker.NewPool("notify", 2, 64, log)
	pool.Start(ctx)
	defer pool.Stop()

	var notifier notify.Notifier = notify.NewLogNotifier(log)
	if cfg.Notify.SMTPAddr != "" {
		notifier = notify.NewSMTPNotifier(cfg.Notify.SMTPAddr, cfg.Notify.From, pool, log)
	}

	table := chain.TableFromConfig(cfg)
	reg := registry.New(table, registry.Options{
		Notifier: notifier,
		Gas: chain.GasOptions{
			PriceMultiplier: cfg.Gas.PriceMultiplier,
			LimitMultiplier: cfg.Gas.LimitMultiplier,
		},
		Logger: log,
	})

	var receipts *storage.ReceiptStore
	if cfg.Receipts.Enabled {
		client, err := storage.NewRedisClient(&storage.RedisConfig{
			Address:      cfg.Receipts.Addr,
			Password:     cfg.Receipts.Password,
			DB:           cfg.Receipts.DB,
			PoolSize:     10,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		})
		if err != nil {
			log.Fatal("failed to initialize receipt store", zap.Error(err))
		}
		defer client.Close()
		receipts = storage.NewReceiptStore(client)
	}

	app := &app{table: table, registry: reg, receipts: receipts, log: log}

	command, args := flag.Arg(0), flag.Args()[1:]
	if err := app.run(ctx, command, args); err != nil {
		log.Error("command failed", zap.String("command", command), zap.Error(err))
		os.Exit(1)
	}
}

type app struct {
	table    chain.Table
	registry *registry.Registry
	receipts *storage.ReceiptStore
	log      *zap.Logger
}

func (a *app) run(ctx context.Context, command string, args []string) error {
	switch command {
	case "deploy":
		return a.deploy(ctx, args)
	case "issue":
		return a.anchor(ctx, "issue", args)
	case "revoke":
		return a.anchor(ctx, "revoke", args)
	case "resolve":
		return a.resolve(ctx, args)
	case "verify":
		return a.verify(ctx, args)
	default:
		usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func targetFlags(fs *flag.FlagSet) (protocol, network *string) {
	protocol = fs.String("protocol", "", "ledger protocol (ethereum, zilliqa, tezos)")
	network = fs.String("network", "", "network name (e.g. mainnet, ropsten, testnet, ghostnet)")
	return protocol, network
}

func (a *app) deploy(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("deploy", flag.ExitOnError)
	protocolName, network := targetFlags(fs)
	name := fs.String("name", "", "document store name")
	email := fs.String("email", "", "requester email for failure reports")
	fs.Parse(args)

	adapter, protocol, err := a.adapter(*protocolName, *network)
	if err != nil {
		return err
	}

	result, err := adapter.DeployStore(ctx, chain.DeployRequest{
		StoreName:      *name,
		RequesterEmail: *email,
	})
	if err != nil {
		return err
	}

	a.saveReceipt(ctx, storage.Receipt{
		Protocol:        string(protocol),
		Network:         *network,
		Operation:       "deploy",
		TxHash:          result.TxHash,
		ContractAddress: result.ContractAddress,
		RequesterEmail:  *email,
	})
	return printJSON(result)
}

func (a *app) anchor(ctx context.Context, operation string, args []string) error {
	fs := flag.NewFlagSet(operation, flag.ExitOnError)
	protocolName, network := targetFlags(fs)
	store := fs.String("store", "", "document store contract address")
	root := fs.String("root", "", "merkle root hash")
	email := fs.String("email", "", "requester email for failure reports")
	fs.Parse(args)

	adapter, protocol, err := a.adapter(*protocolName, *network)
	if err != nil {
		return err
	}

	var txHash string
	switch operation {
	case "issue":
		txHash, err = adapter.IssueCertificate(ctx, chain.IssueRequest{
			ContractAddress: *store,
			MerkleRoot:      *root,
			RequesterEmail:  *email,
		})
	case "revoke":
		txHash, err = adapter.RevokeCertificate(ctx, chain.RevokeRequest{
			ContractAddress: *store,
			MerkleRoot:      *root,
			RequesterEmail:  *email,
		})
	}
	if err != nil {
		return err
	}

	a.saveReceipt(ctx, storage.Receipt{
		Protocol:       string(protocol),
		Network:        *network,
		Operation:      operation,
		MerkleRoot:     *root,
		TxHash:         txHash,
		RequesterEmail: *email,
	})
	return printJSON(chain.SubmissionResult{TxHash: txHash})
}

func (a *app) resolve(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("resolve", flag.ExitOnError)
	protocolName, network := targetFlags(fs)
	tx := fs.String("tx", "", "transaction hash")
	fs.Parse(args)

	adapter, _, err := a.adapter(*protocolName, *network)
	if err != nil {
		return err
	}

	address, err := adapter.ResolveContractAddress(ctx, *tx)
	if err != nil {
		return err
	}
	return printJSON(map[string]string{"contractAddress": address})
}

func (a *app) verify(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	protocolName, network := targetFlags(fs)
	docPath := fs.String("doc", "", "path to the wrapped document")
	fs.Parse(args)

	protocol, err := chain.ParseProtocol(*protocolName)
	if err != nil {
		return err
	}
	profile, err := a.table.Profile(protocol, *network)
	if err != nil {
		return err
	}
	reader, err := a.registry.StoreReader(protocol, *network)
	if err != nil {
		return err
	}

	raw, err := os.ReadFile(*docPath)
	if err != nil {
		return fmt.Errorf("read document: %w", err)
	}
	doc, err := document.Parse(raw)
	if err != nil {
		return err
	}

	engine := verify.NewEngine(a.log,
		storestatus.New(reader, a.log),
		dnstxt.New(nil, string(protocol), strconv.FormatUint(profile.ChainID, 10), a.log),
	)
	fragments, err := engine.Verify(ctx, doc)
	if err != nil {
		return err
	}

	verdict := verify.StatusValid
	for _, fragment := range fragments {
		if fragment.Status == verify.StatusInvalid || fragment.Status == verify.StatusError {
			verdict = verify.StatusInvalid
			break
		}
	}
	return printJSON(map[string]any{"verdict": verdict, "fragments": fragments})
}

func (a *app) adapter(protocolName, network string) (chain.Adapter, chain.Protocol, error) {
	protocol, err := chain.ParseProtocol(protocolName)
	if err != nil {
		return nil, "", err
	}
	adapter, err := a.registry.Adapter(protocol, network)
	if err != nil {
		return nil, "", err
	}
	return adapter, protocol, nil
}

// saveReceipt is best-effort: the submission already succeeded on-chain, so
// an unavailable receipt store is logged and ignored.
func (a *app) saveReceipt(ctx context.Context, receipt storage.Receipt) {
	if a.receipts == nil {
		return
	}
	if err := a.receipts.Save(ctx, receipt); err != nil {
		a.log.Warn("receipt not saved", zap.String("tx", receipt.TxHash), zap.Error(err))
	}
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
