// Command preconf-sequencer runs the whitelisted-operator preconfirmation
// node: it wires SlotClock, L1View/L2View, InboxClient, the anchor/batch
// builders, the driver client, TxMonitor and the Orchestrator's heartbeat
// loop together, and serves the health/metrics surface (spec.md §2, §6).
package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum-optimism/optimism/op-service/txmgr"
	"github.com/ethereum/go-ethereum/log"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"

	"github.com/taikoxyz/preconf-sequencer/batchbuilder"
	"github.com/taikoxyz/preconf-sequencer/driver"
	"github.com/taikoxyz/preconf-sequencer/driver/anchor"
	"github.com/taikoxyz/preconf-sequencer/forcedinclusion"
	"github.com/taikoxyz/preconf-sequencer/internal/config"
	"github.com/taikoxyz/preconf-sequencer/internal/healthserver"
	"github.com/taikoxyz/preconf-sequencer/internal/metrics"
	"github.com/taikoxyz/preconf-sequencer/l1"
	"github.com/taikoxyz/preconf-sequencer/l2"
	"github.com/taikoxyz/preconf-sequencer/orchestrator"
	"github.com/taikoxyz/preconf-sequencer/pkg/cancel"
	"github.com/taikoxyz/preconf-sequencer/pkg/jwt"
	"github.com/taikoxyz/preconf-sequencer/pkg/rpc"
	"github.com/taikoxyz/preconf-sequencer/pkg/slotclock"
	"github.com/taikoxyz/preconf-sequencer/signer"
	"github.com/taikoxyz/preconf-sequencer/txmonitor"
	"github.com/taikoxyz/preconf-sequencer/watchdog"
)

func main() {
	// urfave/cli resolves a flag's EnvVars during Parse, before any Before
	// hook runs, so .env must be loaded ahead of app.Run rather than in one.
	dotenvPath := ".env"
	for i, arg := range os.Args {
		if arg == "--dotenv" && i+1 < len(os.Args) {
			dotenvPath = os.Args[i+1]
		}
	}
	if err := godotenv.Load(dotenvPath); err != nil && !os.IsNotExist(err) {
		log.Warn("failed to load .env file", "path", dotenvPath, "err", err)
	}

	app := &cli.App{
		Name:  "preconf-sequencer",
		Usage: "Taiko whitelisted-operator preconfirmation sequencer",
		Flags: config.Flags,
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Crit("preconf-sequencer exited with error", "err", err)
	}
}

func run(c *cli.Context) error {
	cfg, err := config.NewConfigFromCliContext(c)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// promhttp.Handler() (wired into healthserver's /metrics route) serves the
	// default gatherer, so collectors must register against it directly.
	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var exitCritical bool
	token := cancel.New(ctx, func(critical bool) {
		exitCritical = critical
	})

	node, err := buildNode(ctx, cfg, token)
	if err != nil {
		return fmt.Errorf("failed to build node: %w", err)
	}
	defer node.close()

	health := healthserver.New(node.orch)
	healthErrCh := health.Start(cfg.MetricsAddr)

	go node.orch.Run(ctx)

	select {
	case <-token.Done():
	case err := <-healthErrCh:
		log.Error("health server failed to start", "err", err)
		token.CancelCritical()
	}

	if err := health.Shutdown(5 * time.Second); err != nil {
		log.Warn("health server shutdown did not complete cleanly", "err", err)
	}

	if exitCritical {
		return fmt.Errorf("node shut down after a critical cancellation")
	}
	return nil
}

// node bundles every long-lived component the run loop needs to close on
// exit, plus the orchestrator it drives.
type node struct {
	orch   *orchestrator.Orchestrator
	l1RPC  *rpc.Client
	l2RPC  *rpc.Client
	driverClient *driver.Client
}

func (n *node) close() {
	if n.l1RPC != nil {
		n.l1RPC.Close()
	}
	if n.l2RPC != nil {
		n.l2RPC.Close()
	}
}

// buildNode dials every RPC endpoint, constructs every component and wires
// them into an Orchestrator (spec.md §2's component graph, assembled once at
// startup rather than lazily).
func buildNode(ctx context.Context, cfg *config.Config, token *cancel.Token) (*node, error) {
	l1RPC, err := rpc.Dial(ctx, cfg.L1WSEndpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to dial L1 endpoint: %w", err)
	}
	l2RPC, err := rpc.Dial(ctx, cfg.L2WSEndpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to dial L2 endpoint: %w", err)
	}

	jwtSecret, err := jwt.ParseSecretFromFile(cfg.JWTSecretFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load JWT secret: %w", err)
	}
	driverClient, err := driver.Dial(ctx, cfg.L2AuthEndpoint, jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to dial L2 driver: %w", err)
	}

	l1View := l1.NewView(l1RPC)
	l2View := l2.NewView(l2RPC)

	chainID, err := l1RPC.Eth.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read L1 chain id: %w", err)
	}

	golden, err := signer.NewGoldenTouchSigner(chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to construct golden touch signer: %w", err)
	}
	operatorSigner, err := signer.NewPrivateKeySigner(cfg.OperatorPrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to construct operator signer: %w", err)
	}
	// DelegatingSigner holds both signers a batch-proposing node needs under
	// one value; only Anchor is threaded onward today (Operator submission
	// signing happens inside txmgr.SimpleTxManager itself), but the operator
	// address it exposes is the same address txmgr signs with, so deriving
	// cfg.OperatorAddress from it keeps both paths honest about which key
	// backs "the operator".
	delegating := signer.NewDelegatingSigner(golden, operatorSigner)
	cfg.OperatorAddress = delegating.Operator.Address()

	active := cfg.ForkSchedule.ActiveAt(uint64(time.Now().Unix()))

	inbox := l1.NewInboxClient(l1View, cfg.WhitelistAddress, cfg.InboxAddress, cfg.ForcedInclusionAddress, active)
	protocolConfig, err := inbox.FetchProtocolConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch protocol config: %w", err)
	}

	anchorBuild := anchor.NewBuilder(
		cfg.L2AnchorAddress,
		cfg.ShastaAnchorAddress,
		l2View,
		golden,
		chainID,
		active,
		protocolConfig.BaseFeeConfig,
	)

	blobFetcher := forcedinclusion.NewBlobFetcher(cfg.BeaconEndpoint, cfg.SlotClock.GenesisTimestampSec, cfg.SlotClock.L1SlotDurationSec)
	forcedInc := forcedinclusion.New(inbox, blobFetcher, active)
	if _, err := forcedInc.SyncQueueIndexWithHead(ctx); err != nil {
		log.Warn("failed to sync forced-inclusion queue index with head, starting from zero", "err", err)
	}

	limits := batchbuilder.Limits{
		MaxBytesSizeOfBatch:        128 * 1024,
		MaxBlocksPerBatch:          protocolConfig.MaxBlocksPerBatch,
		MaxTimeShiftBetweenBlocks:  255,
		MaxAnchorHeightOffsetSlots: protocolConfig.MaxAnchorHeightOffset,
		L1SlotDurationSec:          cfg.SlotClock.L1SlotDurationSec,
	}
	batches := recoverBatchBuilder(ctx, l1View, l2View, limits)

	clock, err := slotclock.New(cfg.SlotClock, slotclock.RealClock{})
	if err != nil {
		return nil, fmt.Errorf("failed to construct slot clock: %w", err)
	}

	txMgr, err := txmgr.NewSimpleTxManager("preconf-sequencer", log.Root(), &metrics.TxMgrMetrics, *cfg.TxMgrConfigs)
	if err != nil {
		return nil, fmt.Errorf("failed to construct tx manager: %w", err)
	}
	txMon := txmonitor.New(txMgr, l1View, txmonitor.Config{
		ExtraGasPercentage: cfg.TxMonitorExtraGasPercentage,
		ReceiptTimeout:     cfg.TxMonitorReceiptTimeout,
		MinPriorityFeeWei:  new(big.Int).SetUint64(cfg.MinTipWei),
	})

	wd := watchdog.New(token, cfg.WatchdogMaxFailures, metrics.CriticalCancellations)

	orchCfg := orchestrator.Config{
		HeartbeatInterval:                  cfg.HeartbeatInterval,
		OperatorAddr:                       cfg.OperatorAddress,
		Coinbase:                           cfg.Coinbase,
		FeeRecipient:                       cfg.FeeRecipient,
		BasefeeSharingPctg:                 cfg.BasefeeSharingPctg,
		IsLowBond:                          cfg.IsLowBond,
		RouterAddr:                         cfg.RouterAddress,
		InboxAddr:                          cfg.InboxAddress,
		HandoverWindowSlots:                cfg.HandoverWindowSlots,
		HandoverStartBufferMs:              cfg.HandoverStartBufferMs,
		L1HeightLag:                        cfg.L1HeightLag,
		SimulateNotSubmittingAtEndOfEpoch:  cfg.SimulateNotSubmittingAtEndOfEpoch,
		MinTipWei:                          cfg.MinTipWei,
		PendingTxListGas:                   cfg.PendingTxListGas,
	}

	orch := orchestrator.New(
		orchCfg,
		clock,
		l1View,
		l2View,
		inbox,
		batches,
		anchorBuild,
		driverClient,
		txMon,
		forcedInc,
		wd,
		token,
		cfg.ForkSchedule,
	)

	return &node{orch: orch, l1RPC: l1RPC, l2RPC: l2RPC, driverClient: driverClient}, nil
}

// recoverBatchBuilder attempts to seed BatchBuilder state from the L2 head's
// anchor transaction so a restart does not silently drop the in-flight
// proposal (spec.md §4.3 "Recovery"). Any failure along the way is logged and
// treated as "nothing to recover": the builder still starts up with nextID 1
// rather than blocking startup on a best-effort feature.
//
// The L2 head's block number stands in for the L1 proposal id: this node has
// no independent record of the on-chain BatchProposed id its own last batch
// was submitted under, so recovery can only guarantee RecoverFromL2Block is
// called with a strictly-increasing, block-identifying value, not the true
// proposal id. A subsequent tick's own submission path re-establishes the
// real id from there on.
func recoverBatchBuilder(ctx context.Context, l1View *l1.View, l2View *l2.View, limits batchbuilder.Limits) *batchbuilder.Builder {
	const startID = 1
	builder := batchbuilder.New(limits, startID)

	head, err := l2View.BlockByNumber(ctx, nil)
	if err != nil {
		log.Warn("failed to read L2 head block for batch builder recovery", "err", err)
		return builder
	}
	data, err := l2.AnchorTxInput(head)
	if err != nil {
		log.Warn("failed to read anchor tx input for batch builder recovery", "err", err)
		return builder
	}
	anchorBlockID, anchorStateRoot, _, err := l2.DecodePacayaAnchorV3(data)
	if err != nil {
		log.Warn("failed to decode anchor tx for batch builder recovery", "err", err)
		return builder
	}
	anchorHeader, err := l1View.HeaderByNumber(ctx, new(big.Int).SetUint64(anchorBlockID))
	if err != nil {
		log.Warn("failed to read anchor L1 header for batch builder recovery", "err", err)
		return builder
	}
	headHeader := head.Header()
	origin, err := l2View.L1OriginByID(ctx, headHeader.Number.Uint64())
	if err != nil {
		log.Warn("failed to read L1 origin for batch builder recovery", "err", err)
		return builder
	}

	anchorInfo := batchbuilder.AnchorBlockInfo{
		ID:           anchorBlockID,
		Hash:         anchorHeader.Hash(),
		StateRoot:    anchorStateRoot,
		TimestampSec: anchorHeader.Time,
	}
	builder.RecoverFromL2Block(ctx, headHeader.Number.Uint64(), anchorInfo, headHeader.Coinbase, origin.IsForcedInclusion)
	return builder
}
