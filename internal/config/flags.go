// Package config loads the node's configuration from CLI flags, environment
// variables and a .env file (joho/godotenv), plus the fork schedule from a
// small YAML document (gopkg.in/yaml.v3), mirroring taiko-client's own
// flags-to-Config pattern (see the upstream proposer's NewConfigFromCliContext).
package config

import (
	"time"

	"github.com/urfave/cli/v2"
)

// Flag category labels, purely cosmetic (urfave/cli groups --help output by
// Category).
const (
	categoryL1       = "L1"
	categoryL2       = "L2"
	categoryOperator = "OPERATOR"
	categoryProtocol = "PROTOCOL"
	categoryTiming   = "TIMING"
	categoryTxMgr    = "TX MANAGER"
	categoryMisc     = "MISC"
)

var (
	// L1 / L2 endpoints.
	L1WSEndpoint = &cli.StringFlag{
		Name:     "l1.ws",
		Usage:    "Websocket RPC endpoint of an L1 node",
		EnvVars:  []string{"L1_WS"},
		Category: categoryL1,
		Required: true,
	}
	L2WSEndpoint = &cli.StringFlag{
		Name:     "l2.ws",
		Usage:    "Websocket RPC endpoint of an L2 execution engine",
		EnvVars:  []string{"L2_WS"},
		Category: categoryL2,
		Required: true,
	}
	L2AuthEndpoint = &cli.StringFlag{
		Name:     "l2.auth",
		Usage:    "Authenticated engine-API endpoint of the L2 driver's preconf_blocks/taikoStatus RPC",
		EnvVars:  []string{"L2_AUTH"},
		Category: categoryL2,
		Required: true,
	}
	BeaconEndpoint = &cli.StringFlag{
		Name:     "l1.beacon",
		Usage:    "HTTP endpoint of an L1 beacon node, used to fetch forced-inclusion blob sidecars",
		EnvVars:  []string{"L1_BEACON"},
		Category: categoryL1,
		Required: true,
	}
	JWTSecretFile = &cli.StringFlag{
		Name:     "jwt.secret",
		Usage:    "Path to a JWT secret file shared with the L2 driver's authrpc",
		EnvVars:  []string{"JWT_SECRET"},
		Category: categoryL2,
		Required: true,
	}

	// Operator identity and submission addresses.
	OperatorPrivateKey = &cli.StringFlag{
		Name:     "operator.privateKey",
		Usage:    "Private key of the operator's batch-submission account, hex-encoded without 0x",
		EnvVars:  []string{"OPERATOR_PRIVATE_KEY"},
		Category: categoryOperator,
		Required: true,
	}
	FeeRecipient = &cli.StringFlag{
		Name:     "operator.feeRecipient",
		Usage:    "L2 address credited with this node's preconfirmed blocks' priority fees",
		EnvVars:  []string{"OPERATOR_FEE_RECIPIENT"},
		Category: categoryOperator,
		Required: true,
	}
	Coinbase = &cli.StringFlag{
		Name:     "operator.coinbase",
		Usage:    "Coinbase address proposed batches are submitted under",
		EnvVars:  []string{"OPERATOR_COINBASE"},
		Category: categoryOperator,
		Required: true,
	}
	BasefeeSharingPctg = &cli.Uint64Flag{
		Name:     "operator.basefeeSharingPctg",
		Usage:    "Percentage (0-100) of L2 base fee shared with the protocol treasury",
		EnvVars:  []string{"OPERATOR_BASEFEE_SHARING_PCTG"},
		Category: categoryOperator,
		Value:    0,
	}
	IsLowBond = &cli.BoolFlag{
		Name:     "operator.isLowBond",
		Usage:    "Whether this operator's bond is below the low-bond threshold",
		EnvVars:  []string{"OPERATOR_IS_LOW_BOND"},
		Category: categoryOperator,
		Value:    false,
	}

	// Protocol contract addresses.
	RouterAddress = &cli.StringFlag{
		Name:     "protocol.router",
		Usage:    "Address of the IPreconfRouter contract",
		EnvVars:  []string{"PRECONF_ROUTER"},
		Category: categoryProtocol,
		Required: true,
	}
	InboxAddress = &cli.StringFlag{
		Name:     "protocol.inbox",
		Usage:    "Address of the Taiko inbox contract batches are submitted to",
		EnvVars:  []string{"TAIKO_INBOX"},
		Category: categoryProtocol,
		Required: true,
	}
	WhitelistAddress = &cli.StringFlag{
		Name:     "protocol.whitelist",
		Usage:    "Address of the PreconfWhitelist operator-registry contract",
		EnvVars:  []string{"PRECONF_WHITELIST"},
		Category: categoryProtocol,
		Required: true,
	}
	ForcedInclusionAddress = &cli.StringFlag{
		Name:     "protocol.forcedInclusionStore",
		Usage:    "Address of the forced-inclusion store contract",
		EnvVars:  []string{"FORCED_INCLUSION_STORE"},
		Category: categoryProtocol,
		Required: true,
	}
	L2AnchorAddress = &cli.StringFlag{
		Name:     "protocol.l2Anchor",
		Usage:    "Address of the Pacaya TaikoAnchor contract on L2",
		EnvVars:  []string{"TAIKO_L2_ANCHOR"},
		Category: categoryProtocol,
		Required: true,
	}
	ShastaAnchorAddress = &cli.StringFlag{
		Name:     "protocol.shastaAnchor",
		Usage:    "Address of the Shasta anchor contract on L2",
		EnvVars:  []string{"TAIKO_SHASTA_ANCHOR"},
		Category: categoryProtocol,
	}
	ForkScheduleFile = &cli.StringFlag{
		Name:     "protocol.forkSchedule",
		Usage:    "Path to a YAML file declaring the Pacaya-to-Shasta fork schedule",
		EnvVars:  []string{"FORK_SCHEDULE_FILE"},
		Category: categoryProtocol,
	}

	// SlotClock genesis/timing parameters.
	GenesisTimestamp = &cli.Uint64Flag{
		Name:     "timing.genesisTimestamp",
		Usage:    "L1 genesis unix timestamp (seconds) the slot clock is anchored to",
		EnvVars:  []string{"L1_GENESIS_TIMESTAMP"},
		Category: categoryTiming,
		Required: true,
	}
	L1SlotDuration = &cli.Uint64Flag{
		Name:     "timing.l1SlotDurationSec",
		Usage:    "L1 slot duration in seconds",
		EnvVars:  []string{"L1_SLOT_DURATION_SEC"},
		Category: categoryTiming,
		Value:    12,
	}
	SlotsPerEpoch = &cli.Uint64Flag{
		Name:     "timing.slotsPerEpoch",
		Usage:    "Number of L1 slots per epoch",
		EnvVars:  []string{"L1_SLOTS_PER_EPOCH"},
		Category: categoryTiming,
		Value:    32,
	}
	L2SubSlotDuration = &cli.Uint64Flag{
		Name:     "timing.l2SubSlotDurationMs",
		Usage:    "L2 sub-slot duration in milliseconds; must evenly divide the L1 slot duration",
		EnvVars:  []string{"L2_SUBSLOT_DURATION_MS"},
		Category: categoryTiming,
		Value:    2000,
	}
	HeartbeatInterval = &cli.DurationFlag{
		Name:     "timing.heartbeat",
		Usage:    "Orchestrator tick interval",
		EnvVars:  []string{"HEARTBEAT_INTERVAL"},
		Category: categoryTiming,
		Value:    time.Second,
	}
	HandoverWindowSlots = &cli.Uint64Flag{
		Name:     "timing.handoverWindowSlots",
		Usage:    "Fallback handover-window length in slots, used if the on-chain router read fails",
		EnvVars:  []string{"HANDOVER_WINDOW_SLOTS"},
		Category: categoryTiming,
		Value:    4,
	}
	HandoverStartBufferMs = &cli.Uint64Flag{
		Name:     "timing.handoverStartBufferMs",
		Usage:    "Milliseconds after the handover window starts during which the outgoing operator keeps preconfirming",
		EnvVars:  []string{"HANDOVER_START_BUFFER_MS"},
		Category: categoryTiming,
		Value:    2000,
	}
	TransitionBufferSec = &cli.Uint64Flag{
		Name:     "timing.forkTransitionBufferSec",
		Usage:    "Seconds of buffer around a fork switch during which no node preconfirms",
		EnvVars:  []string{"FORK_TRANSITION_BUFFER_SEC"},
		Category: categoryTiming,
		Value:    60,
	}
	WatchdogMaxFailures = &cli.Uint64Flag{
		Name:     "timing.watchdogMaxFailures",
		Usage:    "Consecutive failed ticks before the watchdog trips a critical cancellation",
		EnvVars:  []string{"WATCHDOG_MAX_FAILURES"},
		Category: categoryTiming,
		Value:    16,
	}
	L1HeightLag = &cli.Uint64Flag{
		Name:     "timing.l1HeightLag",
		Usage:    "Blocks behind L1 head to read the anchor block from, clamped to the protocol minimum",
		EnvVars:  []string{"L1_HEIGHT_LAG"},
		Category: categoryTiming,
		Value:    4,
	}

	// TxMgr / submission tuning, mirroring txmgr.DefaultBatcherFlagValues.
	TxMgrNumConfirmations = &cli.Uint64Flag{
		Name:     "txmgr.numConfirmations",
		Usage:    "Number of confirmations before a submitted batch transaction is considered final",
		EnvVars:  []string{"TXMGR_NUM_CONFIRMATIONS"},
		Category: categoryTxMgr,
		Value:    1,
	}
	TxMgrReceiptTimeout = &cli.DurationFlag{
		Name:     "txmgr.receiptTimeout",
		Usage:    "How long TxMonitor waits for a submitted batch's receipt before giving up",
		EnvVars:  []string{"TXMGR_RECEIPT_TIMEOUT"},
		Category: categoryTxMgr,
		Value:    2 * time.Minute,
	}
	TxMgrExtraGasPercentage = &cli.Uint64Flag{
		Name:     "txmgr.extraGasPercentage",
		Usage:    "Percentage of headroom added on top of eth_estimateGas before submission",
		EnvVars:  []string{"TXMGR_EXTRA_GAS_PERCENTAGE"},
		Category: categoryTxMgr,
		Value:    20,
	}
	MinTipWei = &cli.Uint64Flag{
		Name:     "txmgr.minTipWei",
		Usage:    "Minimum per-transaction tip, in wei, the driver's pending tx list pull requires",
		EnvVars:  []string{"MIN_TIP_WEI"},
		Category: categoryTxMgr,
		Value:    1,
	}
	PendingTxListGas = &cli.Uint64Flag{
		Name:     "txmgr.pendingTxListGas",
		Usage:    "Maximum total gas the driver's pending tx list pull may return",
		EnvVars:  []string{"PENDING_TX_LIST_GAS"},
		Category: categoryTxMgr,
		Value:    15_000_000,
	}

	// Misc.
	DotEnvFile = &cli.StringFlag{
		Name:     "dotenv",
		Usage:    "Path to a .env file to load before reading flags/env vars",
		EnvVars:  []string{"DOTENV_FILE"},
		Category: categoryMisc,
		Value:    ".env",
	}
	MetricsAddr = &cli.StringFlag{
		Name:     "metrics.addr",
		Usage:    "Address the Prometheus metrics and health-check HTTP server listens on",
		EnvVars:  []string{"METRICS_ADDR"},
		Category: categoryMisc,
		Value:    "0.0.0.0:6060",
	}
	DatabaseDSN = &cli.StringFlag{
		Name:     "db.dsn",
		Usage:    "MySQL DSN for the registry-monitor read-model store",
		EnvVars:  []string{"DATABASE_DSN"},
		Category: categoryMisc,
	}
	SimulateNotSubmittingAtEndOfEpoch = &cli.BoolFlag{
		Name:     "debug.simulateNotSubmittingAtEndOfEpoch",
		Usage:    "Voluntarily stop submitting batches near epoch end, for handover drills",
		EnvVars:  []string{"SIMULATE_NOT_SUBMITTING_AT_END_OF_EPOCH"},
		Category: categoryMisc,
		Value:    false,
	}
)

// Flags is the full flag set registered on the node's cli.App.
var Flags = []cli.Flag{
	DotEnvFile,
	L1WSEndpoint,
	L2WSEndpoint,
	L2AuthEndpoint,
	BeaconEndpoint,
	JWTSecretFile,
	OperatorPrivateKey,
	FeeRecipient,
	Coinbase,
	BasefeeSharingPctg,
	IsLowBond,
	RouterAddress,
	InboxAddress,
	WhitelistAddress,
	ForcedInclusionAddress,
	L2AnchorAddress,
	ShastaAnchorAddress,
	ForkScheduleFile,
	GenesisTimestamp,
	L1SlotDuration,
	SlotsPerEpoch,
	L2SubSlotDuration,
	HeartbeatInterval,
	HandoverWindowSlots,
	HandoverStartBufferMs,
	TransitionBufferSec,
	WatchdogMaxFailures,
	L1HeightLag,
	TxMgrNumConfirmations,
	TxMgrReceiptTimeout,
	TxMgrExtraGasPercentage,
	MinTipWei,
	PendingTxListGas,
	MetricsAddr,
	DatabaseDSN,
	SimulateNotSubmittingAtEndOfEpoch,
}
