package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ethereum-optimism/optimism/op-service/txmgr"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/taikoxyz/preconf-sequencer/pkg/fork"
	"github.com/taikoxyz/preconf-sequencer/pkg/slotclock"
)

// Config is the fully-resolved, validated configuration for one node
// process, assembled from CLI flags/environment by NewConfigFromCliContext.
type Config struct {
	L1WSEndpoint   string
	L2WSEndpoint   string
	L2AuthEndpoint string
	BeaconEndpoint string
	JWTSecretFile  string

	OperatorPrivateKey string
	OperatorAddress    common.Address
	FeeRecipient       common.Address
	Coinbase           common.Address
	BasefeeSharingPctg uint8
	IsLowBond          bool

	RouterAddress          common.Address
	InboxAddress           common.Address
	WhitelistAddress       common.Address
	ForcedInclusionAddress common.Address
	L2AnchorAddress        common.Address
	ShastaAnchorAddress    common.Address

	ForkSchedule fork.Schedule

	SlotClock             slotclock.Config
	HeartbeatInterval      time.Duration
	HandoverWindowSlots    uint64
	HandoverStartBufferMs  uint64
	WatchdogMaxFailures    uint64
	L1HeightLag            uint64

	TxMgrConfigs            *txmgr.CLIConfig
	TxMonitorExtraGasPercentage uint64
	TxMonitorReceiptTimeout     time.Duration
	MinTipWei                  uint64
	PendingTxListGas            uint64

	MetricsAddr string
	DatabaseDSN string

	SimulateNotSubmittingAtEndOfEpoch bool
}

// NewConfigFromCliContext builds and validates a Config from the parsed CLI
// context, the same shape taiko-client's own NewConfigFromCliContext takes.
func NewConfigFromCliContext(c *cli.Context) (*Config, error) {
	operatorKey, err := crypto.HexToECDSA(c.String(OperatorPrivateKey.Name))
	if err != nil {
		return nil, fmt.Errorf("invalid operator private key: %w", err)
	}

	schedule, err := loadForkSchedule(c.String(ForkScheduleFile.Name), c.Uint64(TransitionBufferSec.Name))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		L1WSEndpoint:   c.String(L1WSEndpoint.Name),
		L2WSEndpoint:   c.String(L2WSEndpoint.Name),
		L2AuthEndpoint: c.String(L2AuthEndpoint.Name),
		BeaconEndpoint: c.String(BeaconEndpoint.Name),
		JWTSecretFile:  c.String(JWTSecretFile.Name),

		OperatorPrivateKey: c.String(OperatorPrivateKey.Name),
		OperatorAddress:    crypto.PubkeyToAddress(operatorKey.PublicKey),
		FeeRecipient:       common.HexToAddress(c.String(FeeRecipient.Name)),
		Coinbase:           common.HexToAddress(c.String(Coinbase.Name)),
		BasefeeSharingPctg: uint8(c.Uint64(BasefeeSharingPctg.Name)),
		IsLowBond:          c.Bool(IsLowBond.Name),

		RouterAddress:          common.HexToAddress(c.String(RouterAddress.Name)),
		InboxAddress:           common.HexToAddress(c.String(InboxAddress.Name)),
		WhitelistAddress:       common.HexToAddress(c.String(WhitelistAddress.Name)),
		ForcedInclusionAddress: common.HexToAddress(c.String(ForcedInclusionAddress.Name)),
		L2AnchorAddress:        common.HexToAddress(c.String(L2AnchorAddress.Name)),
		ShastaAnchorAddress:    common.HexToAddress(c.String(ShastaAnchorAddress.Name)),

		ForkSchedule: schedule,

		SlotClock: slotclock.Config{
			GenesisTimestampSec: c.Uint64(GenesisTimestamp.Name),
			L1SlotDurationSec:   c.Uint64(L1SlotDuration.Name),
			SlotsPerEpoch:       c.Uint64(SlotsPerEpoch.Name),
			L2SubSlotDurationMs: c.Uint64(L2SubSlotDuration.Name),
		},
		HeartbeatInterval:     c.Duration(HeartbeatInterval.Name),
		HandoverWindowSlots:   c.Uint64(HandoverWindowSlots.Name),
		HandoverStartBufferMs: c.Uint64(HandoverStartBufferMs.Name),
		WatchdogMaxFailures:   c.Uint64(WatchdogMaxFailures.Name),
		L1HeightLag:           c.Uint64(L1HeightLag.Name),

		TxMgrConfigs: &txmgr.CLIConfig{
			L1RPCURL:                  c.String(L1WSEndpoint.Name),
			NumConfirmations:          c.Uint64(TxMgrNumConfirmations.Name),
			SafeAbortNonceTooLowCount: txmgr.DefaultBatcherFlagValues.SafeAbortNonceTooLowCount,
			PrivateKey:                c.String(OperatorPrivateKey.Name),
			FeeLimitMultiplier:        txmgr.DefaultBatcherFlagValues.FeeLimitMultiplier,
			FeeLimitThresholdGwei:     txmgr.DefaultBatcherFlagValues.FeeLimitThresholdGwei,
			MinBaseFeeGwei:            txmgr.DefaultBatcherFlagValues.MinBaseFeeGwei,
			MinTipCapGwei:             txmgr.DefaultBatcherFlagValues.MinTipCapGwei,
			ResubmissionTimeout:       txmgr.DefaultBatcherFlagValues.ResubmissionTimeout,
			ReceiptQueryInterval:      time.Second,
			NetworkTimeout:            txmgr.DefaultBatcherFlagValues.NetworkTimeout,
			TxSendTimeout:             txmgr.DefaultBatcherFlagValues.TxSendTimeout,
			TxNotInMempoolTimeout:     txmgr.DefaultBatcherFlagValues.TxNotInMempoolTimeout,
		},
		TxMonitorExtraGasPercentage: c.Uint64(TxMgrExtraGasPercentage.Name),
		TxMonitorReceiptTimeout:     c.Duration(TxMgrReceiptTimeout.Name),
		MinTipWei:                   c.Uint64(MinTipWei.Name),
		PendingTxListGas:            c.Uint64(PendingTxListGas.Name),

		MetricsAddr: c.String(MetricsAddr.Name),
		DatabaseDSN: c.String(DatabaseDSN.Name),

		SimulateNotSubmittingAtEndOfEpoch: c.Bool(SimulateNotSubmittingAtEndOfEpoch.Name),
	}

	if err := cfg.SlotClock.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// forkScheduleDoc is the on-disk YAML shape ForkScheduleFile points at.
type forkScheduleDoc struct {
	PacayaToShastaTimestamp uint64 `yaml:"pacayaToShastaTimestamp"`
}

// loadForkSchedule reads the fork schedule YAML, if configured, and layers
// the CLI-provided transition buffer on top. A missing/empty path means
// Shasta is active from genesis (fork.Schedule's zero value).
func loadForkSchedule(path string, transitionBufferSec uint64) (fork.Schedule, error) {
	schedule := fork.Schedule{TransitionBufferSec: transitionBufferSec}
	if path == "" {
		return schedule, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return fork.Schedule{}, fmt.Errorf("failed to read fork schedule file %s: %w", path, err)
	}
	var doc forkScheduleDoc
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fork.Schedule{}, fmt.Errorf("failed to parse fork schedule file %s: %w", path, err)
	}
	schedule.PacayaToShasta = doc.PacayaToShastaTimestamp
	return schedule, nil
}
