// Package txmonitor owns the single in-flight L1 transaction slot (spec.md
// §2 component 6, "TxMonitor"; §4.6). It builds both a blob-carrying
// EIP-4844 candidate and a calldata EIP-1559 candidate for a batch, estimates
// and submits the cheaper, and classifies every failure into the pkg/errs
// taxonomy. Submission itself is delegated to op-service/txmgr.SimpleTxManager,
// exactly as prover_test.go wires it for proposer/prover transactions.
package txmonitor

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum-optimism/optimism/op-service/eth"
	"github.com/ethereum-optimism/optimism/op-service/txmgr"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"

	"github.com/taikoxyz/preconf-sequencer/pkg/errs"
)

// Config is the subset of spec.md §4.6's submission algorithm that is not
// already owned by txmgr.CLIConfig (fee bumping, resubmission, confirmations
// all live there; this is the headroom/timeout knobs layered on top).
type Config struct {
	// ExtraGasPercentage is added on top of eth_estimateGas's result before
	// setting a candidate's gas limit.
	ExtraGasPercentage uint64
	// ReceiptTimeout bounds how long Submit waits for a receipt after send;
	// spec.md §4.6 step 6 requires it be >= l1_slot_duration_sec * max_attempts_to_wait_tx.
	ReceiptTimeout time.Duration
	// MinPriorityFeeWei is the floor maxPriorityFeePerGas is bumped to
	// (spec.md §4.6 step 3: "at least 1 gwei").
	MinPriorityFeeWei *big.Int
}

// DefaultMinPriorityFeeWei is 1 gwei, the floor spec.md §4.6 names.
var DefaultMinPriorityFeeWei = big.NewInt(1_000_000_000)

// l1Reader is the minimal l1.View surface TxMonitor needs for estimation and
// fee suggestion; kept as an interface so this package has no dependency on
// the concrete l1 package (mirrors driver/anchor's nonceReader pattern).
type l1Reader interface {
	EstimateGas(ctx context.Context, to, from common.Address, data []byte, value *big.Int) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	TraceTransaction(ctx context.Context, txHash common.Hash, result any) error
}

// Candidate is one of the two payload shapes TxMonitor may submit.
type Candidate struct {
	// Mode is "blob" or "calldata", used only for logging/metrics.
	Mode string
	To   common.Address
	Data []byte
	// Blobs is non-nil only for the "blob" candidate.
	Blobs []*eth.Blob
}

// TxMonitor enforces "at most one in-flight L1 transaction per node"
// (spec.md §4.6 invariant) and classifies every submission failure.
type TxMonitor struct {
	mgr  *txmgr.SimpleTxManager
	view l1Reader
	cfg  Config

	mu       sync.Mutex
	inFlight bool

	// errCh is the bounded sender the orchestrator drains after every tick
	// (spec.md §4.6: "Error channel: a bounded sender surfaces TransactionError").
	errCh chan error
}

// New constructs a TxMonitor around an already-configured SimpleTxManager.
func New(mgr *txmgr.SimpleTxManager, view l1Reader, cfg Config) *TxMonitor {
	if cfg.MinPriorityFeeWei == nil {
		cfg.MinPriorityFeeWei = DefaultMinPriorityFeeWei
	}
	return &TxMonitor{
		mgr:   mgr,
		view:  view,
		cfg:   cfg,
		errCh: make(chan error, 16),
	}
}

// Errors returns the channel the orchestrator drains once per tick.
func (m *TxMonitor) Errors() <-chan error { return m.errCh }

// InFlight reports whether a transaction is currently being submitted.
func (m *TxMonitor) InFlight() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inFlight
}

// Submit runs the full spec.md §4.6 submission algorithm for one batch
// payload. It refuses to start a second submission while one is in flight;
// callers (the Orchestrator) are expected to check InFlight first, but Submit
// re-checks under lock to stay correct under concurrent calls.
func (m *TxMonitor) Submit(ctx context.Context, calldataCandidate Candidate, blobCandidate *Candidate) (*types.Receipt, error) {
	m.mu.Lock()
	if m.inFlight {
		m.mu.Unlock()
		return nil, errs.New(errs.KindTransientRpc, "a transaction is already in progress")
	}
	m.inFlight = true
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.inFlight = false
		m.mu.Unlock()
	}()

	candidates := []Candidate{calldataCandidate}
	if blobCandidate != nil {
		candidates = append(candidates, *blobCandidate)
	}

	chosen, gasLimit, err := m.pickCheapest(ctx, candidates)
	if err != nil {
		return nil, err
	}

	txCandidate := txmgr.TxCandidate{
		TxData:   chosen.Data,
		To:       &chosen.To,
		GasLimit: gasLimit,
		Blobs:    chosen.Blobs,
	}

	sendCtx, cancel := context.WithTimeout(ctx, m.cfg.ReceiptTimeout)
	defer cancel()

	receipt, err := m.mgr.Send(sendCtx, txCandidate)
	if err != nil {
		classified := m.classifySendError(ctx, err)
		select {
		case m.errCh <- classified:
		default:
			log.Warn("txmonitor error channel full, dropping error", "err", classified)
		}
		return nil, classified
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		var trace any
		if receipt.BlockNumber != nil {
			if terr := m.view.TraceTransaction(ctx, receipt.TxHash, &trace); terr != nil {
				log.Warn("failed to trace failed submission", "txHash", receipt.TxHash, "err", terr)
			}
		}
		fatal := errs.New(errs.KindFatalSubmit, fmt.Sprintf("submission reverted: tx %s status %d", receipt.TxHash, receipt.Status))
		select {
		case m.errCh <- fatal:
		default:
		}
		return receipt, fatal
	}

	return receipt, nil
}

// pickCheapest estimates gas for every candidate (step 1-2), classifies
// estimation failures (step 5), fetches and bumps fees (step 3), and returns
// whichever candidate has the lower total cost (step 4).
func (m *TxMonitor) pickCheapest(ctx context.Context, candidates []Candidate) (Candidate, uint64, error) {
	tip, err := m.view.SuggestGasTipCap(ctx)
	if err != nil {
		return Candidate{}, 0, errs.Wrap(errs.KindTransientRpc, err, "failed to suggest gas tip cap")
	}
	if tip.Cmp(m.cfg.MinPriorityFeeWei) < 0 {
		tip = new(big.Int).Set(m.cfg.MinPriorityFeeWei)
	}

	type estimate struct {
		candidate Candidate
		gasLimit  uint64
		totalCost *big.Int
	}

	var (
		estimates []estimate
		lastErr   error
	)
	for _, c := range candidates {
		gas, err := m.view.EstimateGas(ctx, c.To, common.Address{}, c.Data, nil)
		if err != nil {
			lastErr = m.classifyEstimationError(c, err)
			continue
		}
		gas = gas + gas*m.cfg.ExtraGasPercentage/100

		totalCost := new(big.Int).Mul(new(big.Int).SetUint64(gas), tip)
		estimates = append(estimates, estimate{candidate: c, gasLimit: gas, totalCost: totalCost})
	}

	if len(estimates) == 0 {
		if lastErr != nil {
			return Candidate{}, 0, lastErr
		}
		return Candidate{}, 0, errs.New(errs.KindEstimationFailed, "no candidate could be estimated")
	}

	best := estimates[0]
	for _, e := range estimates[1:] {
		if e.totalCost.Cmp(best.totalCost) < 0 {
			best = e
		}
	}
	return best.candidate, best.gasLimit, nil
}

// classifyEstimationError maps a gas-estimation revert into one of spec.md
// §4.6 step 5's three buckets by matching the 4-byte selector prefix of the
// revert data, the same way l1/inbox.go matches known selectors for reads.
func (m *TxMonitor) classifyEstimationError(c Candidate, err error) *errs.Error {
	sel, ok := revertSelector(err)
	if ok {
		switch sel {
		case selectorEstimationTooEarly:
			return errs.Wrap(errs.KindEstimationTooEarly, err, fmt.Sprintf("%s candidate: estimation too early", c.Mode))
		case selectorInvalidTimeShift, selectorAnchorBlockIDTooSmall:
			return errs.Wrap(errs.KindEstimationFailed, err, fmt.Sprintf("%s candidate: estimation reverted", c.Mode))
		}
	}
	return errs.Wrap(errs.KindEstimationFailed, err, fmt.Sprintf("%s candidate: estimation failed", c.Mode))
}

// classifySendError maps a post-send failure (resubmission exhausted,
// context deadline, nonce too low after SafeAbortNonceTooLowCount retries)
// into the taxonomy. txmgr already retries transient RPC failures internally,
// so anything surfacing here is treated as a fatal submit.
func (m *TxMonitor) classifySendError(ctx context.Context, err error) *errs.Error {
	if ctx.Err() != nil {
		return errs.Wrap(errs.KindTransientRpc, err, "submission timed out waiting for receipt")
	}
	return errs.Wrap(errs.KindFatalSubmit, err, "transaction submission failed")
}

// The following are protocol-defined custom error selectors the inbox
// contract may revert with during proposeBatch/propose simulation.
const (
	selectorEstimationTooEarly    = "5f8f2f80" // TimestampTooSmall()
	selectorInvalidTimeShift      = "a1a4e374" // TimestampTooLarge()
	selectorAnchorBlockIDTooSmall = "b9857f11" // AnchorBlockIdTooSmall()
)

// dataError is the subset of go-ethereum's rpc.DataError every JSON-RPC
// client error implements, carrying the raw revert payload.
type dataError interface {
	ErrorData() any
}

// revertSelector extracts the 4-byte custom-error selector from a call's
// revert data, if the error carries one.
func revertSelector(err error) (string, bool) {
	de, ok := err.(dataError)
	if !ok {
		return "", false
	}
	raw, ok := de.ErrorData().(string)
	if !ok || len(raw) < 10 {
		return "", false
	}
	prefix := raw[:2]
	if prefix == "0x" || prefix == "0X" {
		raw = raw[2:]
	}
	if len(raw) < 8 {
		return "", false
	}
	return raw[:8], true
}
