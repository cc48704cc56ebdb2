package txmonitor

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/taikoxyz/preconf-sequencer/pkg/errs"
)

type fakeL1Reader struct {
	tip       *big.Int
	tipErr    error
	gasByAddr map[common.Address]uint64
	gasErr    map[common.Address]error
}

func (f *fakeL1Reader) EstimateGas(ctx context.Context, to, from common.Address, data []byte, value *big.Int) (uint64, error) {
	if err, ok := f.gasErr[to]; ok {
		return 0, err
	}
	return f.gasByAddr[to], nil
}
func (f *fakeL1Reader) SuggestGasTipCap(ctx context.Context) (*big.Int, error) { return f.tip, f.tipErr }
func (f *fakeL1Reader) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	return nil, errors.New("not used in this test")
}
func (f *fakeL1Reader) TraceTransaction(ctx context.Context, txHash common.Hash, result any) error {
	return nil
}

var (
	calldataAddr = common.HexToAddress("0x1")
	blobAddr     = common.HexToAddress("0x2")
)

func TestPickCheapest_PicksLowerTotalCost(t *testing.T) {
	view := &fakeL1Reader{
		tip: big.NewInt(2_000_000_000),
		gasByAddr: map[common.Address]uint64{
			calldataAddr: 200_000,
			blobAddr:     50_000,
		},
	}
	m := New(nil, view, Config{})
	chosen, gasLimit, err := m.pickCheapest(context.Background(), []Candidate{
		{Mode: "calldata", To: calldataAddr},
		{Mode: "blob", To: blobAddr},
	})
	if err != nil {
		t.Fatalf("pickCheapest: %v", err)
	}
	if chosen.Mode != "blob" {
		t.Fatalf("chosen.Mode = %q, want blob (cheaper estimated cost)", chosen.Mode)
	}
	if gasLimit != 50_000 {
		t.Fatalf("gasLimit = %d, want 50000", gasLimit)
	}
}

func TestPickCheapest_FallsBackToSurvivingCandidate(t *testing.T) {
	view := &fakeL1Reader{
		tip: big.NewInt(2_000_000_000),
		gasByAddr: map[common.Address]uint64{
			calldataAddr: 200_000,
		},
		gasErr: map[common.Address]error{
			blobAddr: errors.New("estimation reverted"),
		},
	}
	m := New(nil, view, Config{})
	chosen, _, err := m.pickCheapest(context.Background(), []Candidate{
		{Mode: "calldata", To: calldataAddr},
		{Mode: "blob", To: blobAddr},
	})
	if err != nil {
		t.Fatalf("pickCheapest: %v", err)
	}
	if chosen.Mode != "calldata" {
		t.Fatalf("chosen.Mode = %q, want calldata once the blob estimate failed", chosen.Mode)
	}
}

func TestPickCheapest_AllCandidatesFail(t *testing.T) {
	view := &fakeL1Reader{
		tip: big.NewInt(2_000_000_000),
		gasErr: map[common.Address]error{
			calldataAddr: errors.New("estimation reverted"),
		},
	}
	m := New(nil, view, Config{})
	if _, _, err := m.pickCheapest(context.Background(), []Candidate{{Mode: "calldata", To: calldataAddr}}); err == nil {
		t.Fatal("expected error when every candidate fails estimation, got nil")
	}
}

func TestPickCheapest_BumpsTipToFloor(t *testing.T) {
	view := &fakeL1Reader{
		tip:       big.NewInt(100), // far below the 1 gwei floor
		gasByAddr: map[common.Address]uint64{calldataAddr: 100_000},
	}
	m := New(nil, view, Config{MinPriorityFeeWei: big.NewInt(1_000_000_000)})
	_, _, err := m.pickCheapest(context.Background(), []Candidate{{Mode: "calldata", To: calldataAddr}})
	if err != nil {
		t.Fatalf("pickCheapest: %v", err)
	}
}

func TestPickCheapest_PropagatesTipReadError(t *testing.T) {
	view := &fakeL1Reader{tipErr: errors.New("rpc down")}
	m := New(nil, view, Config{})
	if _, _, err := m.pickCheapest(context.Background(), []Candidate{{Mode: "calldata", To: calldataAddr}}); err == nil {
		t.Fatal("expected error when the tip cap read fails, got nil")
	}
}

func TestNew_DefaultsMinPriorityFee(t *testing.T) {
	m := New(nil, &fakeL1Reader{}, Config{})
	if m.cfg.MinPriorityFeeWei.Cmp(DefaultMinPriorityFeeWei) != 0 {
		t.Fatalf("MinPriorityFeeWei = %s, want default %s", m.cfg.MinPriorityFeeWei, DefaultMinPriorityFeeWei)
	}
}

func TestInFlight_InitiallyFalse(t *testing.T) {
	m := New(nil, &fakeL1Reader{}, Config{})
	if m.InFlight() {
		t.Fatal("InFlight() = true for a freshly constructed TxMonitor, want false")
	}
}

type errorDataErr struct{ data any }

func (e errorDataErr) Error() string  { return "revert" }
func (e errorDataErr) ErrorData() any { return e.data }

func TestRevertSelector(t *testing.T) {
	sel, ok := revertSelector(errorDataErr{data: "0x5f8f2f80"})
	if !ok || sel != selectorEstimationTooEarly {
		t.Fatalf("revertSelector = (%q, %v), want (%q, true)", sel, ok, selectorEstimationTooEarly)
	}
	if _, ok := revertSelector(errors.New("plain error")); ok {
		t.Fatal("revertSelector = true for a non-data error, want false")
	}
	if _, ok := revertSelector(errorDataErr{data: "0x1234"}); ok {
		t.Fatal("revertSelector = true for data shorter than a selector, want false")
	}
}

func TestClassifyEstimationError_MapsKnownSelectors(t *testing.T) {
	m := New(nil, &fakeL1Reader{}, Config{})

	tooEarly := m.classifyEstimationError(Candidate{Mode: "calldata"}, errorDataErr{data: "0x" + selectorEstimationTooEarly})
	if tooEarly.Kind != errs.KindEstimationTooEarly {
		t.Fatalf("classifyEstimationError selector=%s kind = %v, want EstimationTooEarly", selectorEstimationTooEarly, tooEarly.Kind)
	}

	invalidShift := m.classifyEstimationError(Candidate{Mode: "calldata"}, errorDataErr{data: "0x" + selectorInvalidTimeShift})
	if invalidShift.Kind != errs.KindEstimationFailed {
		t.Fatalf("classifyEstimationError selector=%s kind = %v, want EstimationFailed", selectorInvalidTimeShift, invalidShift.Kind)
	}

	unknown := m.classifyEstimationError(Candidate{Mode: "calldata"}, errors.New("boom"))
	if unknown.Kind != errs.KindEstimationFailed {
		t.Fatalf("classifyEstimationError for an unmatched error kind = %v, want EstimationFailed", unknown.Kind)
	}
}

func TestClassifySendError_TimeoutIsTransient(t *testing.T) {
	m := New(nil, &fakeL1Reader{}, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	got := m.classifySendError(ctx, errors.New("deadline"))
	if got.Kind != errs.KindTransientRpc {
		t.Fatalf("classifySendError on a cancelled context kind = %v, want TransientRpc", got.Kind)
	}
}

func TestClassifySendError_OtherwiseFatal(t *testing.T) {
	m := New(nil, &fakeL1Reader{}, Config{})
	got := m.classifySendError(context.Background(), errors.New("reverted"))
	if got.Kind != errs.KindFatalSubmit {
		t.Fatalf("classifySendError kind = %v, want FatalSubmit", got.Kind)
	}
}
