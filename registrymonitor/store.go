package registrymonitor

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pressly/goose/v3"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store is a GORM-backed handle onto the registry monitor's read model.
// Exactly one OperatorLookup implementation is active per node: either this
// Store (reading a pre-populated read model) or l1.InboxClient (reading the
// chain live); both satisfy the same shape OperatorStatus depends on.
type Store struct {
	db *gorm.DB
}

// Open connects to dsn and runs any pending goose migrations.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open registry monitor database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to unwrap registry monitor *sql.DB: %w", err)
	}
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("mysql"); err != nil {
		return nil, fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.Up(sqlDB, "migrations"); err != nil {
		return nil, fmt.Errorf("failed to run registry monitor migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// OperatorsForEpoch reads the (current, next) operator pair the indexer
// recorded for epoch, satisfying the same contract l1.InboxClient.OperatorsForEpoch
// does (spec.md §4.2 step 3). epochTimestamp/slotTimestamp are accepted for
// interface parity but unused: the read model is keyed by epoch number, not
// wall-clock time, since the indexer already resolved that mapping.
func (s *Store) OperatorsForEpoch(ctx context.Context, epoch uint64) (current, next common.Address, err error) {
	var rows []Operator
	if err := s.db.WithContext(ctx).Where("epoch = ?", epoch).Find(&rows).Error; err != nil {
		return common.Address{}, common.Address{}, fmt.Errorf("failed to query operators for epoch %d: %w", epoch, err)
	}
	for _, r := range rows {
		addr := common.HexToAddress(r.Address)
		if r.IsCurrent {
			current = addr
		}
		if r.IsNext {
			next = addr
		}
	}
	return current, next, nil
}

// ErrNoIndexedBlock is returned when the status table's single row is
// missing, which should never happen after a successful migration.
var ErrNoIndexedBlock = errors.New("registrymonitor: status row missing")

// IndexedBlock returns the highest L1 block number the read model reflects,
// the watermark callers must compare against L1 chain height before trusting
// a lookup (spec.md §6).
func (s *Store) IndexedBlock(ctx context.Context) (uint64, error) {
	var row Status
	if err := s.db.WithContext(ctx).First(&row, "id = ?", 0).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrNoIndexedBlock
		}
		return 0, fmt.Errorf("failed to read indexed block watermark: %w", err)
	}
	return row.IndexedBlock, nil
}

// ProtocolConfigForEpoch reads the protocol config row the indexer recorded
// for epoch, the read-model counterpart of l1.InboxClient.FetchProtocolConfig.
func (s *Store) ProtocolConfigForEpoch(ctx context.Context, epoch uint64) (Protocol, error) {
	var row Protocol
	if err := s.db.WithContext(ctx).First(&row, "epoch = ?", epoch).Error; err != nil {
		return Protocol{}, fmt.Errorf("failed to read protocol config for epoch %d: %w", epoch, err)
	}
	return row, nil
}

// UpsertOperators replaces the operator rows for the given epoch with current
// and next, the write path an external event indexer process calls after
// observing a PreconfWhitelist update on L1. Kept here (rather than a
// separate indexer binary, out of scope per spec.md) so the read-model
// contract is exercised end-to-end by this package's own tests.
func (s *Store) UpsertOperators(ctx context.Context, epoch uint64, current, next common.Address) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("epoch = ?", epoch).Delete(&Operator{}).Error; err != nil {
			return err
		}
		rows := []Operator{
			{Address: current.Hex(), Epoch: epoch, IsCurrent: true},
			{Address: next.Hex(), Epoch: epoch, IsNext: true},
		}
		return tx.Create(&rows).Error
	})
}

// AdvanceIndexedBlock bumps the status watermark, called by the indexer write
// path once a block's worth of events has been applied.
func (s *Store) AdvanceIndexedBlock(ctx context.Context, blockNum uint64) error {
	return s.db.WithContext(ctx).Model(&Status{}).Where("id = ?", 0).Update("indexed_block", blockNum).Error
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
