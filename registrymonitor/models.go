// Package registrymonitor is the read-model store an external event indexer
// populates with operator-whitelist and bond-registration data (spec.md §6:
// "Core assumes that either a pre-populated read model is available or the
// lookup is delegated to the external event indexer"). It satisfies the same
// operator-lookup contract l1.InboxClient does, backed by a GORM-mapped MySQL
// schema migrated with goose rather than a live chain read, so OperatorStatus
// can run against either without change (SPEC_FULL.md C.7, "permissionless
// lookahead drop-in point").
package registrymonitor

import "time"

// Operator mirrors spec.md §6's `operators` table: the whitelist membership
// record for one address as of one epoch.
type Operator struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	Address   string `gorm:"column:address;size:42;index:idx_operators_epoch,priority:2"`
	Epoch     uint64 `gorm:"column:epoch;index:idx_operators_epoch,priority:1"`
	IsCurrent bool   `gorm:"column:is_current"`
	IsNext    bool   `gorm:"column:is_next"`
	UpdatedAt time.Time
}

func (Operator) TableName() string { return "operators" }

// SignedRegistration mirrors spec.md §6's `signed_registrations` table: a
// prover/operator's bond-registration signature, as the indexer observed it
// on L1.
type SignedRegistration struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	Address   string `gorm:"column:address;size:42;index"`
	Signature string `gorm:"column:signature;size:132"`
	BlockNum  uint64 `gorm:"column:block_num"`
	CreatedAt time.Time
}

func (SignedRegistration) TableName() string { return "signed_registrations" }

// Protocol mirrors spec.md §6's `protocols` table: one row per protocol
// config epoch the indexer has observed (base fee config, block limits).
type Protocol struct {
	ID                     uint64 `gorm:"primaryKey;autoIncrement"`
	Epoch                  uint64 `gorm:"column:epoch;uniqueIndex"`
	AdjustmentQuotient     uint8  `gorm:"column:adjustment_quotient"`
	SharingPctg            uint8  `gorm:"column:sharing_pctg"`
	GasIssuancePerSecond   uint32 `gorm:"column:gas_issuance_per_second"`
	MinGasExcess           uint64 `gorm:"column:min_gas_excess"`
	MaxGasIssuancePerBlock uint32 `gorm:"column:max_gas_issuance_per_block"`
	MaxBlocksPerBatch      uint16 `gorm:"column:max_blocks_per_batch"`
	MaxAnchorHeightOffset  uint64 `gorm:"column:max_anchor_height_offset"`
	BlockMaxGasLimit       uint32 `gorm:"column:block_max_gas_limit"`
}

func (Protocol) TableName() string { return "protocols" }

// Status mirrors spec.md §6's single-row `status(id=0, indexed_block)` table:
// the indexer's watermark, the highest L1 block its read model reflects.
type Status struct {
	ID           uint64 `gorm:"primaryKey"`
	IndexedBlock uint64 `gorm:"column:indexed_block"`
}

func (Status) TableName() string { return "status" }
