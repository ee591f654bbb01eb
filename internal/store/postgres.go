package store

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"main/internal/schema"
	"main/pkg/conn"
)

const insertBatchSize = 500

// Postgres persists executions and positions through gorm.
type Postgres struct {
	db *gorm.DB
}

// NewPostgres migrates the schema and returns a Postgres-backed store.
func NewPostgres(client *conn.Client) (*Postgres, error) {
	db := client.DB()
	if db == nil {
		return nil, errors.New("postgres client is nil")
	}
	if err := db.AutoMigrate(&executionRow{}, &positionRow{}); err != nil {
		return nil, errors.Wrap(err, "migrate store schema")
	}
	return &Postgres{db: db}, nil
}

// AddExecutions inserts executions, ignoring ingestion-sequence
// duplicates: the rebuild contract expects a deduplicated batch.
func (s *Postgres) AddExecutions(ctx context.Context, execs []schema.Execution) error {
	if len(execs) == 0 {
		return nil
	}
	rows := make([]executionRow, len(execs))
	for i, e := range execs {
		rows[i] = toExecutionRow(e)
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(rows, insertBatchSize).Error
	if err != nil {
		return errors.Wrap(err, "insert executions")
	}
	return nil
}

// Executions fetches the scoped executions ordered by timestamp then
// ingestion sequence.
func (s *Postgres) Executions(ctx context.Context, scope Scope) ([]schema.Execution, error) {
	tx := s.db.WithContext(ctx).Model(&executionRow{})
	if scope.Account != "" {
		tx = tx.Where("account = ?", scope.Account)
	}
	if scope.Symbol != "" {
		tx = tx.Where("symbol = ?", scope.Symbol)
	}

	var rows []executionRow
	if err := tx.Order("timestamp, id").Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "fetch executions")
	}

	execs := make([]schema.Execution, 0, len(rows))
	for _, row := range rows {
		execs = append(execs, row.toExecution())
	}
	return execs, nil
}

// ReplacePositions swaps the scoped position set inside one
// transaction: a failure at any point rolls back and leaves the
// previously committed set completely unchanged.
func (s *Postgres) ReplacePositions(ctx context.Context, scope Scope, positions []schema.Position) error {
	rows := make([]positionRow, 0, len(positions))
	for _, p := range positions {
		row, err := toPositionRow(p)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		del := tx.Model(&positionRow{})
		if scope.Account != "" {
			del = del.Where("account = ?", scope.Account)
		}
		if scope.Symbol != "" {
			del = del.Where("symbol = ?", scope.Symbol)
		}
		if err := del.Where("1 = 1").Delete(&positionRow{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(rows, insertBatchSize).Error
	})
	if err != nil {
		return errors.Wrapf(err, "replace positions for scope %s", scope)
	}
	return nil
}

// Positions fetches positions matching the query, ordered by account,
// symbol, then entry time.
func (s *Postgres) Positions(ctx context.Context, query Query) ([]schema.Position, error) {
	tx := s.db.WithContext(ctx).Model(&positionRow{})
	if query.Account != "" {
		tx = tx.Where("account = ?", query.Account)
	}
	if query.Symbol != "" {
		tx = tx.Where("symbol = ?", query.Symbol)
	}
	if query.OpenOnly {
		tx = tx.Where("exit_time IS NULL")
	}
	if !query.From.IsZero() {
		tx = tx.Where("exit_time IS NULL OR exit_time > ?", query.From)
	}
	if !query.To.IsZero() {
		tx = tx.Where("entry_time < ?", query.To)
	}

	var rows []positionRow
	if err := tx.Order("account, symbol, entry_time").Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "fetch positions")
	}

	positions := make([]schema.Position, 0, len(rows))
	for _, row := range rows {
		p, err := row.toPosition()
		if err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}
	return positions, nil
}

type executionRow struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement:false"`
	Account    string `gorm:"size:64;index:idx_executions_scope"`
	Symbol     string `gorm:"size:32;index:idx_executions_scope"`
	Side       string `gorm:"size:16"`
	Quantity   int64
	Price      decimal.Decimal `gorm:"type:numeric(24,10)"`
	Timestamp  time.Time       `gorm:"index"`
	Commission decimal.Decimal `gorm:"type:numeric(24,10)"`
	SourceRef  string          `gorm:"size:128"`
	Tag        string          `gorm:"size:8"`
}

func (executionRow) TableName() string { return "executions" }

type positionRow struct {
	ID           string `gorm:"primaryKey;size:36"`
	Account      string `gorm:"size:64;index:idx_positions_scope"`
	Symbol       string `gorm:"size:32;index:idx_positions_scope"`
	Direction    string `gorm:"size:8"`
	EntryTime    time.Time `gorm:"index"`
	ExitTime     *time.Time
	Quantity     int64
	EntryPrice   decimal.Decimal  `gorm:"type:numeric(24,10)"`
	ExitPrice    *decimal.Decimal `gorm:"type:numeric(24,10)"`
	RealizedPnl  *decimal.Decimal `gorm:"type:numeric(24,10)"`
	Commission   decimal.Decimal  `gorm:"type:numeric(24,10)"`
	ExecutionIDs []byte           `gorm:"type:jsonb"`
	Tag          string           `gorm:"size:8"`
}

func (positionRow) TableName() string { return "positions" }

func toExecutionRow(e schema.Execution) executionRow {
	return executionRow{
		ID:         e.ID,
		Account:    e.Account,
		Symbol:     e.Symbol,
		Side:       e.Side.String(),
		Quantity:   e.Quantity,
		Price:      e.Price,
		Timestamp:  e.Timestamp.UTC(),
		Commission: e.Commission,
		SourceRef:  e.SourceRef,
		Tag:        e.Tag.String(),
	}
}

func (row executionRow) toExecution() schema.Execution {
	side, _ := schema.ParseSide(row.Side)
	tag, _ := schema.ParseTag(row.Tag)
	return schema.Execution{
		ID:         row.ID,
		Account:    row.Account,
		Symbol:     row.Symbol,
		Side:       side,
		Quantity:   row.Quantity,
		Price:      row.Price,
		Timestamp:  row.Timestamp.UTC(),
		Commission: row.Commission,
		SourceRef:  row.SourceRef,
		Tag:        tag,
	}
}

func toPositionRow(p schema.Position) (positionRow, error) {
	ids, err := sonic.ConfigFastest.Marshal(p.ExecutionIDs)
	if err != nil {
		return positionRow{}, errors.Wrapf(err, "encode execution ids for position %s", p.ID)
	}
	row := positionRow{
		ID:           p.ID.String(),
		Account:      p.Account,
		Symbol:       p.Symbol,
		Direction:    p.Direction.String(),
		EntryTime:    p.EntryTime.UTC(),
		Quantity:     p.Quantity,
		EntryPrice:   p.EntryPrice,
		ExitPrice:    p.ExitPrice,
		RealizedPnl:  p.RealizedPnL,
		Commission:   p.Commission,
		ExecutionIDs: ids,
		Tag:          p.Tag.String(),
	}
	if p.ExitTime != nil {
		exit := p.ExitTime.UTC()
		row.ExitTime = &exit
	}
	return row, nil
}

func (row positionRow) toPosition() (schema.Position, error) {
	id, err := uuid.Parse(row.ID)
	if err != nil {
		return schema.Position{}, errors.Wrapf(err, "parse position id %s", row.ID)
	}
	var ids []uint64
	if len(row.ExecutionIDs) > 0 {
		if err := sonic.ConfigFastest.Unmarshal(row.ExecutionIDs, &ids); err != nil {
			return schema.Position{}, errors.Wrapf(err, "decode execution ids for position %s", row.ID)
		}
	}
	direction, _ := schema.ParseDirection(row.Direction)
	tag, _ := schema.ParseTag(row.Tag)
	p := schema.Position{
		ID:           id,
		Account:      row.Account,
		Symbol:       row.Symbol,
		Direction:    direction,
		EntryTime:    row.EntryTime.UTC(),
		Quantity:     row.Quantity,
		EntryPrice:   row.EntryPrice,
		ExitPrice:    row.ExitPrice,
		RealizedPnL:  row.RealizedPnl,
		Commission:   row.Commission,
		ExecutionIDs: ids,
		Tag:          tag,
	}
	if row.ExitTime != nil {
		exit := row.ExitTime.UTC()
		p.ExitTime = &exit
	}
	return p, nil
}
