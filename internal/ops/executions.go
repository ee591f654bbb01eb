package ops

import (
	"os"
	"time"

	"github.com/bytedance/sonic"
	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"

	"main/internal/schema"
)

// ExecutionFile mirrors one record of a JSON execution batch. String
// fields are converted leniently: records that fail to convert come
// out malformed and are excluded by pre-validation, not here.
type ExecutionFile struct {
	ID         uint64 `json:"id"`
	Account    string `json:"account"`
	Symbol     string `json:"symbol"`
	Side       string `json:"side"`
	Quantity   int64  `json:"quantity"`
	Price      string `json:"price"`
	Timestamp  string `json:"timestamp"`
	Commission string `json:"commission"`
	SourceRef  string `json:"sourceRef"`
	Tag        string `json:"tag"`
}

// LoadExecutions reads a JSON array of execution records.
func LoadExecutions(path string) ([]schema.Execution, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var records []ExecutionFile
	if err := sonic.ConfigFastest.Unmarshal(data, &records); err != nil {
		return nil, errors.Wrapf(err, "decode execution file %s", path)
	}

	execs := make([]schema.Execution, 0, len(records))
	for _, record := range records {
		execs = append(execs, record.ToExecution())
	}
	return execs, nil
}

// ToExecution converts one file record without validating it.
func (r ExecutionFile) ToExecution() schema.Execution {
	side, _ := schema.ParseSide(r.Side)
	tag, _ := schema.ParseTag(r.Tag)
	price, _ := decimal.NewFromString(r.Price)
	commission := decimal.Zero
	if r.Commission != "" {
		commission, _ = decimal.NewFromString(r.Commission)
	}
	var ts time.Time
	if parsed, err := time.Parse(time.RFC3339Nano, r.Timestamp); err == nil {
		ts = parsed.UTC()
	}
	return schema.Execution{
		ID:         r.ID,
		Account:    r.Account,
		Symbol:     r.Symbol,
		Side:       side,
		Quantity:   r.Quantity,
		Price:      price,
		Timestamp:  ts,
		Commission: commission,
		SourceRef:  r.SourceRef,
		Tag:        tag,
	}
}
