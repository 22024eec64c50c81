package clickhouse

import (
	"context"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"hermes/internal/domain/trade"
	chwriter "hermes/pkg/clickhouse"
	"hermes/pkg/logger"
)

// TradeLog is an append-only audit record of executed trades, written
// best-effort after the Postgres ledger write. Rows are batched before
// insertion; a failed audit write is logged, never surfaced to the
// engine.
type TradeLog struct {
	conn   driver.Conn
	writer *chwriter.BatchWriter
	log    *logger.Logger
}

type tradeLogRow struct {
	tradeID      string
	userID       string
	signalID     string
	tradeType    string
	token        string
	price        float64
	amount       float64
	status       string
	autoExecuted bool
	createdAt    int64
}

// NewTradeLog creates a trade audit log writer
func NewTradeLog(conn driver.Conn) *TradeLog {
	l := &TradeLog{
		conn: conn,
		log:  logger.Get().With("component", "trade_log"),
	}
	l.writer = chwriter.NewBatchWriter(chwriter.BatchWriterConfig{
		FlushFunc: l.flush,
		Table:     "trade_log",
	})
	return l
}

// Start begins the background flush loop
func (l *TradeLog) Start(ctx context.Context) {
	l.writer.Start(ctx)
}

// Stop flushes pending rows and shuts the log down
func (l *TradeLog) Stop(ctx context.Context) error {
	return l.writer.Stop(ctx)
}

// Record appends one trade to the audit log
func (l *TradeLog) Record(ctx context.Context, t *trade.Trade) {
	var signalID string
	if t.SignalID != nil {
		signalID = t.SignalID.String()
	}

	row := tradeLogRow{
		tradeID:      t.ID.String(),
		userID:       t.UserID.String(),
		signalID:     signalID,
		tradeType:    t.Type.String(),
		token:        t.Token,
		price:        t.Price.InexactFloat64(),
		amount:       t.Amount.InexactFloat64(),
		status:       t.Status.String(),
		autoExecuted: t.AutoExecuted,
		createdAt:    t.CreatedAt.Unix(),
	}

	if err := l.writer.Add(ctx, row); err != nil {
		l.log.Warnw("Trade audit buffering failed", "trade_id", t.ID, "error", err)
	}
}

func (l *TradeLog) flush(ctx context.Context, rows []interface{}) error {
	batch, err := l.conn.PrepareBatch(ctx, `
		INSERT INTO trade_log (
			trade_id, user_id, signal_id, type, token,
			price, amount, status, auto_executed, created_at
		)`)
	if err != nil {
		return err
	}

	for _, item := range rows {
		row, ok := item.(tradeLogRow)
		if !ok {
			continue
		}
		if err := batch.Append(
			row.tradeID, row.userID, row.signalID,
			row.tradeType, row.token,
			row.price, row.amount,
			row.status, row.autoExecuted, row.createdAt,
		); err != nil {
			return err
		}
	}
	return batch.Send()
}
