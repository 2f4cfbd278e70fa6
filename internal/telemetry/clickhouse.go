package telemetry

import (
	"context"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// ClickHouseSink appends structured store/retrieve event rows for offline
// analytics. It is never on the request-latency critical path: failures
// are logged and swallowed (SPEC_FULL.md §4.8, §4.16).
type ClickHouseSink struct {
	conn  clickhouse.Conn
	table string
}

func NewClickHouseSink(conn clickhouse.Conn, table string) *ClickHouseSink {
	if table == "" {
		table = "context_events"
	}
	return &ClickHouseSink{conn: conn, table: table}
}

// Event is one row of the analytics table.
type Event struct {
	Kind           string // "store" | "retrieve"
	ConversationID string
	Strategy       string
	Tier           string
	DurationMS     float64
	ItemCount      int
	At             time.Time
}

func (s *ClickHouseSink) Record(ctx context.Context, e Event) {
	if s == nil || s.conn == nil {
		return
	}
	err := s.conn.Exec(ctx,
		`INSERT INTO `+s.table+` (kind, conversation_id, strategy, tier, duration_ms, item_count, at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.Kind, e.ConversationID, e.Strategy, e.Tier, e.DurationMS, e.ItemCount, e.At,
	)
	if err != nil {
		LoggerWithTrace(ctx).Warn().Err(err).Msg("clickhouse sink write failed")
	}
}

// EnsureTable creates the analytics table if it doesn't exist yet.
func (s *ClickHouseSink) EnsureTable(ctx context.Context) error {
	return s.conn.Exec(ctx, `
CREATE TABLE IF NOT EXISTS `+s.table+` (
  kind String,
  conversation_id String,
  strategy String,
  tier String,
  duration_ms Float64,
  item_count UInt32,
  at DateTime
) ENGINE = MergeTree() ORDER BY at
`)
}
