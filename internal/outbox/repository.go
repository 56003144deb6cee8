package outbox

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"slotkeeper/backend/internal/domain"
	"slotkeeper/backend/internal/otelx"
)

const aggregateAppointment = "appointment"

// Record is one row of outbox_events. The Kafka topic equals EventType.
type Record struct {
	bun.BaseModel `bun:"table:outbox_events"`

	ID            int64      `bun:"id,pk,autoincrement"`
	EventID       string     `bun:"event_id,notnull,type:uuid,default:gen_random_uuid()"`
	AggregateType string     `bun:"aggregate_type,notnull"`
	AggregateID   string     `bun:"aggregate_id,notnull"`
	EventType     string     `bun:"event_type,notnull"`
	Payload       []byte     `bun:"payload,notnull,type:jsonb"`
	Traceparent   string     `bun:"traceparent"`
	Tracestate    string     `bun:"tracestate"`
	CreatedAt     time.Time  `bun:"created_at,notnull,default:current_timestamp"`
	PublishedAt   *time.Time `bun:"published_at"`
}

type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

// Insert writes evt through db, which is expected to be the caller's open transaction.
func (r *Repository) Insert(ctx context.Context, db bun.IDB, evt domain.Event) error {
	traceparent, tracestate := otelx.TraceContextStrings(ctx)
	rec := Record{
		AggregateType: aggregateAppointment,
		AggregateID:   evt.AppointmentID.String(),
		EventType:     evt.Type,
		Payload:       evt.Payload,
		Traceparent:   traceparent,
		Tracestate:    tracestate,
	}
	_, err := db.NewInsert().
		Model(&rec).
		ExcludeColumn("id", "event_id", "created_at", "published_at").
		Exec(ctx)
	return err
}

func (r *Repository) FetchUnpublished(ctx context.Context, db bun.IDB, limit int) ([]Record, error) {
	var records []Record
	err := db.NewSelect().
		Model(&records).
		Where("published_at IS NULL").
		OrderExpr("id ASC").
		Limit(limit).
		For("UPDATE SKIP LOCKED").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *Repository) MarkPublished(ctx context.Context, db bun.IDB, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := db.NewUpdate().
		Model((*Record)(nil)).
		Set("published_at = now()").
		Where("id IN (?)", bun.In(ids)).
		Exec(ctx)
	return err
}
