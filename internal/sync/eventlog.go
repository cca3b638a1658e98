package syncx

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Event types written by the desk.
const (
	QuizStarted       = "QuizStarted"
	QuizFinished      = "QuizFinished"
	ViolationObserved = "ViolationObserved"
	AttemptStarted    = "AttemptStarted"
)

type Event struct {
	Seq       int64  `db:"seq" json:"seq"`
	DeviceID  string `db:"device_id" json:"deviceId"`
	Type      string `db:"typ" json:"type"`
	Key       string `db:"key" json:"key"`
	DataJSON  string `db:"data" json:"data"`
	CreatedAt int64  `db:"created_at" json:"createdAt"`
}

// EventRepo is the append-only local journal in event_log.
type EventRepo struct {
	db       *sqlx.DB
	deviceID string
	now      func() time.Time
}

func NewEventRepo(db *sqlx.DB, deviceID string) *EventRepo {
	return &EventRepo{db: db, deviceID: deviceID, now: time.Now}
}

func (r *EventRepo) Append(ctx context.Context, e Event) error {
	if e.Key == "" {
		e.Key = uuid.NewString()
	}
	if e.DeviceID == "" {
		e.DeviceID = r.deviceID
	}
	_, err := r.db.ExecContext(ctx, r.db.Rebind(
		`INSERT INTO event_log (device_id, typ, key, data, created_at)
		 VALUES (?,?,?,?,?)`),
		e.DeviceID, e.Type, e.Key, e.DataJSON, r.now().Unix())
	return err
}

// Record marshals data and appends it under typ. An empty key gets a fresh
// uuid.
func (r *EventRepo) Record(ctx context.Context, typ, key string, data any) error {
	b, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("event %s: %w", typ, err)
	}
	return r.Append(ctx, Event{Type: typ, Key: key, DataJSON: string(b)})
}

// List returns up to limit events with seq > after, oldest first.
func (r *EventRepo) List(ctx context.Context, after int64, limit int) ([]Event, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var out []Event
	err := r.db.SelectContext(ctx, &out, r.db.Rebind(
		`SELECT seq, device_id, typ, key, data, created_at
		   FROM event_log WHERE seq > ? ORDER BY seq LIMIT ?`), after, limit)
	return out, err
}
