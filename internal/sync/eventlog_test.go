package syncx

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-quizdesk/internal/db"
)

func TestRecordAndList(t *testing.T) {
	ctx := context.Background()
	dbh, err := db.Open(ctx, db.DriverSQLite, "file:"+t.Name()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	defer dbh.Close()

	r := NewEventRepo(dbh, "device_1")
	r.now = func() time.Time { return time.Unix(1700000000, 0) }

	require.NoError(t, r.Record(ctx, QuizStarted, "", map[string]any{"topic": "Hàm số", "level": 2}))
	require.NoError(t, r.Record(ctx, QuizFinished, "att_1", map[string]any{"reason": "timeout"}))

	evs, err := r.List(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, evs, 2)
	assert.Equal(t, QuizStarted, evs[0].Type)
	assert.Len(t, evs[0].Key, 36)
	assert.Equal(t, "device_1", evs[0].DeviceID)
	assert.Equal(t, int64(1700000000), evs[0].CreatedAt)
	assert.JSONEq(t, `{"reason":"timeout"}`, evs[1].DataJSON)
	assert.Equal(t, "att_1", evs[1].Key)

	later, err := r.List(ctx, evs[0].Seq, 10)
	require.NoError(t, err)
	require.Len(t, later, 1)
	assert.Equal(t, QuizFinished, later[0].Type)
}

func TestRecordRejectsUnencodable(t *testing.T) {
	r := &EventRepo{now: time.Now}
	err := r.Record(context.Background(), ViolationObserved, "", func() {})
	assert.Error(t, err)
}
