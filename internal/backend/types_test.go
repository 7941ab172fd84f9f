package backend

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimestampParsesServerFormats(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want time.Time
	}{
		{"naive", `"2025-04-10T09:00:00"`, time.Date(2025, 4, 10, 9, 0, 0, 0, time.Local)},
		{"naive fractional", `"2025-04-10T09:00:00.123456"`, time.Date(2025, 4, 10, 9, 0, 0, 123456000, time.Local)},
		{"rfc3339", `"2025-04-10T09:00:00Z"`, time.Date(2025, 4, 10, 9, 0, 0, 0, time.UTC)},
		{"minutes only", `"2025-04-10T09:00"`, time.Date(2025, 4, 10, 9, 0, 0, 0, time.Local)},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var ts Timestamp
			require.NoError(t, json.Unmarshal([]byte(tt.in), &ts))
			assert.True(t, ts.Equal(tt.want), "got %s want %s", ts.Time, tt.want)
		})
	}
}

func TestTimestampNullAndGarbage(t *testing.T) {
	var ts Timestamp
	require.NoError(t, json.Unmarshal([]byte(`null`), &ts))
	assert.True(t, ts.IsZero())
	require.Error(t, json.Unmarshal([]byte(`"tomorrow"`), &ts))
}

func TestTimestampMarshalsNaiveLocal(t *testing.T) {
	ts := NewTimestamp(time.Date(2025, 4, 10, 9, 0, 0, 0, time.Local))
	raw, err := json.Marshal(ts)
	require.NoError(t, err)
	assert.Equal(t, `"2025-04-10T09:00:00"`, string(raw))

	raw, err = json.Marshal(Timestamp{})
	require.NoError(t, err)
	assert.Equal(t, `null`, string(raw))
}

func TestReminderAtFallsBackToCourtDate(t *testing.T) {
	court := NewTimestamp(time.Date(2025, 4, 10, 9, 0, 0, 0, time.Local))
	entry := ScheduleEntry{CourtDate: court}
	assert.True(t, entry.ReminderAt().Equal(court.Time))

	earlier := NewTimestamp(court.Add(-time.Hour))
	entry.ReminderDate = &earlier
	assert.True(t, entry.ReminderAt().Equal(earlier.Time))
}

func TestMessageRequestEncodesMissingSessionAsNull(t *testing.T) {
	raw, err := json.Marshal(MessageRequest{Message: "hi"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"session_id":null,"message":"hi"}`, string(raw))

	id := SessionID(7)
	raw, err = json.Marshal(MessageRequest{SessionID: &id, Message: "hi"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"session_id":7,"message":"hi"}`, string(raw))
}

func TestParseSessionID(t *testing.T) {
	id, err := ParseSessionID("42")
	require.NoError(t, err)
	assert.Equal(t, SessionID(42), id)

	for _, bad := range []string{"", "0", "-3", "abc"} {
		_, err := ParseSessionID(bad)
		assert.Error(t, err, bad)
	}
}

func TestTokenStoreRoundTrip(t *testing.T) {
	store := NewTokenStore(filepath.Join(t.TempDir(), "nested", "token"))

	_, err := store.Load()
	require.ErrorIs(t, err, ErrNoToken)

	require.NoError(t, store.Save("abc"))
	token, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "abc", token)

	require.NoError(t, store.Clear())
	require.NoError(t, store.Clear())
	_, err = store.Load()
	require.ErrorIs(t, err, ErrNoToken)
}
