package date

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAndString(t *testing.T) {
	d, err := Parse("2024-03-15")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-15", d.String())

	_, err = Parse("15-03-2024")
	assert.Error(t, err)
}

func TestJSONRoundTrip(t *testing.T) {
	type payload struct {
		Due Date `json:"due"`
	}
	in := payload{Due: New(2025, time.June, 1)}

	b, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"due":"2025-06-01"}`, string(b))

	var out payload
	require.NoError(t, json.Unmarshal(b, &out))
	assert.True(t, out.Due.Equal(in.Due.Time))
}

func TestUnmarshalEmpty(t *testing.T) {
	var d Date
	require.NoError(t, d.UnmarshalJSON([]byte(`""`)))
	assert.True(t, d.IsZero())
}

func TestScan(t *testing.T) {
	var d Date
	require.NoError(t, d.Scan(time.Date(2024, 7, 4, 13, 45, 0, 0, time.Local)))
	assert.Equal(t, "2024-07-04", d.String())

	require.NoError(t, d.Scan("2023-01-31"))
	assert.Equal(t, "2023-01-31", d.String())

	assert.Error(t, d.Scan(42))
}

func TestAddMonths(t *testing.T) {
	d := New(2024, time.January, 15)
	assert.Equal(t, "2024-04-15", d.AddMonths(3).String())
	assert.Equal(t, "2025-01-15", d.AddMonths(12).String())
}

func TestMonthsBetween(t *testing.T) {
	cases := []struct {
		name  string
		start Date
		end   Date
		want  int
	}{
		{"same day", New(2024, time.January, 1), New(2024, time.January, 1), 0},
		{"one year", New(2024, time.January, 1), New(2025, time.January, 1), 12},
		{"partial month floors", New(2024, time.January, 15), New(2024, time.March, 10), 1},
		{"end before start", New(2024, time.June, 1), New(2024, time.January, 1), 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, MonthsBetween(tc.start, tc.end))
		})
	}
}
