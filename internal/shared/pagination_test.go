package shared

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParsePageParams(t *testing.T) {
	cases := []struct {
		name   string
		query  string
		limit  int
		offset int
	}{
		{"defaults", "", 50, 0},
		{"explicit", "limit=25&offset=100", 25, 100},
		{"clamped", "limit=9999", 200, 0},
		{"malformed", "limit=abc&offset=-5", 50, 0},
		{"zero limit", "limit=0&offset=10", 50, 10},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			q, err := url.ParseQuery(tc.query)
			require.NoError(t, err)
			p := ParsePageParams(q)
			require.Equal(t, tc.limit, p.Limit)
			require.Equal(t, tc.offset, p.Offset)
		})
	}
}
