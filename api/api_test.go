package api

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQueryParams(t *testing.T) {
	testCases := []struct {
		name     string
		query    string
		expected QueryParams
		wantErr  bool
	}{
		{
			name:     "defaults when empty",
			query:    "",
			expected: QueryParams{Limit: DEFAULT_LIMIT, Offset: 0},
		},
		{
			name:     "explicit limit and offset",
			query:    "limit=10&offset=20",
			expected: QueryParams{Limit: 10, Offset: 20},
		},
		{
			name:     "limit is clamped",
			query:    "limit=50000",
			expected: QueryParams{Limit: MAX_LIMIT},
		},
		{
			name:     "unknown keys are ignored",
			query:    "limit=5&foo=bar",
			expected: QueryParams{Limit: 5},
		},
		{
			name:    "non numeric limit",
			query:   "limit=abc",
			wantErr: true,
		},
		{
			name:    "negative offset",
			query:   "offset=-1",
			wantErr: true,
		},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/checkpoints/parser?"+tt.query, nil)
			params, err := ParseQueryParams(req)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, params)
		})
	}
}

func TestPage(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	assert.Equal(t, []int{1, 2}, Page(items, QueryParams{Limit: 2}))
	assert.Equal(t, []int{4, 5}, Page(items, QueryParams{Limit: 10, Offset: 3}))
	assert.Equal(t, []int{}, Page(items, QueryParams{Limit: 10, Offset: 5}))
}
