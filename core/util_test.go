package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExcerpt(t *testing.T) {
	tests := []struct {
		s    string
		n    int
		want string
	}{
		{s: "", n: 3, want: ""},
		{s: "one  two\nthree", n: 3, want: "one two three"},
		{s: "one two three four", n: 3, want: "one two three..."},
		{s: "one two", n: 0, want: "one two"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Excerpt(tt.s, tt.n), tt.s)
	}
}

func TestSplitList(t *testing.T) {
	assert.Empty(t, SplitList(""))
	assert.Equal(t, []string{"a@test.cd", "b@test.cd"}, SplitList(" a@test.cd, ,b@test.cd "))
}

func TestParseOrdering(t *testing.T) {
	allowed := []string{"created_at", "title"}

	tests := []struct {
		name    string
		param   string
		want    []DBOrdering
		wantErr bool
	}{
		{name: "empty", param: " "},
		{name: "single", param: "title", want: []DBOrdering{{Field: "title", Ascending: true}}},
		{
			name: "multiple", param: "-created_at, title",
			want: []DBOrdering{{Field: "created_at", Ascending: false}, {Field: "title", Ascending: true}},
		},
		{name: "not allowed", param: "-password", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseOrdering(tt.param, allowed...)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, CodeValidationFailed, ErrorCode(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPagination(t *testing.T) {
	tests := []struct {
		page       Pagination
		total      int
		wantOffset int
		wantPages  int
	}{
		{page: Pagination{Page: 1, PerPage: 2}, total: 0, wantOffset: 0, wantPages: 0},
		{page: Pagination{Page: 1, PerPage: 2}, total: 3, wantOffset: 0, wantPages: 2},
		{page: Pagination{Page: 3, PerPage: 2}, total: 4, wantOffset: 4, wantPages: 2},
		{page: Pagination{Page: 0, PerPage: 2}, total: 5, wantOffset: 0, wantPages: 3},
		{page: Pagination{Page: 2}, total: 5, wantOffset: 0, wantPages: 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.wantOffset, tt.page.Offset())
		assert.Equal(t, tt.wantPages, tt.page.TotalPages(tt.total))
	}
}
