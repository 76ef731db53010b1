package repository

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func Test_ParsePaging(t *testing.T) {
	testCases := []struct {
		name        string
		page        string
		perPage     string
		wantPage    int
		wantPerPage int
		expectError bool
	}{
		{name: "valid", page: "2", perPage: "10", wantPage: 2, wantPerPage: 10},
		{name: "surrounding spaces", page: " 1 ", perPage: "5", wantPage: 1, wantPerPage: 5},
		{name: "page zero", page: "0", perPage: "10", expectError: true},
		{name: "negative perPage", page: "1", perPage: "-3", expectError: true},
		{name: "non numeric perPage", page: "1", perPage: "ten", expectError: true},
		{name: "missing page", page: "", perPage: "10", expectError: true},
		{name: "missing both", page: "", perPage: "", expectError: true},
		{name: "decimal", page: "1.5", perPage: "10", expectError: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			page, perPage, err := ParsePaging(tc.page, tc.perPage)
			if tc.expectError {
				var argErr *ArgumentError
				require.ErrorAs(t, err, &argErr)
				assert.Equal(t, "page and perPage query parameters must be valid numbers", argErr.Error())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantPage, page)
			assert.Equal(t, tc.wantPerPage, perPage)
		})
	}
}

func Test_ParsePaging_Limits(t *testing.T) {
	testCases := []struct {
		name    string
		page    string
		perPage string
		wantErr error
	}{
		{name: "largest page size", page: "1", perPage: "100"},
		{name: "page size over the cap", page: "1", perPage: "101", wantErr: ErrPerPageTooLarge},
		{name: "huge page size", page: "1", perPage: "10000000000", wantErr: ErrPerPageTooLarge},
		{name: "skip would overflow", page: "4611686018427387905", perPage: "4", wantErr: ErrInvalidPaging},
		{name: "skip overflows with the largest page size", page: "92233720368547760", perPage: "100", wantErr: ErrInvalidPaging},
		{name: "largest page that still fits", page: "92233720368547759", perPage: "100"},
		{name: "page beyond int", page: "9223372036854775808", perPage: "1", wantErr: ErrInvalidPaging},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			page, perPage, err := ParsePaging(tc.page, tc.perPage)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.GreaterOrEqual(t, skipFor(page, perPage), int64(0))
		})
	}
}

func Test_identifierFilter(t *testing.T) {
	oid := primitive.NewObjectID()

	filter, err := identifierFilter(oid.Hex())
	require.NoError(t, err)
	assert.Equal(t, bson.M{"_id": oid}, filter)

	filter, err = identifierFilter("012345678901")
	require.NoError(t, err)
	assert.Equal(t, bson.M{"upc": "012345678901"}, filter)

	for _, bad := range []string{"", "abc", "01234567890", "0123456789012", "zzzzzzzzzzzzzzzzzzzzzzzz"} {
		_, err := identifierFilter(bad)
		assert.ErrorIs(t, err, ErrInvalidID, "identifier %q", bad)
	}
}

func Test_searchFilter(t *testing.T) {
	t.Run("empty matches everything", func(t *testing.T) {
		assert.Equal(t, bson.M{}, searchFilter(""))
		assert.Equal(t, bson.M{}, searchFilter("   "))
	})

	t.Run("multi field literal match", func(t *testing.T) {
		filter := searchFilter(" bread ")
		or, ok := filter["$or"].([]bson.M)
		require.True(t, ok)
		require.Len(t, or, 4)

		pattern := primitive.Regex{Pattern: "bread", Options: "i"}
		assert.Equal(t, bson.M{"name": pattern}, or[0])
		assert.Equal(t, bson.M{"brand": pattern}, or[1])
		assert.Equal(t, bson.M{"category": pattern}, or[2])
		assert.Equal(t, bson.M{"upc": "bread"}, or[3])
	})

	t.Run("regex metacharacters are escaped", func(t *testing.T) {
		filter := searchFilter("(a+)+$")
		or := filter["$or"].([]bson.M)
		assert.Equal(t, primitive.Regex{Pattern: `\(a\+\)\+\$`, Options: "i"}, or[0]["name"])
	})
}

func Test_skipFor(t *testing.T) {
	assert.Equal(t, int64(0), skipFor(1, 10))
	assert.Equal(t, int64(20), skipFor(3, 10))
	assert.Equal(t, int64(4), skipFor(5, 1))
	assert.Equal(t, int64(math.MaxInt64/100*100), skipFor(math.MaxInt64/100+1, 100))
}

func Test_listSort(t *testing.T) {
	sort := listSort()
	require.Len(t, sort, 2)
	assert.Equal(t, "history.valid_to", sort[0].Key)
	assert.Equal(t, -1, sort[0].Value)
}
