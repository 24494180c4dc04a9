package offsets

import (
	"testing"

	"github.com/raphaelgruber/histograph-go/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestMerge(t *testing.T) {
	tests := []struct {
		name     string
		existing models.Context
		incoming models.Context
		want     models.Context
	}{
		{
			name:     "new interval sorted in, other language untouched",
			existing: models.Context{"en": {{10, 20}}, "fr": {{4, 8}}},
			incoming: models.Context{"en": {{2, 5}}},
			want:     models.Context{"en": {{2, 5}, {10, 20}}, "fr": {{4, 8}}},
		},
		{
			name:     "identical interval is deduplicated",
			existing: models.Context{"en": {{2, 5}}},
			incoming: models.Context{"en": {{2, 5}}},
			want:     models.Context{"en": {{2, 5}}},
		},
		{
			name:     "overlapping intervals are not coalesced",
			existing: models.Context{"en": {{2, 8}}},
			incoming: models.Context{"en": {{4, 10}, {2, 6}}},
			want:     models.Context{"en": {{2, 6}, {2, 8}, {4, 10}}},
		},
		{
			name:     "language only in incoming is added",
			existing: models.Context{"en": {{1, 2}}},
			incoming: models.Context{"de": {{7, 9}, {3, 4}}},
			want:     models.Context{"en": {{1, 2}}, "de": {{3, 4}, {7, 9}}},
		},
		{
			name:     "nothing stored yet",
			existing: nil,
			incoming: models.Context{"en": {{2, 5}}},
			want:     models.Context{"en": {{2, 5}}},
		},
		{
			name:     "no incoming context",
			existing: models.Context{"fr": {{4, 8}}},
			incoming: nil,
			want:     models.Context{"fr": {{4, 8}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Merge(tt.existing, tt.incoming))
		})
	}
}

func TestMergeIsIdempotent(t *testing.T) {
	incoming := models.Context{"en": {{2, 5}, {30, 34}}}
	once := Merge(nil, incoming)
	twice := Merge(once, incoming)
	assert.Equal(t, once, twice)
}

func TestMergeDoesNotMutateInputs(t *testing.T) {
	existing := models.Context{"en": {{10, 20}}}
	incoming := models.Context{"en": {{2, 5}}}
	_ = Merge(existing, incoming)
	assert.Equal(t, models.Context{"en": {{10, 20}}}, existing)
	assert.Equal(t, models.Context{"en": {{2, 5}}}, incoming)
}

func TestUnionLanguages(t *testing.T) {
	assert.Equal(t, []string{"en", "fr"}, UnionLanguages([]string{"en", "fr"}, []string{"en"}))
	assert.Equal(t, []string{"fr", "de"}, UnionLanguages([]string{"fr"}, []string{"de", "fr"}))
	assert.Equal(t, []string{"en"}, UnionLanguages(nil, []string{"en", "en"}))
}

func TestSortedLanguages(t *testing.T) {
	assert.Equal(t, []string{"de", "en", "fr"}, SortedLanguages(models.Context{"fr": nil, "en": nil, "de": nil}))
}
