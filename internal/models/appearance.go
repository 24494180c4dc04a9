package models

import (
	"encoding/json"
	"fmt"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// Interval is a [start, end] character-offset pair locating a mention within
// a resource's canonical text.
type Interval [2]int

// Start returns the first offset.
func (i Interval) Start() int { return i[0] }

// End returns the second offset.
func (i Interval) End() int { return i[1] }

// UnmarshalJSON requires exactly two integers. Decoding straight into the
// array would drop extra elements and zero-fill missing ones.
func (i *Interval) UnmarshalJSON(data []byte) error {
	var pair []int
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("interval: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("interval: expected [start, end], got %d elements", len(pair))
	}
	*i = Interval{pair[0], pair[1]}
	return nil
}

// Context maps a language code to the mention intervals observed in that
// language's canonical text.
type Context map[string][]Interval

// Languages returns the language keys of the context.
func (c Context) Languages() []string {
	langs := make([]string, 0, len(c))
	for lang := range c {
		langs = append(langs, lang)
	}
	return langs
}

// Appearance is the appears_in edge: entity X is mentioned in resource Y.
type Appearance struct {
	ID        surrealmodels.RecordID `json:"id"`
	Entity    surrealmodels.RecordID `json:"in"`
	Resource  surrealmodels.RecordID `json:"out"`
	Frequency int                    `json:"frequency"`
	Languages []string               `json:"languages"`
	Context   Context                `json:"context"`
}

// LinkResult is what the store reports after creating, updating or deleting
// an appears_in edge. These identifiers are authoritative for result messages.
type LinkResult struct {
	EntityUUID   string `json:"entityUuid"`
	ResourceUUID string `json:"resourceUuid"`
	AppearanceID string `json:"appearanceId"`
}

// BulkResult is what one bulk link call or one drain batch reports.
// A nil EntityUUID means nothing matched.
type BulkResult struct {
	EntityUUID     *string `json:"entity_uuid"`
	TotalResources int     `json:"total_resources"`
}

// KeyphraseLink describes a full-text bulk link between an entity and every
// resource whose canonical text matches a keyphrase.
type KeyphraseLink struct {
	EntityUUID   string
	EntitySlug   string
	LanguageCode string
	IndexName    string
	Query        string
	Keyphrase    string
}
