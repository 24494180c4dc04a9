package models

import (
	"sort"
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// Resource is a multilingual document. Title, caption and content map a
// language code to the field text in that language.
type Resource struct {
	ID        surrealmodels.RecordID `json:"id"`
	Slug      string                 `json:"slug"`
	Title     map[string]string      `json:"title,omitempty"`
	Caption   map[string]string      `json:"caption,omitempty"`
	Content   map[string]string      `json:"content,omitempty"`
	StartDate *time.Time             `json:"start_date,omitempty"`
	EndDate   *time.Time             `json:"end_date,omitempty"`
	Created   time.Time              `json:"created,omitempty"`
	Updated   time.Time              `json:"updated,omitempty"`
}

// DisplayName picks a human-readable name for the resource: the English title
// when present, otherwise the first title in language order, otherwise the slug.
func (r *Resource) DisplayName() string {
	if t := r.Title["en"]; t != "" {
		return t
	}
	langs := make([]string, 0, len(r.Title))
	for lang := range r.Title {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	for _, lang := range langs {
		if r.Title[lang] != "" {
			return r.Title[lang]
		}
	}
	return r.Slug
}
