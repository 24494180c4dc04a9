package models

import (
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// Entity is a named real-world referent (person, location, organization...)
// that can appear in resources.
type Entity struct {
	ID          surrealmodels.RecordID `json:"id"`
	Slug        string                 `json:"slug"`
	Name        string                 `json:"name"`
	Type        string                 `json:"type"`
	Metadata    map[string]any         `json:"metadata,omitempty"`
	Links       map[string]any         `json:"links,omitempty"`
	FirstName   *string                `json:"first_name,omitempty"`
	LastName    *string                `json:"last_name,omitempty"`
	Lat         *float64               `json:"lat,omitempty"`
	Lng         *float64               `json:"lng,omitempty"`
	Country     *string                `json:"country,omitempty"`
	GeonameID   *string                `json:"geoname_id,omitempty"`
	GeocodingID *string                `json:"geocoding_id,omitempty"`
	Created     time.Time              `json:"created,omitempty"`
	Updated     time.Time              `json:"updated,omitempty"`
}

// EntityIdentifier is the display-only view of an entity used in audit
// messages. It is never used as authority for a mutation.
type EntityIdentifier struct {
	UUID string `json:"uuid"`
	Slug string `json:"slug"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// ResourceIdentifier is the display-only view of a resource.
type ResourceIdentifier struct {
	UUID string `json:"uuid"`
	Slug string `json:"slug"`
	Name string `json:"name"`
}
