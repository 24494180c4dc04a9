package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Kind names one of the closed set of mutation intents.
type Kind string

const (
	KindLinkEntity       Kind = "link-entity"
	KindUnlinkEntity     Kind = "unlink-entity"
	KindChangeEntityType Kind = "change-entity-type"
	KindMergeEntities    Kind = "merge-entities"
	KindLinkEntityBulk   Kind = "link-entity-bulk"
	KindUnlinkEntityBulk Kind = "unlink-entity-bulk"
)

// Kinds lists every supported kind in a stable order.
var Kinds = []Kind{
	KindLinkEntity,
	KindUnlinkEntity,
	KindChangeEntityType,
	KindMergeEntities,
	KindLinkEntityBulk,
	KindUnlinkEntityBulk,
}

// ParseKind returns the Kind named by s, or false if s is not a known kind.
func ParseKind(s string) (Kind, bool) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

// Details is the kind-specific payload of an action. The set of
// implementations is closed: one struct per Kind.
type Details interface {
	Kind() Kind
	sealed()
}

// LinkEntityDetails links one entity to one resource.
// ContextLocation names the text field the offsets were measured against;
// empty means the whole canonical text.
type LinkEntityDetails struct {
	EntityUUID      string  `json:"entityUuid" validate:"required" jsonschema:"minLength=1"`
	ResourceUUID    string  `json:"resourceUuid" validate:"required" jsonschema:"minLength=1"`
	Context         Context `json:"context,omitempty"`
	ContextLocation string  `json:"contextLocation,omitempty" validate:"omitempty,oneof=title caption content" jsonschema:"enum=title,enum=caption,enum=content"`
}

// UnlinkEntityDetails removes the appearance of one entity in one resource.
type UnlinkEntityDetails struct {
	EntityUUID   string `json:"entityUuid" validate:"required" jsonschema:"minLength=1"`
	ResourceUUID string `json:"resourceUuid" validate:"required" jsonschema:"minLength=1"`
}

// ChangeEntityTypeDetails changes the type of an entity.
type ChangeEntityTypeDetails struct {
	EntityUUID string `json:"entityUuid" validate:"required" jsonschema:"minLength=1"`
	NewType    string `json:"newType" validate:"required,max=64" jsonschema:"minLength=1,maxLength=64"`
}

// MergeEntitiesDetails folds every original entity into the new one.
type MergeEntitiesDetails struct {
	OriginalEntityUUIDList []string `json:"originalEntityUuidList" validate:"required,min=2,dive,required" jsonschema:"minItems=2"`
	NewEntityUUID          string   `json:"newEntityUuid" validate:"required" jsonschema:"minLength=1"`
}

// LinkEntityBulkDetails links an entity to every resource matching a keyphrase
// in the full-text index of one language.
type LinkEntityBulkDetails struct {
	EntityUUID   string `json:"entityUuid" validate:"required" jsonschema:"minLength=1"`
	Keyphrase    string `json:"keyphrase" validate:"required,max=256" jsonschema:"minLength=1,maxLength=256"`
	LanguageCode string `json:"languageCode" validate:"required,len=2" jsonschema:"minLength=2,maxLength=2"`
}

// UnlinkEntityBulkDetails removes every appearance of an entity.
type UnlinkEntityBulkDetails struct {
	EntityUUID string `json:"entityUuid" validate:"required" jsonschema:"minLength=1"`
}

func (*LinkEntityDetails) Kind() Kind       { return KindLinkEntity }
func (*UnlinkEntityDetails) Kind() Kind     { return KindUnlinkEntity }
func (*ChangeEntityTypeDetails) Kind() Kind { return KindChangeEntityType }
func (*MergeEntitiesDetails) Kind() Kind    { return KindMergeEntities }
func (*LinkEntityBulkDetails) Kind() Kind   { return KindLinkEntityBulk }
func (*UnlinkEntityBulkDetails) Kind() Kind { return KindUnlinkEntityBulk }

func (*LinkEntityDetails) sealed()       {}
func (*UnlinkEntityDetails) sealed()     {}
func (*ChangeEntityTypeDetails) sealed() {}
func (*MergeEntitiesDetails) sealed()    {}
func (*LinkEntityBulkDetails) sealed()   {}
func (*UnlinkEntityBulkDetails) sealed() {}

// NewDetails returns an empty details value for kind.
func NewDetails(kind Kind) (Details, error) {
	switch kind {
	case KindLinkEntity:
		return &LinkEntityDetails{}, nil
	case KindUnlinkEntity:
		return &UnlinkEntityDetails{}, nil
	case KindChangeEntityType:
		return &ChangeEntityTypeDetails{}, nil
	case KindMergeEntities:
		return &MergeEntitiesDetails{}, nil
	case KindLinkEntityBulk:
		return &LinkEntityBulkDetails{}, nil
	case KindUnlinkEntityBulk:
		return &UnlinkEntityBulkDetails{}, nil
	}
	return nil, fmt.Errorf("unknown action kind %q", kind)
}

// DecodeDetails strictly decodes a JSON payload into the details struct of
// kind. Unknown fields are rejected.
func DecodeDetails(kind Kind, raw []byte) (Details, error) {
	d, err := NewDetails(kind)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return d, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(d); err != nil {
		return nil, err
	}
	return d, nil
}

// DetailsFromMap rebuilds details from a stored object.
func DetailsFromMap(kind Kind, m map[string]any) (Details, error) {
	d, err := NewDetails(kind)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal stored details: %w", err)
	}
	if err := json.Unmarshal(raw, d); err != nil {
		return nil, fmt.Errorf("decode stored details: %w", err)
	}
	return d, nil
}

// DetailsToMap flattens details into a plain object for storage.
func DetailsToMap(d Details) (map[string]any, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// Action is the audit record of one mutation attempt.
// PerformedAt is nil until the mutation has been committed.
type Action struct {
	ID          string         `json:"id"`
	Kind        Kind           `json:"kind"`
	Details     Details        `json:"details"`
	PerformedBy string         `json:"performedBy"`
	CreatedAt   time.Time      `json:"createdAt"`
	PerformedAt *time.Time     `json:"performedAt,omitempty"`
	Meta        map[string]any `json:"meta,omitempty"`
}

// Completed reports whether the action's mutation was committed.
func (a *Action) Completed() bool {
	return a.PerformedAt != nil
}

// UnmarshalJSON decodes the details according to the action kind.
func (a *Action) UnmarshalJSON(data []byte) error {
	type alias Action
	var raw struct {
		alias
		Details json.RawMessage `json:"details"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*a = Action(raw.alias)
	if raw.Kind == "" {
		return nil
	}
	d, err := NewDetails(raw.Kind)
	if err != nil {
		return err
	}
	if len(raw.Details) > 0 && string(raw.Details) != "null" {
		if err := json.Unmarshal(raw.Details, d); err != nil {
			return fmt.Errorf("decode %s details: %w", raw.Kind, err)
		}
	}
	a.Details = d
	return nil
}

// Result is one human-readable outcome line of an action.
// It is encoded on the wire as a [message, success] pair.
type Result struct {
	Message string
	Success bool
}

// MarshalJSON encodes the result as a two-element array.
func (r Result) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{r.Message, r.Success})
}

// UnmarshalJSON decodes a [message, success] pair.
func (r *Result) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("result: expected [message, success], got %d elements", len(pair))
	}
	if err := json.Unmarshal(pair[0], &r.Message); err != nil {
		return fmt.Errorf("result message: %w", err)
	}
	if err := json.Unmarshal(pair[1], &r.Success); err != nil {
		return fmt.Errorf("result success: %w", err)
	}
	return nil
}
