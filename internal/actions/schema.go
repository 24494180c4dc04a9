package actions

import (
	"fmt"

	"github.com/invopop/jsonschema"
	"github.com/raphaelgruber/histograph-go/internal/models"
)

// Schema returns the JSON schema that the details of kind must satisfy.
func Schema(kind models.Kind) (*jsonschema.Schema, error) {
	d, err := models.NewDetails(kind)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidActionKind, kind)
	}
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	s := reflector.Reflect(d)
	s.Title = string(kind)
	return s, nil
}

// Schemas returns the schema of every kind.
func Schemas() map[models.Kind]*jsonschema.Schema {
	out := make(map[models.Kind]*jsonschema.Schema, len(models.Kinds))
	for _, k := range models.Kinds {
		s, _ := Schema(k)
		out[k] = s
	}
	return out
}
