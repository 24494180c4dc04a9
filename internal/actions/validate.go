package actions

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"slices"
	"sort"
	"strings"

	"github.com/go-playground/validator"
	"github.com/raphaelgruber/histograph-go/internal/models"
)

var languageCode = regexp.MustCompile(`^[a-z]{2}$`)

type detailsValidator struct {
	v         *validator.Validate
	languages []string
}

func newDetailsValidator(languages []string) *detailsValidator {
	v := validator.New()
	// Report fields by their wire names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return &detailsValidator{v: v, languages: languages}
}

// validate applies the struct tags, then the rules tags cannot express.
func (dv *detailsValidator) validate(d models.Details, performedBy string) error {
	verr := &ValidationError{Kind: d.Kind()}

	if strings.TrimSpace(performedBy) == "" {
		verr.add("performedBy", "required")
	}

	if err := dv.v.Struct(d); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			verr.add("details", err.Error())
			return verr
		}
		for _, fe := range fieldErrs {
			verr.add(fe.Field(), describe(fe))
		}
	}

	switch d := d.(type) {
	case *models.LinkEntityDetails:
		checkContext(verr, d.Context)
	case *models.ChangeEntityTypeDetails:
		if d.NewType != "" && strings.TrimSpace(d.NewType) == "" {
			verr.add("newType", "must not be blank")
		}
	case *models.MergeEntitiesDetails:
		seen := make(map[string]bool, len(d.OriginalEntityUUIDList))
		for _, id := range d.OriginalEntityUUIDList {
			if seen[id] {
				verr.add("originalEntityUuidList", fmt.Sprintf("duplicate entity %s", id))
			}
			seen[id] = true
		}
		if seen[d.NewEntityUUID] {
			verr.add("newEntityUuid", "must not be one of the original entities")
		}
	case *models.LinkEntityBulkDetails:
		if d.Keyphrase != "" && strings.Trim(d.Keyphrase, " \t\n\"") == "" {
			verr.add("keyphrase", "must not be blank")
		}
		if d.LanguageCode != "" && len(dv.languages) > 0 && !slices.Contains(dv.languages, d.LanguageCode) {
			verr.add("languageCode", fmt.Sprintf("must be one of %s", strings.Join(dv.languages, ", ")))
		}
	}

	return verr.orNil()
}

func describe(fe validator.FieldError) string {
	if fe.Param() == "" {
		return fe.Tag()
	}
	return fe.Tag() + "=" + fe.Param()
}

// checkContext rejects malformed offsets; the merger assumes well-formed pairs.
func checkContext(verr *ValidationError, c models.Context) {
	langs := c.Languages()
	sort.Strings(langs)
	for _, lang := range langs {
		if !languageCode.MatchString(lang) {
			verr.add("context", fmt.Sprintf("invalid language code %q", lang))
			continue
		}
		for i, iv := range c[lang] {
			if iv.Start() < 0 || iv.End() < iv.Start() {
				verr.add(fmt.Sprintf("context.%s[%d]", lang, i), fmt.Sprintf("invalid interval [%d, %d]", iv.Start(), iv.End()))
			}
		}
	}
}
