package offsets

import (
	"fmt"
	"unicode/utf16"

	"github.com/raphaelgruber/histograph-go/internal/models"
)

// Field is a text field of a resource.
type Field string

const (
	FieldTitle   Field = "title"
	FieldCaption Field = "caption"
	FieldContent Field = "content"
)

// CanonicalFields is the order in which fields are joined into the
// canonical text of a resource.
var CanonicalFields = []Field{FieldTitle, FieldCaption, FieldContent}

// Separator joins consecutive fields in the canonical text.
const Separator = "\n\n"

// SeparatorLength is the width of Separator in offset units.
var SeparatorLength = TextLength(Separator)

// TextLength measures s in UTF-16 code units, the unit mention offsets are
// given in by clients. Characters outside the BMP count twice.
func TextLength(s string) int {
	n := 0
	for _, r := range s {
		if w := utf16.RuneLen(r); w > 0 {
			n += w
		} else {
			n++
		}
	}
	return n
}

// FieldTexts returns the per-language texts of a resource keyed by field.
func FieldTexts(r *models.Resource) map[Field]map[string]string {
	return map[Field]map[string]string{
		FieldTitle:   r.Title,
		FieldCaption: r.Caption,
		FieldContent: r.Content,
	}
}

// PrecedingLength is the number of offset units in the canonical text of lang
// that come before location: every earlier field plus one separator each.
// Missing fields count as empty.
func PrecedingLength(texts map[Field]map[string]string, location Field, lang string) (int, error) {
	n := 0
	for _, f := range CanonicalFields {
		if f == location {
			return n, nil
		}
		n += TextLength(texts[f][lang]) + SeparatorLength
	}
	return 0, fmt.Errorf("unknown context location %q", location)
}

// Adjust rewrites offsets measured against a single field into offsets
// against the canonical text. The shift is computed per language.
func Adjust(ctx models.Context, texts map[Field]map[string]string, location Field) (models.Context, error) {
	out := make(models.Context, len(ctx))
	for lang, intervals := range ctx {
		shift, err := PrecedingLength(texts, location, lang)
		if err != nil {
			return nil, err
		}
		shifted := make([]models.Interval, len(intervals))
		for i, iv := range intervals {
			shifted[i] = models.Interval{iv.Start() + shift, iv.End() + shift}
		}
		out[lang] = shifted
	}
	return out, nil
}
