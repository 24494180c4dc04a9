package db

import (
	"fmt"
	"regexp"
	"strings"
)

var languageCode = regexp.MustCompile(`^[a-z]{2}$`)

// snowball stemmers available in SurrealDB, keyed by language code.
var stemmers = map[string]string{
	"ar": "arabic",
	"da": "danish",
	"de": "german",
	"el": "greek",
	"en": "english",
	"es": "spanish",
	"fr": "french",
	"hu": "hungarian",
	"it": "italian",
	"nl": "dutch",
	"no": "norwegian",
	"pt": "portuguese",
	"ro": "romanian",
	"ru": "russian",
	"sv": "swedish",
	"ta": "tamil",
	"tr": "turkish",
}

// TextField returns the computed canonical-text field of a language, which
// is also the name of its full-text index.
func TextField(lang string) string {
	return "text_" + lang
}

const baseSchemaSQL = `
    -- ==========================================================================
    -- ENTITY TABLE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS entity SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS slug ON entity TYPE string;
    DEFINE FIELD IF NOT EXISTS name ON entity TYPE string;
    DEFINE FIELD IF NOT EXISTS type ON entity TYPE string;
    DEFINE FIELD IF NOT EXISTS metadata ON entity TYPE option<object> FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS links ON entity TYPE option<object> FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS first_name ON entity TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS last_name ON entity TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS lat ON entity TYPE option<float>;
    DEFINE FIELD IF NOT EXISTS lng ON entity TYPE option<float>;
    DEFINE FIELD IF NOT EXISTS country ON entity TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS geoname_id ON entity TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS geocoding_id ON entity TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS created ON entity TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS updated ON entity TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS entity_slug ON entity FIELDS slug UNIQUE;
    DEFINE INDEX IF NOT EXISTS entity_type ON entity FIELDS type;

    -- ==========================================================================
    -- RESOURCE TABLE
    -- ==========================================================================
    -- title, caption and content map a language code to text
    DEFINE TABLE IF NOT EXISTS resource SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS slug ON resource TYPE string;
    DEFINE FIELD IF NOT EXISTS title ON resource TYPE option<object> FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS caption ON resource TYPE option<object> FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS content ON resource TYPE option<object> FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS start_date ON resource TYPE option<datetime>;
    DEFINE FIELD IF NOT EXISTS end_date ON resource TYPE option<datetime>;
    DEFINE FIELD IF NOT EXISTS created ON resource TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS updated ON resource TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS resource_slug ON resource FIELDS slug UNIQUE;

    -- ==========================================================================
    -- APPEARS_IN RELATION (entity mentioned in resource)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS appears_in TYPE RELATION IN entity OUT resource SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS frequency ON appears_in TYPE int DEFAULT 1;
    DEFINE FIELD IF NOT EXISTS languages ON appears_in TYPE array<string> DEFAULT [];
    -- context: {lang: [[start, end], ...]}
    DEFINE FIELD IF NOT EXISTS context ON appears_in TYPE object FLEXIBLE DEFAULT {};
    DEFINE FIELD IF NOT EXISTS created ON appears_in TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS updated ON appears_in TYPE datetime DEFAULT time::now();
    -- At most one appearance per (entity, resource) pair
    DEFINE INDEX IF NOT EXISTS appears_in_pair ON appears_in FIELDS in, out UNIQUE;

    -- ==========================================================================
    -- ACTION TABLE (audit log)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS action SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS kind ON action TYPE string;
    DEFINE FIELD IF NOT EXISTS details ON action TYPE object FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS performed_by ON action TYPE string;
    DEFINE FIELD IF NOT EXISTS created_at ON action TYPE datetime DEFAULT time::now() READONLY;
    DEFINE FIELD IF NOT EXISTS performed_at ON action TYPE option<datetime>;
    DEFINE FIELD IF NOT EXISTS meta ON action TYPE option<object> FLEXIBLE;

    DEFINE INDEX IF NOT EXISTS action_kind ON action FIELDS kind;
    DEFINE INDEX IF NOT EXISTS action_performed_at ON action FIELDS performed_at;
`

// SchemaSQL returns the schema definition for the given languages. Each
// language gets an analyzer, a computed canonical-text field on resource and
// a full-text index on that field.
func SchemaSQL(languages []string) (string, error) {
	if len(languages) == 0 {
		return "", fmt.Errorf("schema: no languages")
	}

	var b strings.Builder
	b.WriteString(baseSchemaSQL)
	b.WriteString(`
    -- ==========================================================================
    -- CANONICAL TEXT + FULL-TEXT INDEXES (one per language)
    -- ==========================================================================
`)
	for _, lang := range languages {
		if !languageCode.MatchString(lang) {
			return "", fmt.Errorf("schema: invalid language code %q", lang)
		}
		field := TextField(lang)
		filters := "lowercase, ascii"
		if stemmer, ok := stemmers[lang]; ok {
			filters += fmt.Sprintf(", snowball(%s)", stemmer)
		}
		// Fields joined with the same two-character separator the offset adjuster assumes
		fmt.Fprintf(&b, `    DEFINE ANALYZER IF NOT EXISTS histograph_%[1]s TOKENIZERS class FILTERS %[3]s;
    DEFINE FIELD IF NOT EXISTS %[2]s ON resource TYPE string VALUE string::concat(title.%[1]s ?? "", "\n\n", caption.%[1]s ?? "", "\n\n", content.%[1]s ?? "");
    DEFINE INDEX IF NOT EXISTS %[2]s ON resource FIELDS %[2]s FULLTEXT ANALYZER histograph_%[1]s BM25;
`, lang, field, filters)
	}
	return b.String(), nil
}
