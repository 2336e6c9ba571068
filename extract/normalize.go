package extract

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/quantia/licitator/catalog"
)

// The model is told to answer in plain text but still returns JSON objects,
// arrays, or JSON-encoded strings often enough that every value goes through
// a permissive structural probe before rendering. All rendering below is a
// pure function of the resolved values: deterministic and idempotent.

type valueKind int

const (
	valueText valueKind = iota
	valueList
	valueMapping
)

type fieldValue struct {
	kind    valueKind
	text    string
	items   []fieldValue
	entries []mapEntry
}

type mapEntry struct {
	key   string
	value fieldValue
}

// Normalize converts every resolved value into its canonical flat text form.
// The returned map's key set is exactly the catalog's field names.
func Normalize(values map[string]string, cat catalog.Catalog) map[string]string {
	out := make(map[string]string, len(cat))
	for _, field := range cat {
		raw, ok := values[field.Name]
		if !ok {
			out[field.Name] = NotFound
			continue
		}

		// Sentinels and failure markers stay recognizable: kind-specific
		// rendering must not reshape them into bullets or split them apart.
		trimmed := strings.TrimSpace(raw)
		if trimmed == NotFound || IsError(trimmed) {
			out[field.Name] = trimmed
			continue
		}

		value := parseValue(raw)
		var rendered string
		switch field.Kind {
		case catalog.KindCPV:
			rendered = renderCPV(value)
		case catalog.KindContractingEntity:
			rendered = renderEntity(value)
		default:
			rendered = renderGeneric(value)
		}
		out[field.Name] = finalize(rendered)
	}
	return out
}

// parseValue probes the raw text for a JSON structure; anything that does not
// parse cleanly stays plain text.
func parseValue(raw string) fieldValue {
	trimmed := strings.TrimSpace(raw)
	if len(trimmed) == 0 || (trimmed[0] != '{' && trimmed[0] != '[') {
		return fieldValue{kind: valueText, text: trimmed}
	}

	dec := json.NewDecoder(strings.NewReader(trimmed))
	dec.UseNumber()
	value, err := decodeValue(dec)
	if err != nil {
		return fieldValue{kind: valueText, text: trimmed}
	}
	// Trailing garbage after the structure means it was prose after all.
	if dec.More() {
		return fieldValue{kind: valueText, text: trimmed}
	}
	return value
}

// decodeValue walks the JSON token stream so mapping keys keep their
// original order, which encoding/json's map decoding would lose.
func decodeValue(dec *json.Decoder) (fieldValue, error) {
	tok, err := dec.Token()
	if err != nil {
		return fieldValue{}, err
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			var entries []mapEntry
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return fieldValue{}, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return fieldValue{}, fmt.Errorf("unexpected object key %v", keyTok)
				}
				val, err := decodeValue(dec)
				if err != nil {
					return fieldValue{}, err
				}
				entries = append(entries, mapEntry{key: key, value: val})
			}
			if _, err := dec.Token(); err != nil {
				return fieldValue{}, err
			}
			return fieldValue{kind: valueMapping, entries: entries}, nil
		case '[':
			var items []fieldValue
			for dec.More() {
				item, err := decodeValue(dec)
				if err != nil {
					return fieldValue{}, err
				}
				items = append(items, item)
			}
			if _, err := dec.Token(); err != nil {
				return fieldValue{}, err
			}
			return fieldValue{kind: valueList, items: items}, nil
		default:
			return fieldValue{}, fmt.Errorf("unexpected delimiter %v", t)
		}
	case string:
		return fieldValue{kind: valueText, text: strings.TrimSpace(t)}, nil
	case json.Number:
		return fieldValue{kind: valueText, text: t.String()}, nil
	case bool:
		return fieldValue{kind: valueText, text: fmt.Sprintf("%t", t)}, nil
	case nil:
		return fieldValue{kind: valueText, text: ""}, nil
	default:
		return fieldValue{}, fmt.Errorf("unexpected token %v", tok)
	}
}

// renderCPV renders classification codes as one bullet line per code.
func renderCPV(v fieldValue) string {
	var items []string
	switch v.kind {
	case valueList:
		for _, item := range v.items {
			if s := flatten(item); s != "" {
				items = append(items, s)
			}
		}
	case valueMapping:
		items = splitDelimited(flatten(v))
	default:
		items = splitDelimited(v.text)
	}

	if len(items) == 0 {
		return ""
	}
	lines := make([]string, len(items))
	for i, item := range items {
		lines[i] = "- " + item
	}
	return strings.Join(lines, "\n")
}

// splitDelimited breaks a delimited string into items: on line breaks when
// the lines already look bulleted, on commas otherwise.
func splitDelimited(text string) []string {
	if text == "" {
		return nil
	}

	lines := strings.Split(text, "\n")
	bulleted := true
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if !strings.HasPrefix(trimmed, "-") && !strings.HasPrefix(trimmed, "•") {
			bulleted = false
			break
		}
	}

	var parts []string
	if bulleted {
		parts = lines
	} else {
		parts = strings.Split(text, ",")
	}

	items := make([]string, 0, len(parts))
	for _, part := range parts {
		item := strings.TrimSpace(part)
		item = strings.TrimSpace(strings.TrimLeft(item, "-•"))
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}

// entityLabels is the fixed output order of the contracting-entity block.
// Role lines beyond the two primary responsables are not rendered.
var entityLabels = []struct {
	label   string
	aliases []string
}{
	{"Nombre", []string{"nombre", "organo de contratacion", "organismo", "entidad"}},
	{"Responsable", []string{"responsable"}},
	{"Segundo responsable", []string{"segundo responsable"}},
	{"Contacto", []string{"contacto", "persona de contacto"}},
	{"Teléfono", []string{"telefono", "tfno"}},
	{"Fax", []string{"fax"}},
	{"Email", []string{"email", "correo", "e-mail"}},
	{"Web", []string{"web", "pagina", "sitio", "url"}},
	{"Portal de contratación", []string{"portal", "perfil del contratante", "plataforma"}},
}

// renderEntity renders the contracting entity as ordered labeled lines.
// Plain-text values pass through untouched; only structured values are
// reshaped into the block.
func renderEntity(v fieldValue) string {
	switch v.kind {
	case valueText:
		return v.text
	case valueList:
		// A bare list has no labels to map; flatten it to one line per item.
		lines := make([]string, 0, len(v.items))
		for _, item := range v.items {
			if s := flatten(item); s != "" {
				lines = append(lines, s)
			}
		}
		return strings.Join(lines, "\n")
	}

	used := make(map[int]bool, len(v.entries))
	var lines []string
	for _, label := range entityLabels {
		for i, entry := range v.entries {
			if used[i] || !matchesAlias(entry.key, label.aliases) {
				continue
			}
			used[i] = true
			if value := flatten(entry.value); value != "" {
				lines = append(lines, label.label+": "+value)
			}
			break
		}
	}
	return strings.Join(lines, "\n")
}

func matchesAlias(key string, aliases []string) bool {
	normalized := foldKey(key)
	for _, alias := range aliases {
		if strings.Contains(normalized, alias) {
			return true
		}
	}
	return false
}

var accentFolder = strings.NewReplacer(
	"á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ü", "u", "ñ", "n",
	"Á", "a", "É", "e", "Í", "i", "Ó", "o", "Ú", "u", "Ü", "u", "Ñ", "n",
)

func foldKey(key string) string {
	return accentFolder.Replace(strings.ToLower(strings.TrimSpace(key)))
}

var pageRefRe = regexp.MustCompile(`\s*\((?i:p[áa]gina)[^)]*\)`)

// renderGeneric flattens structured values into "key: value" lines and
// bullet lists. Page-reference annotations inside items are pulled out and
// appended once at the end instead of repeated per item.
func renderGeneric(v fieldValue) string {
	if v.kind == valueText {
		return v.text
	}

	var refs []string
	var body string
	switch v.kind {
	case valueList:
		body = renderListLines(v.items, "- ", &refs)
	case valueMapping:
		body = renderMappingLines(v.entries, &refs)
	}

	if len(refs) > 0 {
		body += "\n" + strings.Join(refs, " ")
	}
	return body
}

func renderMappingLines(entries []mapEntry, refs *[]string) string {
	var lines []string
	for _, entry := range entries {
		switch entry.value.kind {
		case valueList:
			lines = append(lines, entry.key+":")
			if nested := renderListLines(entry.value.items, "  - ", refs); nested != "" {
				lines = append(lines, nested)
			}
		default:
			lines = append(lines, entry.key+": "+extractPageRefs(flatten(entry.value), refs))
		}
	}
	return strings.Join(lines, "\n")
}

func renderListLines(items []fieldValue, bullet string, refs *[]string) string {
	lines := make([]string, 0, len(items))
	for _, item := range items {
		if s := extractPageRefs(flatten(item), refs); s != "" {
			lines = append(lines, bullet+s)
		}
	}
	return strings.Join(lines, "\n")
}

func extractPageRefs(text string, refs *[]string) string {
	matches := pageRefRe.FindAllString(text, -1)
	for _, match := range matches {
		ref := strings.TrimSpace(match)
		seen := false
		for _, existing := range *refs {
			if existing == ref {
				seen = true
				break
			}
		}
		if !seen {
			*refs = append(*refs, ref)
		}
	}
	return strings.TrimSpace(pageRefRe.ReplaceAllString(text, ""))
}

// flatten reduces any value to a single delimited string.
func flatten(v fieldValue) string {
	switch v.kind {
	case valueText:
		return v.text
	case valueList:
		parts := make([]string, 0, len(v.items))
		for _, item := range v.items {
			if s := flatten(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	case valueMapping:
		parts := make([]string, 0, len(v.entries))
		for _, entry := range v.entries {
			if s := flatten(entry.value); s != "" {
				parts = append(parts, entry.key+": "+s)
			}
		}
		return strings.Join(parts, ", ")
	}
	return ""
}

var blankLinesRe = regexp.MustCompile(`\n[ \t]*(\n[ \t]*)+`)

func finalize(text string) string {
	return strings.TrimSpace(blankLinesRe.ReplaceAllString(text, "\n"))
}
