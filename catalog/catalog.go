// Package catalog defines the ordered set of fields extracted from every
// tender, together with the formatting rule handed to the language model for
// each of them.
package catalog

import "fmt"

// Kind tags fields that need special handling, resolved once at catalog
// construction time instead of by name matching during normalization.
type Kind int

const (
	// KindGeneric fields carry no special rendering rules.
	KindGeneric Kind = iota
	// KindIdentifier is the tender's folder name, filled in by the caller
	// without retrieval or generation.
	KindIdentifier
	// KindCPV values are classification-code lists rendered as bullets.
	KindCPV
	// KindContractingEntity values are contact blocks rendered as a fixed
	// sequence of labeled lines.
	KindContractingEntity
)

// FieldSpec describes one extractable field.
type FieldSpec struct {
	// Name doubles as the retrieval query and the output column name.
	Name string
	// Rule is the formatting instruction quoted verbatim in the prompt.
	Rule string
	// RetrievalK is how many chunks ground the generation for this field.
	RetrievalK int
	Kind       Kind
}

// Catalog is an ordered field sequence; order is also output order.
type Catalog []FieldSpec

const defaultRetrievalK = 4

// Default returns the catalog used for Spanish public procurement tenders.
func Default() Catalog {
	return Catalog{
		{Name: "nombre carpeta", Kind: KindIdentifier},
		{Name: "número de expediente", Rule: "Extrae únicamente el número o código de expediente.", RetrievalK: 3},
		{Name: "cliente (órgano de contratación)", Rule: "Indica el órgano de contratación con sus datos de contacto (nombre, responsable, teléfono, email, web).", RetrievalK: 3, Kind: KindContractingEntity},
		{Name: "clasificación cpv", Rule: "Lista los códigos CPV del contrato, uno por línea.", RetrievalK: 3, Kind: KindCPV},
		{Name: "valor estimado del contrato", Rule: "Indica el valor estimado con y sin IVA; si el contrato dura más de un año, indícalo.", RetrievalK: 4},
		{Name: "plazo de presentación de la oferta", Rule: "Extrae únicamente la fecha y hora límite de presentación de ofertas.", RetrievalK: 3},
		{Name: "criterios de valoración", Rule: "Extrae los criterios con sus puntuaciones o porcentajes; si hay alguna fórmula, inclúyela.", RetrievalK: 6},
		{Name: "resumen trabajos o servicios a contratar", Rule: "Resume en pocas líneas los trabajos o servicios objeto del contrato.", RetrievalK: 4},
		{Name: "prórroga", Rule: "Indica si existe prórroga y su duración.", RetrievalK: 3},
		{Name: "requisitos de solvencia técnica", Rule: "Resume experiencia, formación y medios humanos y materiales exigidos.", RetrievalK: 5},
		{Name: "acreditación de solvencia técnica", Rule: "Indica cómo se debe demostrar la solvencia técnica.", RetrievalK: 4},
		{Name: "requisitos de solvencia económica", Rule: "Resume los requisitos de solvencia económica y financiera.", RetrievalK: 5},
		{Name: "acreditación de solvencia económica", Rule: "Indica cómo se debe demostrar la solvencia económica.", RetrievalK: 4},
		{Name: "esquema nacional de seguridad", Rule: "Indica si se exige el Esquema Nacional de Seguridad y el nivel requerido.", RetrievalK: 3},
		{Name: "equipo de trabajo", Rule: "Indica número de personas, requisitos, formación y experiencia del equipo de trabajo.", RetrievalK: 5},
		{Name: "acreditación del equipo de trabajo", Rule: "Indica cómo se debe demostrar el equipo de trabajo.", RetrievalK: 4},
	}
}

// Validate enforces unique field names and exactly one identifier field.
// RetrievalK defaults are applied in place for non-identifier fields.
func (c Catalog) Validate() error {
	if len(c) == 0 {
		return fmt.Errorf("catalog is empty")
	}

	seen := make(map[string]struct{}, len(c))
	identifiers := 0
	for i := range c {
		field := &c[i]
		if field.Name == "" {
			return fmt.Errorf("field %d has no name", i)
		}
		if _, ok := seen[field.Name]; ok {
			return fmt.Errorf("duplicate field name: %s", field.Name)
		}
		seen[field.Name] = struct{}{}

		if field.Kind == KindIdentifier {
			identifiers++
			continue
		}
		if field.RetrievalK <= 0 {
			field.RetrievalK = defaultRetrievalK
		}
	}

	if identifiers != 1 {
		return fmt.Errorf("catalog must contain exactly one identifier field, found %d", identifiers)
	}
	return nil
}

// Identifier returns the designated identifier field.
func (c Catalog) Identifier() (FieldSpec, bool) {
	for _, field := range c {
		if field.Kind == KindIdentifier {
			return field, true
		}
	}
	return FieldSpec{}, false
}

// Names returns the field names in catalog order.
func (c Catalog) Names() []string {
	names := make([]string, len(c))
	for i, field := range c {
		names[i] = field.Name
	}
	return names
}
