// Package extract implements the per-field retrieval and generation loop
// that turns one tender's indexed corpus into a flat record.
package extract

import (
	"context"
	"log"
	"regexp"
	"strings"
	"time"

	retry "github.com/avast/retry-go/v4"

	"github.com/quantia/licitator/catalog"
	"github.com/quantia/licitator/index"
	"github.com/quantia/licitator/llm"
)

// NotFound marks a field with no relevant chunks or an empty model answer.
const NotFound = "No encontrado"

// errorPrefix marks values produced by a failed resolution so reviewers can
// tell them apart from genuine content.
const errorPrefix = "ERROR: "

const chunkSeparator = "\n\n---\n\n"

// Backoff configures retries of generation calls.
type Backoff struct {
	Attempts uint
	Delay    time.Duration
}

// Resolver answers one catalog field at a time against a tender's index.
type Resolver struct {
	llm llm.Client
	// backoff retries a failed generation; delay is the fixed pause applied
	// after every generation call to respect provider rate limits.
	backoff Backoff
	delay   time.Duration
	logger  *log.Logger
}

func NewResolver(client llm.Client, backoff Backoff, delay time.Duration, logger *log.Logger) *Resolver {
	if logger == nil {
		logger = log.Default()
	}
	if backoff.Attempts == 0 {
		backoff.Attempts = 1
	}
	return &Resolver{llm: client, backoff: backoff, delay: delay, logger: logger}
}

// Resolve returns the raw value for one field. Failures never propagate:
// they become a marker value so sibling fields keep resolving.
func (r *Resolver) Resolve(ctx context.Context, field catalog.FieldSpec, idx index.Index, identifier string) string {
	if field.Kind == catalog.KindIdentifier {
		return identifier
	}

	chunks, err := idx.Query(ctx, field.Name, field.RetrievalK)
	if err != nil {
		r.logger.Printf("retrieval failed for %q: %v", field.Name, err)
		return errorValue(err)
	}
	if len(chunks) == 0 {
		return NotFound
	}

	parts := make([]string, len(chunks))
	for i, chunk := range chunks {
		parts[i] = chunk.Text
	}
	grounding := strings.Join(parts, chunkSeparator)

	var answer string
	err = retry.Do(
		func() error {
			generated, genErr := r.llm.Generate(ctx, buildPrompt(field, grounding))
			if genErr != nil {
				return genErr
			}
			answer = generated
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(r.backoff.Attempts),
		retry.Delay(r.backoff.Delay),
		retry.LastErrorOnly(true),
	)
	r.pause(ctx)

	if err != nil {
		r.logger.Printf("generation failed for %q: %v", field.Name, err)
		return errorValue(err)
	}

	answer = StripFences(answer)
	if answer == "" {
		return NotFound
	}
	return answer
}

func buildPrompt(field catalog.FieldSpec, grounding string) []llm.Message {
	var sb strings.Builder
	sb.WriteString("Del siguiente extracto de un pliego de licitación, extrae el campo \"")
	sb.WriteString(field.Name)
	sb.WriteString("\".\n")
	if field.Rule != "" {
		sb.WriteString("Regla de formato: ")
		sb.WriteString(field.Rule)
		sb.WriteString("\n")
	}
	sb.WriteString("Responde únicamente con el valor solicitado, en texto plano. ")
	sb.WriteString("No añadas explicaciones ni envuelvas la respuesta en JSON ni en bloques de código. ")
	sb.WriteString("Si el dato no aparece en el texto, responde \"")
	sb.WriteString(NotFound)
	sb.WriteString("\".\n\nTexto:\n")
	sb.WriteString(grounding)

	return []llm.Message{
		{Role: llm.RoleSystem, Content: "Eres un asistente que extrae información de pliegos de licitaciones públicas."},
		{Role: llm.RoleUser, Content: sb.String()},
	}
}

var fenceOpenRe = regexp.MustCompile("^```[a-zA-Z]*[ \t]*\n?")

// StripFences removes a code-fence envelope the model may emit despite the
// instruction not to.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	s = fenceOpenRe.ReplaceAllString(s, "")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// IsError reports whether a resolved value is a failure marker.
func IsError(value string) bool {
	return strings.HasPrefix(value, errorPrefix)
}

func errorValue(err error) string {
	diagnostic := err.Error()
	if idx := strings.IndexByte(diagnostic, '\n'); idx >= 0 {
		diagnostic = diagnostic[:idx]
	}
	if len(diagnostic) > 120 {
		diagnostic = diagnostic[:120]
	}
	return errorPrefix + diagnostic
}

func (r *Resolver) pause(ctx context.Context) {
	if r.delay <= 0 || ctx.Err() != nil {
		return
	}
	timer := time.NewTimer(r.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
