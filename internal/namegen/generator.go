package namegen

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/local/airenamer/internal/ai"
	"github.com/local/airenamer/internal/imagerender"
	mpkg "github.com/local/airenamer/internal/metrics"
	"github.com/local/airenamer/internal/retry"
)

// maxPromptChars caps document text sent to the provider; a filename needs
// only the opening content.
const maxPromptChars = 4000

// Generator asks an AI provider for a descriptive filename. It never fails:
// when retries exhaust it synthesizes a fallback name whose prefix records
// the failure class, so cause stays auditable from the filename alone.
type Generator struct {
	client  ai.Client
	policy  *retry.Policy
	model   string
	timeout time.Duration

	// now is swappable in tests
	now func() time.Time
}

// New creates a filename generator backed by the given provider and policy.
func New(client ai.Client, policy *retry.Policy, model string, timeout time.Duration) *Generator {
	return &Generator{
		client:  client,
		policy:  policy,
		model:   model,
		timeout: timeout,
		now:     time.Now,
	}
}

// Generate returns a raw filename candidate for the extracted content.
// Sanitization is a separate stage so callers can apply their own policy.
func (g *Generator) Generate(ctx context.Context, text string, imageJPEG []byte) string {
	text = strings.TrimSpace(text)
	if text == "" && len(imageJPEG) == 0 {
		// Nothing to describe; no AI call for empty input.
		mpkg.IncFallbackName("empty")
		return "empty_file_" + g.timestamp()
	}

	if len(text) > maxPromptChars {
		cut := maxPromptChars
		// back off to a rune boundary so the tail is never a split rune
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}

	req := ai.Request{
		Text:    text,
		Model:   g.model,
		Timeout: g.timeout,
	}
	if len(imageJPEG) > 0 {
		req.ImageBase64 = imagerender.EncodeToBase64(imageJPEG)
		req.ImageMIME = "image/jpeg"
	}

	var resp ai.Response
	err := g.policy.Do(ctx, func(ctx context.Context) error {
		cctx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()

		start := time.Now()
		r, err := g.client.GenerateFilename(cctx, req)
		dur := time.Since(start)

		if err != nil {
			mpkg.ObserveProvider(g.client.Name(), "error", dur)
			return err
		}
		mpkg.ObserveProvider(g.client.Name(), "success", dur)
		resp = r
		return nil
	})

	if err == nil {
		name := Prefilter(resp.Filename)
		log.Debug().
			Str("provider", g.client.Name()).
			Str("model", g.model).
			Str("candidate", name).
			Int("tokens_in", resp.TokensIn).
			Int("tokens_out", resp.TokensOut).
			Msg("AI filename candidate accepted")
		return name
	}

	var ex *retry.ExhaustedError
	if errors.As(err, &ex) && ex.Reason == retry.ReasonNetwork {
		log.Warn().Err(err).Msg("filename generation exhausted on network errors, using fallback name")
		mpkg.IncFallbackName("network")
		return "network_error_" + g.timestamp()
	}

	log.Warn().Err(err).Msg("filename generation exhausted, using fallback name")
	mpkg.IncFallbackName("other")
	return "untitled_document_" + g.timestamp()
}

func (g *Generator) timestamp() string {
	return g.now().UTC().Format("20060102_150405")
}

// Prefilter strips forbidden patterns from an untrusted AI candidate before
// it reaches sanitization: quotes, path separators, parent-directory
// references, control characters, and a trailing extension if the model
// added one anyway.
func Prefilter(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.Trim(raw, "\"'`")

	for strings.Contains(raw, "..") {
		raw = strings.ReplaceAll(raw, "..", ".")
	}
	raw = strings.ReplaceAll(raw, "/", " ")
	raw = strings.ReplaceAll(raw, "\\", " ")

	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if unicode.IsControl(r) {
			continue
		}
		b.WriteRune(r)
	}
	filtered := b.String()

	// Models sometimes append ".pdf" despite the prompt
	if i := strings.LastIndex(filtered, "."); i > 0 && len(filtered)-i <= 5 {
		ext := filtered[i+1:]
		alpha := ext != ""
		for _, r := range ext {
			if !unicode.IsLetter(r) {
				alpha = false
				break
			}
		}
		if alpha {
			filtered = filtered[:i]
		}
	}

	return strings.TrimSpace(filtered)
}
