// Package importance scores a RawRecord's worth of remembering (§4.1). The
// evaluator never blocks ingestion on an LLM outage: it falls back to a
// deterministic heuristic and always returns a usable score.
package importance

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/lumenmind/memoryengine/internal/domain"
	"github.com/lumenmind/memoryengine/internal/platform/cache"
	"github.com/lumenmind/memoryengine/internal/platform/llm"
	"github.com/lumenmind/memoryengine/internal/platform/logger"
)

const cacheTTL = 5 * time.Minute

// Evaluator scores raw content on a 0..1 importance scale.
type Evaluator interface {
	Score(ctx context.Context, rec *domain.RawRecord) (float64, error)
}

type evaluator struct {
	log   *logger.Logger
	llm   llm.Client
	cache cache.Cache
}

func New(log *logger.Logger, llmClient llm.Client, c cache.Cache) Evaluator {
	return &evaluator{log: log.With("service", "ImportanceEvaluator"), llm: llmClient, cache: c}
}

const systemPrompt = `You rate how important a single message is to remember long-term about the
person who said or experienced it. Respond with exactly one line:
IMPORTANCE_SCORE: <float between 0.0 and 1.0>
Higher scores are for durable facts, preferences, plans, relationships, and
commitments. Lower scores are for small talk, acknowledgements, and filler.`

// Score implements §4.1: a cache lookup, then an LLM call, falling back to
// the heuristic on an LLM failure; a cache failure is logged and scoring
// carries on through the LLM. It never returns a non-nil
// error for a recoverable condition; Score always produces a float.
func (e *evaluator) Score(ctx context.Context, rec *domain.RawRecord) (float64, error) {
	if rec.SkipImportanceCheck {
		return 1.0, nil
	}

	key := contentHash(rec.Content)
	if e.cache != nil {
		if score, ok, err := e.cache.GetImportance(ctx, key); err == nil && ok {
			return score, nil
		} else if err != nil {
			e.log.Warn("importance cache lookup failed, continuing", "error", err)
		}
	}

	score, err := e.scoreWithLLM(ctx, rec)
	if err != nil {
		e.log.Warn("importance LLM scoring failed, using heuristic", "error", err)
		score = Heuristic(rec)
	}

	if e.cache != nil {
		if err := e.cache.SetImportance(ctx, key, score, cacheTTL); err != nil {
			e.log.Warn("importance cache store failed", "error", err)
		}
	}
	return score, nil
}

var scoreLinePattern = regexp.MustCompile(`(?i)IMPORTANCE_SCORE:\s*([01](?:\.\d+)?|\.\d+)`)

func (e *evaluator) scoreWithLLM(ctx context.Context, rec *domain.RawRecord) (float64, error) {
	if e.llm == nil {
		return 0, fmt.Errorf("no llm client configured")
	}
	text, err := e.llm.GenerateText(ctx, systemPrompt, rec.Content)
	if err != nil {
		return 0, err
	}
	m := scoreLinePattern.FindStringSubmatch(text)
	if m == nil {
		return 0, fmt.Errorf("could not parse IMPORTANCE_SCORE from response: %q", text)
	}
	f, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, err
	}
	return clamp01(f), nil
}

// Heuristic implements the deterministic fallback from §4.1: a base score
// plus additive bumps for signals that correlate with durability, capped at
// 0.9 so it is never mistaken for an LLM-certain score.
func Heuristic(rec *domain.RawRecord) float64 {
	score := 0.3
	content := strings.TrimSpace(rec.Content)

	if rec.ContentType.IsFileSourced() {
		score += 0.4
	}
	if len(content) > 200 {
		score += 0.1
	}
	if !rec.ContentType.IsFileSourced() && strings.Contains(content, "?") {
		score += 0.1
	}
	if containsDigit(content) {
		score += 0.1
	}
	score += properNounBump(content)

	return clamp01(minFloat(score, 0.9))
}

func containsDigit(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

// properNounBump adds up to 0.2 based on the density of capitalized
// mid-sentence words, a crude proxy for named entities (people, places,
// products) worth remembering.
func properNounBump(s string) float64 {
	words := strings.Fields(s)
	if len(words) == 0 {
		return 0
	}
	capCount := 0
	for i, w := range words {
		if i == 0 {
			continue // skip sentence-initial capitalization
		}
		r := []rune(strings.TrimFunc(w, func(r rune) bool { return !unicode.IsLetter(r) }))
		if len(r) > 0 && unicode.IsUpper(r[0]) {
			capCount++
		}
	}
	density := float64(capCount) / float64(len(words))
	return minFloat(density*0.5, 0.2)
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func contentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
