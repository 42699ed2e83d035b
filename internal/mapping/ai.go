package mapping

import (
	"context"
	"fmt"
	"os"
	"strings"
	"surveyXfer/internal/logger"
	"surveyXfer/internal/matcher"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/generative-ai-go/genai"
	"github.com/joho/godotenv"
	"google.golang.org/api/option"
)

const (
	noMatch                 = "NO_MATCH"
	minSuggestionConfidence = 0.8
	chunkThreshold          = 100
	chunkSize               = 50
)

// ErrNoAPIKey is returned when GEMINI_API_KEY is not available.
var ErrNoAPIKey = errors.New("gemini API key is required")

// Suggestion is an AI-proposed question label -> template label pairing.
type Suggestion struct {
	SourceLabel string  `json:"source_label"`
	TargetLabel string  `json:"target_label"`
	Confidence  float64 `json:"confidence"`
}

type contentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Suggester asks Gemini to pair questions the word-overlap matcher left behind.
type Suggester struct {
	client   *genai.Client
	model    contentGenerator
	timeout  time.Duration
	debugDir string
	pause    time.Duration
}

// NewSuggester creates a Gemini-backed suggester.
func NewSuggester(ctx context.Context, apiKey, modelName string, timeout time.Duration, debugDir string) (*Suggester, error) {
	if apiKey == "" {
		return nil, errors.WithHint(ErrNoAPIKey, "set GEMINI_API_KEY in the environment or in .env")
	}

	logger.Info("Initializing Gemini suggester", "model", modelName)

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		logger.Error("Failed to create Gemini client", "error", err)
		return nil, errors.Wrap(err, "failed to create Gemini client")
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(0.1)

	return &Suggester{
		client:   client,
		model:    model,
		timeout:  timeout,
		debugDir: debugDir,
		pause:    2 * time.Second,
	}, nil
}

// Close cleans up the client
func (s *Suggester) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// Suggest pairs source labels with target labels. Large requests are sent in
// chunks; a failed chunk is logged and skipped.
func (s *Suggester) Suggest(ctx context.Context, sources, targets []string) ([]Suggestion, error) {
	if len(sources) == 0 || len(targets) == 0 {
		return nil, errors.New("both source and target labels must be provided")
	}

	logger.Info("Requesting AI suggestions", "source_count", len(sources), "target_count", len(targets))

	if len(sources) <= chunkThreshold {
		return s.suggestBatch(ctx, sources, targets)
	}

	var all []Suggestion
	total := (len(sources) + chunkSize - 1) / chunkSize
	for i := 0; i < len(sources); i += chunkSize {
		end := min(i+chunkSize, len(sources))
		chunkNum := i/chunkSize + 1

		logger.Info("Processing chunk", "chunk", chunkNum, "total_chunks", total, "range", fmt.Sprintf("%d-%d", i+1, end))

		batch, err := s.suggestBatch(ctx, sources[i:end], targets)
		if err != nil {
			if ctx.Err() != nil {
				return all, ctx.Err()
			}
			logger.Error("Failed to process chunk", "chunk", chunkNum, "error", err)
			continue
		}
		all = append(all, batch...)

		if chunkNum < total {
			select {
			case <-ctx.Done():
				return all, ctx.Err()
			case <-time.After(s.pause):
			}
		}
	}
	return all, nil
}

func (s *Suggester) suggestBatch(ctx context.Context, sources, targets []string) ([]Suggestion, error) {
	prompt := buildSuggestionPrompt(sources, targets)
	logger.Debug("AI prompt", "length", len(prompt), "content", prompt)

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := s.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		logger.Error("Gemini request failed", "error", err, "duration", time.Since(start))
		s.dump(sources, targets, nil, err)
		return nil, errors.Wrap(err, "failed to generate AI response")
	}
	logger.Info("Received response from Gemini", "duration", time.Since(start))

	text, err := responseText(resp)
	if err != nil {
		s.dump(sources, targets, nil, err)
		return nil, err
	}

	suggestions := parseSuggestions(text)
	s.dump(sources, targets, suggestions, nil)
	return suggestions, nil
}

func (s *Suggester) dump(sources, targets []string, suggestions []Suggestion, err error) {
	if s.debugDir == "" {
		return
	}
	if dumpErr := saveSuggestionsToFile(s.debugDir, sources, targets, suggestions, err); dumpErr != nil {
		logger.Warn("Failed to write AI debug file", "error", dumpErr)
	}
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("no response generated from AI")
	}

	var b strings.Builder
	for i, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		} else {
			logger.Warn("Non-text part in response", "index", i, "type", fmt.Sprintf("%T", part))
		}
	}
	if b.Len() == 0 {
		return "", errors.New("no response generated from AI")
	}
	return b.String(), nil
}

// buildSuggestionPrompt asks for one Source|Target|Confidence line per question.
func buildSuggestionPrompt(sources, targets []string) string {
	var b strings.Builder
	b.WriteString(`You are helping to fill a customer-service audit report from raw questionnaire results.
Questions in the results and rows in the report are worded slightly differently.

TASK: Pair each RESULT QUESTION with the REPORT ROW asking the same thing, or answer "NO_MATCH".

RESULT QUESTIONS:
`)
	for _, s := range sources {
		fmt.Fprintf(&b, "- %s\n", s)
	}
	b.WriteString("\nREPORT ROWS:\n")
	for _, t := range targets {
		fmt.Fprintf(&b, "- %s\n", t)
	}
	b.WriteString(`
INSTRUCTIONS:
1. Copy both texts exactly as listed
2. Only pair questions you are confident about (>80% certainty)
3. Use each report row for AT MOST ONE question
4. If uncertain, use "NO_MATCH"

OUTPUT FORMAT (one line per result question):
ResultQuestion|ReportRow|Confidence

EXAMPLE:
Менеджер поприветствовал клиента?|Приветствие клиента|0.90
Погода в день визита|NO_MATCH|0.00
`)
	return b.String()
}

// parseSuggestions keeps confident, well-formed lines and drops the rest.
func parseSuggestions(response string) []Suggestion {
	var out []Suggestion
	skipped, noMatches, lowConfidence := 0, 0, 0

	for _, line := range strings.Split(strings.TrimSpace(response), "\n") {
		line = strings.Trim(strings.TrimSpace(line), "`")
		if line == "" || strings.HasPrefix(line, "ResultQuestion|") {
			continue
		}

		parts := strings.Split(line, "|")
		if len(parts) != 3 {
			skipped++
			continue
		}
		source := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(parts[0]), "- "))
		target := strings.TrimSpace(parts[1])

		var confidence float64
		if _, err := fmt.Sscanf(strings.TrimSpace(parts[2]), "%f", &confidence); err != nil {
			confidence = 0
		}

		if target == noMatch {
			noMatches++
			continue
		}
		if confidence < minSuggestionConfidence {
			lowConfidence++
			continue
		}
		out = append(out, Suggestion{SourceLabel: source, TargetLabel: target, Confidence: confidence})
	}

	logger.Info("AI response parsed",
		"suggestions", len(out),
		"skipped_lines", skipped,
		"no_match_count", noMatches,
		"low_confidence_count", lowConfidence)
	return out
}

// ApplySuggestions stores AI suggestions whose target label resolves to a
// template row. Existing manual overrides are never replaced.
func ApplySuggestions(of *OverrideFile, suggestions []Suggestion, index map[string]int) int {
	applied := 0
	for _, s := range suggestions {
		if existing, ok := of.Lookup(s.SourceLabel); ok && existing.Origin == OriginManual {
			continue
		}
		norm := matcher.Normalize(s.TargetLabel)
		row, ok := index[norm]
		if !ok {
			logger.Warn("AI suggested an unknown report row", "source", s.SourceLabel, "target", s.TargetLabel)
			continue
		}
		of.Set(Override{
			SourceLabel: s.SourceLabel,
			TargetRow:   row,
			TargetLabel: s.TargetLabel,
			Origin:      OriginAI,
			Confidence:  s.Confidence,
		})
		applied++
	}
	return applied
}

// GetGeminiAPIKey reads GEMINI_API_KEY, loading .env first if present.
func GetGeminiAPIKey() string {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Warn("Failed to load .env", "error", err)
	}
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		logger.Warn("GEMINI_API_KEY environment variable not set")
	}
	return apiKey
}
