package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadqual/internal/config"
	"github.com/sells-group/leadqual/internal/model"
	"github.com/sells-group/leadqual/internal/resilience"
	"github.com/sells-group/leadqual/pkg/anthropic"
	"github.com/sells-group/leadqual/pkg/perplexity"
)

const researchPromptTemplate = `Research this website visitor to judge whether they are a sales prospect.

Visitor:
- Name: %s
- Title: %s
- Company: %s
- Industry: %s
- Country: %s
- Website: %s
- LinkedIn: %s

Run these searches and summarize what you find:
1. "%s %s news" - recent company news
2. "what does %s do" - company description and business model
3. "%s %s" - verify the person and their role
4. "%s %s" - market positioning

Report: what the company does, its size and maturity, recent news, the
visitor's seniority and role, and whether the visitor looks like an
investor, a student or job seeker, or a potential buyer.`

const verdictSystemPrompt = `You qualify website visitors as sales leads for %s, which sells: %s.

A visitor is QUALIFIED when:
1. Their company could plausibly buy the product. Adjacent industries count.
2. They hold a senior or strategic title. Junior roles qualify only when the company fit is strong.
3. They show buying intent (repeat visits help but matter least).

Investors, students, job seekers, and competitors are never qualified.
A competitor is any company selling something similar.

Respond with a valid JSON object:
{"qualified": true|false, "score": <1-10>, "reasoning": "<short bullet points>"}`

const verdictUserPrompt = `Visitor:
- Name: %s
- Title: %s
- Company: %s
- Industry: %s
- Visit count: %d

LinkedIn profile summary:
%s

Research findings:
%s`

// scorePattern recovers a trailing "Score: 7" style verdict when the
// model answers in prose instead of JSON.
var scorePattern = regexp.MustCompile(`(?i)score:?\s*([0-9]+(?:\.[0-9]+)?)`)

// Qualifier scores visitors against the configured product pitch.
type Qualifier struct {
	perplexity perplexity.Client
	anthropic  anthropic.Client
	aiCfg      config.AnthropicConfig
	qualCfg    config.QualifyConfig
	retry      resilience.Policy
}

// NewQualifier creates a Qualifier.
func NewQualifier(pplx perplexity.Client, ai anthropic.Client, aiCfg config.AnthropicConfig, qualCfg config.QualifyConfig) *Qualifier {
	return &Qualifier{
		perplexity: pplx,
		anthropic:  ai,
		aiCfg:      aiCfg,
		qualCfg:    qualCfg,
		retry:      resilience.Policy{MaxAttempts: 3},
	}
}

// Qualify researches the visitor with Perplexity, then asks the model
// for a structured verdict. The profile may be nil when capture failed;
// qualification proceeds on the CSV row alone.
func (q *Qualifier) Qualify(ctx context.Context, visitor model.Visitor, profile *model.ProfileRecord) (*model.Qualification, error) {
	log := zap.L().With(zap.String("company", visitor.Company), zap.String("visitor", visitor.Name()))

	type research struct {
		findings string
		usage    perplexity.Usage
	}
	res, err := resilience.Do(ctx, q.retry, "qualify: research", func(ctx context.Context) (research, error) {
		answer, usage, err := perplexity.Research(ctx, q.perplexity, q.researchPrompt(visitor))
		return research{findings: answer, usage: usage}, err
	})
	if err != nil {
		return nil, eris.Wrap(err, "qualify: research")
	}
	if strings.TrimSpace(res.findings) == "" {
		return nil, eris.New("qualify: empty research findings")
	}

	usage := model.TokenUsage{
		InputTokens:  res.usage.PromptTokens,
		OutputTokens: res.usage.CompletionTokens,
	}

	resp, err := q.anthropic.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     q.aiCfg.HaikuModel,
		MaxTokens: 1024,
		System:    fmt.Sprintf(verdictSystemPrompt, q.qualCfg.SenderCompany, q.qualCfg.ProductPitch),
		Messages: []anthropic.Message{
			{Role: "user", Content: fmt.Sprintf(verdictUserPrompt,
				visitor.Name(), visitor.Title, visitor.Company, visitor.Industry,
				visitor.VisitCount, summarizeProfile(profile), res.findings)},
		},
	})
	if err != nil {
		return nil, eris.Wrap(err, "qualify: verdict")
	}
	usage.Add(model.TokenUsage{
		InputTokens:  int(resp.Usage.InputTokens),
		OutputTokens: int(resp.Usage.OutputTokens),
	})

	qual := parseVerdict(resp.Text())
	qual.Usage = usage

	// The score threshold is the final gate: a "qualified" answer with
	// a score below it is demoted.
	if qual.Qualified && qual.Score < float64(q.qualCfg.ScoreThreshold) {
		log.Debug("qualify: demoting below-threshold verdict",
			zap.Float64("score", qual.Score),
			zap.Int("threshold", q.qualCfg.ScoreThreshold),
		)
		qual.Qualified = false
	}

	log.Info("qualify: verdict",
		zap.Bool("qualified", qual.Qualified),
		zap.Float64("score", qual.Score),
	)
	return qual, nil
}

func (q *Qualifier) researchPrompt(v model.Visitor) string {
	return fmt.Sprintf(researchPromptTemplate,
		v.Name(), v.Title, v.Company, v.Industry, v.Country, v.Website, v.LinkedInURL,
		v.Company, v.Industry,
		v.Company,
		v.Name(), v.Company,
		v.Company, v.Industry,
	)
}

// parseVerdict reads the model's JSON verdict, falling back to prose
// parsing (leading yes/no plus a "Score: N" line) when the JSON is
// malformed.
func parseVerdict(text string) *model.Qualification {
	var result struct {
		Qualified bool    `json:"qualified"`
		Score     float64 `json:"score"`
		Reasoning string  `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(cleanJSON(text)), &result); err == nil {
		return &model.Qualification{
			Qualified: result.Qualified,
			Score:     result.Score,
			Reasoning: result.Reasoning,
		}
	}

	qual := &model.Qualification{
		Qualified: strings.HasPrefix(strings.ToLower(strings.TrimSpace(text)), "yes"),
		Reasoning: strings.TrimSpace(text),
	}
	if m := scorePattern.FindStringSubmatch(text); m != nil {
		fmt.Sscanf(m[1], "%f", &qual.Score)
	}
	return qual
}

// summarizeProfile renders the captured profile as prompt context.
func summarizeProfile(rec *model.ProfileRecord) string {
	if rec == nil {
		return "No profile captured."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\n", rec.DisplayName)
	if rec.Headline != "" {
		fmt.Fprintf(&b, "Headline: %s\n", rec.Headline)
	}
	if rec.CurrentTitle != "" || rec.CurrentEmployer != "" {
		fmt.Fprintf(&b, "Current position: %s at %s\n", rec.CurrentTitle, rec.CurrentEmployer)
	}
	if rec.Location != "" {
		fmt.Fprintf(&b, "Location: %s\n", rec.Location)
	}
	if len(rec.Experience) > 0 {
		b.WriteString("Experience:\n")
		for _, e := range rec.Experience {
			fmt.Fprintf(&b, "- %s at %s", e.Title, e.Organization)
			if e.DateRange != "" {
				fmt.Fprintf(&b, " (%s)", e.DateRange)
			}
			b.WriteString("\n")
		}
	}
	if len(rec.Education) > 0 {
		b.WriteString("Education:\n")
		for _, e := range rec.Education {
			fmt.Fprintf(&b, "- %s", e.Institution)
			if e.Credential != "" {
				fmt.Fprintf(&b, ", %s", e.Credential)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

// cleanJSON extracts a JSON object from text that may carry markdown
// code fences or surrounding prose.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}
