package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadqual/internal/config"
	"github.com/sells-group/leadqual/internal/model"
	"github.com/sells-group/leadqual/pkg/anthropic"
)

const emailSystemPrompt = `You draft first-touch outreach emails from %s at %s.
The product: %s.

Rules:
- Two sentences maximum, plus a greeting and sign-off.
- Formal and respectful. No buzzwords, no bold or italic text, no citations.
- The first line must be personalized to the recipient's role and company.
- Mention curiosity about what brought them to the site and a soft offer to help.
- It must not read like a sales email; the goal is a reply.

Respond with a valid JSON object: {"subject": "<subject line>", "body": "<email body>"}`

const emailUserPrompt = `Recipient:
- Name: %s
- Title: %s
- Company: %s
- Industry: %s

Why they qualified:
%s`

// Drafter writes outreach emails for qualified leads.
type Drafter struct {
	anthropic anthropic.Client
	aiCfg     config.AnthropicConfig
	qualCfg   config.QualifyConfig
}

// NewDrafter creates a Drafter.
func NewDrafter(ai anthropic.Client, aiCfg config.AnthropicConfig, qualCfg config.QualifyConfig) *Drafter {
	return &Drafter{anthropic: ai, aiCfg: aiCfg, qualCfg: qualCfg}
}

// Draft writes an outreach email for a qualified lead. The reasoning
// from qualification seeds the personalization.
func (d *Drafter) Draft(ctx context.Context, visitor model.Visitor, qual *model.Qualification) (*model.OutreachEmail, error) {
	resp, err := d.anthropic.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     d.aiCfg.SonnetModel,
		MaxTokens: 512,
		System:    fmt.Sprintf(emailSystemPrompt, d.qualCfg.SenderName, d.qualCfg.SenderCompany, d.qualCfg.ProductPitch),
		Messages: []anthropic.Message{
			{Role: "user", Content: fmt.Sprintf(emailUserPrompt,
				visitor.Name(), visitor.Title, visitor.Company, visitor.Industry,
				qual.Reasoning)},
		},
	})
	if err != nil {
		return nil, eris.Wrap(err, "email: draft")
	}

	var draft struct {
		Subject string `json:"subject"`
		Body    string `json:"body"`
	}
	if err := json.Unmarshal([]byte(cleanJSON(resp.Text())), &draft); err != nil {
		return nil, eris.Wrap(err, "email: parse draft json")
	}
	if draft.Body == "" {
		return nil, eris.New("email: empty draft body")
	}

	zap.L().Info("email: drafted outreach",
		zap.String("visitor", visitor.Name()),
		zap.String("subject", draft.Subject),
	)
	return &model.OutreachEmail{
		Subject: draft.Subject,
		Body:    draft.Body,
		Usage: model.TokenUsage{
			InputTokens:  int(resp.Usage.InputTokens),
			OutputTokens: int(resp.Usage.OutputTokens),
		},
	}, nil
}
