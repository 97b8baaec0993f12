package service

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"github.com/YanwenWang1125/RealtorOS-sub000/internal/model"
)

// Content is a generated subject/body pair ready for dispatch.
type Content struct {
	Subject string
	Body    string
}

// ContentGenerator produces the email for one follow-up. Implementations
// wired into the pipeline must not fail outward; wrap any fallible
// generator with NewFallbackGenerator.
type ContentGenerator interface {
	Generate(ctx context.Context, agent *model.Agent, lead *model.Lead, followUp *model.FollowUp) (Content, error)
}

// fallbackTemplates are keyed by follow-up label. Placeholders use the
// same {field} convention as the campaign message templates.
var fallbackTemplates = map[string]Content{
	"+1d": {
		Subject: "Great meeting you, {first_name}!",
		Body:    "Hi {first_name},\n\nThanks for reaching out! I wanted to follow up and see if you had any questions about your home search. I'm here to help whenever you're ready.\n\nBest,\n{agent_name}",
	},
	"+3d": {
		Subject: "A few listings you might like, {first_name}",
		Body:    "Hi {first_name},\n\nI've been keeping an eye out for properties that match what you're looking for. Would you like me to send over a few options?\n\nBest,\n{agent_name}",
	},
	"+7d": {
		Subject: "Checking in, {first_name}",
		Body:    "Hi {first_name},\n\nJust checking in on your home search. The market moves quickly, so let me know if you'd like an updated look at what's available.\n\nBest,\n{agent_name}",
	},
	"+14d": {
		Subject: "Still thinking it over, {first_name}?",
		Body:    "Hi {first_name},\n\nNo rush at all. When you're ready to take the next step, I'd be glad to set up some showings or answer any questions.\n\nBest,\n{agent_name}",
	},
	"+30d": {
		Subject: "Market update for you, {first_name}",
		Body:    "Hi {first_name},\n\nIt's been about a month since we last connected, so I wanted to share that conditions in your area have been shifting. Happy to walk you through what that means for you.\n\nBest,\n{agent_name}",
	},
}

var defaultFallback = Content{
	Subject: "Following up, {first_name}",
	Body:    "Hi {first_name},\n\nI wanted to follow up on your home search. Let me know if there's anything I can help with.\n\nBest,\n{agent_name}",
}

func renderTemplate(template string, data map[string]string) string {
	result := template
	for k, v := range data {
		if v == "" {
			v = "there"
		}
		result = strings.ReplaceAll(result, "{"+k+"}", v)
	}
	return result
}

// FallbackContent composes the deterministic templated email for a
// follow-up. It always includes the lead's identity.
func FallbackContent(agent *model.Agent, lead *model.Lead, followUp *model.FollowUp) Content {
	tpl, ok := fallbackTemplates[followUp.Label]
	if !ok {
		tpl = defaultFallback
	}
	agentName := agent.FullName()
	if agentName == "" {
		agentName = "Your agent"
	}
	data := map[string]string{
		"first_name": lead.FirstName,
		"last_name":  lead.LastName,
		"agent_name": agentName,
	}
	return Content{
		Subject: renderTemplate(tpl.Subject, data),
		Body:    renderTemplate(tpl.Body, data),
	}
}

// TemplateGenerator serves the fallback templates directly. It is the
// generator of record when no OpenAI key is configured.
type TemplateGenerator struct{}

func (g *TemplateGenerator) Generate(_ context.Context, agent *model.Agent, lead *model.Lead, followUp *model.FollowUp) (Content, error) {
	return FallbackContent(agent, lead, followUp), nil
}

// OpenAIGenerator drafts the follow-up email with a chat completion.
type OpenAIGenerator struct {
	Client *openai.Client
	Model  string
}

func NewOpenAIGenerator(apiKey, model string) *OpenAIGenerator {
	return &OpenAIGenerator{
		Client: openai.NewClient(apiKey),
		Model:  model,
	}
}

func (g *OpenAIGenerator) Generate(ctx context.Context, agent *model.Agent, lead *model.Lead, followUp *model.FollowUp) (Content, error) {
	prompt := fmt.Sprintf(
		"Write a short, friendly real-estate follow-up email from agent %s to prospect %s. "+
			"This is the %q follow-up after first contact (lead source: %s). "+
			"Reply with the subject on the first line prefixed 'Subject: ' and the body after a blank line. "+
			"Keep it under 120 words and do not invent property details.",
		agent.FullName(), lead.FullName(), followUp.Label, lead.Source,
	)
	resp, err := g.Client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return Content{}, fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Content{}, fmt.Errorf("openai completion: empty response")
	}
	content, err := parseDraft(resp.Choices[0].Message.Content)
	if err != nil {
		return Content{}, err
	}
	return content, nil
}

func parseDraft(draft string) (Content, error) {
	subject, body, found := strings.Cut(strings.TrimSpace(draft), "\n")
	if !found {
		return Content{}, fmt.Errorf("draft missing body")
	}
	subject = strings.TrimSpace(strings.TrimPrefix(subject, "Subject:"))
	body = strings.TrimSpace(body)
	if subject == "" || body == "" {
		return Content{}, fmt.Errorf("draft missing subject or body")
	}
	return Content{Subject: subject, Body: body}, nil
}

// FallbackGenerator wraps a primary generator so content generation never
// fails outward: any error is swallowed and replaced with the templated
// fallback for the follow-up's label.
type FallbackGenerator struct {
	Primary ContentGenerator
}

func NewFallbackGenerator(primary ContentGenerator) *FallbackGenerator {
	return &FallbackGenerator{Primary: primary}
}

func (g *FallbackGenerator) Generate(ctx context.Context, agent *model.Agent, lead *model.Lead, followUp *model.FollowUp) (Content, error) {
	if g.Primary != nil {
		content, err := g.Primary.Generate(ctx, agent, lead, followUp)
		if err == nil {
			return content, nil
		}
		logrus.WithFields(logrus.Fields{
			"follow_up": followUp.ID,
			"lead":      lead.ID,
		}).Warnf("content generation failed, using fallback template: %v", err)
	}
	return FallbackContent(agent, lead, followUp), nil
}
