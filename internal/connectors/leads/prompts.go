package leads

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/xela07ax/spaceai-crm-gateway/internal/engine"
)

func prompts() []engine.Prompt {
	return []engine.Prompt{
		{
			Name:        "qualify_lead",
			Description: "Assess a lead against BANT and propose the next status and score",
			Arguments: []engine.PromptArgument{
				{Name: "lead_id", Description: "Lead id", Required: true},
			},
			Render: func(ctx context.Context, rt *engine.Runtime, args map[string]string) (string, error) {
				lead, err := leadJSON(ctx, rt, args["lead_id"])
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("Qualify this lead using BANT (budget, authority, need, timeline). "+
					"Recommend a status from %v and a score between 0 and 100, then justify both.\n\n%s", Statuses, lead), nil
			},
		},
		{
			Name:        "follow_up_message",
			Description: "Draft a follow-up message for a lead",
			Arguments: []engine.PromptArgument{
				{Name: "lead_id", Description: "Lead id", Required: true},
				{Name: "channel", Description: "email, phone or whatsapp (default email)"},
			},
			Render: func(ctx context.Context, rt *engine.Runtime, args map[string]string) (string, error) {
				lead, err := leadJSON(ctx, rt, args["lead_id"])
				if err != nil {
					return "", err
				}
				channel := args["channel"]
				if channel == "" {
					channel = "email"
				}
				return fmt.Sprintf("Draft a short, personal follow-up %s for the lead below. "+
					"Reference their company and notes, and end with one clear next step.\n\n%s", channel, lead), nil
			},
		},
	}
}

func leadJSON(ctx context.Context, rt *engine.Runtime, id string) (string, error) {
	rec, err := rt.Get(ctx, id)
	if err != nil {
		return "", err
	}
	b, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}
