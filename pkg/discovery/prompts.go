package discovery

import (
	"fmt"
	"strings"
)

// systemPrompt frames every free-form generation call.
const systemPrompt = `You are an AI Partnership Discovery Agent for Insta Agents. Your persona is enthusiastic but also direct and professional.

**PARTNERSHIP APPROACH:**
* **Starter Partnership** ($1,250/month): 1 AI agent system.
* **Growth Partnership** ($2,500/month): Up to 3 concurrent AI systems.
* **Enterprise Partnership** ($5,000/month): Unlimited concurrent systems.

**REMEMBER:**
* **Be Concise:** Keep your responses brief and to the point. Use short paragraphs and bullet points. Avoid unnecessary conversational filler.
* Focus on QUICK WINS for the first agent.
* End the conversation by driving them to the Calendly link.`

// understandQuestions is the fixed ordered list of discovery questions.
// The understand stage never asks more than these three.
//
//nolint:gochecknoglobals // Static question list
var understandQuestions = []string{
	"What does your business do and what's your biggest operational challenge?",
	"How many people are on your team and what takes up most of their time?",
	"What manual process frustrates you the most?",
}

// identifyPrompt asks the model to name the highest-value automation task.
const identifyPrompt = "Based on what you've told me, which single task would save you the most time if automated?"

// scopeQuestionTemplates are interpolated with the identified task.
//
//nolint:gochecknoglobals // Static question list
var scopeQuestionTemplates = []string{
	"Walk me through the current process for %s. What are the inputs and outputs?",
	"What tools or systems does this process interact with?",
	"How do you measure success for this task currently?",
}

// placeholderTask substitutes for the identified task when no visitor
// message exists yet.
const placeholderTask = "the process you mentioned"

// formatScopeQuestions renders the scoping questions for a task as a
// single message.
func formatScopeQuestions(task string) string {
	lines := make([]string, 0, len(scopeQuestionTemplates))
	for _, tmpl := range scopeQuestionTemplates {
		if strings.Contains(tmpl, "%s") {
			lines = append(lines, fmt.Sprintf(tmpl, task))
		} else {
			lines = append(lines, tmpl)
		}
	}
	return strings.Join(lines, "\n")
}

// formatProposal renders a proposal into the fixed human-readable template.
func formatProposal(p *MVPProposal) string {
	return fmt.Sprintf(`🎉 **Here's your MVP AI Agent proposal:**

* 🎯 **Your First AI Agent:** %s
* 📋 **What it does:** %s
* ⏰ **Time saved:** %s
* 🔌 **Integrates with:** %s
* 📊 **Success metric:** %s
* 🚀 **Delivery:** %s`,
		p.AgentName,
		p.Description,
		p.TimeSaved,
		strings.Join(p.Integrations, ", "),
		p.SuccessMetric,
		p.DeliveryTime,
	)
}

// formatRecommendation renders the tier recommendation message.
func formatRecommendation(tier Tier, priceUSD int, agentName string) string {
	var pitch string
	switch tier {
	case TierEnterprise:
		pitch = "Comprehensive AI transformation."
	case TierGrowth:
		pitch = "Ideal for expanding automation across multiple areas."
	default:
		pitch = "Perfect for your first AI agent."
	}

	return fmt.Sprintf(`💡 **Recommended Partnership:** **%s Partnership** ($%d/month): %s

This gives you everything needed to deploy your %s and see immediate ROI.

Ready to see this in action?`,
		tier.Title(), priceUSD, pitch, agentName)
}

// formatBooking renders the booking message with the Calendly link.
func formatBooking(calendlyURL string) string {
	return fmt.Sprintf("Perfect! The next step is to book a 30-minute demo where I'll show you exactly how this will work: %s", calendlyURL)
}

// formatBookingReminder is returned on turns arriving after the
// conversation has completed.
func formatBookingReminder(calendlyURL string) string {
	return fmt.Sprintf("You're all set! Grab a time that works for you here: %s", calendlyURL)
}

// identifyFallback is used when the completion service cannot produce a
// reply in the identify stage. The conversation still moves forward.
const identifyFallback = "Based on what you've told me, which single task would save you the most time if automated?"
