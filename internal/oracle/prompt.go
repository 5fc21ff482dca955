package oracle

import (
	"fmt"
	"strings"

	"github.com/claritymed/regassist/internal/models"
)

// buildSystemPrompt assembles the routing instructions for one decision.
// The deterministic guardrails in the supervisor package re-check everything
// promised here, so a disobedient model cannot loop or double-route.
func buildSystemPrompt(req DecisionRequest) string {
	var sb strings.Builder
	sb.WriteString("You are an FDA auditor supervisor managing a team of specialists. ")
	sb.WriteString("Analyze the conversation and decide which team member acts next, or FINISH with a final compiled response.\n\n")

	sb.WriteString("ROUTING RULES:\n")
	if req.WorkflowType == models.WorkflowGapAnalysis {
		sb.WriteString("- Gap analysis sequence: document_processor, then cybersecurity_agent, then regulatory_agent, then auditor_agent, then report_generator, then FINISH\n")
	} else {
		sb.WriteString("- Question answering: route to ONE specialist first (cybersecurity_agent for security, threats, vulnerabilities, SOUP, encryption; regulatory_agent for 510(k), PMA, QSR, submissions, guidance), then FINISH after they respond\n")
		sb.WriteString("- If the question contains both cybersecurity and regulatory keywords, choose cybersecurity_agent\n")
	}
	sb.WriteString("- NEVER route to an agent that has already responded\n")
	sb.WriteString("- When next is FINISH, final_response must contain a comprehensive FDA auditor assessment ending with: 'Do you need any additional clarifications?'\n\n")

	fmt.Fprintf(&sb, "Team members: %s\n", strings.Join(req.TeamMembers, ", "))
	if len(req.Completed) > 0 {
		fmt.Fprintf(&sb, "Already completed: %s\n", strings.Join(req.Completed, ", "))
	}

	sb.WriteString("\nRespond with a JSON object: {\"next\": \"<member or FINISH>\", \"final_response\": \"<text when FINISH, else empty>\", \"reasoning\": \"<one sentence>\"}")
	return sb.String()
}

// buildTranscript renders the conversation for the oracle, tagging each
// message with its author.
func buildTranscript(req DecisionRequest) string {
	var sb strings.Builder
	for _, msg := range req.Messages {
		author := msg.Author
		if author == "" {
			author = "user"
		}
		fmt.Fprintf(&sb, "[%s] %s\n", author, msg.Content)
	}
	return sb.String()
}
