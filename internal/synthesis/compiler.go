// Package synthesis compiles the user-facing final response from the raw
// conversation log. It is deterministic and fully offline so it can serve as
// the degrade path whenever the routing oracle is unavailable or rejected.
package synthesis

import (
	"fmt"
	"strings"

	"github.com/claritymed/regassist/internal/models"
)

// sourcesMarker is the legacy trailing section some specialist prompts still
// emit inside message bodies. Citations travel as structured data now, so the
// text form is stripped before composition to avoid double rendering.
const sourcesMarker = "📚 **Sources referenced:**"

// Compile synthesizes a final response from specialist messages. Human and
// supervisor messages are excluded. The result is never empty.
func Compile(messages []models.AgentMessage, workflowType models.WorkflowType, terminationReason string) string {
	type response struct {
		agent   string
		content string
	}

	var responses []response
	for _, msg := range messages {
		if !msg.IsSpecialist() {
			continue
		}
		content := msg.Content
		if idx := strings.Index(content, sourcesMarker); idx >= 0 {
			content = strings.TrimSpace(content[:idx])
		}
		responses = append(responses, response{agent: msg.Author, content: content})
	}

	if len(responses) == 0 {
		return fmt.Sprintf("Analysis completed (%s). Please let me know if you need any additional information or clarification.", terminationReason)
	}

	if workflowType == models.WorkflowQuestionAnswering {
		latest := responses[len(responses)-1]
		return fmt.Sprintf(`**FDA Auditor Assessment:**

Based on my review and specialist analysis, here are the key findings:

%s

**Regulatory Context:**
This assessment is based on current FDA guidance documents and regulatory requirements. The analysis above provides the technical details you requested from our %s specialist.

**Recommendations:**
Please review the specific requirements and guidance documents referenced above. If you need clarification on any specific aspect or have additional questions about compliance requirements, I'm here to help.

Do you need any additional clarifications?`, latest.content, strings.ReplaceAll(latest.agent, "_", " "))
	}

	var sb strings.Builder
	sb.WriteString("**FDA Auditor Assessment - Compliance Gap Analysis:**\n\n")
	sb.WriteString("Based on comprehensive analysis by our specialist team, here is the regulatory assessment:\n\n")
	for _, resp := range responses {
		sb.WriteString(fmt.Sprintf("**%s Findings:**\n%s\n\n", titleCase(resp.agent), resp.content))
	}
	sb.WriteString(`**Overall Assessment:**
The compliance gap analysis has been completed by our specialist team. Please review the findings above and address any identified gaps before proceeding with your regulatory submission.

Do you need any additional clarifications?`)
	return sb.String()
}

// titleCase renders an agent identifier like "cybersecurity_agent" as
// "Cybersecurity Agent".
func titleCase(agent string) string {
	words := strings.Split(agent, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
