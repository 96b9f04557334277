package dialogue

import (
	"fmt"
	"strings"

	"github.com/HanphoneJan/Ai-Interview-Agent/pkg/types"
)

const interviewerRole = "You are a professional interviewer conducting a structured job interview. " +
	"Ask one clear, focused question at a time. Do not number questions, do not add commentary, " +
	"reply with the question text only."

// firstQuestionPrompt produces the opening question request for a scenario.
func firstQuestionPrompt(scenarioID string) string {
	var b strings.Builder
	b.WriteString(interviewerRole)
	if scenarioID != "" {
		fmt.Fprintf(&b, " The interview scenario is %q.", scenarioID)
	}
	b.WriteString(" Ask the candidate an opening question about their background.")
	return b.String()
}

// nextQuestionPrompt asks for a follow-up grounded in the latest answer.
func nextQuestionPrompt(answer string) string {
	var b strings.Builder
	b.WriteString(interviewerRole)
	fmt.Fprintf(&b, " The candidate just answered: %q.", answer)
	b.WriteString(" Ask the next question, building on that answer where it makes sense.")
	return b.String()
}

// evaluationPrompt asks for a scored assessment of a single answer.
func evaluationPrompt(question, answer string) string {
	var b strings.Builder
	b.WriteString("You are evaluating a candidate's answer in a job interview. ")
	fmt.Fprintf(&b, "Question: %q. Answer: %q. ", question, answer)
	b.WriteString("Give a short assessment of the answer's relevance, depth and clarity, " +
		"then on the final line write \"Score: N\" where N is an integer from 0 to 100.")
	return b.String()
}

// parseScore extracts the trailing score from an evaluation reply. A reply
// without a parseable score yields zero.
func parseScore(evaluation string) float64 {
	idx := strings.LastIndex(strings.ToLower(evaluation), "score:")
	if idx < 0 {
		return 0
	}
	rest := strings.TrimSpace(evaluation[idx+len("score:"):])
	var score float64
	if _, err := fmt.Sscanf(rest, "%f", &score); err != nil {
		return 0
	}
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// historyForGeneration trims the running transcript to the last few turns
// so prompts stay bounded on long interviews.
func historyForGeneration(history []types.ConversationTurn) []types.ConversationTurn {
	const maxTurns = 12
	if len(history) <= maxTurns {
		return history
	}
	return history[len(history)-maxTurns:]
}
