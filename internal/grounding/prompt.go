package grounding

import (
	"fmt"
	"strings"
)

// Turn is one conversation exchange as seen by the prompt assembler.
type Turn struct {
	Role    string
	Content string
}

// fragmentSeparator visually divides rendered fragments.
const fragmentSeparator = "\n\n---\n\n"

// promptPreamble is the fixed persona instruction. No timestamps or other
// varying text may appear anywhere in the template: BuildPrompt must be
// byte-identical for identical inputs.
const promptPreamble = `You are Deepen, a personal knowledge assistant. You help the user think with their own saved content: answer their questions using the context retrieved from their captures below.`

// promptInstructions is the fixed instruction list appended after the
// conversation history.
const promptInstructions = `Instructions:
- Answer using the retrieved context above.
- If the context does not contain enough information, say so plainly instead of guessing.
- Keep a conversational tone.
- Cite sources by their identifier when you use them.
- If the question is ambiguous, ask a clarifying question.
- Maintain continuity with the conversation so far.`

// BuildPrompt renders the complete prompt for one assistant turn:
// persona preamble, context block, conversation history, instruction list,
// and a trailing assistant marker.
//
// The function is pure: identical inputs yield byte-identical output.
// Callers are responsible for fragment ordering; the first
// MaxPromptFragments fragments are rendered as supplied.
func BuildPrompt(turns []Turn, c Context) string {
	var sb strings.Builder

	sb.WriteString(promptPreamble)
	sb.WriteString("\n\n")

	fmt.Fprintf(&sb, "CONTEXT (searched %d sources):\n", c.TotalSources)
	sb.WriteString(renderFragments(c))
	sb.WriteString("\n\n")

	if len(turns) > 0 {
		sb.WriteString("CONVERSATION:\n")
		for _, t := range turns {
			fmt.Fprintf(&sb, "%s: %s\n", strings.ToUpper(t.Role), t.Content)
		}
		sb.WriteString("\n")
	}

	sb.WriteString(promptInstructions)
	sb.WriteString("\n\nASSISTANT:")

	return sb.String()
}

// renderFragments renders the evidence block: either the no-results
// statement or up to MaxPromptFragments fragments with a summary line.
func renderFragments(c Context) string {
	if len(c.Fragments) == 0 {
		return fmt.Sprintf("No relevant information was found across %d sources.", c.TotalSources)
	}

	fragments := c.Fragments
	if len(fragments) > MaxPromptFragments {
		fragments = fragments[:MaxPromptFragments]
	}

	rendered := make([]string, len(fragments))
	distinct := make(map[string]bool, len(fragments))
	for i, f := range fragments {
		rendered[i] = fmt.Sprintf("[From: %s]\n%s", f.SourceID, f.Text)
		distinct[f.SourceID.String()] = true
	}

	var sb strings.Builder
	sb.WriteString(strings.Join(rendered, fragmentSeparator))
	fmt.Fprintf(&sb, "\n\n%d fragments from %d sources.", len(fragments), len(distinct))
	return sb.String()
}
