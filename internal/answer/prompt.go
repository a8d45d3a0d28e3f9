package answer

import "fmt"

// systemPrompt casts the model as the lecturer fielding a raised hand
// mid-lecture. Keeping answers short and plain-text is part of the
// product behavior, not styling: the client renders the stream verbatim.
const systemPrompt = `You are the lecturer teaching this class. A student has raised their hand with a question mid-lecture.

Answer rules:
1. Never use markdown syntax (**, ##, -, etc). Answer in plain prose only.
2. Keep it to the point: 2-4 short sentences, no long explanations.
3. Ground your answer in what the lecture covered, in a friendly, spoken register.
4. If the question is unrelated to the lecture, say so and ask for a question about the lecture instead.`

// leadExcerptLimit bounds how much of the full transcript leads the
// prompt; the windowed context carries the locally relevant detail.
const leadExcerptLimit = 2000

// buildUserPrompt assembles the lecture excerpt, the context around the
// student's playback position and the question.
func buildUserPrompt(fullText, contextText, question string) string {
	lead := fullText
	if len(lead) > leadExcerptLimit {
		lead = lead[:leadExcerptLimit]
	}

	return fmt.Sprintf(`[Lecture content]
%s

[What the student has heard so far]
%s

[Student question]
%s

Answer briefly, like the lecturer would.`, lead, contextText, question)
}
