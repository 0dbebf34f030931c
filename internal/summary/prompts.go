// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package summary

import "strings"

func summaryPrompt(title, content string) string {
	var b strings.Builder
	b.WriteString("You are an expert research paper reader. Return JSON only with keys zh, en, ja. ")
	b.WriteString("Use English source content as the primary basis for understanding and reasoning first, ")
	b.WriteString("then produce multilingual outputs. ")
	b.WriteString("If evidence is insufficient, state uncertainty explicitly instead of guessing. ")
	b.WriteString("Each language object must include: question, solution, findings. ")
	b.WriteString("'question' must directly answer: 'What problem does this paper aim to solve?'. ")
	b.WriteString("This is a problem statement answer, NOT an interrogative sentence. ")
	b.WriteString("In Chinese output, this field should read like the answer to '本论文要解决的问题是什么'. ")
	b.WriteString("'solution' must explain the paper's concrete method for solving the problem summarized in 'question'. ")
	b.WriteString("This must come from deep reading of the paper content (method/model/objective/training/inference), ")
	b.WriteString("not generic advice. ")
	b.WriteString("'findings' must answer: based on the solution in 'solution', what results were obtained ")
	b.WriteString("(metrics, gains, ablations, qualitative outcomes, limitations). ")
	b.WriteString("It must be evidence-grounded and answer-style, not a vague statement. ")
	b.WriteString("Formatting rules for each field (question/solution/findings): ")
	b.WriteString("produce well-structured plain text with clear paragraph breaks. ")
	b.WriteString("Prefer this layout: one short topic sentence, then 2-5 bullet lines. ")
	b.WriteString("Keep all important paper details; do NOT over-compress or drop key information. ")
	b.WriteString("Avoid markdown symbols such as ## or **. ")
	b.WriteString("Do not output question sentences like 'What is ...?'; output declarative answers only.\n\n")
	b.WriteString("Paper title: " + title + "\n\n")
	b.WriteString("Paper content:\n")
	b.WriteString(content)
	return b.String()
}

func mergePrompt(title string, current Summary, userMessage, answer, sourceHint string) string {
	if sourceHint == "" {
		sourceHint = "N/A"
	}
	var b strings.Builder
	b.WriteString("You are updating an existing multilingual paper summary after a user discussion. ")
	b.WriteString("Use English source content as the primary basis for understanding and reasoning first, ")
	b.WriteString("then update multilingual outputs. ")
	b.WriteString("If evidence is insufficient, keep uncertainty explicit and do not fabricate details. ")
	b.WriteString("Return JSON only with keys zh, en, ja; each has question, solution, findings. ")
	b.WriteString("'question' must remain the direct answer to 'What problem does this paper aim to solve?' ")
	b.WriteString("(Chinese meaning: '本论文要解决的问题是什么'). ")
	b.WriteString("It must be declarative, never a question sentence. ")
	b.WriteString("'solution' must remain tightly aligned to that 'question': ")
	b.WriteString("it is the paper-proposed method to solve the summarized target problem, based on paper evidence. ")
	b.WriteString("'findings' must remain aligned to 'solution': ")
	b.WriteString("it states what results were obtained through that solution, based on paper evidence. ")
	b.WriteString("Formatting rules: each field should be readable plain text with paragraph breaks, ")
	b.WriteString("prefer one topic sentence + 2-5 bullet lines. ")
	b.WriteString("Keep important details; do not drop information for brevity. ")
	b.WriteString("Avoid markdown symbols like ## or **. ")
	b.WriteString("Integrate only reliable new insights supported by assistant answer and source hint. ")
	b.WriteString("Keep prior good points and refine wording if needed.\n\n")
	b.WriteString("Paper title: " + title + "\n")
	b.WriteString("Current summary JSON: " + current.JSON() + "\n")
	b.WriteString("User message: " + userMessage + "\n")
	b.WriteString("Assistant answer: " + answer + "\n")
	b.WriteString("Source hint: " + sourceHint + "\n")
	return b.String()
}
