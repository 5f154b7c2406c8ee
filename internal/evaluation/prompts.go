package evaluation

import (
	"encoding/json"
	"fmt"
	"strings"
)

func extractionSystemPrompt(cfg ExtractorConfig) string {
	count := fmt.Sprintf("%d-%d", cfg.TargetMin, cfg.TargetMax)
	if cfg.TargetMin == cfg.TargetMax {
		count = fmt.Sprintf("exactly %d", cfg.TargetMax)
	}

	return "You extract keywords used to grade academic assignments. " +
		"Return " + count + " domain-specific technical terms taken from the assignment problem: " +
		"core concepts, subject terminology, named processes, principles, methods, frameworks and skills. " +
		"Skip generic academic words (important, analysis, introduction, conclusion) and common verbs (discuss, explain, describe). " +
		"Respond with a JSON array of strings only, for example [\"keyword one\", \"keyword two\"]."
}

func extractionUserPrompt(problem string) string {
	return "Extract keywords from this assignment problem:\n\n" + problem
}

func evaluationSystemPrompt() string {
	return `You grade student assignments against a list of reference keywords.

Classify every reference keyword as matched or missing. Match by meaning: synonyms, abbreviations and paraphrases count as matched. Only use keywords from the reference list.

Score each rubric dimension from 0 to 100:
- content_quality: depth, accuracy and clarity of explanations
- structure_organization: logical flow and presentation
- critical_thinking: analysis, synthesis and original insight

overall_score (0-100) weights keyword coverage 40%, content quality 30%, structure 15% and critical thinking 15%.

Respond with one JSON object:
{
  "matched_keywords": ["..."],
  "missing_keywords": ["..."],
  "rubric_scores": {"content_quality": 0, "structure_organization": 0, "critical_thinking": 0},
  "overall_score": 0,
  "feedback": "constructive feedback for the student",
  "strengths": ["..."],
  "areas_for_improvement": ["..."]
}`
}

func evaluationUserPrompt(text string, keywords KeywordSet, report LowEffortReport) string {
	encoded, err := json.Marshal(keywords.Items())
	if err != nil {
		encoded = []byte("[]")
	}

	var builder strings.Builder
	builder.WriteString("Reference keywords: ")
	builder.Write(encoded)
	builder.WriteString("\n\n")
	if report.IsLowEffort {
		fmt.Fprintf(&builder, "Note: this submission has only %d words and %d keyword hits. It looks like a keyword list without explanation; reflect that in the feedback.\n\n",
			report.WordCount, report.KeywordHitCount)
	}
	builder.WriteString("Student submission:\n")
	builder.WriteString(text)
	builder.WriteString("\n\nEvaluate this submission against the reference keywords.")
	return builder.String()
}
