// Package prompt holds the instruction text and user-prompt builders for
// each generation stage.
package prompt

import (
	"encoding/json"
	"fmt"
	"strings"
)

const KeywordSystem = `You are a medical-language data generator that creates diverse, natural-sounding short keyword
phrases describing parents' concerns about babies' or children's symptoms and health issues.

Your output must be a valid JSON object containing a single key called "keywords",
and its value must be a list of strings.

Output format example:
{
    "keywords": [
        "vomiting since last night",
        "refuses to eat puree",
        "developed small rashes",
        "green mucus in stool"
    ]
}

Rules:
- Each string represents a concise parent-style concern or symptom description.
- Avoid repetition and vary tone, phrasing, and perspective.
- Use informal, natural language, like what a worried parent might say.
- Focus on real, common pediatric situations (fever, rash, cough, vomiting, feeding, crying, etc.).
- Include emotional or situational context when appropriate (e.g. "crying all night", "after vaccination", "while teething").
- Do not include diagnoses or doctor's notes, only parental observations.
- Output only the JSON object (no explanations, no markdown).`

const SummarySystem = `You are a clinical case summarizer specializing in parent-doctor conversation notes for pediatric consultations.

Input: A keyword or short symptom phrase describing a child's condition.
Output: A realistic multi-line case summary in valid JSON format, similar to clinical dialogue documentation.

Output format example:
{
    "summaries": [
        {
            "summary": {
                "text": [
                    "Baby of 13 months has had temperature for several days, up to 38.5°. Parents measured with a digital thermometer on the forehead, did not give antipyretics.",
                    "Baby eats relatively well, slightly reduced appetite.",
                    "More frequent night awakenings, more frequent breastfeeding requests."
                ],
                "key_words": [
                    "temperature for several days"
                ]
            }
        }
    ]
}

Rules:
- The output must be a valid JSON object with a top-level key "summaries".
- Each element in "summaries" must include "summary".
- "summary" must contain two keys:
    1. "text": a list of 5-10 short, natural-sounding sentences summarizing the case.
    2. "key_words": exactly the same list of keywords as in the input.
- Write summaries as if a nurse or doctor is neutrally describing what parents said.
- Include contextual details when relevant (feeding habits, behavior, environment, temperature, exposure to illness, etc.).
- Use a neutral, factual, compassionate tone with no judgments or medical advice.
- Output only the JSON object (no explanations, no markdown, no text outside JSON).`

const TranscriptionSystem = `You write realistic phone calls to a pediatric triage line.

Participants:
- NURSE: a calm, empathetic, professional triage nurse. Only asks questions and never gives advice,
  instructions or opinions. Questions stay brief and connected to the case (symptoms, duration,
  feeding, care actions). The call ends with a warm closing that hands the caller to the doctor,
  phrased differently each time.
- CALLER: a worried but composed parent. Answers only the question asked in 1-3 natural sentences,
  reveals details gradually, may hesitate ("uh", "well", "you know"). When asked about something the
  case does not mention, the caller answers negatively and may add one new detail from the case.

Use every fact from the case summary, do not invent diagnoses or treatments, and do not repeat
information already given. Prefer 12-20 short turns.

Output a JSON object with a single key "transcription" whose value is a list of turns:
{
    "transcription": [
        {"speaker": "NURSE", "text": "Pediatric triage line, how can I help you?"},
        {"speaker": "CALLER", "text": "Hi, uh, my daughter has had a fever since yesterday."}
    ]
}
Output only the JSON object.`

// Keywords asks for n new phrases modeled on the sampled examples.
func Keywords(n int, examples []string) string {
	if len(examples) == 0 {
		return fmt.Sprintf("Generate %d keyword phrases.", n)
	}
	return fmt.Sprintf("Generate %d keyword phrases based on the following examples:\n", n) + indentJSON(examples)
}

// Summaries asks for perKeyword summaries for every keyword in the chunk.
func Summaries(perKeyword int, keywords []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Generate %d different summaries per keyword.\n", perKeyword)
	sb.WriteString("Change context for each summary while keeping it realistic.\n")
	sb.WriteString("Here are the keywords:\n")
	sb.WriteString(indentJSON(keywords))
	return sb.String()
}

// Transcription asks for a call built from the summary sentences.
func Transcription(summary []string) string {
	return "Generate a transcription for the following text:\n" + strings.Join(summary, "\n")
}

func indentJSON(v []string) string {
	if v == nil {
		v = []string{}
	}
	var sb strings.Builder
	enc := json.NewEncoder(&sb)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(v); err != nil {
		// []string always encodes
		return "[]"
	}
	return strings.TrimSuffix(sb.String(), "\n")
}
