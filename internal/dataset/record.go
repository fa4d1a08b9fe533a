package dataset

import (
	"encoding/json"
	"fmt"
	"strings"
)

// CallRecord is one persisted synthetic triage call. Field order fixes the
// serialized key order, so call_id is always written first.
type CallRecord struct {
	CallID        string   `json:"call_id"`
	Participants  []string `json:"participants,omitempty"`
	Transcription []Turn   `json:"transcription,omitempty"`
	Summary       Summary  `json:"summary"`
}

// Turn is one line of dialogue.
type Turn struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

type Summary struct {
	Text     Sentences `json:"text"`
	KeyWords []string  `json:"key_words"`
}

// Sentences decodes from either a JSON list of strings or a single string.
type Sentences []string

func (s *Sentences) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*s = nil
		return nil
	}
	if strings.HasPrefix(trimmed, "\"") {
		var one string
		if err := json.Unmarshal(data, &one); err != nil {
			return err
		}
		if one == "" {
			*s = nil
			return nil
		}
		*s = Sentences{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("summary text: %w", err)
	}
	*s = many
	return nil
}

// String joins the sentences one per line.
func (s Sentences) String() string {
	return strings.Join(s, "\n")
}

// Participants returns the unique speakers in order of first appearance.
func Participants(turns []Turn) []string {
	seen := make(map[string]struct{}, 2)
	var out []string
	for _, t := range turns {
		if t.Speaker == "" {
			continue
		}
		if _, ok := seen[t.Speaker]; ok {
			continue
		}
		seen[t.Speaker] = struct{}{}
		out = append(out, t.Speaker)
	}
	return out
}
