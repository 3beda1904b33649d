package intent

import (
	"regexp"
	"strings"
)

// KeywordConfidence is what the pattern classifier reports on a match.
const (
	KeywordConfidence   = 0.6
	KeywordNoMatchScore = 0.3
)

var interrogatives = []string{
	"what", "how", "why", "when", "where", "who", "whom", "whose", "which",
	"is", "are", "was", "were", "does", "do", "did", "can", "could", "should", "will", "would",
	"apa", "apakah", "bagaimana", "kenapa", "mengapa", "kapan", "dimana", "di mana", "siapa", "berapa",
}

var artifactVerbs = []string{
	"create", "draft", "write", "generate", "make", "prepare", "compose", "produce", "build",
	"buat", "buatkan", "tuliskan", "susun", "susunkan",
}

// Polite lead-ins that keep an artifact request imperative even when the
// sentence ends with a question mark ("can you draft a letter?").
var requestPrefixes = []string{
	"can you", "could you", "would you", "will you", "please", "pls",
	"help me", "i want to", "i'd like to", "i would like to", "i need to", "let's", "lets",
	"tolong", "bisa", "mohon", "saya mau", "saya ingin",
}

var articles = []string{"a ", "an ", "the ", "me a ", "me an ", "me the ", "me ", "my "}

var spaces = regexp.MustCompile(`\s+`)

// KeywordClassifier is the deterministic fallback used when the model is
// unavailable or answers with something unusable.
type KeywordClassifier struct{}

func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{}
}

func (k *KeywordClassifier) Classify(message string, cctx ClassifyContext) Intent {
	text := normalize(message)

	if rest, ok := politeRequest(text); ok {
		if artifact, ok := artifactRequest(rest); ok {
			return workflowIntent(artifact)
		}
	}
	if LooksLikeQuestion(message) {
		return Intent{Kind: KindQuestion, Entities: map[string]string{"topic": strings.TrimSpace(message)}, Confidence: KeywordConfidence, Source: SourceKeyword}
	}
	if artifact, ok := artifactRequest(text); ok {
		return workflowIntent(artifact)
	}
	if cctx.ActiveWorkflow {
		return Intent{Kind: KindContinue, Confidence: KeywordConfidence, Source: SourceKeyword}
	}
	return Intent{Kind: KindQuestion, Entities: map[string]string{"topic": strings.TrimSpace(message)}, Confidence: KeywordNoMatchScore, Source: SourceKeyword}
}

// LooksLikeQuestion reports whether the message is phrased as a question:
// a trailing question mark or a leading interrogative word.
func LooksLikeQuestion(message string) bool {
	text := normalize(message)
	if text == "" {
		return false
	}
	if strings.HasSuffix(text, "?") {
		return true
	}
	for _, w := range interrogatives {
		if hasWordPrefix(text, w) {
			return true
		}
	}
	return false
}

func workflowIntent(artifact string) Intent {
	entities := map[string]string{}
	if artifact != "" {
		entities["artifact"] = artifact
	}
	return Intent{Kind: KindWorkflow, Entities: entities, Confidence: KeywordConfidence, Source: SourceKeyword}
}

func politeRequest(text string) (string, bool) {
	matched := false
	for {
		stripped := false
		for _, p := range requestPrefixes {
			if hasWordPrefix(text, p) {
				text = strings.TrimLeft(strings.TrimSpace(text[len(p):]), ",")
				text = strings.TrimSpace(text)
				matched, stripped = true, true
			}
		}
		if !stripped {
			return text, matched
		}
	}
}

func artifactRequest(text string) (string, bool) {
	for _, v := range artifactVerbs {
		if hasWordPrefix(text, v) {
			rest := strings.TrimSpace(text[len(v):])
			for _, a := range articles {
				if strings.HasPrefix(rest, a) {
					rest = strings.TrimSpace(rest[len(a):])
					break
				}
			}
			return strings.TrimRight(rest, ".!?"), true
		}
	}
	return "", false
}

func hasWordPrefix(text, word string) bool {
	if !strings.HasPrefix(text, word) {
		return false
	}
	if len(text) == len(word) {
		return true
	}
	switch text[len(word)] {
	case ' ', ',', '?', '!', '.', ':':
		return true
	}
	return false
}

func normalize(s string) string {
	return spaces.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), " ")
}
