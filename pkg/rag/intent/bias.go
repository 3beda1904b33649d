package intent

import "strings"

// ApplyContinuationBias resolves a raw intent against the conversation
// state. While a workflow is in progress the message is read as input for
// the active step, unless it is a confidently classified question that is
// also phrased as one. Without an active workflow, continue_workflow has
// nothing to continue and falls back to question.
func ApplyContinuationBias(in Intent, message string, cctx ClassifyContext) Intent {
	out := in
	if !cctx.ActiveWorkflow {
		if out.Kind == KindContinue {
			out.Kind = KindQuestion
		}
		return out
	}

	if out.Kind == KindQuestion && out.Confidence >= cctx.StrongMatch && LooksLikeQuestion(message) {
		return out
	}
	out.Kind = KindContinue
	return out
}

// ApplyConfidenceFloor turns a weak or impossible workflow intent into a
// question. Entering a workflow by mistake costs the user more than an
// extra answer.
func ApplyConfidenceFloor(in Intent, cctx ClassifyContext) Intent {
	out := in
	if out.Kind != KindWorkflow {
		return out
	}
	if !cctx.HasWorkflow || out.Confidence < cctx.ConfidenceFloor {
		out.Kind = KindQuestion
	}
	return out
}

// ApplyQuestionPhrasing turns a workflow intent into a question when the
// message is phrased as one. A polite lead-in followed by an artifact verb
// ("could you draft a memo?") is still a request and keeps the workflow.
func ApplyQuestionPhrasing(in Intent, message string) Intent {
	out := in
	if out.Kind != KindWorkflow || !LooksLikeQuestion(message) {
		return out
	}
	if rest, ok := politeRequest(normalize(message)); ok {
		if _, ok := artifactRequest(rest); ok {
			return out
		}
	}
	out.Kind = KindQuestion
	if _, ok := out.Entities["topic"]; !ok {
		entities := make(map[string]string, len(out.Entities)+1)
		for k, v := range out.Entities {
			entities[k] = v
		}
		entities["topic"] = strings.TrimSpace(message)
		out.Entities = entities
	}
	return out
}
