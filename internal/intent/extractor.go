// ABOUTME: Extractor runs ordered matcher chains for direct and post-model classification
// ABOUTME: Interactive and transport turns use different chains

package intent

// Extractor holds the two matcher chains of a turn.
type Extractor struct {
	direct    []Matcher
	postModel []Matcher
}

// NewExtractor builds an extractor. Plain is always appended to the
// post-model chain so classification after a model call never fails.
func NewExtractor(direct, postModel []Matcher) *Extractor {
	post := make([]Matcher, 0, len(postModel)+1)
	post = append(post, postModel...)
	post = append(post, Plain())
	return &Extractor{direct: direct, postModel: post}
}

// Interactive is the chain for WebSocket sessions: bypass before the model,
// then ready, legacy and plain after it.
func Interactive() *Extractor {
	return NewExtractor([]Matcher{Bypass()}, []Matcher{Ready(), Legacy()})
}

// Transport is the chain for transport-originated turns: bypass and
// proximity before the model, plain after it.
func Transport() *Extractor {
	return NewExtractor([]Matcher{Bypass(), Proximity()}, nil)
}

// Direct runs the pre-model matchers. A match means no model call is made.
func (e *Extractor) Direct(in Input) (Result, string, bool) {
	return first(e.direct, in)
}

// Classify runs the post-model matchers over the model's answer.
func (e *Extractor) Classify(in Input) (Result, string) {
	r, name, _ := first(e.postModel, in)
	return r, name
}

// Failed is the result of a turn whose model call failed.
func (e *Extractor) Failed() Result {
	return Result{Text: Apology}
}

func first(matchers []Matcher, in Input) (Result, string, bool) {
	for _, m := range matchers {
		if r, ok := m.Match(in); ok {
			return r, m.Name(), true
		}
	}
	return Result{}, "", false
}
