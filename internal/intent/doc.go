// Package intent classifies a turn into an optional action and a response.
//
// Classification is an ordered list of Matchers; the first one that matches
// wins. An Extractor holds two chains. Direct matchers run on the user's text
// before any model call and short-circuit it:
//
//   - Bypass: "hello judges" gets a canned greeting.
//   - Proximity: a close-range start event gets a name-asking greeting.
//
// Post-model matchers run on the model's answer:
//
//   - Ready: the user's text contains a ready keyword.
//   - Legacy: the answer uses the ACTION:label|text grammar.
//   - Plain: everything else, verbatim.
package intent
