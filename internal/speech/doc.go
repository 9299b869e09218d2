// Package speech turns assistant text into audio.
//
// DetectLanguage picks the synthesis language from the share of CJK
// ideographs in the text. PlainText strips markdown so the synthesizer never
// reads out formatting characters. HTTPSynthesizer posts the prepared text to
// an external synthesis service and returns the audio bytes unchanged.
package speech
