// Package integrity decides whether a listing's content may be published:
// the sentiment classification and every image moderation finding are
// evaluated as one bundle, and a single flagged image or a non-positive
// sentiment fails the whole bundle.
package integrity

import (
	"errors"
	"fmt"
)

type Result string

const (
	ResultPass Result = "PASS"
	ResultFail Result = "FAIL"
)

const sentimentPositive = "POSITIVE"

// ErrMissingSentiment marks a malformed bundle. It is an internal error, not
// a FAIL verdict: bad upstream data must not masquerade as a failed check.
var ErrMissingSentiment = errors.New("moderation bundle has no content sentiment")

type ModerationLabel struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

type ImageModeration struct {
	ImageKey string            `json:"image_key,omitempty"`
	Labels   []ModerationLabel `json:"labels"`
}

type SentimentScore struct {
	Positive float64 `json:"positive"`
	Negative float64 `json:"negative"`
	Neutral  float64 `json:"neutral"`
	Mixed    float64 `json:"mixed"`
}

type SentimentResult struct {
	Sentiment      string         `json:"sentiment"`
	SentimentScore SentimentScore `json:"sentiment_score"`
}

type ModerationBundle struct {
	ContentSentiment *SentimentResult  `json:"content_sentiment"`
	ImageModerations []ImageModeration `json:"image_moderations"`
}

type Evaluation struct {
	Result Result `json:"validation_result"`
	Reason string `json:"reason,omitempty"`
}

// Evaluate applies the publication gate in fixed precedence: non-positive
// sentiment fails first, then the first image carrying any flagged label, in
// input order.
func Evaluate(bundle ModerationBundle) (Evaluation, error) {
	if bundle.ContentSentiment == nil {
		return Evaluation{}, ErrMissingSentiment
	}
	if bundle.ContentSentiment.Sentiment != sentimentPositive {
		return Evaluation{
			Result: ResultFail,
			Reason: fmt.Sprintf("content sentiment is %s", bundle.ContentSentiment.Sentiment),
		}, nil
	}
	for i, img := range bundle.ImageModerations {
		if len(img.Labels) == 0 {
			continue
		}
		return Evaluation{
			Result: ResultFail,
			Reason: fmt.Sprintf("image %d flagged with %d moderation label(s)", i, len(img.Labels)),
		}, nil
	}
	return Evaluation{Result: ResultPass}, nil
}
