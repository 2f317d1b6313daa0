package quiz

import (
	"context"
	"fmt"
	"time"

	"github.com/mohammad-safakhou/quizchain/config"
)

// DefaultSubmitTimeout bounds a single answer submission.
const DefaultSubmitTimeout = 30 * time.Second

// Poster sends a JSON body and decodes the JSON reply.
type Poster interface {
	PostJSON(ctx context.Context, url string, body any, out any, timeout time.Duration) error
}

type submission struct {
	Email  string `json:"email"`
	Secret string `json:"secret"`
	URL    string `json:"url"`
	Answer Answer `json:"answer"`
}

// Submitter posts answers on behalf of the configured student.
type Submitter struct {
	Client      Poster
	Credentials config.Credentials
	Timeout     time.Duration
}

// Submit posts the answer for quizURL to submitURL. Missing response fields
// decode to their zero values.
func (s *Submitter) Submit(ctx context.Context, submitURL, quizURL string, answer Answer) (SubmissionResult, error) {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultSubmitTimeout
	}
	body := submission{
		Email:  s.Credentials.Email,
		Secret: s.Credentials.Secret,
		URL:    quizURL,
		Answer: answer,
	}
	var res SubmissionResult
	if err := s.Client.PostJSON(ctx, submitURL, body, &res, timeout); err != nil {
		return SubmissionResult{}, fmt.Errorf("post %s: %w", submitURL, err)
	}
	return res, nil
}
