package quiz

import "encoding/json"

// MaxIterations bounds how many pages a single chain may visit.
const MaxIterations = 20

// questionExcerptLen is how much of the question a StepRecord keeps.
const questionExcerptLen = 200

// Link is an anchor found on a rendered quiz page.
type Link struct {
	Href  string `json:"href"`
	Label string `json:"text"`
}

// Page is the extracted content of one quiz URL.
type Page struct {
	URL       string `json:"url"`
	Question  string `json:"question"`
	HTML      string `json:"html"`
	Links     []Link `json:"links"`
	SubmitURL string `json:"submit_url,omitempty"`
}

// SubmissionResult is the decoded response of a submission endpoint. Missing
// fields decode to their zero value: not correct, no next URL, no reason.
type SubmissionResult struct {
	Correct bool    `json:"correct"`
	NextURL string  `json:"url,omitempty"`
	Reason  *string `json:"reason,omitempty"`
}

// StepRecord is one trace entry. Either Error is set, or the answer fields are.
type StepRecord struct {
	URL      string
	Question string
	Answer   Answer
	Correct  bool
	Reason   *string
	Error    string
}

// Failed reports whether the record describes a failed step.
func (r StepRecord) Failed() bool { return r.Error != "" }

type stepSuccessJSON struct {
	URL      string  `json:"url"`
	Question string  `json:"question"`
	Answer   Answer  `json:"answer"`
	Correct  bool    `json:"correct"`
	Reason   *string `json:"reason"`
}

type stepFailureJSON struct {
	URL   string `json:"url"`
	Error string `json:"error"`
}

func (r StepRecord) MarshalJSON() ([]byte, error) {
	if r.Failed() {
		return json.Marshal(stepFailureJSON{URL: r.URL, Error: r.Error})
	}
	return json.Marshal(stepSuccessJSON{
		URL:      r.URL,
		Question: r.Question,
		Answer:   r.Answer,
		Correct:  r.Correct,
		Reason:   r.Reason,
	})
}

func (r *StepRecord) UnmarshalJSON(b []byte) error {
	var probe struct {
		URL      string          `json:"url"`
		Question string          `json:"question"`
		Answer   json.RawMessage `json:"answer"`
		Correct  bool            `json:"correct"`
		Reason   *string         `json:"reason"`
		Error    string          `json:"error"`
	}
	if err := json.Unmarshal(b, &probe); err != nil {
		return err
	}
	*r = StepRecord{URL: probe.URL, Error: probe.Error}
	if probe.Error != "" {
		return nil
	}
	r.Question = probe.Question
	r.Correct = probe.Correct
	r.Reason = probe.Reason
	if len(probe.Answer) > 0 {
		if err := r.Answer.UnmarshalJSON(probe.Answer); err != nil {
			return err
		}
	}
	return nil
}

// ChainResult is returned once a chain terminates. TotalSolved counts the
// submitted steps; failed steps appear in Results only.
type ChainResult struct {
	TotalSolved int          `json:"total_solved"`
	Results     []StepRecord `json:"results"`
}

func newChainResult(trace []StepRecord) ChainResult {
	if trace == nil {
		trace = []StepRecord{}
	}
	solved := 0
	for _, r := range trace {
		if !r.Failed() {
			solved++
		}
	}
	return ChainResult{TotalSolved: solved, Results: trace}
}
