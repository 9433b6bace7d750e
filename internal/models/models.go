package models

import "time"

// ArrestRecord represents one booking entry from the arrests API
type ArrestRecord struct {
	Identifier  string `json:"identifier"`
	Image       string `json:"image,omitempty"`
	GivenName   string `json:"givenName"`
	MiddleName  string `json:"middleName,omitempty"`
	SurName     string `json:"surName"`
	BookingDate string `json:"bookingDate"`
	BirthDate   string `json:"birthDate"`
}

// PostedBatch is the ordered set of identifiers published in one run
type PostedBatch struct {
	ids   []string
	index map[string]struct{}
}

// NewPostedBatch builds a batch from ids, dropping blanks and duplicates
func NewPostedBatch(ids ...string) PostedBatch {
	var b PostedBatch
	for _, id := range ids {
		b.Add(id)
	}
	return b
}

// Add appends id unless it is empty or already present
func (b *PostedBatch) Add(id string) bool {
	if id == "" {
		return false
	}
	if b.index == nil {
		b.index = make(map[string]struct{})
	}
	if _, ok := b.index[id]; ok {
		return false
	}
	b.index[id] = struct{}{}
	b.ids = append(b.ids, id)
	return true
}

// Contains reports whether id is part of the batch
func (b PostedBatch) Contains(id string) bool {
	_, ok := b.index[id]
	return ok
}

// IDs returns a copy of the identifiers in insertion order
func (b PostedBatch) IDs() []string {
	out := make([]string, len(b.ids))
	copy(out, b.ids)
	return out
}

// Len returns the number of identifiers
func (b PostedBatch) Len() int {
	return len(b.ids)
}

// PublishResult is the outcome of publishing a single record
type PublishResult struct {
	Identifier string `json:"identifier"`
	PhotoID    string `json:"photo_id,omitempty"`
	PostID     string `json:"post_id,omitempty"`
	Err        error  `json:"-"`
}

// Success reports whether the record reached the page feed
func (r PublishResult) Success() bool {
	return r.Err == nil
}

// Run status values
const (
	StatusNeverRun = "never_run"
	StatusRunning  = "running"
	StatusSuccess  = "success"
	StatusFailure  = "failure"
)

// RunStatus tracks the outcome of the most recent poster run
type RunStatus struct {
	RunID             string    `json:"run_id" bson:"run_id" dynamodbav:"run_id"`
	LastAttempt       time.Time `json:"last_attempt" bson:"last_attempt" dynamodbav:"last_attempt"`
	LastSuccessfulRun time.Time `json:"last_successful_run" bson:"last_successful_run" dynamodbav:"last_successful_run"`
	Status            string    `json:"status" bson:"status" dynamodbav:"status"`
	ErrorMessage      string    `json:"error_message,omitempty" bson:"error_message,omitempty" dynamodbav:"error_message,omitempty"`
	Fetched           int       `json:"fetched" bson:"fetched" dynamodbav:"fetched"`
	Eligible          int       `json:"eligible" bson:"eligible" dynamodbav:"eligible"`
	Published         int       `json:"published" bson:"published" dynamodbav:"published"`
	Failed            int       `json:"failed" bson:"failed" dynamodbav:"failed"`
}

// RunReport summarises one orchestrated run
type RunReport struct {
	RunID     string
	Batch     PostedBatch
	Results   []PublishResult
	Fetched   int
	Eligible  int
	Persisted bool
}

// Published counts successful results
func (r RunReport) Published() int {
	n := 0
	for _, res := range r.Results {
		if res.Success() {
			n++
		}
	}
	return n
}

// Failed counts unsuccessful results
func (r RunReport) Failed() int {
	return len(r.Results) - r.Published()
}
