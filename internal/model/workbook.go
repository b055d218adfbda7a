package model

import "time"

// Status is the lifecycle state of a workbook instance.  Values are stored
// verbatim in the instances.status column.
type Status string

const (
    StatusAssigned   Status = "assigned"
    StatusInProgress Status = "in_progress"
    StatusCompleted  Status = "completed"
    StatusSubmitted  Status = "submitted"
    StatusReviewed   Status = "reviewed"
)

// Valid reports whether s is one of the five lifecycle values.
func (s Status) Valid() bool {
    switch s {
    case StatusAssigned, StatusInProgress, StatusCompleted, StatusSubmitted, StatusReviewed:
        return true
    }
    return false
}

// Frozen reports whether answers on an instance in this state are read-only.
func (s Status) Frozen() bool {
    return s == StatusSubmitted || s == StatusReviewed
}

// Question is a single prompt in a workbook.
type Question struct {
    Text string `json:"text"`
}

// Answer pairs a question copied from the template with the user's reply.
type Answer struct {
    Question string `json:"question"`
    Answer   string `json:"answer"`
}

// WorkbookContent is the part of a workbook shared by templates and
// instances.  Instances copy it from their template at assignment time.
type WorkbookContent struct {
    Title       string     `json:"title"`
    Description string     `json:"description"`
    Questions   []Question `json:"questions"`
}

// Template is an admin-authored workbook definition.  Templates are never
// assigned directly; each assignment creates an Instance.
//
// Fields:
//  ID        – templates.id (24 hex chars).
//  Content   – templates.title, templates.description, templates.questions (JSON).
//  CreatedAt – templates.created_at.
//  UpdatedAt – templates.updated_at.
type Template struct {
    ID string `json:"id"`
    WorkbookContent
    CreatedAt time.Time `json:"createdAt"`
    UpdatedAt time.Time `json:"updatedAt"`
}

// BlankAnswers returns one empty answer per template question, in order.
func (t Template) BlankAnswers() []Answer {
    out := make([]Answer, len(t.Questions))
    for i, q := range t.Questions {
        out[i] = Answer{Question: q.Text}
    }
    return out
}

// Instance is a user-owned copy of a template plus answers and status.  The
// owning user is the only writer of Answers; Status is derived from them
// except for the submitted and reviewed states.
type Instance struct {
    ID            string     `json:"id"`             // instances.id
    TemplateID    string     `json:"templateId"`     // instances.template_id
    AssignedTo    string     `json:"assignedTo"`     // instances.assigned_to
    Title         string     `json:"title"`          // instances.title
    Description   string     `json:"description"`    // instances.description
    Answers       []Answer   `json:"answers"`        // instances.answers (JSON)
    Status        Status     `json:"status"`         // instances.status
    ShareableLink string     `json:"shareableLink"`  // instances.shareable_link
    Feedback      string     `json:"feedback"`       // instances.feedback
    SubmittedAt   *time.Time `json:"submittedAt"`    // instances.submitted_at (nullable)
    ReviewedAt    *time.Time `json:"reviewedAt"`     // instances.reviewed_at (nullable)
    CreatedAt     time.Time  `json:"createdAt"`      // instances.created_at
    UpdatedAt     time.Time  `json:"updatedAt"`      // instances.updated_at
}

// AnsweredCount returns how many answers contain non-blank text.
func AnsweredCount(answers []Answer) int {
    n := 0
    for _, a := range answers {
        if !isBlank(a.Answer) {
            n++
        }
    }
    return n
}

func isBlank(s string) bool {
    for _, r := range s {
        switch r {
        case ' ', '\t', '\n', '\r', '\v', '\f':
        default:
            return false
        }
    }
    return true
}
