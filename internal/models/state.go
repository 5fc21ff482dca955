package models

// ConversationState is the single mutable entity for one request. It lives
// for one workflow run, is mutated additively by each node, and is discarded
// when the run terminates.
//
// Messages is append-only and keeps causal order. Completed is maintained
// transactionally with every specialist append so completion never has to be
// re-derived by scanning message authors.
type ConversationState struct {
	Messages     []AgentMessage  `json:"messages"`
	WorkflowType WorkflowType    `json:"workflow_type"`
	TeamMembers  []string        `json:"team_members"`
	Next         string          `json:"next"`
	UploadedFiles []UploadedFile `json:"uploaded_files,omitempty"`

	Completed map[string]bool `json:"completed"`

	// Per-domain analysis slots, each written at most once by its owner.
	CybersecurityAnalysis *DomainAnalysis   `json:"cybersecurity_analysis,omitempty"`
	RegulatoryAnalysis    *DomainAnalysis   `json:"regulatory_analysis,omitempty"`
	GapAnalysis           *GapAnalysis      `json:"gap_analysis,omitempty"`
	DocumentMetadata      *DocumentMetadata `json:"document_metadata,omitempty"`

	// FinalResponse, once set, is never cleared or overwritten; its presence
	// is itself a termination signal.
	FinalResponse string `json:"final_response,omitempty"`

	// Citations accumulated from specialist turns, in emission order.
	Citations []Citation `json:"citations,omitempty"`
}

// NewConversationState seeds state for one request with the human message.
func NewConversationState(userInput string, files []UploadedFile, wt WorkflowType) *ConversationState {
	return &ConversationState{
		Messages:      []AgentMessage{{Content: userInput}},
		WorkflowType:  wt,
		TeamMembers:   TeamFor(wt),
		Next:          AgentSupervisor,
		UploadedFiles: files,
		Completed:     make(map[string]bool),
	}
}

// AppendSpecialist records a specialist turn: message append, completion
// marking, and citation accumulation happen together.
func (s *ConversationState) AppendSpecialist(author, content string, citations []Citation) {
	s.Messages = append(s.Messages, AgentMessage{Content: content, Author: author})
	if s.Completed == nil {
		s.Completed = make(map[string]bool)
	}
	s.Completed[author] = true
	s.Citations = append(s.Citations, citations...)
}

// SpecialistMessageCount counts non-human, non-supervisor messages.
func (s *ConversationState) SpecialistMessageCount() int {
	n := 0
	for _, m := range s.Messages {
		if m.IsSpecialist() {
			n++
		}
	}
	return n
}

// AllCompleted reports whether every named specialist has run.
func (s *ConversationState) AllCompleted(required []string) bool {
	for _, name := range required {
		if !s.Completed[name] {
			return false
		}
	}
	return true
}

// SetFinalResponse writes the final response unless one is already present.
func (s *ConversationState) SetFinalResponse(text string) {
	if s.FinalResponse == "" {
		s.FinalResponse = text
	}
}

// IsMember reports whether name belongs to this request's team.
func (s *ConversationState) IsMember(name string) bool {
	for _, m := range s.TeamMembers {
		if m == name {
			return true
		}
	}
	return false
}
