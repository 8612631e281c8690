package publisher

import "fmt"

// Phase is a state of a single publish attempt.
type Phase string

const (
	PhaseInit         Phase = "INIT"
	PhaseUploading    Phase = "UPLOADING"
	PhaseUploaded     Phase = "UPLOADED"
	PhaseUploadFailed Phase = "UPLOAD_FAILED"
	PhaseCreatingPost Phase = "CREATING_POST"
	PhasePublished    Phase = "PUBLISHED"
	PhasePostFailed   Phase = "POST_FAILED"
)

var transitions = map[Phase][]Phase{
	PhaseInit:         {PhaseUploading, PhaseUploadFailed},
	PhaseUploading:    {PhaseUploaded, PhaseUploadFailed},
	PhaseUploaded:     {PhaseCreatingPost},
	PhaseCreatingPost: {PhasePublished, PhasePostFailed},
}

// Terminal reports whether no further transition is possible.
func (p Phase) Terminal() bool { return len(transitions[p]) == 0 }

type attempt struct {
	draftID string
	phase   Phase
	observe func(draftID string, phase Phase)
}

// to moves the attempt forward. An illegal move is a programming error.
func (a *attempt) to(next Phase) {
	for _, allowed := range transitions[a.phase] {
		if allowed == next {
			a.phase = next
			if a.observe != nil {
				a.observe(a.draftID, next)
			}
			return
		}
	}
	panic(fmt.Sprintf("publisher: illegal phase transition %s -> %s", a.phase, next))
}
