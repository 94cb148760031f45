package importer

// Status is the client-side state of a photo import.
type Status string

const (
	StatusIdle            Status = "idle"
	StatusUploading       Status = "uploading"
	StatusQueued          Status = "queued"
	StatusRecognizingText Status = "recognizing_text"
	StatusStructuring     Status = "structuring"
	StatusReady           Status = "ready"
	StatusFailed          Status = "failed"
)

// Terminal reports whether no further pipeline activity can move this status.
// Terminal states are only left through Reset or a new Start.
func (s Status) Terminal() bool {
	return s == StatusReady || s == StatusFailed
}

// phaseRank orders the server-driven pipeline phases. The uploading phase is
// client-local and precedes registration, so it has no rank here.
var phaseRank = map[Status]int{
	StatusQueued:          1,
	StatusRecognizingText: 2,
	StatusStructuring:     3,
	StatusReady:           4,
}

// fromWire maps a pipeline wire status onto the client state machine.
// ok is false for statuses this client does not know; those are ignored so
// newer pipelines stay compatible with older clients.
func fromWire(wire string) (status Status, ok bool) {
	switch wire {
	case "queued":
		return StatusQueued, true
	case "ocr":
		return StatusRecognizingText, true
	case "extracting":
		return StatusStructuring, true
	case "ready":
		return StatusReady, true
	case "failed":
		return StatusFailed, true
	}
	return "", false
}
