package types

// Direction of a boarding event as reported by the kiosk.
const (
	DirectionBoard  = "board"
	DirectionAlight = "alight"
)

// Decision outcomes and reasons recorded on every event.
const (
	DecisionAccepted = "accepted"
	DecisionRejected = "rejected"

	ReasonFaceMatch      = "face_match"
	ReasonFaceMismatch   = "face_mismatch"
	ReasonNoFaceDetected = "no_face_detected"
	ReasonDeviceInactive = "device_inactive"
)

type LogEventRequest struct {
	StudentRef string   `json:"student_ref"`
	FaceScore  *float64 `json:"face_score"` // nil when the kiosk could not read a face
	Direction  string   `json:"direction"`
	Timestamp  string   `json:"timestamp,omitempty"` // optional device timestamp
}

type LogEventResponse struct {
	OK         bool   `json:"ok"`
	EventID    string `json:"event_id"`
	Decision   string `json:"decision"`
	Reason     string `json:"reason"`
	ServerTime string `json:"server_time"`
}

// ChainVerifyResponse reports the result of walking the boarding-event
// hash chain.  BrokenAt is the id of the first event whose chain hash
// does not match, empty when the chain is intact.
type ChainVerifyResponse struct {
	OK       bool   `json:"ok"`
	Checked  int    `json:"checked"`
	BrokenAt string `json:"broken_at,omitempty"`
}
