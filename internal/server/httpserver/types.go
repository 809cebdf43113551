package httpserver

import "time"

// Response is the JSON envelope of every non-metrics response.
type Response struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data,omitempty"`
}

// Response codes.
const (
	CodeOK               = "OK"
	CodePartial          = "PARTIAL"
	CodeUnknownComponent = "UNKNOWN_COMPONENT"
	CodeSaveFailed       = "SAVE_FAILED"
	CodeNotReady         = "NOT_READY"
	CodeInternal         = "INTERNAL"
)

func newResponse(requestID, code, message string, data any) *Response {
	return &Response{
		Code:      code,
		Message:   message,
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	}
}

// SaveResult is the data of POST /checkpoint.
type SaveResult struct {
	CycleID    string            `json:"cycle_id,omitempty" yaml:"cycle_id,omitempty"`
	DurationMS int64             `json:"duration_ms" yaml:"duration_ms"`
	Saved      map[string]string `json:"saved" yaml:"saved"`
	Failed     map[string]string `json:"failed,omitempty" yaml:"failed,omitempty"`
}

// CheckpointInfo is one entry of GET /checkpoints.
type CheckpointInfo struct {
	Component string     `json:"component" yaml:"component"`
	Latest    string     `json:"latest,omitempty" yaml:"latest,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	Size      int64      `json:"size" yaml:"size" table:"bytes"`
	Error     string     `json:"error,omitempty" yaml:"error,omitempty"`
}
