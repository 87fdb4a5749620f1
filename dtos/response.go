package dtos

// Envelope is the uniform result shape for catalogue endpoints: either
// {"success": true, "data": ...} or {"success": false, "error": "..."}.
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func OK(data interface{}) Envelope {
	return Envelope{Success: true, Data: data}
}

func Fail(msg string) Envelope {
	return Envelope{Success: false, Error: msg}
}
