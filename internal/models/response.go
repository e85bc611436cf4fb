package models

// Response is the envelope for endpoints without a fixed wire shape.
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func SuccessResponse(data interface{}, message string) Response {
	return Response{
		Success: true,
		Message: message,
		Data:    data,
	}
}

// Error bodies use "message" so clients can show it next to the field or
// upgrade prompt directly.
func ErrorResponse(message string) Response {
	return Response{
		Success: false,
		Message: message,
	}
}
