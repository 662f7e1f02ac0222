package health

// Response is the envelope every JSON endpoint answers with.
type Response struct {
	Status string      `json:"status"`
	Error  string      `json:"error,omitempty"`
	Data   interface{} `json:"data,omitempty"`
}

const (
	statusOK       = "OK"
	statusError    = "Error"
	statusDegraded = "Degraded"
)

func ok(data interface{}) Response {
	return Response{Status: statusOK, Data: data}
}

func fail(msg string) Response {
	return Response{Status: statusError, Error: msg}
}

func degraded(data interface{}) Response {
	return Response{Status: statusDegraded, Data: data}
}
