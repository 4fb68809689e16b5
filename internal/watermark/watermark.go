// Package watermark tags payloads with a marker. Nothing is embedded in the
// payload itself; the result only echoes what was asked for.
package watermark

// StatusOK is the status of every applied watermark.
const StatusOK = "ok"

// Result is the outcome of Apply.
type Result struct {
	Status  string `json:"status" doc:"Always ok"`
	Marker  string `json:"marker" doc:"Watermark marker as submitted"`
	Payload string `json:"payload" doc:"Payload as submitted"`
}

// Apply acknowledges a watermark request.
func Apply(marker, payload string) Result {
	return Result{
		Status:  StatusOK,
		Marker:  marker,
		Payload: payload,
	}
}
