package api

const mutationBodyMaxSize = 64 * 1024 // 64 KiB

// Idempotency and sender session headers on mutation requests.
const (
	headerIdempotencyKey = "Idempotency-Key"
	headerSenderID       = "X-Sender-Id"
)

type reorderRequest struct {
	ToPosition *int `json:"toPosition"`
}

type broadcastResponse struct {
	Success bool   `json:"success,omitempty"`
	Error   string `json:"error,omitempty"`
}
