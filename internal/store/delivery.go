package store

import (
    "crypto/sha256"
    "encoding/hex"
    "encoding/json"
    "time"
)

type WebhookDelivery struct {
    ID             string
    TenantID       string
    SubscriptionID string
    EventType      string
    URL            string
    Secret         string
    Payload        []byte
    Status         string
    Attempts       int
}

// DeliveryView is the admin listing of a delivery; secrets and payloads stay out.
type DeliveryView struct {
    ID            string     `json:"id"`
    EventType     string     `json:"eventType"`
    Status        string     `json:"status"`
    Attempts      int        `json:"attempts"`
    URL           string     `json:"url"`
    NextAttemptAt *time.Time `json:"nextAttemptAt,omitempty"`
    LastError     string     `json:"lastError,omitempty"`
    ResponseCode  int        `json:"responseCode,omitempty"`
}

const (
    DeliveryPending   = "pending"
    DeliveryRetry     = "retry"
    DeliveryDelivered = "delivered"
    DeliveryFailed    = "failed"
)

// dedupKey identifies a payload: its "id" field when present, else a short hash.
func dedupKey(payload []byte) string {
    var m map[string]any
    if json.Unmarshal(payload, &m) == nil {
        if v, ok := m["id"].(string); ok && v != "" { return v }
    }
    sum := sha256.Sum256(payload)
    return hex.EncodeToString(sum[:8])
}
