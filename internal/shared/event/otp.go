package event

import "time"

const (
	OTPIssuedDestination    string = "otp_issued"
	OTPValidatedDestination string = "otp_validated"
	OTPResentDestination    string = "otp_resent"
	OTPSweptDestination     string = "otp_swept"
)

// Lifecycle messages never carry the code itself.

type OTPIssuedMessage struct {
	CodeID      int64     `json:"code_id"`
	Subject     string    `json:"subject"`
	Channel     string    `json:"channel"`
	OperationID string    `json:"operation_id,omitempty"`
	Delivered   bool      `json:"delivered"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type OTPValidatedMessage struct {
	Subject     string `json:"subject"`
	OperationID string `json:"operation_id,omitempty"`
	Valid       bool   `json:"valid"`
	Reason      string `json:"reason,omitempty"`
}

type OTPResentMessage struct {
	PriorCodeID int64  `json:"prior_code_id"`
	CodeID      int64  `json:"code_id"`
	Subject     string `json:"subject"`
	OperationID string `json:"operation_id"`
	Delivered   bool   `json:"delivered"`
}

type OTPSweptMessage struct {
	Count int64     `json:"count"`
	At    time.Time `json:"at"`
}
