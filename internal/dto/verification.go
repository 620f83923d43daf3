package dto

import "time"

// IssuePassTokenRequest is the guard-app boundary payload. The client
// key is validated against a configured shared secret.
type IssuePassTokenRequest struct {
	PermissionID string    `json:"permission_id" validate:"required"`
	StudentID    string    `json:"student_id" validate:"required"`
	ExpiryDate   time.Time `json:"expiry_date" validate:"required"`
	ClientAPIKey string    `json:"api_key" validate:"required"`
}

// IssuePassTokenResponse returns the signed token and the URL the QR
// code encodes.
type IssuePassTokenResponse struct {
	Token           string `json:"token"`
	VerificationURL string `json:"verification_url"`
}

// VerifyPassResponse returns the pass facts for gate staff.
type VerifyPassResponse struct {
	PermissionID string    `json:"permission_id"`
	StudentID    string    `json:"student_id"`
	StudentName  string    `json:"student_name"`
	RollNumber   string    `json:"roll_number"`
	Department   string    `json:"department"`
	Category     string    `json:"category"`
	ValidFrom    time.Time `json:"valid_from"`
	ValidTo      time.Time `json:"valid_to"`
	FinalStatus  string    `json:"final_status"`
}
