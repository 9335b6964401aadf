package model

import "time"

// Purpose classifies why a passcode was issued.  A passcode issued for
// one purpose can never be consumed for another.
type Purpose string

const (
	PurposeLogin         Purpose = "LOGIN"
	PurposeChangeNumber  Purpose = "CHANGE_NUMBER"
	PurposeDeleteAccount Purpose = "DELETE_ACCOUNT"
)

// Valid reports whether p is a known purpose.
func (p Purpose) Valid() bool {
	switch p {
	case PurposeLogin, PurposeChangeNumber, PurposeDeleteAccount:
		return true
	}
	return false
}

// PasscodePayload carries the purpose-specific data that is applied once
// the passcode is consumed.  LOGIN carries nothing, CHANGE_NUMBER the new
// phone number and DELETE_ACCOUNT the deletion marker.
type PasscodePayload struct {
	Number string `json:"number,omitempty"`
	Delete bool   `json:"is_delete,omitempty"`
}

// PendingPasscode models one outstanding passcode in the
// `pending_passcodes` table (or the equivalent Redis key).  There is at
// most one live record per (AccountID, Purpose).
//
// Fields:
//  ID        – primary key (zero for Redis-backed records).
//  AccountID – owner of the passcode.
//  Purpose   – what the passcode unlocks.
//  Code      – the numeric passcode sent out of band.
//  Payload   – data applied after a successful consume.
//  Nonce     – unique per issuance; consume deletes by nonce so a
//              superseded record can never be deleted twice.
//  CreatedAt – issuance time, used for expiry checks.
type PendingPasscode struct {
	ID        uint64
	AccountID uint64
	Purpose   Purpose
	Code      string
	Payload   PasscodePayload
	Nonce     string
	CreatedAt time.Time
}

// OutOfBandMessage is handed to the delivery collaborator after a
// passcode has been persisted.
// ExpiresAt is when the passcode stops being accepted.
type OutOfBandMessage struct {
	ID          string
	AccountID   uint64
	Destination string
	Purpose     Purpose
	Code        string
	ExpiresAt   time.Time
}
