package turnkey

import (
	"fmt"
)

// ActivityStatus is the lifecycle state of a Turnkey activity.
type ActivityStatus string

const (
	ActivityStatusCreated         ActivityStatus = "ACTIVITY_STATUS_CREATED"
	ActivityStatusPending         ActivityStatus = "ACTIVITY_STATUS_PENDING"
	ActivityStatusCompleted       ActivityStatus = "ACTIVITY_STATUS_COMPLETED"
	ActivityStatusFailed          ActivityStatus = "ACTIVITY_STATUS_FAILED"
	ActivityStatusConsensusNeeded ActivityStatus = "ACTIVITY_STATUS_CONSENSUS_NEEDED"
	ActivityStatusRejected        ActivityStatus = "ACTIVITY_STATUS_REJECTED"
)

const (
	activityTypeSignRawPayload = "ACTIVITY_TYPE_SIGN_RAW_PAYLOAD"

	PayloadEncodingHexadecimal = "PAYLOAD_ENCODING_HEXADECIMAL"
	HashFunctionNoOp           = "HASH_FUNCTION_NO_OP"

	CurveSecp256k1        = "CURVE_SECP256K1"
	AddressFormatEthereum = "ADDRESS_FORMAT_ETHEREUM"
)

const (
	pathSignRawPayload = "/public/v1/submit/sign_raw_payload"
	pathGetActivity    = "/public/v1/query/get_activity"
	pathGetPrivateKey  = "/public/v1/query/get_private_key"
)

// SignRawPayloadParams are the parameters of a sign_raw_payload activity.
type SignRawPayloadParams struct {
	PrivateKeyID string `json:"privateKeyId"`
	Payload      string `json:"payload"`
	Encoding     string `json:"encoding"`
	HashFunction string `json:"hashFunction"`
}

// SignRawPayloadResult holds the hex-encoded signature of a completed sign_raw_payload activity.
type SignRawPayloadResult struct {
	R string `json:"r"`
	S string `json:"s"`
	V string `json:"v"`
}

// ActivityResult is the union of activity results. Only the fields this package submits are decoded.
type ActivityResult struct {
	SignRawPayloadResult *SignRawPayloadResult `json:"signRawPayloadResult,omitempty"`
}

// ActivityFailure describes why an activity failed.
type ActivityFailure struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Activity is a Turnkey activity.
type Activity struct {
	ID             string           `json:"id"`
	OrganizationID string           `json:"organizationId"`
	Status         ActivityStatus   `json:"status"`
	Type           string           `json:"type"`
	Result         *ActivityResult  `json:"result,omitempty"`
	Failure        *ActivityFailure `json:"failure,omitempty"`
}

// Address is an address derived from a Turnkey private key.
type Address struct {
	Format  string `json:"format"`
	Address string `json:"address"`
}

// PrivateKey describes a key held by Turnkey.
type PrivateKey struct {
	PrivateKeyID   string    `json:"privateKeyId"`
	PrivateKeyName string    `json:"privateKeyName"`
	PublicKey      string    `json:"publicKey"`
	Curve          string    `json:"curve"`
	Addresses      []Address `json:"addresses"`
}

type activityRequest struct {
	Type           string      `json:"type"`
	OrganizationID string      `json:"organizationId"`
	TimestampMs    string      `json:"timestampMs"`
	Parameters     interface{} `json:"parameters"`
}

type activityResponse struct {
	Activity Activity `json:"activity"`
}

type getActivityRequest struct {
	OrganizationID string `json:"organizationId"`
	ActivityID     string `json:"activityId"`
}

type getPrivateKeyRequest struct {
	OrganizationID string `json:"organizationId"`
	PrivateKeyID   string `json:"privateKeyId"`
}

type getPrivateKeyResponse struct {
	PrivateKey PrivateKey `json:"privateKey"`
}

// APIError is a non-2xx response from the Turnkey API.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       int    `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("turnkey API error (http %d, code %d): %s", e.StatusCode, e.Code, e.Message)
}

// ActivityError is returned for activities that ended in a failed or rejected state.
type ActivityError struct {
	ActivityID string
	Status     ActivityStatus
	Failure    *ActivityFailure
}

func (e *ActivityError) Error() string {
	if e.Failure != nil {
		return fmt.Sprintf("activity %s %s: %s", e.ActivityID, e.Status, e.Failure.Message)
	}

	return fmt.Sprintf("activity %s %s", e.ActivityID, e.Status)
}
