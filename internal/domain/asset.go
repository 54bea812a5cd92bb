package domain

import "time"

type AssetType string

const AssetTypeEmail AssetType = "email"

type AssetStatus string

const (
	AssetStatusPending    AssetStatus = "Pending"
	AssetStatusVerified   AssetStatus = "Verified"
	AssetStatusUnverified AssetStatus = "Unverified"
	AssetStatusFailed     AssetStatus = "Failed"
)

// AssetOperation tags which flow an asset was created for.
type AssetOperation string

const (
	OperationRegistration AssetOperation = "registration"
	OperationLogin        AssetOperation = "login"
)

const LinkedEntityUser = "User"

// LinkedEntity is the principal an asset was permanently attached to.
type LinkedEntity struct {
	Type string `json:"type" dynamodbav:"type"`
	ID   string `json:"id" dynamodbav:"id"`
}

// AssetData is the type-specific payload. SecretHash never leaves the service.
type AssetData struct {
	Email      string         `json:"email,omitempty" dynamodbav:"email,omitempty"`
	Operation  AssetOperation `json:"operation,omitempty" dynamodbav:"operation,omitempty"`
	SecretHash string         `json:"-" dynamodbav:"secret_hash,omitempty"`
}

// Asset is one verifiable claim about an identifying attribute.
// PK: asset_id. GSIs: submit_id-index, claim_id-index, key-index.
type Asset struct {
	AssetID      string        `json:"id" dynamodbav:"asset_id"`
	Type         AssetType     `json:"type" dynamodbav:"type"`
	Key          string        `json:"key" dynamodbav:"key"`
	Status       AssetStatus   `json:"status" dynamodbav:"status"`
	Data         AssetData     `json:"data" dynamodbav:"data"`
	SubmitID     string        `json:"submit_id" dynamodbav:"submit_id"`
	ExpiresAt    time.Time     `json:"expires_at" dynamodbav:"expires_at,unixtime"`
	ClaimID      string        `json:"claim_id,omitempty" dynamodbav:"claim_id,omitempty"`
	LinkedEntity *LinkedEntity `json:"linked_entity,omitempty" dynamodbav:"linked_entity,omitempty"`
	UsedAt       *time.Time    `json:"used_at,omitempty" dynamodbav:"used_at,omitempty"`
	StatusReason string        `json:"status_reason,omitempty" dynamodbav:"status_reason,omitempty"`
	CreatedAt    time.Time     `json:"created" dynamodbav:"created_at"`
	UpdatedAt    time.Time     `json:"updated" dynamodbav:"updated_at"`
}

// AggregatedAsset is an asset plus flags derived from every record sharing its key.
type AggregatedAsset struct {
	Asset
	IsLinked  bool
	IsExpired bool
	IsUsed    bool
}

// Aggregate derives the read-time view of target. siblings are all records
// with the same key; target itself may or may not be among them.
func Aggregate(target Asset, siblings []Asset, now time.Time) AggregatedAsset {
	agg := AggregatedAsset{
		Asset:     target,
		IsExpired: !now.Before(target.ExpiresAt),
		IsUsed:    target.UsedAt != nil,
		IsLinked:  target.LinkedEntity != nil,
	}
	for i := range siblings {
		if siblings[i].LinkedEntity != nil {
			agg.IsLinked = true
			break
		}
	}
	return agg
}

// AssetView is the status-shaped projection returned to clients.
type AssetView struct {
	ClaimID      string      `json:"claimId"`
	Status       AssetStatus `json:"status"`
	IsExpired    bool        `json:"isExpired"`
	Data         *AssetData  `json:"data,omitempty"`
	IsLinked     *bool       `json:"isLinked,omitempty"`
	IsUsed       *bool       `json:"isUsed,omitempty"`
	StatusReason string      `json:"statusReason,omitempty"`
}

// CreateAssetRequest carries any registered type; the ledger's capability
// table decides which types are supported.
type CreateAssetRequest struct {
	Type AssetType `json:"type" validate:"required"`
	Data AssetData `json:"data"`
}

type VerifyAssetRequest struct {
	Code string `json:"code"`
}

type CreateAssetResult struct {
	SubmitID string `json:"submitId"`
	Secret   string `json:"otp,omitempty"`
}

type VerifyAssetResult struct {
	ClaimID string `json:"claimId"`
}
