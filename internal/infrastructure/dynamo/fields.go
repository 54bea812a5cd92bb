package dynamo

// DynamoDB attribute and index names shared by the repos and Bootstrap.
const (
	fieldAssetID      = "asset_id"
	fieldUserID       = "user_id"
	fieldEmail        = "email"
	fieldKey          = "key"
	fieldStatus       = "status"
	fieldSubmitID     = "submit_id"
	fieldClaimID      = "claim_id"
	fieldExpiresAt    = "expires_at"
	fieldLinkedEntity = "linked_entity"
	fieldUsedAt       = "used_at"
	fieldUpdatedAt    = "updated_at"
	fieldOwnerID      = "owner_id"

	indexSubmitID = "submit_id-index"
	indexClaimID  = "claim_id-index"
	indexKey      = "key-index"
	indexEmail    = "email-index"

	// emailLockPrefix marks the sentinel item that reserves an email in the
	// users table. Sentinels carry no email attribute, so they stay out of
	// email-index.
	emailLockPrefix = "email#"
)
