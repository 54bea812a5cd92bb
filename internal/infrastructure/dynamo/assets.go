package dynamo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-api-assets/internal/domain"
)

// maxTransactItems is the DynamoDB cap on actions in one TransactWriteItems call.
const maxTransactItems = 100

// AssetRepo provides typed DynamoDB operations for the assets table.
type AssetRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewAssetRepo(client *dynamodb.Client, tableName string) *AssetRepo {
	return &AssetRepo{client: client, tableName: tableName}
}

func (r *AssetRepo) Create(ctx context.Context, a *domain.Asset) error {
	item, err := attributevalue.MarshalMap(a)
	if err != nil {
		return fmt.Errorf("marshal asset: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(r.tableName),
		Item:                     item,
		ConditionExpression:      aws.String("attribute_not_exists(#id)"),
		ExpressionAttributeNames: map[string]string{"#id": fieldAssetID},
	})
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return fmt.Errorf("asset %s already exists: %w", a.AssetID, domain.ErrConflict)
	}
	return err
}

// FindPending returns the Pending, unexpired asset behind submitID.
func (r *AssetRepo) FindPending(ctx context.Context, submitID string, now time.Time) (*domain.Asset, error) {
	return retryIndexMiss(ctx, indexBackoff, func() (*domain.Asset, error) {
		return r.findPending(ctx, submitID, now)
	})
}

func (r *AssetRepo) findPending(ctx context.Context, submitID string, now time.Time) (*domain.Asset, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(indexSubmitID),
		KeyConditionExpression: aws.String("#sid = :sid"),
		FilterExpression:       aws.String("#st = :pending AND #exp > :now"),
		ExpressionAttributeNames: map[string]string{
			"#sid": fieldSubmitID,
			"#st":  fieldStatus,
			"#exp": fieldExpiresAt,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":sid":     strVal(submitID),
			":pending": strVal(string(domain.AssetStatusPending)),
			":now":     unixVal(now),
		},
	})
	if err != nil {
		return nil, err
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("pending asset %s: %w", submitID, domain.ErrNotFound)
	}
	var a domain.Asset
	if err := attributevalue.UnmarshalMap(out.Items[0], &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// MarkVerified flips a Pending asset to Verified and assigns claimID. The
// write only lands if the record is still Pending, unexpired and unclaimed;
// otherwise it reports zero records modified.
func (r *AssetRepo) MarkVerified(ctx context.Context, a *domain.Asset, claimID string, now time.Time) (int, error) {
	ue, err := buildUpdateExpr(map[string]interface{}{
		fieldStatus:    domain.AssetStatusVerified,
		fieldClaimID:   claimID,
		fieldUpdatedAt: now.UTC(),
	})
	if err != nil {
		return 0, err
	}
	ue = ue.withCondition(
		map[string]string{"#csid": fieldSubmitID, "#cst": fieldStatus, "#cexp": fieldExpiresAt, "#ccid": fieldClaimID},
		map[string]types.AttributeValue{
			":csid":    strVal(a.SubmitID),
			":pending": strVal(string(domain.AssetStatusPending)),
			":now":     unixVal(now),
		},
	)
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(fieldAssetID, a.AssetID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("#csid = :csid AND #cst = :pending AND #cexp > :now AND attribute_not_exists(#ccid)"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return 1, nil
}

// FindWithSameKeyCheck resolves each claim id and aggregates it against
// every record sharing its key. Unknown claim ids are skipped.
func (r *AssetRepo) FindWithSameKeyCheck(ctx context.Context, claimIDs []string, now time.Time) ([]domain.AggregatedAsset, error) {
	byKey := make(map[string][]domain.Asset)
	result := make([]domain.AggregatedAsset, 0, len(claimIDs))
	for _, cid := range claimIDs {
		target, err := r.findByClaimID(ctx, cid)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		siblings, ok := byKey[target.Key]
		if !ok {
			siblings, err = r.findByKey(ctx, target.Key)
			if err != nil {
				return nil, err
			}
			byKey[target.Key] = siblings
		}
		result = append(result, domain.Aggregate(*target, siblings, now))
	}
	return result, nil
}

// Link attaches entity to every asset in claimIDs. All records change or
// none do; the returned count is either len(claimIDs) or zero.
func (r *AssetRepo) Link(ctx context.Context, claimIDs []string, entity domain.LinkedEntity, now time.Time) (int, error) {
	return r.transact(ctx, claimIDs, func(a *domain.Asset) (types.TransactWriteItem, error) {
		return r.linkItem(a, &entity, now)
	})
}

// Use stamps usedAt on every asset in claimIDs with the same all-or-nothing rule as Link.
func (r *AssetRepo) Use(ctx context.Context, claimIDs []string, now time.Time) (int, error) {
	return r.transact(ctx, claimIDs, func(a *domain.Asset) (types.TransactWriteItem, error) {
		return r.linkItem(a, nil, now)
	})
}

func (r *AssetRepo) transact(ctx context.Context, claimIDs []string, build func(*domain.Asset) (types.TransactWriteItem, error)) (int, error) {
	if len(claimIDs) == 0 {
		return 0, nil
	}
	if len(claimIDs) > maxTransactItems {
		return 0, fmt.Errorf("too many claim ids (%d): %w", len(claimIDs), domain.ErrBadRequest)
	}
	items := make([]types.TransactWriteItem, 0, len(claimIDs))
	for _, cid := range claimIDs {
		a, err := r.findByClaimID(ctx, cid)
		if errors.Is(err, domain.ErrNotFound) {
			return 0, nil
		}
		if err != nil {
			return 0, err
		}
		item, err := build(a)
		if err != nil {
			return 0, err
		}
		items = append(items, item)
	}
	_, err := r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	var tce *types.TransactionCanceledException
	if errors.As(err, &tce) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

// linkItem builds the conditional update for one asset. A nil entity only
// stamps used_at. Either way the record must be Verified, unlinked and unused.
func (r *AssetRepo) linkItem(a *domain.Asset, entity *domain.LinkedEntity, now time.Time) (types.TransactWriteItem, error) {
	updates := map[string]interface{}{
		fieldUsedAt:    now.UTC(),
		fieldUpdatedAt: now.UTC(),
	}
	if entity != nil {
		updates[fieldLinkedEntity] = entity
	}
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return types.TransactWriteItem{}, err
	}
	ue = ue.withCondition(
		map[string]string{"#ccid": fieldClaimID, "#cst": fieldStatus, "#cle": fieldLinkedEntity, "#cused": fieldUsedAt},
		map[string]types.AttributeValue{
			":ccid":     strVal(a.ClaimID),
			":verified": strVal(string(domain.AssetStatusVerified)),
		},
	)
	return types.TransactWriteItem{
		Update: &types.Update{
			TableName:                 aws.String(r.tableName),
			Key:                       strKey(fieldAssetID, a.AssetID),
			UpdateExpression:          aws.String(ue.Expr),
			ConditionExpression:       aws.String("#ccid = :ccid AND #cst = :verified AND attribute_not_exists(#cle) AND attribute_not_exists(#cused)"),
			ExpressionAttributeNames:  ue.Names,
			ExpressionAttributeValues: ue.Values,
		},
	}, nil
}

// findByClaimID reads claim_id-index, re-reading on a miss so a claim issued
// moments ago is still found.
func (r *AssetRepo) findByClaimID(ctx context.Context, claimID string) (*domain.Asset, error) {
	return retryIndexMiss(ctx, indexBackoff, func() (*domain.Asset, error) {
		return r.queryClaimID(ctx, claimID)
	})
}

func (r *AssetRepo) queryClaimID(ctx context.Context, claimID string) (*domain.Asset, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(indexClaimID),
		KeyConditionExpression:    aws.String("#cid = :cid"),
		ExpressionAttributeNames:  map[string]string{"#cid": fieldClaimID},
		ExpressionAttributeValues: map[string]types.AttributeValue{":cid": strVal(claimID)},
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("asset with claim id %s: %w", claimID, domain.ErrNotFound)
	}
	var a domain.Asset
	if err := attributevalue.UnmarshalMap(out.Items[0], &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AssetRepo) findByKey(ctx context.Context, key string) ([]domain.Asset, error) {
	p := dynamodb.NewQueryPaginator(r.client, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(indexKey),
		KeyConditionExpression:    aws.String("#k = :k"),
		ExpressionAttributeNames:  map[string]string{"#k": fieldKey},
		ExpressionAttributeValues: map[string]types.AttributeValue{":k": strVal(key)},
	})
	var assets []domain.Asset
	for p.HasMorePages() {
		out, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		var page []domain.Asset
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, err
		}
		assets = append(assets, page...)
	}
	return assets, nil
}

// unixVal encodes t the way the expires_at attribute is stored.
func unixVal(t time.Time) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(t.Unix(), 10)}
}

// Ping checks that the assets table is reachable.
func (r *AssetRepo) Ping(ctx context.Context) error {
	_, err := r.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(r.tableName)})
	return err
}
