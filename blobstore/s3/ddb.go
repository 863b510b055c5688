package s3

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/hupe1980/distvec/blobstore"
)

// ErrConcurrentModification is returned by Commit when another writer
// committed the same version first.
var ErrConcurrentModification = errors.New("s3: concurrent modification detected")

// DDBClient is the subset of the DynamoDB API used by DDBCommitter.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// DDBCommitter records committed checkpoint names in a DynamoDB table.
// S3 has no compare-and-swap, so the version sequence lives in DynamoDB and
// each commit is a conditional put of the next version.
//
// Table schema:
//   - Partition key: namespace (string)
//   - Sort key: version (number)
//
// It can be created with the AWS CLI:
//
//	aws dynamodb create-table \
//	  --table-name distvec-commits \
//	  --attribute-definitions AttributeName=namespace,AttributeType=S AttributeName=version,AttributeType=N \
//	  --key-schema AttributeName=namespace,KeyType=HASH AttributeName=version,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
type DDBCommitter struct {
	client    DDBClient
	table     string
	namespace string
}

// NewDDBCommitter creates a committer. namespace separates independent
// checkpoint series in one table, typically the bucket URI and prefix.
func NewDDBCommitter(client DDBClient, table, namespace string) *DDBCommitter {
	return &DDBCommitter{
		client:    client,
		table:     table,
		namespace: namespace,
	}
}

// Commit records name as the latest checkpoint. It returns
// ErrConcurrentModification if another commit raced it.
func (c *DDBCommitter) Commit(ctx context.Context, name string) error {
	version, _, err := c.latest(ctx)
	if err != nil {
		return err
	}

	_, err = c.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.table),
		Item: map[string]types.AttributeValue{
			"namespace":  &types.AttributeValueMemberS{Value: c.namespace},
			"version":    &types.AttributeValueMemberN{Value: strconv.FormatUint(version+1, 10)},
			"checkpoint": &types.AttributeValueMemberS{Value: name},
		},
		ConditionExpression: aws.String("attribute_not_exists(version)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return ErrConcurrentModification
		}
		return fmt.Errorf("s3: commit %s: %w", name, err)
	}
	return nil
}

// Latest returns the most recently committed checkpoint name, or
// blobstore.ErrNotFound if nothing was committed.
func (c *DDBCommitter) Latest(ctx context.Context) (string, error) {
	version, name, err := c.latest(ctx)
	if err != nil {
		return "", err
	}
	if version == 0 {
		return "", blobstore.ErrNotFound
	}
	return name, nil
}

func (c *DDBCommitter) latest(ctx context.Context) (uint64, string, error) {
	resp, err := c.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(c.table),
		KeyConditionExpression: aws.String("namespace = :ns"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":ns": &types.AttributeValueMemberS{Value: c.namespace},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return 0, "", fmt.Errorf("s3: query commits: %w", err)
	}
	if len(resp.Items) == 0 {
		return 0, "", nil
	}

	item := resp.Items[0]
	versionAttr, ok := item["version"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, "", errors.New("s3: commit item has no numeric version")
	}
	nameAttr, ok := item["checkpoint"].(*types.AttributeValueMemberS)
	if !ok {
		return 0, "", errors.New("s3: commit item has no checkpoint name")
	}
	version, err := strconv.ParseUint(versionAttr.Value, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("s3: parse version: %w", err)
	}
	return version, nameAttr.Value, nil
}
