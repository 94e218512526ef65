package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/journeygrid/journeygrid/internal/application/port/output"
	"github.com/journeygrid/journeygrid/internal/domain/model"
)

// S3BackupGateway implements BackupGateway on an S3 bucket.
// Key structure: <prefix>/snapshots/<journeyID>/<snapshotID>/{content,metadata.json}
type S3BackupGateway struct {
	client S3API
	bucket string
	prefix string
	now    func() time.Time
}

var _ output.BackupGateway = (*S3BackupGateway)(nil)

// S3Config holds the bucket location
type S3Config struct {
	Bucket string
	Prefix string
	Region string
}

// NewS3BackupGateway creates a gateway using the default AWS credential chain
func NewS3BackupGateway(ctx context.Context, cfg S3Config) (*S3BackupGateway, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}
	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	if cfg.Region != "" {
		awsCfg.Region = cfg.Region
	}
	return NewS3BackupGatewayWithClient(s3.NewFromConfig(awsCfg), cfg.Bucket, cfg.Prefix), nil
}

// NewS3BackupGatewayWithClient creates a gateway on an existing client
func NewS3BackupGatewayWithClient(client S3API, bucket, prefix string) *S3BackupGateway {
	return &S3BackupGateway{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/"), now: time.Now}
}

// SaveSnapshot uploads the content and its metadata
func (g *S3BackupGateway) SaveSnapshot(ctx context.Context, req output.SaveSnapshotRequest) (*output.SnapshotMetadata, error) {
	if req.JourneyID == "" {
		return nil, errors.New("journey id is required")
	}
	id := model.NewID()
	contentKey := g.key(snapshotsDir, req.JourneyID, id, contentFile)
	meta := newMetadata(id, req, fmt.Sprintf("s3://%s/%s", g.bucket, contentKey), g.now())

	objectMeta := map[string]string{
		"snapshot-id": id,
		"journey-id":  req.JourneyID,
		"format":      req.Format,
	}
	for k, v := range req.Metadata {
		objectMeta[k] = v
	}
	_, err := g.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(g.bucket),
		Key:         aws.String(contentKey),
		Body:        bytes.NewReader(req.Content),
		ContentType: aws.String(meta.ContentType),
		Metadata:    objectMeta,
	})
	if err != nil {
		return nil, fmt.Errorf("upload to S3: %w", err)
	}

	data, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	_, err = g.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(g.bucket),
		Key:         aws.String(g.key(snapshotsDir, req.JourneyID, id, metadataFile)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return nil, fmt.Errorf("upload metadata to S3: %w", err)
	}
	return &meta, nil
}

// LoadSnapshot downloads a snapshot by ID
func (g *S3BackupGateway) LoadSnapshot(ctx context.Context, snapshotID string) (*output.Snapshot, error) {
	metaKey, err := g.find(ctx, snapshotID)
	if err != nil {
		return nil, err
	}
	meta, err := g.readMetadata(ctx, metaKey)
	if err != nil {
		return nil, err
	}
	content, err := g.get(ctx, strings.TrimSuffix(metaKey, metadataFile)+contentFile)
	if err != nil {
		return nil, fmt.Errorf("download content from S3: %w", err)
	}
	return &output.Snapshot{ID: snapshotID, Content: content, Metadata: *meta}, nil
}

// ListSnapshots lists snapshots, newest first
func (g *S3BackupGateway) ListSnapshots(ctx context.Context, journeyID string) ([]*output.SnapshotMetadata, error) {
	prefix := g.key(snapshotsDir) + "/"
	if journeyID != "" {
		prefix = g.key(snapshotsDir, journeyID) + "/"
	}
	keys, err := g.list(ctx, prefix)
	if err != nil {
		return nil, err
	}

	list := []*output.SnapshotMetadata{}
	for _, key := range keys {
		if !strings.HasSuffix(key, "/"+metadataFile) {
			continue
		}
		meta, err := g.readMetadata(ctx, key)
		if err != nil {
			continue
		}
		list = append(list, meta)
	}
	sortNewestFirst(list)
	return list, nil
}

// DeleteSnapshot removes both objects of a snapshot
func (g *S3BackupGateway) DeleteSnapshot(ctx context.Context, snapshotID string) error {
	metaKey, err := g.find(ctx, snapshotID)
	if err != nil {
		return err
	}
	base := strings.TrimSuffix(metaKey, metadataFile)
	for _, key := range []string{base + contentFile, metaKey} {
		_, err := g.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(g.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return fmt.Errorf("delete %s from S3: %w", key, err)
		}
	}
	return nil
}

// find returns the metadata key of a snapshot
func (g *S3BackupGateway) find(ctx context.Context, snapshotID string) (string, error) {
	if snapshotID == "" {
		return "", output.ErrSnapshotNotFound
	}
	keys, err := g.list(ctx, g.key(snapshotsDir)+"/")
	if err != nil {
		return "", err
	}
	suffix := "/" + snapshotID + "/" + metadataFile
	for _, key := range keys {
		if strings.HasSuffix(key, suffix) {
			return key, nil
		}
	}
	return "", fmt.Errorf("%w: %s", output.ErrSnapshotNotFound, snapshotID)
}

func (g *S3BackupGateway) list(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	var token *string
	for {
		out, err := g.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(g.bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("list S3 objects: %w", err)
		}
		for _, obj := range out.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
		if !aws.ToBool(out.IsTruncated) || out.NextContinuationToken == nil {
			return keys, nil
		}
		token = out.NextContinuationToken
	}
}

func (g *S3BackupGateway) get(ctx context.Context, key string) ([]byte, error) {
	obj, err := g.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var missing *types.NoSuchKey
		if errors.As(err, &missing) {
			return nil, fmt.Errorf("%w: %s", output.ErrSnapshotNotFound, key)
		}
		return nil, err
	}
	defer obj.Body.Close()
	return io.ReadAll(obj.Body)
}

func (g *S3BackupGateway) readMetadata(ctx context.Context, key string) (*output.SnapshotMetadata, error) {
	data, err := g.get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("download metadata from S3: %w", err)
	}
	var meta output.SnapshotMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	return &meta, nil
}

func (g *S3BackupGateway) key(parts ...string) string {
	if g.prefix != "" {
		parts = append([]string{g.prefix}, parts...)
	}
	return path.Join(parts...)
}
