package mongo

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/diagnosphere/skincheck-api/internal/core/domain"
	"github.com/diagnosphere/skincheck-api/internal/core/ports"
)

const imagesBucket = "images"

// ImageStore keeps uploaded images in a GridFS bucket next to the diagnoses.
// The storage key is used as the GridFS filename.
type ImageStore struct {
	bucket *gridfs.Bucket
}

func NewImageStore(db *mongo.Database) (*ImageStore, error) {
	bucket, err := gridfs.NewBucket(db, options.GridFSBucket().SetName(imagesBucket))
	if err != nil {
		return nil, fmt.Errorf("gridfs bucket: %w", err)
	}
	return &ImageStore{bucket: bucket}, nil
}

type imageMetadata struct {
	ContentType string `bson:"content_type"`
}

func (s *ImageStore) Save(ctx context.Context, key, contentType string, _ int64, body io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	opts := options.GridFSUpload().SetMetadata(imageMetadata{ContentType: contentType})
	if _, err := s.bucket.UploadFromStream(key, body, opts); err != nil {
		return fmt.Errorf("upload image: %w: %w", domain.ErrStore, err)
	}
	return nil
}

func (s *ImageStore) Open(ctx context.Context, key string) (*ports.StoredImage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stream, err := s.bucket.OpenDownloadStreamByName(key)
	if err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return nil, domain.ErrImageNotFound
		}
		return nil, fmt.Errorf("open image: %w: %w", domain.ErrStore, err)
	}

	file := stream.GetFile()
	return &ports.StoredImage{
		Body:        stream,
		ContentType: contentTypeOf(file.Metadata),
		Size:        file.Length,
	}, nil
}

func (s *ImageStore) Delete(ctx context.Context, key string) error {
	cur, err := s.bucket.FindContext(ctx, bson.M{"filename": key})
	if err != nil {
		return fmt.Errorf("find image: %w: %w", domain.ErrStore, err)
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var file gridfs.File
		if err := cur.Decode(&file); err != nil {
			return fmt.Errorf("decode image: %w: %w", domain.ErrStore, err)
		}
		if err := s.bucket.DeleteContext(ctx, file.ID); err != nil && !errors.Is(err, gridfs.ErrFileNotFound) {
			return fmt.Errorf("delete image: %w: %w", domain.ErrStore, err)
		}
	}
	return cur.Err()
}

func contentTypeOf(raw bson.Raw) string {
	var meta imageMetadata
	if len(raw) == 0 || bson.Unmarshal(raw, &meta) != nil || meta.ContentType == "" {
		return "application/octet-stream"
	}
	return meta.ContentType
}
