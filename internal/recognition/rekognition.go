package recognition

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"

	"github.com/kozaktomas/sketch-match/internal/apperr"
	"github.com/kozaktomas/sketch-match/internal/metrics"
)

// RekognitionAPI is the subset of the Rekognition client used by Rekognition.
type RekognitionAPI interface {
	IndexFaces(ctx context.Context, params *rekognition.IndexFacesInput, optFns ...func(*rekognition.Options)) (*rekognition.IndexFacesOutput, error)
	SearchFacesByImage(ctx context.Context, params *rekognition.SearchFacesByImageInput, optFns ...func(*rekognition.Options)) (*rekognition.SearchFacesByImageOutput, error)
	DescribeCollection(ctx context.Context, params *rekognition.DescribeCollectionInput, optFns ...func(*rekognition.Options)) (*rekognition.DescribeCollectionOutput, error)
	CreateCollection(ctx context.Context, params *rekognition.CreateCollectionInput, optFns ...func(*rekognition.Options)) (*rekognition.CreateCollectionOutput, error)
}

// Rekognition implements Recognizer and CollectionManager on Amazon Rekognition.
type Rekognition struct {
	client RekognitionAPI
}

// NewRekognition wraps a Rekognition API client.
func NewRekognition(client RekognitionAPI) *Rekognition {
	return &Rekognition{client: client}
}

func s3Image(ref ObjectRef) *types.Image {
	return &types.Image{
		S3Object: &types.S3Object{
			Bucket: aws.String(ref.Bucket),
			Name:   aws.String(ref.Key),
		},
	}
}

// IndexFace registers the faces found in image under externalID.
func (r *Rekognition) IndexFace(ctx context.Context, collectionID string, image ObjectRef, externalID string, attrs Attributes) (faces []FaceDescriptor, err error) {
	start := time.Now()
	defer func() { metrics.ObserveCall("rekognition", "index_faces", start, err) }()

	if attrs == "" {
		attrs = AttributesDefault
	}

	out, err := r.client.IndexFaces(ctx, &rekognition.IndexFacesInput{
		CollectionId:        aws.String(collectionID),
		Image:               s3Image(image),
		ExternalImageId:     aws.String(externalID),
		DetectionAttributes: []types.Attribute{types.Attribute(attrs)},
	})
	if err != nil {
		return nil, apperr.Service("recognition.index_faces", fmt.Errorf("could not index %s: %w", image.Key, err))
	}

	faces = make([]FaceDescriptor, 0, len(out.FaceRecords))
	for _, rec := range out.FaceRecords {
		faces = append(faces, toDescriptor(rec))
	}
	return faces, nil
}

func toDescriptor(rec types.FaceRecord) FaceDescriptor {
	var d FaceDescriptor
	if rec.Face != nil {
		d.FaceID = aws.ToString(rec.Face.FaceId)
		d.ImageID = aws.ToString(rec.Face.ImageId)
		d.ExternalID = aws.ToString(rec.Face.ExternalImageId)
		d.Confidence = float64(aws.ToFloat32(rec.Face.Confidence))
		d.BoundingBox = toBoundingBox(rec.Face.BoundingBox)
	}
	if detail := rec.FaceDetail; detail != nil {
		if detail.AgeRange != nil {
			d.AgeLow = int(aws.ToInt32(detail.AgeRange.Low))
			d.AgeHigh = int(aws.ToInt32(detail.AgeRange.High))
		}
		if detail.Gender != nil {
			d.Gender = string(detail.Gender.Value)
		}
		var best float32
		for _, e := range detail.Emotions {
			if c := aws.ToFloat32(e.Confidence); c > best {
				best = c
				d.Emotion = string(e.Type)
			}
		}
	}
	return d
}

func toBoundingBox(b *types.BoundingBox) BoundingBox {
	if b == nil {
		return BoundingBox{}
	}
	return BoundingBox{
		Left:   float64(aws.ToFloat32(b.Left)),
		Top:    float64(aws.ToFloat32(b.Top)),
		Width:  float64(aws.ToFloat32(b.Width)),
		Height: float64(aws.ToFloat32(b.Height)),
	}
}

// SearchByImage searches the collection with the largest face in image.
func (r *Rekognition) SearchByImage(ctx context.Context, collectionID string, image ObjectRef, minSimilarity float64, maxResults int) (matches []Match, err error) {
	start := time.Now()
	defer func() { metrics.ObserveCall("rekognition", "search_faces_by_image", start, err) }()

	in := &rekognition.SearchFacesByImageInput{
		CollectionId:       aws.String(collectionID),
		Image:              s3Image(image),
		FaceMatchThreshold: aws.Float32(float32(minSimilarity)),
	}
	if maxResults > 0 {
		in.MaxFaces = aws.Int32(int32(maxResults)) //nolint:gosec // maxResults comes from validated config
	}

	out, err := r.client.SearchFacesByImage(ctx, in)
	if err != nil {
		return nil, apperr.Service("recognition.search_faces_by_image", fmt.Errorf("could not search with %s: %w", image.Key, err))
	}

	matches = make([]Match, 0, len(out.FaceMatches))
	for _, fm := range out.FaceMatches {
		m := Match{Similarity: float64(aws.ToFloat32(fm.Similarity))}
		if fm.Face != nil {
			m.FaceID = aws.ToString(fm.Face.FaceId)
			m.ExternalID = aws.ToString(fm.Face.ExternalImageId)
			m.Confidence = float64(aws.ToFloat32(fm.Face.Confidence))
		}
		matches = append(matches, m)
	}
	return LimitMatches(matches, minSimilarity, maxResults), nil
}

// EnsureCollection creates collectionID when DescribeCollection reports it missing.
func (r *Rekognition) EnsureCollection(ctx context.Context, collectionID string) (bool, error) {
	_, err := r.client.DescribeCollection(ctx, &rekognition.DescribeCollectionInput{
		CollectionId: aws.String(collectionID),
	})
	if err == nil {
		return false, nil
	}

	var notFound *types.ResourceNotFoundException
	if !errors.As(err, &notFound) {
		return false, apperr.Service("recognition.describe_collection", fmt.Errorf("could not describe collection %s: %w", collectionID, err))
	}

	if _, err := r.client.CreateCollection(ctx, &rekognition.CreateCollectionInput{
		CollectionId: aws.String(collectionID),
	}); err != nil {
		return false, apperr.Service("recognition.create_collection", fmt.Errorf("could not create collection %s: %w", collectionID, err))
	}
	return true, nil
}
