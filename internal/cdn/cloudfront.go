package cdn

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	cftypes "github.com/aws/aws-sdk-go-v2/service/cloudfront/types"
)

// CloudFrontAPI is the subset of the CloudFront client used here.
type CloudFrontAPI interface {
	ListPublicKeys(ctx context.Context, in *cloudfront.ListPublicKeysInput, optFns ...func(*cloudfront.Options)) (*cloudfront.ListPublicKeysOutput, error)
	GetPublicKey(ctx context.Context, in *cloudfront.GetPublicKeyInput, optFns ...func(*cloudfront.Options)) (*cloudfront.GetPublicKeyOutput, error)
	CreatePublicKey(ctx context.Context, in *cloudfront.CreatePublicKeyInput, optFns ...func(*cloudfront.Options)) (*cloudfront.CreatePublicKeyOutput, error)
	DeletePublicKey(ctx context.Context, in *cloudfront.DeletePublicKeyInput, optFns ...func(*cloudfront.Options)) (*cloudfront.DeletePublicKeyOutput, error)
	GetKeyGroup(ctx context.Context, in *cloudfront.GetKeyGroupInput, optFns ...func(*cloudfront.Options)) (*cloudfront.GetKeyGroupOutput, error)
	UpdateKeyGroup(ctx context.Context, in *cloudfront.UpdateKeyGroupInput, optFns ...func(*cloudfront.Options)) (*cloudfront.UpdateKeyGroupOutput, error)
}

// CloudFront implements Registry on the CloudFront API.
type CloudFront struct {
	api CloudFrontAPI
}

func NewCloudFront(api CloudFrontAPI) *CloudFront {
	return &CloudFront{api: api}
}

// ListPublicKeys follows NextMarker until the listing is exhausted.
func (c *CloudFront) ListPublicKeys(ctx context.Context) ([]PublicKey, error) {
	var (
		out    []PublicKey
		marker *string
	)
	for {
		res, err := c.api.ListPublicKeys(ctx, &cloudfront.ListPublicKeysInput{Marker: marker})
		if err != nil {
			return nil, fmt.Errorf("cdn: list public keys: %w", mapError(err))
		}
		if res.PublicKeyList == nil {
			return out, nil
		}
		for _, s := range res.PublicKeyList.Items {
			pk := PublicKey{ID: aws.ToString(s.Id), Name: aws.ToString(s.Name)}
			if s.CreatedTime != nil {
				pk.CreatedAt = *s.CreatedTime
			}
			out = append(out, pk)
		}
		next := aws.ToString(res.PublicKeyList.NextMarker)
		if next == "" {
			return out, nil
		}
		marker = aws.String(next)
	}
}

func (c *CloudFront) GetPublicKey(ctx context.Context, id string) (PublicKey, string, error) {
	res, err := c.api.GetPublicKey(ctx, &cloudfront.GetPublicKeyInput{Id: aws.String(id)})
	if err != nil {
		return PublicKey{}, "", fmt.Errorf("cdn: get public key %s: %w", id, mapError(err))
	}
	return toPublicKey(res.PublicKey), aws.ToString(res.ETag), nil
}

func (c *CloudFront) CreatePublicKey(ctx context.Context, name, callerReference, encodedKey string) (PublicKey, error) {
	res, err := c.api.CreatePublicKey(ctx, &cloudfront.CreatePublicKeyInput{
		PublicKeyConfig: &cftypes.PublicKeyConfig{
			CallerReference: aws.String(callerReference),
			Name:            aws.String(name),
			EncodedKey:      aws.String(encodedKey),
		},
	})
	if err != nil {
		return PublicKey{}, fmt.Errorf("cdn: create public key %s: %w", name, mapError(err))
	}
	pk := toPublicKey(res.PublicKey)
	if pk.Name == "" {
		pk.Name = name
	}
	return pk, nil
}

func (c *CloudFront) DeletePublicKey(ctx context.Context, id, etag string) error {
	_, err := c.api.DeletePublicKey(ctx, &cloudfront.DeletePublicKeyInput{
		Id:      aws.String(id),
		IfMatch: aws.String(etag),
	})
	if err != nil {
		return fmt.Errorf("cdn: delete public key %s: %w", id, mapError(err))
	}
	return nil
}

func (c *CloudFront) GetKeyGroup(ctx context.Context, id string) (KeyGroup, string, error) {
	res, err := c.api.GetKeyGroup(ctx, &cloudfront.GetKeyGroupInput{Id: aws.String(id)})
	if err != nil {
		return KeyGroup{}, "", fmt.Errorf("cdn: get key group %s: %w", id, mapError(err))
	}
	g := KeyGroup{ID: id}
	if res.KeyGroup != nil {
		g.ID = aws.ToString(res.KeyGroup.Id)
		if cfg := res.KeyGroup.KeyGroupConfig; cfg != nil {
			g.Name = aws.ToString(cfg.Name)
			g.Comment = aws.ToString(cfg.Comment)
			g.Items = append([]string(nil), cfg.Items...)
		}
	}
	return g, aws.ToString(res.ETag), nil
}

func (c *CloudFront) UpdateKeyGroup(ctx context.Context, group KeyGroup, etag string) (string, error) {
	if len(group.Items) == 0 {
		return "", ErrEmptyKeyGroup
	}
	cfg := &cftypes.KeyGroupConfig{
		Name:  aws.String(group.Name),
		Items: group.Items,
	}
	if group.Comment != "" {
		cfg.Comment = aws.String(group.Comment)
	}
	res, err := c.api.UpdateKeyGroup(ctx, &cloudfront.UpdateKeyGroupInput{
		Id:             aws.String(group.ID),
		IfMatch:        aws.String(etag),
		KeyGroupConfig: cfg,
	})
	if err != nil {
		return "", fmt.Errorf("cdn: update key group %s: %w", group.ID, mapError(err))
	}
	return aws.ToString(res.ETag), nil
}

func toPublicKey(p *cftypes.PublicKey) PublicKey {
	if p == nil {
		return PublicKey{}
	}
	pk := PublicKey{ID: aws.ToString(p.Id)}
	if p.CreatedTime != nil {
		pk.CreatedAt = *p.CreatedTime
	}
	if p.PublicKeyConfig != nil {
		pk.Name = aws.ToString(p.PublicKeyConfig.Name)
	}
	return pk
}

// mapError joins the API error with the matching sentinel so callers can use
// errors.Is without importing the SDK types.
func mapError(err error) error {
	var (
		noKey      *cftypes.NoSuchPublicKey
		noResource *cftypes.NoSuchResource
		precond    *cftypes.PreconditionFailed
		badIfMatch *cftypes.InvalidIfMatchVersion
		inUse      *cftypes.PublicKeyInUse
		exists     *cftypes.PublicKeyAlreadyExists
	)
	switch {
	case errors.As(err, &noKey), errors.As(err, &noResource):
		return errors.Join(ErrNotFound, err)
	case errors.As(err, &precond), errors.As(err, &badIfMatch):
		return errors.Join(ErrPreconditionFailed, err)
	case errors.As(err, &inUse):
		return errors.Join(ErrInUse, err)
	case errors.As(err, &exists):
		return errors.Join(ErrAlreadyExists, err)
	}
	return err
}
