package cdn

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	cftypes "github.com/aws/aws-sdk-go-v2/service/cloudfront/types"
	"github.com/stretchr/testify/require"
)

type fakeCloudFront struct {
	pages      map[string]*cloudfront.ListPublicKeysOutput
	markers    []string
	deleteErr  error
	lastUpdate *cloudfront.UpdateKeyGroupInput
	lastCreate *cloudfront.CreatePublicKeyInput
	lastDelete *cloudfront.DeletePublicKeyInput
}

func (f *fakeCloudFront) ListPublicKeys(_ context.Context, in *cloudfront.ListPublicKeysInput, _ ...func(*cloudfront.Options)) (*cloudfront.ListPublicKeysOutput, error) {
	m := aws.ToString(in.Marker)
	f.markers = append(f.markers, m)
	return f.pages[m], nil
}

func (f *fakeCloudFront) GetPublicKey(_ context.Context, in *cloudfront.GetPublicKeyInput, _ ...func(*cloudfront.Options)) (*cloudfront.GetPublicKeyOutput, error) {
	return &cloudfront.GetPublicKeyOutput{
		ETag: aws.String("ETAG-" + aws.ToString(in.Id)),
		PublicKey: &cftypes.PublicKey{
			Id:              in.Id,
			CreatedTime:     aws.Time(time.Unix(1700000000, 0)),
			PublicKeyConfig: &cftypes.PublicKeyConfig{Name: aws.String("edge-KEY_1")},
		},
	}, nil
}

func (f *fakeCloudFront) CreatePublicKey(_ context.Context, in *cloudfront.CreatePublicKeyInput, _ ...func(*cloudfront.Options)) (*cloudfront.CreatePublicKeyOutput, error) {
	f.lastCreate = in
	return &cloudfront.CreatePublicKeyOutput{
		ETag:      aws.String("E1"),
		PublicKey: &cftypes.PublicKey{Id: aws.String("K-NEW"), PublicKeyConfig: in.PublicKeyConfig},
	}, nil
}

func (f *fakeCloudFront) DeletePublicKey(_ context.Context, in *cloudfront.DeletePublicKeyInput, _ ...func(*cloudfront.Options)) (*cloudfront.DeletePublicKeyOutput, error) {
	f.lastDelete = in
	return &cloudfront.DeletePublicKeyOutput{}, f.deleteErr
}

func (f *fakeCloudFront) GetKeyGroup(_ context.Context, in *cloudfront.GetKeyGroupInput, _ ...func(*cloudfront.Options)) (*cloudfront.GetKeyGroupOutput, error) {
	return &cloudfront.GetKeyGroupOutput{
		ETag: aws.String("EG1"),
		KeyGroup: &cftypes.KeyGroup{
			Id: in.Id,
			KeyGroupConfig: &cftypes.KeyGroupConfig{
				Name:  aws.String("edge-group"),
				Items: []string{"K1", "K2"},
			},
		},
	}, nil
}

func (f *fakeCloudFront) UpdateKeyGroup(_ context.Context, in *cloudfront.UpdateKeyGroupInput, _ ...func(*cloudfront.Options)) (*cloudfront.UpdateKeyGroupOutput, error) {
	f.lastUpdate = in
	return &cloudfront.UpdateKeyGroupOutput{ETag: aws.String("EG2")}, nil
}

func summary(id, name string) cftypes.PublicKeySummary {
	return cftypes.PublicKeySummary{Id: aws.String(id), Name: aws.String(name), CreatedTime: aws.Time(time.Now())}
}

func TestCloudFront_ListFollowsMarkers(t *testing.T) {
	api := &fakeCloudFront{pages: map[string]*cloudfront.ListPublicKeysOutput{
		"": {PublicKeyList: &cftypes.PublicKeyList{
			Items:      []cftypes.PublicKeySummary{summary("K1", "edge-KEY_1")},
			NextMarker: aws.String("K1"),
		}},
		"K1": {PublicKeyList: &cftypes.PublicKeyList{
			Items: []cftypes.PublicKeySummary{summary("K2", "edge-KEY_2"), summary("K3", "edge-DUMMY_KEY")},
		}},
	}}

	keys, err := NewCloudFront(api).ListPublicKeys(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"", "K1"}, api.markers)
	require.Len(t, keys, 3)
	require.Equal(t, "edge-DUMMY_KEY", keys[2].Name)
}

func TestCloudFront_Mutations(t *testing.T) {
	ctx := context.Background()
	api := &fakeCloudFront{}
	c := NewCloudFront(api)

	pk, err := c.CreatePublicKey(ctx, "edge-KEY_2", "ref-123", "-----BEGIN PUBLIC KEY-----")
	require.NoError(t, err)
	require.Equal(t, "K-NEW", pk.ID)
	require.Equal(t, "edge-KEY_2", pk.Name)
	require.Equal(t, "ref-123", aws.ToString(api.lastCreate.PublicKeyConfig.CallerReference))

	g, etag, err := c.GetKeyGroup(ctx, "G1")
	require.NoError(t, err)
	require.Equal(t, "EG1", etag)
	require.Equal(t, []string{"K1", "K2"}, g.Items)

	g.Items = []string{"K2"}
	next, err := c.UpdateKeyGroup(ctx, g, etag)
	require.NoError(t, err)
	require.Equal(t, "EG2", next)
	require.Equal(t, "EG1", aws.ToString(api.lastUpdate.IfMatch))
	require.Equal(t, []string{"K2"}, api.lastUpdate.KeyGroupConfig.Items)
	require.Equal(t, "edge-group", aws.ToString(api.lastUpdate.KeyGroupConfig.Name))

	_, err = c.UpdateKeyGroup(ctx, KeyGroup{ID: "G1"}, etag)
	require.ErrorIs(t, err, ErrEmptyKeyGroup)

	_, ketag, err := c.GetPublicKey(ctx, "K1")
	require.NoError(t, err)
	require.NoError(t, c.DeletePublicKey(ctx, "K1", ketag))
	require.Equal(t, "ETAG-K1", aws.ToString(api.lastDelete.IfMatch))
}

func TestCloudFront_ErrorMapping(t *testing.T) {
	api := &fakeCloudFront{deleteErr: &cftypes.PublicKeyInUse{Message: aws.String("in use")}}
	err := NewCloudFront(api).DeletePublicKey(context.Background(), "K1", "E1")
	require.ErrorIs(t, err, ErrInUse)

	var inUse *cftypes.PublicKeyInUse
	require.True(t, errors.As(err, &inUse))

	api.deleteErr = &cftypes.PreconditionFailed{Message: aws.String("etag")}
	require.ErrorIs(t, NewCloudFront(api).DeletePublicKey(context.Background(), "K1", "E0"), ErrPreconditionFailed)
}
