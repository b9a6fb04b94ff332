package store

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

// SSMAPI is the subset of the SSM client used here.
type SSMAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
	PutParameter(ctx context.Context, in *ssm.PutParameterInput, optFns ...func(*ssm.Options)) (*ssm.PutParameterOutput, error)
}

// SecretsManagerAPI is the subset of the Secrets Manager client used here.
type SecretsManagerAPI interface {
	UpdateSecret(ctx context.Context, in *secretsmanager.UpdateSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.UpdateSecretOutput, error)
}

// AWS reads parameters from SSM and writes secrets to Secrets Manager.
// Secret references are resolved by SSM itself.
type AWS struct {
	ssm     SSMAPI
	secrets SecretsManagerAPI
}

func NewAWS(p SSMAPI, s SecretsManagerAPI) *AWS {
	return &AWS{ssm: p, secrets: s}
}

func (a *AWS) GetParameter(ctx context.Context, name string, decrypt bool) (string, error) {
	out, err := a.ssm.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(decrypt),
	})
	if err != nil {
		var nf *ssmtypes.ParameterNotFound
		if errors.As(err, &nf) {
			return "", ErrNotFound
		}
		return "", err
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return "", ErrNotFound
	}
	return *out.Parameter.Value, nil
}

func (a *AWS) PutParameter(ctx context.Context, name, value string) error {
	_, err := a.ssm.PutParameter(ctx, &ssm.PutParameterInput{
		Name:      aws.String(name),
		Value:     aws.String(value),
		Type:      ssmtypes.ParameterTypeString,
		Overwrite: aws.Bool(true),
		Tier:      ssmtypes.ParameterTierStandard,
	})
	return err
}

func (a *AWS) PutSecret(ctx context.Context, id, value string) error {
	_, err := a.secrets.UpdateSecret(ctx, &secretsmanager.UpdateSecretInput{
		SecretId:     aws.String(id),
		SecretString: aws.String(value),
	})
	return err
}
