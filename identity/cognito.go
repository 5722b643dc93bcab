package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentity"
)

type CognitoAPI interface {
	GetId(ctx context.Context, params *cognitoidentity.GetIdInput, optFns ...func(*cognitoidentity.Options)) (*cognitoidentity.GetIdOutput, error)
	GetCredentialsForIdentity(ctx context.Context, params *cognitoidentity.GetCredentialsForIdentityInput, optFns ...func(*cognitoidentity.Options)) (*cognitoidentity.GetCredentialsForIdentityOutput, error)
}

// NewCognitoClient builds an unsigned client; unauthenticated identities
// need no caller credentials.
func NewCognitoClient(cfg aws.Config) *cognitoidentity.Client {
	return cognitoidentity.NewFromConfig(cfg, func(o *cognitoidentity.Options) {
		o.Credentials = aws.AnonymousCredentials{}
	})
}

// Exchange trades the identity pool for temporary credentials. It runs
// once; the credentials are never refreshed.
func Exchange(ctx context.Context, client CognitoAPI, poolID string) (aws.CredentialsProvider, error) {
	if poolID == "" {
		return nil, errors.New("identity pool id cannot be empty")
	}

	idOut, err := client.GetId(ctx, &cognitoidentity.GetIdInput{
		IdentityPoolId: aws.String(poolID),
	})
	if err != nil {
		return nil, fmt.Errorf("get identity id: %w", err)
	}

	credsOut, err := client.GetCredentialsForIdentity(ctx, &cognitoidentity.GetCredentialsForIdentityInput{
		IdentityId: idOut.IdentityId,
	})
	if err != nil {
		return nil, fmt.Errorf("get credentials for identity: %w", err)
	}

	c := credsOut.Credentials
	if c == nil || c.AccessKeyId == nil || c.SecretKey == nil {
		return nil, errors.New("identity pool returned no credentials")
	}

	return credentials.NewStaticCredentialsProvider(
		aws.ToString(c.AccessKeyId),
		aws.ToString(c.SecretKey),
		aws.ToString(c.SessionToken),
	), nil
}
