package config

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// ParameterGetter is the subset of the SSM client used to resolve secrets.
type ParameterGetter interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// ResolveSecrets replaces JWTSecret with the SSM parameter named by
// JWT_SECRET_SSM_PARAM. It is a no-op when the parameter is unset.
func (c *Config) ResolveSecrets(ctx context.Context) error {
	if c.JWTSecretSSMParam == "" {
		return nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(c.AWSRegion))
	if err != nil {
		return fmt.Errorf("load aws config: %w", err)
	}
	return c.resolveSecretsWith(ctx, ssm.NewFromConfig(awsCfg))
}

func (c *Config) resolveSecretsWith(ctx context.Context, client ParameterGetter) error {
	out, err := client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(c.JWTSecretSSMParam),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("fetch ssm parameter %s: %w", c.JWTSecretSSMParam, err)
	}
	if out.Parameter == nil || aws.ToString(out.Parameter.Value) == "" {
		return fmt.Errorf("ssm parameter %s is empty", c.JWTSecretSSMParam)
	}

	c.JWTSecret = aws.ToString(out.Parameter.Value)
	return nil
}
