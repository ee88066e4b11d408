package cfg

import (
	"context"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/keithlinneman/newsfront/internal/xerrors"
)

// SSMParamSuffix names the companion variable holding an SSM parameter name,
// e.g. REVALIDATE_SECRET_SSM_PARAM.
const SSMParamSuffix = "_SSM_PARAM"

// ParameterGetter is the subset of *ssm.Client used here.
type ParameterGetter interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// Resolution is an environment after SSM lookups, with the per-variable
// failures kept so the gate can report them.
type Resolution struct {
	Env      map[string]string
	Errors   map[string]error
	Resolved []string
}

// ResolveSSM fills every gate variable that is unset in env but has a
// <NAME>_SSM_PARAM companion in lookup. Values already present win. A nil
// lookup uses os.LookupEnv.
func ResolveSSM(ctx context.Context, client ParameterGetter, env map[string]string, lookup func(string) (string, bool)) Resolution {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	res := Resolution{
		Env:    make(map[string]string, len(env)),
		Errors: map[string]error{},
	}
	for k, v := range env {
		res.Env[k] = v
	}

	for _, s := range envSpec {
		if strings.TrimSpace(res.Env[s.Name]) != "" {
			continue
		}
		param, ok := lookup(s.Name + SSMParamSuffix)
		if !ok || strings.TrimSpace(param) == "" {
			continue
		}
		if client == nil {
			res.Errors[s.Name] = xerrors.Newf("%s%s is set but no SSM client is configured", s.Name, SSMParamSuffix)
			continue
		}
		v, err := getParameter(ctx, client, param)
		if err != nil {
			res.Errors[s.Name] = err
			continue
		}
		res.Env[s.Name] = v
		res.Resolved = append(res.Resolved, s.Name)
	}
	return res
}

func getParameter(ctx context.Context, client ParameterGetter, name string) (string, error) {
	out, err := client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", xerrors.Wrapf(err, "get SSM parameter %s", name)
	}
	if out == nil || out.Parameter == nil || out.Parameter.Value == nil {
		return "", xerrors.Newf("SSM parameter %s has no value", name)
	}
	v := strings.TrimSpace(*out.Parameter.Value)
	if v == "" {
		return "", xerrors.Newf("SSM parameter %s is empty", name)
	}
	return v, nil
}

// NeedsSSM reports whether any gate variable is unset but names an SSM
// parameter, so callers can skip loading AWS config when nothing needs it.
func NeedsSSM(env map[string]string, lookup func(string) (string, bool)) bool {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	for _, s := range envSpec {
		if strings.TrimSpace(env[s.Name]) != "" {
			continue
		}
		if p, ok := lookup(s.Name + SSMParamSuffix); ok && strings.TrimSpace(p) != "" {
			return true
		}
	}
	return false
}

// Validate runs the gate over the resolved environment. Lookup failures are
// reported as errors for the variable they were meant to fill.
func (r Resolution) Validate() ValidationResult {
	return validate(r.Env, r.Errors)
}

// ValidateOrError is ValidateOrError over the resolved environment.
func (r Resolution) ValidateOrError() (ValidationResult, error) {
	res := r.Validate()
	if !res.Valid {
		return res, &ConfigError{Result: res}
	}
	return res, nil
}
