package main

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/spf13/cobra"

	"github.com/keithlinneman/newsfront/internal/cfg"
	"github.com/keithlinneman/newsfront/internal/log"
)

// ssmClientFn builds the SSM client; tests replace it.
var ssmClientFn = func(ctx context.Context) (cfg.ParameterGetter, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	return ssm.NewFromConfig(awsCfg), nil
}

func getCheckEnvCmd() *cobra.Command {
	var skipSSM bool
	cmd := &cobra.Command{
		Use:   "check-env",
		Short: "Validate the site environment the way the server does at startup",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			L, err := newLogger(cmd)
			if err != nil {
				return err
			}
			res, _ := resolveEnv(cmd.Context(), L, !skipSSM)
			gate := res.Validate()
			printResult(cmd.OutOrStdout(), res, gate)
			if !gate.Valid {
				return &cfg.ConfigError{Result: gate}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&skipSSM, "skip-ssm", false, "do not resolve <NAME>_SSM_PARAM variables")
	return cmd
}

// resolveEnv reads the gate variables and resolves SSM companions when any
// are named. A failed AWS config load surfaces as resolution errors.
func resolveEnv(ctx context.Context, L log.Logger, useSSM bool) (cfg.Resolution, cfg.Site) {
	if ctx == nil {
		ctx = context.Background()
	}
	env := cfg.LookupEnv()
	var client cfg.ParameterGetter
	if useSSM && cfg.NeedsSSM(env, nil) {
		c, err := ssmClientFn(ctx)
		if err != nil {
			L.Error(ctx, err, "failed to load AWS config for SSM resolution")
		} else {
			client = c
		}
	}
	res := cfg.ResolveSSM(ctx, client, env, nil)
	return res, cfg.SiteFromEnv(res.Env)
}

func printResult(w io.Writer, res cfg.Resolution, gate cfg.ValidationResult) {
	for _, name := range res.Resolved {
		fmt.Fprintf(w, "resolved  %s from SSM\n", name)
	}
	for _, fe := range gate.Errors {
		fmt.Fprintf(w, "error     %s %s\n", fe.Variable, fe.Message)
	}
	for _, name := range gate.MissingVariables {
		fmt.Fprintf(w, "missing   %s\n", name)
	}
	for _, warn := range gate.Warnings {
		fmt.Fprintf(w, "warning   %s\n", warn)
	}
	if gate.Valid {
		fmt.Fprintln(w, "environment OK")
	} else {
		fmt.Fprintf(w, "environment INVALID (%d error(s))\n", len(gate.Errors))
	}
}
