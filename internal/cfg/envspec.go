package cfg

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Names of the external contract variables checked by the configuration gate.
const (
	EnvEndpoint        = "WPGRAPHQL_ENDPOINT"
	EnvRevalidate      = "REVALIDATE_SECRET"
	EnvSiteName        = "SITE_NAME"
	EnvSiteURL         = "SITE_URL"
	EnvSiteDescription = "SITE_DESCRIPTION"
	EnvGAMeasurementID = "GA_MEASUREMENT_ID"
	EnvEnableAnalytics = "ENABLE_ANALYTICS"
	EnvAppEnv          = "APP_ENV"
	EnvNewsLanguage    = "NEWS_PUBLICATION_LANGUAGE"
)

// VarSpec is one entry of the configuration gate.
type VarSpec struct {
	Name     string
	Required bool
	Validate func(string) bool
	Message  string
}

// FieldError is one failed rule.
type FieldError struct {
	Variable string `json:"variable"`
	Message  string `json:"message"`
}

// ValidationResult is built fresh on every call and never modified afterwards.
type ValidationResult struct {
	Valid            bool         `json:"is_valid"`
	Errors           []FieldError `json:"errors"`
	MissingVariables []string     `json:"missing_variables"`
	Warnings         []string     `json:"warnings"`
}

// ConfigError is the fatal startup error returned by ValidateOrError.
type ConfigError struct {
	Result ValidationResult
}

func (e *ConfigError) Error() string {
	var b strings.Builder
	b.WriteString("configuration invalid")
	if n := len(e.Result.MissingVariables); n > 0 {
		fmt.Fprintf(&b, "; missing %d required variable(s): %s", n, strings.Join(e.Result.MissingVariables, ", "))
	}
	for _, fe := range e.Result.Errors {
		if fe.Message == missingMessage {
			continue
		}
		fmt.Fprintf(&b, "; %s %s", fe.Variable, fe.Message)
	}
	return b.String()
}

const missingMessage = "is required"

var (
	gaIDPattern   = regexp.MustCompile(`^G-[A-Za-z0-9]+$`)
	iso639Pattern = regexp.MustCompile(`^[a-z]{2,3}$`)
)

func absoluteURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && u.Scheme != "" && u.Host != ""
}

func nonEmpty(s string) bool { return strings.TrimSpace(s) != "" }

func oneOf(vals ...string) func(string) bool {
	return func(s string) bool {
		for _, v := range vals {
			if s == v {
				return true
			}
		}
		return false
	}
}

// envSpec is built once at package init and only handed out as copies.
var envSpec = []VarSpec{
	{Name: EnvEndpoint, Required: true, Validate: absoluteURL, Message: "must be a valid absolute URL"},
	{Name: EnvRevalidate, Required: true, Validate: func(s string) bool { return utf8.RuneCountInString(s) >= 8 }, Message: "must be at least 8 characters"},
	{Name: EnvSiteName, Required: true, Validate: nonEmpty, Message: "must not be empty"},
	{Name: EnvSiteURL, Required: true, Validate: absoluteURL, Message: "must be a valid absolute URL"},
	{Name: EnvSiteDescription, Required: true, Validate: nonEmpty, Message: "must not be empty"},
	{Name: EnvGAMeasurementID, Validate: gaIDPattern.MatchString, Message: "must match G-XXXXXXXX"},
	{Name: EnvEnableAnalytics, Validate: oneOf("true", "false"), Message: `must be "true" or "false"`},
	{Name: EnvAppEnv, Validate: oneOf("development", "staging", "production"), Message: "must be development, staging, or production"},
	{Name: EnvNewsLanguage, Validate: iso639Pattern.MatchString, Message: "must be an ISO 639 language code"},
}

// Spec returns a copy of the ordered gate table.
func Spec() []VarSpec {
	out := make([]VarSpec, len(envSpec))
	copy(out, envSpec)
	return out
}

// LookupEnv collects the gate variables from the process environment.
// Unset variables are left out of the map.
func LookupEnv() map[string]string {
	env := make(map[string]string, len(envSpec))
	for _, s := range envSpec {
		if v, ok := os.LookupEnv(s.Name); ok {
			env[s.Name] = v
		}
	}
	return env
}

// ValidateEnv checks every variable independently and collects all failures.
func ValidateEnv(env map[string]string) ValidationResult {
	return validate(env, nil)
}

func validate(env map[string]string, resolveErrs map[string]error) ValidationResult {
	res := ValidationResult{
		Errors:           []FieldError{},
		MissingVariables: []string{},
		Warnings:         []string{},
	}

	for _, s := range envSpec {
		if err, ok := resolveErrs[s.Name]; ok {
			res.Errors = append(res.Errors, FieldError{Variable: s.Name, Message: "could not be resolved from SSM: " + err.Error()})
		}
		v := env[s.Name]
		if strings.TrimSpace(v) == "" {
			if s.Required {
				res.MissingVariables = append(res.MissingVariables, s.Name)
				res.Errors = append(res.Errors, FieldError{Variable: s.Name, Message: missingMessage})
			}
			continue
		}
		if !s.Validate(v) {
			res.Errors = append(res.Errors, FieldError{Variable: s.Name, Message: s.Message})
		}
	}

	res.Warnings = append(res.Warnings, warningsFor(env)...)
	res.Valid = len(res.Errors) == 0
	return res
}

func warningsFor(env map[string]string) []string {
	var out []string
	if env[EnvGAMeasurementID] != "" && env[EnvEnableAnalytics] == "false" {
		out = append(out, EnvGAMeasurementID+" is set but "+EnvEnableAnalytics+" is false; analytics will not load")
	}
	if env[EnvAppEnv] == "production" {
		if u, err := url.Parse(env[EnvSiteURL]); err == nil && u.Scheme != "" && u.Scheme != "https" {
			out = append(out, EnvSiteURL+" is not https in production")
		}
	}
	return out
}

// ValidateOrError runs ValidateEnv and returns a *ConfigError listing every
// missing or invalid variable when the result is not valid.
func ValidateOrError(env map[string]string) (ValidationResult, error) {
	res := ValidateEnv(env)
	if !res.Valid {
		return res, &ConfigError{Result: res}
	}
	return res, nil
}

// Site is the typed view of a validated environment.
type Site struct {
	Endpoint         string
	RevalidateSecret string
	Name             string
	URL              string
	Description      string
	GAMeasurementID  string
	AnalyticsEnabled bool
	Env              string
	NewsLanguage     string
}

// Production reports whether the deployment context is production.
func (s Site) Production() bool { return s.Env == "production" }

// SiteFromEnv maps a validated environment onto Site, applying defaults for
// optional variables. Call only after ValidateOrError succeeded.
func SiteFromEnv(env map[string]string) Site {
	s := Site{
		Endpoint:         env[EnvEndpoint],
		RevalidateSecret: env[EnvRevalidate],
		Name:             strings.TrimSpace(env[EnvSiteName]),
		URL:              strings.TrimRight(env[EnvSiteURL], "/"),
		Description:      strings.TrimSpace(env[EnvSiteDescription]),
		GAMeasurementID:  env[EnvGAMeasurementID],
		AnalyticsEnabled: env[EnvEnableAnalytics] == "true",
		Env:              env[EnvAppEnv],
		NewsLanguage:     env[EnvNewsLanguage],
	}
	if s.Env == "" {
		s.Env = "production"
	}
	if s.NewsLanguage == "" {
		s.NewsLanguage = "en"
	}
	return s
}
