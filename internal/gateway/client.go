package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/keithlinneman/newsfront/internal/xerrors"
)

// maxResponseBytes bounds how much of a CMS response is read.
const maxResponseBytes = 16 << 20

type gqlRequest struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName"`
	Variables     map[string]any `json:"variables,omitempty"`
}

type gqlError struct {
	Message string `json:"message"`
}

type gqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []gqlError      `json:"errors"`
}

// StatusError is a non-2xx response from the CMS.
type StatusError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: cms returned HTTP %d", e.Operation, e.StatusCode)
	}
	return fmt.Sprintf("%s: cms returned HTTP %d: %s", e.Operation, e.StatusCode, e.Body)
}

// GraphQLError is a response carrying a non-empty errors array.
type GraphQLError struct {
	Operation string
	Messages  []string
}

func (e *GraphQLError) Error() string {
	return fmt.Sprintf("%s: graphql errors: %s", e.Operation, strings.Join(e.Messages, "; "))
}

// client is built once per Gateway and read-only afterwards.
type client struct {
	endpoint  string
	http      *http.Client
	queries   map[string]*namedQuery
	userAgent string
}

// do posts one named query and decodes data into out.
func (c *client) do(ctx context.Context, op string, vars map[string]any, out any) error {
	q, ok := c.queries[op]
	if !ok {
		return xerrors.Newf("unknown operation %q", op)
	}
	for k := range vars {
		if _, declared := q.vars[k]; !declared {
			return xerrors.Newf("%s: variable $%s is not declared", op, k)
		}
	}

	body, err := json.Marshal(gqlRequest{Query: q.text, OperationName: q.name, Variables: vars})
	if err != nil {
		return xerrors.Wrapf(err, "%s: encode request", op)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return xerrors.Wrapf(err, "%s: build request", op)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return xerrors.Wrapf(err, "%s: post", op)
	}
	defer resp.Body.Close()

	r := io.LimitReader(resp.Body, maxResponseBytes)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(r, 512))
		return xerrors.WithStack(&StatusError{
			Operation:  op,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
		})
	}

	var gr gqlResponse
	if err := json.NewDecoder(r).Decode(&gr); err != nil {
		return xerrors.Wrapf(err, "%s: decode response", op)
	}
	if len(gr.Errors) > 0 {
		msgs := make([]string, 0, len(gr.Errors))
		for _, e := range gr.Errors {
			msgs = append(msgs, e.Message)
		}
		return xerrors.WithStack(&GraphQLError{Operation: op, Messages: msgs})
	}
	if len(gr.Data) == 0 || bytes.Equal(bytes.TrimSpace(gr.Data), []byte("null")) {
		return xerrors.Newf("%s: response has no data", op)
	}
	if err := json.Unmarshal(gr.Data, out); err != nil {
		return xerrors.Wrapf(err, "%s: decode data", op)
	}
	return nil
}
