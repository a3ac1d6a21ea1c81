package task

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ja7ad/rectask/pkg/report"
)

const (
	DefaultTaskPath      = "/api/task/{id}"
	DefaultExecutionPath = "/api/task/execution/{id}"
)

// ErrNotFound is returned when the service has no record for the id.
var ErrNotFound = errors.New("task: not found")

// Client fetches and updates task records through a report.Doer.
type Client struct {
	doer          report.Doer
	taskPath      string
	executionPath string
}

// NewClient creates a Client. Empty paths take the defaults.
//
// Paths are templates: "{id}" is replaced with the escaped task id. A path
// without the placeholder gets "?id=<id>" appended instead.
func NewClient(doer report.Doer, taskPath, executionPath string) *Client {
	if taskPath == "" {
		taskPath = DefaultTaskPath
	}
	if executionPath == "" {
		executionPath = DefaultExecutionPath
	}
	return &Client{doer: doer, taskPath: taskPath, executionPath: executionPath}
}

// Fetch returns the record for id.
func (c *Client) Fetch(ctx context.Context, id string) (Record, error) {
	var rec Record
	if err := c.doer.Do(ctx, http.MethodGet, Expand(c.taskPath, id), nil, &rec); err != nil {
		return Record{}, classify(err, id)
	}
	if rec.ID == "" {
		rec.ID = id
	}
	return rec, nil
}

// UpdateStatus patches the execution status of id.
func (c *Client) UpdateStatus(ctx context.Context, id string, p Patch) error {
	if err := c.doer.Do(ctx, http.MethodPatch, Expand(c.executionPath, id), p, nil); err != nil {
		return classify(err, id)
	}
	return nil
}

// Expand fills the id into a path template.
func Expand(tmpl, id string) string {
	esc := url.PathEscape(id)
	if strings.Contains(tmpl, "{id}") {
		return strings.ReplaceAll(tmpl, "{id}", esc)
	}
	sep := "?"
	if strings.Contains(tmpl, "?") {
		sep = "&"
	}
	return tmpl + sep + "id=" + url.QueryEscape(id)
}

func classify(err error, id string) error {
	var se *report.StatusError
	if errors.As(err, &se) && se.Code == http.StatusNotFound {
		return fmt.Errorf("%w: %s: %w", ErrNotFound, id, err)
	}
	return err
}
