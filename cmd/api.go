package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/desertthunder/festa/internal/shared"
	"github.com/urfave/cli/v3"
)

func (r *Runner) writeAPIResponse(status int, body []byte, isJSON bool, data any, pretty bool) error {
	if status < 200 || status >= 300 {
		return fmt.Errorf("%w: status %d, body: %s", shared.ErrAPIRequest, status, string(body))
	}

	if isJSON {
		return r.writeJSON(data, pretty)
	}

	r.output.Write(body)
	r.output.Write([]byte("\n"))
	return nil
}

// APIGet makes a direct, authenticated GET request against the platform API.
func (r *Runner) APIGet(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("path")
	if path == "" {
		return fmt.Errorf("%w: path", shared.ErrMissingArgument)
	}
	if err := r.open(ctx); err != nil {
		return err
	}

	r.logger.Info("GET request", "path", path)

	resp, err := r.api.Get(ctx, path)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	return r.writeAPIResponse(resp.StatusCode, resp.Body, resp.IsJSON, resp.JSONData, !cmd.Bool("json"))
}

// APIPost makes a direct, authenticated POST request against the platform API.
func (r *Runner) APIPost(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("path")
	data := cmd.String("data")

	if path == "" {
		return fmt.Errorf("%w: path", shared.ErrMissingArgument)
	}
	if data == "" {
		return fmt.Errorf("%w: --data flag is required", shared.ErrMissingArgument)
	}

	var jsonTest any
	if err := json.Unmarshal([]byte(data), &jsonTest); err != nil {
		return fmt.Errorf("%w: data is not valid JSON: %v", shared.ErrInvalidInput, err)
	}
	if err := r.open(ctx); err != nil {
		return err
	}

	r.logger.Info("POST request", "path", path)

	resp, err := r.api.Post(ctx, path, []byte(data))
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	return r.writeAPIResponse(resp.StatusCode, resp.Body, resp.IsJSON, resp.JSONData, true)
}
