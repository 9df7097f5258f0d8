package borg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// CreateArchive stores o.Paths as archive o.Archive.
func (c *Client) CreateArchive(ctx context.Context, o CreateOptions) (*ArchiveResult, error) {
	if o.Archive == "" {
		return nil, errors.New("borg create: archive name required")
	}
	if len(o.Paths) == 0 {
		return nil, errors.New("borg create: at least one path required")
	}

	args := []string{"--json"}
	for _, p := range o.Patterns {
		args = append(args, "--pattern", p.String())
	}
	args = append(args, o.Repository+"::"+o.Archive)
	args = append(args, o.Paths...)

	out, warns, err := c.run(ctx, "create", o.Passphrase, args...)
	if err != nil {
		return nil, err
	}

	var res ArchiveResult
	if err := json.Unmarshal(out, &res); err != nil {
		return nil, fmt.Errorf("decoding borg create output: %w", err)
	}
	res.Warnings = warns
	return &res, nil
}
