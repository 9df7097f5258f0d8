package borg

import (
	"context"
	"encoding/json"
	"fmt"
)

// ListRepository returns repository metadata and its archives.
func (c *Client) ListRepository(ctx context.Context, o ListOptions) (*RepoInfo, error) {
	out, _, err := c.run(ctx, "list", o.Passphrase, "--json", o.Repository)
	if err != nil {
		return nil, err
	}

	var info RepoInfo
	if err := json.Unmarshal(out, &info); err != nil {
		return nil, fmt.Errorf("decoding borg list output: %w", err)
	}
	return &info, nil
}
