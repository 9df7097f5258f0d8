package borg

import "context"

const DefaultEncryption = "keyfile-blake2"

// InitRepository creates a new repository.
func (c *Client) InitRepository(ctx context.Context, o InitOptions) error {
	enc := o.Encryption
	if enc == "" {
		enc = DefaultEncryption
	}

	args := []string{"--encryption", enc}
	if o.AppendOnly {
		args = append(args, "--append-only")
	}
	if o.MakeParentDirs {
		args = append(args, "--make-parent-dirs")
	}
	if o.StorageQuota != "" {
		args = append(args, "--storage-quota", o.StorageQuota)
	}
	args = append(args, o.Repository)

	_, _, err := c.run(ctx, "init", o.Passphrase, args...)
	return err
}
