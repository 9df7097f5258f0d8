package borg

import (
	"context"
	"strconv"
)

// Prune deletes archives not covered by the keep rules.
func (c *Client) Prune(ctx context.Context, o PruneOptions) error {
	var args []string
	add := func(flag string, n int) {
		if n > 0 {
			args = append(args, flag, strconv.Itoa(n))
		}
	}
	add("--keep-last", o.KeepLast)
	add("--keep-hourly", o.KeepHourly)
	add("--keep-daily", o.KeepDaily)
	add("--keep-weekly", o.KeepWeekly)
	add("--keep-monthly", o.KeepMonthly)
	add("--keep-yearly", o.KeepYearly)
	args = append(args, o.Repository)

	_, _, err := c.run(ctx, "prune", o.Passphrase, args...)
	return err
}
