// Encore - Setlist Voting Trending & Recommendation Engine
// Copyright 2026 Encore contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/encorehq/encore

package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks that the configuration is complete and internally
// consistent. Struct tags handle range checks; cross-field rules that
// tags cannot express are checked by hand.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var errs validator.ValidationErrors
		if errors.As(err, &errs) && len(errs) > 0 {
			fe := errs[0]
			return fmt.Errorf("invalid %s: failed %q constraint (value %v)",
				fe.Namespace(), fe.Tag(), fe.Value())
		}
		return err
	}

	if c.Trending.DefaultLimit > c.Trending.MaxLimit {
		return fmt.Errorf("trending default_limit (%d) exceeds max_limit (%d)",
			c.Trending.DefaultLimit, c.Trending.MaxLimit)
	}

	weightSum := c.Trending.VoteActivity + c.Trending.Velocity +
		c.Trending.Popularity + c.Trending.Urgency
	if weightSum <= 0 {
		return fmt.Errorf("trending score weights sum to %v, must be positive", weightSum)
	}

	if c.NATS.Enabled && !c.NATS.EmbeddedServer && c.NATS.URL == "" {
		return fmt.Errorf("NATS url is required when the embedded server is disabled")
	}

	if c.Cache.BadgerEnabled && c.Cache.BadgerPath == "" {
		return fmt.Errorf("cache badger_path is required when the badger tier is enabled")
	}

	return nil
}
