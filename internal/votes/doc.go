// Encore - Setlist Voting Trending & Recommendation Engine
// Copyright 2026 Encore contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/encorehq/encore

// Package votes consumes vote-cast events and maintains per-item vote
// velocity and positive-ratio state over a sliding window.
//
// Each processed signal schedules a debounced cache invalidation for the
// affected show, artist and global trending tags: bursts of votes on the
// same item within the debounce window trigger at most one invalidation,
// implemented as a coalescing timer per tag group rather than per event.
//
// Events arrive through a Watermill subscriber; production uses NATS
// JetStream (external or embedded), tests use the in-memory gochannel
// Pub/Sub.
package votes
