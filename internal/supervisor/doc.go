// Encore - Setlist Voting Trending & Recommendation Engine
// Copyright 2026 Encore contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/encorehq/encore

// Package supervisor builds the engine's Suture supervision tree.
//
// The tree isolates failures into three layers: events (NATS vote
// consumer), maintenance (cache janitor), and api (HTTP server).
// Services are restarted with exponential backoff; lifecycle events are
// logged through sutureslog into the engine's zerolog output.
package supervisor
