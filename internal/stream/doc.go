// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream connects answer producers to the conversation store.
//
// A Producer yields a Sequence of Units: text fragments followed by a final
// unit carrying grounding sources. The Reconciler pulls one unit at a time
// and commits each to the store before asking for the next, so every
// fragment is visible (and persisted) in the order it arrived.
//
// # Usage
//
//	rec := stream.NewReconciler(store, producer)
//	err := rec.Run(ctx, convID, stream.Request{Question: "Why does the car overshoot?"})
//	var failure *stream.ProducerFailure
//	if errors.As(err, &failure) {
//	    // restore failure.Question and failure.Attachments into the draft
//	}
package stream
