// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session holds the question being composed and sends it.
//
// # Key Types
//
//   - Manager: draft, attachments and the send action over a conversation.Store
//   - Draft: question text plus attachments
//   - Status: summary for the prompt line
//
// # Usage
//
//	mgr := session.NewManager(store, reconciler, session.DefaultConfig())
//	mgr.SetQuestion("Асансьорът пропада леко при спиране на етаж.")
//	mgr.Attach(model.Attachment{Name: "panel.jpg", MIMEType: "image/jpeg", Data: data})
//	if err := mgr.Send(ctx); errors.Is(err, stream.ErrProducerFailure) {
//	    // the draft holds the question and files again
//	}
package session
