// Package blackboard provides the in-memory coordination structure shared by
// the OiiLike agent roles.
//
// # Overview
//
// The blackboard is the single point of truth through which the producer,
// voidshaper, codeweaver and inquisitor roles exchange work. Agents never call
// each other; they publish tasks, claim the tasks routed to them, write
// resource references, and react to events.
//
// # Core Concepts
//
// Tasks move through pending → running → completed (or failed). Each agent
// role has its own FIFO of pending tasks, and Claim hands the oldest one to
// exactly one caller even under concurrent claims.
//
// Resources are opaque string references (paths, URIs) stored under a fixed
// set of categories chosen at construction. Writes to unknown categories are
// rejected with ErrInvalidCategory.
//
// Events form an append-only log of every state change. Subscriptions receive
// future events over a channel, in log order, without ever running consumer
// code while the blackboard lock is held.
//
// # Usage Example
//
//	board := blackboard.New()
//
//	task := blackboard.NewTask(blackboard.TaskKindGenerateImage, blackboard.AgentVoidShaper,
//		map[string]any{"prompt": "wooden crate texture"})
//	if err := board.Publish(ctx, task); err != nil {
//		log.Fatal(err)
//	}
//
//	claimed, err := board.Claim(ctx, blackboard.AgentVoidShaper)
//	if blackboard.IsNotFound(err) {
//		// nothing to do yet
//	}
//
//	_ = board.UpdateResource(ctx, blackboard.CategoryTextures, "crate", "res://assets/crate.png")
//	_, _ = board.Complete(ctx, claimed.ID, map[string]any{"path": "res://assets/crate.png"})
//
// # Design Principles
//
// - Explicit lifecycle: every Blackboard is constructed with New; there is no package-level instance
// - Explicit results: not-found, not-running and invalid-category cases are distinct errors
// - No persistence: state lives for the lifetime of the value
package blackboard
