/*
Package docstore is the document store adapter used by every domain manager.

# Overview

Documents are JSON-shaped maps keyed by their "id" field and grouped into
named collections. The adapter exposes collection-scoped reads and atomic
single-document writes:

	sessions := docstore.Active(store.Collection("sessions"), "is_active")

	err := sessions.InsertOne(ctx, doc)
	doc, err := sessions.FindOne(ctx, docstore.Filter{"id": sid, "user_id": uid})
	res, err := sessions.UpdateOne(ctx,
		docstore.Filter{"id": sid},
		docstore.NewMutation().Push("tabs", tab).Set("updated_at", now),
	)

# Filters

A Filter maps dotted field paths to expected values. A path that crosses an
array matches when any element matches, so {"tabs.id": "tab_x"} selects the
session containing that tab. A nil expectation matches null or missing fields.

# Mutations

Every Mutation is applied to exactly one document under the backend's
per-document atomicity (mutex, badger transaction, or row lock). Supported
operations: Set, Unset, Push, Pull, SetElem, Inc, ClearIf and Ratio.

# Soft delete

Active wraps a collection so the active flag is part of every predicate.
Managers never filter on the flag themselves. The Stamp option makes DeleteOne
also write a timestamp field alongside the cleared flag.

# Cursors

Find evaluates the whole query, sort and limit included, before returning.
The Cursor walks that snapshot and never observes later writes.

# Backends

memstore (in-process), badgerstore (embedded badger) and pgstore (PostgreSQL
jsonb through gorm) all share Match, Apply and SortDocuments and run the same
contract suite in storetest.
*/
package docstore
