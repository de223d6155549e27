// Package federation provides the server-to-server core of an ActivityPub
// instance: HTTP Signature verification, object resolution, the JSON-LD wire
// codec, and an inbox pipeline with at-most-once activity processing.
//
// Inbox pipeline:
//   - InboxPipeline takes a raw delivery through verification, deduplication,
//     and dispatch in that order. Nothing reaches a handler before the Digest
//     header, the HTTP Signature, and the signer/actor match have all been
//     checked, and every activity ID is claimed exactly once no matter how
//     many times a remote server retries.
//
// Object resolution:
//   - ObjectID is a typed reference to a federated object. Dereference walks
//     local storage first and falls back to a signed remote fetch through the
//     instance cache, so concurrent lookups of the same URL coalesce into a
//     single request. Local URLs never leave the process.
//
// Activity handlers:
//   - Dispatcher routes verified activities by kind. DefaultDispatcher covers
//     Create, Follow, Accept, Undo, and Delete; register an ActivityHandler to
//     extend or replace any of them. Unknown kinds are acknowledged and
//     dropped so peers do not retry forever.
package federation
