// Package events fans upload notifications out to the pipeline consumers.
//
// The HTTP push endpoint decodes a batch from the event broker and hands it
// to an Emitter, which delivers the same batch to every registered
// UploadHandler. Handlers run independently: one failing never prevents the
// others from seeing the batch.
//
// The primary components are:
// - UploadHandler: implemented by the thumbnail router and the broadcaster
// - Emitter: interface the HTTP layer publishes through
// - InMemoryEmitter: concurrent in-process fan-out
package events
