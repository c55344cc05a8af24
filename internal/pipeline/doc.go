// Package pipeline implements the asynchronous upload pipeline: the
// UploadRouter turns uploaded attachments into thumbnails and records their
// location, the Broadcaster tells every live client connection which
// artifact changed, and the Registry tracks those connections.
//
// Both consumers implement events.UploadHandler and receive the same batch
// independently. Neither retries; failures of one entry or one connection
// are logged and never affect siblings.
package pipeline
