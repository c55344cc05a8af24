// Package gcs adapts Google Cloud Storage buckets to the blob store used by
// the thumbnail pipeline and issues signed upload URLs for attachments.
package gcs
