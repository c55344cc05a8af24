// Package api handles incoming HTTP requests: the authenticated task routes
// and the push endpoint through which the event broker delivers upload
// batches. Handlers translate HTTP concerns into service and pipeline calls
// and map their errors onto status codes without leaking internal detail.
package api
