// Package domain contains the core business entities, value objects, and
// domain logic of the application: task records, client connections, upload
// event batches and the notification payload pushed to clients. It is
// independent of any specific infrastructure or delivery mechanism.
package domain
