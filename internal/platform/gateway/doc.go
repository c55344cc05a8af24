// Package gateway implements the notification gateway that pushes payloads
// to live client connections.
//
// Client talks to a connection management API over HTTP:
// POST {endpoint}/{stage}/@connections/{id}. A 2xx response means the
// payload was delivered, 410 Gone means the connection no longer exists, and
// anything else is a transport error.
//
// Hub is the websocket edge that serves that management API. It upgrades
// client sessions, registers them in the connection registry, removes them
// on disconnect and writes pushed payloads to the matching socket. A
// single-process deployment can call Hub.PushTo directly instead of going
// through Client.
package gateway
