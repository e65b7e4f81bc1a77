/*
Package backend is the request/response half of the transport layer.

It performs the startup fetches (catalog, push channel address, version) and
sends mutation requests. Requests are never retried: the backend confirms a
change only by pushing the corresponding event on the state channel.
*/
package backend
