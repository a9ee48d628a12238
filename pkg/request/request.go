// Package request provides immutable descriptors of HTTP requests, see NewHTTPRequest and NewUploadRequest.
//
// A descriptor fully describes one logical API call: method, URL, headers,
// parameters and their encoding, basic auth credentials, the cache flag
// and, for uploads, the multipart parts. It never changes after construction,
// every With*/And* method returns a modified copy.
//
// Requests are sent using the Sender interface.
// The client.Client is a default implementation of the request.Sender
// interface based on the standard net/http package.
//
// RunGroup, WaitGroup, ParallelRequests are helpers for concurrent requests.
package request
