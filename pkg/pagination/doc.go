// Package pagination walks cursor-paginated endpoints to completion.
//
// The Reader list API returns an opaque nextPageCursor with every page; the
// cursor must be sent back verbatim and a null cursor marks the last page.
// The fetcher issues one request at a time, asks a ratelimit.Limiter for a
// slot before each request and accumulates results in arrival order.
//
// Example usage:
//
//	client, _ := readwise.New(readwise.DefaultConfig(token))
//	limiter := ratelimit.NewLocal(ratelimit.DefaultRequests, ratelimit.DefaultWindow)
//	fetcher := pagination.NewFetcher[readwise.Item](client, limiter)
//	items, err := fetcher.FetchAll(ctx)
//
// The fetcher:
//   - Starts without a cursor
//   - Waits for the limiter before every request (the first one passes immediately)
//   - Stops when a page carries no cursor
//   - Fails the whole walk on the first page error (no retries, no partial results)
package pagination
