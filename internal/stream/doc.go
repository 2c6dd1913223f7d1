// Package stream is the HTTP transport for the content widget backend.
//
// Every request is a form POST carrying ac=filter_system_data, the widget
// name, valid_json=1 and the serialized filter state. A page request adds
// mode=articles with start and limit:
//
//	client, err := stream.NewClient(stream.Options{Endpoint: cfg.Endpoint})
//	listing, err := client.Fetch(ctx, stream.PageQuery(store.Raw(), 8, 4))
//
// Transient failures (connection errors, 429 and 5xx) are retried by
// go-retryablehttp with exponential backoff. Each call is tagged with a ULID
// in the X-Request-Id header and the same id is recorded on the Listing so
// log lines on both sides can be joined.
package stream
