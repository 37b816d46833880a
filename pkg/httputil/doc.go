// Package httputil provides retry helpers for the HTTP clients that download
// dependency archives.
//
// Transient failures (connection errors, timeouts, 5xx responses) are marked
// with [Retryable]; [Retry] re-runs an operation only for errors so marked,
// doubling the delay between attempts:
//
//	err := httputil.RetryWithBackoff(ctx, func() error {
//	    data, err = download(ctx, url)
//	    return err
//	})
//
// A 404 for a tag archive is permanent and is returned at once.
package httputil
