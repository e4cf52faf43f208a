package mid

import (
	"context"
	"expvar"
	"net/http"
	"runtime"

	"github.com/ardanlabs/hashledger/foundation/web"
)

// This holds the set of metrics we will capture for the service. The
// values are published through expvar on the debug host.
var (
	requestCount   = expvar.NewInt("requests")
	errorCount     = expvar.NewInt("errors")
	panicCount     = expvar.NewInt("panics")
	goroutineCount = expvar.NewInt("goroutines")
)

// Metrics updates program counters.
func Metrics() web.Middleware {

	// This is the actual middleware function to be executed.
	m := func(handler web.Handler) web.Handler {

		// Create the handler that will be attached in the middleware chain.
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

			// Call the next handler.
			err := handler(ctx, w, r)

			// Increment the request and goroutines counter.
			n := requestCount.Value() + 1
			requestCount.Add(1)

			// Every 100 requests update the number of running goroutines.
			if n%100 == 0 {
				goroutineCount.Set(int64(runtime.NumGoroutine()))
			}

			// Increment if there is an error flowing through the request.
			if err != nil {
				errorCount.Add(1)
			}

			// Return the error so it can be handled further up the chain.
			return err
		}

		return h
	}

	return m
}
