/*
Package health polls a deployed service's readiness endpoint.

A Poller wraps a Checker (normally an HTTPChecker) and repeats it at a
constant interval until the first healthy result or until the attempt
budget is exhausted:

	poller := health.NewPoller(
		health.NewHTTPChecker("http://localhost:8000/health/ready"),
		health.WithMaxAttempts(30),
		health.WithInterval(10*time.Second),
	)
	report, err := poller.PollUntilReady(ctx)

There is no backoff; every failed attempt except the last is followed by
the same pause.
*/
package health
