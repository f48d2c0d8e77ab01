// Package sqs provides the Amazon SQS side of the ingestion pipeline: a
// queue client that receives one notification at a time, the backoff policy
// that keeps the poll loop alive through service outages, and the lease that
// renews a message's visibility timeout while its object is being processed.
//
// # Client
//
// [Client] resolves the queue URL once in [Client.Init] and is then shared by
// all workers:
//
//	client, err := sqs.New(&awsCfg, "log-events", logger,
//	    sqs.WithSqsVisibilityTimeout(600),
//	).Init(ctx)
//
//	msg, err := client.Receive(ctx) // nil, nil on an empty long poll
//
// Messages are never deleted implicitly. The caller deletes a message with
// [Client.Delete] only after everything it referenced was processed; any
// other outcome leaves the message in flight until its visibility timeout
// expires and the queue redelivers it.
//
// # Backoff
//
// [RunWithBackoff] wraps a poll loop and retries it after transient service
// errors (see [IsServiceError]) using a [Backoff] policy that doubles from
// one second and wraps back to one second above sixty.
//
// # Leases
//
// A [Lease] is renewed inline by the processing loop: [Lease.MaybeExtend] is
// called once per decoded line and renews the message once 90% of the
// visibility timeout has elapsed. A stalled worker renews nothing, so its
// message returns to the queue. Renewal is best-effort; downstream
// processing must tolerate duplicate deliveries.
package sqs
