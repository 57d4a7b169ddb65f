// Package asyncjob submits work to a service that answers with a job handle
// and polls that handle until the job completes, fails, or the attempt budget
// runs out.
//
// Exhausting the budget is not an error: Await returns a Result with TimedOut
// set so callers can decide how loudly to report it. A job that completes with
// an error surfaces as *JobError, and a transport fault while checking is
// returned as-is without further attempts.
package asyncjob
