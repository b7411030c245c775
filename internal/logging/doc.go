// Package logging builds the zerolog loggers used across finwatch and carries
// them, together with a ulid trace ID, through context.Context.
//
// Every log line written with .Ctx(ctx) picks up the trace_id of that context
// through a hook, so one `finwatch watch` session or one loader cycle can be
// followed through the log file.
package logging
