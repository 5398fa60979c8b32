// Package comfoair is the client driver for ComfoAir ventilation
// controllers speaking the CC-Ease RS-232 protocol.
//
// A Client owns the transport lifecycle (connect, reconnect with fixed
// backoff, shutdown) and two workers: a transmit worker that pushes queued
// command/reply transactions through the link one at a time with timeout
// and bounded retries, and a receive worker that reassembles frames from
// the byte stream and dispatches them to the in-flight transaction and to
// registered listeners.
//
// Listeners come in two flavors: raw listeners see every validated message
// (command code plus payload bytes), attribute listeners see cooked values
// (temperatures in degrees, airflow percentages, version strings) and only
// fire when a value actually changes.
//
// The driver is designed to run indefinitely against an unreliable link:
// transport failures are recovered by scheduled reconnection and are never
// surfaced as hard failures.
package comfoair
