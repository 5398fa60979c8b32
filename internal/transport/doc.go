// Package transport provides byte-stream connections to a ComfoAir
// controller: a local serial device at 9600 baud, a TCP-transported serial
// bridge (socket://host:port), or a WebSocket bridge (ws://). All three
// satisfy the same Conn interface; the driver above treats them purely as
// byte sources/sinks.
package transport
