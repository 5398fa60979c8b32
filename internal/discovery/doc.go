// Package discovery provides mDNS-based discovery of ComfoAir serial
// bridges.
//
// A controller's RS-232 link is commonly exposed on the network through a
// serial-over-TCP bridge (ser2net, ESPHome stream server and similar).
// Bridges that advertise themselves via multicast DNS can be located
// automatically instead of configuring host and port by hand.
//
// # Discovery Process
//
//  1. Broadcasts mDNS queries on the local network
//  2. Listens for "_comfoair._tcp" service advertisements
//  3. Collects bridge information (instance name, hostname, IP, port)
//  4. Returns the list of discovered bridges after the timeout period
//
// # Usage Example
//
//	bridges, err := discovery.ScanForBridges(10 * time.Second)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, b := range bridges {
//	    fmt.Printf("Found: %s at %s\n", b.Name, b.DeviceURL())
//	}
package discovery
