package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/hvactools/comfoair/internal/comfoair"
	"github.com/hvactools/comfoair/internal/config"
	"github.com/hvactools/comfoair/internal/discovery"
	"github.com/hvactools/comfoair/internal/monitor"
	"github.com/hvactools/comfoair/internal/protocol"
)

// Command flags
var (
	deviceFlag     string
	scanTimeout    int
	keypressMillis int
)

// commandTimeout bounds one bracketed transaction from the CLI: three
// steps, each retried up to ten times with one-second timeouts.
const commandTimeout = 2 * time.Minute

func init() {
	rootCmd.PersistentFlags().StringVar(&deviceFlag, "device", "",
		"Device URL (/dev/ttyUSB0, socket://host:port, ws://host/path) or a configured controller name")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(setSpeedCmd)
	rootCmd.AddCommand(setClockCmd)
	rootCmd.AddCommand(keypressCmd)
}

// resolveDevice maps the --device flag to a device URL, consulting the
// configuration registry and, as a last resort, mDNS discovery.
func resolveDevice() (string, error) {
	registry, err := config.LoadRegistry()
	if err != nil {
		return "", err
	}

	if device, ok := registry.ResolveDevice(deviceFlag); ok {
		return device, nil
	}

	if registry.Preferences != nil && registry.Preferences.AutoDiscover {
		timeout := time.Duration(registry.Preferences.DiscoverTimeout) * time.Second
		if timeout <= 0 {
			timeout = discovery.DefaultScanTimeout
		}
		fmt.Printf("No device configured; scanning for bridges (%s)...\n", timeout)
		bridges, err := discovery.ScanForBridges(timeout)
		if err != nil {
			return "", fmt.Errorf("discovery failed: %w", err)
		}
		if len(bridges) > 0 {
			fmt.Printf("Using %s\n", bridges[0])
			return bridges[0].DeviceURL(), nil
		}
	}

	return "", fmt.Errorf("no device given: use --device, or configure a default controller")
}

// connect starts the client; the initial connection attempt completes
// before it returns, later failures are retried in the background.
func connect(device string) *comfoair.Client {
	client := comfoair.New(device)
	client.Connect()
	return client
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for ComfoAir serial bridges on the network",
	Long: `Scan for ComfoAir serial-over-TCP bridges using mDNS/DNS-SD discovery.

This command listens for mDNS broadcasts from bridges advertising the
"_comfoair._tcp" service and displays their addresses and metadata.`,
	Example: `  # Scan for 10 seconds (default)
  comfoair-ctl scan

  # Quick 3-second scan
  comfoair-ctl scan --timeout 3`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().IntVar(&scanTimeout, "timeout", 10, "Scan timeout in seconds")
}

func runScan(cmd *cobra.Command, args []string) error {
	fmt.Printf("Scanning for ComfoAir bridges (timeout: %ds)...\n\n", scanTimeout)

	bridges, err := discovery.ScanForBridges(time.Duration(scanTimeout) * time.Second)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	if len(bridges) == 0 {
		fmt.Println("No bridges found.")
		fmt.Println("\nTroubleshooting:")
		fmt.Println("  - Ensure the bridge advertises the _comfoair._tcp service")
		fmt.Println("  - Try increasing --timeout for slower networks")
		fmt.Println("  - Use --device socket://host:port to connect directly")
		return nil
	}

	fmt.Printf("Found %d bridge(s):\n\n", len(bridges))
	for i, bridge := range bridges {
		fmt.Printf("%d. %s\n", i+1, bridge.Name)
		fmt.Printf("   Address: %s\n", bridge.DeviceURL())
		if len(bridge.Metadata) > 0 {
			fmt.Printf("   Metadata: %v\n", bridge.Metadata)
		}
		fmt.Println()
	}

	fmt.Println("Use 'comfoair-ctl status --device <url>' to query a unit")
	return nil
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Query version information from the unit",
	Long: `Query the unit's bootloader, firmware and connector board versions.

The unit answers version queries without taking over control, so this is a
safe first command to verify the connection.`,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	device, err := resolveDevice()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	client := comfoair.NewSyncClient(device)
	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to %s: %w", device, err)
	}
	defer client.Close()

	fmt.Printf("Querying %s...\n\n", device)

	queries := []struct {
		label   string
		pair    *comfoair.CommandPair
		version protocol.Attribute
		name    *protocol.Attribute
	}{
		{"Bootloader", comfoair.BootloaderVersionCommand(), protocol.BootloaderVersion, &protocol.BootloaderName},
		{"Firmware", comfoair.FirmwareVersionCommand(), protocol.FirmwareVersion, &protocol.FirmwareName},
		{"Connector board", comfoair.ConnectorVersionCommand(), protocol.ConnectorVersion, nil},
	}

	for _, q := range queries {
		msg, err := client.Transceive(ctx, q.pair.Tx, q.pair.Reply)
		if err != nil {
			return fmt.Errorf("%s query failed: %w", strings.ToLower(q.label), err)
		}

		line := fmt.Sprintf("%-16s", q.label+":")
		if v, ok := q.version.Decode(msg.Data); ok {
			n := int(v.Number)
			line += fmt.Sprintf(" v%d.%d", n>>8, n&0xFF)
		}
		if q.name != nil {
			if v, ok := q.name.Decode(msg.Data); ok && v.Text != "" {
				line += fmt.Sprintf(" (%s)", v.Text)
			}
		}
		fmt.Println(line)
	}

	return nil
}

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Show a live dashboard of temperatures and airflow",
	Long: `Show a live terminal dashboard with the unit's temperatures, airflow
percentages and fan speed, updating as the unit broadcasts changes.

Fan speed can be changed from the dashboard with the 1-4 keys.`,
	RunE: runMonitor,
}

func runMonitor(cmd *cobra.Command, args []string) error {
	device, err := resolveDevice()
	if err != nil {
		return err
	}

	client := connect(device)
	defer client.Shutdown()

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return runPlainMonitor(client, device)
	}
	return monitor.Run(client, device)
}

// runPlainMonitor streams attribute changes as plain lines when stdout is
// not a terminal (pipes, logs).
func runPlainMonitor(client *comfoair.Client, device string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Monitoring %s (ctrl-c to stop)\n", device)

	for _, attr := range protocol.Attributes() {
		attr := attr
		client.AddAttributeListener(attr, func(_ protocol.Attribute, value protocol.Value) {
			fmt.Printf("%s  %s = %s\n", time.Now().Format(time.TimeOnly), attr.Name, value)
		})
	}

	if err := client.RequestFirmwareVersion(); err != nil {
		return err
	}

	<-ctx.Done()
	return nil
}

var setSpeedCmd = &cobra.Command{
	Use:   "set-speed <1-4>",
	Short: "Set the ventilation level",
	Long: `Set the ventilation level (1=away, 2=low, 3=mid, 4=high).

The unit is switched to PC control for the command and handed back to the
CC-Ease panel afterwards.`,
	Args: cobra.ExactArgs(1),
	RunE: runSetSpeed,
}

func runSetSpeed(cmd *cobra.Command, args []string) error {
	var speed int
	if _, err := fmt.Sscanf(args[0], "%d", &speed); err != nil {
		return fmt.Errorf("invalid speed %q", args[0])
	}

	pair, err := comfoair.FanSpeedCommand(speed)
	if err != nil {
		return err
	}
	if err := runBracketed(pair); err != nil {
		return err
	}
	fmt.Printf("Fan speed set to %d\n", speed)
	return nil
}

var setClockCmd = &cobra.Command{
	Use:   "set-clock",
	Short: "Set the unit's clock to the current local time",
	Long: `Set the unit's real-time clock (weekday, hour and minute) to the
current local time. The protocol carries no date.`,
	RunE: runSetClock,
}

func runSetClock(cmd *cobra.Command, args []string) error {
	now := time.Now()
	if err := runBracketed(comfoair.ClockCommand(now)); err != nil {
		return err
	}
	fmt.Printf("Clock set to %s %02d:%02d\n", now.Weekday(), now.Hour(), now.Minute())
	return nil
}

// keyNames maps CLI key arguments to keypad bits
var keyNames = map[string]int{
	"fan-absent": comfoair.KeyFanAbsent,
	"fan-low":    comfoair.KeyFanLow,
	"fan-mid":    comfoair.KeyFanMid,
	"fan-high":   comfoair.KeyFanHigh,
	"temp-up":    comfoair.KeyTempUp,
	"temp-down":  comfoair.KeyTempDown,
}

var keypressCmd = &cobra.Command{
	Use:   "keypress <key> [key...]",
	Short: "Emulate CC-Ease keypad presses",
	Long: `Emulate pressing one or more CC-Ease keypad keys.

Keys: fan-absent, fan-low, fan-mid, fan-high, temp-up, temp-down.
Multiple keys are pressed simultaneously.`,
	Example: `  # Tap the fan-high key
  comfoair-ctl keypress fan-high

  # Hold temp-up for half a second
  comfoair-ctl keypress temp-up --millis 500`,
	Args: cobra.MinimumNArgs(1),
	RunE: runKeypress,
}

func init() {
	keypressCmd.Flags().IntVar(&keypressMillis, "millis", 100, "Press duration in milliseconds (0-4080)")
}

func runKeypress(cmd *cobra.Command, args []string) error {
	mask := 0
	for _, name := range args {
		bit, ok := keyNames[strings.ToLower(name)]
		if !ok {
			return fmt.Errorf("unknown key %q (valid: fan-absent, fan-low, fan-mid, fan-high, temp-up, temp-down)", name)
		}
		mask |= bit
	}

	pair, err := comfoair.KeypressCommand(mask, keypressMillis)
	if err != nil {
		return err
	}
	if err := runBracketed(pair); err != nil {
		return err
	}
	fmt.Printf("Pressed %s for %dms\n", strings.Join(args, "+"), keypressMillis)
	return nil
}

// runBracketed connects, runs one bracketed transaction to completion and
// shuts the connection down.
func runBracketed(pair *comfoair.CommandPair) error {
	device, err := resolveDevice()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	client := connect(device)
	defer client.Shutdown()

	if err := client.RunTransaction(ctx, pair); err != nil {
		return fmt.Errorf("command failed: %w", err)
	}
	return nil
}
