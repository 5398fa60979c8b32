// Package monitor provides a live terminal dashboard for a ComfoAir
// controller.
//
// The dashboard subscribes to the client's attribute listeners and renders
// temperatures, airflow percentages and the active fan speed as they
// change. Fan speed can be changed directly from the dashboard with the
// number keys.
//
// The package is built on bubbletea; the model is driven entirely by
// messages so the rendering logic stays testable without a terminal.
package monitor
