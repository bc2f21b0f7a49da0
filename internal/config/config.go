// Package config resolves the robot endpoint and link mode for go-teleop.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// LinkMode identifies how the robot is reached.
type LinkMode string

const (
	// LinkUSB is a local wired link (daemon reachable on localhost).
	LinkUSB LinkMode = "usb"
	// LinkWiFi is a remote wireless link.
	LinkWiFi LinkMode = "wifi"
)

// Default daemon configuration.
const (
	DefaultDaemonPort = "8000"
	DefaultUSBHost    = "localhost"

	// Throttle intervals per link mode. The wired link tolerates a much
	// higher command rate than WiFi.
	USBThrottleInterval  = 20 * time.Millisecond
	WiFiThrottleInterval = 50 * time.Millisecond
)

// Link describes a resolved robot endpoint.
type Link struct {
	Mode             LinkMode
	BaseURL          string // HTTP base, e.g. http://192.168.68.80:8000
	StreamURL        string // ws stream, e.g. ws://192.168.68.80:8000/api/move/ws
	ThrottleInterval time.Duration
}

// Resolve builds a Link for the given mode and robot host.
// For LinkUSB the host argument is ignored and localhost is used.
func Resolve(mode LinkMode, host string) Link {
	if mode == LinkUSB {
		host = DefaultUSBHost
	}
	return Link{
		Mode:             mode,
		BaseURL:          fmt.Sprintf("http://%s:%s", host, DefaultDaemonPort),
		StreamURL:        fmt.Sprintf("ws://%s:%s/api/move/ws", host, DefaultDaemonPort),
		ThrottleInterval: throttleFor(mode),
	}
}

func throttleFor(mode LinkMode) time.Duration {
	if mode == LinkUSB {
		return USBThrottleInterval
	}
	return WiFiThrottleInterval
}

// ParseLinkMode converts a string to a LinkMode, defaulting to wifi.
func ParseLinkMode(s string) LinkMode {
	if strings.EqualFold(s, string(LinkUSB)) {
		return LinkUSB
	}
	return LinkWiFi
}

// RobotHost returns the robot host from ROBOT_IP env var.
// Falls back to the provided default if not set.
func RobotHost(defaultHost string) string {
	if ip := os.Getenv("ROBOT_IP"); ip != "" {
		return ip
	}
	return defaultHost
}

// LinkModeFromEnv returns the link mode from TELEOP_LINK env var.
// Falls back to the provided default if not set.
func LinkModeFromEnv(def LinkMode) LinkMode {
	if v := os.Getenv("TELEOP_LINK"); v != "" {
		return ParseLinkMode(v)
	}
	return def
}
