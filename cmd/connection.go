// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/term"

	"github.com/thermoquad/cbusnode/busdriver"
)

// getPassword retrieves the WebSocket basic-auth password from the
// environment, falling back to an interactive, echo-suppressed prompt.
// Grounded on the teacher's cmd/discovery.go ReadPassword helper.
func getPassword() (string, error) {
	if pw := os.Getenv("CBUS_PASSWORD"); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(password), nil
	}
	fmt.Fprintln(os.Stderr)
	return string(passwordBytes), nil
}

// dialWebSocket opens a *websocket.Conn per the --url/--username/
// --no-ssl-verify flags, mirroring the teacher's OpenWebSocketConnection.
func dialWebSocket() (*websocket.Conn, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: wsNoSSLVerify}
	}

	headers := http.Header{}
	if wsUsername != "" {
		password, err := getPassword()
		if err != nil {
			return nil, err
		}
		creds := base64.StdEncoding.EncodeToString([]byte(wsUsername + ":" + password))
		headers.Set("Authorization", "Basic "+creds)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return conn, nil
}

// openDriver builds a busdriver.Driver from the --port/--url flags, matching
// the teacher's OpenConnection dispatch between serial and WebSocket modes.
func openDriver() (busdriver.Driver, string, error) {
	switch {
	case wsURL != "":
		conn, err := dialWebSocket()
		if err != nil {
			return nil, "", err
		}
		return busdriver.NewWebSocket(conn), fmt.Sprintf("WebSocket: %s", wsURL), nil

	case portName != "":
		drv, err := busdriver.OpenSerial(portName, baudRate)
		if err != nil {
			return nil, "", fmt.Errorf("open serial port %s: %w", portName, err)
		}
		return drv, fmt.Sprintf("Serial: %s @ %d baud", portName, baudRate), nil

	default:
		return nil, "", fmt.Errorf("either --port or --url must be specified")
	}
}
