// SPDX-FileCopyrightText: 2026 The guestshell authors
//
// SPDX-License-Identifier: MIT

package qemu

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"
)

// qmpClient is a minimal QMP control connection: capability negotiation,
// synchronous command execution and human-monitor-command passthrough. Async
// events are read and dropped.
type qmpClient struct {
	mu   sync.Mutex
	conn net.Conn
	dec  *json.Decoder
}

type qmpMessage struct {
	QMP    json.RawMessage `json:"QMP,omitempty"`
	Return json.RawMessage `json:"return,omitempty"`
	Event  string          `json:"event,omitempty"`
	Error  *qmpError       `json:"error,omitempty"`
}

type qmpError struct {
	Class string `json:"class"`
	Desc  string `json:"desc"`
}

func (e *qmpError) Error() string {
	return "qmp " + e.Class + ": " + e.Desc
}

type qmpRequest struct {
	Execute   string         `json:"execute"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// dialQMP connects to the QMP socket, retrying until the server side exists,
// and negotiates capabilities.
func dialQMP(ctx context.Context, path string, timeout time.Duration) (*qmpClient, error) {
	deadline := time.Now().Add(timeout)

	var (
		conn net.Conn
		err  error
	)

	for {
		conn, err = net.Dial("unix", path)
		if err == nil {
			break
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("qmp dial: %w", err)
		}

		select {
		case <-time.After(50 * time.Millisecond):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	client := &qmpClient{
		conn: conn,
		dec:  json.NewDecoder(conn),
	}

	// Server greets first, then expects capability negotiation.
	var greeting qmpMessage
	if err := client.dec.Decode(&greeting); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("qmp greeting: %w", err)
	}

	if _, err := client.execute("qmp_capabilities", nil); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return client, nil
}

func (c *qmpClient) execute(cmd string, args map[string]any) (json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	req := qmpRequest{Execute: cmd, Arguments: args}

	if err := json.NewEncoder(c.conn).Encode(req); err != nil {
		return nil, fmt.Errorf("qmp %s: %w", cmd, err)
	}

	for {
		var msg qmpMessage
		if err := c.dec.Decode(&msg); err != nil {
			return nil, fmt.Errorf("qmp %s: %w", cmd, err)
		}

		// Async events may arrive interleaved with the response.
		if msg.Event != "" {
			continue
		}

		if msg.Error != nil {
			return nil, fmt.Errorf("qmp %s: %w", cmd, msg.Error)
		}

		return msg.Return, nil
	}
}

// hmp runs a human monitor command, the escape hatch for monitor features
// without a QMP equivalent, like savevm.
func (c *qmpClient) hmp(command string) (string, error) {
	ret, err := c.execute("human-monitor-command",
		map[string]any{"command-line": command})
	if err != nil {
		return "", err
	}

	var out string
	if err := json.Unmarshal(ret, &out); err != nil {
		return "", fmt.Errorf("hmp result: %w", err)
	}

	return out, nil
}

func (c *qmpClient) quit() error {
	_, err := c.execute("quit", nil)
	return err
}

func (c *qmpClient) close() error {
	return c.conn.Close()
}
