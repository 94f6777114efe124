package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"time"
)

// Send performs one request/response exchange with the daemon over its unix
// socket. The whole exchange, dial included, is bounded by timeout.
func Send(ctx context.Context, path string, req Request, timeout time.Duration) (Response, error) {
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "unix", path)
	if err != nil {
		return Response{}, err
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return Response{}, fmt.Errorf("set deadline: %w", err)
	}

	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return Response{}, fmt.Errorf("encode request: %w", err)
	}

	// the daemon answers with exactly one JSON line
	line, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil {
		return Response{}, fmt.Errorf("read response: %w", err)
	}

	var resp Response
	if err := json.Unmarshal(line, &resp); err != nil {
		return Response{}, fmt.Errorf("decode response: %w", err)
	}
	return resp, nil
}

// Probe reports whether a live daemon answers on path. A missing socket or a
// refused connection means no owner; any other failure is inconclusive and
// surfaces as an error so the caller does not unlink a healthy socket.
func Probe(ctx context.Context, path string, timeout time.Duration) (bool, error) {
	if _, err := Send(ctx, path, Request{Command: "status"}, timeout); err != nil {
		if isSocketMissing(err) || isConnectionRefused(err) {
			return false, nil
		}
		return false, fmt.Errorf("probe socket: %w", err)
	}
	return true, nil
}

func isSocketMissing(err error) bool {
	return err != nil && errors.Is(err, os.ErrNotExist)
}

func isConnectionRefused(err error) bool {
	return err != nil && errors.Is(err, syscall.ECONNREFUSED)
}
