// Command client is a terminal client for the linechat relay: it copies stdin
// lines to the relay and prints what the relay sends back.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"strings"

	"github.com/gookit/color"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := LoadConfig()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	addr := flag.String("addr", cfg.Addr, "relay address")
	username := flag.String("username", cfg.Username, "username sent after the prompt")
	flag.Parse()

	conn, err := net.Dial("tcp", *addr)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", *addr, err)
	}
	defer func() { _ = conn.Close() }()

	if *username != "" {
		if _, err := fmt.Fprintln(conn, *username); err != nil {
			return fmt.Errorf("send username: %w", err)
		}
	}

	go func() {
		_, _ = io.Copy(conn, os.Stdin)
		if tcp, ok := conn.(*net.TCPConn); ok {
			_ = tcp.CloseWrite()
		}
	}()

	return printLines(conn, os.Stdout, cfg.Colours)
}

// printLines writes every line read from r to w, colouring join and leave
// notices when colours is set.
func printLines(r io.Reader, w io.Writer, colours bool) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if _, err := fmt.Fprintln(w, render(scanner.Text(), colours)); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func render(line string, colours bool) string {
	if !colours || !strings.HasPrefix(line, "[") || !strings.HasSuffix(line, "]") {
		return line
	}
	switch {
	case strings.HasSuffix(line, " joined the chat]"):
		return color.New(color.FgGreen).Render(line)
	case strings.HasSuffix(line, " leave the chat]"):
		return color.New(color.FgRed).Render(line)
	default:
		return line
	}
}
