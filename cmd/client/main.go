package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

const sentinel = "BYE"

var addr string

func main() {
	rootCmd := &cobra.Command{
		Use:          "chat-client <name>",
		Short:        "Interactive client for the chat relay",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE:         runClient,
	}
	rootCmd.Flags().StringVar(&addr, "addr", "localhost:8000", "relay server address")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runClient(cmd *cobra.Command, args []string) error {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	defer conn.Close()

	quitCh := make(chan os.Signal, 1)
	signal.Notify(quitCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quitCh)
	go func() {
		if sig, ok := <-quitCh; ok {
			log.Printf("Received signal: %v\n", sig)
			conn.Close()
		}
	}()

	fmt.Printf("Connected to %s, type %s to leave\n", addr, sentinel)
	return chat(conn, args[0], os.Stdin, os.Stdout)
}

// chat sends name, then forwards lines from in to conn and copies everything
// the server sends to out. It returns once the server closes the connection.
func chat(conn net.Conn, name string, in io.Reader, out io.Writer) error {
	received := make(chan error, 1)
	go func() {
		_, err := io.Copy(out, conn)
		received <- err
	}()

	if _, err := fmt.Fprintf(conn, "%s\n", name); err != nil {
		return fmt.Errorf("failed to send name: %w", err)
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case err := <-received:
			return ignoreClosed(err)
		case line, ok := <-lines:
			if !ok {
				// stdin finished, leave and wait for the farewell
				line = sentinel
			}
			if _, err := fmt.Fprintf(conn, "%s\n", line); err != nil {
				return ignoreClosed(<-received)
			}
			if line == sentinel {
				return ignoreClosed(<-received)
			}
		}
	}
}

func ignoreClosed(err error) error {
	if errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return nil
	}
	return err
}
