package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"posestream/internal/logger"
	"posestream/internal/protocol"
	"posestream/internal/service/receiver"
)

func main() {
	tcpAddr := flag.String("tcp", "", "TCP server address, e.g. 127.0.0.1:9000")
	wsURL := flag.String("ws", "", "WebSocket URL, e.g. ws://127.0.0.1:9001/")
	logDir := flag.String("logs", "logs/client", "Log directory")
	debug := flag.Bool("debug", false, "Log every landmark")
	flag.Parse()

	if (*tcpAddr == "") == (*wsURL == "") {
		log.Fatal("exactly one of -tcp or -ws is required")
	}

	logs, err := logger.New(*logDir, *debug)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logs.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var stream receiver.PayloadStream
	if *tcpAddr != "" {
		stream, err = receiver.DialTCP(ctx, *tcpAddr, logs)
	} else {
		stream, err = receiver.DialWebSocket(ctx, *wsURL, logs)
	}
	if err != nil {
		logs.Close()
		log.Fatalf("Failed to connect: %v", err)
	}
	defer stream.Close()

	messages := make(chan *protocol.Message, 16)
	done := make(chan error, 1)
	go func() {
		done <- receiver.Forward(ctx, stream, protocol.Decode, messages, logs)
		close(messages)
	}()

	received, withPose := 0, 0
	for msg := range messages {
		received++
		if msg.Pose == nil {
			logs.Debug("Message %d: no pose", received)
			continue
		}
		withPose++
		logs.Info("Message %d: pose with %d landmarks", received, len(msg.Pose.Landmarks))
		for i, lm := range msg.Pose.Landmarks {
			logs.Debug("  %2d x=%.3f y=%.3f z=%.3f visibility=%.2f presence=%.2f",
				i, lm.X, lm.Y, lm.Z, lm.Availability.Visibility, lm.Availability.Presence)
		}
	}

	if err := <-done; err != nil && ctx.Err() == nil {
		logs.Error("Stream failed: %v", err)
	}
	fmt.Printf("Received %d messages, %d with a pose\n", received, withPose)
}
