package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robokit/go-teleop/internal/config"
	"github.com/robokit/go-teleop/internal/log"
	"github.com/robokit/go-teleop/pkg/scheduler"
	"github.com/robokit/go-teleop/pkg/statepoll"
	"github.com/robokit/go-teleop/pkg/teleop"
	"github.com/robokit/go-teleop/pkg/transport"
	"github.com/robokit/go-teleop/pkg/web"
)

func main() {
	robotIP := flag.String("robot", "192.168.68.80", "Robot IP address (ignored with -link usb)")
	linkFlag := flag.String("link", "wifi", "Link mode: usb or wifi")
	port := flag.String("port", "8088", "Control surface port")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	flag.Parse()

	log.Init(*logLevel)

	mode := config.LinkModeFromEnv(config.ParseLinkMode(*linkFlag))
	link := config.Resolve(mode, config.RobotHost(*robotIP))

	fmt.Println("🤖 Reachy Mini teleoperation")
	fmt.Printf("   Robot:   %s (%s)\n", link.BaseURL, link.Mode)
	fmt.Printf("   Surface: http://localhost:%s\n", *port)
	fmt.Println()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Seed the target with the robot's actual pose so the first drag
	// starts from where the robot is, not from zero.
	poller := statepoll.New(link.BaseURL, statepoll.DefaultInterval)
	seedCtx, cancelSeed := context.WithTimeout(ctx, 3*time.Second)
	seed, err := poller.Poll(seedCtx)
	cancelSeed()
	if err != nil {
		log.Warn("robot state unavailable, starting from neutral pose", "err", err)
	}
	go poller.Run(ctx)

	channel := transport.New(transport.Config{
		StreamURL:   link.StreamURL,
		FallbackURL: link.BaseURL,
	})
	sched := scheduler.New(channel, scheduler.Config{
		ThrottleInterval: link.ThrottleInterval,
	})
	session := teleop.NewSession(teleop.Config{
		LinkMode: string(link.Mode),
	}, sched, channel, seed)

	go session.Run()

	server := web.NewServer(*port, session)
	server.StartAsync()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	fmt.Println("\n👋 Shutting down...")
	if err := server.Shutdown(); err != nil {
		log.Warn("web shutdown failed", "err", err)
	}
	session.Stop()
	cancel()
}
