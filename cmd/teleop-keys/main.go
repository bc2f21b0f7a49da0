package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/robokit/go-teleop/internal/config"
	"github.com/robokit/go-teleop/internal/log"
	"github.com/robokit/go-teleop/pkg/pose"
	"github.com/robokit/go-teleop/pkg/scheduler"
	"github.com/robokit/go-teleop/pkg/statepoll"
	"github.com/robokit/go-teleop/pkg/teleop"
	"github.com/robokit/go-teleop/pkg/transport"
)

// Keyboard step sizes per keypress.
const (
	rotStep = 0.05  // radians
	posStep = 0.005 // meters
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	badStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
)

type tickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

type model struct {
	session *teleop.Session
	target  pose.Pose
}

func (m model) Init() tea.Cmd {
	return tickCmd()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		return m, tickCmd()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit

		case "left":
			m.target.Head.Yaw += rotStep
		case "right":
			m.target.Head.Yaw -= rotStep
		case "up":
			m.target.Head.Pitch -= rotStep
		case "down":
			m.target.Head.Pitch += rotStep
		case "q":
			m.target.Head.Roll -= rotStep
		case "e":
			m.target.Head.Roll += rotStep
		case "w":
			m.target.Head.Z += posStep
		case "s":
			m.target.Head.Z -= posStep
		case "a":
			m.target.BodyYaw += rotStep
		case "d":
			m.target.BodyYaw -= rotStep
		case "[":
			m.target.Antennas[0] += rotStep
		case "]":
			m.target.Antennas[0] -= rotStep
		case ",":
			m.target.Antennas[1] += rotStep
		case ".":
			m.target.Antennas[1] -= rotStep

		case "c":
			// Center everything, committed for immediate effect.
			m.target = pose.Pose{}
			m.session.SetTarget(partialOf(m.target), teleop.Commit)
			return m, nil
		case "enter", " ":
			m.session.SetTarget(partialOf(m.target), teleop.Commit)
			return m, nil
		default:
			return m, nil
		}

		m.target = m.target.Clamp()
		m.session.SetTarget(partialOf(m.target), teleop.Continuous)
		return m, nil
	}
	return m, nil
}

// partialOf wraps a full pose so every group is replaced.
func partialOf(p pose.Pose) pose.Partial {
	head := p.Head
	ant := p.Antennas
	yaw := p.BodyYaw
	return pose.Partial{Head: &head, Antennas: &ant, BodyYaw: &yaw}
}

func (m model) View() string {
	ghost := m.session.SmoothedPose()
	diag := m.session.Diagnostics()

	var conn string
	if diag.IsConnected {
		conn = okStyle.Render("● " + diag.Stream)
	} else {
		conn = badStyle.Render("● " + diag.Stream)
	}

	rows := []struct {
		label          string
		target, actual float64
	}{
		{"head yaw", m.target.Head.Yaw, ghost.Head.Yaw},
		{"head pitch", m.target.Head.Pitch, ghost.Head.Pitch},
		{"head roll", m.target.Head.Roll, ghost.Head.Roll},
		{"head z", m.target.Head.Z, ghost.Head.Z},
		{"antenna L", m.target.Antennas[0], ghost.Antennas[0]},
		{"antenna R", m.target.Antennas[1], ghost.Antennas[1]},
		{"body yaw", m.target.BodyYaw, ghost.BodyYaw},
	}

	out := titleStyle.Render("Reachy Mini keyboard teleop") + "  " + conn + "\n\n"
	out += labelStyle.Render(fmt.Sprintf("  %-12s %10s %10s\n", "axis", "target", "ghost"))
	for _, r := range rows {
		out += valueStyle.Render(fmt.Sprintf("  %-12s %10.3f %10.3f\n", r.label, r.target, r.actual))
	}
	out += "\n" + labelStyle.Render(fmt.Sprintf("  in-flight %d  pending %v  link %s\n",
		diag.InFlight, diag.HasPending, diag.Mode))
	out += helpStyle.Render("\n  arrows: look  q/e: roll  w/s: height  a/d: body  [ ] , . : antennas\n" +
		"  enter: commit  c: center  esc: quit\n")
	return out
}

func main() {
	robotIP := flag.String("robot", "192.168.68.80", "Robot IP address (ignored with -link usb)")
	linkFlag := flag.String("link", "wifi", "Link mode: usb or wifi")
	flag.Parse()

	// Keep slog quiet so it does not fight the TUI for the terminal.
	log.Init("error")

	mode := config.LinkModeFromEnv(config.ParseLinkMode(*linkFlag))
	link := config.Resolve(mode, config.RobotHost(*robotIP))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	poller := statepoll.New(link.BaseURL, statepoll.DefaultInterval)
	seedCtx, cancelSeed := context.WithTimeout(ctx, 3*time.Second)
	seed, _ := poller.Poll(seedCtx)
	cancelSeed()

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
	defer session.Stop()

	m := model{session: session, target: seed}
	if _, err := tea.NewProgram(m).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "teleop-keys: %v\n", err)
		os.Exit(1)
	}
}
