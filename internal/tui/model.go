// internal/tui/model.go

// Package tui is a terminal operator console. It watches the same stream as
// the web viewers and sends the same commands.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/AlverezYari/skyframe/internal/messages"
	"github.com/AlverezYari/skyframe/internal/server"
	"github.com/AlverezYari/skyframe/pkg/frame"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

type tabType int

const (
	cameraTab tabType = iota
	storageTab
	logTab
)

type tab struct {
	title string
	id    tabType
}

const logCapacity = 1000

// Hub is the subscription side of the broadcast hub.
type Hub interface {
	Subscribe() (int, <-chan server.Envelope)
	Unsubscribe(id int)
}

// Msg types
type tickMsg time.Time

type envelopeMsg server.Envelope

type streamClosedMsg struct{}

type sendErrMsg struct{ err error }

// Model holds the console state. The hub queue is owned by the model and
// released on quit.
type Model struct {
	hub         Hub
	inbound     func(messages.StateMessage) error
	addr        string
	subID       int
	queue       <-chan server.Envelope
	width       int
	height      int
	status      string
	currentTime time.Time
	activeTab   tabType
	tabs        []tab
	view        *messages.ViewState
	lastImage   frame.Size
	frames      int
	lastFrameAt time.Time
	logViewport viewport.Model
	logs        []string
}

// New subscribes to hub and returns the initial model. addr is only shown.
func New(hub Hub, inbound func(messages.StateMessage) error, addr string) Model {
	now := time.Now()
	id, queue := hub.Subscribe()
	return Model{
		hub:         hub,
		inbound:     inbound,
		addr:        addr,
		subID:       id,
		queue:       queue,
		status:      "Waiting for first view...",
		currentTime: now,
		activeTab:   cameraTab,
		tabs: []tab{
			{title: "Camera", id: cameraTab},
			{title: "Storage", id: storageTab},
			{title: "Log", id: logTab},
		},
		logViewport: func() viewport.Model {
			vp := viewport.New(0, 10)
			vp.MouseWheelEnabled = true
			return vp
		}(),
		logs: make([]string, 0),
	}
}

// Init runs any initial IO
func (m Model) Init() tea.Cmd {
	return tea.Batch(timeTickCmd(), m.send(messages.NewClientConnected()), waitForEnvelope(m.queue))
}

// Close releases the hub subscription. Safe to call more than once.
func (m Model) Close() {
	m.hub.Unsubscribe(m.subID)
}

func (m *Model) addLog(level, message string) {
	entry := fmt.Sprintf("%s [%s] %s", m.currentTime.Format("15:04:05"), level, message)
	m.logs = append(m.logs, entry)
	if len(m.logs) > logCapacity {
		m.logs = m.logs[1:]
	}
	m.logViewport.SetContent(strings.Join(m.logs, "\n"))
	m.logViewport.GotoBottom()
}

// resubscribe swaps the queue after the hub dropped us for falling behind.
func (m *Model) resubscribe() {
	m.hub.Unsubscribe(m.subID)
	m.subID, m.queue = m.hub.Subscribe()
}

func (m Model) send(msg messages.StateMessage) tea.Cmd {
	inbound := m.inbound
	return func() tea.Msg {
		if err := inbound(msg); err != nil {
			return sendErrMsg{err: err}
		}
		return nil
	}
}

func waitForEnvelope(queue <-chan server.Envelope) tea.Cmd {
	return func() tea.Msg {
		env, ok := <-queue
		if !ok {
			return streamClosedMsg{}
		}
		return envelopeMsg(env)
	}
}

// Helper command for time updates
func timeTickCmd() tea.Cmd {
	return tea.Every(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
