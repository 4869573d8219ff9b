// internal/tui/update.go
package tui

import (
	"fmt"
	"time"

	"github.com/AlverezYari/skyframe/internal/messages"
	"github.com/AlverezYari/skyframe/pkg/frame"
	tea "github.com/charmbracelet/bubbletea"
)

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.logViewport.Width = msg.Width
		m.logViewport.Height = max(msg.Height-6, 3)

	case tickMsg:
		m.currentTime = time.Time(msg)
		return m, timeTickCmd()

	case envelopeMsg:
		cmd := m.handleEnvelope(msg)
		return m, tea.Batch(cmd, waitForEnvelope(m.queue))

	case streamClosedMsg:
		m.status = "Service stopped"
		return m, tea.Quit

	case sendErrMsg:
		m.status = fmt.Sprintf("Command failed: %v", msg.err)
		m.addLog("ERROR", m.status)

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	if m.activeTab == logTab {
		m.logViewport, cmd = m.logViewport.Update(msg)
	}
	return m, cmd
}

func (m *Model) handleEnvelope(msg envelopeMsg) tea.Cmd {
	switch msg.Message.Type {
	case messages.ClientView:
		view := *msg.Message.View
		if m.view == nil || m.view.Detail != view.Detail {
			m.addLog("INFO", view.Detail)
		}
		m.view = &view
		m.status = view.Detail
	case messages.ClientRgbImage:
		if image := msg.Message.Image; image != nil {
			m.lastImage = frame.NewSize(image.Width(), image.Height())
		}
		m.frames++
		m.lastFrameAt = m.currentTime
	case messages.ClientReconnect:
		m.addLog("WARN", "console fell behind, resubscribing")
		m.resubscribe()
		return m.send(messages.NewClientConnected())
	}
	return nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.Close()
		return m, tea.Quit
	case "1":
		m.activeTab = cameraTab
	case "2":
		m.activeTab = storageTab
	case "3":
		m.activeTab = logTab
	case "tab":
		m.activeTab = (m.activeTab + 1) % tabType(len(m.tabs))
	case "e":
		m.status = "Exposure requested"
		return m, m.send(messages.NewExposure())
	case "r":
		m.status = "Reconnect requested"
		return m, m.send(messages.NewReconnect())
	case "l", "t", "m", "+", "-", "s":
		if m.view == nil {
			m.status = "No view received yet"
			return m, nil
		}
		return m, m.send(m.commandFor(msg.String()))
	}

	var cmd tea.Cmd
	if m.activeTab == logTab {
		m.logViewport, cmd = m.logViewport.Update(msg)
	}
	return m, cmd
}

// commandFor builds a toggle or step command from the last view.
func (m *Model) commandFor(key string) messages.StateMessage {
	params := m.view.CameraParams
	switch key {
	case "l":
		return messages.NewCameraParam(messages.CameraParamMessage{Type: messages.EnableLoop, Enabled: !params.LoopEnabled})
	case "t":
		return messages.NewCameraParam(messages.CameraParamMessage{Type: messages.SetTriggerRequired, Enabled: !params.TriggerRequired})
	case "m":
		return messages.NewCameraParam(messages.CameraParamMessage{Type: messages.SetRendering, Rendering: params.Rendering.Next()})
	case "+":
		return messages.NewCameraParam(messages.CameraParamMessage{Type: messages.SetTime, Time: stepTime(params.Time, 2)})
	case "-":
		return messages.NewCameraParam(messages.CameraParamMessage{Type: messages.SetTime, Time: stepTime(params.Time, 0.5)})
	default:
		command := messages.StorageCommand{Type: messages.StorageEnable}
		if m.view.StorageDetail.Enabled {
			command.Type = messages.StorageDisable
		}
		return messages.NewStorageCommand(command)
	}
}

func stepTime(current, factor float64) float64 {
	if current <= 0 {
		return 0.001
	}
	return current * factor
}
