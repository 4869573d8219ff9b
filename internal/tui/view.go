// internal/tui/view.go
package tui

import (
	"fmt"
	"strings"

	"github.com/AlverezYari/skyframe/internal/messages"
	"github.com/charmbracelet/lipgloss"
)

// Style definitions
var (
	headerStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("62")).
			Foreground(lipgloss.Color("0")).
			Padding(0, 1)

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("237")).
			Foreground(lipgloss.Color("250")).
			Padding(0, 1)

	mainContentStyle = lipgloss.NewStyle().
				Padding(1, 0)

	tabStyle = lipgloss.NewStyle().
			Padding(0, 1)

	activeTabStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Background(lipgloss.Color("62")).
			Foreground(lipgloss.Color("0"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	stateStyles = map[messages.ConnectionState]lipgloss.Style{
		messages.Established:  lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		messages.Connecting:   lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		messages.Disconnected: lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}
)

const keyHelp = "e expose | l loop | t trigger | m rendering | +/- time | s storage | r reconnect | q quit"

// View renders the UI
func (m Model) View() string {
	timeStr := m.currentTime.Format("Mon Jan 2 15:04:05 2006")

	headerContent := lipgloss.JoinHorizontal(
		lipgloss.Center,
		"Skyframe "+m.addr,
		lipgloss.NewStyle().
			Width(max(m.width-len(m.addr)-14, 0)).
			Align(lipgloss.Right).
			Render(timeStr),
	)
	header := headerStyle.Width(m.width).Render(headerContent)

	mainContent := mainContentStyle.Render(m.renderActiveTabContent())

	statusBar := statusBarStyle.Width(m.width).Render(
		fmt.Sprintf("Status: %s | %s", m.status, keyHelp),
	)

	return fmt.Sprintf("%s\n%s\n%s\n%s", header, m.renderTabs(), mainContent, statusBar)
}

func (m Model) renderTabs() string {
	var renderedTabs []string
	for _, t := range m.tabs {
		style := tabStyle
		if t.id == m.activeTab {
			style = activeTabStyle
		}
		renderedTabs = append(renderedTabs, style.Render(fmt.Sprintf("%d %s", int(t.id)+1, t.title)))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, renderedTabs...)
}

func (m Model) renderActiveTabContent() string {
	if m.activeTab == logTab {
		return m.logViewport.View()
	}
	if m.view == nil {
		return "Waiting for the service..."
	}
	switch m.activeTab {
	case cameraTab:
		return m.renderCamera(m.view)
	case storageTab:
		return m.renderStorage(m.view.StorageDetail)
	}
	return ""
}

func renderState(label string, state messages.ConnectionState) string {
	return fmt.Sprintf("%s %s", labelStyle.Render(fmt.Sprintf("%-9s", label)), stateStyles[state].Render(string(state)))
}

func (m Model) renderCamera(view *messages.ViewState) string {
	var content strings.Builder
	content.WriteString(renderState("Camera", view.Status.Camera) + "\n")
	content.WriteString(renderState("Exposure", view.Status.Exposure) + "\n")
	content.WriteString(renderState("Storage", view.Status.Storage) + "\n")
	content.WriteString(renderState("Trigger", view.Status.Trigger) + "\n\n")

	params := view.CameraParams
	content.WriteString(fmt.Sprintf("Detail:      %s\n", view.Detail))
	content.WriteString(fmt.Sprintf("Loop:        %v (trigger required: %v)\n", params.LoopEnabled, params.TriggerRequired))
	content.WriteString(fmt.Sprintf("Exposure:    %gs at gain %d\n", params.Time, params.Gain))
	content.WriteString(fmt.Sprintf("Cooling:     %g°C, heating %.0f%%\n", params.Temperature, params.HeatingPwm*100))
	content.WriteString(fmt.Sprintf("Rendering:   %s at %dx%d\n", params.Rendering, params.RenderSize.X, params.RenderSize.Y))

	if props := view.CameraProperties; props != nil {
		content.WriteString(fmt.Sprintf("Sensor:      %dx%d\n", props.Basic.Width, props.Basic.Height))
		for _, p := range props.Other {
			content.WriteString(fmt.Sprintf("  %s: %s\n", labelStyle.Render(p.Name), p.Value))
		}
	}
	if m.frames > 0 {
		content.WriteString(fmt.Sprintf("Frames:      %d, last %dx%d at %s\n",
			m.frames, m.lastImage.X, m.lastImage.Y, m.lastFrameAt.Format("15:04:05")))
	}
	return content.String()
}

func (m Model) renderStorage(detail messages.StorageDetail) string {
	var content strings.Builder
	content.WriteString(fmt.Sprintf("Enabled:     %v\n", detail.Enabled))
	content.WriteString(fmt.Sprintf("Directory:   %s (next %05d)\n", detail.Directory, detail.Counter))
	switch detail.State.State {
	case messages.StorageAvailable:
		content.WriteString(fmt.Sprintf("Free:        %.1f of %.1f GB\n", detail.State.FreeGigabytes, detail.State.TotalGigabytes))
	case messages.StorageError:
		content.WriteString(fmt.Sprintf("Free:        error: %s\n", detail.State.Error))
	default:
		content.WriteString("Free:        unknown\n")
	}

	content.WriteString("\nRecent frames:\n")
	for i := len(detail.Log) - 1; i >= 0; i-- {
		record := detail.Log[i]
		line := fmt.Sprintf("%s %s", record.Name, record.Outcome)
		if record.Reason != "" {
			line += ": " + record.Reason
		}
		content.WriteString(labelStyle.Render(line) + "\n")
	}
	return content.String()
}
