package output

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

type JobOutput struct {
	ID          int
	Label       string
	Status      string
	Message     string
	StreamLines []string
	Complete    bool
	StartTime   time.Time
	LastUpdated time.Time
	Error       error
}

type ErrorReport struct {
	Label string
	Error error
	Time  time.Time
}

// Manager collects per-job progress from worker goroutines and redraws it on a ticker.
// Every method is safe for concurrent use.
type Manager struct {
	outputs     map[int]*JobOutput
	mutex       sync.RWMutex
	out         io.Writer
	live        bool // redraw in place; false when stdout is not a terminal
	numLines    int
	maxStreams  int // max stream lines kept per job
	errors      []ErrorReport
	doneCh      chan struct{}
	displayTick time.Duration
	jobCount    int
	displayWg   sync.WaitGroup
}

func NewManager() *Manager {
	return newManager(os.Stdout, isTerminal())
}

func newManager(out io.Writer, live bool) *Manager {
	return &Manager{
		outputs:     make(map[int]*JobOutput),
		out:         out,
		live:        live,
		maxStreams:  10,
		doneCh:      make(chan struct{}),
		displayTick: 300 * time.Millisecond,
	}
}

func (m *Manager) Register(label string) int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.jobCount++
	m.outputs[m.jobCount] = &JobOutput{
		ID:          m.jobCount,
		Label:       label,
		Status:      "pending",
		StartTime:   time.Now(),
		LastUpdated: time.Now(),
	}
	return m.jobCount
}

func (m *Manager) update(id int, fn func(*JobOutput)) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if info, exists := m.outputs[id]; exists {
		fn(info)
		info.LastUpdated = time.Now()
	}
}

func (m *Manager) SetMessage(id int, message string) {
	m.update(id, func(info *JobOutput) { info.Message = message })
}

func (m *Manager) SetStatus(id int, status string) {
	m.update(id, func(info *JobOutput) { info.Status = status })
}

func (m *Manager) GetStatus(id int) string {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if info, exists := m.outputs[id]; exists {
		return info.Status
	}
	return "unknown"
}

func (m *Manager) Complete(id int, message string) {
	m.update(id, func(info *JobOutput) {
		info.StreamLines = nil
		if message == "" {
			message = fmt.Sprintf("Completed %s", info.Label)
		}
		info.Message = message
		info.Complete = true
		info.Status = "success"
	})
}

func (m *Manager) ReportError(id int, err error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if info, exists := m.outputs[id]; exists {
		info.Complete = true
		info.Status = "error"
		info.Error = err
		info.Message = fmt.Sprintf("Failed %s", info.Label)
		info.LastUpdated = time.Now()
		m.errors = append(m.errors, ErrorReport{Label: info.Label, Error: err, Time: time.Now()})
	}
}

func (m *Manager) AddStreamLine(id int, line string) {
	m.update(id, func(info *JobOutput) {
		info.StreamLines = append(info.StreamLines, wrapText(line, 2+4)...)
		if len(info.StreamLines) > m.maxStreams {
			info.StreamLines = info.StreamLines[len(info.StreamLines)-m.maxStreams:]
		}
	})
}

// AddProgressBarToStream shows byte progress with throughput as the job's only stream line.
func (m *Manager) AddProgressBarToStream(id int, done, total int64) {
	m.update(id, func(info *JobOutput) {
		elapsed := time.Since(info.StartTime).Seconds()
		text := byteCounter(done, total)
		info.StreamLines = []string{fmt.Sprintf("%s%s %s %s", ProgressBar(done, total, 30),
			debugStyle.Render(text), StyleSymbols["bullet"], debugStyle.Render(FormatSpeed(done, elapsed)))}
	})
}

// AddStepProgress shows progress in discrete units, e.g. segments plus the final merge.
func (m *Manager) AddStepProgress(id int, done, total int64) {
	m.update(id, func(info *JobOutput) {
		info.StreamLines = []string{ProgressBar(done, total, 30) + debugStyle.Render(fmt.Sprintf("%d/%d steps", done, total))}
	})
}

func (m *Manager) statusIndicator(status string) string {
	switch status {
	case "success":
		return successStyle.Render(StyleSymbols["pass"])
	case "error":
		return errorStyle.Render(StyleSymbols["fail"])
	case "warning":
		return warningStyle.Render(StyleSymbols["warning"])
	case "pending":
		return pendingStyle.Render(StyleSymbols["pending"])
	default:
		return infoStyle.Render(StyleSymbols["bullet"])
	}
}

func styleFor(status string) func(strs ...string) string {
	switch status {
	case "success":
		return successStyle.Render
	case "error":
		return errorStyle.Render
	case "warning":
		return warningStyle.Render
	default:
		return pendingStyle.Render
	}
}

func (m *Manager) sortJobs() (active, pending, completed []*JobOutput) {
	all := make([]*JobOutput, 0, len(m.outputs))
	for _, info := range m.outputs {
		all = append(all, info)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	for _, f := range all {
		switch {
		case f.Complete:
			completed = append(completed, f)
		case f.Status == "pending" && f.Message == "":
			pending = append(pending, f)
		default:
			active = append(active, f)
		}
	}
	return active, pending, completed
}

// render writes the job list into at most availableLines lines and returns how many it used.
func (m *Manager) render(availableLines int) int {
	active, pending, completed := m.sortJobs()
	totalNeeded := len(completed)
	for _, group := range [][]*JobOutput{active, pending} {
		for _, f := range group {
			totalNeeded += 1 + len(f.StreamLines)
		}
	}
	if totalNeeded > availableLines {
		maxCompleted := max(availableLines-(totalNeeded-len(completed)), 0)
		if len(completed) > maxCompleted {
			completed = completed[len(completed)-maxCompleted:]
		}
	}

	lineCount := 0
	indent := strings.Repeat(" ", 2+4)
	writeJob := func(info *JobOutput, message string) {
		if lineCount >= availableLines {
			return
		}
		elapsed := time.Since(info.StartTime).Round(time.Second)
		if info.Complete {
			elapsed = info.LastUpdated.Sub(info.StartTime).Round(time.Second)
		}
		fmt.Fprintf(m.out, "  %s %s %s\n", m.statusIndicator(info.Status), debugStyle.Render(elapsed.String()), message)
		lineCount++
		for _, line := range info.StreamLines {
			if lineCount >= availableLines {
				return
			}
			fmt.Fprintf(m.out, "%s%s\n", indent, streamStyle.Render(line))
			lineCount++
		}
	}
	for _, f := range active {
		writeJob(f, styleFor(f.Status)(f.Message))
	}
	for _, f := range pending {
		writeJob(f, pendingStyle.Render("Waiting..."))
	}
	if len(completed) > 10 && lineCount < availableLines {
		fmt.Fprintln(m.out, infoStyle.Render(fmt.Sprintf("  %d jobs completed with varying hidden status ...", len(completed)-8)))
		completed = completed[len(completed)-8:]
		lineCount++
	}
	for _, f := range completed {
		writeJob(f, styleFor(f.Status)(f.Message))
	}
	return lineCount
}

func (m *Manager) updateDisplay() {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	_, termHeight := terminalSize()
	if m.numLines > 0 {
		fmt.Fprintf(m.out, "\033[%dA\033[J", m.numLines)
	}
	m.numLines = m.render(termHeight - 3)
}

func (m *Manager) StartDisplay() {
	m.displayWg.Add(1)
	go func() {
		defer m.displayWg.Done()
		ticker := time.NewTicker(m.displayTick)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if m.live {
					m.updateDisplay()
				}
			case <-m.doneCh:
				if m.live {
					m.updateDisplay()
				} else {
					m.mutex.RLock()
					m.render(len(m.outputs))
					m.mutex.RUnlock()
				}
				m.ShowSummary()
				return
			}
		}
	}()
}

func (m *Manager) StopDisplay() {
	close(m.doneCh)
	m.displayWg.Wait()
}

func (m *Manager) displayErrors() {
	if len(m.errors) == 0 {
		return
	}
	fmt.Fprintln(m.out)
	fmt.Fprintln(m.out, "  "+errorStyle.Bold(true).Render("Errors:"))
	for i, err := range m.errors {
		fmt.Fprintf(m.out, "    %s %s %s\n",
			errorStyle.Render(fmt.Sprintf("%d.", i+1)),
			debugStyle.Render(fmt.Sprintf("[%s]", err.Time.Format("15:04:05"))),
			errorStyle.Render(err.Label))
		fmt.Fprintf(m.out, "      %s\n", errorStyle.Render(fmt.Sprintf("Error: %v", err.Error)))
	}
}

func (m *Manager) ShowSummary() {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	fmt.Fprintln(m.out)
	var success, failures int
	for _, info := range m.outputs {
		switch info.Status {
		case "success":
			success++
		case "error":
			failures++
		}
	}
	fmt.Fprintln(m.out, "  "+success2Style.Render(fmt.Sprintf("Completed %d of %d", success, len(m.outputs))))
	if failures > 0 {
		fmt.Fprintln(m.out, "  "+errorStyle.Render(fmt.Sprintf("Failed %d of %d", failures, len(m.outputs))))
	}
	m.displayErrors()
	fmt.Fprintln(m.out)
}
