// Package console is the interactive terminal front end over shell.Controller.
package console

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/rs/zerolog"

	"github.com/kahosan/mosdash/internal/logview"
	"github.com/kahosan/mosdash/internal/model"
	"github.com/kahosan/mosdash/internal/shell"
)

const (
	pageEditor = "editor"
	pageLog    = "log"

	// statusTTL is how long a finished operation stays on the status line.
	statusTTL = 3 * time.Second
)

// Options configures the console.
type Options struct {
	View    logview.View
	Refresh time.Duration // log auto refresh interval, 0 disables
	Logger  zerolog.Logger
}

// Console owns the tview application. All widget access happens on the
// tview event goroutine; background operations only signal a redraw.
type Console struct {
	app  *tview.Application
	ctrl *shell.Controller
	pipe *logview.Pipeline

	dirs     *tview.DropDown
	files    *tview.DropDown
	editor   *tview.TextArea
	search   *tview.InputField
	sizes    *tview.DropDown
	logTable *tview.Table
	pager    *tview.TextView
	status   *tview.TextView
	pages    *tview.Pages

	refresh time.Duration
	ctx     context.Context
	dirty   chan struct{}
	stopped atomic.Bool

	// UI goroutine only.
	syncing   bool
	fileNames []string
	logs      []model.LogEntry

	mu          sync.Mutex
	statusText  string
	statusOp    shell.Op
	statusUntil time.Time
}

func New(backend shell.Backend, opts Options) *Console {
	c := &Console{
		app:     tview.NewApplication(),
		pipe:    logview.NewPipeline(opts.View),
		refresh: opts.Refresh,
		ctx:     context.Background(),
		dirty:   make(chan struct{}, 1),
	}
	c.ctrl = shell.NewController(backend, shell.Options{
		Notifier: c,
		OnChange: func(shell.State) { c.changed() },
		Logger:   opts.Logger,
	})
	c.build()
	return c
}

// Controller exposes the controller driving this console.
func (c *Console) Controller() *shell.Controller { return c.ctrl }

func (c *Console) build() {
	c.syncing = true
	defer func() { c.syncing = false }()

	dirNames := make([]string, len(shell.DirTypes))
	for i, d := range shell.DirTypes {
		dirNames[i] = string(d)
	}
	c.dirs = tview.NewDropDown().SetLabel("Type ").SetOptions(dirNames, c.selectDir)
	c.dirs.SetCurrentOption(0)
	c.files = tview.NewDropDown().SetLabel("File ")
	c.files.SetOptions(nil, c.selectFile)

	c.editor = tview.NewTextArea().SetPlaceholder("Select a file to edit")
	c.editor.SetBorder(true).SetTitle(" editor ")
	c.editor.SetChangedFunc(func() {
		if !c.syncing {
			c.ctrl.Edit(c.editor.GetText())
		}
	})

	c.search = tview.NewInputField().SetLabel("Search ").SetFieldWidth(30)
	c.search.SetChangedFunc(func(text string) {
		c.pipe.SetSearch(text)
		c.renderLog()
	})

	sizeNames := make([]string, len(logview.PageSizes))
	for i, n := range logview.PageSizes {
		sizeNames[i] = strconv.Itoa(n)
	}
	c.sizes = tview.NewDropDown().SetLabel("Page size ").SetOptions(sizeNames, func(text string, _ int) {
		n, _ := strconv.Atoi(text)
		if err := c.pipe.SetPageSize(n); err == nil && !c.syncing {
			c.renderLog()
		}
	})
	c.sizes.SetCurrentOption(slices.Index(logview.PageSizes, c.pipe.View().PageSize))

	c.logTable = tview.NewTable().SetFixed(1, 0).SetSelectable(false, false)
	c.logTable.SetBorder(true).SetTitle(" log ")
	c.pager = tview.NewTextView().SetDynamicColors(true)
	c.status = tview.NewTextView().SetDynamicColors(true)

	keys := tview.NewTextView().SetDynamicColors(true).SetTextAlign(tview.AlignRight).
		SetText(keyHints())
	top := tview.NewFlex().
		AddItem(c.dirs, 16, 0, true).
		AddItem(c.files, 0, 1, false).
		AddItem(keys, 0, 2, false)

	logPage := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(tview.NewFlex().
			AddItem(c.search, 0, 2, true).
			AddItem(c.sizes, 0, 1, false), 1, 0, true).
		AddItem(c.logTable, 0, 1, false).
		AddItem(c.pager, 1, 0, false)

	c.pages = tview.NewPages().
		AddPage(pageEditor, c.editor, true, true).
		AddPage(pageLog, logPage, true, false)

	root := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(top, 1, 0, true).
		AddItem(c.pages, 0, 1, false).
		AddItem(c.status, 1, 0, false)

	c.app.SetRoot(root, true).SetFocus(c.dirs)
	c.bindKeys()
	c.renderLog()
}

// Run shows the console until the operator quits or ctx is cancelled.
func (c *Console) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.ctx = ctx

	stop := context.AfterFunc(ctx, c.app.Stop)
	defer stop()

	go c.renderLoop(ctx)
	go c.ctrl.LoadFiles(ctx)
	go c.ctrl.RefreshLogs(ctx)
	if c.refresh > 0 {
		go c.ctrl.AutoRefresh(ctx, c.refresh)
	}

	err := c.app.Run()
	c.stopped.Store(true)
	return err
}

// changed requests a redraw. Safe from any goroutine, never blocks.
func (c *Console) changed() {
	select {
	case c.dirty <- struct{}{}:
	default:
	}
}

func (c *Console) renderLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.dirty:
			if c.stopped.Load() {
				return
			}
			c.app.QueueUpdateDraw(c.render)
		}
	}
}

func (c *Console) async(fn func(ctx context.Context)) {
	go fn(c.ctx)
}

func (c *Console) selectDir(text string, _ int) {
	if c.syncing || text == "" {
		return
	}
	d, err := shell.ParseDirType(text)
	if err != nil {
		return
	}
	c.async(func(ctx context.Context) { c.ctrl.SelectDirType(ctx, d) })
}

func (c *Console) selectFile(text string, _ int) {
	// Picking the selected file again reloads it and drops local edits.
	if c.syncing || text == "" {
		return
	}
	c.async(func(ctx context.Context) { c.ctrl.SelectFile(ctx, text) })
}

func (c *Console) bindKeys() {
	c.app.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		switch ev.Key() {
		case tcell.KeyCtrlC:
			c.app.Stop()
			return nil
		case tcell.KeyCtrlS:
			c.async(func(ctx context.Context) { c.ctrl.Save(ctx) })
			return nil
		case tcell.KeyCtrlR:
			c.async(func(ctx context.Context) { c.ctrl.Reload(ctx) })
			return nil
		case tcell.KeyF2:
			c.async(func(ctx context.Context) { c.ctrl.Action(ctx, "start") })
			return nil
		case tcell.KeyF3:
			c.async(func(ctx context.Context) { c.ctrl.Action(ctx, "stop") })
			return nil
		case tcell.KeyF4:
			c.async(func(ctx context.Context) { c.ctrl.Action(ctx, "restart") })
			return nil
		case tcell.KeyF5:
			c.async(func(ctx context.Context) { c.ctrl.RefreshLogs(ctx) })
			return nil
		case tcell.KeyCtrlL:
			if c.ctrl.ToggleLog() {
				c.app.SetFocus(c.search)
			} else {
				c.app.SetFocus(c.editor)
			}
			return nil
		case tcell.KeyTab:
			c.cycleFocus(1)
			return nil
		case tcell.KeyBacktab:
			c.cycleFocus(-1)
			return nil
		case tcell.KeyPgUp, tcell.KeyPgDn, tcell.KeyHome, tcell.KeyEnd:
			if c.app.GetFocus() == c.logTable {
				c.navigate(ev.Key())
				return nil
			}
		}
		return ev
	})
}

func (c *Console) focusables() []tview.Primitive {
	if c.ctrl.Snapshot().ShowLog {
		return []tview.Primitive{c.dirs, c.files, c.search, c.sizes, c.logTable}
	}
	return []tview.Primitive{c.dirs, c.files, c.editor}
}

func (c *Console) cycleFocus(step int) {
	items := c.focusables()
	i := slices.Index(items, c.app.GetFocus())
	next := (i + step + len(items)) % len(items)
	c.app.SetFocus(items[next])
}

func (c *Console) navigate(key tcell.Key) {
	switch key {
	case tcell.KeyHome:
		c.pipe.First()
	case tcell.KeyPgUp:
		c.pipe.Prev()
	case tcell.KeyPgDn:
		c.pipe.Next()
	case tcell.KeyEnd:
		c.pipe.Last()
	}
	c.renderLog()
}

// render copies controller state into the widgets. UI goroutine only.
func (c *Console) render() {
	s := c.ctrl.Snapshot()
	c.syncing = true
	defer func() { c.syncing = false }()

	c.dirs.SetCurrentOption(slices.Index(shell.DirTypes, s.Dir))
	if !slices.Equal(c.fileNames, s.Files) {
		c.fileNames = s.Files
		c.files.SetOptions(s.Files, c.selectFile)
	}
	c.files.SetCurrentOption(slices.Index(s.Files, s.File))

	if c.editor.GetText() != s.Content {
		c.editor.SetText(s.Content, false)
	}
	c.editor.SetTitle(editorTitle(s))

	if s.ShowLog {
		c.pages.SwitchToPage(pageLog)
	} else {
		c.pages.SwitchToPage(pageEditor)
	}

	if !sameBatch(c.logs, s.Logs) {
		c.logs = s.Logs
		c.pipe.SetEntries(s.Logs)
		c.pipe.GoTo(c.pipe.View().Page)
	}
	c.renderLog()
	c.status.SetText(c.statusLine())
}

func (c *Console) renderLog() {
	t := c.pipe.Table()
	cells := tableCells(t)

	c.logTable.Clear()
	for row, values := range cells {
		color := tcell.ColorDefault
		if row > 0 {
			color = severityColor(logview.SeverityOf(t.Rows[row-1].Level))
		}
		for col, v := range values {
			cell := tview.NewTableCell(tview.Escape(v)).SetSelectable(false)
			switch {
			case row == 0:
				cell.SetAttributes(tcell.AttrBold)
			case col == 1:
				cell.SetTextColor(color)
			}
			if col == 2 {
				cell.SetExpansion(1)
			}
			c.logTable.SetCell(row, col, cell)
		}
	}
	c.pager.SetText(pagerLine(t))
}

// sameBatch reports whether two log batches are the same fetch result.
func sameBatch(a, b []model.LogEntry) bool {
	if len(a) != len(b) {
		return false
	}
	return len(a) == 0 || &a[0] == &b[0]
}

// Loading implements shell.Notifier.
func (c *Console) Loading(op shell.Op) {
	c.mu.Lock()
	c.statusText = fmt.Sprintf("[yellow]%s...[-]", op)
	c.statusOp = op
	c.statusUntil = time.Time{}
	c.mu.Unlock()
	c.changed()
}

// Done implements shell.Notifier. Silent successes only clear their own
// loading indicator.
func (c *Console) Done(o shell.Outcome) {
	text := outcomeText(o)

	c.mu.Lock()
	if text == "" {
		if c.statusOp == o.Op && c.statusUntil.IsZero() {
			c.statusText, c.statusOp = "", ""
		}
	} else {
		c.statusText, c.statusOp = text, o.Op
		c.statusUntil = time.Now().Add(statusTTL)
		time.AfterFunc(statusTTL, c.changed)
	}
	c.mu.Unlock()
	c.changed()
}

func (c *Console) statusLine() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.statusUntil.IsZero() && time.Now().After(c.statusUntil) {
		c.statusText, c.statusOp, c.statusUntil = "", "", time.Time{}
	}
	return c.statusText
}

func outcomeText(o shell.Outcome) string {
	switch {
	case !o.OK:
		return fmt.Sprintf("[red]%s failed: %s[-]", o.Op, tview.Escape(o.Err.Error()))
	case o.Message != "":
		return "[green]" + tview.Escape(o.Message) + "[-]"
	default:
		return ""
	}
}

func editorTitle(s shell.State) string {
	if s.File == "" {
		return " editor "
	}
	title := " " + string(s.Dir) + "/" + s.File
	switch {
	case s.Saving:
		title += " (saving)"
	case s.Dirty():
		title += " *"
	}
	return title + " "
}

// tableCells lays out the header and the rows of the current page.
func tableCells(t logview.Table) [][]string {
	header := []string{"Time", "Level", "Message"}
	header = append(header, t.Fields...)

	cells := [][]string{header}
	for _, e := range t.Rows {
		row := []string{logview.FormatTimestamp(e), e.Level, e.Message}
		for _, f := range t.Fields {
			row = append(row, logview.FieldValue(e, f))
		}
		cells = append(cells, row)
	}
	return cells
}

func pagerLine(t logview.Table) string {
	if t.Filtered == 0 {
		return fmt.Sprintf("[gray]no entries (%d received)[-]", t.Total)
	}
	return fmt.Sprintf("page [::b]%d[::-] of %d  %d/%d entries  [gray]Home PgUp PgDn End[-]",
		t.Page, t.TotalPages, t.Filtered, t.Total)
}

func severityColor(s logview.Severity) tcell.Color {
	switch s {
	case logview.SeverityError:
		return tcell.ColorRed
	case logview.SeverityWarn:
		return tcell.ColorYellow
	case logview.SeverityDebug:
		return tcell.ColorGray
	default:
		return tcell.ColorDodgerBlue
	}
}

func keyHints() string {
	key := func(s string) string { return "[blue::b]" + s + "[-:-:-]" }
	return strings.Join([]string{
		key("^S") + " save",
		key("^R") + " reload",
		key("F2") + " start",
		key("F3") + " stop",
		key("F4") + " restart",
		key("F5") + " refresh",
		key("^L") + " log",
		key("^C") + " quit",
	}, " | ")
}
