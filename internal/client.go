package internal

import (
	"encoding/gob"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"launchng/internal/widget"
)

// Client is the terminal monitor. It polls one or more supervisors over
// HTTP and renders their app instances.
type Client struct {
	AlternateMouse bool

	app               *tview.Application
	activeAppsTable   *widget.SortedTable
	archivedAppsTable *widget.SortedTable
	dataDirsTable     *tview.Table
	logTextbox        *tview.TextView

	hosts        []string
	msg          map[string]*Msg
	activeLogs   map[string][]string
	archivedLogs map[string][]string
	logAppKey    string
}

var httpClient = &http.Client{
	Timeout: 10 * time.Second, // This covers the entire request
}

func (client *Client) ProcessLoop(hostList string) {
	for _, host := range strings.Split(hostList, ",") {
		host = strings.TrimSpace(host)
		if strings.Index(host, ":") < 0 {
			host += ":8686"
		}
		client.hosts = append(client.hosts, host)
	}
	client.msg = map[string]*Msg{}

	gob.Register(Msg{})
	gob.Register(ActiveApp{})

	client.setupUI()

	go client.processLoop()
	client.app.Run()
}

func (client *Client) processLoop() {
	client.checkServers()
	ticker := time.NewTicker(30 * time.Second)
	for range ticker.C {
		client.checkServers()
	}
}

func (client *Client) checkServers() {
	for _, host := range client.hosts {
		client.checkServer(host)
	}
}

func (client *Client) getServerData(host string) (*Msg, error) {
	req, err := http.NewRequest("GET", fmt.Sprintf("http://%s/", host), nil)
	if err != nil {
		return nil, err
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var msg Msg
	if err := gob.NewDecoder(resp.Body).Decode(&msg); err != nil {
		return nil, fmt.Errorf("failed to decode message: %w", err)
	}
	return &msg, nil
}

func (client *Client) checkServer(host string) {
	// Retrieve data on the goroutine thread
	msg, err := client.getServerData(host)

	// Modify UI state on the tview thread.
	client.app.QueueUpdateDraw(func() {
		if err != nil {
			client.logTextbox.SetTitle(" Log (error) ")
			client.logTextbox.SetText(err.Error())
			return
		}
		client.msg[host] = msg
		client.drawActiveAppsTable()
		client.drawDataDirsTable()
		client.drawArchivedAppsTable()

		log, ok := client.activeLogs[client.logAppKey]
		if !ok {
			log, ok = client.archivedLogs[client.logAppKey]
		}
		if ok {
			client.logTextbox.SetTitle(fmt.Sprintf(" Log (%s) ", appKeyLabel(client.logAppKey)))
			client.logTextbox.SetText(strings.Join(log, ""))
			client.logTextbox.ScrollToEnd()
		}
	})
}

func (client *Client) setupUI() {
	tview.Styles.PrimitiveBackgroundColor = tcell.ColorDefault

	client.activeAppsTable = widget.NewSortedTable()
	client.activeAppsTable.SetSelectable(true)
	client.activeAppsTable.SetBorder(true)
	client.activeAppsTable.SetTitleAlign(tview.AlignLeft)
	client.activeAppsTable.SetTitle(" Active Apps ")
	client.activeAppsTable.SetSelectedStyle(tcell.StyleDefault.Attributes(tcell.AttrReverse))
	client.activeAppsTable.SetSelectionChangedFunc(client.selectActiveApp)
	client.activeAppsTable.SetHeaders("Host", "App", "State", "URL", "Uptime", "Restarts", "Start Time")
	client.activeAppsTable.SetColumnAlign(4, tview.AlignRight)
	client.activeAppsTable.SetColumnAlign(5, tview.AlignRight)

	client.dataDirsTable = tview.NewTable()
	client.dataDirsTable.SetSelectable(true, false).SetBorder(true).SetTitleAlign(tview.AlignLeft).SetTitle(" Data Directories ")
	client.dataDirsTable.SetSelectedStyle(tcell.StyleDefault.Attributes(tcell.AttrReverse))

	client.archivedAppsTable = widget.NewSortedTable()
	client.archivedAppsTable.SetSelectable(true)
	client.archivedAppsTable.SetBorder(true)
	client.archivedAppsTable.SetTitleAlign(tview.AlignLeft)
	client.archivedAppsTable.SetTitle(" Archived Apps ")
	client.archivedAppsTable.SetSelectedStyle(tcell.StyleDefault.Attributes(tcell.AttrReverse))
	client.archivedAppsTable.SetSelectionChangedFunc(client.selectArchivedApp)
	client.archivedAppsTable.SetHeaders("Host", "App", "State", "Exit Code", "Start Time", "End Time", "Duration")
	client.archivedAppsTable.SetColumnAlign(3, tview.AlignRight)
	client.archivedAppsTable.SetColumnAlign(6, tview.AlignRight)

	client.logTextbox = tview.NewTextView()
	client.logTextbox.SetBorder(true).SetTitle(" Log ").SetTitleAlign(tview.AlignLeft)
	client.logTextbox.ScrollToEnd()

	mainPanel := tview.NewFlex()
	mainPanel.SetDirection(tview.FlexRow)
	mainPanel.AddItem(client.activeAppsTable, 0, 1, true)
	mainPanel.AddItem(client.dataDirsTable, 0, 1, false)
	mainPanel.AddItem(client.archivedAppsTable, 0, 1, false)
	mainPanel.AddItem(client.logTextbox, 0, 1, false)

	client.app = tview.NewApplication()
	client.app.SetRoot(mainPanel, true)
	if !client.AlternateMouse {
		// mouse reporting confuses selection under PuTTy
		client.app.EnableMouse(true)
	}
}

func appKey(host string, app *ActiveApp) string {
	return host + "||" + app.Name + "||" + strconv.FormatInt(app.AppID, 10)
}

func appKeyLabel(key string) string {
	parts := strings.SplitN(key, "||", 3)
	if len(parts) == 3 {
		return parts[1] + " @ " + parts[0]
	}
	return key
}

// Active apps

type activeAppRow struct {
	Host      string
	Name      string
	State     int
	URL       string
	Uptime    time.Duration
	Restarts  int
	StartTime time.Time
}

func (row *activeAppRow) Columns() []string {
	return []string{
		row.Host,
		row.Name,
		StateString(row.State),
		row.URL,
		DurationString(row.Uptime),
		fmt.Sprintf("%d", row.Restarts),
		row.StartTime.Format("2006-01-02 15:04:05"),
	}
}

func (row *activeAppRow) Less(other widget.Row, column int) bool {
	o, ok := other.(*activeAppRow)
	if !ok {
		return false
	}
	switch column {
	case 0:
		return row.Host < o.Host
	case 1:
		return row.Name < o.Name
	case 2:
		return row.State < o.State
	case 3:
		return row.URL < o.URL
	case 4:
		return row.Uptime < o.Uptime
	case 5:
		return row.Restarts < o.Restarts
	case 6:
		return row.StartTime.Before(o.StartTime)
	}
	return false
}

func makeActiveAppRow(host string, app *ActiveApp) *activeAppRow {
	return &activeAppRow{
		Host:      host,
		Name:      app.Name,
		State:     app.State,
		URL:       app.URL,
		Uptime:    time.Since(app.StartTime),
		Restarts:  app.Restarts,
		StartTime: app.StartTime,
	}
}

func (client *Client) drawActiveAppsTable() {
	activeAppsCount := 0
	client.activeLogs = make(map[string][]string)

	keysToRemove := make(map[string]struct{})
	for _, key := range client.activeAppsTable.Keys() {
		keysToRemove[key] = struct{}{}
	}

	for host, msg := range client.msg {
		for _, app := range msg.Actives {
			key := appKey(host, app)
			delete(keysToRemove, key)
			client.activeLogs[key] = app.Tail
			client.activeAppsTable.SetRowData(key, makeActiveAppRow(host, app))
			activeAppsCount++
		}
	}

	for key := range keysToRemove {
		client.activeAppsTable.ClearRowData(key)
	}

	client.activeAppsTable.SetTitle(fmt.Sprintf(" Active Apps [%d] ", activeAppsCount))
}

func (client *Client) selectActiveApp(key string) {
	client.logAppKey = key
	client.archivedAppsTable.SetSelectedStyle(tcell.StyleDefault.Attributes(tcell.AttrReverse | tcell.AttrDim))
	client.activeAppsTable.SetSelectedStyle(tcell.StyleDefault.Attributes(tcell.AttrReverse | tcell.AttrBold))
	client.logTextbox.SetTitle(fmt.Sprintf(" Log (%s) ", appKeyLabel(key)))
	if log, found := client.activeLogs[key]; found {
		client.logTextbox.SetText(strings.Join(log, ""))
		client.logTextbox.ScrollToEnd()
	} else {
		client.logTextbox.SetText("")
	}
}

// Data directories

func (client *Client) drawDataDirsTable() {
	client.dataDirsTable.Clear()
	client.dataDirsTable.SetCell(0, 0, tview.NewTableCell("Host").SetSelectable(false).SetTextColor(tcell.ColorYellow))
	client.dataDirsTable.SetCell(0, 1, tview.NewTableCell("Directory").SetSelectable(false).SetTextColor(tcell.ColorYellow))
	client.dataDirsTable.SetCell(0, 2, tview.NewTableCell("Available Space").SetSelectable(false).SetTextColor(tcell.ColorYellow))
	row := 1
	for _, host := range client.hosts {
		msg, found := client.msg[host]
		if !found {
			continue
		}
		pathList := []string{}
		for k := range msg.DataDirs {
			pathList = append(pathList, k)
		}
		sort.Strings(pathList)
		for _, path := range pathList {
			client.dataDirsTable.SetCell(row, 0, tview.NewTableCell(host))
			client.dataDirsTable.SetCell(row, 1, tview.NewTableCell(path))
			client.dataDirsTable.SetCell(row, 2, tview.NewTableCell(SpaceString(msg.DataDirs[path])).SetAlign(tview.AlignRight))
			row++
		}
	}
}

// Archived apps

type archivedAppRow struct {
	Host      string
	Name      string
	State     int
	ExitCode  int
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
}

func (row *archivedAppRow) Columns() []string {
	return []string{
		row.Host,
		row.Name,
		StateString(row.State),
		fmt.Sprintf("%d", row.ExitCode),
		row.StartTime.Format("2006-01-02 15:04:05"),
		row.EndTime.Format("2006-01-02 15:04:05"),
		DurationString(row.Duration),
	}
}

func (row *archivedAppRow) Less(other widget.Row, column int) bool {
	o, ok := other.(*archivedAppRow)
	if !ok {
		return false
	}
	switch column {
	case 0:
		return row.Host < o.Host
	case 1:
		return row.Name < o.Name
	case 2:
		return row.State < o.State
	case 3:
		return row.ExitCode < o.ExitCode
	case 4:
		return row.StartTime.Before(o.StartTime)
	case 5:
		return row.EndTime.Before(o.EndTime)
	case 6:
		return row.Duration < o.Duration
	}
	return false
}

func makeArchivedAppRow(host string, app *ActiveApp) *archivedAppRow {
	return &archivedAppRow{
		Host:      host,
		Name:      app.Name,
		State:     app.State,
		ExitCode:  app.ExitCode,
		StartTime: app.StartTime,
		EndTime:   app.EndTime,
		Duration:  app.EndTime.Sub(app.StartTime),
	}
}

func (client *Client) drawArchivedAppsTable() {
	archivedStopped := 0
	archivedFailed := 0
	client.archivedLogs = make(map[string][]string)

	keysToRemove := make(map[string]struct{})
	for _, key := range client.archivedAppsTable.Keys() {
		keysToRemove[key] = struct{}{}
	}

	for host, msg := range client.msg {
		for _, app := range msg.Archived {
			key := appKey(host, app)
			delete(keysToRemove, key)
			client.archivedLogs[key] = app.Tail
			client.archivedAppsTable.SetRowData(key, makeArchivedAppRow(host, app))
			switch app.State {
			case AppStopped:
				archivedStopped++
			case AppErrored, AppKilled:
				archivedFailed++
			}
		}
	}

	for key := range keysToRemove {
		client.archivedAppsTable.ClearRowData(key)
	}

	if archivedFailed > 0 {
		client.archivedAppsTable.SetTitle(fmt.Sprintf(" Archived Apps [%d (%d failed)] ", archivedStopped, archivedFailed))
	} else {
		client.archivedAppsTable.SetTitle(fmt.Sprintf(" Archived Apps [%d] ", archivedStopped))
	}
}

func (client *Client) selectArchivedApp(key string) {
	client.logAppKey = key
	client.activeAppsTable.SetSelectedStyle(tcell.StyleDefault.Attributes(tcell.AttrReverse | tcell.AttrDim))
	client.archivedAppsTable.SetSelectedStyle(tcell.StyleDefault.Attributes(tcell.AttrReverse | tcell.AttrBold))
	client.logTextbox.SetTitle(fmt.Sprintf(" Log (%s) ", appKeyLabel(key)))
	if log, found := client.archivedLogs[key]; found {
		client.logTextbox.SetText(strings.Join(log, ""))
		client.logTextbox.ScrollToEnd()
	} else {
		client.logTextbox.SetText("")
	}
}
