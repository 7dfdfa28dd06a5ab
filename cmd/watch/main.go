// cmd/watch/main.go
package main

import (
	"flag"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/burningportra/projectx-sub002/internal/config"
	"github.com/burningportra/projectx-sub002/internal/core/domain/trend"
	"github.com/burningportra/projectx-sub002/internal/infrastructure/cache/redis"
	"github.com/burningportra/projectx-sub002/internal/infrastructure/persistence/redis_storage"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Консольный наблюдатель сигналов: слушает Redis и показывает живую
// таблицу последних сигналов по потокам. PostgreSQL ему не нужен.
func main() {
	var (
		configPath = flag.String("config", ".env", "Путь к файлу конфигурации")
	)
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Не удалось загрузить конфигурацию: %v", err)
	}

	rs := redis.NewRedisService(&cfg.Redis)
	if err := rs.Start(); err != nil {
		log.Fatalf("Не удалось подключиться к Redis: %v", err)
	}
	defer rs.Stop()

	sub := redis_storage.NewSignalSubscriber(rs.GetClient())

	// Снимок последних сигналов до подписки, чтобы таблица не была пустой
	pairs := make([][2]string, 0, len(cfg.Streams))
	for _, s := range cfg.Streams {
		pairs = append(pairs, [2]string{s.ContractID, s.Timeframe})
	}
	preload, err := sub.LastSignals(pairs)
	if err != nil {
		log.Fatalf("Не удалось получить последние сигналы: %v", err)
	}

	signals, err := sub.Listen(redis_storage.SignalsChannel)
	if err != nil {
		log.Fatalf("Не удалось подписаться на сигналы: %v", err)
	}
	defer sub.Stop()

	p := tea.NewProgram(newModel(cfg.Streams, preload), tea.WithAltScreen())

	// Сигналы из Redis уходят в интерфейс как сообщения
	go func() {
		for sig := range signals {
			p.Send(signalMsg{sig: sig})
		}
		p.Send(closedMsg{})
	}()

	if _, err := p.Run(); err != nil {
		log.Fatalf("Ошибка интерфейса: %v", err)
	}
}

const feedDepth = 12

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("231")).Background(lipgloss.Color("57")).Padding(0, 1)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("245"))
	upStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	downStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type signalMsg struct{ sig *trend.TrendSignal }

type closedMsg struct{}

type tickMsg time.Time

type model struct {
	streams []config.StreamSpec
	last    map[string]*trend.TrendSignal
	feed    []*trend.TrendSignal
	width   int
	started time.Time
	closed  bool
}

func newModel(streams []config.StreamSpec, preload []*trend.TrendSignal) model {
	last := make(map[string]*trend.TrendSignal, len(streams))
	for _, sig := range preload {
		last[streamKey(sig.ContractID, sig.Timeframe)] = sig
	}
	return model{
		streams: streams,
		last:    last,
		started: time.Now(),
	}
}

func streamKey(contractID, tf string) string {
	return contractID + "/" + tf
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m model) Init() tea.Cmd {
	return tick()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case tickMsg:
		// Перерисовка раз в секунду, чтобы тикал аптайм
		return m, tick()

	case signalMsg:
		m.last[streamKey(msg.sig.ContractID, msg.sig.Timeframe)] = msg.sig
		m.feed = append([]*trend.TrendSignal{msg.sig}, m.feed...)
		if len(m.feed) > feedDepth {
			m.feed = m.feed[:feedDepth]
		}

	case closedMsg:
		m.closed = true
	}
	return m, nil
}

func (m model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("НАБЛЮДАТЕЛЬ СИГНАЛОВ НАЧАЛА ТРЕНДА"))
	b.WriteString(dimStyle.Render(fmt.Sprintf("  аптайм %s", time.Since(m.started).Round(time.Second))))
	if m.closed {
		b.WriteString("  " + downStyle.Render("⚠ подписка закрыта"))
	}
	b.WriteString("\n\n")

	b.WriteString(headerStyle.Render("   " +
		pad("КОНТРАКТ", 24) + " " + pad("ТФ", 4) + " " + pad("ТИП", 15) + " " +
		padLeft("ЦЕНА", 11) + " " + padLeft("БАР", 9) + "  " +
		pad("ПОДТВЕРЖДЕН", 19) + "  ПРАВИЛО"))
	b.WriteString("\n")

	for _, s := range m.streams {
		sig := m.last[streamKey(s.ContractID, s.Timeframe)]
		if sig == nil {
			b.WriteString(dimStyle.Render("   " + pad(s.ContractID, 24) + " " + pad(s.Timeframe, 4) + " нет сигналов"))
			b.WriteString("\n")
			continue
		}
		b.WriteString(renderRow(sig))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(headerStyle.Render("ПОСЛЕДНИЕ СОБЫТИЯ"))
	b.WriteString("\n")
	if len(m.feed) == 0 {
		b.WriteString(dimStyle.Render("пока тихо, ждем подтверждений"))
		b.WriteString("\n")
	}
	for _, sig := range m.feed {
		b.WriteString(renderFeedLine(sig))
		b.WriteString("\n")
	}

	b.WriteString("\n" + helpStyle.Render(m.separator()) + "\n")
	b.WriteString(helpStyle.Render("q - выход"))
	return b.String()
}

func (m model) separator() string {
	w := m.width
	if w <= 0 || w > 96 {
		w = 96
	}
	return strings.Repeat("─", w)
}

func renderRow(sig *trend.TrendSignal) string {
	style := upStyle
	if sig.Type != trend.UptrendStart {
		style = downStyle
	}
	row := fmt.Sprintf("%s %s %s %s %11.4f %9d  %s  %s",
		sig.Emoji(),
		pad(sig.ContractID, 24), pad(sig.Timeframe, 4), pad(string(sig.Type), 15),
		sig.Price, sig.BarIndex,
		sig.TriggerTimestamp.Format("2006-01-02 15:04:05"), sig.RuleName)
	return style.Render(row)
}

func renderFeedLine(sig *trend.TrendSignal) string {
	style := upStyle
	if sig.Type != trend.UptrendStart {
		style = downStyle
	}
	line := fmt.Sprintf("%s %s [%s] %s @ %.4f (бар %d, правило %s)",
		sig.Emoji(), sig.ContractID, sig.Timeframe, sig.Type,
		sig.Price, sig.BarIndex, sig.RuleName)
	return dimStyle.Render(sig.TriggerTimestamp.Format("15:04:05")+" ") + style.Render(line)
}

// pad дополняет строку пробелами справа до n знаков, кириллица по рунам
func pad(s string, n int) string {
	r := utf8.RuneCountInString(s)
	if r >= n {
		return s
	}
	return s + strings.Repeat(" ", n-r)
}

// padLeft дополняет строку пробелами слева до n знаков
func padLeft(s string, n int) string {
	r := utf8.RuneCountInString(s)
	if r >= n {
		return s
	}
	return strings.Repeat(" ", n-r) + s
}
