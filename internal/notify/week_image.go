package notify

import (
	"bytes"
	"fmt"
	"image/color"
	"math"
	"sync"
	"time"

	"github.com/Freeeeeet/tutoring_scheduler/internal/model"
	"github.com/fogleman/gg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// Размеры картинки недели
const (
	weekImageWidth  = 1400
	weekImageHeight = 900
	weekHeader      = 100
	weekHourColumn  = 80
	weekLegend      = 150
	weekDayPadding  = 8
	weekMinBlock    = 8.0
	weekRadius      = 6.0
	weekDays        = 7
	weekHourMargin  = 1
)

var (
	weekBackground   = color.RGBA{245, 246, 248, 255}
	weekText         = color.RGBA{80, 85, 90, 220}
	weekHourLine     = color.NRGBA{150, 150, 150, 255}
	weekToday        = color.NRGBA{255, 99, 71, 60}
	weekEvenDay      = color.NRGBA{240, 240, 240, 255}
	weekOddDay       = color.NRGBA{225, 225, 225, 255}
	weekNowLine      = color.NRGBA{255, 80, 80, 200}
	weekWindow       = color.NRGBA{133, 193, 85, 90}
	weekSessionText  = color.RGBA{20, 24, 28, 230}
	weekSessionShade = color.RGBA{0, 0, 0, 20}
)

var sessionColors = map[model.SessionStatus]color.RGBA{
	model.SessionStatusRequested:      {255, 214, 102, 230},
	model.SessionStatusPendingPayment: {255, 182, 193, 255},
	model.SessionStatusConfirmed:      {100, 160, 230, 230},
	model.SessionStatusCompleted:      {158, 158, 158, 200},
	model.SessionStatusMissed:         {200, 120, 120, 200},
}

var monthNames = [...]string{"", "Январь", "Февраль", "Март", "Апрель", "Май", "Июнь",
	"Июль", "Август", "Сентябрь", "Октябрь", "Ноябрь", "Декабрь"}

// WeekView данные для картинки недели
type WeekView struct {
	// Любой день нужной недели, неделя начинается с понедельника
	Day      time.Time
	Slots    []*model.AvailabilitySlot
	Sessions []*model.Session
	Now      time.Time
	Loc      *time.Location
}

type fontCache struct {
	mu    sync.Mutex
	fonts map[bool]*opentype.Font
}

var fonts = fontCache{fonts: make(map[bool]*opentype.Font)}

// face возвращает шрифт нужного размера, при ошибке разбора встроенный basicfont
func (c *fontCache) face(size float64, bold bool) font.Face {
	c.mu.Lock()
	defer c.mu.Unlock()

	parsed, ok := c.fonts[bold]
	if !ok {
		data := goregular.TTF
		if bold {
			data = gobold.TTF
		}
		var err error
		if parsed, err = opentype.Parse(data); err != nil {
			return basicfont.Face7x13
		}
		c.fonts[bold] = parsed
	}

	face, err := opentype.NewFace(parsed, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		return basicfont.Face7x13
	}
	return face
}

type weekLayout struct {
	monday    time.Time
	firstHour int
	hours     int
	dayWidth  float64
	cell      float64
}

func (l weekLayout) y(hour float64) float64 {
	return weekHeader + (hour-float64(l.firstHour))*l.cell
}

func (l weekLayout) x(day int) float64 {
	return weekHourColumn + float64(day)*l.dayWidth
}

// dayIndex номер дня недели для t, сутки при переходе на летнее время короче 24 часов
func (l weekLayout) dayIndex(t time.Time) int {
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, l.monday.Location())
	return int(math.Round(midnight.Sub(l.monday).Hours() / 24))
}

// RenderWeek рисует неделю репетитора: окна доступности и занятия поверх них. Отменённые занятия не рисуются.
func RenderWeek(v WeekView) ([]byte, error) {
	local := v.Day.In(v.Loc)
	monday := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, v.Loc)
	monday = monday.AddDate(0, 0, -((int(monday.Weekday()) + 6) % 7))

	sessions := make([]*model.Session, 0, len(v.Sessions))
	weekEnd := monday.AddDate(0, 0, weekDays)
	for _, s := range v.Sessions {
		if s.Status != model.SessionStatusCancelled && s.StartTime.Before(weekEnd) && s.EndTime.After(monday) {
			sessions = append(sessions, s)
		}
	}

	first, last := hourBounds(v.Slots, sessions, v.Loc)
	layout := weekLayout{
		monday:    monday,
		firstHour: first,
		hours:     last - first,
		dayWidth:  float64(weekImageWidth-weekHourColumn-weekLegend) / weekDays,
	}
	layout.cell = float64(weekImageHeight-weekHeader) / float64(layout.hours)

	dc := gg.NewContext(weekImageWidth, weekImageHeight)
	dc.SetColor(weekBackground)
	dc.Clear()

	drawTitle(dc, monday)
	drawHours(dc, layout)

	now := v.Now.In(v.Loc)
	for day := 0; day < weekDays; day++ {
		date := monday.AddDate(0, 0, day)
		drawDay(dc, layout, day, date, sameDay(date, now))
		drawWindows(dc, layout, day, v.Slots, model.DayOfWeekOf(date))
	}
	for _, s := range sessions {
		drawSession(dc, layout, s, v.Loc)
	}
	drawNow(dc, layout, now)
	drawWeekLegend(dc, layout)

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode week image: %w", err)
	}
	return buf.Bytes(), nil
}

// hourBounds диапазон часов [first, last), который покрывает окна и занятия
func hourBounds(slots []*model.AvailabilitySlot, sessions []*model.Session, loc *time.Location) (int, int) {
	first, last := 24, 0
	extend := func(startMin, endMin int) {
		if h := startMin / 60; h < first {
			first = h
		}
		if h := (endMin + 59) / 60; h > last {
			last = h
		}
	}

	for _, slot := range slots {
		extend(int(slot.StartTime), int(slot.EndTime))
	}
	for _, s := range sessions {
		start, end := s.StartTime.In(loc), s.EndTime.In(loc)
		endMin := int(model.TimeOfDayOf(end))
		if !sameDay(start, end) {
			endMin = model.MinutesPerDay
		}
		extend(int(model.TimeOfDayOf(start)), endMin)
	}

	if first >= last {
		return 8, 20
	}
	first = max(first-weekHourMargin, 0)
	last = min(last+weekHourMargin, 24)
	return first, last
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

func drawTitle(dc *gg.Context, monday time.Time) {
	sunday := monday.AddDate(0, 0, weekDays-1)
	title := monthNames[monday.Month()]
	if sunday.Month() != monday.Month() {
		title += " - " + monthNames[sunday.Month()]
	}
	title += fmt.Sprintf(" %d", sunday.Year())

	dc.SetFontFace(fonts.face(25, true))
	dc.SetColor(weekText)
	dc.DrawStringAnchored(title, weekHourColumn, weekHeader/4, 0, 0.5)
}

func drawHours(dc *gg.Context, l weekLayout) {
	dc.SetFontFace(fonts.face(18, false))
	dc.SetColor(weekText)
	for h := 0; h <= l.hours; h++ {
		hour := l.firstHour + h
		dc.DrawStringAnchored(fmt.Sprintf("%02d:00", hour), weekHourColumn-10, l.y(float64(hour)), 1, 0.5)
	}
}

func drawDay(dc *gg.Context, l weekLayout, day int, date time.Time, today bool) {
	x := l.x(day)
	switch {
	case today:
		dc.SetColor(weekToday)
	case day%2 == 0:
		dc.SetColor(weekEvenDay)
	default:
		dc.SetColor(weekOddDay)
	}
	dc.DrawRectangle(x, weekHeader, l.dayWidth, weekImageHeight-weekHeader)
	dc.Fill()

	dc.SetFontFace(fonts.face(24, true))
	dc.SetColor(weekText)
	center := x + l.dayWidth/2
	dc.DrawStringAnchored(date.Format("02.01"), center, weekHeader, 0.5, -1)
	dc.DrawStringAnchored(weekdayNames[date.Weekday()], center, weekHeader, 0.5, -0.2)

	dc.SetLineWidth(0.3)
	dc.SetColor(weekHourLine)
	for h := 0; h <= l.hours; h++ {
		y := l.y(float64(l.firstHour + h))
		dc.DrawLine(x, y, x+l.dayWidth, y)
		dc.Stroke()
	}
}

func drawWindows(dc *gg.Context, l weekLayout, day int, slots []*model.AvailabilitySlot, weekday model.DayOfWeek) {
	dc.SetColor(weekWindow)
	for _, slot := range slots {
		if slot.DayOfWeek != weekday {
			continue
		}
		top := l.y(float64(slot.StartTime) / 60)
		bottom := l.y(float64(slot.EndTime) / 60)
		dc.DrawRectangle(l.x(day)+2, top, l.dayWidth-4, bottom-top)
		dc.Fill()
	}
}

func drawSession(dc *gg.Context, l weekLayout, s *model.Session, loc *time.Location) {
	start, end := s.StartTime.In(loc), s.EndTime.In(loc)
	day := l.dayIndex(start)
	if day < 0 || day >= weekDays {
		return
	}

	startHour := float64(start.Hour()) + float64(start.Minute())/60
	endHour := float64(end.Hour()) + float64(end.Minute())/60
	if !sameDay(start, end) {
		endHour = 24
	}

	x := l.x(day) + weekDayPadding
	y := l.y(startHour) + 2
	w := l.dayWidth - 2*weekDayPadding
	h := max((endHour-startHour)*l.cell, weekMinBlock) - 4

	fill, ok := sessionColors[s.Status]
	if !ok {
		fill = color.RGBA{220, 220, 220, 200}
	}

	dc.SetColor(weekSessionShade)
	dc.DrawRoundedRectangle(x+3, y+3, w, h, weekRadius)
	dc.Fill()

	dc.SetColor(fill)
	dc.DrawRoundedRectangle(x, y, w, h, weekRadius)
	dc.Fill()

	dc.SetColor(darken(fill, 0.8))
	dc.SetLineWidth(1)
	dc.DrawRoundedRectangle(x, y, w, h, weekRadius)
	dc.Stroke()

	dc.SetFontFace(fonts.face(17, true))
	dc.SetColor(weekSessionText)
	dc.DrawStringAnchored(start.Format("15:04")+"-"+end.Format("15:04"), x+8, y+16, 0, 0)
	if h > 30 {
		dc.SetFontFace(fonts.face(15, false))
		dc.DrawStringAnchored(fmt.Sprintf("#%d", s.ID), x+8, y+34, 0, 0)
	}
}

func darken(c color.RGBA, factor float64) color.RGBA {
	return color.RGBA{
		R: uint8(float64(c.R) * factor),
		G: uint8(float64(c.G) * factor),
		B: uint8(float64(c.B) * factor),
		A: c.A,
	}
}

// drawNow красная линия текущего времени, если сейчас внутри недели и диапазона часов
func drawNow(dc *gg.Context, l weekLayout, now time.Time) {
	day := l.dayIndex(now)
	if day < 0 || day >= weekDays {
		return
	}
	hour := float64(now.Hour()) + float64(now.Minute())/60
	if hour < float64(l.firstHour) || hour > float64(l.firstHour+l.hours) {
		return
	}

	dc.SetColor(weekNowLine)
	dc.SetLineWidth(2)
	dc.DrawLine(l.x(day), l.y(hour), l.x(day)+l.dayWidth, l.y(hour))
	dc.Stroke()
}

func drawWeekLegend(dc *gg.Context, l weekLayout) {
	items := []struct {
		label string
		fill  color.Color
	}{
		{"Свободное окно", weekWindow},
		{GetStatusDisplay(model.SessionStatusRequested).Text, sessionColors[model.SessionStatusRequested]},
		{GetStatusDisplay(model.SessionStatusPendingPayment).Text, sessionColors[model.SessionStatusPendingPayment]},
		{GetStatusDisplay(model.SessionStatusConfirmed).Text, sessionColors[model.SessionStatusConfirmed]},
		{GetStatusDisplay(model.SessionStatusCompleted).Text, sessionColors[model.SessionStatusCompleted]},
		{GetStatusDisplay(model.SessionStatusMissed).Text, sessionColors[model.SessionStatusMissed]},
	}

	x := l.x(weekDays) + 10
	y := float64(weekImageHeight) - 30*float64(len(items)) - 20
	dc.SetFontFace(fonts.face(12, false))
	for _, item := range items {
		dc.SetColor(item.fill)
		dc.DrawRoundedRectangle(x, y, 20, 14, 3)
		dc.Fill()

		dc.SetColor(weekText)
		dc.DrawStringAnchored(item.label, x+28, y+8, 0, 0.2)
		y += 30
	}
}
