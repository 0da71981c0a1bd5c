// Package availability считает свободные часы разработчика на дату.
//
// Рабочее окно задается часами "с" и "до" (минуты отбрасываются). Если "до" меньше "с",
// окно переходит через полночь. Занятые сессии (pending и confirmed) вычеркивают свои часы,
// в том числе когда сессия сама переходит через полночь.
package availability

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/qrave1/MentorCall/internal/domain/apperr"
	"github.com/qrave1/MentorCall/internal/domain/models"
)

const hoursInDay = 24

// Window - рабочее окно в целых часах
type Window struct {
	From int
	To   int
}

// Slot - возможное начало сессии длиной Hours часов
type Slot struct {
	Start int
	Hours int
}

// String форматирует слот как "9:00 - 11:00"; полночь на конце выводится как "00"
func (s Slot) String() string {
	end := (s.Start + s.Hours) % hoursInDay

	endLabel := strconv.Itoa(end)
	if end == 0 {
		endLabel = "00"
	}

	return fmt.Sprintf("%d:00 - %s:00", s.Start, endLabel)
}

// ParseWorkingHours разбирает рабочие часы разработчика
func ParseWorkingHours(from, to string) (Window, error) {
	if from == "" || to == "" {
		return Window{}, apperr.ErrConfiguration
	}

	fromHour, _, err := models.ParseClock(from)
	if err != nil {
		return Window{}, fmt.Errorf("parse working hours from: %w: %w", apperr.ErrConfiguration, err)
	}

	toHour, _, err := models.ParseClock(to)
	if err != nil {
		return Window{}, fmt.Errorf("parse working hours to: %w: %w", apperr.ErrConfiguration, err)
	}

	return Window{From: fromHour, To: toHour}, nil
}

// WindowOf достает окно из профиля разработчика
func WindowOf(profile *models.DeveloperProfile) (Window, error) {
	wh := profile.WorkingHours()
	if wh == nil {
		return Window{}, apperr.ErrConfiguration
	}

	return ParseWorkingHours(wh.From, wh.To)
}

// ComputeSlots возвращает свободные начала по возрастанию часа.
// Для окна через полночь утренние слоты идут раньше вечерних.
func ComputeSlots(w Window, booked []models.BookedSession, requestedHours int) ([]Slot, error) {
	if requestedHours < 1 {
		return nil, fmt.Errorf("requested hours %d: %w", requestedHours, apperr.ErrInvalidInput)
	}

	occupied, err := occupiedHours(booked)
	if err != nil {
		return nil, err
	}

	starts := candidates(w, requestedHours)
	slots := make([]Slot, 0, len(starts))

	for _, start := range starts {
		if free(occupied, start, requestedHours) {
			slots = append(slots, Slot{Start: start, Hours: requestedHours})
		}
	}

	return slots, nil
}

// Available проверяет один конкретный старт, используется при бронировании
func Available(w Window, booked []models.BookedSession, requestedHours, startHour int) (bool, error) {
	slots, err := ComputeSlots(w, booked, requestedHours)
	if err != nil {
		return false, err
	}

	return slices.ContainsFunc(slots, func(s Slot) bool { return s.Start == startHour }), nil
}

// ParseSlotStart достает час начала из строки слота
func ParseSlotStart(slot string) (int, error) {
	head, _, ok := strings.Cut(slot, ":")
	if !ok {
		return 0, fmt.Errorf("malformed slot %q: %w", slot, apperr.ErrInvalidInput)
	}

	hour, err := strconv.Atoi(strings.TrimSpace(head))
	if err != nil || hour < 0 || hour >= hoursInDay {
		return 0, fmt.Errorf("malformed slot %q: %w", slot, apperr.ErrInvalidInput)
	}

	return hour, nil
}

// EndTime - время окончания сессии в формате "HH:00"
func EndTime(startHour, hours int) string {
	return models.FormatClock((startHour + hours) % hoursInDay)
}

func candidates(w Window, req int) []int {
	from, to := w.From, w.To
	if to == 0 {
		to = hoursInDay
	}

	var starts []int

	switch {
	case to > from:
		for h := from; h <= to-req; h++ {
			starts = append(starts, h)
		}
	case to < from:
		for h := from; h <= hoursInDay-req; h++ {
			starts = append(starts, h)
		}
		for h := 0; h <= to-req; h++ {
			starts = append(starts, h)
		}
	}

	slices.Sort(starts)

	return starts
}

func occupiedHours(booked []models.BookedSession) ([hoursInDay]bool, error) {
	var occupied [hoursInDay]bool

	for _, b := range booked {
		start, _, err := models.ParseClock(b.StartTime)
		if err != nil {
			return occupied, fmt.Errorf("parse booked start %q: %w", b.StartTime, apperr.ErrInvalidInput)
		}

		end, _, err := models.ParseClock(b.EndTime)
		if err != nil {
			return occupied, fmt.Errorf("parse booked end %q: %w", b.EndTime, apperr.ErrInvalidInput)
		}

		// начало и конец в один час - сессия на сутки
		duration := (end - start + hoursInDay) % hoursInDay
		if duration == 0 {
			duration = hoursInDay
		}

		for i := range duration {
			occupied[(start+i)%hoursInDay] = true
		}
	}

	return occupied, nil
}

func free(occupied [hoursInDay]bool, start, req int) bool {
	for i := range req {
		if occupied[(start+i)%hoursInDay] {
			return false
		}
	}

	return true
}
