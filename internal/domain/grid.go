package domain

import (
	"errors"
	"fmt"
)

// SlotGrid describes the bookable business day: starts fall on Step-minute
// boundaries from Open up to (not including) Close, and ends may reach Close.
type SlotGrid struct {
	Open  TimeOfDay
	Close TimeOfDay
	Step  int
}

var DefaultSlotGrid = SlotGrid{
	Open:  NewTimeOfDay(9, 0),
	Close: NewTimeOfDay(19, 0),
	Step:  30,
}

func NewSlotGrid(opensAt, closesAt string, stepMinutes int) (SlotGrid, error) {
	o, ok := TryParseTimeOfDay(opensAt)
	if !ok {
		return SlotGrid{}, fmt.Errorf("invalid opening time %q", opensAt)
	}
	c, ok := TryParseTimeOfDay(closesAt)
	if !ok {
		return SlotGrid{}, fmt.Errorf("invalid closing time %q", closesAt)
	}
	g := SlotGrid{Open: o, Close: c, Step: stepMinutes}
	if err := g.Validate(); err != nil {
		return SlotGrid{}, err
	}
	return g, nil
}

func (g SlotGrid) Validate() error {
	if g.Step <= 0 {
		return errors.New("slot step must be positive")
	}
	if g.Close <= g.Open {
		return errors.New("closing time must be after opening time")
	}
	if (g.Close-g.Open).Minutes()%g.Step != 0 {
		return errors.New("business hours must be a whole number of slots")
	}
	return nil
}

func (g SlotGrid) aligned(t TimeOfDay) bool {
	return t >= g.Open && t <= g.Close && (t-g.Open).Minutes()%g.Step == 0
}

// StartTimes returns every bookable start time in ascending order.
func (g SlotGrid) StartTimes() []TimeOfDay {
	if g.Validate() != nil {
		return nil
	}
	out := make([]TimeOfDay, 0, (g.Close-g.Open).Minutes()/g.Step)
	for t := g.Open; t < g.Close; t += TimeOfDay(g.Step) {
		out = append(out, t)
	}
	return out
}

// EndTimes returns the valid end times for start in ascending order. It is empty
// when start is not a bookable start.
func (g SlotGrid) EndTimes(start TimeOfDay) []TimeOfDay {
	if !g.IsStart(start) {
		return nil
	}
	out := make([]TimeOfDay, 0, (g.Close-start).Minutes()/g.Step)
	for t := start + TimeOfDay(g.Step); t <= g.Close; t += TimeOfDay(g.Step) {
		out = append(out, t)
	}
	return out
}

func (g SlotGrid) IsStart(t TimeOfDay) bool {
	return g.Validate() == nil && g.aligned(t) && t < g.Close
}

func (g SlotGrid) IsEnd(start, end TimeOfDay) bool {
	return g.IsStart(start) && g.aligned(end) && end > start
}
