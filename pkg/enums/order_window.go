package enums

import (
	"fmt"
	"time"
)

// OrderWindow is the relative date filter offered on the order history page.
type OrderWindow string

const (
	OrderWindowMonth      OrderWindow = "month"
	OrderWindowThreeMonth OrderWindow = "3months"
	OrderWindowSixMonth   OrderWindow = "6months"
	OrderWindowYear       OrderWindow = "year"
)

var orderWindowDays = map[OrderWindow]int{
	OrderWindowMonth:      30,
	OrderWindowThreeMonth: 90,
	OrderWindowSixMonth:   180,
	OrderWindowYear:       365,
}

// IsValid reports whether the value is a known OrderWindow.
func (w OrderWindow) IsValid() bool {
	_, ok := orderWindowDays[w]
	return ok
}

// Since returns the lower bound of the window relative to now.
func (w OrderWindow) Since(now time.Time) time.Time {
	return now.AddDate(0, 0, -orderWindowDays[w])
}

// ParseOrderWindow converts raw input into an OrderWindow.
func ParseOrderWindow(value string) (OrderWindow, error) {
	w := OrderWindow(value)
	if !w.IsValid() {
		return "", fmt.Errorf("invalid order window %q", value)
	}
	return w, nil
}
