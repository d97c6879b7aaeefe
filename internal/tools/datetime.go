// ABOUTME: get_current_time and get_date_info: clock and calendar arithmetic in the configured zone.
// ABOUTME: Answers are phrased for speech as well as returned as structured fields.

package tools

import (
	"context"
	"fmt"

	"github.com/shivsinghin/Voice-Assistant/internal/capability"
)

const (
	longDateLayout  = "January 02, 2006"
	clockLayout     = "03:04 PM"
	weekdayLayout   = "Monday"
	shortDateLayout = "02/01/2006"
)

// CurrentTimeSource builds the current-time module.
func CurrentTimeSource(opts Options) capability.Source {
	return capability.Source{
		Name: "time",
		Build: func(context.Context) (*capability.Module, error) {
			c := opts.clock()
			return &capability.Module{
				Name: "time",
				Capabilities: []capability.Capability{{
					Descriptor: capability.Descriptor{
						Name:        "get_current_time",
						Description: fmt.Sprintf("Get current date, time, and day of the week in %s", c.loc),
					},
					Handler: func(context.Context, capability.Args) (capability.Result, error) {
						return currentTime(c), nil
					},
				}},
			}, nil
		},
	}
}

func currentTime(c clock) capability.Result {
	now := c.Now()
	zone := now.Format("MST")
	date := now.Format(longDateLayout)
	tm := now.Format(clockLayout)
	day := now.Format(weekdayLayout)

	return capability.Success(map[string]any{
		"date":          date,
		"time":          tm,
		"day":           day,
		"timezone":      zone,
		"full_datetime": fmt.Sprintf("%s, %s at %s %s", day, date, tm, zone),
		"description":   fmt.Sprintf("Today is %s, %s, and the current time is %s %s", day, date, tm, zone),
	})
}

// Date query types accepted by get_date_info.
const (
	QueryToday       = "today"
	QueryTomorrow    = "tomorrow"
	QueryYesterday   = "yesterday"
	QueryDaysFromNow = "days_from_now"
	QueryDateFormat  = "date_format"
)

type dateInfoArgs struct {
	QueryType  string `json:"query_type" jsonschema:"required,enum=today,enum=tomorrow,enum=yesterday,enum=days_from_now,enum=date_format,default=today" jsonschema_description:"Type of date query to perform"`
	DaysOffset int    `json:"days_offset,omitempty" jsonschema:"default=0" jsonschema_description:"Number of days to add/subtract from today (for days_from_now query_type)"`
}

// DateInfoSource builds the date-arithmetic module.
func DateInfoSource(opts Options) capability.Source {
	return capability.Source{
		Name: "date",
		Build: func(context.Context) (*capability.Module, error) {
			c := opts.clock()
			params, required := capability.ParametersFor(&dateInfoArgs{})
			return &capability.Module{
				Name: "date",
				Capabilities: []capability.Capability{{
					Descriptor: capability.Descriptor{
						Name:        "get_date_info",
						Description: "Get date information, calculate dates relative to today, or get specific date details",
						Parameters:  params,
						Required:    required,
					},
					Handler: func(_ context.Context, args capability.Args) (capability.Result, error) {
						var in dateInfoArgs
						if err := args.Decode(&in); err != nil {
							return capability.ValidationError("days_offset must be a whole number of days."), nil
						}
						return dateInfo(c, in), nil
					},
				}},
			}, nil
		},
	}
}

func dateInfo(c clock, in dateInfoArgs) capability.Result {
	if in.QueryType == "" {
		in.QueryType = QueryToday
	}
	now := c.Now()

	target := now
	switch in.QueryType {
	case QueryTomorrow:
		target = now.AddDate(0, 0, 1)
	case QueryYesterday:
		target = now.AddDate(0, 0, -1)
	case QueryDaysFromNow:
		target = now.AddDate(0, 0, in.DaysOffset)
	}

	date := target.Format(longDateLayout)
	day := target.Format(weekdayLayout)
	description := fmt.Sprintf("The date is %s, %s", day, date)
	if in.QueryType == QueryDaysFromNow {
		switch {
		case in.DaysOffset > 0:
			description = fmt.Sprintf("In %d days, it will be %s, %s", in.DaysOffset, day, date)
		case in.DaysOffset < 0:
			description = fmt.Sprintf("%d days ago was %s, %s", -in.DaysOffset, day, date)
		}
	}

	return capability.Success(map[string]any{
		"date":        date,
		"day":         day,
		"short_date":  target.Format(shortDateLayout),
		"query_type":  in.QueryType,
		"timezone":    target.Format("MST"),
		"description": description,
	})
}
