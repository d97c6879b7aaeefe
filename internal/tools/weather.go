// ABOUTME: get_weather: a stub weather report with randomized conditions.
// ABOUTME: Celsius and fahrenheit draw from separate ranges rather than converting.

package tools

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/shivsinghin/Voice-Assistant/internal/capability"
)

var weatherConditions = []string{
	"sunny", "partly cloudy", "cloudy", "rainy",
	"stormy", "snowy", "foggy", "windy",
}

type weatherArgs struct {
	Location string `json:"location" jsonschema:"required" jsonschema_description:"The city and state/country, e.g. 'San Francisco, CA' or 'Mumbai, India'"`
	Unit     string `json:"unit,omitempty" jsonschema:"enum=celsius,enum=fahrenheit,default=celsius" jsonschema_description:"Temperature unit preference"`
}

// WeatherSource builds the weather module.
func WeatherSource(opts Options) capability.Source {
	return capability.Source{
		Name: "weather",
		Build: func(context.Context) (*capability.Module, error) {
			r := opts.Rand
			if r == nil {
				r = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
			}
			w := &weather{rng: &lockedRand{r: r}}

			params, required := capability.ParametersFor(&weatherArgs{})
			return &capability.Module{
				Name: "weather",
				Capabilities: []capability.Capability{{
					Descriptor: capability.Descriptor{
						Name:        "get_weather",
						Description: "Get current weather information for any location worldwide",
						Parameters:  params,
						Required:    required,
					},
					Handler: w.handle,
				}},
			}, nil
		},
	}
}

type weather struct {
	rng *lockedRand
}

func (w *weather) handle(_ context.Context, args capability.Args) (capability.Result, error) {
	var in weatherArgs
	if err := args.Decode(&in); err != nil {
		return capability.ValidationError("Please tell me which location you want the weather for."), nil
	}
	if in.Location == "" {
		in.Location = "Unknown Location"
	}

	conditions := w.rng.pick(weatherConditions)

	var temp string
	if in.Unit == "fahrenheit" {
		temp = fmt.Sprintf("%d°F", w.rng.between(16, 29))
	} else {
		temp = fmt.Sprintf("%d°C", w.rng.between(0, 10))
	}
	humidity := w.rng.between(30, 90)
	wind := w.rng.between(5, 25)

	return capability.Success(map[string]any{
		"location":    in.Location,
		"temperature": temp,
		"conditions":  conditions,
		"humidity":    fmt.Sprintf("%d%%", humidity),
		"wind_speed":  fmt.Sprintf("%d km/h", wind),
		"description": fmt.Sprintf("It's currently %s in %s with a temperature of %s", conditions, in.Location, temp),
	}), nil
}
