package datasource

import (
	"fmt"
	"sort"
	"time"

	"github.com/tidwall/gjson"
)

// alphaVantageTimeLayout is the timestamp format used by Alpha Vantage
// TIME_SERIES_INTRADAY archives.
const alphaVantageTimeLayout = "2006-01-02 15:04:05"

// parseAlphaVantage extracts the stock symbol and its chronological
// close-price samples from an archived Alpha Vantage
// TIME_SERIES_INTRADAY JSON document.
func parseAlphaVantage(data []byte) (string, []Sample, error) {
	if !gjson.ValidBytes(data) {
		return "", nil, fmt.Errorf("invalid JSON")
	}
	root := gjson.ParseBytes(data)

	symbol := root.Get(`Meta Data.2\. Symbol`).String()
	interval := root.Get(`Meta Data.4\. Interval`).String()
	if symbol == "" || interval == "" {
		return "", nil, fmt.Errorf("missing Alpha Vantage metadata")
	}
	series := root.Get("Time Series (" + interval + ")")
	if !series.IsObject() {
		return "", nil, fmt.Errorf("missing %q time series", interval)
	}

	var samples []Sample
	var parseErr error
	series.ForEach(func(key, value gjson.Result) bool {
		t, err := time.Parse(alphaVantageTimeLayout, key.String())
		if err != nil {
			parseErr = fmt.Errorf("bad sample time %q: %w", key.String(), err)
			return false
		}
		closePrice := value.Get(`4\. close`)
		if !closePrice.Exists() {
			parseErr = fmt.Errorf("sample %q has no close price", key.String())
			return false
		}
		samples = append(samples, Sample{Time: t, Price: closePrice.Float()})
		return true
	})
	if parseErr != nil {
		return "", nil, parseErr
	}
	if len(samples) == 0 {
		return "", nil, fmt.Errorf("time series for %q is empty", symbol)
	}

	// Archives arrive in reverse-chronological order.
	sort.Slice(samples, func(i, j int) bool {
		return samples[i].Time.Before(samples[j].Time)
	})
	return symbol, samples, nil
}
