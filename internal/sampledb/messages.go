package sampledb

import "time"

// The composite types used for messages to the ClickHouse database.

// RunMessage is the information for the adcruns table.
type RunMessage struct {
	ID             string
	Hostname       string
	Githash        string
	Version        string
	GoVersion      string
	Mode           string // "live" or "playback"
	SamplingRateHz int
	ResolutionBits int
	Samples        uint64
	Start          time.Time
	End            time.Time
}

const timeFormat = "2006-01-02 15:04:05.000000"
