// Package model defines shared data structures.
package model

import "time"

// Run statuses.
const (
	StatusRunning  = "running"
	StatusFinished = "finished"
)

// RunConfig describes how an optimisation run was set up.
type RunConfig struct {
	Layout        string
	Corpus        string
	CorpusChars   int
	KeyPresses    int
	Baseline      string
	BaselineScore float64
	Temperature   float64
	Epoch         int
	CoolingRate   float64
	Iterations    int
	Seed          int64
	Chains        int
}

// Run is a stored optimisation run.
type Run struct {
	ID               string
	StartedAt        time.Time
	EndedAt          time.Time
	Status           string
	Config           RunConfig
	InitialGenome    string
	InitialScore     float64
	BestGenome       string
	BestScore        float64
	Iterations       int
	FinalTemperature float64
	Accepted         int
	Improvements     int
	DurationMs       int64
}

// ScoreUpdate is one improvement of the best score within a run.
type ScoreUpdate struct {
	Chain          int
	Iteration      int
	Temperature    float64
	BestScore      float64
	CandidateScore float64
	Genome         string
}

// RunsFilter narrows run listings.
type RunsFilter struct {
	Layout string
	Since  *time.Time
	Last   int
}
