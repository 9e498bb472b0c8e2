package processing

import (
	"context"
	"math/rand"
	"time"
)

const simulatedFailureMessage = "Simulated processing failure"

const (
	simulateDelayMin = 500 * time.Millisecond
	simulateDelayMax = 2 * time.Second
)

// SimulatedWorker stands in for a real fulfilment backend: it burns a random
// slice of wall-clock time and succeeds with a configured probability.
type SimulatedWorker struct {
	rate float64
}

func NewSimulatedWorker(rate float64) *SimulatedWorker {
	return &SimulatedWorker{rate: rate}
}

// Work sleeps between 0.5s and 2s and draws the outcome. The sleep is not
// interrupted by ctx: a run this short settles rather than aborting halfway
// with a PROCESSING row left behind.
func (w *SimulatedWorker) Work(ctx context.Context) bool {
	delay := simulateDelayMin + time.Duration(rand.Int63n(int64(simulateDelayMax-simulateDelayMin)))
	time.Sleep(delay)
	return rand.Float64() < w.rate
}
