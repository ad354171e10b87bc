// Demo program to showcase the diaglog viewer on a generated, realistic
// FDRS reprogramming session.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"diaglog/src/contracts"
	"diaglog/src/pipeline"
	"diaglog/src/reference"
	"diaglog/src/tui"
)

func main() {
	fmt.Println("Generating sample session log...")
	log := generateSession()

	engine := pipeline.New(reference.MustDefault(), pipeline.DefaultOptions())
	analyze := func(ctx context.Context) (*contracts.Report, error) {
		// Brief pause so the progress view is visible.
		time.Sleep(500 * time.Millisecond)
		return engine.AnalyzeString(ctx, log, pipeline.Request{Source: "demo_session.log"})
	}

	if err := tui.RunAnalysis(context.Background(), "demo_session.log", analyze); err != nil {
		fmt.Fprintf(os.Stderr, "Error running TUI: %v\n", err)
		os.Exit(1)
	}
}

// generateSession builds a PCM reprogramming that stalls on the BCM behind a
// silent gateway, with the usual responsePending noise.
func generateSession() string {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	var lines []string
	at := func(sec int, format string, args ...any) {
		ts := start.Add(time.Duration(sec) * time.Second).Format("2006-01-02 15:04:05")
		lines = append(lines, ts+" "+fmt.Sprintf(format, args...))
	}

	at(0, "FDRS version 45.3.1 starting")
	at(1, "VIN: 1FTFW1RG3NFA95916")
	at(2, "Procedure: PCM Reprogramming")
	at(3, "Target ECU: 7E0")
	at(4, "Tx 7E0: 02 10 02")
	at(5, "Rx 7E8: 02 50 02")
	at(6, "Tx 7E0: 02 27 01")
	at(7, "Rx 7E8: 03 7F 27 35")
	at(8, "WARNING: Security access retry for 7E0 (attempt 2)")
	at(9, "Rx 7E8: 06 67 01 1A 2B 3C 4D")

	sec := 10
	for i := 0; i < 60; i++ {
		at(sec, "Rx 7E8: 03 7F 31 78")
		sec += 2
	}
	for i := 0; i < 3; i++ {
		at(sec, "Tx 726: 02 10 03")
		at(sec+5, "Module 726 did not respond")
		sec += 6
	}
	at(sec, "WARNING: battery voltage low (11.9V)")
	at(sec+1, `System.TimeoutException: Waiting for BCM configuration timed out
   at FDRS.Runtime.Session.Runner.Execute(Step step) in C:\FDRS\Runtime\Session\Runner.cs:line 212`)
	at(sec+2, "ERROR: Step 'BCM As-Built restore' failed")
	at(sec+3, "Session failed")

	return strings.Join(lines, "\n") + "\n"
}
