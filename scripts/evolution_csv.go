package main

import (
	"encoding/csv"
	"fmt"
	"os"

	"github.com/Agrid-Dev/thermostep/internal/thermostat"
)

type TargetCommand struct {
	IterationNumber int
	Value           int
}

func SimulateThermostat(iterations int, filename string, targetCommands []TargetCommand) error {
	th, err := thermostat.New(thermostat.NewState())
	if err != nil {
		return fmt.Errorf("failed to create thermostat: %v", err)
	}
	if err := th.EnableDrift(thermostat.DriftParams{OutdoorTemp: 10, Period: 5}); err != nil {
		return fmt.Errorf("failed to enable drift: %v", err)
	}

	// Create CSV file
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write CSV header
	if err := writer.Write([]string{"Iteration", "Current", "Target", "Mode", "FanSpeed", "Delta"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	// Run simulation
	for i := range iterations {
		// Check if we need to update the target
		for _, cmd := range targetCommands {
			if cmd.IterationNumber == i+1 {
				th.SetTarget(cmd.Value)
				break
			}
		}

		// Get current state
		s := th.Get()

		// Write to CSV
		if err := writer.Write([]string{
			fmt.Sprintf("%d", i+1),
			fmt.Sprintf("%d", s.CurrentTemp),
			fmt.Sprintf("%d", s.TargetTemp),
			s.Mode.String(),
			s.FanSpeed.String(),
			fmt.Sprintf("%d", s.Delta()),
		}); err != nil {
			return fmt.Errorf("failed to write CSV record: %v", err)
		}

		// Advance one control step
		th.Tick()
	}

	return nil
}

func main() {
	commands := []TargetCommand{
		{
			IterationNumber: 20,
			Value:           26,
		},
		{
			IterationNumber: 60,
			Value:           18,
		},
	}
	if err := SimulateThermostat(100, "thermostep.csv", commands); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
