package models

// DataPoint represents a single settled flow measurement at a drive frequency
type DataPoint struct {
	Frequency float64 `json:"frequency" doc:"Pump drive frequency in Hz"`
	FlowRate  float64 `json:"flowRate" doc:"Settled flow rate in L/min"`
}
