package models

// SystemStatus mirrors the connection and run state of the rig
type SystemStatus struct {
	PumpConnected      bool     `json:"pumpConnected" doc:"Pump link is up"`
	FlowMeterConnected bool     `json:"flowMeterConnected" doc:"Flow meter link is up"`
	PumpRunning        bool     `json:"pumpRunning" doc:"Pump is running"`
	Scanning           bool     `json:"scanning" doc:"A sweep is in progress"`
	CurrentFrequency   *float64 `json:"currentFrequency" doc:"Commanded frequency in Hz"`
	CurrentFlowRate    *float64 `json:"currentFlowRate" doc:"Latest flow reading in L/min"`
	FlowRateStable     bool     `json:"flowRateStable" doc:"Recent readings are within tolerance"`
	ScanProgress       int      `json:"scanProgress" minimum:"0" maximum:"100" doc:"Sweep progress percentage"`
	Error              *string  `json:"error" doc:"Last device error"`
}

// ConnectResult reports which devices answered a connect request
type ConnectResult struct {
	PumpConnected      bool `json:"pumpConnected" doc:"Pump connected"`
	FlowMeterConnected bool `json:"flowMeterConnected" doc:"Flow meter connected"`
}
