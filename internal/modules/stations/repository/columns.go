package repository

import "github.com/MrCodingRobot/EmergencyStations/internal/telemetry"

// sampleChannels lists the samples table's value columns in column order.
// Each column is named after its channel.
var sampleChannels = []telemetry.Channel{
	telemetry.ChannelSensor1,
	telemetry.ChannelSensor2,
	telemetry.ChannelSensor3,
	telemetry.ChannelReference,
	telemetry.ChannelWeight,
	telemetry.ChannelCurrent,
	telemetry.ChannelVoltage,
}

// channelArgs returns one argument per sample column, nil for channels the
// sample's generation does not carry.
func channelArgs(v telemetry.Values) []any {
	out := make([]any, len(sampleChannels))
	for i, ch := range sampleChannels {
		if x, ok := v[ch]; ok {
			out[i] = x
		}
	}
	return out
}
