package domain

import (
	"encoding/json"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvedDayMarshalJSON(t *testing.T) {
	date := civil.Date{Year: 2025, Month: 3, Day: 3}

	tests := []struct {
		name string
		day  ResolvedDay
		want string
	}{
		{
			name: "零值按未分配输出",
			day:  ResolvedDay{},
			want: `{"vehicleNumber":0,"date":"0000-00-00","kind":"unassigned","state":{}}`,
		},
		{
			name: "班次",
			day: ResolvedDay{
				VehicleNumber: 7,
				Date:          date,
				State:         ActiveShiftState{AssignmentID: 1, TemplateID: 2, Name: "早班", StartTime: "08:00", EndTime: "16:00", TemplateKnown: true},
				Online:        OnlineYes,
			},
			want: `{"vehicleNumber":7,"date":"2025-03-03","kind":"activeShift","state":{"assignmentID":1,"templateID":2,"name":"早班","startTime":"08:00","endTime":"16:00","templateKnown":true},"online":"online"}`,
		},
		{
			name: "状态覆盖",
			day: ResolvedDay{
				VehicleNumber: 8,
				Date:          date,
				State:         OverrideState{OverrideID: 3, StatusConfigID: 4, Label: "维修", Color: "#e53935"},
			},
			want: `{"vehicleNumber":8,"date":"2025-03-03","kind":"override","state":{"overrideID":3,"statusConfigID":4,"label":"维修","color":"#e53935"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := json.Marshal(tt.day)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))
		})
	}
}
