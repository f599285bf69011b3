package geo

import (
	"errors"
	"math"
	"testing"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name    string
		report  LocationReport
		wantErr error
	}{
		{
			name:   "granted with fix",
			report: LocationReport{Granted: true, Coords: &Coords{Latitude: -16.5, Longitude: -68.15}},
		},
		{
			name:    "denied",
			report:  LocationReport{Granted: false, Coords: &Coords{Latitude: -16.5, Longitude: -68.15}},
			wantErr: ErrPermissionDenied,
		},
		{
			name:    "granted without coords",
			report:  LocationReport{Granted: true},
			wantErr: ErrUnavailable,
		},
		{
			name:    "device error",
			report:  LocationReport{Granted: true, Error: "timeout"},
			wantErr: ErrUnavailable,
		},
		{
			name:    "out of range",
			report:  LocationReport{Granted: true, Coords: &Coords{Latitude: 91, Longitude: 0}},
			wantErr: ErrUnavailable,
		},
		{
			name:    "NaN",
			report:  LocationReport{Granted: true, Coords: &Coords{Latitude: math.NaN(), Longitude: 0}},
			wantErr: ErrUnavailable,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			coords, err := Resolve(tc.report)
			if tc.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if coords != *tc.report.Coords {
					t.Errorf("coords = %+v", coords)
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("error = %v, expected %v", err, tc.wantErr)
			}
		})
	}
}

func TestResolve_DeviceErrorMessage(t *testing.T) {
	_, err := Resolve(LocationReport{Granted: true, Error: "timeout"})
	if err == nil || err.Error() != "location unavailable: timeout" {
		t.Errorf("error = %v", err)
	}
}
