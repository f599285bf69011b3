package gtfsrt

import (
	"math"
	"testing"
	"time"

	gtfs "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"

	"github.com/lapaz-movil/transit/internal/realtime/gps"
)

func TestEncode_VehiclePositions(t *testing.T) {
	generatedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	reportedAt := generatedAt.Add(-10 * time.Second)

	positions := []gps.VehiclePosition{
		{IMEI: "863", Latitude: -16.5, Longitude: -68.15, Speed: 36, Heading: 90, Timestamp: &gps.Timestamp{Time: reportedAt}},
		{IMEI: "864", Latitude: -16.49, Longitude: -68.13},
	}

	data, err := Encode(positions, generatedAt)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	feed, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	header := feed.GetHeader()
	if header.GetGtfsRealtimeVersion() != "2.0" {
		t.Errorf("version = %q", header.GetGtfsRealtimeVersion())
	}
	if header.GetIncrementality() != gtfs.FeedHeader_FULL_DATASET {
		t.Errorf("incrementality = %v", header.GetIncrementality())
	}
	if header.GetTimestamp() != uint64(generatedAt.Unix()) {
		t.Errorf("header timestamp = %d", header.GetTimestamp())
	}

	if len(feed.GetEntity()) != 2 {
		t.Fatalf("expected 2 entities, got %d", len(feed.GetEntity()))
	}

	first := feed.GetEntity()[0]
	if first.GetId() != "863" || first.GetVehicle().GetVehicle().GetId() != "863" {
		t.Errorf("entity id = %q", first.GetId())
	}
	pos := first.GetVehicle().GetPosition()
	if math.Abs(float64(pos.GetSpeed())-10) > 1e-4 {
		t.Errorf("speed should be converted to m/s, got %v", pos.GetSpeed())
	}
	if math.Abs(float64(pos.GetLatitude())+16.5) > 1e-4 {
		t.Errorf("latitude = %v", pos.GetLatitude())
	}
	if first.GetVehicle().GetTimestamp() != uint64(reportedAt.Unix()) {
		t.Errorf("vehicle timestamp = %d", first.GetVehicle().GetTimestamp())
	}

	if feed.GetEntity()[1].GetVehicle().Timestamp != nil {
		t.Error("missing report time should leave the vehicle timestamp unset")
	}
}

func TestBuildFeed_DuplicateIMEIKeepsLastReport(t *testing.T) {
	positions := []gps.VehiclePosition{
		{IMEI: "863", Latitude: -16.5, Longitude: -68.15},
		{IMEI: "864", Latitude: -16.49, Longitude: -68.13},
		{IMEI: "863", Latitude: -16.48, Longitude: -68.11},
	}

	feed := BuildFeed(positions, time.Now())
	if len(feed.GetEntity()) != 2 {
		t.Fatalf("expected 2 entities, got %d", len(feed.GetEntity()))
	}

	seen := make(map[string]bool)
	for _, e := range feed.GetEntity() {
		if seen[e.GetId()] {
			t.Errorf("duplicate entity id %q", e.GetId())
		}
		seen[e.GetId()] = true
	}

	first := feed.GetEntity()[0]
	if first.GetId() != "863" || first.GetVehicle().GetPosition().GetLatitude() != float32(-16.48) {
		t.Errorf("entity 863 = %v, expected the last report", first.GetVehicle().GetPosition())
	}
}

func TestBuildFeed_Empty(t *testing.T) {
	feed := BuildFeed(nil, time.Now())
	if feed.GetHeader() == nil {
		t.Fatal("header is required even for an empty feed")
	}
	if len(feed.GetEntity()) != 0 {
		t.Errorf("expected no entities, got %d", len(feed.GetEntity()))
	}
}

func TestDecode_Garbage(t *testing.T) {
	if _, err := Decode([]byte{0xff, 0xff, 0xff}); err == nil {
		t.Error("expected error for invalid protobuf")
	}
}
